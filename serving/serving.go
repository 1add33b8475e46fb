/*
 * Copyright 2022 Google LLC.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


// Package serving is the entry point for scoring records with a loaded PMML
// document.
package serving

import (
	"github.com/google/yggdrasil-pmml/model"
	"github.com/google/yggdrasil-pmml/serving/engine"
	"github.com/google/yggdrasil-pmml/serving/generic"
)

// NewEngine creates an engine for the document with the default options. It
// fails if the document has no model.
func NewEngine(doc *model.Document) (engine.Engine, error) {
	return NewEngineWithOptions(doc, engine.DefaultOptions())
}

// NewEngineWithOptions creates an engine for the document.
//
// The "options" argument controls the shape of the predictions. For example,
// setting "SupplementOutput" to false removes the outputs explaining the
// predictions (node ids, reason codes...) and only keeps the predicted values
// and the probabilities.
func NewEngineWithOptions(doc *model.Document, options engine.Options) (engine.Engine, error) {
	return generic.NewEngine(doc, options)
}
