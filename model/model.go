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

// Package model defines the "Model" interface and the parts shared by all
// the model kinds: mining schema, local transformations, targets and output.
package model

import (
	"github.com/google/yggdrasil-pmml/expression"
	"github.com/google/yggdrasil-pmml/utils/status"
	"github.com/google/yggdrasil-pmml/utils/xmltree"
)

// Model is a generic model interface.
//
// Examples:
//
// // Load an existing model.
// doc, err := io.LoadFile(ctx, "/path/to/model.pmml")
// fmt.Printf("My model is a %v.", doc.Model.Name())
// >> My model is a TreeModel.
type Model interface {

	// Registered name of the model, i.e. the name of its PMML element.
	Name() string

	// Base contains the parts shared by all the model kinds.
	Base() *Base

	// Evaluate runs the model on a context holding its prepared inputs.
	// Users are not expected to call this method directly. Instead, records
	// should be scored with "doc.Evaluate(record)".
	Evaluate(ctx *expression.Context) (*Result, error)
}

// Implementation interface needs to be implemented by Models (mostly internal).
// Not needed by those only using a model.
type Implementation interface {
	Model

	// LoadSpecific loads the model implementation specific data from the
	// model element. "scope" resolves the fields visible from the model.
	LoadSpecific(el *xmltree.Element, scope *Scope) error
}

// Describer is implemented by the models exposing structural statistics,
// e.g. the number of nodes of a tree.
type Describer interface {
	Describe() map[string]int
}

// RegisteredBuilders is the list of model builders, keyed by the name of the
// PMML element of each model type.
// Only register (change) this during the runtime initialization, in `init()` function.
// End users probably want to use `io.LoadFile()` to load models instead.
var RegisteredBuilders = make(map[string]func(base *Base) Implementation)

// IsModelElement tells if an element is a model with a registered builder.
func IsModelElement(el *xmltree.Element) bool {
	_, ok := RegisteredBuilders[el.Name]
	return ok
}

// Build creates a model from its element. "scope" resolves the fields visible
// from the parent of the model.
func Build(el *xmltree.Element, scope *Scope) (Model, error) {
	builder, ok := RegisteredBuilders[el.Name]
	if !ok {
		return nil, status.Schemaf("unsupported model %v. Make sure the model kind is linked (e.g. import model/canonical)", el)
	}
	base, err := ParseBase(el, scope)
	if err != nil {
		return nil, err
	}
	implementation := builder(base)
	if err := implementation.LoadSpecific(el, base.Scope); err != nil {
		return nil, status.Annotate(err, "%v", el)
	}
	if err := base.parseOutput(el); err != nil {
		return nil, status.Annotate(err, "%v", el)
	}
	return implementation, nil
}
