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


// Package engine defines the Engine interface.
package engine

import (
	"context"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/model"
	"github.com/google/yggdrasil-pmml/serving/example"
)

// Engine generates predictions for a PMML document, given a record.
/*
Usage example:

	import (".../model/io/canonical")

	// Load a document
	doc, err := canonical.Load(ctx, "/path/to/model.pmml")

	// Create the engine. The document is shared, read only, by all the
	// predictions.
	engine, err := serving.NewEngine(doc)

	// Or, to only return the predicted value and the probabilities:
	options := engine.DefaultOptions()
	options.SupplementOutput = false
	engine, err := serving.NewEngineWithOptions(doc, options)

	// Names of the input fields, in the order expected by positional inputs.
	fmt.Println(engine.Features().InputNames)

	// Score one record.
	var record example.Record
	record.Set("sepal_length", 5.1)
	record.Set("petal_width", 0.2)
	prediction, err := engine.Predict(record)

	// Score a batch. Each slot holds the prediction or the error of the record
	// with the same index.
	slots := engine.PredictBatch(ctx, records)
*/
type Engine interface {

	// Predict scores a record. Fields absent from the record are missing.
	Predict(record example.Record) (example.Record, error)

	// PredictBatch scores records in parallel. The result is aligned with
	// "records". If "ctx" is cancelled, the records not yet scored get the
	// error of the context.
	PredictBatch(ctx context.Context, records []example.Record) []example.Slot

	// Input fields of the model.
	Features() *example.Features

	// OutputNames are the names of the fields of the predictions, in order.
	OutputNames() []string

	// OutputFields are the declared output fields. Nil when the outputs are
	// synthesised.
	OutputFields() []*model.OutputField

	InputNames() []string
	InputFields() []*dataspec.Field
	TargetNames() []string
	TargetFields() []*dataspec.Field

	// Classes of a classification model, or nil.
	Classes() []string

	// Document is the scored document.
	Document() *model.Document
}

// OutputNames configures the names of the synthesised outputs, used when a
// model declares no <Output>. "%s" is replaced by the name of the target, or
// by the class.
type OutputNames struct {
	PredictedValue string
	Probability    string

	// Rename maps output names to external names. Applies to declared and
	// synthesised outputs.
	Rename map[string]string
}

// Options of an engine.
type Options struct {
	// SupplementOutput emits the outputs explaining a prediction (node ids,
	// reason codes, segment results...). The predicted value and the
	// probabilities are always emitted.
	SupplementOutput bool

	OutputNames OutputNames

	// Workers is the maximum number of records scored in parallel by
	// PredictBatch. Non positive means one per CPU.
	Workers int
}

// DefaultOptions are the options of serving.NewEngine.
func DefaultOptions() Options {
	return Options{
		SupplementOutput: true,
		OutputNames: OutputNames{
			PredictedValue: "predicted_%s",
			Probability:    "probability_%s",
		},
	}
}
