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


// Package generic contains the engine able to serve any loaded PMML document.
package generic

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/model"
	"github.com/google/yggdrasil-pmml/serving/engine"
	"github.com/google/yggdrasil-pmml/serving/example"
	"github.com/google/yggdrasil-pmml/utils/logging"
	"github.com/google/yggdrasil-pmml/utils/status"
)

// column is a field of the predictions. Exactly one of "field", "class" and
// "predicted" is set.
type column struct {
	name      string
	field     *model.OutputField
	class     string
	predicted bool
}

func (c *column) value(result *model.Result) dataspec.Value {
	switch {
	case c.field != nil:
		value, _ := result.Output(c.field.Name)
		return value
	case c.predicted:
		return result.Predicted
	}
	if probability, ok := result.Probability(c.class); ok {
		return dataspec.Double(probability)
	}
	return dataspec.Missing
}

// Engine scores records by evaluating the document directly.
type Engine struct {
	doc      *model.Document
	features *example.Features
	options  engine.Options
	columns  []column
	declared []*model.OutputField
}

var _ engine.Engine = (*Engine)(nil)

// NewEngine creates an engine for a document.
func NewEngine(doc *model.Document, options engine.Options) (*Engine, error) {
	if doc == nil || doc.Model == nil {
		return nil, status.Schemaf("the document has no model to serve")
	}
	if options.Workers <= 0 {
		options.Workers = runtime.GOMAXPROCS(0)
	}
	e := &Engine{
		doc:      doc,
		features: example.NewFeatures(doc),
		options:  options,
	}
	if declared := doc.OutputFields(); len(declared) > 0 {
		e.declaredColumns(declared)
	} else {
		e.defaultColumns()
	}
	logging.Logger().Debug().
		Str("model", doc.Model.Name()).
		Strs("inputs", e.features.InputNames).
		Strs("outputs", e.OutputNames()).
		Int("workers", options.Workers).
		Msg("Engine created")
	return e, nil
}

func (e *Engine) declaredColumns(declared []*model.OutputField) {
	for _, field := range declared {
		if !e.options.SupplementOutput && field.IsSupplementary() {
			continue
		}
		e.declared = append(e.declared, field)
		e.columns = append(e.columns, column{name: e.rename(field.Name), field: field})
	}
}

func (e *Engine) defaultColumns() {
	names := e.options.OutputNames
	target := e.doc.Model.Base().TargetName()
	predicted := "predicted"
	if len(names.PredictedValue) > 0 {
		predicted = expand(names.PredictedValue, target)
	} else if len(target) > 0 {
		predicted += "_" + target
	}
	e.columns = append(e.columns, column{name: e.rename(predicted), predicted: true})
	for _, class := range e.doc.Classes() {
		template := names.Probability
		if !strings.Contains(template, "%s") {
			if len(template) == 0 {
				template = "probability"
			}
			template += "_%s"
		}
		e.columns = append(e.columns, column{
			name:  e.rename(expand(template, class)),
			class: class,
		})
	}
}

// expand instantiates a name template. A template without "%s" is used as
// is.
func expand(template, value string) string {
	if strings.Contains(template, "%s") {
		return fmt.Sprintf(template, value)
	}
	return template
}

func (e *Engine) rename(name string) string {
	if renamed, ok := e.options.OutputNames.Rename[name]; ok {
		return renamed
	}
	return name
}

// Predict implements engine.Engine.
func (e *Engine) Predict(record example.Record) (example.Record, error) {
	if err := e.features.Check(record); err != nil {
		return example.Record{}, err
	}
	result, err := e.doc.Evaluate(record.Map())
	if err != nil {
		return example.Record{}, err
	}
	prediction := example.Record{
		Names:  make([]string, len(e.columns)),
		Values: make([]interface{}, len(e.columns)),
	}
	for i := range e.columns {
		prediction.Names[i] = e.columns[i].name
		prediction.Values[i] = e.columns[i].value(result).Interface()
	}
	return prediction, nil
}

// PredictBatch implements engine.Engine.
func (e *Engine) PredictBatch(ctx context.Context, records []example.Record) []example.Slot {
	slots := make([]example.Slot, len(records))
	var group errgroup.Group
	group.SetLimit(e.options.Workers)
	for i := range records {
		if err := ctx.Err(); err != nil {
			slots[i].Err = err
			continue
		}
		i := i
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				slots[i].Err = err
				return nil
			}
			slots[i].Record, slots[i].Err = e.Predict(records[i])
			return nil
		})
	}
	group.Wait()
	return slots
}

// Features implements engine.Engine.
func (e *Engine) Features() *example.Features { return e.features }

// OutputNames implements engine.Engine.
func (e *Engine) OutputNames() []string {
	names := make([]string, len(e.columns))
	for i, c := range e.columns {
		names[i] = c.name
	}
	return names
}

// OutputFields implements engine.Engine.
func (e *Engine) OutputFields() []*model.OutputField { return e.declared }

// InputNames implements engine.Engine.
func (e *Engine) InputNames() []string { return e.features.InputNames }

// InputFields implements engine.Engine.
func (e *Engine) InputFields() []*dataspec.Field { return e.doc.InputFields() }

// TargetNames implements engine.Engine.
func (e *Engine) TargetNames() []string { return e.doc.TargetNames() }

// TargetFields implements engine.Engine.
func (e *Engine) TargetFields() []*dataspec.Field { return e.doc.TargetFields() }

// Classes implements engine.Engine.
func (e *Engine) Classes() []string { return e.doc.Classes() }

// Document implements engine.Engine.
func (e *Engine) Document() *model.Document { return e.doc }
