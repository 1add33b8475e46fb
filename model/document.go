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

package model

import (
	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/expression"
)

// Application is the software that produced a document.
type Application struct {
	Name    string
	Version string
}

// Header is the <Header> of a document.
type Header struct {
	Copyright    string
	Description  string
	ModelVersion string
	Application  Application
}

// Document is a loaded PMML document. It is immutable and can be shared by
// concurrent evaluations.
type Document struct {
	// Version of PMML, e.g. "4.1".
	Version         string
	Header          Header
	DataDictionary  *dataspec.DataDictionary
	Transformations *expression.Transformations
	// Model is the first scorable model of the document.
	Model Model
}

// Evaluate scores a record. Absent fields are missing. No state is kept
// between calls.
func (d *Document) Evaluate(record dataspec.Record) (*Result, error) {
	root := expression.NewContext(nil)
	if d.Transformations != nil {
		root.DefineFunctions(d.Transformations.Functions)
		root.Define(d.Transformations.Fields)
	}
	for _, field := range d.DataDictionary.Fields {
		root.Bind(field.Name, dataspec.ParseValue(record[field.Name], field.DataType))
	}
	return EvaluateIn(d.Model, root)
}

// InputFields returns the active fields of the model.
func (d *Document) InputFields() []*dataspec.Field {
	var fields []*dataspec.Field
	for _, field := range d.Model.Base().Schema.Active() {
		fields = append(fields, field.Field)
	}
	return fields
}

// InputNames returns the names of the active fields of the model.
func (d *Document) InputNames() []string {
	return names(d.InputFields())
}

// TargetFields returns the predicted fields of the model.
func (d *Document) TargetFields() []*dataspec.Field {
	var fields []*dataspec.Field
	for _, field := range d.Model.Base().Schema.Targets() {
		fields = append(fields, field.Field)
	}
	return fields
}

// TargetNames returns the names of the predicted fields of the model.
func (d *Document) TargetNames() []string {
	return names(d.TargetFields())
}

// Classes returns the classes of a classification model, or nil.
func (d *Document) Classes() []string {
	return d.Model.Base().Classes()
}

// OutputFields returns the final output fields declared by the model.
func (d *Document) OutputFields() []*OutputField {
	output := d.Model.Base().Output
	if output == nil {
		return nil
	}
	var fields []*OutputField
	for _, field := range output.Fields {
		if field.IsFinal {
			fields = append(fields, field)
		}
	}
	return fields
}

func names(fields []*dataspec.Field) []string {
	names := make([]string, len(fields))
	for i, field := range fields {
		names[i] = field.Name
	}
	return names
}
