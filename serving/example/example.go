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


// Package example defines the records fed to and returned by an engine, and
// the description of the input fields of a model.
package example

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/model"
	"github.com/google/yggdrasil-pmml/utils/status"
)

// Features contains the definition of the input fields of a model.
type Features struct {
	// InputNames are the names of the active fields, in mining schema order.
	// Positional inputs are matched against this order.
	InputNames []string

	// Inputs indexes the active fields by name.
	Inputs map[string]*dataspec.Field

	dictionary *dataspec.DataDictionary
}

// NewFeatures creates the input definition of a document.
func NewFeatures(doc *model.Document) *Features {
	features := &Features{
		InputNames: doc.InputNames(),
		Inputs:     map[string]*dataspec.Field{},
		dictionary: doc.DataDictionary,
	}
	for _, field := range doc.InputFields() {
		features.Inputs[field.Name] = field
	}
	return features
}

// NumFeatures is the number of active fields.
func (f *Features) NumFeatures() int {
	return len(f.InputNames)
}

// Known tells if a name is a field of the data dictionary.
func (f *Features) Known(name string) bool {
	if f.dictionary == nil {
		_, ok := f.Inputs[name]
		return ok
	}
	_, ok := f.dictionary.Field(name)
	return ok
}

// FromPositional creates a record from values listed in the order of
// "InputNames".
func (f *Features) FromPositional(values []interface{}) (Record, error) {
	if len(values) != len(f.InputNames) {
		return Record{}, status.InputFormatf("expecting %d positional values %v, got %d",
			len(f.InputNames), f.InputNames, len(values))
	}
	record := Record{
		Names:  append([]string(nil), f.InputNames...),
		Values: append([]interface{}(nil), values...),
	}
	return record, nil
}

// Check makes sure the active fields of the model can be located in a
// record. A record that shares no name with the active fields is rejected.
func (f *Features) Check(record Record) error {
	if len(f.InputNames) == 0 {
		return nil
	}
	for _, name := range record.Names {
		if _, ok := f.Inputs[name]; ok {
			return nil
		}
	}
	return status.InputFormatf("none of the input fields %v found in the record fields %v",
		f.InputNames, record.Names)
}

// Record is an ordered mapping from field names to values. Values are nil
// (missing), string, float64, int64, bool, or anything accepted by
// dataspec.ParseValue.
type Record struct {
	Names  []string
	Values []interface{}
}

// FromMap creates a record from a map. Names are sorted.
func FromMap(values map[string]interface{}) Record {
	var record Record
	for name := range values {
		record.Names = append(record.Names, name)
	}
	sort.Strings(record.Names)
	record.Values = make([]interface{}, len(record.Names))
	for i, name := range record.Names {
		record.Values[i] = values[name]
	}
	return record
}

// Len is the number of fields.
func (r Record) Len() int { return len(r.Names) }

// Set sets the value of a field. The field keeps its position if already
// present.
func (r *Record) Set(name string, value interface{}) {
	for i, existing := range r.Names {
		if existing == name {
			r.Values[i] = value
			return
		}
	}
	r.Names = append(r.Names, name)
	r.Values = append(r.Values, value)
}

// Get returns the value of a field.
func (r Record) Get(name string) (interface{}, bool) {
	for i, existing := range r.Names {
		if existing == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map converts the record into the unordered form used for scoring.
func (r Record) Map() dataspec.Record {
	values := make(dataspec.Record, len(r.Names))
	for i, name := range r.Names {
		values[name] = r.Values[i]
	}
	return values
}

// MarshalJSON encodes the record as a JSON object, keeping the order of the
// fields. Infinite numbers are encoded as null.
func (r Record) MarshalJSON() ([]byte, error) {
	var buffer bytes.Buffer
	buffer.WriteByte('{')
	for i, name := range r.Names {
		if i > 0 {
			buffer.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buffer.Write(key)
		buffer.WriteByte(':')
		value := r.Values[i]
		if f, ok := value.(float64); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
			value = nil
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		buffer.Write(encoded)
	}
	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the order of the fields.
func (r *Record) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	token, err := decoder.Token()
	if err != nil {
		return status.InputFormatf("invalid record: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return status.InputFormatf("a record should be a JSON object, got %v", token)
	}
	r.Names = r.Names[:0]
	r.Values = r.Values[:0]
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return status.InputFormatf("invalid record: %w", err)
		}
		name, _ := token.(string)
		var value interface{}
		if err := decoder.Decode(&value); err != nil {
			return status.InputFormatf("invalid value for %q: %w", name, err)
		}
		r.Set(name, value)
	}
	return nil
}

// Slot is the outcome of the scoring of one record of a batch. Exactly one of
// "Record" and "Err" is set.
type Slot struct {
	Record Record
	Err    error
}

// Batch is a set of records read from a tabular source.
type Batch struct {
	features *Features
	Records  []Record
}

// NewBatch allocates a batch of empty records.
func NewBatch(numExamples int, features *Features) *Batch {
	return &Batch{
		features: features,
		Records:  make([]Record, numExamples),
	}
}

// NumAllocatedExamples is the number of records in the batch.
func (batch *Batch) NumAllocatedExamples() int {
	return len(batch.Records)
}

// Clear empties all the records.
func (batch *Batch) Clear() {
	for i := range batch.Records {
		batch.Records[i] = Record{}
	}
}

// SetFromFields sets all the fields of a record from a csv-like field and
// header. Columns that are not fields of the document are ignored.
//
// Empty field and fields with the value "NA" are considered "missing values".
//
// Example:
//
//	examples.SetFromFields(0, ["a","b","c"], ["0.5","UK","NA"])
func (batch *Batch) SetFromFields(exampleIdx int, header []string, values []string) error {

	// Representation of missing values.
	const missingSymbol1 = ""
	const missingSymbol2 = "NA"

	if len(header) != len(values) {
		return status.InputFormatf("row %d has %d fields while the header has %d",
			exampleIdx, len(values), len(header))
	}
	record := &batch.Records[exampleIdx]
	for fieldIdx, key := range header {
		if !batch.features.Known(key) {
			// This column is not used by the model. We ignore it.
			continue
		}
		rawValue := strings.TrimSpace(values[fieldIdx])
		if rawValue == missingSymbol1 || rawValue == missingSymbol2 {
			record.Set(key, nil)
			continue
		}
		record.Set(key, rawValue)
	}
	return nil
}

// CopyFrom copies records [beginIdx, endIdx) of another batch.
func (batch *Batch) CopyFrom(src *Batch, beginIdx int, endIdx int) {
	copy(batch.Records, src.Records[beginIdx:endIdx])
}
