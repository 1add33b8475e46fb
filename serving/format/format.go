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


// Package format converts the JSON and protobuf representations of records
// to and from the engine records.
//
// PredictJSON accepts the following shapes, and answers in the same shape:
//
//	{"x": 1, "y": "a"}                               A record.
//	[{"x": 1, "y": "a"}, {"x": 2}]                   A list of records.
//	{"columns": ["x", "y"], "data": [[1, "a"]]}      A table.
//	[1, "a"]                                         Positional values.
//	[[1, "a"], [2, null]]                            A list of positional values.
//
// Positional values follow the order of the input names of the engine. In a
// batch, a record that cannot be scored is replaced by {"error": "..."}.
package format

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/google/yggdrasil-pmml/serving/engine"
	"github.com/google/yggdrasil-pmml/serving/example"
	"github.com/google/yggdrasil-pmml/utils/status"
)

// Split is the table shape of a batch.
type Split struct {
	Columns []string        `json:"columns"`
	Data    [][]interface{} `json:"data"`
	// Errors is aligned with Data. Only set in answers, when a row fails.
	Errors []*string `json:"errors,omitempty"`
}

type failure struct {
	Error string `json:"error"`
}

// PredictJSON scores a JSON input. An input of the wrong shape returns an
// InputFormatError. Errors of single records are returned, errors of batch
// records are reported in the answer.
func PredictJSON(ctx context.Context, e engine.Engine, input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if len(trimmed) == 0 {
		return "", status.InputFormatf("empty input")
	}
	var answer interface{}
	var err error
	switch trimmed[0] {
	case '{':
		answer, err = predictObject(ctx, e, []byte(trimmed))
	case '[':
		answer, err = predictList(ctx, e, []byte(trimmed))
	default:
		return "", status.InputFormatf("expecting a JSON object or list, got %q", abbreviate(trimmed))
	}
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(answer)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func predictObject(ctx context.Context, e engine.Engine, input []byte) (interface{}, error) {
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(input, &shape); err != nil {
		return nil, status.InputFormatf("invalid JSON: %w", err)
	}
	_, hasColumns := shape["columns"]
	_, hasData := shape["data"]
	if hasColumns && hasData && len(shape) <= 3 {
		var split Split
		if err := json.Unmarshal(input, &split); err != nil {
			return nil, status.InputFormatf("invalid table: %w", err)
		}
		return PredictSplit(ctx, e, split), nil
	}
	var record example.Record
	if err := json.Unmarshal(input, &record); err != nil {
		return nil, err
	}
	return e.Predict(record)
}

func predictList(ctx context.Context, e engine.Engine, input []byte) (interface{}, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(input, &items); err != nil {
		return nil, status.InputFormatf("invalid JSON: %w", err)
	}
	if len(items) == 0 {
		return []interface{}{}, nil
	}
	switch first := strings.TrimSpace(string(items[0])); {
	case strings.HasPrefix(first, "{"):
		records := make([]example.Record, len(items))
		errs := make([]error, len(items))
		for i, item := range items {
			errs[i] = json.Unmarshal(item, &records[i])
		}
		slots := predictValid(ctx, e, records, errs)
		answer := make([]interface{}, len(slots))
		for i, slot := range slots {
			answer[i] = recordOrFailure(slot)
		}
		return answer, nil

	case strings.HasPrefix(first, "["):
		records := make([]example.Record, len(items))
		errs := make([]error, len(items))
		for i, item := range items {
			var values []interface{}
			if err := json.Unmarshal(item, &values); err != nil {
				errs[i] = status.InputFormatf("row %d is not a list of values", i)
				continue
			}
			records[i], errs[i] = e.Features().FromPositional(values)
		}
		slots := predictValid(ctx, e, records, errs)
		answer := make([]interface{}, len(slots))
		for i, slot := range slots {
			if slot.Err != nil {
				answer[i] = failure{Error: slot.Err.Error()}
				continue
			}
			answer[i] = slot.Record.Values
		}
		return answer, nil
	}

	var values []interface{}
	if err := json.Unmarshal(input, &values); err != nil {
		return nil, status.InputFormatf("invalid positional values: %w", err)
	}
	record, err := e.Features().FromPositional(values)
	if err != nil {
		return nil, err
	}
	prediction, err := e.Predict(record)
	if err != nil {
		return nil, err
	}
	return prediction.Values, nil
}

// PredictSplit scores the rows of a table.
func PredictSplit(ctx context.Context, e engine.Engine, split Split) Split {
	records := make([]example.Record, len(split.Data))
	errs := make([]error, len(split.Data))
	for i, row := range split.Data {
		if len(row) != len(split.Columns) {
			errs[i] = status.InputFormatf("row %d has %d values for %d columns", i, len(row), len(split.Columns))
			continue
		}
		records[i] = example.Record{
			Names:  append([]string(nil), split.Columns...),
			Values: row,
		}
	}
	slots := predictValid(ctx, e, records, errs)
	answer := Split{
		Columns: e.OutputNames(),
		Data:    make([][]interface{}, len(slots)),
	}
	failed := false
	errors := make([]*string, len(slots))
	for i, slot := range slots {
		if slot.Err != nil {
			message := slot.Err.Error()
			errors[i] = &message
			failed = true
			continue
		}
		answer.Data[i] = slot.Record.Values
	}
	if failed {
		answer.Errors = errors
	}
	return answer
}

// predictValid scores the records without error.
func predictValid(ctx context.Context, e engine.Engine, records []example.Record, errs []error) []example.Slot {
	var valid []example.Record
	var index []int
	for i := range records {
		if errs[i] == nil {
			valid = append(valid, records[i])
			index = append(index, i)
		}
	}
	scored := e.PredictBatch(ctx, valid)
	slots := make([]example.Slot, len(records))
	for i, err := range errs {
		slots[i].Err = err
	}
	for j, i := range index {
		slots[i] = scored[j]
	}
	return slots
}

func recordOrFailure(slot example.Slot) interface{} {
	if slot.Err != nil {
		return failure{Error: slot.Err.Error()}
	}
	return slot.Record
}

func abbreviate(s string) string {
	const maxLength = 32
	if len(s) > maxLength {
		return s[:maxLength] + "..."
	}
	return s
}

// ToStruct converts a record to a protobuf Struct. Dates are converted to
// RFC 3339 strings.
func ToStruct(record example.Record) (*structpb.Struct, error) {
	values := make(map[string]interface{}, record.Len())
	for i, name := range record.Names {
		values[name] = protoCompatible(record.Values[i])
	}
	s, err := structpb.NewStruct(values)
	if err != nil {
		return nil, status.InputFormatf("cannot convert the record: %w", err)
	}
	return s, nil
}

func protoCompatible(value interface{}) interface{} {
	switch v := value.(type) {
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case []interface{}:
		items := make([]interface{}, len(v))
		for i, item := range v {
			items[i] = protoCompatible(item)
		}
		return items
	}
	return value
}

// FromStruct converts a protobuf Struct to a record. Fields are sorted by
// name.
func FromStruct(s *structpb.Struct) example.Record {
	return example.FromMap(s.AsMap())
}

// PredictStruct scores a record given as a protobuf Struct.
func PredictStruct(e engine.Engine, s *structpb.Struct) (*structpb.Struct, error) {
	prediction, err := e.Predict(FromStruct(s))
	if err != nil {
		return nil, err
	}
	return ToStruct(prediction)
}
