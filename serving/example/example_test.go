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


package example

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/utils/status"
)

func testFeatures(t *testing.T) *Features {
	dict, err := dataspec.NewDataDictionary([]*dataspec.Field{
		{Name: "a", DataType: dataspec.TypeDouble},
		{Name: "b", DataType: dataspec.TypeString},
		{Name: "label", DataType: dataspec.TypeString},
	})
	require.NoError(t, err)
	return &Features{
		InputNames: []string{"a", "b"},
		Inputs:     map[string]*dataspec.Field{"a": dict.Fields[0], "b": dict.Fields[1]},
		dictionary: dict,
	}
}

func TestRecordOrder(t *testing.T) {
	var r Record
	r.Set("z", 1.0)
	r.Set("a", "x")
	r.Set("z", 2.0)
	assert.Equal(t, []string{"z", "a"}, r.Names)
	value, ok := r.Get("z")
	assert.True(t, ok)
	assert.Equal(t, 2.0, value)
	_, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, dataspec.Record{"z": 2.0, "a": "x"}, r.Map())
}

func TestRecordJSON(t *testing.T) {
	var r Record
	require.NoError(t, json.Unmarshal([]byte(`{"b": "red", "a": 1.5, "c": null, "d": [1, 2]}`), &r))
	assert.Equal(t, []string{"b", "a", "c", "d"}, r.Names)
	assert.Equal(t, []interface{}{"red", 1.5, nil, []interface{}{1.0, 2.0}}, r.Values)

	r.Set("e", math.Inf(1))
	encoded, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"b":"red","a":1.5,"c":null,"d":[1,2],"e":null}`, string(encoded))

	err = json.Unmarshal([]byte(`[1, 2]`), &r)
	assert.True(t, errors.Is(err, status.ErrInputFormat), "got %v", err)
}

func TestFromMap(t *testing.T) {
	r := FromMap(map[string]interface{}{"b": 2, "a": 1})
	assert.Equal(t, []string{"a", "b"}, r.Names)
	assert.Equal(t, []interface{}{1, 2}, r.Values)
}

func TestCheck(t *testing.T) {
	features := testFeatures(t)
	assert.NoError(t, features.Check(FromMap(map[string]interface{}{"a": 1.0, "other": 2})))
	err := features.Check(FromMap(map[string]interface{}{"other": 2}))
	assert.True(t, errors.Is(err, status.ErrInputFormat), "got %v", err)
	err = features.Check(Record{})
	assert.True(t, errors.Is(err, status.ErrInputFormat), "got %v", err)
}

func TestFromPositional(t *testing.T) {
	features := testFeatures(t)
	r, err := features.FromPositional([]interface{}{1.0, "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, r.Names)
	_, err = features.FromPositional([]interface{}{1.0, "x", 3})
	assert.True(t, errors.Is(err, status.ErrInputFormat), "got %v", err)
}

func TestSetFromFields(t *testing.T) {
	batch := NewBatch(2, testFeatures(t))
	assert.Equal(t, 2, batch.NumAllocatedExamples())
	require.NoError(t, batch.SetFromFields(0, []string{"a", "b", "ignored"}, []string{"0.5", "UK", "1"}))
	require.NoError(t, batch.SetFromFields(1, []string{"a", "b", "label"}, []string{"NA", "", "yes"}))

	assert.Equal(t, Record{Names: []string{"a", "b"}, Values: []interface{}{"0.5", "UK"}}, batch.Records[0])
	assert.Equal(t, Record{Names: []string{"a", "b", "label"}, Values: []interface{}{nil, nil, "yes"}}, batch.Records[1])

	err := batch.SetFromFields(0, []string{"a"}, []string{"1", "2"})
	assert.True(t, errors.Is(err, status.ErrInputFormat), "got %v", err)

	batch.Clear()
	assert.Equal(t, 0, batch.Records[0].Len())
}
