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


package serving

// Check the predictions of the engines against the labels of small datasets.

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/google/yggdrasil-pmml/model"
	"github.com/google/yggdrasil-pmml/model/io/canonical"
	"github.com/google/yggdrasil-pmml/serving/engine"
	"github.com/google/yggdrasil-pmml/serving/example"
	"github.com/google/yggdrasil-pmml/utils/status"
	"github.com/google/yggdrasil-pmml/utils/test"
)

const testdata = "../testdata"

// readCsvFile returns the fields of a csv file.
func readCsvFile(path string) ([][]string, error) {
	fileHandle, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { fileHandle.Close() }()
	return csv.NewReader(fileHandle).ReadAll()
}

func loadDocument(t *testing.T, name string) *model.Document {
	t.Helper()
	doc, err := canonical.LoadFile(context.Background(), fmt.Sprintf("%s/%s", testdata, name))
	if err != nil {
		t.Fatalf("Cannot load model. %v", err)
	}
	return doc
}

func newEngine(t *testing.T, name string, options engine.Options) engine.Engine {
	t.Helper()
	e, err := NewEngineWithOptions(loadDocument(t, name), options)
	if err != nil {
		t.Fatalf("Cannot create engine. %v", err)
	}
	return e
}

func record(values ...interface{}) example.Record {
	var r example.Record
	for i := 0; i+1 < len(values); i += 2 {
		r.Set(values[i].(string), values[i+1])
	}
	return r
}

// testEngine scores a csv dataset and checks the predicted column against the
// label column.
func testEngine(t *testing.T, e engine.Engine, datasetPath string, predicted string, label string) {
	dataset, err := readCsvFile(datasetPath)
	if err != nil {
		t.Fatal(err)
	}
	header, rows := dataset[0], dataset[1:]
	labelIdx := -1
	for i, name := range header {
		if name == label {
			labelIdx = i
		}
	}
	if labelIdx == -1 {
		t.Fatalf("No column %q", label)
	}

	batch := example.NewBatch(len(rows), e.Features())
	for i, row := range rows {
		if err := batch.SetFromFields(i, header, row); err != nil {
			t.Fatal(err)
		}
	}
	slots := e.PredictBatch(context.Background(), batch.Records)
	test.CheckEq(t, len(slots), len(rows), "")
	for i, slot := range slots {
		if slot.Err != nil {
			t.Fatalf("Row %d: %v", i, slot.Err)
		}
		value, ok := slot.Record.Get(predicted)
		if !ok {
			t.Fatalf("Row %d has no %q", i, predicted)
		}
		test.CheckEq(t, value, rows[i][labelIdx], fmt.Sprintf("row %d", i))
	}
}

func TestIrisTree(t *testing.T) {
	e := newEngine(t, "single_iris_dectree.xml", engine.DefaultOptions())
	test.CheckEq(t, e.InputNames(), []string{"sepal_length", "sepal_width", "petal_length", "petal_width"}, "")
	test.CheckEq(t, e.TargetNames(), []string{"class"}, "")
	test.CheckEq(t, e.Classes(), []string{"Iris-setosa", "Iris-versicolor", "Iris-virginica"}, "")
	test.CheckEq(t, e.OutputNames(), []string{"predicted_class", "probability",
		"probability_Iris-setosa", "probability_Iris-versicolor", "probability_Iris-virginica", "node_id"}, "")
	testEngine(t, e, testdata+"/iris.csv", "predicted_class", "class")
}

func TestIrisTreePrediction(t *testing.T) {
	e := newEngine(t, "single_iris_dectree.xml", engine.DefaultOptions())
	prediction, err := e.Predict(record("sepal_length", 5.1, "sepal_width", 3.5, "petal_length", 1.4, "petal_width", 0.2))
	require.NoError(t, err)
	test.CheckEq(t, prediction, record(
		"predicted_class", "Iris-setosa",
		"probability", 1.0,
		"probability_Iris-setosa", 1.0,
		"probability_Iris-versicolor", 0.0,
		"probability_Iris-virginica", 0.0,
		"node_id", "1"), "")
}

func TestWithoutSupplementOutput(t *testing.T) {
	options := engine.DefaultOptions()
	options.SupplementOutput = false
	e := newEngine(t, "single_iris_dectree.xml", options)
	test.CheckEq(t, e.OutputNames(), []string{"predicted_class", "probability",
		"probability_Iris-setosa", "probability_Iris-versicolor", "probability_Iris-virginica"}, "")
	test.CheckEq(t, len(e.OutputFields()), 5, "")
}

func TestDefaultOutputs(t *testing.T) {
	e := newEngine(t, "softmax_regression.xml", engine.DefaultOptions())
	test.CheckEq(t, e.OutputNames(), []string{"predicted_class", "probability_a", "probability_b", "probability_c"}, "")
	if e.OutputFields() != nil {
		t.Fatalf("Unexpected declared outputs %v", e.OutputFields())
	}

	prediction, err := e.Predict(record("x", 0.0))
	require.NoError(t, err)
	value, _ := prediction.Get("predicted_class")
	test.CheckEq(t, value, "b", "")
	value, _ = prediction.Get("probability_a")
	test.CheckNear(t, value.(float64), 1/(2+2.718281828459045), 1e-12, "")
}

func TestRenamedOutputs(t *testing.T) {
	options := engine.DefaultOptions()
	options.OutputNames = engine.OutputNames{
		PredictedValue: "PredictedValue",
		Probability:    "P(%s)",
		Rename:         map[string]string{"P(c)": "other"},
	}
	e := newEngine(t, "softmax_regression.xml", options)
	test.CheckEq(t, e.OutputNames(), []string{"PredictedValue", "P(a)", "P(b)", "other"}, "")
}

func TestBatchWithError(t *testing.T) {
	e := newEngine(t, "linear_regression.xml", engine.DefaultOptions())
	records := []example.Record{
		record("x1", 1.0, "x2", 2.0, "color", "red"),
		record("x2", 2.0, "color", "red"),
		record("unknown", 1.0),
		record("x1", 1.0, "color", "blue"),
	}
	slots := e.PredictBatch(context.Background(), records)
	test.CheckEq(t, len(slots), 4, "")

	require.NoError(t, slots[0].Err)
	test.CheckEq(t, slots[0].Record.Names, []string{"predicted_y", "double_y"}, "")
	value, _ := slots[0].Record.Get("predicted_y")
	test.CheckNear(t, value.(float64), 9.7, 1e-9, "")

	if !errors.Is(slots[1].Err, status.ErrEvaluation) {
		t.Fatalf("Expected an evaluation error, got %v", slots[1].Err)
	}
	if !errors.Is(slots[2].Err, status.ErrInputFormat) {
		t.Fatalf("Expected an input format error, got %v", slots[2].Err)
	}

	require.NoError(t, slots[3].Err)
	value, _ = slots[3].Record.Get("double_y")
	test.CheckNear(t, value.(float64), 12, 1e-9, "")
}

func TestBatchMatchesSequential(t *testing.T) {
	options := engine.DefaultOptions()
	options.Workers = 3
	e := newEngine(t, "single_iris_dectree.xml", options)
	var records []example.Record
	for i := 0; i < 100; i++ {
		records = append(records, record(
			"sepal_length", 5.0, "sepal_width", 3.0, "petal_length", 1.5, "petal_width", float64(i)/40))
	}
	slots := e.PredictBatch(context.Background(), records)
	for i, r := range records {
		want, err := e.Predict(r)
		require.NoError(t, err)
		require.NoError(t, slots[i].Err)
		test.CheckEq(t, slots[i].Record, want, fmt.Sprintf("record %d", i))
	}
}

func TestBatchCancelled(t *testing.T) {
	e := newEngine(t, "single_iris_dectree.xml", engine.DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slots := e.PredictBatch(ctx, []example.Record{record("petal_width", 0.1), record("petal_width", 2.0)})
	for i, slot := range slots {
		if !errors.Is(slot.Err, context.Canceled) {
			t.Fatalf("Slot %d: expected a cancellation, got %v", i, slot.Err)
		}
	}
}

func TestPositional(t *testing.T) {
	e := newEngine(t, "single_iris_dectree.xml", engine.DefaultOptions())
	r, err := e.Features().FromPositional([]interface{}{7.0, 3.2, 4.7, 1.4})
	require.NoError(t, err)
	prediction, err := e.Predict(r)
	require.NoError(t, err)
	value, _ := prediction.Get("node_id")
	test.CheckEq(t, value, "3", "")

	_, err = e.Features().FromPositional([]interface{}{7.0})
	if !errors.Is(err, status.ErrInputFormat) {
		t.Fatalf("Expected an input format error, got %v", err)
	}
}

func TestNoModel(t *testing.T) {
	_, err := NewEngine(&model.Document{})
	if !errors.Is(err, status.ErrSchema) {
		t.Fatalf("Expected a schema error, got %v", err)
	}
}
