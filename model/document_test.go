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

package model_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/model"
	"github.com/google/yggdrasil-pmml/model/io/canonical"
	"github.com/google/yggdrasil-pmml/utils/status"
)

func TestDocumentMetadata(t *testing.T) {
	doc, err := canonical.LoadFile(context.Background(), "../testdata/single_iris_dectree.xml")
	require.NoError(t, err)

	assert.Equal(t, []string{"sepal_length", "sepal_width", "petal_length", "petal_width"}, doc.InputNames())
	assert.Equal(t, []string{"class"}, doc.TargetNames())
	assert.Equal(t, []string{"Iris-setosa", "Iris-versicolor", "Iris-virginica"}, doc.Classes())
	assert.Equal(t, model.Classification, doc.Model.Base().Function)

	var names []string
	for _, field := range doc.OutputFields() {
		names = append(names, field.Name)
	}
	assert.Equal(t, []string{"predicted_class", "probability", "probability_Iris-setosa",
		"probability_Iris-versicolor", "probability_Iris-virginica", "node_id"}, names)
	assert.True(t, doc.Model.Base().Output.Field("node_id").IsSupplementary())
	assert.False(t, doc.Model.Base().Output.Field("probability").IsSupplementary())

	describer, ok := doc.Model.(model.Describer)
	require.True(t, ok)
	assert.Equal(t, 3, describer.Describe()["leafs"])
}

// transformed uses a global derived field, a user function and a local
// derived field.
const transformed = `<PMML version="4.4">
  <DataDictionary>
    <DataField name="celsius" optype="continuous" dataType="double"/>
    <DataField name="label" optype="categorical" dataType="string">
      <Value value="cold" displayValue="Cold weather"/>
      <Value value="hot" displayValue="Hot weather"/>
    </DataField>
  </DataDictionary>
  <TransformationDictionary>
    <DefineFunction name="toFahrenheit" optype="continuous" dataType="double">
      <ParameterField name="c" dataType="double"/>
      <Apply function="+">
        <Apply function="*"><FieldRef field="c"/><Constant>1.8</Constant></Apply>
        <Constant>32</Constant>
      </Apply>
    </DefineFunction>
    <DerivedField name="fahrenheit" optype="continuous" dataType="double">
      <Apply function="toFahrenheit"><FieldRef field="celsius"/></Apply>
    </DerivedField>
  </TransformationDictionary>
  <RegressionModel functionName="classification" normalizationMethod="logit">
    <MiningSchema>
      <MiningField name="celsius"/>
      <MiningField name="label" usageType="predicted"/>
    </MiningSchema>
    <Output>
      <OutputField name="predicted_label" feature="predictedValue"/>
      <OutputField name="display" feature="predictedDisplayValue"/>
      <OutputField name="hot" feature="probability" value="hot" dataType="double"/>
      <OutputField name="residual" feature="residual" dataType="double"/>
      <OutputField name="is_hot" feature="transformedValue" dataType="boolean">
        <Apply function="greaterThan"><FieldRef field="hot"/><Constant>0.5</Constant></Apply>
      </OutputField>
    </Output>
    <LocalTransformations>
      <DerivedField name="warmth" optype="continuous" dataType="double">
        <Apply function="-"><FieldRef field="fahrenheit"/><Constant>68</Constant></Apply>
      </DerivedField>
    </LocalTransformations>
    <RegressionTable intercept="0" targetCategory="hot">
      <NumericPredictor name="warmth" coefficient="1"/>
    </RegressionTable>
    <RegressionTable intercept="0" targetCategory="cold"/>
  </RegressionModel>
</PMML>`

func TestTransformationsAndOutputs(t *testing.T) {
	doc, err := canonical.LoadString(transformed)
	require.NoError(t, err)

	// 30C is 86F: warmth 18.
	result, err := doc.Evaluate(dataspec.Record{"celsius": 30, "label": "hot"})
	require.NoError(t, err)

	get := func(name string) dataspec.Value {
		value, ok := result.Output(name)
		require.True(t, ok, name)
		return value
	}
	assert.Equal(t, "hot", get("predicted_label").Text())
	assert.Equal(t, "Hot weather", get("display").Text())
	hot, _ := get("hot").Float()
	assert.InDelta(t, 1, hot, 1e-6)
	residual, _ := get("residual").Float()
	assert.InDelta(t, 1-hot, residual, 1e-12)
	assert.Equal(t, dataspec.Boolean(true), get("is_hot"))

	// 20C is 68F: warmth 0, both classes are equally likely.
	result, err = doc.Evaluate(dataspec.Record{"celsius": 20})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, result.Probabilities[0], 1e-12)
	missingResidual, ok := result.Output("residual")
	require.True(t, ok)
	assert.True(t, missingResidual.IsMissing())
}

func TestLoadTimeReferenceErrors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		old     string
		new     string
		message string
	}{
		{"local field shadows derived field", `<DerivedField name="warmth"`, `<DerivedField name="fahrenheit"`, `redefines field "fahrenheit"`},
		{"local field shadows data field", `<DerivedField name="warmth"`, `<DerivedField name="celsius"`, `redefines field "celsius"`},
		{"unknown residual target", `feature="residual"`, `feature="residual" targetField="unknown"`, `unknown field "unknown"`},
	} {
		_, err := canonical.LoadString(strings.Replace(transformed, tc.old, tc.new, 1))
		require.Error(t, err, tc.name)
		assert.True(t, errors.Is(err, status.ErrSchema), "%s: got %v", tc.name, err)
		assert.Contains(t, err.Error(), tc.message, tc.name)
	}
}

func TestResidualTargetField(t *testing.T) {
	doc, err := canonical.LoadString(strings.Replace(transformed, `feature="residual"`, `feature="residual" targetField="label"`, 1))
	require.NoError(t, err)
	result, err := doc.Evaluate(dataspec.Record{"celsius": 30, "label": "hot"})
	require.NoError(t, err)
	residual, ok := result.Output("residual")
	require.True(t, ok)
	assert.False(t, residual.IsMissing())
}

func TestTargetPriors(t *testing.T) {
	doc, err := canonical.LoadString(`<PMML version="4.4">
  <DataDictionary>
    <DataField name="x" optype="continuous" dataType="double"/>
    <DataField name="class" optype="categorical" dataType="string">
      <Value value="A"/><Value value="B"/>
    </DataField>
  </DataDictionary>
  <TreeModel functionName="classification" missingValueStrategy="nullPrediction">
    <MiningSchema>
      <MiningField name="x"/>
      <MiningField name="class" usageType="predicted"/>
    </MiningSchema>
    <Targets>
      <Target field="class">
        <TargetValue value="A" priorProbability="0.25"/>
        <TargetValue value="B" priorProbability="0.75"/>
      </Target>
    </Targets>
    <Node score="A">
      <True/>
      <Node score="A"><SimplePredicate field="x" operator="lessThan" value="0"/></Node>
      <Node score="B"><SimplePredicate field="x" operator="greaterOrEqual" value="0"/></Node>
    </Node>
  </TreeModel>
</PMML>`)
	require.NoError(t, err)

	result, err := doc.Evaluate(dataspec.Record{})
	require.NoError(t, err)
	assert.Equal(t, "B", result.Predicted.Text())
	assert.Equal(t, []float64{0.25, 0.75}, result.Probabilities)

	result, err = doc.Evaluate(dataspec.Record{"x": -1})
	require.NoError(t, err)
	assert.Equal(t, "A", result.Predicted.Text())
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 1, model.Argmax([]float64{0.1, 0.5, 0.4}))
	assert.Equal(t, 0, model.Argmax([]float64{0.5, 0.5}))
}
