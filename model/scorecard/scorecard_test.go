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

package scorecard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/model"
	"github.com/google/yggdrasil-pmml/model/io/canonical"
	"github.com/google/yggdrasil-pmml/model/scorecard"
	"github.com/google/yggdrasil-pmml/utils/status"
)

func load(t *testing.T) *model.Document {
	t.Helper()
	doc, err := canonical.LoadFile(context.Background(), "../../testdata/scorecard.xml")
	require.NoError(t, err)
	return doc
}

func outputs(t *testing.T, result *model.Result, names ...string) []string {
	t.Helper()
	var texts []string
	for _, name := range names {
		value, ok := result.Output(name)
		require.True(t, ok, name)
		texts = append(texts, value.Text())
	}
	return texts
}

func TestStructure(t *testing.T) {
	m := load(t).Model.(*scorecard.Model)
	assert.Equal(t, 10.0, m.InitialScore)
	assert.True(t, m.UseReasonCodes)
	assert.False(t, m.PointsAbove)
	assert.Equal(t, map[string]int{"characteristics": 2, "attributes": 4}, m.Describe())
}

func TestScoreAndReasonCodes(t *testing.T) {
	doc := load(t)

	result, err := doc.Evaluate(dataspec.Record{"age": 25, "income": 500})
	require.NoError(t, err)
	assert.Equal(t, dataspec.Double(18), result.Predicted)
	assert.Equal(t, []string{"RC_YOUNG", "RC_INCOME"}, result.ReasonCodes)
	assert.Equal(t, []string{"18", "RC_YOUNG", "RC_INCOME", ""}, outputs(t, result, "final_score", "reason_code_1", "reason_code_2", "reason_code_3"))
	missing, _ := result.Output("reason_code_3")
	assert.True(t, missing.IsMissing())

	// Complex partial score: 2000 * 0.01. Equal differences keep the
	// characteristic order.
	result, err = doc.Evaluate(dataspec.Record{"age": 40, "income": 2000})
	require.NoError(t, err)
	assert.Equal(t, dataspec.Double(55), result.Predicted)
	assert.Equal(t, []string{"RC_AGE", "RC_INCOME"}, result.ReasonCodes)

	// The income attribute is the furthest below its baseline.
	result, err = doc.Evaluate(dataspec.Record{"age": 40, "income": 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"RC_INCOME", "RC_AGE"}, result.ReasonCodes)
}

func TestNoMatchingAttribute(t *testing.T) {
	_, err := load(t).Evaluate(dataspec.Record{"income": 10})
	assert.True(t, errors.Is(err, status.ErrEvaluation), "got %v", err)
}

func TestMissingBaseline(t *testing.T) {
	_, err := canonical.LoadString(`<PMML version="4.4">
  <DataDictionary>
    <DataField name="x" optype="continuous" dataType="double"/>
    <DataField name="s" optype="continuous" dataType="double"/>
  </DataDictionary>
  <Scorecard functionName="regression">
    <MiningSchema><MiningField name="x"/><MiningField name="s" usageType="predicted"/></MiningSchema>
    <Characteristics>
      <Characteristic name="c" reasonCode="R">
        <Attribute partialScore="1"><True/></Attribute>
      </Characteristic>
    </Characteristics>
  </Scorecard>
</PMML>`)
	assert.True(t, errors.Is(err, status.ErrSchema), "got %v", err)
}
