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

package mining_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/model"
	"github.com/google/yggdrasil-pmml/model/io/canonical"
	"github.com/google/yggdrasil-pmml/model/mining"
	"github.com/google/yggdrasil-pmml/utils/status"
)

func load(t *testing.T, path string) *model.Document {
	t.Helper()
	doc, err := canonical.LoadFile(context.Background(), path)
	require.NoError(t, err)
	return doc
}

func evaluate(t *testing.T, doc *model.Document, record dataspec.Record) *model.Result {
	t.Helper()
	result, err := doc.Evaluate(record)
	require.NoError(t, err)
	return result
}

func TestMajorityVote(t *testing.T) {
	doc := load(t, "../../testdata/mining_vote.xml")
	m := doc.Model.(*mining.Model)
	assert.Equal(t, mining.MajorityVote, m.Method)
	assert.Len(t, m.Segments, 3)
	assert.Equal(t, "third", m.Segments[2].ID)

	// One vote each: the first segment wins the tie.
	result := evaluate(t, doc, dataspec.Record{"x": 1})
	assert.Equal(t, "A", result.Predicted.Text())
	assert.Equal(t, []string{"first", "second"}, result.SegmentIDs)
	p, _ := result.Probability("B")
	assert.InDelta(t, 0.5, p, 1e-12)

	result = evaluate(t, doc, dataspec.Record{"x": 10})
	assert.Equal(t, "B", result.Predicted.Text())
	p, _ = result.Probability("B")
	assert.InDelta(t, 1, p, 1e-12)

	result = evaluate(t, doc, dataspec.Record{"x": 200})
	assert.Equal(t, "B", result.Predicted.Text())
	assert.Equal(t, []string{"first", "second", "third"}, result.SegmentIDs)
	probability, ok := result.Output("probability_B")
	require.True(t, ok)
	f, _ := probability.Float()
	assert.InDelta(t, 2.0/3, f, 1e-12)
	second, ok := result.Output("second_tree")
	require.True(t, ok)
	assert.Equal(t, "B", second.Text())
}

func TestAverage(t *testing.T) {
	doc := load(t, "../../testdata/mining_average.xml")

	result := evaluate(t, doc, dataspec.Record{"x": 2})
	f, _ := result.Predicted.Float()
	assert.InDelta(t, 3.5, f, 1e-12)

	result = evaluate(t, doc, dataspec.Record{"x": 10})
	f, _ = result.Predicted.Float()
	assert.InDelta(t, 41.0/3, f, 1e-12)
}

func TestModelChain(t *testing.T) {
	doc := load(t, "../../testdata/mining_chain.xml")

	result := evaluate(t, doc, dataspec.Record{"x": 3})
	assert.Equal(t, dataspec.Double(7), result.Predicted)
	first, _ := result.Output("first_result")
	assert.Equal(t, dataspec.Double(6), first)

	// The second segment is skipped: the last evaluated segment predicts.
	result = evaluate(t, doc, dataspec.Record{"x": -1})
	assert.Equal(t, dataspec.Double(-2), result.Predicted)
	assert.Equal(t, []string{"1"}, result.SegmentIDs)
}

func TestSegmentErrorsAreAnnotated(t *testing.T) {
	doc := load(t, "../../testdata/mining_average.xml")
	_, err := doc.Evaluate(dataspec.Record{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrEvaluation))
	assert.Contains(t, err.Error(), `segment "1"`)
}

func TestUnsupportedMethod(t *testing.T) {
	_, err := canonical.LoadString(`<PMML version="4.4">
  <DataDictionary>
    <DataField name="x" optype="continuous" dataType="double"/>
  </DataDictionary>
  <MiningModel functionName="regression">
    <MiningSchema><MiningField name="x"/></MiningSchema>
    <Segmentation multipleModelMethod="vote"/>
  </MiningModel>
</PMML>`)
	assert.True(t, errors.Is(err, status.ErrSchema), "got %v", err)
}

func TestUnknownSegmentOutput(t *testing.T) {
	content, err := os.ReadFile("../../testdata/mining_vote.xml")
	require.NoError(t, err)
	_, err = canonical.LoadString(strings.Replace(string(content), `segmentId="second"`, `segmentId="fourth"`, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrSchema), "got %v", err)
	assert.Contains(t, err.Error(), `unknown segment "fourth"`)
}
