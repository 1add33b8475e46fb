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

package io

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/model"
	_ "github.com/google/yggdrasil-pmml/model/canonical"
	"github.com/google/yggdrasil-pmml/utils/logging"
	"github.com/google/yggdrasil-pmml/utils/status"
	"github.com/google/yggdrasil-pmml/utils/test"
)

const irisPath = "../../testdata/single_iris_dectree.xml"

func TestLoadFile(t *testing.T) {
	doc, err := LoadFile(context.Background(), irisPath)
	if err != nil {
		t.Fatalf("Cannot load model. %v", err)
	}

	test.CheckEq(t, doc.Model.Name(), "TreeModel", "")
	test.CheckEq(t, doc.Version, "4.1", "")
	test.CheckEq(t, doc.Header.Application.Name, "KNIME", "")
	test.CheckEq(t, doc.Header.Application.Version, "2.8.0", "")
	test.CheckEq(t, doc.Header.Copyright, "Copyright (c) 2013 Vfed", "")
	test.CheckEq(t, doc.Model.Base().ModelName, "DecisionTree", "")
	test.CheckEq(t, doc.DataDictionary.Names(), []string{"sepal_length", "sepal_width", "petal_length", "petal_width", "class"}, "")
}

func TestLoadSourcesScoreTheSame(t *testing.T) {
	ctx := context.Background()
	content, err := os.ReadFile(irisPath)
	if err != nil {
		t.Fatal(err)
	}
	fromPath, err := Load(ctx, irisPath)
	if err != nil {
		t.Fatal(err)
	}
	fromText, err := Load(ctx, string(content))
	if err != nil {
		t.Fatal(err)
	}
	fromBytes, err := LoadBytes(content)
	if err != nil {
		t.Fatal(err)
	}

	record := dataspec.Record{"sepal_length": 7, "sepal_width": 3.2, "petal_length": 4.7, "petal_width": 1.4}
	want, err := fromPath.Evaluate(record)
	if err != nil {
		t.Fatal(err)
	}
	for name, doc := range map[string]*model.Document{"text": fromText, "bytes": fromBytes} {
		got, err := doc.Evaluate(record)
		if err != nil {
			t.Fatal(err)
		}
		test.CheckEq(t, got.Predicted, want.Predicted, name)
		test.CheckEq(t, got.Probabilities, want.Probabilities, name)
		test.CheckEq(t, got.EntityID, want.EntityID, name)
	}
}

const minimal = `<PMML version="%s">
  <DataDictionary>
    <DataField name="x" optype="continuous" dataType="double"/>
    <DataField name="y" optype="continuous" dataType="double"/>
  </DataDictionary>
  <RegressionModel functionName="regression">
    <MiningSchema><MiningField name="x"/><MiningField name="y" usageType="predicted"/></MiningSchema>
    <RegressionTable intercept="1"><NumericPredictor name="x" coefficient="2"/></RegressionTable>
  </RegressionModel>
</PMML>`

func TestErrors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		kind    error
	}{
		{"malformed", `<PMML version="4.4"><DataDictionary>`, status.ErrParse},
		{"empty", ``, status.ErrParse},
		{"not pmml", `<Model/>`, status.ErrParse},
		{"version", strings.Replace(minimal, "%s", "5.0", 1), status.ErrSchema},
		{"no version", strings.Replace(minimal, "%s", "", 1), status.ErrSchema},
		{"duplicate field", `<PMML version="4.4"><DataDictionary>
			<DataField name="x" optype="continuous" dataType="double"/>
			<DataField name="x" optype="continuous" dataType="double"/>
		</DataDictionary></PMML>`, status.ErrSchema},
		{"no model", `<PMML version="4.4"><DataDictionary>
			<DataField name="x" optype="continuous" dataType="double"/>
		</DataDictionary></PMML>`, status.ErrSchema},
		{"unsupported model", `<PMML version="4.4"><DataDictionary>
			<DataField name="x" optype="continuous" dataType="double"/>
		</DataDictionary><NeuralNetwork functionName="regression"/></PMML>`, status.ErrSchema},
		{"dangling mining field", strings.Replace(strings.Replace(minimal, "%s", "4.4", 1), `<MiningField name="x"/>`, `<MiningField name="z"/>`, 1), status.ErrSchema},
		{"cycle", `<PMML version="4.4">
  <DataDictionary><DataField name="x" optype="continuous" dataType="double"/></DataDictionary>
  <TransformationDictionary>
    <DerivedField name="a" optype="continuous" dataType="double"><FieldRef field="b"/></DerivedField>
    <DerivedField name="b" optype="continuous" dataType="double"><FieldRef field="a"/></DerivedField>
  </TransformationDictionary>
</PMML>`, status.ErrSchema},
		{"recursive function", `<PMML version="4.4">
  <DataDictionary><DataField name="x" optype="continuous" dataType="double"/></DataDictionary>
  <TransformationDictionary>
    <DefineFunction name="f" optype="continuous" dataType="double">
      <ParameterField name="p" optype="continuous" dataType="double"/>
      <Apply function="f"><FieldRef field="p"/></Apply>
    </DefineFunction>
    <DerivedField name="a" optype="continuous" dataType="double"><Apply function="f"><FieldRef field="x"/></Apply></DerivedField>
  </TransformationDictionary>
</PMML>`, status.ErrSchema},
		{"mutually recursive functions", `<PMML version="4.4">
  <DataDictionary><DataField name="x" optype="continuous" dataType="double"/></DataDictionary>
  <TransformationDictionary>
    <DefineFunction name="f" optype="continuous" dataType="double">
      <ParameterField name="p" optype="continuous" dataType="double"/>
      <Apply function="+"><Constant>1</Constant><Apply function="g"><FieldRef field="p"/></Apply></Apply>
    </DefineFunction>
    <DefineFunction name="g" optype="continuous" dataType="double">
      <ParameterField name="q" optype="continuous" dataType="double"/>
      <Apply function="f"><FieldRef field="q"/></Apply>
    </DefineFunction>
  </TransformationDictionary>
</PMML>`, status.ErrSchema},
		{"derived field shadows data field", `<PMML version="4.4">
  <DataDictionary>
    <DataField name="x" optype="continuous" dataType="double"/>
    <DataField name="y" optype="continuous" dataType="double"/>
  </DataDictionary>
  <TransformationDictionary>
    <DerivedField name="x" optype="continuous" dataType="double">
      <Apply function="*"><FieldRef field="y"/><Constant>100</Constant></Apply>
    </DerivedField>
  </TransformationDictionary>
</PMML>`, status.ErrSchema},
	} {
		_, err := LoadString(tc.content)
		if !errors.Is(err, tc.kind) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.kind, err)
		}
	}
}

func TestVersions(t *testing.T) {
	for _, version := range []string{"3.2", "4.0", "4.4"} {
		doc, err := LoadString(strings.Replace(minimal, "%s", version, 1))
		if err != nil {
			t.Fatalf("version %s: %v", version, err)
		}
		result, err := doc.Evaluate(dataspec.Record{"x": 2})
		if err != nil {
			t.Fatal(err)
		}
		test.CheckEq(t, result.Predicted, dataspec.Double(5), version)
	}
}

func TestSkipsNonScorableModels(t *testing.T) {
	doc, err := LoadString(`<PMML version="4.4">
  <DataDictionary>
    <DataField name="x" optype="continuous" dataType="double"/>
    <DataField name="y" optype="continuous" dataType="double"/>
  </DataDictionary>
  <RegressionModel functionName="regression" modelName="draft" isScorable="false">
    <MiningSchema><MiningField name="x"/><MiningField name="y" usageType="predicted"/></MiningSchema>
    <RegressionTable intercept="0"/>
  </RegressionModel>
  <RegressionModel functionName="regression" modelName="final">
    <MiningSchema><MiningField name="x"/><MiningField name="y" usageType="predicted"/></MiningSchema>
    <RegressionTable intercept="0"/>
  </RegressionModel>
</PMML>`)
	if err != nil {
		t.Fatal(err)
	}
	test.CheckEq(t, doc.Model.Base().ModelName, "final", "")
}

func TestLoggingIsOptIn(t *testing.T) {
	var global bytes.Buffer
	previousGlobal := log.Logger
	log.Logger = zerolog.New(&global)
	defer func() { log.Logger = previousGlobal }()

	if _, err := LoadString(strings.Replace(minimal, "%s", "4.4", 1)); err != nil {
		t.Fatal(err)
	}
	test.CheckEq(t, global.String(), "", "global logger")

	var installed bytes.Buffer
	previous := *logging.Logger()
	logging.Set(zerolog.New(&installed))
	defer logging.Set(previous)

	if _, err := LoadString(strings.Replace(minimal, "%s", "4.4", 1)); err != nil {
		t.Fatal(err)
	}
	test.CheckEq(t, global.String(), "", "global logger")
	if !strings.Contains(installed.String(), "PMML document loaded") {
		t.Errorf("installed logger: got %q", installed.String())
	}
}
