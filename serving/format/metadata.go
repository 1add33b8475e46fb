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


package format

import (
	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/model"
	"github.com/google/yggdrasil-pmml/serving/engine"
)

// FieldInfo describes an input or target field.
type FieldInfo struct {
	Name     string   `json:"name"`
	DataType string   `json:"data_type"`
	OpType   string   `json:"op_type"`
	Values   []string `json:"values,omitempty"`
}

// Metadata describes the document served by an engine.
type Metadata struct {
	Version            string         `json:"version"`
	Description        string         `json:"description,omitempty"`
	Copyright          string         `json:"copyright,omitempty"`
	Application        string         `json:"application,omitempty"`
	ApplicationVersion string         `json:"application_version,omitempty"`
	ModelElement       string         `json:"model_element"`
	FunctionName       string         `json:"function_name"`
	ModelName          string         `json:"model_name,omitempty"`
	AlgorithmName      string         `json:"algorithm_name,omitempty"`
	Inputs             []FieldInfo    `json:"inputs"`
	Targets            []FieldInfo    `json:"targets"`
	Outputs            []string       `json:"outputs"`
	Classes            []string       `json:"classes,omitempty"`
	Structure          map[string]int `json:"structure,omitempty"`
}

// Describe returns the metadata of the document served by an engine.
func Describe(e engine.Engine) Metadata {
	doc := e.Document()
	base := doc.Model.Base()
	metadata := Metadata{
		Version:            doc.Version,
		Description:        doc.Header.Description,
		Copyright:          doc.Header.Copyright,
		Application:        doc.Header.Application.Name,
		ApplicationVersion: doc.Header.Application.Version,
		ModelElement:       doc.Model.Name(),
		FunctionName:       string(base.Function),
		ModelName:          base.ModelName,
		AlgorithmName:      base.AlgorithmName,
		Inputs:             fieldInfos(e.InputFields()),
		Targets:            fieldInfos(e.TargetFields()),
		Outputs:            e.OutputNames(),
		Classes:            e.Classes(),
	}
	if describer, ok := doc.Model.(model.Describer); ok {
		metadata.Structure = describer.Describe()
	}
	return metadata
}

func fieldInfos(fields []*dataspec.Field) []FieldInfo {
	infos := make([]FieldInfo, len(fields))
	for i, field := range fields {
		infos[i] = FieldInfo{
			Name:     field.Name,
			DataType: field.DataType.String(),
			OpType:   field.OpType.String(),
		}
		if field.OpType != dataspec.OpContinuous {
			for _, value := range field.ValidValues {
				infos[i].Values = append(infos[i].Values, value.Text())
			}
		}
	}
	return infos
}
