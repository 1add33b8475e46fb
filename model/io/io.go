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

// Package io contains utilities to load PMML documents. It doesn't include any
// actual model type support by default. Consider using instead the subpackage
// `canonical` that includes the canonical (standard) model types support.
package io

import (
	"bytes"
	"context"
	goio "io"
	"strconv"
	"strings"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/expression"
	"github.com/google/yggdrasil-pmml/model"
	"github.com/google/yggdrasil-pmml/utils/file"
	"github.com/google/yggdrasil-pmml/utils/logging"
	"github.com/google/yggdrasil-pmml/utils/status"
	"github.com/google/yggdrasil-pmml/utils/xmltree"
)

// Load loads a document from a path or, if no such file exists, from the
// PMML text itself.
func Load(ctx context.Context, source string) (*model.Document, error) {
	if file.Exists(ctx, source) {
		return LoadFile(ctx, source)
	}
	return LoadString(source)
}

// LoadFile loads a document from disk.
func LoadFile(ctx context.Context, path string) (*model.Document, error) {
	content, err := file.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	doc, err := LoadBytes(content)
	if err != nil {
		return nil, status.Annotate(err, "%s", path)
	}
	return doc, nil
}

// LoadString loads a document from its PMML text.
func LoadString(content string) (*model.Document, error) {
	return LoadReader(strings.NewReader(content))
}

// LoadBytes loads a document from a PMML buffer.
func LoadBytes(content []byte) (*model.Document, error) {
	return LoadReader(bytes.NewReader(content))
}

// LoadReader loads a document from a reader.
func LoadReader(r goio.Reader) (*model.Document, error) {
	root, err := xmltree.Parse(r)
	if err != nil {
		return nil, status.Parsef("malformed PMML document: %v", err)
	}
	return Build(root)
}

// Build creates a document from its parsed <PMML> element. No document is
// returned if any part of it is invalid.
func Build(root *xmltree.Element) (*model.Document, error) {
	if root.Name != "PMML" {
		return nil, status.Parsef("the root element is <%s>, not <PMML>", root.Name)
	}
	doc := &model.Document{Version: root.AttrOr("version", "")}
	if err := checkVersion(doc.Version); err != nil {
		return nil, err
	}
	doc.Header = parseHeader(root.Child("Header"))

	dictEl := root.Child("DataDictionary")
	if dictEl == nil {
		return nil, status.Schemaf("document without DataDictionary")
	}
	dict, err := dataspec.ParseDataDictionary(dictEl)
	if err != nil {
		return nil, err
	}
	doc.DataDictionary = dict

	var functions map[string]*expression.DefineFunction
	if transformationsEl := root.Child("TransformationDictionary"); transformationsEl != nil {
		transformations, err := expression.ParseTransformations(transformationsEl, nil)
		if err != nil {
			return nil, status.Annotate(err, "TransformationDictionary")
		}
		known := func(name string) bool {
			_, ok := dict.Field(name)
			return ok
		}
		if err := transformations.CheckNames(known); err != nil {
			return nil, status.Annotate(err, "TransformationDictionary")
		}
		if err := transformations.Validate(known); err != nil {
			return nil, status.Annotate(err, "TransformationDictionary")
		}
		doc.Transformations = transformations
		functions = transformations.Functions
	}
	scope := model.NewScope(dict, functions)
	scope.DefineDerived(doc.Transformations)

	modelEl, err := firstModel(root)
	if err != nil {
		return nil, err
	}
	if doc.Model, err = model.Build(modelEl, scope); err != nil {
		return nil, err
	}

	logging.Logger().Debug().
		Str("version", doc.Version).
		Str("model", doc.Model.Name()).
		Str("function", string(doc.Model.Base().Function)).
		Int("fields", len(dict.Fields)).
		Strs("inputs", doc.InputNames()).
		Strs("targets", doc.TargetNames()).
		Msg("PMML document loaded")
	return doc, nil
}

// checkVersion accepts the PMML versions 3.x and 4.x.
func checkVersion(version string) error {
	major, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(major)
	if err != nil || n < 3 || n > 4 {
		return status.Schemaf("unsupported PMML version %q", version)
	}
	return nil
}

func parseHeader(el *xmltree.Element) model.Header {
	if el == nil {
		return model.Header{}
	}
	header := model.Header{
		Copyright:    el.AttrOr("copyright", ""),
		Description:  el.AttrOr("description", ""),
		ModelVersion: el.AttrOr("modelVersion", ""),
	}
	if app := el.Child("Application"); app != nil {
		header.Application = model.Application{
			Name:    app.AttrOr("name", ""),
			Version: app.AttrOr("version", ""),
		}
	}
	return header
}

// firstModel returns the first scorable model of the document.
func firstModel(root *xmltree.Element) (*xmltree.Element, error) {
	var unsupported []string
	for _, child := range root.Children {
		if !isModelTag(child.Name) {
			continue
		}
		if !model.IsModelElement(child) {
			unsupported = append(unsupported, child.Name)
			continue
		}
		scorable, err := child.BoolAttr("isScorable", true)
		if err != nil {
			return nil, status.Schemaf("%v: %v", child, err)
		}
		if !scorable {
			logging.Logger().Debug().Str("model", child.String()).Msg("Skipping non scorable model")
			continue
		}
		return child, nil
	}
	if len(unsupported) > 0 {
		return nil, status.Schemaf("unsupported model element <%s>. This may be because this type of model "+
			"was not imported, directly or through the \"canonical\" package", unsupported[0])
	}
	return nil, status.Schemaf("document without scorable model")
}

// isModelTag tells if an element of the PMML root is a model, e.g.
// <TreeModel>, <Scorecard> or <NeuralNetwork>.
func isModelTag(name string) bool {
	switch name {
	case "Header", "MiningBuildTask", "DataDictionary", "TransformationDictionary", "Extension":
		return false
	}
	return true
}
