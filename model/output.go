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

package model

import (
	"strings"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/expression"
	"github.com/google/yggdrasil-pmml/utils/status"
	"github.com/google/yggdrasil-pmml/utils/xmltree"
)

// Feature is the kind of result an output field exposes.
type Feature int

// Output features.
const (
	PredictedValue Feature = iota
	PredictedDisplayValue
	TransformedValue
	Decision
	Probability
	Affinity
	Residual
	StandardError
	EntityID
	ClusterID
	Warning
	ReasonCode
	RuleValue
	Confidence
)

var featureNames = map[string]Feature{
	"predictedValue":        PredictedValue,
	"predictedDisplayValue": PredictedDisplayValue,
	"transformedValue":      TransformedValue,
	"decision":              Decision,
	"probability":           Probability,
	"affinity":              Affinity,
	"residual":              Residual,
	"standardError":         StandardError,
	"entityId":              EntityID,
	"clusterId":             ClusterID,
	"warning":               Warning,
	"reasonCode":            ReasonCode,
	"ruleValue":             RuleValue,
	"confidence":            Confidence,
}

func (f Feature) String() string {
	for name, feature := range featureNames {
		if feature == f {
			return name
		}
	}
	return "unknown"
}

// OutputField is an <OutputField> element.
type OutputField struct {
	dataspec.Field
	Feature     Feature
	TargetField string
	// Value is the class of a probability or confidence output. Empty for
	// the predicted class.
	Value     string
	Rank      int
	SegmentID string
	IsFinal   bool
	// Expr computes transformedValue and decision outputs. May be nil.
	Expr expression.Expression
}

// IsSupplementary tells if the output is an explanation of the prediction
// (node ids, reason codes, segment results...) rather than the prediction.
func (f *OutputField) IsSupplementary() bool {
	if len(f.SegmentID) > 0 {
		return true
	}
	switch f.Feature {
	case PredictedValue, PredictedDisplayValue, Probability, TransformedValue, Decision:
		return false
	}
	return true
}

// Output is the ordered list of output fields of a model.
type Output struct {
	Fields []*OutputField
}

// Field returns an output field by name, or nil.
func (o *Output) Field(name string) *OutputField {
	if o == nil {
		return nil
	}
	for _, field := range o.Fields {
		if field.Name == name {
			return field
		}
	}
	return nil
}

func (b *Base) parseOutput(el *xmltree.Element) error {
	outputEl := el.Child("Output")
	if outputEl == nil {
		return nil
	}
	parser := b.Scope.Parser()
	output := &Output{}
	for _, fieldEl := range outputEl.ChildrenNamed("OutputField") {
		header, err := dataspec.ParseFieldHeader(fieldEl, dataspec.TypeUnknown)
		if err != nil {
			return err
		}
		field := &OutputField{
			Field:       header,
			TargetField: fieldEl.AttrOr("targetField", ""),
			Value:       fieldEl.AttrOr("value", ""),
			SegmentID:   fieldEl.AttrOr("segmentId", ""),
		}
		featureName := fieldEl.AttrOr("feature", "predictedValue")
		feature, ok := featureNames[featureName]
		if !ok {
			return status.Schemaf("output field %q: unsupported feature %q", field.Name, featureName)
		}
		field.Feature = feature
		if len(field.TargetField) > 0 {
			if err := b.Scope.Check("output field "+field.Name, []string{field.TargetField}); err != nil {
				return err
			}
		}
		if field.Rank, err = fieldEl.IntAttr("rank", 1); err != nil {
			return status.Schemaf("output field %q: %v", field.Name, err)
		}
		if field.IsFinal, err = fieldEl.BoolAttr("isFinalResult", true); err != nil {
			return status.Schemaf("output field %q: %v", field.Name, err)
		}
		if exprEl := expression.FirstExpression(fieldEl); exprEl != nil {
			if field.Expr, err = parser.Parse(exprEl); err != nil {
				return status.Annotate(err, "output field %q", field.Name)
			}
			if err := b.Scope.Check("output field "+field.Name, field.Expr.References()); err != nil {
				return err
			}
		}
		if output.Field(field.Name) != nil {
			return status.Schemaf("duplicate output field %q", field.Name)
		}
		output.Fields = append(output.Fields, field)
		b.Scope.Define(&field.Field)
	}
	b.Output = output
	return nil
}

// Compute evaluates the output fields of a result. Each value is bound in
// "ctx" so that the following output fields can read it.
func (o *Output) Compute(ctx *expression.Context, b *Base, result *Result) error {
	if o == nil {
		return nil
	}
	result.Outputs = make([]OutputValue, 0, len(o.Fields))
	for _, field := range o.Fields {
		value, err := field.compute(ctx, b, result)
		if err != nil {
			return status.Annotate(err, "output field %q", field.Name)
		}
		if field.DataType != dataspec.TypeUnknown {
			converted, err := value.Cast(field.DataType)
			if err != nil {
				return status.Evaluationf("output field %q: %v", field.Name, err)
			}
			value = converted
		}
		ctx.Bind(field.Name, value)
		result.Outputs = append(result.Outputs, OutputValue{Field: field, Value: value})
	}
	return nil
}

func (f *OutputField) compute(ctx *expression.Context, b *Base, result *Result) (dataspec.Value, error) {
	source := result
	if len(f.SegmentID) > 0 {
		source = result.Segments[f.SegmentID]
		if source == nil {
			return dataspec.Missing, nil
		}
	}

	class := f.Value
	if len(class) == 0 && source.Predicted.IsValid() {
		class = source.Predicted.Text()
	}

	switch f.Feature {
	case PredictedValue:
		return source.Predicted, nil

	case PredictedDisplayValue:
		if !source.Predicted.IsValid() {
			return dataspec.Missing, nil
		}
		if display, ok := b.Targets.Target(b.TargetName()).DisplayValue(class); ok {
			return dataspec.String(display), nil
		}
		if target := b.Target(); target != nil {
			return dataspec.String(target.Field.DisplayValue(source.Predicted)), nil
		}
		return dataspec.String(class), nil

	case Probability:
		if p, ok := source.Probability(class); ok && len(class) > 0 {
			return dataspec.Double(p), nil
		}
		return dataspec.Missing, nil

	case Confidence:
		if c, ok := source.Confidence(class); ok && len(class) > 0 {
			return dataspec.Double(c), nil
		}
		return dataspec.Missing, nil

	case EntityID, ClusterID:
		if len(source.EntityID) == 0 {
			return dataspec.Missing, nil
		}
		return dataspec.String(source.EntityID), nil

	case ReasonCode:
		if f.Rank < 1 || f.Rank > len(source.ReasonCodes) {
			return dataspec.Missing, nil
		}
		return dataspec.String(source.ReasonCodes[f.Rank-1]), nil

	case TransformedValue, Decision:
		if f.Expr == nil {
			return source.Predicted, nil
		}
		return f.Expr.Evaluate(ctx)

	case Residual:
		return f.residual(ctx, b, source)

	case Warning:
		if len(source.Warnings) == 0 {
			return dataspec.Missing, nil
		}
		return dataspec.String(strings.Join(source.Warnings, "; ")), nil
	}
	// Affinity, standard error and rule values are not produced by the
	// supported models.
	return dataspec.Missing, nil
}

// residual is the difference between the observed and the predicted value.
// For classification, it is the indicator of the class minus its probability.
func (f *OutputField) residual(ctx *expression.Context, b *Base, result *Result) (dataspec.Value, error) {
	name := f.TargetField
	if len(name) == 0 {
		name = b.TargetName()
	}
	if len(name) == 0 {
		return dataspec.Missing, nil
	}
	actual, err := ctx.Lookup(name)
	if err != nil {
		return dataspec.Missing, err
	}
	if !actual.IsValid() {
		return dataspec.Missing, nil
	}
	if b.Function == Classification {
		class := f.Value
		if len(class) == 0 {
			class = actual.Text()
		}
		p, ok := result.Probability(class)
		if !ok {
			return dataspec.Missing, nil
		}
		indicator := 0.0
		if actual.Text() == class {
			indicator = 1
		}
		return dataspec.Double(indicator - p), nil
	}
	observed, ok1 := actual.Float()
	predicted, ok2 := result.Predicted.Float()
	if !ok1 || !ok2 {
		return dataspec.Missing, nil
	}
	return dataspec.Double(observed - predicted), nil
}
