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

// Package scorecard implements the PMML <Scorecard>: the score is the sum of
// the partial scores of the first matching attribute of each characteristic,
// explained by reason codes.
package scorecard

import (
	"sort"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/expression"
	"github.com/google/yggdrasil-pmml/model"
	"github.com/google/yggdrasil-pmml/model/predicate"
	"github.com/google/yggdrasil-pmml/utils/status"
	"github.com/google/yggdrasil-pmml/utils/xmltree"
)

// ModelKey is the name of the PMML element of the model.
const ModelKey = "Scorecard"

// Attribute is a bin of a characteristic.
type Attribute struct {
	Predicate    predicate.Predicate
	PartialScore float64
	// Complex computes the partial score when set.
	Complex    expression.Expression
	ReasonCode string
}

// Characteristic is a group of attributes. Only the first matching
// attribute contributes to the score.
type Characteristic struct {
	Name          string
	ReasonCode    string
	BaselineScore float64
	Attributes    []*Attribute
}

// Model is a scorecard.
type Model struct {
	base            *model.Base
	InitialScore    float64
	UseReasonCodes  bool
	PointsAbove     bool
	Characteristics []*Characteristic
}

func init() {
	model.RegisteredBuilders[ModelKey] = Create
}

// Create creates a scorecard.
func Create(base *model.Base) model.Implementation {
	return &Model{base: base}
}

// Name of the model.
func (me *Model) Name() string {
	return ModelKey
}

// Base of the model.
func (me *Model) Base() *model.Base {
	return me.base
}

// Describe implements model.Describer.
func (me *Model) Describe() map[string]int {
	attributes := 0
	for _, c := range me.Characteristics {
		attributes += len(c.Attributes)
	}
	return map[string]int{"characteristics": len(me.Characteristics), "attributes": attributes}
}

// LoadSpecific loads the characteristics.
func (me *Model) LoadSpecific(el *xmltree.Element, scope *model.Scope) error {
	if me.base.Function != model.Regression {
		return status.Schemaf("a scorecard is a regression, got %q", me.base.Function)
	}
	var err error
	if me.InitialScore, err = el.FloatAttr("initialScore", 0); err != nil {
		return status.Schemaf("%v", err)
	}
	if me.UseReasonCodes, err = el.BoolAttr("useReasonCodes", true); err != nil {
		return status.Schemaf("%v", err)
	}
	switch algorithm := el.AttrOr("reasonCodeAlgorithm", "pointsBelow"); algorithm {
	case "pointsBelow":
	case "pointsAbove":
		me.PointsAbove = true
	default:
		return status.Schemaf("unsupported reasonCodeAlgorithm %q", algorithm)
	}
	_, hasModelBaseline := el.Attr("baselineScore")

	characteristicsEl := el.Child("Characteristics")
	if characteristicsEl == nil {
		return status.Schemaf("scorecard without Characteristics")
	}
	parser := scope.Parser()
	for _, characteristicEl := range characteristicsEl.ChildrenNamed("Characteristic") {
		c := &Characteristic{
			Name:       characteristicEl.AttrOr("name", ""),
			ReasonCode: characteristicEl.AttrOr("reasonCode", ""),
		}
		_, hasBaseline := characteristicEl.Attr("baselineScore")
		if hasBaseline {
			c.BaselineScore, err = characteristicEl.FloatAttr("baselineScore", 0)
		} else if hasModelBaseline {
			c.BaselineScore, err = el.FloatAttr("baselineScore", 0)
		}
		if err != nil {
			return status.Schemaf("%v: %v", characteristicEl, err)
		}
		if me.UseReasonCodes && !hasBaseline && !hasModelBaseline {
			return status.Schemaf("%v: reason codes require a baselineScore", characteristicEl)
		}

		for _, attributeEl := range characteristicEl.ChildrenNamed("Attribute") {
			a, err := parseAttribute(attributeEl, parser, c)
			if err != nil {
				return status.Annotate(err, "%v", characteristicEl)
			}
			if err := scope.Check("attribute", a.references()); err != nil {
				return err
			}
			if me.UseReasonCodes && len(a.ReasonCode) == 0 {
				return status.Schemaf("%v: attribute without reason code", characteristicEl)
			}
			c.Attributes = append(c.Attributes, a)
		}
		if len(c.Attributes) == 0 {
			return status.Schemaf("%v without Attribute", characteristicEl)
		}
		me.Characteristics = append(me.Characteristics, c)
	}
	return nil
}

func parseAttribute(el *xmltree.Element, parser *expression.Parser, c *Characteristic) (*Attribute, error) {
	a := &Attribute{ReasonCode: el.AttrOr("reasonCode", c.ReasonCode)}
	predicateEl := predicate.First(el)
	if predicateEl == nil {
		return nil, status.Schemaf("attribute without predicate")
	}
	var err error
	if a.Predicate, err = predicate.Parse(predicateEl); err != nil {
		return nil, err
	}
	if complexEl := el.Child("ComplexPartialScore"); complexEl != nil {
		exprEl := expression.FirstExpression(complexEl)
		if exprEl == nil {
			return nil, status.Schemaf("ComplexPartialScore without expression")
		}
		if a.Complex, err = parser.Parse(exprEl); err != nil {
			return nil, err
		}
		return a, nil
	}
	if _, ok := el.Attr("partialScore"); !ok {
		return nil, status.Schemaf("attribute without partialScore")
	}
	if a.PartialScore, err = el.FloatAttr("partialScore", 0); err != nil {
		return nil, status.Schemaf("%v", err)
	}
	return a, nil
}

func (a *Attribute) references() []string {
	refs := a.Predicate.References()
	if a.Complex != nil {
		refs = append(refs, a.Complex.References()...)
	}
	return refs
}

// partialScore is the contribution of a matching attribute.
func (a *Attribute) partialScore(ctx *expression.Context) (float64, error) {
	if a.Complex == nil {
		return a.PartialScore, nil
	}
	value, err := a.Complex.Evaluate(ctx)
	if err != nil {
		return 0, err
	}
	score, ok := value.Float()
	if !ok {
		return 0, status.Evaluationf("partial score is not a number: %q", value.Text())
	}
	return score, nil
}

// Evaluate implements model.Model.
func (me *Model) Evaluate(ctx *expression.Context) (*model.Result, error) {
	score := me.InitialScore
	points := map[string]float64{}
	var codes []string
	for _, c := range me.Characteristics {
		attribute, err := c.match(ctx)
		if err != nil {
			return nil, err
		}
		partial, err := attribute.partialScore(ctx)
		if err != nil {
			return nil, status.Annotate(err, "characteristic %q", c.Name)
		}
		score += partial

		if !me.UseReasonCodes {
			continue
		}
		difference := c.BaselineScore - partial
		if me.PointsAbove {
			difference = -difference
		}
		if _, ok := points[attribute.ReasonCode]; !ok {
			codes = append(codes, attribute.ReasonCode)
		}
		points[attribute.ReasonCode] += difference
	}

	result := &model.Result{Predicted: dataspec.Double(score)}
	if me.UseReasonCodes {
		sort.SliceStable(codes, func(i, j int) bool { return points[codes[i]] > points[codes[j]] })
		result.ReasonCodes = codes
	}
	return result, nil
}

// match returns the first attribute whose predicate is true.
func (c *Characteristic) match(ctx *expression.Context) (*Attribute, error) {
	for _, a := range c.Attributes {
		r, err := a.Predicate.Evaluate(ctx)
		if err != nil {
			return nil, status.Annotate(err, "characteristic %q", c.Name)
		}
		if r == predicate.True {
			return a, nil
		}
	}
	return nil, status.Evaluationf("no attribute of characteristic %q matches the record", c.Name)
}
