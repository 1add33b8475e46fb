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

package dataspec

import (
	"fmt"
	"math"

	"github.com/google/yggdrasil-pmml/utils/status"
	"github.com/google/yggdrasil-pmml/utils/xmltree"
)

// CastInteger tells how a continuous prediction is turned into an integer.
type CastInteger int

// Integer casts.
const (
	CastNone CastInteger = iota
	CastRound
	CastCeiling
	CastFloor
)

// TargetValue is a <TargetValue> element.
type TargetValue struct {
	Value            string
	DisplayValue     string
	PriorProbability float64
	// DefaultValue is the prediction of a regression model that cannot
	// compute one. Missing if not set.
	DefaultValue Value
}

// Target holds the post-processing of a predicted field.
type Target struct {
	Field           string
	OpType          OpType
	Cast            CastInteger
	Min             float64
	Max             float64
	RescaleFactor   float64
	RescaleConstant float64
	Values          []TargetValue
}

// Apply post-processes a continuous prediction: clamping, rescaling then
// integer casting.
func (t *Target) Apply(x float64) Value {
	x = math.Max(x, t.Min)
	x = math.Min(x, t.Max)
	x = x*t.RescaleFactor + t.RescaleConstant
	switch t.Cast {
	case CastRound:
		return Integer(int64(math.Floor(x + 0.5)))
	case CastCeiling:
		return Integer(int64(math.Ceil(x)))
	case CastFloor:
		return Integer(int64(math.Floor(x)))
	}
	return Double(x)
}

// Priors returns the classes and prior probabilities, if any are declared.
func (t *Target) Priors() ([]string, []float64) {
	var classes []string
	var priors []float64
	for _, value := range t.Values {
		if value.PriorProbability > 0 {
			classes = append(classes, value.Value)
			priors = append(priors, value.PriorProbability)
		}
	}
	return classes, priors
}

// Default returns the declared default prediction of a regression target.
func (t *Target) Default() Value {
	for _, value := range t.Values {
		if value.DefaultValue.IsValid() {
			return value.DefaultValue
		}
	}
	return Missing
}

// DisplayValue returns the display value declared for a class.
func (t *Target) DisplayValue(class string) (string, bool) {
	if t == nil {
		return "", false
	}
	for _, value := range t.Values {
		if value.Value == class && len(value.DisplayValue) > 0 {
			return value.DisplayValue, true
		}
	}
	return "", false
}

// Targets is a <Targets> element.
type Targets struct {
	List []*Target
}

// Target returns the target of a field. An empty name matches a single
// anonymous target. Returns nil if there is none.
func (t *Targets) Target(field string) *Target {
	if t == nil {
		return nil
	}
	for _, target := range t.List {
		if target.Field == field || len(target.Field) == 0 {
			return target
		}
	}
	if len(field) == 0 && len(t.List) == 1 {
		return t.List[0]
	}
	return nil
}

// ParseTargets parses a <Targets> element.
func ParseTargets(el *xmltree.Element) (*Targets, error) {
	targets := &Targets{}
	for _, child := range el.ChildrenNamed("Target") {
		target, err := parseTarget(child)
		if err != nil {
			return nil, status.Schemaf("target %q: %w", child.AttrOr("field", ""), err)
		}
		targets.List = append(targets.List, target)
	}
	return targets, nil
}

func parseTarget(el *xmltree.Element) (*Target, error) {
	target := &Target{Field: el.AttrOr("field", "")}
	var err error
	if raw, ok := el.Attr("optype"); ok {
		if target.OpType, err = ParseOpType(raw); err != nil {
			return nil, err
		}
	}
	switch cast := el.AttrOr("castInteger", ""); cast {
	case "":
	case "round":
		target.Cast = CastRound
	case "ceiling":
		target.Cast = CastCeiling
	case "floor":
		target.Cast = CastFloor
	default:
		return nil, fmt.Errorf("unknown castInteger %q", cast)
	}
	if target.Min, err = el.FloatAttr("min", math.Inf(-1)); err != nil {
		return nil, err
	}
	if target.Max, err = el.FloatAttr("max", math.Inf(1)); err != nil {
		return nil, err
	}
	if target.RescaleFactor, err = el.FloatAttr("rescaleFactor", 1); err != nil {
		return nil, err
	}
	if target.RescaleConstant, err = el.FloatAttr("rescaleConstant", 0); err != nil {
		return nil, err
	}
	for _, child := range el.ChildrenNamed("TargetValue") {
		value := TargetValue{
			Value:        child.AttrOr("value", ""),
			DisplayValue: child.AttrOr("displayValue", ""),
		}
		if value.PriorProbability, err = child.FloatAttr("priorProbability", 0); err != nil {
			return nil, err
		}
		if raw, ok := child.Attr("defaultValue"); ok {
			value.DefaultValue = ParseValue(raw, TypeDouble)
			if !value.DefaultValue.IsValid() {
				return nil, fmt.Errorf("defaultValue %q is not a number", raw)
			}
		}
		target.Values = append(target.Values, value)
	}
	return target, nil
}
