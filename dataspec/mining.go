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

// UsageType of a mining field.
type UsageType int

// Usage types.
const (
	UsageActive UsageType = iota
	UsagePredicted
	UsageTarget
	UsageSupplementary
	UsageGroup
	UsageOrder
	UsageFrequencyWeight
	UsageAnalysisWeight
)

var usageTypes = map[string]UsageType{
	"active":          UsageActive,
	"predicted":       UsagePredicted,
	"target":          UsageTarget,
	"supplementary":   UsageSupplementary,
	"group":           UsageGroup,
	"order":           UsageOrder,
	"frequencyWeight": UsageFrequencyWeight,
	"analysisWeight":  UsageAnalysisWeight,
}

// IsTarget tells if the usage marks the field the model predicts.
func (u UsageType) IsTarget() bool { return u == UsagePredicted || u == UsageTarget }

// InvalidValueTreatment tells what to do with an invalid input.
type InvalidValueTreatment int

// Invalid value treatments.
const (
	InvalidReturnInvalid InvalidValueTreatment = iota
	InvalidAsIs
	InvalidAsMissing
	InvalidAsValue
)

// ParseInvalidValueTreatment parses the "invalidValueTreatment" attribute.
func ParseInvalidValueTreatment(s string) (InvalidValueTreatment, error) {
	switch s {
	case "", "returnInvalid":
		return InvalidReturnInvalid, nil
	case "asIs":
		return InvalidAsIs, nil
	case "asMissing":
		return InvalidAsMissing, nil
	case "asValue":
		return InvalidAsValue, nil
	}
	return InvalidReturnInvalid, fmt.Errorf("unknown invalidValueTreatment %q", s)
}

// OutlierTreatment tells what to do with values outside [low, high].
type OutlierTreatment int

// Outlier treatments.
const (
	OutliersAsIs OutlierTreatment = iota
	OutliersAsMissing
	OutliersAsExtreme
)

// ParseOutlierTreatment parses an "outliers" attribute.
func ParseOutlierTreatment(s string) (OutlierTreatment, error) {
	switch s {
	case "", "asIs":
		return OutliersAsIs, nil
	case "asMissingValues":
		return OutliersAsMissing, nil
	case "asExtremeValues":
		return OutliersAsExtreme, nil
	}
	return OutliersAsIs, fmt.Errorf("unknown outlier treatment %q", s)
}

// MiningField is the use of a field by a model.
type MiningField struct {
	Name  string
	Field *Field
	Usage UsageType
	// OpType overrides the operational type of the field when set.
	OpType     OpType
	Importance float64

	Outliers  OutlierTreatment
	LowValue  float64
	HighValue float64

	// MissingReplacement is used instead of a missing value when valid.
	MissingReplacement    Value
	MissingValueTreatment string
	InvalidTreatment      InvalidValueTreatment
	InvalidReplacement    Value
}

// EffectiveOpType is the operational type in the context of the model.
func (m *MiningField) EffectiveOpType() OpType {
	if m.OpType != OpUnknown {
		return m.OpType
	}
	return m.Field.OpType
}

// Prepare applies the mining field treatments to the value of the field:
// domain check, outlier treatment, invalid value treatment then missing value
// replacement.
func (m *MiningField) Prepare(v Value) (Value, error) {
	if v.kind == KindList {
		return v, nil
	}
	original := v
	v = m.Field.Classify(v)

	if v.IsValid() && m.Outliers != OutliersAsIs {
		if x, ok := v.Float(); ok {
			switch {
			case x < m.LowValue:
				if m.Outliers == OutliersAsMissing {
					v = Missing
				} else {
					v = Double(m.LowValue)
				}
			case x > m.HighValue:
				if m.Outliers == OutliersAsMissing {
					v = Missing
				} else {
					v = Double(m.HighValue)
				}
			}
		}
	}

	if v.IsInvalid() {
		switch m.InvalidTreatment {
		case InvalidReturnInvalid:
			return Missing, status.Evaluationf("invalid value %q for field %q", v.Text(), m.Name)
		case InvalidAsMissing:
			v = Missing
		case InvalidAsValue:
			v = m.InvalidReplacement
		case InvalidAsIs:
			if original.IsValid() {
				v = original
			} else {
				v = String(original.Text())
			}
		}
	}

	if v.IsMissing() {
		if m.MissingReplacement.IsValid() {
			return m.MissingReplacement, nil
		}
		if m.MissingValueTreatment == "returnInvalid" {
			return Missing, status.Evaluationf("missing value for field %q", m.Name)
		}
	}
	return v, nil
}

// MiningSchema is the ordered list of the fields used by a model.
type MiningSchema struct {
	Fields []*MiningField
	index  map[string]*MiningField
}

// Resolver finds the definition of a field visible from a model.
type Resolver func(name string) (*Field, bool)

// ParseMiningSchema parses a <MiningSchema> element. Field names are resolved
// with "resolve".
func ParseMiningSchema(el *xmltree.Element, resolve Resolver) (*MiningSchema, error) {
	schema := &MiningSchema{index: map[string]*MiningField{}}
	for _, child := range el.ChildrenNamed("MiningField") {
		field, err := parseMiningField(child, resolve)
		if err != nil {
			return nil, err
		}
		if _, ok := schema.index[field.Name]; ok {
			return nil, status.Schemaf("duplicate mining field %q", field.Name)
		}
		schema.index[field.Name] = field
		schema.Fields = append(schema.Fields, field)
	}
	return schema, nil
}

func parseMiningField(el *xmltree.Element, resolve Resolver) (*MiningField, error) {
	name := el.AttrOr("name", "")
	field, ok := resolve(name)
	if !ok {
		return nil, status.Schemaf("mining field %q is not defined", name)
	}
	m := &MiningField{
		Name:                  name,
		Field:                 field,
		MissingValueTreatment: el.AttrOr("missingValueTreatment", "asIs"),
		LowValue:              math.Inf(-1),
		HighValue:             math.Inf(1),
	}
	wrap := func(err error) error { return status.Schemaf("mining field %q: %w", name, err) }

	usage, ok := usageTypes[el.AttrOr("usageType", "active")]
	if !ok {
		return nil, wrap(fmt.Errorf("unknown usageType %q", el.AttrOr("usageType", "")))
	}
	m.Usage = usage

	if raw, ok := el.Attr("optype"); ok {
		opType, err := ParseOpType(raw)
		if err != nil {
			return nil, wrap(err)
		}
		m.OpType = opType
	}
	var err error
	if m.Importance, err = el.FloatAttr("importance", 0); err != nil {
		return nil, wrap(err)
	}
	if m.Outliers, err = ParseOutlierTreatment(el.AttrOr("outliers", "asIs")); err != nil {
		return nil, wrap(err)
	}
	if m.LowValue, err = el.FloatAttr("lowValue", math.Inf(-1)); err != nil {
		return nil, wrap(err)
	}
	if m.HighValue, err = el.FloatAttr("highValue", math.Inf(1)); err != nil {
		return nil, wrap(err)
	}

	if raw, ok := el.Attr("missingValueReplacement"); ok {
		m.MissingReplacement = ParseValue(raw, field.DataType)
		if !m.MissingReplacement.IsValid() {
			return nil, wrap(fmt.Errorf("missingValueReplacement %q is not a valid %v", raw, field.DataType))
		}
	}
	treatment := el.AttrOr("invalidValueTreatment", "returnInvalid")
	if m.InvalidTreatment, err = ParseInvalidValueTreatment(treatment); err != nil {
		return nil, wrap(err)
	}
	if m.InvalidTreatment == InvalidAsValue {
		raw, ok := el.Attr("invalidValueReplacement")
		if !ok {
			return nil, wrap(fmt.Errorf("invalidValueTreatment asValue without invalidValueReplacement"))
		}
		m.InvalidReplacement = ParseValue(raw, field.DataType)
	}
	return m, nil
}

// Field returns a mining field by name.
func (s *MiningSchema) Field(name string) (*MiningField, bool) {
	field, ok := s.index[name]
	return field, ok
}

// Active returns the active fields in declaration order.
func (s *MiningSchema) Active() []*MiningField {
	return s.withUsage(func(u UsageType) bool { return u == UsageActive })
}

// Targets returns the predicted / target fields in declaration order.
func (s *MiningSchema) Targets() []*MiningField {
	return s.withUsage(UsageType.IsTarget)
}

func (s *MiningSchema) withUsage(keep func(UsageType) bool) []*MiningField {
	var fields []*MiningField
	for _, field := range s.Fields {
		if keep(field.Usage) {
			fields = append(fields, field)
		}
	}
	return fields
}
