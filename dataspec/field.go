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

// Closure of an interval.
type Closure int

// Interval closures.
const (
	OpenClosed Closure = iota
	OpenOpen
	ClosedOpen
	ClosedClosed
)

// ParseClosure parses the "closure" attribute.
func ParseClosure(s string) (Closure, error) {
	switch s {
	case "openClosed":
		return OpenClosed, nil
	case "openOpen":
		return OpenOpen, nil
	case "closedOpen":
		return ClosedOpen, nil
	case "closedClosed":
		return ClosedClosed, nil
	}
	return OpenOpen, fmt.Errorf("unknown closure %q", s)
}

// Interval is a range of numbers. Absent margins are infinite.
type Interval struct {
	Closure Closure
	Left    float64
	Right   float64
}

// Contains tells if x is in the interval.
func (i Interval) Contains(x float64) bool {
	switch i.Closure {
	case OpenClosed:
		return x > i.Left && x <= i.Right
	case OpenOpen:
		return x > i.Left && x < i.Right
	case ClosedOpen:
		return x >= i.Left && x < i.Right
	}
	return x >= i.Left && x <= i.Right
}

// ParseInterval parses an <Interval> element.
func ParseInterval(el *xmltree.Element) (Interval, error) {
	closure, err := ParseClosure(el.AttrOr("closure", ""))
	if err != nil {
		return Interval{}, err
	}
	left, err := el.FloatAttr("leftMargin", math.Inf(-1))
	if err != nil {
		return Interval{}, err
	}
	right, err := el.FloatAttr("rightMargin", math.Inf(1))
	if err != nil {
		return Interval{}, err
	}
	if left > right {
		return Interval{}, fmt.Errorf("%v has leftMargin %v > rightMargin %v", el, left, right)
	}
	return Interval{Closure: closure, Left: left, Right: right}, nil
}

// Field describes a named value: a data field, a derived field or an output
// field. Fields are immutable once loaded.
type Field struct {
	Name        string
	DisplayName string
	DataType    DataType
	OpType      OpType
	// ValidValues in declaration order. For categorical fields, the classes.
	ValidValues   []Value
	InvalidValues []Value
	// MissingValues are values that stand for a missing value.
	MissingValues []Value
	// DisplayValues maps the text of a value to its display value.
	DisplayValues map[string]string
	Intervals     []Interval
	IsCyclic      bool
}

// ParseFieldHeader reads the attributes shared by DataField, DerivedField,
// OutputField and ParameterField.
func ParseFieldHeader(el *xmltree.Element, defaultType DataType) (Field, error) {
	field := Field{
		Name:        el.AttrOr("name", ""),
		DisplayName: el.AttrOr("displayName", ""),
		DataType:    defaultType,
	}
	if len(field.Name) == 0 {
		return field, status.Schemaf("%v has no name", el)
	}
	if raw, ok := el.Attr("dataType"); ok {
		dataType, err := ParseDataType(raw)
		if err != nil {
			return field, status.Schemaf("field %q: %w", field.Name, err)
		}
		field.DataType = dataType
	}
	if raw, ok := el.Attr("optype"); ok {
		opType, err := ParseOpType(raw)
		if err != nil {
			return field, status.Schemaf("field %q: %w", field.Name, err)
		}
		field.OpType = opType
	} else {
		field.OpType = DefaultOpType(field.DataType)
	}
	return field, nil
}

// ParseDataField parses a <DataField> element.
func ParseDataField(el *xmltree.Element) (*Field, error) {
	field, err := ParseFieldHeader(el, TypeUnknown)
	if err != nil {
		return nil, err
	}
	if field.DataType == TypeUnknown {
		return nil, status.Schemaf("data field %q has no dataType", field.Name)
	}
	cyclic := el.AttrOr("isCyclic", "0")
	field.IsCyclic = cyclic == "1" || cyclic == "true"

	for _, child := range el.Children {
		switch child.Name {
		case "Value":
			raw, ok := child.Attr("value")
			if !ok {
				return nil, status.Schemaf("data field %q has a <Value> without value", field.Name)
			}
			value := ParseValue(raw, field.DataType)
			property := child.AttrOr("property", "valid")
			if !value.IsValid() {
				if property == "valid" {
					return nil, status.Schemaf("data field %q: %q is not a valid %v", field.Name, raw, field.DataType)
				}
				// Invalid and missing markers may be of any type.
				value = String(raw)
			}
			switch property {
			case "valid":
				field.ValidValues = append(field.ValidValues, value)
			case "invalid":
				field.InvalidValues = append(field.InvalidValues, value)
			case "missing":
				field.MissingValues = append(field.MissingValues, value)
			default:
				return nil, status.Schemaf("data field %q: unknown value property %q", field.Name, property)
			}
			if display, ok := child.Attr("displayValue"); ok {
				if field.DisplayValues == nil {
					field.DisplayValues = map[string]string{}
				}
				field.DisplayValues[value.Text()] = display
			}
		case "Interval":
			interval, err := ParseInterval(child)
			if err != nil {
				return nil, status.Schemaf("data field %q: %w", field.Name, err)
			}
			field.Intervals = append(field.Intervals, interval)
		}
	}
	return &field, nil
}

// Classes returns the text of the valid values, i.e. the categories of a
// categorical field.
func (f *Field) Classes() []string {
	classes := make([]string, len(f.ValidValues))
	for i, value := range f.ValidValues {
		classes[i] = value.Text()
	}
	return classes
}

// Parse converts a raw external value to a value of this field.
func (f *Field) Parse(raw interface{}) Value {
	return f.Classify(ParseValue(raw, f.DataType))
}

// Classify checks a value against the declared missing, invalid and valid
// values. Values outside of the declared domain are invalid.
func (f *Field) Classify(v Value) Value {
	if v.IsMissing() {
		return v
	}
	for _, missing := range f.MissingValues {
		if v.Equal(missing) || (v.IsInvalid() && v.Text() == missing.Text()) {
			return Missing
		}
	}
	if v.IsInvalid() {
		return v
	}
	for _, invalid := range f.InvalidValues {
		if v.Equal(invalid) {
			return Invalid(v.Text())
		}
	}
	if len(f.ValidValues) == 0 && len(f.Intervals) == 0 {
		return v
	}
	if f.OpType != OpContinuous && len(f.ValidValues) > 0 {
		if f.isValidValue(v) {
			return v
		}
		return Invalid(v.Text())
	}
	if f.isValidValue(v) {
		return v
	}
	if x, ok := v.Float(); ok {
		for _, interval := range f.Intervals {
			if interval.Contains(x) {
				return v
			}
		}
	}
	return Invalid(v.Text())
}

func (f *Field) isValidValue(v Value) bool {
	for _, valid := range f.ValidValues {
		if v.Equal(valid) {
			return true
		}
	}
	return false
}

// DisplayValue returns the display value of a value, or its text.
func (f *Field) DisplayValue(v Value) string {
	if display, ok := f.DisplayValues[v.Text()]; ok {
		return display
	}
	return v.Text()
}

// DataDictionary is the ordered set of the input fields of a document.
type DataDictionary struct {
	Fields []*Field
	index  map[string]*Field
}

// NewDataDictionary creates a dictionary. Field names should be unique.
func NewDataDictionary(fields []*Field) (*DataDictionary, error) {
	dict := &DataDictionary{Fields: fields, index: make(map[string]*Field, len(fields))}
	for _, field := range fields {
		if _, ok := dict.index[field.Name]; ok {
			return nil, status.Schemaf("duplicate field %q in the data dictionary", field.Name)
		}
		dict.index[field.Name] = field
	}
	return dict, nil
}

// ParseDataDictionary parses a <DataDictionary> element.
func ParseDataDictionary(el *xmltree.Element) (*DataDictionary, error) {
	var fields []*Field
	for _, child := range el.ChildrenNamed("DataField") {
		field, err := ParseDataField(child)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return NewDataDictionary(fields)
}

// Field returns a field by name.
func (d *DataDictionary) Field(name string) (*Field, bool) {
	field, ok := d.index[name]
	return field, ok
}

// Names of the fields in declaration order.
func (d *DataDictionary) Names() []string {
	names := make([]string, len(d.Fields))
	for i, field := range d.Fields {
		names[i] = field.Name
	}
	return names
}
