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

// Package predicate implements the three valued PMML predicates used by tree
// nodes, scorecard attributes and segments.
package predicate

import (
	"strconv"
	"strings"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/expression"
	"github.com/google/yggdrasil-pmml/utils/status"
	"github.com/google/yggdrasil-pmml/utils/xmltree"
)

// Result of a predicate.
type Result uint8

// Predicate results.
const (
	False Result = iota
	True
	Unknown
)

func (r Result) String() string {
	switch r {
	case False:
		return "false"
	case True:
		return "true"
	}
	return "unknown"
}

// Predicate is a boolean test on the fields of a record.
type Predicate interface {
	Evaluate(ctx *expression.Context) (Result, error)
	// References lists the fields read by the predicate.
	References() []string
}

// Constant is the <True/> or <False/> predicate.
type Constant struct {
	Value bool
}

// Evaluate implements Predicate.
func (c *Constant) Evaluate(ctx *expression.Context) (Result, error) {
	return fromBool(c.Value), nil
}

// References implements Predicate.
func (c *Constant) References() []string { return nil }

// Operator of a simple predicate.
type Operator int

// Simple predicate operators.
const (
	Equal Operator = iota
	NotEqual
	LessThan
	LessOrEqual
	GreaterThan
	GreaterOrEqual
	IsMissing
	IsNotMissing
)

var operators = map[string]Operator{
	"equal":          Equal,
	"notEqual":       NotEqual,
	"lessThan":       LessThan,
	"lessOrEqual":    LessOrEqual,
	"greaterThan":    GreaterThan,
	"greaterOrEqual": GreaterOrEqual,
	"isMissing":      IsMissing,
	"isNotMissing":   IsNotMissing,
}

// Simple is a <SimplePredicate>: a comparison of a field with a constant.
type Simple struct {
	Field    string
	Operator Operator
	Value    dataspec.Value
}

// Evaluate implements Predicate.
func (s *Simple) Evaluate(ctx *expression.Context) (Result, error) {
	value, err := ctx.Lookup(s.Field)
	if err != nil {
		return Unknown, err
	}
	switch s.Operator {
	case IsMissing:
		return fromBool(value.IsMissing()), nil
	case IsNotMissing:
		return fromBool(!value.IsMissing()), nil
	}
	if !value.IsValid() {
		return Unknown, nil
	}
	c, ok := value.Compare(s.Value)
	if !ok {
		switch s.Operator {
		case Equal:
			return False, nil
		case NotEqual:
			return True, nil
		}
		return Unknown, status.Evaluationf("cannot compare field %q (%v value %q) with %q",
			s.Field, value.Kind(), value.Text(), s.Value.Text())
	}
	switch s.Operator {
	case Equal:
		return fromBool(c == 0), nil
	case NotEqual:
		return fromBool(c != 0), nil
	case LessThan:
		return fromBool(c < 0), nil
	case LessOrEqual:
		return fromBool(c <= 0), nil
	case GreaterThan:
		return fromBool(c > 0), nil
	}
	return fromBool(c >= 0), nil
}

// References implements Predicate.
func (s *Simple) References() []string { return []string{s.Field} }

func fromBool(b bool) Result {
	if b {
		return True
	}
	return False
}

// BooleanOperator of a compound predicate.
type BooleanOperator int

// Compound predicate operators.
const (
	And BooleanOperator = iota
	Or
	Xor
	Surrogate
)

// Compound is a <CompoundPredicate>.
type Compound struct {
	Operator   BooleanOperator
	Predicates []Predicate
}

// Evaluate implements Predicate.
//
// "and" is false if any operand is false, unknown if any is unknown. "or" is
// true if any operand is true, unknown if any is unknown. "xor" is unknown if
// any operand is unknown. "surrogate" returns the first known operand.
func (c *Compound) Evaluate(ctx *expression.Context) (Result, error) {
	switch c.Operator {
	case Surrogate:
		for _, p := range c.Predicates {
			r, err := p.Evaluate(ctx)
			if err != nil {
				return Unknown, err
			}
			if r != Unknown {
				return r, nil
			}
		}
		return Unknown, nil
	case Xor:
		parity := false
		for _, p := range c.Predicates {
			r, err := p.Evaluate(ctx)
			if err != nil {
				return Unknown, err
			}
			if r == Unknown {
				return Unknown, nil
			}
			parity = parity != (r == True)
		}
		return fromBool(parity), nil
	}

	absorbing := False
	if c.Operator == Or {
		absorbing = True
	}
	unknown := false
	for _, p := range c.Predicates {
		r, err := p.Evaluate(ctx)
		if err != nil {
			return Unknown, err
		}
		if r == absorbing {
			return absorbing, nil
		}
		if r == Unknown {
			unknown = true
		}
	}
	if unknown {
		return Unknown, nil
	}
	return fromBool(absorbing == False), nil
}

// References implements Predicate.
func (c *Compound) References() []string {
	var refs []string
	for _, p := range c.Predicates {
		refs = append(refs, p.References()...)
	}
	return refs
}

// Set is a <SimpleSetPredicate>.
type Set struct {
	Field  string
	Values []dataspec.Value
	// Negate is true for "isNotIn".
	Negate bool
}

// Evaluate implements Predicate.
func (s *Set) Evaluate(ctx *expression.Context) (Result, error) {
	value, err := ctx.Lookup(s.Field)
	if err != nil {
		return Unknown, err
	}
	if !value.IsValid() {
		return Unknown, nil
	}
	found := false
	for _, item := range s.Values {
		if value.Equal(item) || value.Text() == item.Text() {
			found = true
			break
		}
	}
	return fromBool(found != s.Negate), nil
}

// References implements Predicate.
func (s *Set) References() []string { return []string{s.Field} }

var predicateElements = map[string]bool{
	"True":               true,
	"False":              true,
	"SimplePredicate":    true,
	"CompoundPredicate":  true,
	"SimpleSetPredicate": true,
}

// IsPredicate tells if an element is a predicate.
func IsPredicate(el *xmltree.Element) bool {
	return predicateElements[el.Name]
}

// First returns the first predicate child of an element, or nil.
func First(el *xmltree.Element) *xmltree.Element {
	for _, child := range el.Children {
		if IsPredicate(child) {
			return child
		}
	}
	return nil
}

// Parse parses a predicate element.
func Parse(el *xmltree.Element) (Predicate, error) {
	switch el.Name {
	case "True":
		return &Constant{Value: true}, nil
	case "False":
		return &Constant{Value: false}, nil
	case "SimplePredicate":
		operator, ok := operators[el.AttrOr("operator", "")]
		if !ok {
			return nil, status.Schemaf("%v: unknown operator %q", el, el.AttrOr("operator", ""))
		}
		p := &Simple{Field: el.AttrOr("field", ""), Operator: operator}
		if operator != IsMissing && operator != IsNotMissing {
			raw, ok := el.Attr("value")
			if !ok {
				return nil, status.Schemaf("%v: operator %q requires a value", el, el.AttrOr("operator", ""))
			}
			p.Value = constant(raw)
		}
		return p, nil
	case "CompoundPredicate":
		p := &Compound{}
		switch op := el.AttrOr("booleanOperator", ""); op {
		case "and":
			p.Operator = And
		case "or":
			p.Operator = Or
		case "xor":
			p.Operator = Xor
		case "surrogate":
			p.Operator = Surrogate
		default:
			return nil, status.Schemaf("%v: unknown booleanOperator %q", el, op)
		}
		for _, child := range el.Children {
			if !IsPredicate(child) {
				continue
			}
			sub, err := Parse(child)
			if err != nil {
				return nil, err
			}
			p.Predicates = append(p.Predicates, sub)
		}
		if len(p.Predicates) < 2 {
			return nil, status.Schemaf("%v: at least two predicates are required", el)
		}
		return p, nil
	case "SimpleSetPredicate":
		p := &Set{Field: el.AttrOr("field", "")}
		switch op := el.AttrOr("booleanOperator", ""); op {
		case "isIn":
		case "isNotIn":
			p.Negate = true
		default:
			return nil, status.Schemaf("%v: unknown booleanOperator %q", el, op)
		}
		array := el.Child("Array")
		if array == nil {
			return nil, status.Schemaf("%v: missing Array", el)
		}
		items, err := dataspec.ParseArray(array)
		if err != nil {
			return nil, status.Schemaf("%v", err)
		}
		for _, item := range items {
			p.Values = append(p.Values, constant(item))
		}
		return p, nil
	}
	return nil, status.Schemaf("unsupported predicate %v", el)
}

// constant keeps numbers as numbers so that they compare numerically with
// numeric fields.
func constant(raw string) dataspec.Value {
	if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		return dataspec.Double(f)
	}
	return dataspec.String(raw)
}
