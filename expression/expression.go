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

// Package expression evaluates PMML expressions: the content of derived
// fields, output fields and user defined functions.
//
// Expressions are immutable once loaded. All the state of an evaluation lives
// in a Context created for a single record.
package expression

import (
	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/utils/status"
)

// Expression is a node of an expression tree.
type Expression interface {
	// Evaluate computes the value of the expression for the record bound to
	// "ctx".
	Evaluate(ctx *Context) (dataspec.Value, error)

	// References lists the fields read by the expression.
	References() []string
}

// Constant is a <Constant> element.
type Constant struct {
	Value dataspec.Value
}

// Evaluate implements Expression.
func (c *Constant) Evaluate(ctx *Context) (dataspec.Value, error) { return c.Value, nil }

// References implements Expression.
func (c *Constant) References() []string { return nil }

// FieldRef is a <FieldRef> element.
type FieldRef struct {
	Field        string
	MapMissingTo dataspec.Value
}

// Evaluate implements Expression.
func (f *FieldRef) Evaluate(ctx *Context) (dataspec.Value, error) {
	value, err := ctx.Lookup(f.Field)
	if err != nil {
		return dataspec.Missing, err
	}
	if value.IsMissing() {
		return f.MapMissingTo, nil
	}
	return value, nil
}

// References implements Expression.
func (f *FieldRef) References() []string { return []string{f.Field} }

// DerivedField is a field computed from other fields.
type DerivedField struct {
	dataspec.Field
	Expr Expression
}

// Evaluate computes the value of the field and converts it to its declared
// data type.
func (d *DerivedField) Evaluate(ctx *Context) (dataspec.Value, error) {
	value, err := d.Expr.Evaluate(ctx)
	if err != nil {
		return dataspec.Missing, err
	}
	if d.DataType == dataspec.TypeUnknown {
		return value, nil
	}
	converted, err := value.Cast(d.DataType)
	if err != nil {
		return dataspec.Missing, status.Evaluationf("derived field %q: %v", d.Name, err)
	}
	return converted, nil
}

// Context binds field names to values for the evaluation of one record.
//
// Contexts are nested: a model nested in another model sees the fields of
// its parents. Derived fields are evaluated lazily, in the context where they
// are read, and cached there.
type Context struct {
	parent    *Context
	values    map[string]dataspec.Value
	derived   map[string]*DerivedField
	functions map[string]*DefineFunction
	cache     map[string]dataspec.Value
	active    map[string]bool
}

// NewContext creates a context. "parent" can be nil.
func NewContext(parent *Context) *Context {
	return &Context{
		parent: parent,
		values: map[string]dataspec.Value{},
	}
}

// Bind sets the value of a field in this context.
func (c *Context) Bind(name string, value dataspec.Value) {
	c.values[name] = value
}

// Define makes derived fields available in this context and its children.
func (c *Context) Define(fields []*DerivedField) {
	if len(fields) == 0 {
		return
	}
	if c.derived == nil {
		c.derived = make(map[string]*DerivedField, len(fields))
	}
	for _, field := range fields {
		c.derived[field.Name] = field
	}
}

// DefineFunctions makes user defined functions available in this context and
// its children.
func (c *Context) DefineFunctions(functions map[string]*DefineFunction) {
	c.functions = functions
}

// Lookup returns the value of a field. Fields bound in this context shadow
// the derived fields, which shadow the fields of the parents.
func (c *Context) Lookup(name string) (dataspec.Value, error) {
	if value, ok := c.values[name]; ok {
		return value, nil
	}
	if value, ok := c.cache[name]; ok {
		return value, nil
	}
	for scope := c; scope != nil; scope = scope.parent {
		if scope != c {
			if value, ok := scope.values[name]; ok {
				return value, nil
			}
		}
		if field, ok := scope.derived[name]; ok {
			return c.evaluateDerived(field)
		}
	}
	return dataspec.Missing, status.Evaluationf("unknown field %q", name)
}

func (c *Context) evaluateDerived(field *DerivedField) (dataspec.Value, error) {
	if c.active[field.Name] {
		return dataspec.Missing, status.Evaluationf("derived field %q depends on itself", field.Name)
	}
	if c.active == nil {
		c.active = map[string]bool{}
	}
	c.active[field.Name] = true
	value, err := field.Evaluate(c)
	delete(c.active, field.Name)
	if err != nil {
		return dataspec.Missing, err
	}
	if c.cache == nil {
		c.cache = map[string]dataspec.Value{}
	}
	c.cache[field.Name] = value
	return value, nil
}

// Function returns a user defined function, or nil.
func (c *Context) Function(name string) *DefineFunction {
	for scope := c; scope != nil; scope = scope.parent {
		if function, ok := scope.functions[name]; ok {
			return function
		}
	}
	return nil
}

func (c *Context) functionScope() map[string]*DefineFunction {
	for scope := c; scope != nil; scope = scope.parent {
		if scope.functions != nil {
			return scope.functions
		}
	}
	return nil
}
