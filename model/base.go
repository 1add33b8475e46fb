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
	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/expression"
	"github.com/google/yggdrasil-pmml/utils/status"
	"github.com/google/yggdrasil-pmml/utils/xmltree"
)

// Function is the mining function of a model.
type Function string

// Supported mining functions.
const (
	Classification Function = "classification"
	Regression     Function = "regression"
)

// Scope resolves the fields visible from a model: data fields, derived fields
// and the outputs of previous models of a chain.
type Scope struct {
	parent *Scope
	fields map[string]*dataspec.Field
	// Dict is the data dictionary of the document.
	Dict *dataspec.DataDictionary
	// Functions are the user defined functions of the document.
	Functions map[string]*expression.DefineFunction
}

// NewScope creates the root scope of a document.
func NewScope(dict *dataspec.DataDictionary, functions map[string]*expression.DefineFunction) *Scope {
	return &Scope{fields: map[string]*dataspec.Field{}, Dict: dict, Functions: functions}
}

// Child creates a scope seeing all the fields of "s".
func (s *Scope) Child() *Scope {
	return &Scope{parent: s, fields: map[string]*dataspec.Field{}, Dict: s.Dict, Functions: s.Functions}
}

// Define makes a field visible in the scope and its children.
func (s *Scope) Define(field *dataspec.Field) {
	s.fields[field.Name] = field
}

// DefineDerived makes derived fields visible in the scope and its children.
func (s *Scope) DefineDerived(t *expression.Transformations) {
	if t == nil {
		return
	}
	for _, field := range t.Fields {
		s.Define(&field.Field)
	}
}

// Resolve returns the definition of a field.
func (s *Scope) Resolve(name string) (*dataspec.Field, bool) {
	for scope := s; scope != nil; scope = scope.parent {
		if field, ok := scope.fields[name]; ok {
			return field, true
		}
	}
	if s.Dict != nil {
		return s.Dict.Field(name)
	}
	return nil, false
}

// Knows tells if a field can be resolved.
func (s *Scope) Knows(name string) bool {
	_, ok := s.Resolve(name)
	return ok
}

// Check returns a SchemaError if one of the fields cannot be resolved.
func (s *Scope) Check(what string, refs []string) error {
	for _, ref := range refs {
		if !s.Knows(ref) {
			return status.Schemaf("%s reads unknown field %q", what, ref)
		}
	}
	return nil
}

// Parser returns an expression parser knowing the document functions.
func (s *Scope) Parser() *expression.Parser {
	return expression.NewParser(s.Functions)
}

// Base contains the parts shared by all the model kinds.
type Base struct {
	Element       string
	Function      Function
	ModelName     string
	AlgorithmName string
	Schema        *dataspec.MiningSchema
	Local         *expression.Transformations
	Targets       *dataspec.Targets
	Output        *Output
	// Scope resolves the fields visible from inside the model.
	Scope *Scope
}

// ParseBase parses the common part of a model element.
func ParseBase(el *xmltree.Element, parent *Scope) (*Base, error) {
	base := &Base{
		Element:       el.Name,
		Function:      Function(el.AttrOr("functionName", "")),
		ModelName:     el.AttrOr("modelName", ""),
		AlgorithmName: el.AttrOr("algorithmName", ""),
		Scope:         parent.Child(),
	}
	switch base.Function {
	case Classification, Regression:
	default:
		return nil, status.Schemaf("%v: unsupported functionName %q", el, base.Function)
	}

	schemaEl := el.Child("MiningSchema")
	if schemaEl == nil {
		return nil, status.Schemaf("%v has no MiningSchema", el)
	}
	schema, err := dataspec.ParseMiningSchema(schemaEl, parent.Resolve)
	if err != nil {
		return nil, status.Annotate(err, "%v", el)
	}
	base.Schema = schema

	if localEl := el.Child("LocalTransformations"); localEl != nil {
		local, err := expression.ParseTransformations(localEl, parent.Functions)
		if err != nil {
			return nil, status.Annotate(err, "%v", el)
		}
		if err := local.CheckNames(parent.Knows); err != nil {
			return nil, status.Annotate(err, "%v", el)
		}
		if err := local.Validate(parent.Knows); err != nil {
			return nil, status.Annotate(err, "%v", el)
		}
		base.Local = local
		base.Scope.DefineDerived(local)
	}

	if targetsEl := el.Child("Targets"); targetsEl != nil {
		targets, err := dataspec.ParseTargets(targetsEl)
		if err != nil {
			return nil, status.Annotate(err, "%v", el)
		}
		base.Targets = targets
	}

	if base.Function == Classification && base.Target() == nil {
		return nil, status.Schemaf("%v: classification model without target field", el)
	}
	return base, nil
}

// Target returns the first predicted field of the model, or nil.
func (b *Base) Target() *dataspec.MiningField {
	targets := b.Schema.Targets()
	if len(targets) == 0 {
		return nil
	}
	return targets[0]
}

// TargetName returns the name of the predicted field, or "".
func (b *Base) TargetName() string {
	if target := b.Target(); target != nil {
		return target.Name
	}
	return ""
}

// Classes returns the declared classes of a classification model: the valid
// values of the target field or, if there are none, the target values.
func (b *Base) Classes() []string {
	if b.Function != Classification {
		return nil
	}
	if target := b.Target(); target != nil && len(target.Field.ValidValues) > 0 {
		return target.Field.Classes()
	}
	if t := b.Targets.Target(b.TargetName()); t != nil {
		classes := make([]string, len(t.Values))
		for i, value := range t.Values {
			classes[i] = value.Value
		}
		return classes
	}
	return nil
}

// ClassValue converts the text of a class to a value of the target field.
func (b *Base) ClassValue(class string) dataspec.Value {
	if target := b.Target(); target != nil {
		if value := dataspec.ParseValue(class, target.Field.DataType); value.IsValid() {
			return value
		}
	}
	return dataspec.String(class)
}

// CheckReferences returns a SchemaError if a field read by the model cannot
// be resolved.
func (b *Base) CheckReferences(what string, refs []string) error {
	return b.Scope.Check(what, refs)
}

// Prepare creates the context of the model: the active fields are read from
// the parent context and prepared according to the mining schema, and the
// local transformations are defined.
func (b *Base) Prepare(parent *expression.Context) (*expression.Context, error) {
	ctx := expression.NewContext(parent)
	for _, field := range b.Schema.Fields {
		if field.Usage.IsTarget() {
			continue
		}
		raw, err := parent.Lookup(field.Name)
		if err != nil {
			return nil, err
		}
		value, err := field.Prepare(raw)
		if err != nil {
			return nil, err
		}
		ctx.Bind(field.Name, value)
	}
	if b.Local != nil {
		ctx.Define(b.Local.Fields)
	}
	return ctx, nil
}

// postProcess applies the targets: default predictions, priors and the
// rescaling of continuous predictions.
func (b *Base) postProcess(result *Result) {
	target := b.Targets.Target(b.TargetName())
	if target == nil {
		return
	}
	if b.Function == Regression {
		if result.Predicted.IsMissing() {
			result.Predicted = target.Default()
			return
		}
		if x, ok := result.Predicted.Float(); ok {
			result.Predicted = target.Apply(x)
		}
		return
	}
	if result.Predicted.IsMissing() && len(result.Probabilities) == 0 {
		classes, priors := target.Priors()
		if len(classes) > 0 {
			result.SetProbabilities(classes, priors)
			result.Predicted = b.ClassValue(classes[Argmax(priors)])
		}
	}
}

// EvaluateIn scores a model nested in a parent context: inputs preparation,
// model evaluation, targets and outputs.
func EvaluateIn(m Model, parent *expression.Context) (*Result, error) {
	b := m.Base()
	ctx, err := b.Prepare(parent)
	if err != nil {
		return nil, err
	}
	result, err := m.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	result.Target = b.TargetName()
	b.postProcess(result)
	if err := b.Output.Compute(ctx, b, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Argmax returns the index of the largest value. Ties go to the first one.
func Argmax(values []float64) int {
	best := 0
	for i, value := range values {
		if value > values[best] {
			best = i
		}
	}
	return best
}
