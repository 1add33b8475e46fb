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

package expression

import (
	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/utils/status"
)

// InvalidTreatment tells what an <Apply> does with an invalid result.
type InvalidTreatment int

// Invalid result treatments.
const (
	ReturnInvalid InvalidTreatment = iota
	AsMissing
	AsIs
)

// Apply is an <Apply> element: a call to a built-in or user defined function.
type Apply struct {
	Function string
	Args     []Expression
	// MapMissingTo is returned when an argument is missing. Ignored if
	// missing.
	MapMissingTo dataspec.Value
	// DefaultValue is returned when the result is missing or invalid.
	// Ignored if missing.
	DefaultValue     dataspec.Value
	InvalidTreatment InvalidTreatment
}

// Evaluate implements Expression.
func (a *Apply) Evaluate(ctx *Context) (dataspec.Value, error) {
	result, err := a.call(ctx)
	if err != nil {
		return dataspec.Missing, status.Annotate(err, "function %q", a.Function)
	}
	if result.IsMissing() && a.DefaultValue.IsValid() {
		return a.DefaultValue, nil
	}
	if result.IsInvalid() {
		if a.DefaultValue.IsValid() {
			return a.DefaultValue, nil
		}
		switch a.InvalidTreatment {
		case ReturnInvalid:
			return dataspec.Missing, status.Evaluationf("function %q returned an invalid result (%s)", a.Function, result.Text())
		case AsMissing:
			return dataspec.Missing, nil
		}
	}
	return result, nil
}

func (a *Apply) call(ctx *Context) (dataspec.Value, error) {
	if a.Function == "if" {
		return a.callIf(ctx)
	}

	var function *builtin
	userDefined := ctx.Function(a.Function)
	if userDefined == nil {
		b, ok := builtins[a.Function]
		if !ok {
			return dataspec.Missing, status.Evaluationf("unknown function")
		}
		function = &b
		if len(a.Args) < b.minArgs || (b.maxArgs >= 0 && len(a.Args) > b.maxArgs) {
			return dataspec.Missing, status.Evaluationf("wrong number of arguments: %d", len(a.Args))
		}
	}

	args := make([]dataspec.Value, len(a.Args))
	hasMissing := false
	hasInvalid := false
	for i, arg := range a.Args {
		value, err := arg.Evaluate(ctx)
		if err != nil {
			return dataspec.Missing, err
		}
		args[i] = value
		hasMissing = hasMissing || value.IsMissing()
		hasInvalid = hasInvalid || value.IsInvalid()
	}

	if userDefined != nil {
		if hasMissing && a.MapMissingTo.IsValid() {
			return a.MapMissingTo, nil
		}
		return userDefined.Call(ctx, args)
	}
	if hasMissing && !function.missingAware {
		return a.MapMissingTo, nil
	}
	if hasInvalid && !function.invalidAware {
		return dataspec.Invalid("invalid argument"), nil
	}
	return function.fn(args)
}

// callIf evaluates the condition first, then only the selected branch.
func (a *Apply) callIf(ctx *Context) (dataspec.Value, error) {
	if len(a.Args) < 2 || len(a.Args) > 3 {
		return dataspec.Missing, status.Evaluationf("wrong number of arguments: %d", len(a.Args))
	}
	condition, err := a.Args[0].Evaluate(ctx)
	if err != nil {
		return dataspec.Missing, err
	}
	if condition.IsMissing() {
		return a.MapMissingTo, nil
	}
	if condition.IsInvalid() {
		return condition, nil
	}
	b, err := boolean(condition)
	if err != nil {
		return dataspec.Missing, err
	}
	if b {
		return a.Args[1].Evaluate(ctx)
	}
	if len(a.Args) == 3 {
		return a.Args[2].Evaluate(ctx)
	}
	return dataspec.Missing, nil
}

// References implements Expression.
func (a *Apply) References() []string {
	var refs []string
	for _, arg := range a.Args {
		refs = append(refs, arg.References()...)
	}
	return refs
}

// calledFunctions lists the functions of "functions" called by "e".
func calledFunctions(e Expression, functions map[string]*DefineFunction) []string {
	var names []string
	switch e := e.(type) {
	case *Apply:
		if _, ok := functions[e.Function]; ok {
			names = append(names, e.Function)
		}
		for _, arg := range e.Args {
			names = append(names, calledFunctions(arg, functions)...)
		}
	case *TextIndex:
		names = calledFunctions(e.Term, functions)
	}
	return names
}

// DefineFunction is a user defined function.
type DefineFunction struct {
	Name       string
	Parameters []dataspec.Field
	DataType   dataspec.DataType
	Body       Expression
}

// Call evaluates the function in a context holding only its parameters.
func (f *DefineFunction) Call(caller *Context, args []dataspec.Value) (dataspec.Value, error) {
	if len(args) != len(f.Parameters) {
		return dataspec.Missing, status.Evaluationf("%q expects %d arguments, got %d", f.Name, len(f.Parameters), len(args))
	}
	ctx := NewContext(nil)
	ctx.DefineFunctions(caller.functionScope())
	for i, parameter := range f.Parameters {
		value, err := args[i].Cast(parameter.DataType)
		if err != nil {
			return dataspec.Missing, status.Evaluationf("parameter %q of %q: %v", parameter.Name, f.Name, err)
		}
		ctx.Bind(parameter.Name, value)
	}
	result, err := f.Body.Evaluate(ctx)
	if err != nil {
		return dataspec.Missing, err
	}
	if f.DataType == dataspec.TypeUnknown {
		return result, nil
	}
	converted, err := result.Cast(f.DataType)
	if err != nil {
		return dataspec.Missing, status.Evaluationf("result of %q: %v", f.Name, err)
	}
	return converted, nil
}
