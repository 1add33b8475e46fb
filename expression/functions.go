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
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/utils/status"
)

// builtin is a function available to <Apply>.
type builtin struct {
	minArgs int
	// maxArgs is -1 for variadic functions.
	maxArgs int
	// missingAware functions receive missing arguments. Others return
	// missing as soon as one argument is missing.
	missingAware bool
	// invalidAware functions receive invalid arguments. Others return
	// invalid as soon as one argument is invalid.
	invalidAware bool
	fn           func(args []dataspec.Value) (dataspec.Value, error)
}

// IsBuiltin tells if "name" is a built-in function.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok || name == "if"
}

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"+": arithmetic(func(a, b float64) float64 { return a + b }),
		"-": arithmetic(func(a, b float64) float64 { return a - b }),
		"*": arithmetic(func(a, b float64) float64 { return a * b }),
		"/": {2, 2, false, false, func(args []dataspec.Value) (dataspec.Value, error) {
			x, err := numbers(args)
			if err != nil {
				return dataspec.Missing, err
			}
			if x[1] == 0 {
				return dataspec.Invalid("division by zero"), nil
			}
			return dataspec.Double(x[0] / x[1]), nil
		}},

		"min":     aggregation(func(x []float64) float64 { return floats(x).min() }),
		"max":     aggregation(func(x []float64) float64 { return floats(x).max() }),
		"sum":     aggregation(func(x []float64) float64 { return floats(x).sum() }),
		"avg":     aggregation(func(x []float64) float64 { return floats(x).sum() / float64(len(x)) }),
		"median":  aggregation(func(x []float64) float64 { return floats(x).median() }),
		"product": aggregation(func(x []float64) float64 { return floats(x).product() }),

		"log10": unaryMath(func(x float64) float64 {
			if x <= 0 {
				return math.NaN()
			}
			return math.Log10(x)
		}),
		"ln": unaryMath(func(x float64) float64 {
			if x <= 0 {
				return math.NaN()
			}
			return math.Log(x)
		}),
		"sqrt": unaryMath(func(x float64) float64 {
			if x < 0 {
				return math.NaN()
			}
			return math.Sqrt(x)
		}),
		"abs":       unaryMath(math.Abs),
		"exp":       unaryMath(math.Exp),
		"pow":       binaryMath(math.Pow),
		"threshold": binaryMath(func(x, y float64) float64 { return boolToFloat(x > y) }),
		"floor":     integral(math.Floor),
		"ceil":      integral(math.Ceil),
		"round":     integral(func(x float64) float64 { return math.Floor(x + 0.5) }),
		"modulo": binaryMath(func(x, y float64) float64 {
			if y == 0 {
				return math.NaN()
			}
			return x - y*math.Floor(x/y)
		}),

		"isMissing": {1, 1, true, true, func(args []dataspec.Value) (dataspec.Value, error) {
			return dataspec.Boolean(args[0].IsMissing()), nil
		}},
		"isNotMissing": {1, 1, true, true, func(args []dataspec.Value) (dataspec.Value, error) {
			return dataspec.Boolean(!args[0].IsMissing()), nil
		}},
		"isValid": {1, 1, true, true, func(args []dataspec.Value) (dataspec.Value, error) {
			return dataspec.Boolean(args[0].IsValid()), nil
		}},
		"isInvalid": {1, 1, true, true, func(args []dataspec.Value) (dataspec.Value, error) {
			return dataspec.Boolean(args[0].IsInvalid()), nil
		}},

		"equal":          comparison(func(c int) bool { return c == 0 }),
		"notEqual":       comparison(func(c int) bool { return c != 0 }),
		"lessThan":       comparison(func(c int) bool { return c < 0 }),
		"lessOrEqual":    comparison(func(c int) bool { return c <= 0 }),
		"greaterThan":    comparison(func(c int) bool { return c > 0 }),
		"greaterOrEqual": comparison(func(c int) bool { return c >= 0 }),

		"and": {2, -1, true, false, func(args []dataspec.Value) (dataspec.Value, error) {
			return logical(args, false)
		}},
		"or": {2, -1, true, false, func(args []dataspec.Value) (dataspec.Value, error) {
			return logical(args, true)
		}},
		"not": {1, 1, false, false, func(args []dataspec.Value) (dataspec.Value, error) {
			b, err := boolean(args[0])
			if err != nil {
				return dataspec.Missing, err
			}
			return dataspec.Boolean(!b), nil
		}},
		"isIn": {2, -1, false, false, func(args []dataspec.Value) (dataspec.Value, error) {
			return dataspec.Boolean(contains(args[1:], args[0])), nil
		}},
		"isNotIn": {2, -1, false, false, func(args []dataspec.Value) (dataspec.Value, error) {
			return dataspec.Boolean(!contains(args[1:], args[0])), nil
		}},
		"coalesce": {1, -1, true, false, func(args []dataspec.Value) (dataspec.Value, error) {
			for _, arg := range args {
				if !arg.IsMissing() {
					return arg, nil
				}
			}
			return dataspec.Missing, nil
		}},

		"uppercase": stringFunction(1, func(s []string, _ []dataspec.Value) (dataspec.Value, error) {
			return dataspec.String(strings.ToUpper(s[0])), nil
		}),
		"lowercase": stringFunction(1, func(s []string, _ []dataspec.Value) (dataspec.Value, error) {
			return dataspec.String(strings.ToLower(s[0])), nil
		}),
		"trimBlanks": stringFunction(1, func(s []string, _ []dataspec.Value) (dataspec.Value, error) {
			return dataspec.String(strings.TrimSpace(s[0])), nil
		}),
		"substring": {3, 3, false, false, substring},
		"concat": {1, -1, false, false, func(args []dataspec.Value) (dataspec.Value, error) {
			var b strings.Builder
			for _, arg := range args {
				b.WriteString(arg.Text())
			}
			return dataspec.String(b.String()), nil
		}},
		"replace": stringFunction(3, func(s []string, _ []dataspec.Value) (dataspec.Value, error) {
			re, err := compileRegexp(s[1])
			if err != nil {
				return dataspec.Missing, err
			}
			return dataspec.String(re.ReplaceAllString(s[0], s[2])), nil
		}),
		"matches": stringFunction(2, func(s []string, _ []dataspec.Value) (dataspec.Value, error) {
			re, err := compileRegexp(s[1])
			if err != nil {
				return dataspec.Missing, err
			}
			return dataspec.Boolean(re.MatchString(s[0])), nil
		}),
		"formatNumber":             {2, 2, false, false, formatNumber},
		"formatDatetime":           {2, 2, false, false, formatDatetime},
		"dateDaysSinceYear":        {2, 2, false, false, dateSinceYear(true)},
		"dateSecondsSinceYear":     {2, 2, false, false, dateSinceYear(false)},
		"dateSecondsSinceMidnight": {1, 1, false, false, secondsSinceMidnight},

		"x-stdNormalCDF": unaryMath(stdNormalCDF),
		"x-stdNormalPDF": unaryMath(stdNormalPDF),
		"x-stdNormalIDF": unaryMath(stdNormalIDF),
		"x-normalCDF": ternaryMath(func(x, mu, sigma float64) float64 {
			return stdNormalCDF((x - mu) / sigma)
		}),
		"x-normalPDF": ternaryMath(func(x, mu, sigma float64) float64 {
			return stdNormalPDF((x-mu)/sigma) / sigma
		}),
		"x-normalIDF": ternaryMath(func(p, mu, sigma float64) float64 {
			return mu + sigma*stdNormalIDF(p)
		}),
		"x-sin":   unaryMath(math.Sin),
		"x-cos":   unaryMath(math.Cos),
		"x-tan":   unaryMath(math.Tan),
		"x-asin":  unaryMath(math.Asin),
		"x-acos":  unaryMath(math.Acos),
		"x-atan":  unaryMath(math.Atan),
		"x-atan2": binaryMath(math.Atan2),
		"x-sinh":  unaryMath(math.Sinh),
		"x-cosh":  unaryMath(math.Cosh),
		"x-tanh":  unaryMath(math.Tanh),
		"x-expm1": unaryMath(math.Expm1),
		"x-log1p": unaryMath(math.Log1p),
		"x-hypot": binaryMath(math.Hypot),
		"x-erf":   unaryMath(math.Erf),
		"x-modulo": binaryMath(func(x, y float64) float64 {
			if y == 0 {
				return math.NaN()
			}
			return math.Mod(x, y)
		}),
	}
	for _, name := range []string{"sin", "cos", "tan", "asin", "acos", "atan", "atan2", "sinh", "cosh", "tanh",
		"expm1", "log1p", "hypot", "erf", "stdNormalCDF", "stdNormalPDF", "stdNormalIDF", "normalCDF", "normalPDF", "normalIDF"} {
		builtins[name] = builtins["x-"+name]
	}
	builtins["x-coalesce"] = builtins["coalesce"]
}

func typeMismatch(value dataspec.Value, expected string) error {
	return status.Evaluationf("expected %s, got %v value %q", expected, value.Kind(), value.Text())
}

func numbers(args []dataspec.Value) ([]float64, error) {
	x := make([]float64, len(args))
	for i, arg := range args {
		f, ok := arg.Float()
		if !ok {
			return nil, typeMismatch(arg, "a number")
		}
		x[i] = f
	}
	return x, nil
}

func number(f float64) dataspec.Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return dataspec.Invalid(fmt.Sprint(f))
	}
	return dataspec.Double(f)
}

func arithmetic(op func(a, b float64) float64) builtin {
	return builtin{2, 2, false, false, func(args []dataspec.Value) (dataspec.Value, error) {
		x, err := numbers(args)
		if err != nil {
			return dataspec.Missing, err
		}
		return number(op(x[0], x[1])), nil
	}}
}

func aggregation(op func(x []float64) float64) builtin {
	return builtin{1, -1, false, false, func(args []dataspec.Value) (dataspec.Value, error) {
		x, err := numbers(flatten(args))
		if err != nil {
			return dataspec.Missing, err
		}
		if len(x) == 0 {
			return dataspec.Missing, nil
		}
		return number(op(x)), nil
	}}
}

// flatten expands list arguments, so that "sum" can be applied to a
// multi-valued field.
func flatten(args []dataspec.Value) []dataspec.Value {
	var flat []dataspec.Value
	for _, arg := range args {
		if arg.Kind() == dataspec.KindList {
			for _, item := range arg.Items() {
				if !item.IsMissing() {
					flat = append(flat, item)
				}
			}
			continue
		}
		flat = append(flat, arg)
	}
	return flat
}

func unaryMath(op func(x float64) float64) builtin {
	return builtin{1, 1, false, false, func(args []dataspec.Value) (dataspec.Value, error) {
		x, err := numbers(args)
		if err != nil {
			return dataspec.Missing, err
		}
		return number(op(x[0])), nil
	}}
}

func binaryMath(op func(x, y float64) float64) builtin {
	return builtin{2, 2, false, false, func(args []dataspec.Value) (dataspec.Value, error) {
		x, err := numbers(args)
		if err != nil {
			return dataspec.Missing, err
		}
		return number(op(x[0], x[1])), nil
	}}
}

func ternaryMath(op func(x, y, z float64) float64) builtin {
	return builtin{3, 3, false, false, func(args []dataspec.Value) (dataspec.Value, error) {
		x, err := numbers(args)
		if err != nil {
			return dataspec.Missing, err
		}
		return number(op(x[0], x[1], x[2])), nil
	}}
}

func integral(op func(x float64) float64) builtin {
	return builtin{1, 1, false, false, func(args []dataspec.Value) (dataspec.Value, error) {
		x, err := numbers(args)
		if err != nil {
			return dataspec.Missing, err
		}
		r := op(x[0])
		if math.IsInf(r, 0) || math.Abs(r) >= 1<<63 {
			return dataspec.Invalid(fmt.Sprint(r)), nil
		}
		return dataspec.Integer(int64(r)), nil
	}}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func comparison(accept func(c int) bool) builtin {
	return builtin{2, 2, false, false, func(args []dataspec.Value) (dataspec.Value, error) {
		c, ok := args[0].Compare(args[1])
		if !ok {
			return dataspec.Missing, status.Evaluationf("cannot compare %v value %q with %v value %q",
				args[0].Kind(), args[0].Text(), args[1].Kind(), args[1].Text())
		}
		return dataspec.Boolean(accept(c)), nil
	}}
}

func boolean(value dataspec.Value) (bool, error) {
	b, ok := value.Bool()
	if !ok {
		return false, typeMismatch(value, "a boolean")
	}
	return b, nil
}

// logical implements the three valued "and" (absorbing=false) and "or"
// (absorbing=true).
func logical(args []dataspec.Value, absorbing bool) (dataspec.Value, error) {
	unknown := false
	for _, arg := range args {
		if arg.IsMissing() {
			unknown = true
			continue
		}
		b, err := boolean(arg)
		if err != nil {
			return dataspec.Missing, err
		}
		if b == absorbing {
			return dataspec.Boolean(absorbing), nil
		}
	}
	if unknown {
		return dataspec.Missing, nil
	}
	return dataspec.Boolean(!absorbing), nil
}

func contains(set []dataspec.Value, value dataspec.Value) bool {
	for _, item := range set {
		if item.Equal(value) {
			return true
		}
	}
	return false
}

func stringFunction(arity int, op func(s []string, args []dataspec.Value) (dataspec.Value, error)) builtin {
	return builtin{arity, arity, false, false, func(args []dataspec.Value) (dataspec.Value, error) {
		s := make([]string, len(args))
		for i, arg := range args {
			s[i] = arg.Text()
		}
		return op(s, args)
	}}
}

func substring(args []dataspec.Value) (dataspec.Value, error) {
	runes := []rune(args[0].Text())
	start, ok1 := args[1].Int()
	length, ok2 := args[2].Int()
	if !ok1 || !ok2 {
		return dataspec.Missing, status.Evaluationf("substring expects integer position and length")
	}
	if start < 1 || length < 0 {
		return dataspec.Invalid(args[0].Text()), nil
	}
	begin := int(start - 1)
	if begin > len(runes) {
		begin = len(runes)
	}
	end := begin + int(length)
	if end > len(runes) {
		end = len(runes)
	}
	return dataspec.String(string(runes[begin:end])), nil
}

var regexpCache sync.Map

func compileRegexp(pattern string) (*regexp.Regexp, error) {
	if re, ok := regexpCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, status.Evaluationf("bad regular expression %q: %w", pattern, err)
	}
	regexpCache.Store(pattern, re)
	return re, nil
}

var formatVerb = regexp.MustCompile(`%[-+ #0]*[0-9]*(\.[0-9]+)?([a-zA-Z])`)

func formatNumber(args []dataspec.Value) (dataspec.Value, error) {
	x, ok := args[0].Float()
	if !ok {
		return dataspec.Missing, typeMismatch(args[0], "a number")
	}
	pattern := args[1].Text()
	match := formatVerb.FindStringSubmatch(pattern)
	if match == nil {
		return dataspec.String(pattern), nil
	}
	switch verb := match[0]; match[2] {
	case "i":
		pattern = strings.Replace(pattern, verb, verb[:len(verb)-1]+"d", 1)
		fallthrough
	case "d", "x", "X", "o":
		return dataspec.String(fmt.Sprintf(pattern, int64(math.Round(x)))), nil
	}
	return dataspec.String(fmt.Sprintf(pattern, x)), nil
}

// strftime directives supported by formatDatetime.
var strftime = map[byte]string{
	'Y': "2006", 'y': "06", 'm': "01", 'd': "02", 'e': "_2", 'H': "15", 'I': "03", 'M': "04",
	'S': "05", 'p': "PM", 'b': "Jan", 'B': "January", 'a': "Mon", 'A': "Monday",
}

func formatDatetime(args []dataspec.Value) (dataspec.Value, error) {
	value, err := args[0].Cast(dataspec.TypeDateTime)
	if err != nil {
		return dataspec.Missing, status.Evaluationf("formatDatetime: %w", err)
	}
	t, _ := value.Time()
	pattern := args[1].Text()
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '%' || i+1 == len(pattern) {
			b.WriteByte(pattern[i])
			continue
		}
		i++
		switch directive := pattern[i]; directive {
		case '%':
			b.WriteByte('%')
		case 'j':
			fmt.Fprintf(&b, "%03d", t.YearDay())
		default:
			layout, ok := strftime[directive]
			if !ok {
				return dataspec.Missing, status.Evaluationf("formatDatetime: unsupported directive %%%c", directive)
			}
			b.WriteString(t.Format(layout))
		}
	}
	return dataspec.String(b.String()), nil
}

func dateSinceYear(days bool) func(args []dataspec.Value) (dataspec.Value, error) {
	return func(args []dataspec.Value) (dataspec.Value, error) {
		value, err := args[0].Cast(dataspec.TypeDateTime)
		if err != nil {
			return dataspec.Missing, status.Evaluationf("%w", err)
		}
		t, _ := value.Time()
		year, ok := args[1].Int()
		if !ok {
			return dataspec.Missing, typeMismatch(args[1], "a year")
		}
		epoch := time.Date(int(year), time.January, 1, 0, 0, 0, 0, t.Location())
		return dataspec.Integer(dataspec.Since(t, epoch, days)), nil
	}
}

func secondsSinceMidnight(args []dataspec.Value) (dataspec.Value, error) {
	value, err := args[0].Cast(dataspec.TypeTimeSeconds)
	if err != nil {
		return dataspec.Missing, status.Evaluationf("%w", err)
	}
	return value, nil
}

func stdNormalPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

func stdNormalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func stdNormalIDF(p float64) float64 {
	if p <= 0 || p >= 1 {
		return math.NaN()
	}
	return math.Sqrt2 * math.Erfinv(2*p-1)
}

type floats []float64

func (x floats) min() float64 {
	m := x[0]
	for _, v := range x[1:] {
		m = math.Min(m, v)
	}
	return m
}

func (x floats) max() float64 {
	m := x[0]
	for _, v := range x[1:] {
		m = math.Max(m, v)
	}
	return m
}

func (x floats) sum() float64 {
	s := 0.0
	for _, v := range x {
		s += v
	}
	return s
}

func (x floats) product() float64 {
	p := 1.0
	for _, v := range x {
		p *= v
	}
	return p
}

func (x floats) median() float64 {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
