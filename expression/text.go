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
	"math"
	"regexp"
	"strings"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/utils/status"
)

// TextNormalization is a row of a <TextIndexNormalization> table.
type TextNormalization struct {
	// Pattern replaces a regular expression when set.
	Pattern *regexp.Regexp
	// Input is replaced when Pattern is nil. Matched on whole words.
	Input  string
	Output string
}

// TextIndex is a <TextIndex> element: the weighted frequency of a term in a
// text field.
type TextIndex struct {
	TextField        string
	Term             Expression
	CaseSensitive    bool
	LocalTermWeights string
	WordSeparator    *regexp.Regexp
	Normalizations   []TextNormalization
}

// Evaluate implements Expression.
func (t *TextIndex) Evaluate(ctx *Context) (dataspec.Value, error) {
	text, err := ctx.Lookup(t.TextField)
	if err != nil {
		return dataspec.Missing, err
	}
	term, err := t.Term.Evaluate(ctx)
	if err != nil {
		return dataspec.Missing, err
	}
	if text.IsMissing() || term.IsMissing() {
		return dataspec.Missing, nil
	}

	textTokens := t.normalize(t.tokenize(text.Text()))
	termTokens := t.tokenize(term.Text())
	if len(termTokens) == 0 {
		return dataspec.Double(0), nil
	}

	count := 0
	for i := 0; i+len(termTokens) <= len(textTokens); i++ {
		match := true
		for j, token := range termTokens {
			if textTokens[i+j] != token {
				match = false
				break
			}
		}
		if match {
			count++
		}
	}

	switch t.LocalTermWeights {
	case "", "termFrequency":
		return dataspec.Double(float64(count)), nil
	case "binary":
		return dataspec.Double(boolToFloat(count > 0)), nil
	case "logarithmic":
		return dataspec.Double(math.Log10(1 + float64(count))), nil
	case "augmentedNormalizedTermFrequency":
		frequencies := map[string]int{}
		maxFrequency := 0
		for _, token := range textTokens {
			frequencies[token]++
			if frequencies[token] > maxFrequency {
				maxFrequency = frequencies[token]
			}
		}
		if maxFrequency == 0 {
			return dataspec.Double(0), nil
		}
		return dataspec.Double(0.5 * (boolToFloat(count > 0) + float64(count)/float64(maxFrequency))), nil
	}
	return dataspec.Missing, status.Evaluationf("unsupported localTermWeights %q", t.LocalTermWeights)
}

func (t *TextIndex) tokenize(s string) []string {
	if !t.CaseSensitive {
		s = strings.ToLower(s)
	}
	for _, normalization := range t.Normalizations {
		if normalization.Pattern != nil {
			s = normalization.Pattern.ReplaceAllString(s, normalization.Output)
		}
	}
	var tokens []string
	for _, token := range t.WordSeparator.Split(s, -1) {
		token = strings.Trim(token, ".,;:!?\"'()[]{}")
		if len(token) > 0 {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func (t *TextIndex) normalize(tokens []string) []string {
	for _, normalization := range t.Normalizations {
		if normalization.Pattern != nil {
			continue
		}
		input := normalization.Input
		if !t.CaseSensitive {
			input = strings.ToLower(input)
		}
		for i, token := range tokens {
			if token == input {
				tokens[i] = normalization.Output
			}
		}
	}
	return tokens
}

// References implements Expression.
func (t *TextIndex) References() []string {
	return append([]string{t.TextField}, t.Term.References()...)
}

// Aggregate is an <Aggregate> element. The aggregated field holds a list of
// values (e.g. the items of a transaction); a scalar is a list of one value.
type Aggregate struct {
	Field      string
	Function   string
	GroupField string
}

// Evaluate implements Expression.
func (a *Aggregate) Evaluate(ctx *Context) (dataspec.Value, error) {
	value, err := ctx.Lookup(a.Field)
	if err != nil {
		return dataspec.Missing, err
	}
	if value.IsMissing() {
		return dataspec.Missing, nil
	}
	if len(a.GroupField) > 0 {
		group, err := ctx.Lookup(a.GroupField)
		if err != nil {
			return dataspec.Missing, err
		}
		if group.IsMissing() {
			return dataspec.Missing, nil
		}
	}

	items := []dataspec.Value{value}
	if value.Kind() == dataspec.KindList {
		items = flatten([]dataspec.Value{value})
	}
	switch a.Function {
	case "count":
		return dataspec.Integer(int64(len(items))), nil
	case "multiset":
		return dataspec.List(items), nil
	}
	if len(items) == 0 {
		return dataspec.Missing, nil
	}
	x, err := numbers(items)
	if err != nil {
		return dataspec.Missing, err
	}
	switch a.Function {
	case "sum":
		return dataspec.Double(floats(x).sum()), nil
	case "average":
		return dataspec.Double(floats(x).sum() / float64(len(x))), nil
	case "min":
		return dataspec.Double(floats(x).min()), nil
	case "max":
		return dataspec.Double(floats(x).max()), nil
	}
	return dataspec.Missing, status.Evaluationf("unsupported aggregate function %q", a.Function)
}

// References implements Expression.
func (a *Aggregate) References() []string {
	if len(a.GroupField) > 0 {
		return []string{a.Field, a.GroupField}
	}
	return []string{a.Field}
}
