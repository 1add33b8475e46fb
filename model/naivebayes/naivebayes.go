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

// Package naivebayes implements the PMML <NaiveBayesModel>.
package naivebayes

import (
	"math"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/expression"
	"github.com/google/yggdrasil-pmml/model"
	"github.com/google/yggdrasil-pmml/utils/status"
	"github.com/google/yggdrasil-pmml/utils/xmltree"
)

// ModelKey is the name of the PMML element of the model.
const ModelKey = "NaiveBayesModel"

// Gaussian is the distribution of a continuous input for one class.
type Gaussian struct {
	Mean     float64
	Variance float64
}

func (g Gaussian) density(x float64) float64 {
	d := x - g.Mean
	return math.Exp(-d*d/(2*g.Variance)) / math.Sqrt(2*math.Pi*g.Variance)
}

// Input is a <BayesInput>.
type Input struct {
	Field string
	// Derived discretizes the field when set.
	Derived *expression.DerivedField
	// PairCounts are the counts of each class for each value of a discrete
	// input, by value then class.
	PairCounts map[string]map[string]float64
	// classTotals are the counts of each class over all the values.
	classTotals map[string]float64
	// Stats are the distributions of a continuous input, by class.
	Stats map[string]Gaussian
}

// Model is a naive Bayes classifier.
type Model struct {
	base      *model.Base
	Threshold float64
	Inputs    []*Input
	// Classes and Counts are the classes of the output and their number of
	// training records.
	Classes []string
	Counts  []float64
}

func init() {
	model.RegisteredBuilders[ModelKey] = Create
}

// Create creates a naive Bayes model.
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
	return map[string]int{"inputs": len(me.Inputs), "classes": len(me.Classes)}
}

// LoadSpecific loads the counts of the model.
func (me *Model) LoadSpecific(el *xmltree.Element, scope *model.Scope) error {
	if me.base.Function != model.Classification {
		return status.Schemaf("a naive Bayes model is a classification, got %q", me.base.Function)
	}
	if _, ok := el.Attr("threshold"); !ok {
		return status.Schemaf("naive Bayes model without threshold")
	}
	var err error
	if me.Threshold, err = el.FloatAttr("threshold", 0); err != nil {
		return status.Schemaf("%v", err)
	}

	outputEl := el.Child("BayesOutput")
	if outputEl == nil {
		return status.Schemaf("naive Bayes model without BayesOutput")
	}
	counts, err := parseCounts(outputEl.Child("TargetValueCounts"))
	if err != nil {
		return err
	}
	for _, count := range counts {
		me.Classes = append(me.Classes, count.class)
		me.Counts = append(me.Counts, count.count)
	}
	if len(me.Classes) == 0 {
		return status.Schemaf("BayesOutput without TargetValueCount")
	}

	inputsEl := el.Child("BayesInputs")
	if inputsEl == nil {
		return status.Schemaf("naive Bayes model without BayesInputs")
	}
	parser := scope.Parser()
	for _, inputEl := range inputsEl.ChildrenNamed("BayesInput") {
		input, err := parseInput(inputEl, parser)
		if err != nil {
			return err
		}
		refs := []string{input.Field}
		if input.Derived != nil {
			refs = input.Derived.Expr.References()
		}
		if err := scope.Check("BayesInput", refs); err != nil {
			return err
		}
		me.Inputs = append(me.Inputs, input)
	}
	return nil
}

type classCount struct {
	class string
	count float64
}

func parseCounts(el *xmltree.Element) ([]classCount, error) {
	if el == nil {
		return nil, status.Schemaf("missing TargetValueCounts")
	}
	var counts []classCount
	for _, countEl := range el.ChildrenNamed("TargetValueCount") {
		count, err := countEl.FloatAttr("count", 0)
		if err != nil {
			return nil, status.Schemaf("%v: %v", countEl, err)
		}
		counts = append(counts, classCount{class: countEl.AttrOr("value", ""), count: count})
	}
	return counts, nil
}

func parseInput(el *xmltree.Element, parser *expression.Parser) (*Input, error) {
	input := &Input{Field: el.AttrOr("fieldName", "")}
	if derivedEl := el.Child("DerivedField"); derivedEl != nil {
		derived, err := parser.ParseDerivedField(derivedEl)
		if err != nil {
			return nil, status.Annotate(err, "BayesInput %q", input.Field)
		}
		input.Derived = derived
	}

	if statsEl := el.Child("TargetValueStats"); statsEl != nil {
		input.Stats = map[string]Gaussian{}
		for _, statEl := range statsEl.ChildrenNamed("TargetValueStat") {
			gaussianEl := statEl.Child("GaussianDistribution")
			if gaussianEl == nil {
				return nil, status.Schemaf("BayesInput %q: only GaussianDistribution is supported", input.Field)
			}
			g := Gaussian{}
			var err error
			if g.Mean, err = gaussianEl.FloatAttr("mean", 0); err != nil {
				return nil, status.Schemaf("%v: %v", gaussianEl, err)
			}
			if g.Variance, err = gaussianEl.FloatAttr("variance", 0); err != nil {
				return nil, status.Schemaf("%v: %v", gaussianEl, err)
			}
			if g.Variance <= 0 {
				return nil, status.Schemaf("BayesInput %q: variance must be positive", input.Field)
			}
			input.Stats[statEl.AttrOr("value", "")] = g
		}
		return input, nil
	}

	input.PairCounts = map[string]map[string]float64{}
	input.classTotals = map[string]float64{}
	for _, pairEl := range el.ChildrenNamed("PairCounts") {
		counts, err := parseCounts(pairEl.Child("TargetValueCounts"))
		if err != nil {
			return nil, status.Annotate(err, "BayesInput %q", input.Field)
		}
		byClass := map[string]float64{}
		for _, count := range counts {
			byClass[count.class] = count.count
			input.classTotals[count.class] += count.count
		}
		input.PairCounts[pairEl.AttrOr("value", "")] = byClass
	}
	if len(input.PairCounts) == 0 {
		return nil, status.Schemaf("BayesInput %q without PairCounts or TargetValueStats", input.Field)
	}
	return input, nil
}

// value is the value of the input for the record.
func (in *Input) value(ctx *expression.Context) (dataspec.Value, error) {
	if in.Derived != nil {
		return in.Derived.Evaluate(ctx)
	}
	return ctx.Lookup(in.Field)
}

// likelihood returns the probability of the value for a class. "ok" is false
// when the input does not inform on the value.
func (in *Input) likelihood(value dataspec.Value, class string) (p float64, ok bool) {
	if in.Stats != nil {
		x, ok := value.Float()
		if !ok {
			return 0, false
		}
		g, ok := in.Stats[class]
		if !ok {
			return 0, true
		}
		return g.density(x), true
	}
	byClass, ok := in.PairCounts[value.Text()]
	if !ok {
		return 0, false
	}
	total := in.classTotals[class]
	if total == 0 {
		return 0, true
	}
	return byClass[class] / total, true
}

// Evaluate implements model.Model.
//
// The likelihoods are multiplied in log space. Probabilities below the
// threshold are replaced by the threshold. Missing inputs and values absent
// from the counts are ignored.
func (me *Model) Evaluate(ctx *expression.Context) (*model.Result, error) {
	logs := make([]float64, len(me.Classes))
	for i, count := range me.Counts {
		logs[i] = math.Log(count)
	}
	for _, input := range me.Inputs {
		value, err := input.value(ctx)
		if err != nil {
			return nil, status.Annotate(err, "BayesInput %q", input.Field)
		}
		if !value.IsValid() {
			continue
		}
		for i, class := range me.Classes {
			p, ok := input.likelihood(value, class)
			if !ok {
				break
			}
			if p < me.Threshold || p == 0 {
				p = me.Threshold
			}
			logs[i] += math.Log(p)
		}
	}

	maxLog := math.Inf(-1)
	for _, l := range logs {
		maxLog = math.Max(maxLog, l)
	}
	probabilities := make([]float64, len(logs))
	if math.IsInf(maxLog, -1) {
		return &model.Result{}, nil
	}
	sum := 0.0
	for i, l := range logs {
		probabilities[i] = math.Exp(l - maxLog)
		sum += probabilities[i]
	}
	for i := range probabilities {
		probabilities[i] /= sum
	}

	result := &model.Result{}
	result.SetProbabilities(me.Classes, probabilities)
	result.Predicted = me.base.ClassValue(me.Classes[model.Argmax(probabilities)])
	return result, nil
}
