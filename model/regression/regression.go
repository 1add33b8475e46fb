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

// Package regression implements the PMML <RegressionModel>: linear
// regression and, with one table per class, logistic or softmax
// classification.
package regression

import (
	"math"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/expression"
	"github.com/google/yggdrasil-pmml/model"
	"github.com/google/yggdrasil-pmml/utils/status"
	"github.com/google/yggdrasil-pmml/utils/xmltree"
)

// ModelKey is the name of the PMML element of the model.
const ModelKey = "RegressionModel"

// Normalization converts the raw scores of the tables.
type Normalization int

// Normalization methods.
const (
	None Normalization = iota
	SimpleMax
	Softmax
	Logit
	Probit
	Cloglog
	Loglog
	Cauchit
	Exp
)

var normalizations = map[string]Normalization{
	"none":      None,
	"simplemax": SimpleMax,
	"softmax":   Softmax,
	"logit":     Logit,
	"probit":    Probit,
	"cloglog":   Cloglog,
	"loglog":    Loglog,
	"cauchit":   Cauchit,
	"exp":       Exp,
}

// link is the inverse link function of a normalization applied to a single
// score.
func (n Normalization) link(y float64) float64 {
	switch n {
	case Softmax, Logit:
		return 1 / (1 + math.Exp(-y))
	case Probit:
		return 0.5 * (1 + math.Erf(y/math.Sqrt2))
	case Cloglog:
		return 1 - math.Exp(-math.Exp(y))
	case Loglog:
		return math.Exp(-math.Exp(-y))
	case Cauchit:
		return 0.5 + math.Atan(y)/math.Pi
	case Exp:
		return math.Exp(y)
	}
	return y
}

// NumericPredictor is a coefficient * value^exponent term.
type NumericPredictor struct {
	Field       string
	Exponent    int
	Coefficient float64
}

// CategoricalPredictor adds its coefficient when the field equals the value.
type CategoricalPredictor struct {
	Field       string
	Value       string
	Coefficient float64
}

// PredictorTerm is an interaction: the coefficient times the product of the
// fields.
type PredictorTerm struct {
	Fields      []string
	Coefficient float64
}

// Table is a <RegressionTable>.
type Table struct {
	Intercept      float64
	TargetCategory string
	Numeric        []NumericPredictor
	Categorical    []CategoricalPredictor
	Terms          []PredictorTerm
}

// Model is a regression model.
type Model struct {
	base          *model.Base
	Tables        []*Table
	Normalization Normalization
	ordinal       bool
}

func init() {
	// Register the constructor (loader) for regressions.
	model.RegisteredBuilders[ModelKey] = Create
}

// Create creates a regression model.
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
	predictors := 0
	for _, table := range me.Tables {
		predictors += len(table.Numeric) + len(table.Categorical) + len(table.Terms)
	}
	return map[string]int{"tables": len(me.Tables), "predictors": predictors}
}

// LoadSpecific loads the regression tables.
func (me *Model) LoadSpecific(el *xmltree.Element, scope *model.Scope) error {
	raw := el.AttrOr("normalizationMethod", "none")
	normalization, ok := normalizations[raw]
	if !ok {
		return status.Schemaf("unsupported normalizationMethod %q", raw)
	}
	me.Normalization = normalization

	for _, tableEl := range el.ChildrenNamed("RegressionTable") {
		table, err := parseTable(tableEl)
		if err != nil {
			return err
		}
		if err := scope.Check("regression table", table.references()); err != nil {
			return err
		}
		me.Tables = append(me.Tables, table)
	}

	switch me.base.Function {
	case model.Regression:
		if len(me.Tables) != 1 {
			return status.Schemaf("a regression needs exactly one RegressionTable, got %d", len(me.Tables))
		}
	case model.Classification:
		if len(me.Tables) < 2 {
			return status.Schemaf("a classification needs one RegressionTable per class, got %d", len(me.Tables))
		}
		for _, table := range me.Tables {
			if len(table.TargetCategory) == 0 {
				return status.Schemaf("RegressionTable without targetCategory")
			}
		}
		me.ordinal = me.base.Target().EffectiveOpType() == dataspec.OpOrdinal
	}
	return nil
}

func parseTable(el *xmltree.Element) (*Table, error) {
	table := &Table{TargetCategory: el.AttrOr("targetCategory", "")}
	var err error
	if table.Intercept, err = el.FloatAttr("intercept", 0); err != nil {
		return nil, status.Schemaf("%v: %v", el, err)
	}
	for _, predictorEl := range el.ChildrenNamed("NumericPredictor") {
		p := NumericPredictor{Field: predictorEl.AttrOr("name", "")}
		if p.Exponent, err = predictorEl.IntAttr("exponent", 1); err != nil {
			return nil, status.Schemaf("%v: %v", predictorEl, err)
		}
		if p.Coefficient, err = coefficient(predictorEl); err != nil {
			return nil, err
		}
		table.Numeric = append(table.Numeric, p)
	}
	for _, predictorEl := range el.ChildrenNamed("CategoricalPredictor") {
		p := CategoricalPredictor{Field: predictorEl.AttrOr("name", ""), Value: predictorEl.AttrOr("value", "")}
		if p.Coefficient, err = coefficient(predictorEl); err != nil {
			return nil, err
		}
		table.Categorical = append(table.Categorical, p)
	}
	for _, termEl := range el.ChildrenNamed("PredictorTerm") {
		term := PredictorTerm{}
		if term.Coefficient, err = coefficient(termEl); err != nil {
			return nil, err
		}
		for _, ref := range termEl.ChildrenNamed("FieldRef") {
			term.Fields = append(term.Fields, ref.AttrOr("field", ""))
		}
		if len(term.Fields) == 0 {
			return nil, status.Schemaf("%v without FieldRef", termEl)
		}
		table.Terms = append(table.Terms, term)
	}
	return table, nil
}

func coefficient(el *xmltree.Element) (float64, error) {
	raw, ok := el.Attr("coefficient")
	if !ok {
		return 0, status.Schemaf("%v without coefficient", el)
	}
	c, err := el.FloatAttr("coefficient", 0)
	if err != nil {
		return 0, status.Schemaf("%v: invalid coefficient %q", el, raw)
	}
	return c, nil
}

func (t *Table) references() []string {
	var refs []string
	for _, p := range t.Numeric {
		refs = append(refs, p.Field)
	}
	for _, p := range t.Categorical {
		refs = append(refs, p.Field)
	}
	for _, term := range t.Terms {
		refs = append(refs, term.Fields...)
	}
	return refs
}

// score is the raw linear combination of the table.
func (t *Table) score(ctx *expression.Context) (float64, error) {
	y := t.Intercept
	for _, p := range t.Numeric {
		x, err := number(ctx, p.Field)
		if err != nil {
			return 0, err
		}
		y += p.Coefficient * math.Pow(x, float64(p.Exponent))
	}
	for _, p := range t.Categorical {
		value, err := ctx.Lookup(p.Field)
		if err != nil {
			return 0, err
		}
		if !value.IsValid() {
			return 0, status.Evaluationf("missing value for categorical predictor %q", p.Field)
		}
		if value.Text() == p.Value || value.Equal(dataspec.ParseValue(p.Value, dataspec.TypeDouble)) {
			y += p.Coefficient
		}
	}
	for _, term := range t.Terms {
		product := term.Coefficient
		for _, field := range term.Fields {
			x, err := number(ctx, field)
			if err != nil {
				return 0, err
			}
			product *= x
		}
		y += product
	}
	return y, nil
}

func number(ctx *expression.Context, field string) (float64, error) {
	value, err := ctx.Lookup(field)
	if err != nil {
		return 0, err
	}
	if !value.IsValid() {
		return 0, status.Evaluationf("missing value for numeric predictor %q", field)
	}
	x, ok := value.Float()
	if !ok {
		return 0, status.Evaluationf("predictor %q is not numeric: %q", field, value.Text())
	}
	return x, nil
}

// Evaluate implements model.Model.
func (me *Model) Evaluate(ctx *expression.Context) (*model.Result, error) {
	scores := make([]float64, len(me.Tables))
	for i, table := range me.Tables {
		y, err := table.score(ctx)
		if err != nil {
			return nil, err
		}
		scores[i] = y
	}

	if me.base.Function == model.Regression {
		return &model.Result{Predicted: dataspec.Double(me.Normalization.link(scores[0]))}, nil
	}

	classes := make([]string, len(me.Tables))
	for i, table := range me.Tables {
		classes[i] = table.TargetCategory
	}
	probabilities := me.normalize(scores)
	result := &model.Result{}
	result.SetProbabilities(classes, probabilities)
	result.Predicted = me.base.ClassValue(classes[model.Argmax(probabilities)])
	return result, nil
}

// normalize converts the scores of a classification into probabilities.
func (me *Model) normalize(scores []float64) []float64 {
	n := len(scores)
	probabilities := make([]float64, n)
	switch {
	case me.Normalization == Softmax:
		maxScore := scores[0]
		for _, y := range scores {
			maxScore = math.Max(maxScore, y)
		}
		sum := 0.0
		for i, y := range scores {
			probabilities[i] = math.Exp(y - maxScore)
			sum += probabilities[i]
		}
		for i := range probabilities {
			probabilities[i] /= sum
		}

	case me.Normalization == SimpleMax:
		sum := 0.0
		for _, y := range scores {
			sum += y
		}
		for i, y := range scores {
			if sum != 0 {
				probabilities[i] = y / sum
			}
		}

	case me.ordinal && me.Normalization != None && me.Normalization != Exp:
		// Cumulative link: the tables give P(Y <= class).
		previous := 0.0
		for i := 0; i < n-1; i++ {
			cumulative := me.Normalization.link(scores[i])
			probabilities[i] = math.Max(cumulative-previous, 0)
			previous = math.Max(previous, cumulative)
		}
		probabilities[n-1] = math.Max(1-previous, 0)

	default:
		// The last class takes the remaining probability.
		sum := 0.0
		for i := 0; i < n-1; i++ {
			probabilities[i] = me.Normalization.link(scores[i])
			sum += probabilities[i]
		}
		probabilities[n-1] = math.Max(1-sum, 0)
	}
	return probabilities
}
