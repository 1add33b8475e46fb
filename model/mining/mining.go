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

// Package mining implements the PMML <MiningModel>: an ensemble of models,
// each one guarded by a predicate, combined by a multiple model method.
package mining

import (
	"sort"
	"strconv"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/expression"
	"github.com/google/yggdrasil-pmml/model"
	"github.com/google/yggdrasil-pmml/model/predicate"
	"github.com/google/yggdrasil-pmml/utils/status"
	"github.com/google/yggdrasil-pmml/utils/xmltree"
)

// ModelKey is the name of the PMML element of the model.
const ModelKey = "MiningModel"

// Method combines the results of the segments.
type Method int

// Multiple model methods.
const (
	MajorityVote Method = iota
	WeightedMajorityVote
	Average
	WeightedAverage
	Median
	Max
	Sum
	SelectFirst
	SelectAll
	ModelChain
)

var methods = map[string]Method{
	"majorityVote":         MajorityVote,
	"weightedMajorityVote": WeightedMajorityVote,
	"average":              Average,
	"weightedAverage":      WeightedAverage,
	"median":               Median,
	"max":                  Max,
	"sum":                  Sum,
	"selectFirst":          SelectFirst,
	"selectAll":            SelectAll,
	"modelChain":           ModelChain,
}

// Segment is a model of the ensemble.
type Segment struct {
	ID        string
	Weight    float64
	Predicate predicate.Predicate
	Model     model.Model
}

// Model is a mining model.
type Model struct {
	base     *model.Base
	Method   Method
	Segments []*Segment
}

func init() {
	model.RegisteredBuilders[ModelKey] = Create
}

// Create creates a mining model.
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
	return map[string]int{"segments": len(me.Segments)}
}

// LoadSpecific loads the segments and their models.
func (me *Model) LoadSpecific(el *xmltree.Element, scope *model.Scope) error {
	segmentationEl := el.Child("Segmentation")
	if segmentationEl == nil {
		return status.Schemaf("mining model without Segmentation")
	}
	raw := segmentationEl.AttrOr("multipleModelMethod", "")
	method, ok := methods[raw]
	if !ok {
		return status.Schemaf("unsupported multipleModelMethod %q", raw)
	}
	me.Method = method
	switch method {
	case MajorityVote, WeightedMajorityVote:
		if me.base.Function != model.Classification {
			return status.Schemaf("multipleModelMethod %q requires a classification", raw)
		}
	}

	// In a chain, each segment sees the outputs of the previous ones.
	segmentScope := scope.Child()
	for i, segmentEl := range segmentationEl.ChildrenNamed("Segment") {
		segment := &Segment{ID: segmentEl.AttrOr("id", strconv.Itoa(i+1))}
		var err error
		if segment.Weight, err = segmentEl.FloatAttr("weight", 1); err != nil {
			return status.Schemaf("%v: %v", segmentEl, err)
		}
		predicateEl := predicate.First(segmentEl)
		if predicateEl == nil {
			return status.Schemaf("%v has no predicate", segmentEl)
		}
		if segment.Predicate, err = predicate.Parse(predicateEl); err != nil {
			return status.Annotate(err, "%v", segmentEl)
		}
		if err := segmentScope.Check("segment "+segment.ID, segment.Predicate.References()); err != nil {
			return err
		}

		var modelEl *xmltree.Element
		for _, child := range segmentEl.Children {
			if model.IsModelElement(child) {
				modelEl = child
				break
			}
		}
		if modelEl == nil {
			return status.Schemaf("%v has no supported model", segmentEl)
		}
		if segment.Model, err = model.Build(modelEl, segmentScope); err != nil {
			return status.Annotate(err, "segment %q", segment.ID)
		}
		if method == ModelChain {
			if output := segment.Model.Base().Output; output != nil {
				for _, field := range output.Fields {
					segmentScope.Define(&field.Field)
				}
			}
		}
		me.Segments = append(me.Segments, segment)
	}
	if len(me.Segments) == 0 {
		return status.Schemaf("Segmentation without Segment")
	}
	return me.checkSegmentOutputs(el)
}

// checkSegmentOutputs rejects output fields reading an undeclared segment.
func (me *Model) checkSegmentOutputs(el *xmltree.Element) error {
	outputEl := el.Child("Output")
	if outputEl == nil {
		return nil
	}
	ids := make(map[string]bool, len(me.Segments))
	for _, segment := range me.Segments {
		ids[segment.ID] = true
	}
	for _, fieldEl := range outputEl.ChildrenNamed("OutputField") {
		id := fieldEl.AttrOr("segmentId", "")
		if len(id) > 0 && !ids[id] {
			return status.Schemaf("output field %q reads unknown segment %q", fieldEl.AttrOr("name", ""), id)
		}
	}
	return nil
}

type evaluated struct {
	segment *Segment
	result  *model.Result
}

// Evaluate implements model.Model.
func (me *Model) Evaluate(ctx *expression.Context) (*model.Result, error) {
	var done []evaluated
	chain := ctx
	for _, segment := range me.Segments {
		r, err := segment.Predicate.Evaluate(chain)
		if err != nil {
			return nil, status.Annotate(err, "segment %q", segment.ID)
		}
		if r != predicate.True {
			continue
		}
		result, err := model.EvaluateIn(segment.Model, chain)
		if err != nil {
			return nil, status.Annotate(err, "segment %q", segment.ID)
		}
		done = append(done, evaluated{segment, result})
		if me.Method == SelectFirst {
			break
		}
		if me.Method == ModelChain {
			chain = expression.NewContext(chain)
			for _, output := range result.Outputs {
				chain.Bind(output.Field.Name, output.Value)
			}
		}
	}

	result := me.combine(done)
	result.Segments = make(map[string]*model.Result, len(done))
	for _, e := range done {
		result.Segments[e.segment.ID] = e.result
		result.SegmentIDs = append(result.SegmentIDs, e.segment.ID)
	}
	return result, nil
}

// combine merges the results of the segments.
func (me *Model) combine(done []evaluated) *model.Result {
	if len(done) == 0 {
		return &model.Result{}
	}
	switch me.Method {
	case SelectFirst, SelectAll:
		return inherit(done[0].result)
	case ModelChain:
		return inherit(done[len(done)-1].result)
	case MajorityVote, WeightedMajorityVote:
		return me.vote(done)
	}
	if me.base.Function == model.Classification {
		return me.combineProbabilities(done)
	}
	return me.combineValues(done)
}

// inherit copies the prediction of a segment.
func inherit(source *model.Result) *model.Result {
	return &model.Result{
		Predicted:     source.Predicted,
		Classes:       source.Classes,
		Probabilities: source.Probabilities,
		Confidences:   source.Confidences,
		EntityID:      source.EntityID,
		ReasonCodes:   source.ReasonCodes,
		Warnings:      source.Warnings,
	}
}

// classes returns the declared classes followed by the predicted classes in
// order of appearance.
func (me *Model) classes(done []evaluated) []string {
	classes := append([]string(nil), me.base.Classes()...)
	add := func(class string) {
		for _, c := range classes {
			if c == class {
				return
			}
		}
		classes = append(classes, class)
	}
	for _, e := range done {
		if e.result.Predicted.IsValid() {
			add(e.result.Predicted.Text())
		}
		for _, class := range e.result.Classes {
			add(class)
		}
	}
	return classes
}

func indexOf(values []string, value string) int {
	for i, v := range values {
		if v == value {
			return i
		}
	}
	return -1
}

// vote counts the (weighted) predictions of the segments. A tie goes to the
// class predicted first.
func (me *Model) vote(done []evaluated) *model.Result {
	classes := me.classes(done)
	votes := make([]float64, len(classes))
	var order []string
	total := 0.0
	for _, e := range done {
		if !e.result.Predicted.IsValid() {
			continue
		}
		weight := 1.0
		if me.Method == WeightedMajorityVote {
			weight = e.segment.Weight
		}
		class := e.result.Predicted.Text()
		if indexOf(order, class) < 0 {
			order = append(order, class)
		}
		votes[indexOf(classes, class)] += weight
		total += weight
	}
	result := &model.Result{}
	if len(order) == 0 {
		return result
	}
	winner := order[0]
	for _, class := range order[1:] {
		if votes[indexOf(classes, class)] > votes[indexOf(classes, winner)] {
			winner = class
		}
	}
	probabilities := make([]float64, len(classes))
	for i := range votes {
		if total > 0 {
			probabilities[i] = votes[i] / total
		}
	}
	result.SetProbabilities(classes, probabilities)
	result.Predicted = me.base.ClassValue(winner)
	return result
}

// combineProbabilities merges the class probabilities of the segments.
func (me *Model) combineProbabilities(done []evaluated) *model.Result {
	classes := me.classes(done)
	var contributing []evaluated
	for _, e := range done {
		if len(e.result.Probabilities) > 0 {
			contributing = append(contributing, e)
		}
	}
	result := &model.Result{}
	if len(contributing) == 0 {
		return result
	}
	probabilities := make([]float64, len(classes))

	switch me.Method {
	case Max:
		// The segment with the most confident prediction wins.
		best, bestP := contributing[0], -1.0
		for _, e := range contributing {
			p, _ := e.result.Probability(e.result.Predicted.Text())
			if p > bestP {
				best, bestP = e, p
			}
		}
		for i, class := range classes {
			probabilities[i], _ = best.result.Probability(class)
		}
	case Median:
		for i, class := range classes {
			values := make([]float64, len(contributing))
			for j, e := range contributing {
				values[j], _ = e.result.Probability(class)
			}
			probabilities[i] = median(values)
		}
	default:
		weights := 0.0
		for _, e := range contributing {
			weight := 1.0
			if me.Method == WeightedAverage {
				weight = e.segment.Weight
			}
			weights += weight
			for i, class := range classes {
				p, _ := e.result.Probability(class)
				probabilities[i] += weight * p
			}
		}
		if me.Method != Sum && weights > 0 {
			for i := range probabilities {
				probabilities[i] /= weights
			}
		}
	}
	result.SetProbabilities(classes, probabilities)
	result.Predicted = me.base.ClassValue(classes[model.Argmax(probabilities)])
	return result
}

// combineValues merges the numeric predictions of the segments.
func (me *Model) combineValues(done []evaluated) *model.Result {
	var values, weights []float64
	for _, e := range done {
		if x, ok := e.result.Predicted.Float(); ok {
			values = append(values, x)
			weights = append(weights, e.segment.Weight)
		}
	}
	result := &model.Result{}
	if len(values) == 0 {
		return result
	}
	var y float64
	switch me.Method {
	case Median:
		y = median(values)
	case Max:
		y = values[0]
		for _, x := range values {
			if x > y {
				y = x
			}
		}
	case Sum:
		for _, x := range values {
			y += x
		}
	case WeightedAverage:
		total := 0.0
		for i, x := range values {
			y += weights[i] * x
			total += weights[i]
		}
		if total == 0 {
			return result
		}
		y /= total
	default:
		for _, x := range values {
			y += x
		}
		y /= float64(len(values))
	}
	result.Predicted = dataspec.Double(y)
	return result
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
