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

// Package treemodel implements the PMML <TreeModel>.
//
// A record descends from the root, following the first child whose predicate
// is true. When a predicate cannot be evaluated because of missing values, the
// missing value strategy of the model decides what happens.
package treemodel

import (
	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/expression"
	"github.com/google/yggdrasil-pmml/model"
	"github.com/google/yggdrasil-pmml/model/predicate"
	"github.com/google/yggdrasil-pmml/utils/status"
	"github.com/google/yggdrasil-pmml/utils/xmltree"
)

// ModelKey is the name of the PMML element of the model.
const ModelKey = "TreeModel"

// MissingValueStrategy is applied when the predicate of a child cannot be
// evaluated.
type MissingValueStrategy int

// Missing value strategies.
const (
	// MissingNone treats unknown predicates as false.
	MissingNone MissingValueStrategy = iota
	LastPrediction
	NullPrediction
	DefaultChild
	WeightedConfidence
	AggregateNodes
)

var missingValueStrategies = map[string]MissingValueStrategy{
	"none":               MissingNone,
	"lastPrediction":     LastPrediction,
	"nullPrediction":     NullPrediction,
	"defaultChild":       DefaultChild,
	"weightedConfidence": WeightedConfidence,
	"aggregateNodes":     AggregateNodes,
}

// NoTrueChildStrategy is applied when no child of a node matches.
type NoTrueChildStrategy int

// No true child strategies.
const (
	ReturnNullPrediction NoTrueChildStrategy = iota
	ReturnLastPrediction
)

// Model is a decision tree.
type Model struct {
	base                 *model.Base
	Root                 *Node
	MissingValueStrategy MissingValueStrategy
	// MissingValuePenalty multiplies the confidences each time a default
	// child is followed.
	MissingValuePenalty float64
	NoTrueChildStrategy NoTrueChildStrategy
	classes             []string
}

func init() {
	// Register the constructor (loader) for trees.
	model.RegisteredBuilders[ModelKey] = Create
}

// Create creates a tree model.
func Create(base *model.Base) model.Implementation {
	return &Model{base: base, MissingValuePenalty: 1}
}

// Name of the model.
func (me *Model) Name() string {
	return ModelKey
}

// Base of the model.
func (me *Model) Base() *model.Base {
	return me.base
}

// NumLeafs is the number of leafs in the tree.
func (me *Model) NumLeafs() int {
	return me.Root.NumLeafs()
}

// NumNonLeafs is the number of non-leaf nodes in the tree.
func (me *Model) NumNonLeafs() int {
	return me.Root.NumNonLeafs()
}

// Describe implements model.Describer.
func (me *Model) Describe() map[string]int {
	return map[string]int{
		"leafs":     me.NumLeafs(),
		"non_leafs": me.NumNonLeafs(),
		"depth":     me.Root.Depth(),
	}
}

// LoadSpecific loads the nodes of the tree.
func (me *Model) LoadSpecific(el *xmltree.Element, scope *model.Scope) error {
	var ok bool
	raw := el.AttrOr("missingValueStrategy", "none")
	if me.MissingValueStrategy, ok = missingValueStrategies[raw]; !ok {
		return status.Schemaf("unsupported missingValueStrategy %q", raw)
	}
	switch raw := el.AttrOr("noTrueChildStrategy", "returnNullPrediction"); raw {
	case "returnNullPrediction":
		me.NoTrueChildStrategy = ReturnNullPrediction
	case "returnLastPrediction":
		me.NoTrueChildStrategy = ReturnLastPrediction
	default:
		return status.Schemaf("unsupported noTrueChildStrategy %q", raw)
	}
	var err error
	if me.MissingValuePenalty, err = el.FloatAttr("missingValuePenalty", 1); err != nil {
		return status.Schemaf("%v", err)
	}

	rootEl := el.Child("Node")
	if rootEl == nil {
		return status.Schemaf("tree without root Node")
	}
	scoreType := dataspec.TypeString
	if me.base.Function == model.Regression {
		scoreType = dataspec.TypeDouble
	}
	next := 0
	if me.Root, err = parseNode(rootEl, scoreType, &next); err != nil {
		return err
	}
	if err := scope.Check("tree", me.Root.references()); err != nil {
		return err
	}
	me.classes = me.base.Classes()
	return nil
}

// Evaluate implements model.Model.
func (me *Model) Evaluate(ctx *expression.Context) (*model.Result, error) {
	r, err := me.Root.Predicate.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	if r != predicate.True {
		return &model.Result{}, nil
	}

	if me.MissingValueStrategy == WeightedConfidence || me.MissingValueStrategy == AggregateNodes {
		var leaves []weightedNode
		if err := me.collect(ctx, me.Root, 1, &leaves); err != nil {
			return nil, err
		}
		return me.aggregate(leaves), nil
	}

	node, penalty, err := me.descend(ctx)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return &model.Result{}, nil
	}
	return me.score(node, penalty), nil
}

// selectChild returns the first child whose predicate is true. "unknown" is
// set if the search stopped on a child that cannot be evaluated.
func (me *Model) selectChild(ctx *expression.Context, node *Node) (next *Node, unknown bool, err error) {
	for _, child := range node.Children {
		r, err := child.Predicate.Evaluate(ctx)
		if err != nil {
			return nil, false, status.Annotate(err, "node %q", child.ID)
		}
		switch r {
		case predicate.True:
			return child, false, nil
		case predicate.Unknown:
			if me.MissingValueStrategy != MissingNone {
				return nil, true, nil
			}
		}
	}
	return nil, false, nil
}

// descend follows the path of the record. Returns the node making the
// prediction (nil for a null prediction) and the confidence penalty.
func (me *Model) descend(ctx *expression.Context) (*Node, float64, error) {
	node := me.Root
	penalty := 1.0
	for !node.IsLeaf() {
		next, unknown, err := me.selectChild(ctx, node)
		if err != nil {
			return nil, 0, err
		}
		if unknown {
			switch me.MissingValueStrategy {
			case LastPrediction:
				return node, penalty * me.MissingValuePenalty, nil
			case NullPrediction:
				return nil, 0, nil
			case DefaultChild:
				if node.DefaultChild != nil {
					next = node.DefaultChild
					penalty *= me.MissingValuePenalty
				}
			}
		}
		if next == nil {
			if me.NoTrueChildStrategy == ReturnLastPrediction {
				return node, penalty, nil
			}
			return nil, 0, nil
		}
		node = next
	}
	return node, penalty, nil
}

type weightedNode struct {
	node   *Node
	weight float64
}

// collect gathers the nodes reached by a record when unknown predicates
// split it between children. The weight of each child is its share of the
// records of the children reached.
func (me *Model) collect(ctx *expression.Context, node *Node, weight float64, out *[]weightedNode) error {
	if node.IsLeaf() {
		*out = append(*out, weightedNode{node, weight})
		return nil
	}
	var reached []*Node
	for _, child := range node.Children {
		r, err := child.Predicate.Evaluate(ctx)
		if err != nil {
			return status.Annotate(err, "node %q", child.ID)
		}
		if r == predicate.False {
			continue
		}
		reached = append(reached, child)
		if r == predicate.True {
			break
		}
	}
	if len(reached) == 0 {
		if me.NoTrueChildStrategy == ReturnLastPrediction {
			*out = append(*out, weightedNode{node, weight})
		}
		return nil
	}

	total := 0.0
	for _, child := range reached {
		total += child.totalRecords()
	}
	for _, child := range reached {
		share := 1 / float64(len(reached))
		if total > 0 {
			share = child.totalRecords() / total
		}
		if err := me.collect(ctx, child, weight*share, out); err != nil {
			return err
		}
	}
	return nil
}

// score is the prediction of a single node.
func (me *Model) score(node *Node, penalty float64) *model.Result {
	result := &model.Result{EntityID: node.ID}
	if me.base.Function == model.Regression {
		result.Predicted = node.Score
		return result
	}

	classes := me.classesOf([]*Node{node})
	if probabilities := node.probabilities(); probabilities != nil {
		result.SetProbabilities(classes, align(classes, probabilities))
		confidences := node.confidences()
		for class, confidence := range confidences {
			confidences[class] = confidence * penalty
		}
		result.Confidences = confidences
	}
	result.Predicted = me.predictedClass(node.Score, result)
	return result
}

// aggregate combines the nodes reached by a record.
func (me *Model) aggregate(leaves []weightedNode) *model.Result {
	result := &model.Result{}
	switch len(leaves) {
	case 0:
		return result
	case 1:
		return me.score(leaves[0].node, 1)
	}

	if me.base.Function == model.Regression {
		sum, weights := 0.0, 0.0
		for _, leaf := range leaves {
			score, ok := leaf.node.Score.Float()
			if !ok {
				continue
			}
			w := leaf.weight
			if me.MissingValueStrategy == AggregateNodes {
				w = leaf.node.totalRecords()
			}
			sum += w * score
			weights += w
		}
		if weights > 0 {
			result.Predicted = dataspec.Double(sum / weights)
		}
		return result
	}

	nodes := make([]*Node, len(leaves))
	for i, leaf := range leaves {
		nodes[i] = leaf.node
	}
	classes := me.classesOf(nodes)
	probabilities := make([]float64, len(classes))
	confidences := map[string]float64{}
	if me.MissingValueStrategy == AggregateNodes {
		total := 0.0
		for _, leaf := range leaves {
			for _, d := range leaf.node.Distribution {
				total += d.RecordCount
			}
		}
		for _, leaf := range leaves {
			for _, d := range leaf.node.Distribution {
				if i := indexOf(classes, d.Value); i >= 0 && total > 0 {
					probabilities[i] += d.RecordCount / total
				}
			}
		}
		for i, class := range classes {
			confidences[class] = probabilities[i]
		}
	} else {
		for _, leaf := range leaves {
			for class, p := range leaf.node.probabilities() {
				if i := indexOf(classes, class); i >= 0 {
					probabilities[i] += leaf.weight * p
				}
			}
			for class, c := range leaf.node.confidences() {
				confidences[class] += leaf.weight * c
			}
		}
	}
	result.SetProbabilities(classes, probabilities)
	result.Confidences = confidences
	result.Predicted = me.predictedClass(dataspec.Missing, result)
	return result
}

// classesOf returns the declared classes of the model or, if there are none,
// the classes of the distributions of the nodes in order of appearance.
func (me *Model) classesOf(nodes []*Node) []string {
	if len(me.classes) > 0 {
		return me.classes
	}
	var classes []string
	for _, node := range nodes {
		for _, d := range node.Distribution {
			if indexOf(classes, d.Value) < 0 {
				classes = append(classes, d.Value)
			}
		}
	}
	return classes
}

func (me *Model) predictedClass(score dataspec.Value, result *model.Result) dataspec.Value {
	if score.IsValid() {
		return me.base.ClassValue(score.Text())
	}
	if len(result.Probabilities) == 0 {
		return dataspec.Missing
	}
	return me.base.ClassValue(result.Classes[model.Argmax(result.Probabilities)])
}

func align(classes []string, probabilities map[string]float64) []float64 {
	aligned := make([]float64, len(classes))
	for i, class := range classes {
		aligned[i] = probabilities[class]
	}
	return aligned
}

func indexOf(values []string, value string) int {
	for i, v := range values {
		if v == value {
			return i
		}
	}
	return -1
}
