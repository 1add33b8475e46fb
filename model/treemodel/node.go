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

package treemodel

import (
	"math"
	"strconv"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/model/predicate"
	"github.com/google/yggdrasil-pmml/utils/status"
	"github.com/google/yggdrasil-pmml/utils/xmltree"
)

// ScoreDistribution is the number of training records of a class in a node.
type ScoreDistribution struct {
	Value       string
	RecordCount float64
	// Probability and Confidence are NaN when not declared.
	Probability float64
	Confidence  float64
}

// Node is a tree node.
type Node struct {
	ID string
	// Score is the prediction of the node. Missing if not declared.
	Score        dataspec.Value
	RecordCount  float64
	Predicate    predicate.Predicate
	Distribution []ScoreDistribution
	Children     []*Node
	// DefaultChild is the child followed when the predicates of the children
	// cannot be evaluated. nil if not declared.
	DefaultChild *Node
}

// IsLeaf tests if a node is a leaf.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// NumLeafs is the number of leafs in a sub-tree.
func (n *Node) NumLeafs() int {
	if n.IsLeaf() {
		return 1
	}
	count := 0
	for _, child := range n.Children {
		count += child.NumLeafs()
	}
	return count
}

// NumNonLeafs is the number of non-leaf nodes in a sub-tree.
func (n *Node) NumNonLeafs() int {
	if n.IsLeaf() {
		return 0
	}
	count := 1
	for _, child := range n.Children {
		count += child.NumNonLeafs()
	}
	return count
}

// Depth is the number of nodes on the longest path from the node to a leaf.
func (n *Node) Depth() int {
	depth := 0
	for _, child := range n.Children {
		if d := child.Depth(); d > depth {
			depth = d
		}
	}
	return depth + 1
}

// totalRecords is the record count of the node, or the sum of its
// distribution when not declared.
func (n *Node) totalRecords() float64 {
	if n.RecordCount > 0 {
		return n.RecordCount
	}
	sum := 0.0
	for _, d := range n.Distribution {
		sum += d.RecordCount
	}
	return sum
}

// probabilities returns the probability of each class of the distribution.
// Declared probabilities win over record counts.
func (n *Node) probabilities() map[string]float64 {
	if len(n.Distribution) == 0 {
		return nil
	}
	sum := 0.0
	for _, d := range n.Distribution {
		sum += d.RecordCount
	}
	probabilities := make(map[string]float64, len(n.Distribution))
	for _, d := range n.Distribution {
		switch {
		case !math.IsNaN(d.Probability):
			probabilities[d.Value] = d.Probability
		case sum > 0:
			probabilities[d.Value] = d.RecordCount / sum
		default:
			probabilities[d.Value] = 0
		}
	}
	return probabilities
}

// confidences returns the declared confidences of the classes, defaulting
// to the probabilities.
func (n *Node) confidences() map[string]float64 {
	confidences := n.probabilities()
	for _, d := range n.Distribution {
		if !math.IsNaN(d.Confidence) {
			confidences[d.Value] = d.Confidence
		}
	}
	return confidences
}

// parseNode parses a <Node> and its children. "next" numbers the nodes
// without id in depth first order.
func parseNode(el *xmltree.Element, scoreType dataspec.DataType, next *int) (*Node, error) {
	*next++
	node := &Node{ID: el.AttrOr("id", strconv.Itoa(*next))}
	if raw, ok := el.Attr("score"); ok {
		node.Score = dataspec.ParseValue(raw, scoreType)
		if node.Score.IsInvalid() {
			return nil, status.Schemaf("%v: invalid score %q", el, raw)
		}
	}
	var err error
	if node.RecordCount, err = el.FloatAttr("recordCount", 0); err != nil {
		return nil, status.Schemaf("%v: %v", el, err)
	}

	predicateEl := predicate.First(el)
	if predicateEl == nil {
		return nil, status.Schemaf("%v has no predicate", el)
	}
	if node.Predicate, err = predicate.Parse(predicateEl); err != nil {
		return nil, status.Annotate(err, "%v", el)
	}

	for _, distributionEl := range el.ChildrenNamed("ScoreDistribution") {
		d := ScoreDistribution{Value: distributionEl.AttrOr("value", "")}
		if d.RecordCount, err = distributionEl.FloatAttr("recordCount", 0); err != nil {
			return nil, status.Schemaf("%v: %v", distributionEl, err)
		}
		if d.Probability, err = distributionEl.FloatAttr("probability", math.NaN()); err != nil {
			return nil, status.Schemaf("%v: %v", distributionEl, err)
		}
		if d.Confidence, err = distributionEl.FloatAttr("confidence", math.NaN()); err != nil {
			return nil, status.Schemaf("%v: %v", distributionEl, err)
		}
		node.Distribution = append(node.Distribution, d)
	}

	for _, childEl := range el.ChildrenNamed("Node") {
		child, err := parseNode(childEl, scoreType, next)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	if id, ok := el.Attr("defaultChild"); ok {
		for _, child := range node.Children {
			if child.ID == id {
				node.DefaultChild = child
				break
			}
		}
		if node.DefaultChild == nil {
			return nil, status.Schemaf("%v: unknown defaultChild %q", el, id)
		}
	}
	return node, nil
}

// references lists the fields read by the predicates of a sub-tree.
func (n *Node) references() []string {
	refs := n.Predicate.References()
	for _, child := range n.Children {
		refs = append(refs, child.references()...)
	}
	return refs
}
