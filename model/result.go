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
)

// Result is the outcome of the evaluation of a model on a record. It always
// holds everything the model computed; the selection of what is returned to
// the user is done when formatting it.
type Result struct {
	// Target is the name of the predicted field.
	Target string
	// Predicted is the predicted value, after the targets post-processing.
	// Missing if the model cannot make a prediction.
	Predicted dataspec.Value
	// Classes and Probabilities are aligned. Only set by classification
	// models.
	Classes       []string
	Probabilities []float64
	// Confidences of the classes, when different from the probabilities.
	Confidences map[string]float64
	// EntityID identifies the node, rule or segment that produced the
	// prediction.
	EntityID string
	// ReasonCodes, the most important first.
	ReasonCodes []string
	// Segments holds the results of the segments of a mining model, by
	// segment id.
	Segments   map[string]*Result
	SegmentIDs []string
	Warnings   []string
	// Outputs are the values of the output fields, in declaration order.
	Outputs []OutputValue
}

// OutputValue is the value of an output field.
type OutputValue struct {
	Field *OutputField
	Value dataspec.Value
}

// SetProbabilities sets the class probabilities.
func (r *Result) SetProbabilities(classes []string, probabilities []float64) {
	r.Classes = classes
	r.Probabilities = probabilities
}

// Probability returns the probability of a class. A class without
// probability has probability 0 when the result holds probabilities.
func (r *Result) Probability(class string) (float64, bool) {
	if len(r.Probabilities) == 0 {
		return 0, false
	}
	for i, c := range r.Classes {
		if c == class {
			return r.Probabilities[i], true
		}
	}
	return 0, true
}

// Confidence returns the confidence of a class, or its probability.
func (r *Result) Confidence(class string) (float64, bool) {
	if confidence, ok := r.Confidences[class]; ok {
		return confidence, true
	}
	return r.Probability(class)
}

// Output returns the value of an output field.
func (r *Result) Output(name string) (dataspec.Value, bool) {
	for _, output := range r.Outputs {
		if output.Field.Name == name {
			return output.Value, true
		}
	}
	return dataspec.Missing, false
}

// Warn records a warning.
func (r *Result) Warn(warning string) {
	r.Warnings = append(r.Warnings, warning)
}
