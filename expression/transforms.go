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

// LinearNorm is a point of a piecewise linear normalization.
type LinearNorm struct {
	Orig float64
	Norm float64
}

// NormContinuous is a <NormContinuous> element. Points are sorted by "Orig".
type NormContinuous struct {
	Field        string
	Points       []LinearNorm
	Outliers     dataspec.OutlierTreatment
	MapMissingTo dataspec.Value
}

// Evaluate implements Expression.
func (n *NormContinuous) Evaluate(ctx *Context) (dataspec.Value, error) {
	value, err := ctx.Lookup(n.Field)
	if err != nil {
		return dataspec.Missing, err
	}
	if value.IsMissing() {
		return n.MapMissingTo, nil
	}
	if value.IsInvalid() {
		return value, nil
	}
	x, ok := value.Float()
	if !ok {
		return dataspec.Missing, typeMismatch(value, "a number")
	}

	first, last := n.Points[0], n.Points[len(n.Points)-1]
	if x < first.Orig || x > last.Orig {
		switch n.Outliers {
		case dataspec.OutliersAsMissing:
			return n.MapMissingTo, nil
		case dataspec.OutliersAsExtreme:
			if x < first.Orig {
				return dataspec.Double(first.Norm), nil
			}
			return dataspec.Double(last.Norm), nil
		}
	}

	// Index of the segment: the outer segments are used to extrapolate.
	segment := 1
	for segment < len(n.Points)-1 && x > n.Points[segment].Orig {
		segment++
	}
	a, b := n.Points[segment-1], n.Points[segment]
	return dataspec.Double(a.Norm + (x-a.Orig)/(b.Orig-a.Orig)*(b.Norm-a.Norm)), nil
}

// References implements Expression.
func (n *NormContinuous) References() []string { return []string{n.Field} }

// NormDiscrete is a <NormDiscrete> element: 1 if the field is equal to the
// value, 0 otherwise.
type NormDiscrete struct {
	Field        string
	Value        dataspec.Value
	MapMissingTo dataspec.Value
}

// Evaluate implements Expression.
func (n *NormDiscrete) Evaluate(ctx *Context) (dataspec.Value, error) {
	value, err := ctx.Lookup(n.Field)
	if err != nil {
		return dataspec.Missing, err
	}
	if value.IsMissing() {
		return n.MapMissingTo, nil
	}
	if value.Equal(n.Value) || value.Text() == n.Value.Text() {
		return dataspec.Double(1), nil
	}
	return dataspec.Double(0), nil
}

// References implements Expression.
func (n *NormDiscrete) References() []string { return []string{n.Field} }

// DiscretizeBin maps an interval to a bin value.
type DiscretizeBin struct {
	Interval dataspec.Interval
	Value    dataspec.Value
}

// Discretize is a <Discretize> element. The first bin containing the value
// wins.
type Discretize struct {
	Field        string
	Bins         []DiscretizeBin
	MapMissingTo dataspec.Value
	DefaultValue dataspec.Value
}

// Evaluate implements Expression.
func (d *Discretize) Evaluate(ctx *Context) (dataspec.Value, error) {
	value, err := ctx.Lookup(d.Field)
	if err != nil {
		return dataspec.Missing, err
	}
	if value.IsMissing() {
		return d.MapMissingTo, nil
	}
	x, ok := value.Float()
	if !ok {
		if value.IsInvalid() {
			return value, nil
		}
		return dataspec.Missing, typeMismatch(value, "a number")
	}
	for _, bin := range d.Bins {
		if bin.Interval.Contains(x) {
			return bin.Value, nil
		}
	}
	return d.DefaultValue, nil
}

// References implements Expression.
func (d *Discretize) References() []string { return []string{d.Field} }

// FieldColumnPair binds a field to a column of an inline table.
type FieldColumnPair struct {
	Field  string
	Column string
}

// MapValues is a <MapValues> element: a lookup in an inline table.
type MapValues struct {
	Pairs        []FieldColumnPair
	OutputColumn string
	// Rows of the inline table, column name to cell text.
	Rows         []map[string]string
	DataType     dataspec.DataType
	MapMissingTo dataspec.Value
	DefaultValue dataspec.Value
}

// Evaluate implements Expression.
func (m *MapValues) Evaluate(ctx *Context) (dataspec.Value, error) {
	keys := make([]string, len(m.Pairs))
	for i, pair := range m.Pairs {
		value, err := ctx.Lookup(pair.Field)
		if err != nil {
			return dataspec.Missing, err
		}
		if value.IsMissing() {
			return m.MapMissingTo, nil
		}
		keys[i] = value.Text()
	}
	for _, row := range m.Rows {
		if m.matches(row, keys) {
			output, ok := row[m.OutputColumn]
			if !ok {
				return dataspec.Missing, nil
			}
			value := dataspec.ParseValue(output, m.DataType)
			if value.IsInvalid() {
				return dataspec.Missing, status.Evaluationf("map values: %q is not a valid %v", output, m.DataType)
			}
			return value, nil
		}
	}
	return m.DefaultValue, nil
}

func (m *MapValues) matches(row map[string]string, keys []string) bool {
	for i, pair := range m.Pairs {
		cell, ok := row[pair.Column]
		if !ok {
			return false
		}
		if !sameText(cell, keys[i]) {
			return false
		}
	}
	return true
}

// sameText compares cells as text, or as numbers when both are numbers, so
// that "1" matches "1.0".
func sameText(a, b string) bool {
	if a == b {
		return true
	}
	x, errX := dataspec.String(a).Cast(dataspec.TypeDouble)
	y, errY := dataspec.String(b).Cast(dataspec.TypeDouble)
	return errX == nil && errY == nil && x.Equal(y)
}

// References implements Expression.
func (m *MapValues) References() []string {
	refs := make([]string, len(m.Pairs))
	for i, pair := range m.Pairs {
		refs[i] = pair.Field
	}
	return refs
}
