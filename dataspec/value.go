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

package dataspec

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Kind of a Value.
type Kind uint8

// Value kinds.
const (
	KindMissing Kind = iota
	KindInvalid
	KindString
	KindInteger
	KindDouble
	KindBoolean
	KindDateTime
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindInvalid:
		return "invalid"
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindDouble:
		return "double"
	case KindBoolean:
		return "boolean"
	case KindDateTime:
		return "dateTime"
	case KindList:
		return "list"
	}
	return "unknown"
}

// Value is a tagged scalar. The zero value is the missing value.
type Value struct {
	kind Kind
	// Text of string values, and raw text of invalid values.
	s    string
	i    int64
	f    float64
	t    time.Time
	list []Value
}

// Missing is the missing value.
var Missing = Value{}

// Invalid returns an invalid value remembering its raw text.
func Invalid(raw string) Value { return Value{kind: KindInvalid, s: raw} }

// String creates a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Integer creates an integer value.
func Integer(i int64) Value { return Value{kind: KindInteger, i: i} }

// Double creates a double value. NaN is the missing value.
func Double(f float64) Value {
	if math.IsNaN(f) {
		return Missing
	}
	return Value{kind: KindDouble, f: f}
}

// Boolean creates a boolean value.
func Boolean(b bool) Value {
	if b {
		return Value{kind: KindBoolean, i: 1}
	}
	return Value{kind: KindBoolean}
}

// DateTime creates a date / time value.
func DateTime(t time.Time) Value { return Value{kind: KindDateTime, t: t} }

// List creates a list value, used by Aggregate and multi-valued inputs.
func List(values []Value) Value { return Value{kind: KindList, list: values} }

// Kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsMissing tells if the value is missing.
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// IsInvalid tells if the value is invalid.
func (v Value) IsInvalid() bool { return v.kind == KindInvalid }

// IsValid tells if the value is neither missing nor invalid.
func (v Value) IsValid() bool { return v.kind != KindMissing && v.kind != KindInvalid }

// IsNumeric tells if the value can be used as a number.
func (v Value) IsNumeric() bool {
	return v.kind == KindInteger || v.kind == KindDouble || v.kind == KindBoolean
}

// Float returns the value as a double. Integers and booleans widen.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindInteger, KindBoolean:
		return float64(v.i), true
	case KindDouble:
		return v.f, true
	}
	return 0, false
}

// Int returns the value as an integer. Doubles are accepted only when they
// hold an integral value.
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindInteger, KindBoolean:
		return v.i, true
	case KindDouble:
		if v.f == math.Trunc(v.f) && math.Abs(v.f) < 1<<63 {
			return int64(v.f), true
		}
	}
	return 0, false
}

// Bool returns the truth value. Numbers are true when non zero.
func (v Value) Bool() (bool, bool) {
	switch v.kind {
	case KindBoolean, KindInteger:
		return v.i != 0, true
	case KindDouble:
		return v.f != 0, true
	case KindString:
		switch strings.ToLower(strings.TrimSpace(v.s)) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	}
	return false, false
}

// Time returns the date / time value.
func (v Value) Time() (time.Time, bool) {
	return v.t, v.kind == KindDateTime
}

// Items returns the elements of a list value.
func (v Value) Items() []Value { return v.list }

// Text is the canonical text of the value. Category matching is done on it.
func (v Value) Text() string {
	switch v.kind {
	case KindString, KindInvalid:
		return v.s
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindDouble:
		return formatDouble(v.f)
	case KindBoolean:
		if v.i != 0 {
			return "true"
		}
		return "false"
	case KindDateTime:
		if v.t.Hour() == 0 && v.t.Minute() == 0 && v.t.Second() == 0 && v.t.Nanosecond() == 0 {
			return v.t.Format("2006-01-02")
		}
		return v.t.Format("2006-01-02T15:04:05")
	case KindList:
		items := make([]string, len(v.list))
		for i, item := range v.list {
			items[i] = item.Text()
		}
		return strings.Join(items, " ")
	}
	return ""
}

func (v Value) String() string {
	switch v.kind {
	case KindMissing:
		return "<missing>"
	case KindInvalid:
		return fmt.Sprintf("<invalid %q>", v.s)
	}
	return v.Text()
}

// Interface returns the native Go value: nil, string, int64, float64, bool,
// time.Time or []interface{}.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.s
	case KindInteger:
		return v.i
	case KindDouble:
		return v.f
	case KindBoolean:
		return v.i != 0
	case KindDateTime:
		return v.t
	case KindList:
		items := make([]interface{}, len(v.list))
		for i, item := range v.list {
			items[i] = item.Interface()
		}
		return items
	}
	return nil
}

func formatDouble(f float64) string {
	if math.IsInf(f, 1) {
		return "INF"
	}
	if math.IsInf(f, -1) {
		return "-INF"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Compare orders two valid values. Numbers compare numerically (a string
// holding a number is accepted on either side), dates chronologically and
// everything else on the canonical text. Returns false if the values are not
// comparable.
func (v Value) Compare(o Value) (int, bool) {
	if !v.IsValid() || !o.IsValid() {
		return 0, false
	}
	if v.kind == KindDateTime && o.kind == KindDateTime {
		return v.t.Compare(o.t), true
	}
	a, aOk := v.asNumber()
	b, bOk := o.asNumber()
	if aOk && bOk && (v.IsNumeric() || o.IsNumeric()) {
		switch {
		case a < b:
			return -1, true
		case a > b:
			return 1, true
		}
		return 0, true
	}
	if v.IsNumeric() || o.IsNumeric() {
		if v.kind == KindBoolean || o.kind == KindBoolean {
			return strings.Compare(v.Text(), o.Text()), true
		}
		return 0, false
	}
	return strings.Compare(v.Text(), o.Text()), true
}

// Equal tells if two values are the same. Missing values are equal to each
// other.
func (v Value) Equal(o Value) bool {
	if v.IsMissing() || o.IsMissing() {
		return v.IsMissing() && o.IsMissing()
	}
	c, ok := v.Compare(o)
	return ok && c == 0
}

func (v Value) asNumber() (float64, bool) {
	if f, ok := v.Float(); ok {
		return f, true
	}
	if v.kind == KindString {
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		return f, err == nil
	}
	return 0, false
}

var timeLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse("15:04:05", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func epochTime(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// Since counts the whole days (or seconds) from "epoch" to "t", rounding
// toward the past. Unlike time.Duration, it does not saturate after 292
// years.
func Since(t, epoch time.Time, days bool) int64 {
	seconds := t.Unix() - epoch.Unix()
	if !days {
		return seconds
	}
	d := seconds / 86400
	if seconds%86400 < 0 {
		d--
	}
	return d
}

// ParseValue converts a raw external value (as found in a record, a CSV cell
// or a JSON document) to a value of the given data type. Absent, empty and NaN
// inputs are missing. Inputs that cannot be represented in the data type are
// invalid.
func ParseValue(raw interface{}, dataType DataType) Value {
	switch r := raw.(type) {
	case nil:
		return Missing
	case Value:
		if !r.IsValid() {
			return r
		}
		converted, err := r.Cast(dataType)
		if err != nil {
			return Invalid(r.Text())
		}
		return converted
	case string:
		if len(strings.TrimSpace(r)) == 0 {
			return Missing
		}
	case float64:
		if math.IsNaN(r) {
			return Missing
		}
	case float32:
		if math.IsNaN(float64(r)) {
			return Missing
		}
	case []interface{}:
		items := make([]Value, len(r))
		for i, item := range r {
			items[i] = ParseValue(item, dataType)
		}
		return List(items)
	}

	switch dataType {
	case TypeString, TypeUnknown:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return Invalid(fmt.Sprint(raw))
		}
		return String(s)
	case TypeInteger:
		if s, ok := raw.(string); ok {
			if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				return Integer(i)
			}
		}
		f, err := cast.ToFloat64E(raw)
		if err != nil || f != math.Trunc(f) {
			return Invalid(rawText(raw))
		}
		return Integer(int64(f))
	case TypeFloat, TypeDouble:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return Invalid(rawText(raw))
		}
		return Double(f)
	case TypeBoolean:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return Invalid(rawText(raw))
		}
		return Boolean(b)
	}

	var v Value
	switch r := raw.(type) {
	case time.Time:
		v = DateTime(r)
	case string:
		v = String(r)
	default:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return Invalid(rawText(raw))
		}
		v = Double(f)
	}
	converted, err := v.Cast(dataType)
	if err != nil {
		return Invalid(rawText(raw))
	}
	return converted
}

func rawText(raw interface{}) string {
	if n, ok := raw.(json.Number); ok {
		return n.String()
	}
	return fmt.Sprint(raw)
}

// Cast converts a valid value to a data type. Missing and invalid values are
// returned unchanged. A double is never truncated to an integer.
func (v Value) Cast(dataType DataType) (Value, error) {
	if !v.IsValid() || v.kind == KindList {
		return v, nil
	}
	switch dataType {
	case TypeUnknown:
		return v, nil
	case TypeString:
		if v.kind == KindString {
			return v, nil
		}
		return String(v.Text()), nil
	case TypeInteger:
		if i, ok := v.Int(); ok {
			return Integer(i), nil
		}
		if v.kind == KindString {
			if i, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64); err == nil {
				return Integer(i), nil
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64); err == nil && f == math.Trunc(f) {
				return Integer(int64(f)), nil
			}
		}
	case TypeFloat, TypeDouble:
		if f, ok := v.asNumber(); ok {
			return Double(f), nil
		}
	case TypeBoolean:
		if b, ok := v.Bool(); ok {
			return Boolean(b), nil
		}
	case TypeDate, TypeTime, TypeDateTime:
		if v.kind == KindDateTime {
			return v, nil
		}
		if v.kind == KindString {
			if t, ok := parseTime(v.s); ok {
				return DateTime(t), nil
			}
		}
	case TypeTimeSeconds:
		t, ok := v.Time()
		if !ok && v.kind == KindString {
			t, ok = parseTime(v.s)
		}
		if ok {
			return Integer(int64(t.Hour()*3600 + t.Minute()*60 + t.Second())), nil
		}
		if i, ok := v.asInteger(); ok {
			return Integer(i), nil
		}
	default:
		year, days := dataType.epoch()
		if year < 0 {
			break
		}
		t, ok := v.Time()
		if !ok && v.kind == KindString {
			t, ok = parseTime(v.s)
		}
		if ok {
			return Integer(Since(t, epochTime(year), days)), nil
		}
		if i, ok := v.asInteger(); ok {
			return Integer(i), nil
		}
	}
	return Missing, fmt.Errorf("cannot convert %v value %q to %v", v.kind, v.Text(), dataType)
}

func (v Value) asInteger() (int64, bool) {
	if i, ok := v.Int(); ok {
		return i, true
	}
	if f, ok := v.asNumber(); ok && f == math.Trunc(f) {
		return int64(f), true
	}
	return 0, false
}

// Record is a raw input record: field name to external value.
type Record map[string]interface{}
