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
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	assert.True(t, ParseValue(nil, TypeDouble).IsMissing())
	assert.True(t, ParseValue("", TypeString).IsMissing())
	assert.True(t, ParseValue(math.NaN(), TypeDouble).IsMissing())

	v := ParseValue("5.1", TypeDouble)
	f, ok := v.Float()
	require.True(t, ok)
	assert.Equal(t, 5.1, f)
	assert.Equal(t, KindDouble, v.Kind())

	v = ParseValue(json.Number("7"), TypeDouble)
	assert.Equal(t, Double(7), v)

	assert.Equal(t, Integer(3), ParseValue("3", TypeInteger))
	assert.Equal(t, Integer(3), ParseValue(3.0, TypeInteger))
	assert.True(t, ParseValue(3.5, TypeInteger).IsInvalid())
	assert.True(t, ParseValue("abc", TypeDouble).IsInvalid())
	assert.Equal(t, "abc", ParseValue("abc", TypeDouble).Text())

	assert.Equal(t, String("1"), ParseValue(1.0, TypeString))
	assert.Equal(t, Boolean(true), ParseValue("true", TypeBoolean))

	list := ParseValue([]interface{}{1.0, "2"}, TypeDouble)
	require.Equal(t, KindList, list.Kind())
	assert.Equal(t, []Value{Double(1), Double(2)}, list.Items())
}

func TestCast(t *testing.T) {
	v, err := Double(2).Cast(TypeInteger)
	require.NoError(t, err)
	assert.Equal(t, Integer(2), v)

	_, err = Double(2.5).Cast(TypeInteger)
	assert.Error(t, err)

	v, err = Integer(2).Cast(TypeDouble)
	require.NoError(t, err)
	assert.Equal(t, Double(2), v)

	v, err = Double(0.5).Cast(TypeString)
	require.NoError(t, err)
	assert.Equal(t, String("0.5"), v)

	v, err = String("1960-01-03").Cast(TypeDateDaysSince1960)
	require.NoError(t, err)
	assert.Equal(t, Integer(2), v)

	v, err = String("1970-01-01T00:01:00").Cast(TypeDateTimeSecondsSince1970)
	require.NoError(t, err)
	assert.Equal(t, Integer(60), v)

	// Year 0 is more than 292 years away: beyond the range of time.Duration.
	v, err = String("2020-01-01").Cast(TypeDateDaysSince0)
	require.NoError(t, err)
	assert.Equal(t, Integer(737790), v)

	v, err = String("2020-01-01T00:00:01").Cast(TypeDateTimeSecondsSince0)
	require.NoError(t, err)
	assert.Equal(t, Integer(737790*86400+1), v)

	v, err = String("1959-12-31T12:00:00").Cast(TypeDateDaysSince1960)
	require.NoError(t, err)
	assert.Equal(t, Integer(-1), v)

	v, err = String("2024-02-29").Cast(TypeDate)
	require.NoError(t, err)
	tm, ok := v.Time()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), tm)
	assert.Equal(t, "2024-02-29", v.Text())

	v, err = Missing.Cast(TypeDouble)
	require.NoError(t, err)
	assert.True(t, v.IsMissing())
}

func TestCompare(t *testing.T) {
	c, ok := Integer(1).Compare(Double(1.5))
	require.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = String("2").Compare(Double(1))
	require.True(t, ok)
	assert.Equal(t, 1, c)

	assert.True(t, String("1.0").Equal(Integer(1)))
	assert.True(t, String("a").Equal(String("a")))
	assert.False(t, String("a").Equal(Integer(1)))
	assert.True(t, Missing.Equal(Missing))
	assert.False(t, Missing.Equal(Double(0)))

	_, ok = Invalid("x").Compare(String("x"))
	assert.False(t, ok)
}

func TestInterface(t *testing.T) {
	assert.Nil(t, Missing.Interface())
	assert.Nil(t, Invalid("x").Interface())
	assert.Equal(t, "a", String("a").Interface())
	assert.Equal(t, int64(4), Integer(4).Interface())
	assert.Equal(t, 0.25, Double(0.25).Interface())
	assert.Equal(t, true, Boolean(true).Interface())
}
