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
	"fmt"
	"strings"
)

// DataType is the declared storage type of a field.
type DataType int

// Supported data types.
const (
	TypeUnknown DataType = iota
	TypeString
	TypeInteger
	TypeFloat
	TypeDouble
	TypeBoolean
	TypeDate
	TypeTime
	TypeDateTime
	TypeDateDaysSince0
	TypeDateDaysSince1960
	TypeDateDaysSince1970
	TypeDateDaysSince1980
	TypeTimeSeconds
	TypeDateTimeSecondsSince0
	TypeDateTimeSecondsSince1960
	TypeDateTimeSecondsSince1970
	TypeDateTimeSecondsSince1980
)

var dataTypeNames = map[DataType]string{
	TypeString:                   "string",
	TypeInteger:                  "integer",
	TypeFloat:                    "float",
	TypeDouble:                   "double",
	TypeBoolean:                  "boolean",
	TypeDate:                     "date",
	TypeTime:                     "time",
	TypeDateTime:                 "dateTime",
	TypeDateDaysSince0:           "dateDaysSince[0]",
	TypeDateDaysSince1960:        "dateDaysSince[1960]",
	TypeDateDaysSince1970:        "dateDaysSince[1970]",
	TypeDateDaysSince1980:        "dateDaysSince[1980]",
	TypeTimeSeconds:              "timeSeconds",
	TypeDateTimeSecondsSince0:    "dateTimeSecondsSince[0]",
	TypeDateTimeSecondsSince1960: "dateTimeSecondsSince[1960]",
	TypeDateTimeSecondsSince1970: "dateTimeSecondsSince[1970]",
	TypeDateTimeSecondsSince1980: "dateTimeSecondsSince[1980]",
}

func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseDataType parses the "dataType" attribute.
func ParseDataType(s string) (DataType, error) {
	for dataType, name := range dataTypeNames {
		if name == s {
			return dataType, nil
		}
	}
	return TypeUnknown, fmt.Errorf("unknown dataType %q", s)
}

// IsNumeric tells if values of this type are stored as numbers.
func (t DataType) IsNumeric() bool {
	switch t {
	case TypeInteger, TypeFloat, TypeDouble:
		return true
	}
	return t.IsCounter()
}

// IsCounter tells if the type is a number of days or seconds since an epoch.
func (t DataType) IsCounter() bool {
	switch t {
	case TypeDateDaysSince0, TypeDateDaysSince1960, TypeDateDaysSince1970, TypeDateDaysSince1980,
		TypeTimeSeconds,
		TypeDateTimeSecondsSince0, TypeDateTimeSecondsSince1960, TypeDateTimeSecondsSince1970,
		TypeDateTimeSecondsSince1980:
		return true
	}
	return false
}

// epoch returns the reference year of a counter type and whether it counts
// days (true) or seconds (false).
func (t DataType) epoch() (year int, days bool) {
	switch t {
	case TypeDateDaysSince0:
		return 0, true
	case TypeDateDaysSince1960:
		return 1960, true
	case TypeDateDaysSince1970:
		return 1970, true
	case TypeDateDaysSince1980:
		return 1980, true
	case TypeDateTimeSecondsSince0:
		return 0, false
	case TypeDateTimeSecondsSince1960:
		return 1960, false
	case TypeDateTimeSecondsSince1970:
		return 1970, false
	case TypeDateTimeSecondsSince1980:
		return 1980, false
	}
	return -1, false
}

// OpType is the operational type of a field.
type OpType int

// Operational types.
const (
	OpUnknown OpType = iota
	OpContinuous
	OpCategorical
	OpOrdinal
)

func (t OpType) String() string {
	switch t {
	case OpContinuous:
		return "continuous"
	case OpCategorical:
		return "categorical"
	case OpOrdinal:
		return "ordinal"
	}
	return "unknown"
}

// ParseOpType parses the "optype" attribute.
func ParseOpType(s string) (OpType, error) {
	switch strings.TrimSpace(s) {
	case "continuous":
		return OpContinuous, nil
	case "categorical":
		return OpCategorical, nil
	case "ordinal":
		return OpOrdinal, nil
	}
	return OpUnknown, fmt.Errorf("unknown optype %q", s)
}

// DefaultOpType is the operational type implied by a data type.
func DefaultOpType(t DataType) OpType {
	switch t {
	case TypeString, TypeBoolean:
		return OpCategorical
	case TypeDate, TypeTime, TypeDateTime:
		return OpOrdinal
	}
	return OpContinuous
}
