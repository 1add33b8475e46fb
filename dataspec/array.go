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
	"unicode"

	"github.com/google/yggdrasil-pmml/utils/xmltree"
)

// ParseArray returns the items of an <Array> element. Items are separated by
// blanks; double quotes group items containing blanks, and \" escapes a quote.
func ParseArray(el *xmltree.Element) ([]string, error) {
	var items []string
	var current strings.Builder
	inQuotes := false
	hasItem := false
	runes := []rune(el.Text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && inQuotes && i+1 < len(runes) && runes[i+1] == '"':
			current.WriteRune('"')
			i++
		case r == '"':
			inQuotes = !inQuotes
			hasItem = true
		case unicode.IsSpace(r) && !inQuotes:
			if hasItem {
				items = append(items, current.String())
				current.Reset()
				hasItem = false
			}
		default:
			current.WriteRune(r)
			hasItem = true
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("unterminated quote in %v", el)
	}
	if hasItem {
		items = append(items, current.String())
	}
	n, err := el.IntAttr("n", -1)
	if err != nil {
		return nil, err
	}
	if n >= 0 && n != len(items) {
		return nil, fmt.Errorf("%v declares %d items but contains %d", el, n, len(items))
	}
	return items, nil
}

// ParseArrayValues parses the items of an <Array> element into values of the
// given data type. When the data type is unknown, the "type" attribute of the
// array is used.
func ParseArrayValues(el *xmltree.Element, dataType DataType) ([]Value, error) {
	items, err := ParseArray(el)
	if err != nil {
		return nil, err
	}
	if dataType == TypeUnknown {
		switch el.AttrOr("type", "string") {
		case "int":
			dataType = TypeInteger
		case "real":
			dataType = TypeDouble
		default:
			dataType = TypeString
		}
	}
	values := make([]Value, len(items))
	for i, item := range items {
		values[i] = ParseValue(item, dataType)
		if !values[i].IsValid() {
			return nil, fmt.Errorf("item %q of %v is not a valid %v", item, el, dataType)
		}
	}
	return values, nil
}
