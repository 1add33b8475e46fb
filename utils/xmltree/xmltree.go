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

// Package xmltree reads an XML document into a generic element tree.
//
// Namespaces are dropped: PMML documents are matched on local names only, so
// that the 3.x and 4.x namespaces are handled the same way.
package xmltree

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// Element is a node of the tree.
type Element struct {
	Name     string
	Attrs    []xml.Attr
	Children []*Element
	// Text is the concatenated character data directly under the element,
	// with surrounding blanks removed.
	Text string
}

// Parse reads a full document and returns its root element.
func Parse(r io.Reader) (*Element, error) {
	decoder := xml.NewDecoder(r)
	decoder.Strict = true
	decoder.CharsetReader = charsetReader

	var root *Element
	var stack []*Element
	var text []*bytes.Buffer
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := token.(type) {
		case xml.StartElement:
			el := &Element{Name: t.Name.Local}
			for _, attr := range t.Attr {
				if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
					continue
				}
				el.Attrs = append(el.Attrs, xml.Attr{Name: xml.Name{Local: attr.Name.Local}, Value: attr.Value})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
			text = append(text, &bytes.Buffer{})
		case xml.EndElement:
			last := len(stack) - 1
			stack[last].Text = strings.TrimSpace(text[last].String())
			stack = stack[:last]
			text = text[:last]
		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1].Write(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("empty document")
	}
	return root, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

// Attr returns the value of an attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, attr := range e.Attrs {
		if attr.Name.Local == name {
			return attr.Value, true
		}
	}
	return "", false
}

// AttrOr returns the value of an attribute, or "def" if absent.
func (e *Element) AttrOr(name string, def string) string {
	if value, ok := e.Attr(name); ok {
		return value
	}
	return def
}

// FloatAttr parses a numeric attribute. Returns "def" if absent.
func (e *Element) FloatAttr(name string, def float64) (float64, error) {
	value, ok := e.Attr(name)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("attribute %q of <%s> is not a number: %q", name, e.Name, value)
	}
	return f, nil
}

// IntAttr parses an integer attribute. Returns "def" if absent.
func (e *Element) IntAttr(name string, def int) (int, error) {
	value, ok := e.Attr(name)
	if !ok {
		return def, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("attribute %q of <%s> is not an integer: %q", name, e.Name, value)
	}
	return i, nil
}

// BoolAttr parses a boolean attribute. Returns "def" if absent.
func (e *Element) BoolAttr(name string, def bool) (bool, error) {
	value, ok := e.Attr(name)
	if !ok {
		return def, nil
	}
	switch strings.TrimSpace(value) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("attribute %q of <%s> is not a boolean: %q", name, e.Name, value)
}

// Child returns the first child with the given name, or nil.
func (e *Element) Child(name string) *Element {
	for _, child := range e.Children {
		if child.Name == name {
			return child
		}
	}
	return nil
}

// ChildrenNamed returns all the children with the given name.
func (e *Element) ChildrenNamed(name string) []*Element {
	var children []*Element
	for _, child := range e.Children {
		if child.Name == name {
			children = append(children, child)
		}
	}
	return children
}

// String is a short description used in error messages.
func (e *Element) String() string {
	if id, ok := e.Attr("id"); ok {
		return fmt.Sprintf("<%s id=%q>", e.Name, id)
	}
	if name, ok := e.Attr("name"); ok {
		return fmt.Sprintf("<%s name=%q>", e.Name, name)
	}
	return "<" + e.Name + ">"
}
