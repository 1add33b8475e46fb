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

package xmltree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	root, err := Parse(strings.NewReader(`<?xml version="1.0"?>
<PMML xmlns="http://www.dmg.org/PMML-4_1" version="4.1">
  <Header copyright="c"/>
  <DataDictionary numberOfFields="2">
    <DataField name="a" optype="continuous" dataType="double"/>
    <DataField name="b" optype="categorical" dataType="string">
      <Value value="x"/>
    </DataField>
  </DataDictionary>
  <Array n="2" type="string"> "x y" z </Array>
</PMML>`))
	require.NoError(t, err)

	assert.Equal(t, "PMML", root.Name)
	assert.Equal(t, "4.1", root.AttrOr("version", ""))
	_, hasNamespace := root.Attr("xmlns")
	assert.False(t, hasNamespace)

	dict := root.Child("DataDictionary")
	require.NotNil(t, dict)
	n, err := dict.IntAttr("numberOfFields", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, dict.ChildrenNamed("DataField"), 2)
	assert.Nil(t, root.Child("Missing"))
	assert.Equal(t, `"x y" z`, root.Child("Array").Text)
	assert.Equal(t, `<DataField name="a">`, dict.Children[0].String())
}

func TestAttributes(t *testing.T) {
	root, err := Parse(strings.NewReader(`<A f="1.5" b="true" bad="x"/>`))
	require.NoError(t, err)

	f, err := root.FloatAttr("f", 0)
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)

	f, err = root.FloatAttr("absent", 7)
	require.NoError(t, err)
	assert.Equal(t, 7.0, f)

	b, err := root.BoolAttr("b", false)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = root.FloatAttr("bad", 0)
	assert.Error(t, err)
	_, err = root.BoolAttr("bad", false)
	assert.Error(t, err)
}

func TestMalformed(t *testing.T) {
	for _, doc := range []string{"", "<A>", "<A></B>", "not xml"} {
		_, err := Parse(strings.NewReader(doc))
		assert.Error(t, err, doc)
	}
}

func TestCharset(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><A v=\"caf\xe9\"/>"
	root, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "café", root.AttrOr("v", ""))
}
