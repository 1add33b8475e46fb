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

package predicate

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/expression"
	"github.com/google/yggdrasil-pmml/utils/status"
	"github.com/google/yggdrasil-pmml/utils/xmltree"
)

func parse(t *testing.T, doc string) Predicate {
	t.Helper()
	el, err := xmltree.Parse(strings.NewReader(doc))
	require.NoError(t, err)
	p, err := Parse(el)
	require.NoError(t, err)
	return p
}

func evaluate(t *testing.T, p Predicate, values map[string]dataspec.Value) Result {
	t.Helper()
	ctx := expression.NewContext(nil)
	for name, value := range values {
		ctx.Bind(name, value)
	}
	r, err := p.Evaluate(ctx)
	require.NoError(t, err)
	return r
}

func TestSimple(t *testing.T) {
	p := parse(t, `<SimplePredicate field="petal_width" operator="lessOrEqual" value="0.6"/>`)
	assert.Equal(t, True, evaluate(t, p, map[string]dataspec.Value{"petal_width": dataspec.Double(0.2)}))
	assert.Equal(t, True, evaluate(t, p, map[string]dataspec.Value{"petal_width": dataspec.Double(0.6)}))
	assert.Equal(t, False, evaluate(t, p, map[string]dataspec.Value{"petal_width": dataspec.Double(1.4)}))
	assert.Equal(t, Unknown, evaluate(t, p, map[string]dataspec.Value{"petal_width": dataspec.Missing}))

	p = parse(t, `<SimplePredicate field="color" operator="equal" value="red"/>`)
	assert.Equal(t, True, evaluate(t, p, map[string]dataspec.Value{"color": dataspec.String("red")}))
	assert.Equal(t, False, evaluate(t, p, map[string]dataspec.Value{"color": dataspec.String("blue")}))

	p = parse(t, `<SimplePredicate field="color" operator="isMissing"/>`)
	assert.Equal(t, True, evaluate(t, p, map[string]dataspec.Value{"color": dataspec.Missing}))
	assert.Equal(t, []string{"color"}, p.References())
}

func TestIncomparable(t *testing.T) {
	p := parse(t, `<SimplePredicate field="color" operator="lessThan" value="3"/>`)
	ctx := expression.NewContext(nil)
	ctx.Bind("color", dataspec.String("red"))
	_, err := p.Evaluate(ctx)
	assert.True(t, errors.Is(err, status.ErrEvaluation))
}

func TestCompoundThreeValued(t *testing.T) {
	values := map[string]dataspec.Value{"a": dataspec.Double(1), "m": dataspec.Missing}
	const isOne = `<SimplePredicate field="a" operator="equal" value="1"/>`
	const isTwo = `<SimplePredicate field="a" operator="equal" value="2"/>`
	const unknown = `<SimplePredicate field="m" operator="equal" value="1"/>`

	compound := func(op string, children ...string) Predicate {
		return parse(t, `<CompoundPredicate booleanOperator="`+op+`">`+strings.Join(children, "")+`</CompoundPredicate>`)
	}
	assert.Equal(t, False, evaluate(t, compound("and", unknown, isTwo), values))
	assert.Equal(t, Unknown, evaluate(t, compound("and", unknown, isOne), values))
	assert.Equal(t, True, evaluate(t, compound("and", isOne, isOne), values))
	assert.Equal(t, True, evaluate(t, compound("or", unknown, isOne), values))
	assert.Equal(t, Unknown, evaluate(t, compound("or", unknown, isTwo), values))
	assert.Equal(t, False, evaluate(t, compound("or", isTwo, isTwo), values))
	assert.Equal(t, Unknown, evaluate(t, compound("xor", isOne, unknown), values))
	assert.Equal(t, True, evaluate(t, compound("xor", isOne, isTwo), values))
	assert.Equal(t, False, evaluate(t, compound("surrogate", unknown, isTwo, isOne), values))
	assert.Equal(t, Unknown, evaluate(t, compound("surrogate", unknown, unknown), values))
}

func TestSet(t *testing.T) {
	p := parse(t, `
<SimpleSetPredicate field="city" booleanOperator="isIn">
  <Array n="2" type="string">Paris "New York"</Array>
</SimpleSetPredicate>`)
	assert.Equal(t, True, evaluate(t, p, map[string]dataspec.Value{"city": dataspec.String("New York")}))
	assert.Equal(t, False, evaluate(t, p, map[string]dataspec.Value{"city": dataspec.String("Rome")}))
	assert.Equal(t, Unknown, evaluate(t, p, map[string]dataspec.Value{"city": dataspec.Missing}))

	p = parse(t, `
<SimpleSetPredicate field="n" booleanOperator="isNotIn"><Array type="int">1 2</Array></SimpleSetPredicate>`)
	assert.Equal(t, True, evaluate(t, p, map[string]dataspec.Value{"n": dataspec.Integer(3)}))
	assert.Equal(t, False, evaluate(t, p, map[string]dataspec.Value{"n": dataspec.Integer(2)}))
}

func TestParseErrors(t *testing.T) {
	for _, doc := range []string{
		`<SimplePredicate field="a" operator="like" value="1"/>`,
		`<SimplePredicate field="a" operator="equal"/>`,
		`<CompoundPredicate booleanOperator="nand"><True/><True/></CompoundPredicate>`,
		`<CompoundPredicate booleanOperator="and"><True/></CompoundPredicate>`,
		`<SimpleSetPredicate field="a" booleanOperator="isIn"/>`,
		`<Predicate/>`,
	} {
		el, err := xmltree.Parse(strings.NewReader(doc))
		require.NoError(t, err)
		_, err = Parse(el)
		assert.True(t, errors.Is(err, status.ErrSchema), doc)
	}
}
