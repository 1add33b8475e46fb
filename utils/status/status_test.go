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

package status

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	err := Schemaf("duplicate field %q", "x")
	assert.True(t, errors.Is(err, ErrSchema))
	assert.False(t, errors.Is(err, ErrParse))
	assert.Equal(t, KindSchema, KindOf(err))
	assert.Equal(t, `SchemaError: duplicate field "x"`, err.Error())
}

func TestWrapping(t *testing.T) {
	err := Parsef("cannot read document: %w", io.ErrUnexpectedEOF)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.True(t, errors.Is(err, ErrParse))

	outer := fmt.Errorf("loading model: %w", err)
	assert.True(t, errors.Is(outer, ErrParse))
	assert.Equal(t, KindParse, KindOf(outer))
	assert.Equal(t, KindUnknown, KindOf(io.EOF))
}

func TestSentinelsAreDistinctFromMessages(t *testing.T) {
	a := Evaluationf("a")
	b := Evaluationf("b")
	assert.False(t, errors.Is(a, b))
	assert.True(t, errors.Is(a, ErrEvaluation))
}

func TestAnnotate(t *testing.T) {
	err := Annotate(Evaluationf("division by zero"), "field %q", "ratio")
	assert.Equal(t, `EvaluationError: field "ratio": division by zero`, err.Error())
	assert.True(t, errors.Is(err, ErrEvaluation))

	err = Annotate(io.EOF, "reading")
	assert.True(t, errors.Is(err, io.EOF))
	assert.Equal(t, KindUnknown, KindOf(err))
}
