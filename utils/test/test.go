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

// Package test contains utilities for unit testing.
package test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// CheckEq checks that "got" and "want" are deeply equal. The message is
// printed on failure.
func CheckEq(t *testing.T, got interface{}, want interface{}, msg string, opts ...cmp.Option) {
	t.Helper()
	if diff := cmp.Diff(want, got, opts...); diff != "" {
		t.Errorf("%s: unexpected value (-want +got):\n%s", msg, diff)
	}
}

// CheckNear checks that "got" is within "margin" of "want".
func CheckNear(t *testing.T, got float64, want float64, margin float64, msg string) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > margin {
		t.Errorf("%s: got %v, want %v (+/- %v)", msg, got, want, margin)
	}
}

// ApproxFloats is a cmp option comparing floats up to a relative margin.
func ApproxFloats(margin float64) cmp.Option {
	return cmpopts.EquateApprox(margin, margin)
}
