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


package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

// TestBenchmark evaluates the scoring speed of a small tree.
func TestBenchmark(t *testing.T) {
	options := Options{
		numRuns:    5,
		batchSize:  4,
		warmupRuns: 2}
	var out bytes.Buffer
	err := Run(context.Background(), irisModel, "csv:"+irisCsv, &options, &out)

	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Failed examples:        0") {
		t.Fatalf("Unexpected output:\n%s", out.String())
	}
}

func TestParseTypedPath(t *testing.T) {
	pathType, path, err := parseTypedPath("csv:/tmp/a:b.csv")
	if err != nil || pathType != "csv" || path != "/tmp/a:b.csv" {
		t.Fatalf("Unexpected result %v %v %v", pathType, path, err)
	}
	if _, _, err := parseTypedPath("/tmp/a.csv"); err == nil {
		t.Fatal("Expected an error")
	}
}
