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

package file

import (
	"context"
	"path/filepath"
	"testing"
)

func TestWriteReadExists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "model.pmml")

	if Exists(ctx, path) {
		t.Fatalf("%q should not exist yet", path)
	}
	if err := WriteFile(ctx, path, []byte("<PMML/>")); err != nil {
		t.Fatal(err)
	}
	if !Exists(ctx, path) {
		t.Fatalf("%q should exist", path)
	}
	data, err := ReadFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "<PMML/>" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestExistsRejectsNonPaths(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"", "<PMML version=\"4.1\"></PMML>", t.TempDir()} {
		if Exists(ctx, name) {
			t.Errorf("Exists(%q) = true", name)
		}
	}
}
