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

// Package canonical is an alias for the `model/io` package that also links
// all the canonical model support along. Most of the time one wants to use
// this package instead of `model/io`. But to decrease code bloat, one can
// also depend on `model/io` and only the specific type of model desired.
package canonical

import (
	model_io "github.com/google/yggdrasil-pmml/model/io"

	// Include "canonical" model support.
	_ "github.com/google/yggdrasil-pmml/model/canonical"
)

var (
	// Load loads a document from a path or from its PMML text.
	// This is just an alias, see implementation in `model/io.go`
	Load = model_io.Load

	// LoadFile loads a document from disk.
	// This is just an alias, see implementation in `model/io.go`
	LoadFile = model_io.LoadFile

	// LoadString loads a document from its PMML text.
	// This is just an alias, see implementation in `model/io.go`
	LoadString = model_io.LoadString

	// LoadBytes loads a document from a PMML buffer.
	// This is just an alias, see implementation in `model/io.go`
	LoadBytes = model_io.LoadBytes
)
