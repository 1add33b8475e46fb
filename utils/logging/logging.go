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

// Package logging holds the logger used by the library packages. It discards
// everything until a binary installs its own logger with Set.
package logging

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

var logger atomic.Pointer[zerolog.Logger]

func init() {
	Set(zerolog.Nop())
}

// Set replaces the logger of the library packages.
func Set(l zerolog.Logger) {
	logger.Store(&l)
}

// Logger returns the logger of the library packages.
func Logger() *zerolog.Logger {
	return logger.Load()
}
