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

package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSilentByDefault(t *testing.T) {
	assert.Equal(t, zerolog.Disabled, Logger().GetLevel())

	var buffer bytes.Buffer
	previous := *Logger()
	Set(zerolog.New(&buffer))
	defer Set(previous)

	Logger().Info().Str("key", "value").Msg("kept")
	assert.Contains(t, buffer.String(), `"key":"value"`)
	assert.Contains(t, buffer.String(), `"message":"kept"`)
}
