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


package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/google/yggdrasil-pmml/model/io/canonical"
	"github.com/google/yggdrasil-pmml/serving"
	"github.com/google/yggdrasil-pmml/serving/format"
)

func newServer(t *testing.T) *Server {
	doc, err := canonical.LoadFile(context.Background(), "../../testdata/linear_regression.xml")
	require.NoError(t, err)
	e, err := serving.NewEngine(doc)
	require.NoError(t, err)
	return New(e, ServerConfig{Timeout: time.Second, MaxBodyBytes: 1 << 10})
}

func do(s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for key, value := range header {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestPredict(t *testing.T) {
	s := newServer(t)
	w := do(s, http.MethodPost, "/predict", `{"x1": 2, "x2": 0, "color": "red"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"predicted_y": 9.5, "double_y": 19}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestPredictBatch(t *testing.T) {
	s := newServer(t)
	w := do(s, http.MethodPost, "/predict", `[{"x1": 1, "color": "blue"}, {"x2": 1}]`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var answer []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &answer))
	require.Len(t, answer, 2)
	assert.Equal(t, 6.0, answer[0]["predicted_y"])
	assert.Contains(t, answer[1]["error"], "EvaluationError")
}

func TestPredictErrors(t *testing.T) {
	s := newServer(t)

	w := do(s, http.MethodPost, "/predict", `{"unknown": 1}`, map[string]string{RequestIDHeader: "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
	var failure ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &failure))
	assert.Equal(t, "InputFormatError", failure.Kind)
	assert.Equal(t, "abc", failure.RequestID)

	w = do(s, http.MethodPost, "/predict", `{"x2": 1, "color": "red"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(s, http.MethodPost, "/predict", `{"x1": "`+strings.Repeat("1", 2<<10)+`"}`, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestPredictProto(t *testing.T) {
	s := newServer(t)
	input, err := structpb.NewStruct(map[string]interface{}{"x1": 2, "x2": 0, "color": "red"})
	require.NoError(t, err)
	encoded, err := proto.Marshal(input)
	require.NoError(t, err)

	w := do(s, http.MethodPost, "/predict", string(encoded), map[string]string{"Content-Type": protobufContentType})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var prediction structpb.Struct
	require.NoError(t, proto.Unmarshal(w.Body.Bytes(), &prediction))
	assert.Equal(t, 9.5, prediction.Fields["predicted_y"].GetNumberValue())
}

func TestModelAndHealth(t *testing.T) {
	s := newServer(t)
	w := do(s, http.MethodGet, "/model", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var metadata format.Metadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &metadata))
	assert.Equal(t, "RegressionModel", metadata.ModelElement)
	assert.Equal(t, []string{"predicted_y", "double_y"}, metadata.Outputs)

	w = do(s, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
}

func TestMetrics(t *testing.T) {
	s := newServer(t)
	do(s, http.MethodPost, "/predict", `[{"x1": 1, "color": "blue"}, {"x2": 1}]`, nil)
	w := do(s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `pmml_records_total{outcome="ok"} 1`)
	assert.Contains(t, body, `pmml_records_total{outcome="error"} 1`)
	assert.Contains(t, body, `pmml_http_requests_total{code="200",route="/predict"} 1`)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.True(t, cfg.Model.SupplementOutput)

	path := filepath.Join(t.TempDir(), "pmml.yaml")
	content := "server:\n  address: \":9090\"\n  timeout: 5s\nmodel:\n  path: model.pmml\n  supplement_output: false\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("PMML_MODEL_WORKERS", "4")

	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "model.pmml", cfg.Model.Path)
	assert.Equal(t, 4, cfg.Model.Workers)
	options := cfg.Model.EngineOptions()
	assert.False(t, options.SupplementOutput)
	assert.Equal(t, 4, options.Workers)
}
