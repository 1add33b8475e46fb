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


// Package server exposes an engine over HTTP.
//
// Routes:
//
//	POST /predict   Scores a JSON input of any of the shapes of package format.
//	                Send "Content-Type: application/x-protobuf" to score a
//	                record encoded as a google.protobuf.Struct.
//	GET  /model     Metadata of the served document.
//	GET  /health    Liveness.
//	GET  /metrics   Prometheus metrics.
//
// Every response carries an X-Request-Id header. The header of the request is
// used when present.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/google/yggdrasil-pmml/serving/engine"
	"github.com/google/yggdrasil-pmml/serving/format"
	"github.com/google/yggdrasil-pmml/utils/logging"
	"github.com/google/yggdrasil-pmml/utils/status"
)

// RequestIDHeader is the header holding the id of a request.
const RequestIDHeader = "X-Request-Id"

const protobufContentType = "application/x-protobuf"

type requestIDKey struct{}

// RequestID returns the id of the request being served, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ErrorResponse is the body of failed requests.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id"`
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
}

// Server serves the predictions of an engine.
type Server struct {
	engine   engine.Engine
	config   ServerConfig
	registry *prometheus.Registry
	metrics  *metrics
	router   *chi.Mux
}

// New creates a server. Each server has its own metric registry.
func New(e engine.Engine, config ServerConfig) *Server {
	registry := prometheus.NewRegistry()
	s := &Server{
		config:   config,
		registry: registry,
		metrics:  newMetrics(registry),
		router:   chi.NewRouter(),
	}
	s.engine = &countingEngine{Engine: e, metrics: s.metrics}

	s.router.Use(s.requestID)
	s.router.Use(s.observe)
	s.router.Use(middleware.Recoverer)

	s.router.Post("/predict", s.predict)
	s.router.Get("/model", s.describe)
	s.router.Get("/health", s.health)
	s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return s
}

// Handler is the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until "ctx" is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	failed := make(chan error, 1)
	go func() {
		logging.Logger().Info().Str("address", s.config.Address).Msg("Serving predictions")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
		close(failed)
	}()

	select {
	case err := <-failed:
		return err
	case <-ctx.Done():
	}
	logging.Logger().Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if len(id) == 0 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// observe logs each request and records its metrics.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && len(rctx.RoutePattern()) > 0 {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		s.metrics.observeRequest(route, ww.Status(), elapsed.Seconds())
		logging.Logger().Info().
			Str("request_id", RequestID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", elapsed).
			Msg("Request")
	})
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	body := r.Body
	if s.config.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	}
	input, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, http.StatusRequestEntityTooLarge, err)
			return
		}
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}

	if r.Header.Get("Content-Type") == protobufContentType {
		s.predictProto(w, r, input)
		return
	}

	answer, err := format.PredictJSON(ctx, s.engine, string(input))
	if err != nil {
		s.fail(w, r, statusCode(err), err)
		return
	}
	render.JSON(w, r, json.RawMessage(answer))
}

func (s *Server) predictProto(w http.ResponseWriter, r *http.Request, input []byte) {
	var record structpb.Struct
	if err := proto.Unmarshal(input, &record); err != nil {
		s.fail(w, r, http.StatusBadRequest, status.InputFormatf("invalid protobuf Struct: %w", err))
		return
	}
	prediction, err := format.PredictStruct(s.engine, &record)
	if err != nil {
		s.fail(w, r, statusCode(err), err)
		return
	}
	encoded, err := proto.Marshal(prediction)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", protobufContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(encoded)
}

func (s *Server) describe(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, format.Describe(s.engine))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:    "ok",
		Model:     s.engine.Document().Model.Name(),
		Timestamp: time.Now(),
	})
}

// statusCode maps the kind of an error to an HTTP status.
func statusCode(err error) int {
	switch {
	case errors.Is(err, status.ErrInputFormat):
		return http.StatusBadRequest
	case errors.Is(err, status.ErrEvaluation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, code int, err error) {
	logging.Logger().Debug().Str("request_id", RequestID(r.Context())).Err(err).Msg("Request failed")
	render.Status(r, code)
	render.JSON(w, r, ErrorResponse{
		Error:     err.Error(),
		Kind:      status.KindOf(err).String(),
		RequestID: RequestID(r.Context()),
	})
}
