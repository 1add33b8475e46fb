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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/google/yggdrasil-pmml/serving/engine"
	"github.com/google/yggdrasil-pmml/serving/example"
)

type metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	records  *prometheus.CounterVec
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmml_http_requests_total",
			Help: "Number of HTTP requests, by route and status code.",
		}, []string{"route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pmml_http_request_duration_seconds",
			Help:    "Duration of the HTTP requests, by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmml_records_total",
			Help: "Number of scored records, by outcome.",
		}, []string{"outcome"}),
	}
	registry.MustRegister(
		m.requests, m.latency, m.records,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) observeRequest(route string, code int, seconds float64) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.latency.WithLabelValues(route).Observe(seconds)
}

func (m *metrics) observeRecord(err error) {
	if err != nil {
		m.records.WithLabelValues("error").Inc()
		return
	}
	m.records.WithLabelValues("ok").Inc()
}

// countingEngine counts the records scored by an engine.
type countingEngine struct {
	engine.Engine
	metrics *metrics
}

func (e *countingEngine) Predict(record example.Record) (example.Record, error) {
	prediction, err := e.Engine.Predict(record)
	e.metrics.observeRecord(err)
	return prediction, err
}

func (e *countingEngine) PredictBatch(ctx context.Context, records []example.Record) []example.Slot {
	slots := e.Engine.PredictBatch(ctx, records)
	for _, slot := range slots {
		e.metrics.observeRecord(slot.Err)
	}
	return slots
}
