// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"time"

	"github.com/cloudwego/appealswarm/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageRunsTotal counts stage attempts.
	// Labels: stage (radiology/transcript/letter), status (ok/failed/retry)
	StageRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appealswarm_stage_runs_total",
			Help: "Total number of stage attempts by stage and outcome",
		},
		[]string{"stage", "status"},
	)

	// StageDuration is the wall time of one attempt. Simulated runs sit at
	// the configured delay, live runs at provider latency.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "appealswarm_stage_duration_seconds",
			Help:    "Stage attempt duration in seconds by stage",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	GateRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appealswarm_gate_rejections_total",
			Help: "Letter requests refused because radiology or transcript was missing",
		},
	)

	BusyRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appealswarm_busy_rejections_total",
			Help: "Triggers refused because the same stage was already running",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "appealswarm_sessions_active",
			Help: "Number of live sessions",
		},
	)
)

// StageObserver feeds coordinator events into the collectors above.
type StageObserver struct{}

var _ pipeline.Observer = StageObserver{}

func (StageObserver) StageStarted(string) {}

func (StageObserver) StageFinished(stage string, status pipeline.StepStatus, elapsed time.Duration) {
	StageRunsTotal.WithLabelValues(stage, string(status)).Inc()
	StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (StageObserver) GateRejected(string) { GateRejectionsTotal.Inc() }

func (StageObserver) BusyRejected(string) { BusyRejectionsTotal.Inc() }

func SessionOpened() { SessionsActive.Inc() }

func SessionClosed() { SessionsActive.Dec() }
