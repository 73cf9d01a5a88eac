// Copyright 2024 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package monitor

import (
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every training metric. It is separate from the default
// registry so that exported files only contain training metrics.
var Registry = prometheus.NewRegistry()

var (
	TrainEpoch = promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "deepctr",
		Subsystem: "train",
		Name:      "epoch",
		Help:      "Last completed training epoch.",
	}, []string{"model"})
	TrainLoss = promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "deepctr",
		Subsystem: "train",
		Name:      "loss",
		Help:      "Binary cross entropy of the last mini-batch.",
	}, []string{"model"})
	TrainIterations = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "deepctr",
		Subsystem: "train",
		Name:      "iterations_total",
		Help:      "Number of optimizer steps.",
	}, []string{"model"})
	EpochSeconds = promauto.With(Registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "deepctr",
		Subsystem: "train",
		Name:      "epoch_seconds",
		Help:      "Duration of training epochs.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"model"})
	ValidScore = promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "deepctr",
		Subsystem: "valid",
		Name:      "score",
		Help:      "Validation metrics of the last epoch.",
	}, []string{"model", "metric"})
)

// WriteMetrics writes every training metric to a file in the Prometheus text
// format, e.g. for the node exporter textfile collector.
func WriteMetrics(path string) error {
	return errors.Trace(prometheus.WriteToTextfile(path, Registry))
}
