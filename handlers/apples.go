// Package handlers provides the HTTP handlers and the metric definitions
// they record into.
package handlers

import (
	"math"
	"math/rand/v2"
	"net/http"

	"github.com/giygas/apples-stats/interfaces"
	"github.com/giygas/apples-stats/logging"
	"github.com/giygas/apples-stats/stats"
)

// Delay range produced by RandomDelay, in milliseconds. Max is exclusive.
const (
	DelayMin = 501
	DelayMax = 5501
)

// ApplesBody is the fixed response of the /apples route
const ApplesBody = "apples"

// PodNameKey is the single label of every observation. The same key value
// must be used at record time as in the view, or the series is dropped.
var PodNameKey = stats.MustNewTagKey("pod_name")

// RequestServerTime is the simulated server time of one request.
// In Cloud Monitoring this is the metric.
var RequestServerTime = stats.Int64(
	"request_server_time",
	"The time it took to send a response",
	stats.UnitMilliseconds,
)

// RequestServerTimeBounds are the lower bucket bounds:
// >=0ms, >=100ms, >=200ms, >=400ms, >=1s, >=2s, >=4s.
var RequestServerTimeBounds = []float64{0, 100, 200, 400, 1000, 2000, 4000}

// RequestServerTimeView returns the distribution view over RequestServerTime,
// one timeseries per pod.
func RequestServerTimeView() *stats.View {
	return &stats.View{
		Name:        "request_server_time_distribution",
		Description: "The distribution of the request server times.",
		Measure:     RequestServerTime,
		TagKeys:     []stats.TagKey{PodNameKey},
		Aggregation: stats.Distribution(RequestServerTimeBounds...),
	}
}

// RandomDelay returns a synthetic server time in [DelayMin, DelayMax).
//
// The +1 and +500 offsets leave the 0, 100, 200 and 400 buckets empty.
func RandomDelay() int64 {
	return int64(math.Floor(rand.Float64()*5000 + 1 + 500))
}

// Apples serves GET /apples. It computes a delay, records it tagged with the
// current pod name and replies with a fixed body. Recording is fire and
// forget: a failure is logged and never changes the response.
func Apples(recorder interfaces.Recorder, delay func() int64, podName func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d := delay()
		logging.Info("Delay", "delay_ms", d)

		tags := stats.Tags{PodNameKey: podName()}
		if err := recorder.Record(r.Context(), RequestServerTime, d, tags); err != nil {
			logging.Warn("Failed to record request server time", "error", err)
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(ApplesBody))
	}
}
