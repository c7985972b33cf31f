// Package uploadmetrics exports upload progress as Prometheus metrics.
package uploadmetrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wandb/chunkup/internal/chunkupload"
)

// Recorder updates metrics from upload hooks.
type Recorder struct {
	files           *prometheus.CounterVec
	uploadedBytes   prometheus.Counter
	progress        prometheus.Gauge
	runs            prometheus.Counter
	fileUploadTimes prometheus.Histogram

	mu sync.Mutex

	// bytesByFile is the progress of each file counted so far.
	bytesByFile map[string]int64

	// startTimes are the start times of files being uploaded.
	startTimes map[string]time.Time

	// now is time.Now, replaced in tests.
	now func() time.Time
}

// NewRecorder creates a recorder and registers its metrics.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunkup_files_total",
				Help: "Number of files processed, by outcome.",
			},
			[]string{ // labels
				"outcome",
			},
		),
		uploadedBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chunkup_uploaded_bytes",
				Help: "Number of bytes confirmed by the storage backend.",
			},
		),
		progress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chunkup_upload_progress_percent",
				Help: "Progress of the current upload run.",
			},
		),
		runs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chunkup_runs_total",
				Help: "Number of upload runs started.",
			},
		),
		fileUploadTimes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name: "chunkup_file_upload_seconds",
				Help: "Time to upload a file.",

				// [0.1s, 0.4s, ..., 6553.6s, +Inf]
				Buckets: prometheus.ExponentialBuckets(0.1, 4, 9),
			},
		),
		bytesByFile: make(map[string]int64),
		startTimes:  make(map[string]time.Time),
		now:         time.Now,
	}

	for _, c := range []prometheus.Collector{
		r.files,
		r.uploadedBytes,
		r.progress,
		r.runs,
		r.fileUploadTimes,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Hooks returns upload hooks that update the metrics.
func (r *Recorder) Hooks() chunkupload.Hooks {
	return chunkupload.Hooks{
		OnStart: func(context.Context) error {
			r.runs.Inc()
			r.progress.Set(0)
			return nil
		},

		OnItemStart: func(_ context.Context, item chunkupload.FileItem) error {
			r.mu.Lock()
			defer r.mu.Unlock()

			// A restarted file counts its bytes again.
			r.bytesByFile[item.File.Name()] = 0
			r.startTimes[item.File.Name()] = r.now()
			return nil
		},

		OnItemProgress: func(item chunkupload.FileItem) {
			r.mu.Lock()
			defer r.mu.Unlock()

			name := item.File.Name()
			if delta := item.UploadedBytes - r.bytesByFile[name]; delta > 0 {
				r.uploadedBytes.Add(float64(delta))
				r.bytesByFile[name] = item.UploadedBytes
			}
		},

		OnProgress: func(percent float64) {
			r.progress.Set(percent)
		},

		OnItemComplete: func(_ context.Context, item chunkupload.FileItem) error {
			r.files.WithLabelValues("completed").Inc()
			r.observeDuration(item)
			return nil
		},

		OnItemError: func(item chunkupload.FileItem, _ error) {
			r.files.WithLabelValues("failed").Inc()
			r.observeDuration(item)
		},
	}
}

func (r *Recorder) observeDuration(item chunkupload.FileItem) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := item.File.Name()
	if start, ok := r.startTimes[name]; ok {
		r.fileUploadTimes.Observe(r.now().Sub(start).Seconds())
		delete(r.startTimes, name)
	}
	delete(r.bytesByFile, name)
}
