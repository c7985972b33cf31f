package cliutil

import (
	"context"
	"sync"

	"github.com/wandb/chunkup/internal/chunkupload"
)

// Outcomes of a file in a run summary.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomePending   = "pending"
)

// FileResult is the result of uploading one file.
type FileResult struct {
	Name          string `json:"name" yaml:"name"`
	Size          int64  `json:"size" yaml:"size"`
	UploadedBytes int64  `json:"uploadedBytes" yaml:"uploadedBytes"`
	Outcome       string `json:"outcome" yaml:"outcome"`
	Error         string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary describes the result of an upload run.
type Summary struct {
	RunID string       `json:"runId" yaml:"runId"`
	Files []FileResult `json:"files" yaml:"files"`

	Completed int `json:"completed" yaml:"completed"`
	Failed    int `json:"failed" yaml:"failed"`
	Cancelled int `json:"cancelled" yaml:"cancelled"`
	Pending   int `json:"pending" yaml:"pending"`
}

// Report collects per-file outcomes from upload hooks.
type Report struct {
	mu      sync.Mutex
	results map[string]*FileResult
}

func NewReport() *Report {
	return &Report{results: make(map[string]*FileResult)}
}

// Hooks returns upload hooks that record into the report.
func (r *Report) Hooks() chunkupload.Hooks {
	return chunkupload.Hooks{
		OnItemStart: func(_ context.Context, item chunkupload.FileItem) error {
			r.set(item, OutcomeCancelled, nil)
			return nil
		},

		OnItemProgress: func(item chunkupload.FileItem) {
			r.mu.Lock()
			defer r.mu.Unlock()

			if result, ok := r.results[item.File.Name()]; ok {
				result.UploadedBytes = item.UploadedBytes
			}
		},

		OnItemComplete: func(_ context.Context, item chunkupload.FileItem) error {
			r.set(item, OutcomeCompleted, nil)
			return nil
		},

		OnItemError: func(item chunkupload.FileItem, err error) {
			r.set(item, OutcomeFailed, err)
		},
	}
}

// set records an outcome. A started file stays "cancelled" until it
// completes or fails.
func (r *Report) set(item chunkupload.FileItem, outcome string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := &FileResult{
		Name:          item.File.Name(),
		Size:          item.File.Size(),
		UploadedBytes: item.UploadedBytes,
		Outcome:       outcome,
	}
	if err != nil {
		result.Error = err.Error()
	}
	r.results[result.Name] = result
}

// Summary lists the items in queue order.
//
// Items never started in the run are pending, unless completed by a
// previous run.
func (r *Report) Summary(runID string, items []chunkupload.FileItem) Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	summary := Summary{RunID: runID, Files: make([]FileResult, 0, len(items))}

	for _, item := range items {
		var result FileResult
		if recorded, ok := r.results[item.File.Name()]; ok {
			result = *recorded
		} else {
			result = FileResult{
				Name:          item.File.Name(),
				Size:          item.File.Size(),
				UploadedBytes: item.UploadedBytes,
				Outcome:       OutcomePending,
			}
			if item.Completed() {
				result.Outcome = OutcomeCompleted
			}
		}

		switch result.Outcome {
		case OutcomeCompleted:
			summary.Completed++
		case OutcomeFailed:
			summary.Failed++
		case OutcomeCancelled:
			summary.Cancelled++
		case OutcomePending:
			summary.Pending++
		}

		summary.Files = append(summary.Files, result)
	}

	return summary
}
