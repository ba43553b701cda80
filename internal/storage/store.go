package storage

import (
	"context"

	"nengosim/internal/model"
)

// Store persists run summaries and the probe recordings of each run.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns every run, newest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	// DeleteRun removes a run and its recordings.
	DeleteRun(ctx context.Context, id string) error
	SaveRecording(ctx context.Context, recording model.RecordingRecord) error
	GetRecording(ctx context.Context, runID, key string) (model.RecordingRecord, bool, error)
	// ListRecordings returns the recording keys of a run in sorted order.
	ListRecordings(ctx context.Context, runID string) ([]string, error)
	// Reset drops every run and recording.
	Reset(ctx context.Context) error
}
