package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"nengosim/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	recordings  map[string]map[string]model.RecordingRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.recordings = make(map[string]map[string]model.RecordingRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	s.runs[run.ID] = copyRun(run)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	return copyRun(run), true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, copyRun(run))
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	delete(s.recordings, id)
	return nil
}

func (s *MemoryStore) SaveRecording(_ context.Context, recording model.RecordingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	byKey, ok := s.recordings[recording.RunID]
	if !ok {
		byKey = make(map[string]model.RecordingRecord)
		s.recordings[recording.RunID] = byKey
	}
	byKey[recording.Key] = copyRecording(recording)
	return nil
}

func (s *MemoryStore) GetRecording(_ context.Context, runID, key string) (model.RecordingRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recording, ok := s.recordings[runID][key]
	if !ok {
		return model.RecordingRecord{}, false, nil
	}
	return copyRecording(recording), true, nil
}

func (s *MemoryStore) ListRecordings(_ context.Context, runID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.recordings[runID]))
	for key := range s.recordings[runID] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.recordings = make(map[string]map[string]model.RecordingRecord)
	return nil
}

func copyRun(run model.RunRecord) model.RunRecord {
	run.ProbeKeys = append([]string(nil), run.ProbeKeys...)
	return run
}

func copyRecording(recording model.RecordingRecord) model.RecordingRecord {
	recording.Times = append([]float64(nil), recording.Times...)
	values := make([][]float64, len(recording.Values))
	for i, v := range recording.Values {
		values[i] = append([]float64(nil), v...)
	}
	recording.Values = values
	recording.Units = append([]model.Units(nil), recording.Units...)
	recording.Labels = append([]string(nil), recording.Labels...)
	return recording
}

// sortRuns orders runs newest first, breaking ties by ID.
func sortRuns(runs []model.RunRecord) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC != runs[j].CreatedAtUTC {
			return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
		}
		return runs[i].ID < runs[j].ID
	})
}
