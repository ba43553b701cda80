package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord summarizes one completed (or faulted) simulation run.
type RunRecord struct {
	VersionedRecord
	ID           string   `json:"id"`
	Network      string   `json:"network"`
	ModelPath    string   `json:"model_path,omitempty"`
	CreatedAtUTC string   `json:"created_at_utc"`
	StartTime    float64  `json:"start_time"`
	EndTime      float64  `json:"end_time"`
	StepSize     float64  `json:"step_size"`
	Steps        int      `json:"steps"`
	NodeCount    int      `json:"node_count"`
	Projections  int      `json:"projections"`
	ProbeKeys    []string `json:"probe_keys"`
	Fault        string   `json:"fault,omitempty"`
}

// RecordingRecord is the persisted form of one probe's time series.
type RecordingRecord struct {
	VersionedRecord
	RunID  string      `json:"run_id"`
	Key    string      `json:"key"`
	Target string      `json:"target"`
	State  string      `json:"state"`
	Times  []float64   `json:"times"`
	Values [][]float64 `json:"values"`
	Units  []Units     `json:"units"`
	Labels []string    `json:"labels"`
}

// ToTimeSeries rebuilds the immutable series from the persisted form.
func (r RecordingRecord) ToTimeSeries() (TimeSeries, error) {
	ts, err := NewTimeSeries(r.Times, r.Values, r.Units)
	if err != nil {
		return TimeSeries{}, err
	}
	if len(r.Labels) == ts.Dimension() && len(r.Labels) > 0 {
		if ts, err = ts.WithLabels(r.Labels); err != nil {
			return TimeSeries{}, err
		}
	}
	return ts.WithName(r.Key), nil
}

// RecordingFromTimeSeries captures ts for persistence.
func RecordingFromTimeSeries(runID, key, target, state string, ts TimeSeries) RecordingRecord {
	return RecordingRecord{
		RunID:  runID,
		Key:    key,
		Target: target,
		State:  state,
		Times:  ts.Times(),
		Values: ts.Values(),
		Units:  ts.Units(),
		Labels: ts.Labels(),
	}
}
