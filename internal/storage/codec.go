package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang/snappy"

	"nengosim/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Versioned stamps a record with the current schema and codec versions.
func Versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(run model.RunRecord) ([]byte, error) {
	return json.Marshal(run)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

// EncodeRecording marshals a recording to JSON and compresses it with snappy.
// Recordings are long runs of similar floats and compress well.
func EncodeRecording(recording model.RecordingRecord) ([]byte, error) {
	if len(recording.Times) != len(recording.Values) {
		return nil, fmt.Errorf("recording %s: %d times but %d samples", recording.Key, len(recording.Times), len(recording.Values))
	}
	data, err := json.Marshal(recording)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, data), nil
}

func DecodeRecording(payload []byte) (model.RecordingRecord, error) {
	data, err := snappy.Decode(nil, payload)
	if err != nil {
		return model.RecordingRecord{}, fmt.Errorf("decompress recording: %w", err)
	}
	var recording model.RecordingRecord
	if err := json.Unmarshal(data, &recording); err != nil {
		return model.RecordingRecord{}, err
	}
	if err := checkVersion(recording.VersionedRecord); err != nil {
		return model.RecordingRecord{}, err
	}
	return recording, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
