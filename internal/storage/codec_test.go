package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"nengosim/internal/model"
)

func sampleRecording(samples int) model.RecordingRecord {
	rec := model.RecordingRecord{
		VersionedRecord: Versioned(),
		RunID:           "run-1",
		Key:             "B.X",
		Target:          "B",
		State:           "X",
		Units:           []model.Units{model.UnitsUnknown},
		Labels:          []string{"0"},
	}
	for i := 0; i < samples; i++ {
		rec.Times = append(rec.Times, float64(i+1)*0.001)
		rec.Values = append(rec.Values, []float64{0.5})
	}
	return rec
}

func TestRunCodecRoundTrip(t *testing.T) {
	run := model.RunRecord{
		VersionedRecord: Versioned(),
		ID:              "run-1",
		Network:         "integrator",
		CreatedAtUTC:    "2026-01-02T03:04:05Z",
		EndTime:         1,
		StepSize:        0.001,
		Steps:           1000,
		ProbeKeys:       []string{"B.X"},
	}
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode run: %v", err)
	}
	decoded, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if decoded.ID != run.ID || decoded.Steps != run.Steps || len(decoded.ProbeKeys) != 1 {
		t.Fatalf("unexpected run decoded: %+v", decoded)
	}
}

func TestRecordingCodecCompresses(t *testing.T) {
	rec := sampleRecording(500)
	payload, err := EncodeRecording(rec)
	if err != nil {
		t.Fatalf("encode recording: %v", err)
	}
	plain, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(payload) >= len(plain) {
		t.Fatalf("expected compressed payload smaller than %d bytes, got %d", len(plain), len(payload))
	}

	decoded, err := DecodeRecording(payload)
	if err != nil {
		t.Fatalf("decode recording: %v", err)
	}
	ts, err := decoded.ToTimeSeries()
	if err != nil {
		t.Fatalf("to time series: %v", err)
	}
	if ts.Len() != 500 || ts.Name() != "B.X" {
		t.Fatalf("unexpected series: len %d name %q", ts.Len(), ts.Name())
	}
}

func TestRecordingCodecRejectsBadInput(t *testing.T) {
	rec := sampleRecording(3)
	rec.Times = rec.Times[:2]
	if _, err := EncodeRecording(rec); err == nil {
		t.Fatal("expected error for mismatched times and samples")
	}
	if _, err := DecodeRecording(bytes.Repeat([]byte{0xff}, 16)); err == nil {
		t.Fatal("expected error for corrupt payload")
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	run := model.RunRecord{VersionedRecord: model.VersionedRecord{SchemaVersion: 99, CodecVersion: CurrentCodecVersion}, ID: "old"}
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode run: %v", err)
	}
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}

	rec := sampleRecording(1)
	rec.CodecVersion = 0
	payload, err := EncodeRecording(rec)
	if err != nil {
		t.Fatalf("encode recording: %v", err)
	}
	if _, err := DecodeRecording(payload); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}
