package model

import (
	"errors"
	"testing"
)

func TestNewTimeSeriesRejectsUnequalLengths(t *testing.T) {
	_, err := NewTimeSeries([]float64{0, 1}, [][]float64{{1}}, nil)
	if !errors.Is(err, ErrTimeSeriesShape) {
		t.Fatalf("expected shape error, got %v", err)
	}
}

func TestNewTimeSeriesRejectsRaggedSamples(t *testing.T) {
	_, err := NewTimeSeries([]float64{0, 1}, [][]float64{{1, 2}, {1}}, nil)
	if !errors.Is(err, ErrTimeSeriesShape) {
		t.Fatalf("expected shape error, got %v", err)
	}
}

func TestTimeSeriesIsImmutable(t *testing.T) {
	times := []float64{0, 0.5}
	values := [][]float64{{1, 2}, {3, 4}}
	ts, err := NewTimeSeries(times, values, []Units{UnitsVolts, UnitsUnknown})
	if err != nil {
		t.Fatalf("new time series: %v", err)
	}

	times[0] = 9
	values[1][0] = 9
	got := ts.Values()
	got[0][0] = 42

	if ts.Times()[0] != 0 {
		t.Fatalf("times aliased caller slice: %v", ts.Times())
	}
	if ts.Values()[1][0] != 3 || ts.Values()[0][0] != 1 {
		t.Fatalf("values aliased: %v", ts.Values())
	}
	if ts.Units()[0] != UnitsVolts {
		t.Fatalf("unexpected units: %v", ts.Units())
	}
	if labels := ts.Labels(); len(labels) != 2 || labels[0] != "1" || labels[1] != "2" {
		t.Fatalf("unexpected default labels: %v", labels)
	}
}

func TestTimeSeriesLastAndDimension1D(t *testing.T) {
	ts := MustTimeSeries([]float64{0, 1, 2}, [][]float64{{1, 10}, {2, 20}, {3, 30}}, nil)

	tm, v, ok := ts.Last()
	if !ok || tm != 2 || v[1] != 30 {
		t.Fatalf("unexpected last sample: t=%f v=%v ok=%t", tm, v, ok)
	}
	second, err := ts.Dimension1D(1)
	if err != nil {
		t.Fatalf("dimension 1d: %v", err)
	}
	if len(second) != 3 || second[0] != 10 || second[2] != 30 {
		t.Fatalf("unexpected dimension values: %v", second)
	}
	if _, err := ts.Dimension1D(2); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestTimeSeriesWithLabelsAndName(t *testing.T) {
	ts := MustTimeSeries([]float64{0}, [][]float64{{1}}, nil)
	named := ts.WithName("decoded")
	labelled, err := named.WithLabels([]string{"x"})
	if err != nil {
		t.Fatalf("with labels: %v", err)
	}
	if labelled.Name() != "decoded" || labelled.Labels()[0] != "x" {
		t.Fatalf("unexpected metadata: name=%q labels=%v", labelled.Name(), labelled.Labels())
	}
	if ts.Name() != "" || ts.Labels()[0] != "1" {
		t.Fatal("original series changed")
	}
	if _, err := ts.WithLabels([]string{"a", "b"}); err == nil {
		t.Fatal("expected label count error")
	}
}

func TestRecordingRoundTripThroughTimeSeries(t *testing.T) {
	ts := MustTimeSeries([]float64{0, 0.1}, [][]float64{{0}, {0.5}}, []Units{UnitsVolts})
	rec := RecordingFromTimeSeries("run-1", "b:X", "b", "X", ts)
	back, err := rec.ToTimeSeries()
	if err != nil {
		t.Fatalf("to time series: %v", err)
	}
	if back.Len() != 2 || back.Name() != "b:X" || back.Units()[0] != UnitsVolts {
		t.Fatalf("unexpected rebuilt series: len=%d name=%q units=%v", back.Len(), back.Name(), back.Units())
	}
}
