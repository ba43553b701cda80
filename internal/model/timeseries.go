package model

import (
	"errors"
	"fmt"
	"strconv"
)

var ErrTimeSeriesShape = errors.New("time series shape mismatch")

// TimeSeries is an immutable ordered sequence of (time, vector) samples with
// per-dimension units and labels. Accessors return copies.
type TimeSeries struct {
	name   string
	times  []float64
	values [][]float64
	units  []Units
	labels []string
}

// NewTimeSeries validates that times and values have equal length and that
// every sample has the same width. A nil units slice means unknown units.
func NewTimeSeries(times []float64, values [][]float64, units []Units) (TimeSeries, error) {
	if len(times) != len(values) {
		return TimeSeries{}, fmt.Errorf("%w: %d times were given with %d values", ErrTimeSeriesShape, len(times), len(values))
	}
	dim := 0
	if len(values) > 0 {
		dim = len(values[0])
	} else if units != nil {
		dim = len(units)
	}
	for i, row := range values {
		if len(row) != dim {
			return TimeSeries{}, fmt.Errorf("%w: sample %d has dimension %d, want %d", ErrTimeSeriesShape, i, len(row), dim)
		}
	}
	if units == nil {
		units = UniformUnits(UnitsUnknown, dim)
	}
	if len(units) != dim {
		return TimeSeries{}, fmt.Errorf("%w: %d units for dimension %d", ErrTimeSeriesShape, len(units), dim)
	}

	out := TimeSeries{
		times:  append([]float64(nil), times...),
		values: make([][]float64, len(values)),
		units:  append([]Units(nil), units...),
		labels: defaultLabels(dim),
	}
	for i, row := range values {
		out.values[i] = append([]float64(nil), row...)
	}
	return out, nil
}

// MustTimeSeries panics on a shape error. Intended for literals in tests and
// for series whose shape is guaranteed by construction.
func MustTimeSeries(times []float64, values [][]float64, units []Units) TimeSeries {
	ts, err := NewTimeSeries(times, values, units)
	if err != nil {
		panic(err)
	}
	return ts
}

func defaultLabels(dim int) []string {
	labels := make([]string, dim)
	for i := range labels {
		labels[i] = strconv.Itoa(i + 1)
	}
	return labels
}

func (ts TimeSeries) Name() string { return ts.name }

func (ts TimeSeries) Len() int { return len(ts.times) }

func (ts TimeSeries) Dimension() int { return len(ts.units) }

func (ts TimeSeries) Times() []float64 { return append([]float64(nil), ts.times...) }

func (ts TimeSeries) Values() [][]float64 {
	out := make([][]float64, len(ts.values))
	for i, row := range ts.values {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

func (ts TimeSeries) Units() []Units { return append([]Units(nil), ts.units...) }

func (ts TimeSeries) Labels() []string { return append([]string(nil), ts.labels...) }

// Dimension1D returns the samples of one dimension.
func (ts TimeSeries) Dimension1D(dim int) ([]float64, error) {
	if dim < 0 || dim >= ts.Dimension() {
		return nil, fmt.Errorf("%w: dimension %d out of range [0,%d)", ErrTimeSeriesShape, dim, ts.Dimension())
	}
	out := make([]float64, len(ts.values))
	for i, row := range ts.values {
		out[i] = row[dim]
	}
	return out, nil
}

// Last returns the final sample.
func (ts TimeSeries) Last() (float64, []float64, bool) {
	if len(ts.times) == 0 {
		return 0, nil, false
	}
	i := len(ts.times) - 1
	return ts.times[i], append([]float64(nil), ts.values[i]...), true
}

func (ts TimeSeries) WithName(name string) TimeSeries {
	out := ts.shallow()
	out.name = name
	return out
}

func (ts TimeSeries) WithLabels(labels []string) (TimeSeries, error) {
	if len(labels) != ts.Dimension() {
		return TimeSeries{}, fmt.Errorf("%w: %d labels for dimension %d", ErrTimeSeriesShape, len(labels), ts.Dimension())
	}
	out := ts.shallow()
	out.labels = append([]string(nil), labels...)
	return out, nil
}

// shallow shares sample storage, which is never mutated after construction.
func (ts TimeSeries) shallow() TimeSeries {
	return TimeSeries{
		name:   ts.name,
		times:  ts.times,
		values: ts.values,
		units:  ts.units,
		labels: append([]string(nil), ts.labels...),
	}
}
