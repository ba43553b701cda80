package model

// Units labels the physical meaning of one signal dimension.
type Units string

const (
	UnitsUnknown Units = "unknown"
	UnitsSpikes  Units = "spikes"
	UnitsSpikesS Units = "spikes/s"
	UnitsSeconds Units = "s"
	UnitsVolts   Units = "V"
)

// UniformUnits returns n copies of u.
func UniformUnits(u Units, n int) []Units {
	out := make([]Units, n)
	for i := range out {
		out[i] = u
	}
	return out
}

// InstantaneousOutput is the value of an Origin at one point in simulated
// time: either a RealOutput or a SpikeOutput.
type InstantaneousOutput interface {
	Dimension() int
	Units() Units
	Time() float64
	Clone() InstantaneousOutput
}

// RealOutput is a real-valued signal vector.
type RealOutput struct {
	values []float64
	units  Units
	time   float64
}

func NewRealOutput(values []float64, units Units, t float64) RealOutput {
	return RealOutput{values: append([]float64(nil), values...), units: units, time: t}
}

// ZeroOutput is a RealOutput of dim zeros.
func ZeroOutput(dim int, t float64) RealOutput {
	return RealOutput{values: make([]float64, dim), units: UnitsUnknown, time: t}
}

func (o RealOutput) Values() []float64 { return append([]float64(nil), o.values...) }

func (o RealOutput) Dimension() int { return len(o.values) }

func (o RealOutput) Units() Units { return o.units }

func (o RealOutput) Time() float64 { return o.time }

func (o RealOutput) Clone() InstantaneousOutput {
	return NewRealOutput(o.values, o.units, o.time)
}

// SpikeOutput marks which dimensions fired during the last step.
type SpikeOutput struct {
	spikes []bool
	units  Units
	time   float64
}

func NewSpikeOutput(spikes []bool, units Units, t float64) SpikeOutput {
	return SpikeOutput{spikes: append([]bool(nil), spikes...), units: units, time: t}
}

func (o SpikeOutput) Values() []bool { return append([]bool(nil), o.spikes...) }

func (o SpikeOutput) Dimension() int { return len(o.spikes) }

func (o SpikeOutput) Units() Units { return o.units }

func (o SpikeOutput) Time() float64 { return o.time }

func (o SpikeOutput) Clone() InstantaneousOutput {
	return NewSpikeOutput(o.spikes, o.units, o.time)
}
