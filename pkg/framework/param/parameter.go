package param

import (
	"fmt"
	"math"
	"strconv"
	"sync/atomic"
)

// Parameter is one automatable plugin parameter. Its normalized value is
// stored atomically so the audio thread and the editor can read it without
// locking.
type Parameter struct {
	ID           uint32
	Name         string
	ShortName    string
	Unit         string
	Min          float64
	Max          float64
	DefaultValue float64 // normalized
	StepCount    int32
	Flags        uint32

	bits atomic.Uint64

	formatFunc func(float64) string
	parseFunc  func(string) (float64, error)
}

// Flags for parameters
const (
	CanAutomate  uint32 = 1 << 0
	IsReadOnly   uint32 = 1 << 1
	IsWrapAround uint32 = 1 << 2
	IsList       uint32 = 1 << 3
	IsHidden     uint32 = 1 << 4
	IsBypass     uint32 = 1 << 16
)

// Value returns the normalized value (0-1).
func (p *Parameter) Value() float64 {
	return math.Float64frombits(p.bits.Load())
}

// SetValue stores a normalized value clamped to 0-1 and returns what was stored.
func (p *Parameter) SetValue(value float64) float64 {
	value = clamp01(value)
	p.bits.Store(math.Float64bits(value))
	return value
}

// PlainValue returns the current value in the parameter's own range.
func (p *Parameter) PlainValue() float64 {
	return p.Denormalize(p.Value())
}

// Normalize converts a plain value to 0-1.
func (p *Parameter) Normalize(plain float64) float64 {
	if p.Max <= p.Min {
		return 0
	}
	return clamp01((plain - p.Min) / (p.Max - p.Min))
}

// Denormalize converts 0-1 to a plain value.
func (p *Parameter) Denormalize(normalized float64) float64 {
	return p.Min + normalized*(p.Max-p.Min)
}

// Format renders a normalized value for display.
func (p *Parameter) Format(normalized float64) string {
	plain := p.Denormalize(normalized)
	if p.formatFunc != nil {
		return p.formatFunc(plain)
	}
	if p.StepCount > 0 {
		return fmt.Sprintf("%.0f", plain)
	}
	if p.Unit != "" {
		return fmt.Sprintf("%.2f %s", plain, p.Unit)
	}
	return fmt.Sprintf("%.2f", plain)
}

// Parse converts display text to a normalized value.
func (p *Parameter) Parse(text string) (float64, error) {
	parse := p.parseFunc
	if parse == nil {
		parse = func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
	}
	plain, err := parse(text)
	if err != nil {
		return 0, fmt.Errorf("parse %q for %s: %w", text, p.Name, err)
	}
	return p.Normalize(plain), nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}
