// Package process provides the audio-thread side of a plugin: buffers for the
// current block and the entry point for host automation.
package process

import (
	"github.com/justyntemme/vst3gui/pkg/framework/param"
)

// ParameterChange is one automation point delivered by the host with a block.
type ParameterChange struct {
	ID     uint32
	Value  float64 // normalized
	Offset int     // sample offset within the block
}

// Context provides a clean API for audio processing with zero allocations
type Context struct {
	Input      [][]float32
	Output     [][]float32
	SampleRate float64

	params *param.Registry
}

// NewContext creates a process context reading and writing params.
func NewContext(params *param.Registry) *Context {
	return &Context{params: params}
}

// Param returns the current value of a parameter (0-1 normalized)
func (c *Context) Param(id uint32) float64 {
	return c.params.Value(id)
}

// ParamPlain returns the current plain value of a parameter
func (c *Context) ParamPlain(id uint32) float64 {
	if p := c.params.Get(id); p != nil {
		return p.PlainValue()
	}
	return 0
}

// NumSamples returns the number of samples to process
func (c *Context) NumSamples() int {
	if len(c.Input) > 0 && len(c.Input[0]) > 0 {
		return len(c.Input[0])
	}
	if len(c.Output) > 0 && len(c.Output[0]) > 0 {
		return len(c.Output[0])
	}
	return 0
}

// NumChannels returns the number of channels present on both sides.
func (c *Context) NumChannels() int {
	n := len(c.Input)
	if len(c.Output) < n {
		n = len(c.Output)
	}
	return n
}

// ProcessChannels calls fn for every channel pair.
func (c *Context) ProcessChannels(fn func(ch int, input, output []float32)) {
	for ch := 0; ch < c.NumChannels(); ch++ {
		fn(ch, c.Input[ch], c.Output[ch])
	}
}

// PassThrough copies input to output (for bypass)
func (c *Context) PassThrough() {
	c.ProcessChannels(func(_ int, input, output []float32) {
		copy(output, input)
	})
}

// Clear zeros the output buffers
func (c *Context) Clear() {
	for ch := range c.Output {
		clear(c.Output[ch])
	}
}

// SetParameterAtOffset applies a host automation point. The value takes
// effect for the whole block and reaches an open editor through the
// registry's notifier. Safe for the audio thread.
func (c *Context) SetParameterAtOffset(id uint32, value float64, sampleOffset int) {
	c.params.SetValue(id, value)
}

// SetParamPlain writes an output value in plain units, such as a level meter
// the processor reports back to the host. Unknown ids are ignored.
func (c *Context) SetParamPlain(id uint32, plain float64) {
	if p := c.params.Get(id); p != nil {
		c.params.SetValue(id, p.Normalize(plain))
	}
}

// ApplyChanges applies a block's automation in order. The last point per
// parameter wins.
func (c *Context) ApplyChanges(changes []ParameterChange) {
	for _, ch := range changes {
		c.SetParameterAtOffset(ch.ID, ch.Value, ch.Offset)
	}
}
