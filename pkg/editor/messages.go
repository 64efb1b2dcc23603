package editor

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// ParamChangedMsg tells the model that a parameter changed outside the GUI:
// automation, a preset load, a MIDI-learned controller. Only the latest value
// since the previous tick is delivered.
type ParamChangedMsg struct {
	ID      uint32
	Value   float64
	Display string
}

// ResizeRequestMsg asks the editor to negotiate a new window size. The model
// receives a tea.WindowSizeMsg with the size the host accepted.
type ResizeRequestMsg struct {
	Size Size
}

// WillCloseMsg is the last message a model receives before its window is
// torn down.
type WillCloseMsg struct{}

// FrameMsg is sent once per tick that saw a frame event, when
// Config.FrameMessages is set.
type FrameMsg struct {
	Time time.Time
}

// RequestResize returns a command asking for a new window size.
func RequestResize(size Size) tea.Cmd {
	return func() tea.Msg {
		return ResizeRequestMsg{Size: size}
	}
}

// SetParameterMsg asks the host to write a parameter. The editor forwards it
// unchanged; the host validates and clamps.
type SetParameterMsg struct {
	ID    uint32
	Value float64
}

// BeginEditMsg and EndEditMsg bracket a gesture on hosts that support it.
type BeginEditMsg struct{ ID uint32 }

type EndEditMsg struct{ ID uint32 }

// SetParameter returns a command asking the host to write value for id.
// Commands run asynchronously; use Context.Params inside Update when writes
// must keep their order relative to other edits.
func SetParameter(id uint32, value float64) tea.Cmd {
	return func() tea.Msg {
		return SetParameterMsg{ID: id, Value: value}
	}
}
