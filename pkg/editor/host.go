package editor

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/justyntemme/vst3gui/pkg/framework/param"
)

// Host is the plugin's parameter model as seen by the editor. Its methods
// are called on the GUI goroutine; an implementation that wants to close the
// editor from one of them must use Editor.RequestClose, not Close.
type Host interface {
	// ReadSnapshot returns the current parameter values.
	ReadSnapshot() param.Snapshot
	// RequestParameterWrite asks the host to change a parameter. The host
	// validates and clamps; the editor never does.
	RequestParameterWrite(id uint32, value float64)
}

// GestureHost is implemented by hosts that group edits into gestures, like
// VST3's IComponentHandler beginEdit/endEdit.
type GestureHost interface {
	BeginEdit(id uint32)
	EndEdit(id uint32)
}

// Constrained is implemented by models that declare their own size bounds.
// The bounds are read once per session, while the editor is Opening.
type Constrained interface {
	SizeConstraints() (min, max Size)
}

// Context is handed to the AppFactory when a session opens.
type Context struct {
	SessionID string
	Title     string
	Snapshot  param.Snapshot
	Geometry  Geometry
	Params    *ParamSetter

	// Cell is the size in logical pixels of one view column and row, the
	// scale the editor uses to turn a rendered view into a window size.
	Cell Size
}

// AppFactory builds the GUI model for a new session.
type AppFactory func(ctx Context) tea.Model

// ParamSetter forwards the GUI's parameter edits to the host. It is only
// meant to be used from the model's Update, which runs on the GUI goroutine.
// It goes inert once its session closes. A nil setter does nothing.
type ParamSetter struct {
	host   Host
	closed atomic.Bool
}

// NewParamSetter returns a setter writing straight to host, for driving a
// model outside an editor session, as in tests or previews.
func NewParamSetter(host Host) *ParamSetter {
	return newParamSetter(host)
}

func newParamSetter(host Host) *ParamSetter {
	return &ParamSetter{host: host}
}

// Begin starts an edit gesture for id.
func (s *ParamSetter) Begin(id uint32) {
	if !s.active() {
		return
	}
	if g, ok := s.host.(GestureHost); ok {
		g.BeginEdit(id)
	}
}

// Set requests a new normalized value for id.
func (s *ParamSetter) Set(id uint32, value float64) {
	if !s.active() {
		return
	}
	s.host.RequestParameterWrite(id, value)
}

// End finishes an edit gesture for id.
func (s *ParamSetter) End(id uint32) {
	if !s.active() {
		return
	}
	if g, ok := s.host.(GestureHost); ok {
		g.EndEdit(id)
	}
}

// SetOnce is a complete gesture carrying a single value.
func (s *ParamSetter) SetOnce(id uint32, value float64) {
	s.Begin(id)
	s.Set(id, value)
	s.End(id)
}

func (s *ParamSetter) active() bool {
	return s != nil && !s.closed.Load()
}

func (s *ParamSetter) close() {
	s.closed.Store(true)
}
