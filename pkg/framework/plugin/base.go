// Package plugin ties a plugin's parameters, state and editor together.
package plugin

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/justyntemme/vst3gui/pkg/editor"
	"github.com/justyntemme/vst3gui/pkg/framework/param"
	"github.com/justyntemme/vst3gui/pkg/framework/process"
	"github.com/justyntemme/vst3gui/pkg/framework/state"
)

// ComponentHandler is the host side of edits made in the editor, like VST3's
// IComponentHandler.
type ComponentHandler interface {
	BeginEdit(id uint32)
	PerformEdit(id uint32, value float64)
	EndEdit(id uint32)
}

// AudioProcessor is the interface plugins implement for audio processing
type AudioProcessor interface {
	// ProcessAudio processes one block - zero allocations allowed!
	ProcessAudio(ctx *process.Context)
}

// Base provides core functionality for all plugins. It is the editor's Host:
// edits from the GUI land in the registry and are forwarded to the host's
// component handler, and every registry change is published to the editor.
type Base struct {
	Info    Info
	params  *param.Registry
	state   *state.Manager
	handler atomic.Pointer[handlerBox]
	editor  *editor.Editor
}

type handlerBox struct{ h ComponentHandler }

// NewBase creates a new plugin base
func NewBase(info Info) *Base {
	b := &Base{
		Info:   info,
		params: param.NewRegistry(),
	}
	b.state = state.NewManager(b.params)
	return b
}

// Parameters returns the parameter registry for configuration
func (b *Base) Parameters() *param.Registry {
	return b.params
}

// State returns the preset state manager.
func (b *Base) State() *state.Manager {
	return b.state
}

// SetComponentHandler installs the host's edit handler; nil removes it.
func (b *Base) SetComponentHandler(h ComponentHandler) {
	if h == nil {
		b.handler.Store(nil)
		return
	}
	b.handler.Store(&handlerBox{h})
}

func (b *Base) componentHandler() ComponentHandler {
	if box := b.handler.Load(); box != nil {
		return box.h
	}
	return nil
}

// ReadSnapshot returns the current parameter values.
func (b *Base) ReadSnapshot() param.Snapshot {
	return b.params.Snapshot()
}

// RequestParameterWrite applies an edit from the GUI and reports it to the
// host. The registry clamps; the clamped value is echoed back to the editor.
func (b *Base) RequestParameterWrite(id uint32, value float64) {
	if !b.params.SetValue(id, value) {
		return
	}
	if h := b.componentHandler(); h != nil {
		h.PerformEdit(id, b.params.Value(id))
	}
}

// BeginEdit starts a host gesture.
func (b *Base) BeginEdit(id uint32) {
	if h := b.componentHandler(); h != nil {
		h.BeginEdit(id)
	}
}

// EndEdit ends a host gesture.
func (b *Base) EndEdit(id uint32) {
	if h := b.componentHandler(); h != nil {
		h.EndEdit(id)
	}
}

// AttachEditor creates the plugin's editor and routes parameter changes to
// it. An empty title in cfg is replaced by the plugin name.
func (b *Base) AttachEditor(factory editor.WindowFactory, app editor.AppFactory, cfg editor.Config) *editor.Editor {
	if cfg.Title == "" || cfg.Title == editor.DefaultConfig().Title {
		cfg.Title = b.Info.Name
	}
	ed := editor.New(factory, b, app, cfg)
	b.editor = ed
	b.params.SetNotifier(ed.NotifyParameterChanged)
	return ed
}

// Editor returns the attached editor, or nil.
func (b *Base) Editor() *editor.Editor {
	return b.editor
}

// OpenEditor opens the attached editor with the current parameter values.
func (b *Base) OpenEditor(target editor.EmbeddingTarget) error {
	if b.editor == nil {
		return errors.New("plugin: no editor attached")
	}
	return b.editor.Open(target, b.params.Snapshot())
}

// CloseEditor closes the attached editor if there is one.
func (b *Base) CloseEditor() {
	if b.editor != nil {
		b.editor.Close()
	}
}

// NewContext returns a process context bound to the plugin's parameters.
func (b *Base) NewContext() *process.Context {
	return process.NewContext(b.params)
}

// Process applies the block's automation and runs p.
func (b *Base) Process(ctx *process.Context, changes []process.ParameterChange, p AudioProcessor) {
	ctx.ApplyChanges(changes)
	p.ProcessAudio(ctx)
}

// SaveState writes the preset state.
func (b *Base) SaveState(w io.Writer) error {
	return b.state.Save(w)
}

// LoadState restores a preset. An open editor receives the new values.
func (b *Base) LoadState(r io.Reader) error {
	return b.state.Load(r)
}
