// Package state saves and restores plugin state as msgpack documents.
package state

import (
	"bytes"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justyntemme/vst3gui/pkg/framework/param"
)

const (
	magic          = "VST3GO"
	currentVersion = 2
)

// document is the serialized form of a plugin's state.
type document struct {
	Magic   string  `msgpack:"magic"`
	Version uint32  `msgpack:"version"`
	Params  []entry `msgpack:"params"`
	Custom  []byte  `msgpack:"custom,omitempty"`
}

type entry struct {
	ID    uint32  `msgpack:"id"`
	Value float64 `msgpack:"value"`
}

// Manager handles plugin state saving and loading
type Manager struct {
	registry   *param.Registry
	saveCustom CustomSaveFunc
	loadCustom CustomLoadFunc
}

// CustomSaveFunc allows plugins to save additional state beyond parameters
type CustomSaveFunc func(w io.Writer) error

// CustomLoadFunc reads back what the matching CustomSaveFunc wrote.
type CustomLoadFunc func(r io.Reader) error

// NewManager creates a new state manager
func NewManager(registry *param.Registry) *Manager {
	return &Manager{registry: registry}
}

// SetCustomState installs functions for plugin-specific state. Either may be
// nil.
func (m *Manager) SetCustomState(save CustomSaveFunc, load CustomLoadFunc) {
	m.saveCustom = save
	m.loadCustom = load
}

// Save writes the plugin state to a writer
func (m *Manager) Save(w io.Writer) error {
	doc := document{
		Magic:   magic,
		Version: currentVersion,
	}
	for _, p := range m.registry.All() {
		doc.Params = append(doc.Params, entry{ID: p.ID, Value: p.Value()})
	}

	if m.saveCustom != nil {
		var buf bytes.Buffer
		if err := m.saveCustom(&buf); err != nil {
			return fmt.Errorf("saving custom state: %w", err)
		}
		doc.Custom = buf.Bytes()
	}

	if err := msgpack.NewEncoder(w).Encode(&doc); err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	return nil
}

// Load reads the plugin state from a reader. Values go through the registry,
// so an open editor sees them like any other host change. Unknown parameters
// are skipped.
func (m *Manager) Load(r io.Reader) error {
	var doc document
	if err := msgpack.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("decoding state: %w", err)
	}
	if doc.Magic != magic {
		return fmt.Errorf("invalid state format")
	}
	if doc.Version > currentVersion {
		return fmt.Errorf("state version %d is newer than supported version %d", doc.Version, currentVersion)
	}

	for _, e := range doc.Params {
		m.registry.SetValue(e.ID, e.Value)
	}

	if len(doc.Custom) > 0 && m.loadCustom != nil {
		if err := m.loadCustom(bytes.NewReader(doc.Custom)); err != nil {
			return fmt.Errorf("loading custom state: %w", err)
		}
	}
	return nil
}
