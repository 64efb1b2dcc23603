package plugin

import (
	"errors"

	"github.com/google/uuid"
)

// uidNamespace scopes plugin UIDs so the same ID string always maps to the
// same class ID.
var uidNamespace = uuid.MustParse("6f0c6a1e-4d1b-5b4e-9a8f-2f7e3c1d0b5a")

// Info contains plugin metadata
type Info struct {
	ID       string // Unique plugin identifier (e.g., "com.example.myplugin")
	Name     string // Display name, also the editor window title
	Version  string // Semantic version (e.g., "1.0.0")
	Vendor   string // Company/developer name
	Category string // Plugin category (e.g., "Fx", "Instrument")
}

// UID derives the 16-byte VST3 class ID from the string ID.
func (i Info) UID() [16]byte {
	return uuid.NewSHA1(uidNamespace, []byte(i.ID))
}

// ValidateUID reports whether the info can produce a usable class ID.
func (i Info) ValidateUID() error {
	if i.ID == "" {
		return errors.New("plugin ID must not be empty")
	}
	if i.UID() == ([16]byte{}) {
		return errors.New("plugin UID is all zeros")
	}
	return nil
}
