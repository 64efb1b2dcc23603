package editor

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyOpen is returned by Open when the editor is not Closed.
	ErrAlreadyOpen = errors.New("editor: already open")

	// ErrInvalidTransition marks a lifecycle step outside the transition table.
	ErrInvalidTransition = errors.New("editor: invalid state transition")

	errWindowClosed = errors.New("editor: window closed")
	errQuit         = errors.New("editor: gui requested close")
)

// CreationError reports that the native window or the GUI runtime could not
// be brought up. The editor stays Closed; retrying is up to the host.
type CreationError struct {
	Op  string
	Err error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("editor: %s: %v", e.Op, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// RuntimeFault reports an unrecoverable failure during an open session. The
// editor closes itself when one occurs.
type RuntimeFault struct {
	Session string
	Err     error
}

func (f *RuntimeFault) Error() string {
	return fmt.Sprintf("editor: session %s: runtime fault: %v", f.Session, f.Err)
}

func (f *RuntimeFault) Unwrap() error { return f.Err }
