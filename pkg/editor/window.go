package editor

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Size is a window size in logical pixels.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// EmbeddingTarget identifies the host-owned parent window region, as handed
// to IPlugView::attached: an opaque handle plus the platform type string.
type EmbeddingTarget struct {
	Handle   uintptr
	Platform string
}

// Platform type strings used by VST3 hosts.
const (
	PlatformHWND     = "HWND"
	PlatformNSView   = "NSView"
	PlatformX11      = "X11EmbedWindowID"
	PlatformTerminal = "Terminal"
)

// EventKind classifies native window events.
type EventKind int

const (
	// EventFrame is the window's frame clock.
	EventFrame EventKind = iota
	// EventKey carries keyboard input in Key.
	EventKey
	// EventMouse carries pointer input in Mouse.
	EventMouse
	// EventWindowClosed means the host destroyed the window.
	EventWindowClosed
)

// Event is one native event delivered by a window.
type Event struct {
	Kind  EventKind
	Key   tea.Key
	Mouse tea.MouseEvent
}

// WindowOptions are passed to a WindowFactory when a session opens.
type WindowOptions struct {
	Title     string
	Size      Size
	FrameRate int
}

// NativeWindow is a live child window embedded in the host.
//
// Events is closed when the window goes away. RequestResize proposes a size
// to the host; it returns the accepted size and true when the host answers
// right away, or false when the answer will arrive later through the
// handler passed to SubscribeSizeNegotiation. That handler also receives
// host-initiated size changes and may be called from any goroutine.
type NativeWindow interface {
	Events() <-chan Event
	Present(frame string) error
	RequestResize(size Size) (Size, bool)
	SubscribeSizeNegotiation(handler func(Size)) (cancel func())
	Close() error
}

// WindowFactory creates native windows inside an embedding target.
type WindowFactory interface {
	CreateWindow(target EmbeddingTarget, opts WindowOptions) (NativeWindow, error)
}

// WindowFactoryFunc adapts a function to WindowFactory.
type WindowFactoryFunc func(target EmbeddingTarget, opts WindowOptions) (NativeWindow, error)

// CreateWindow calls f.
func (f WindowFactoryFunc) CreateWindow(target EmbeddingTarget, opts WindowOptions) (NativeWindow, error) {
	return f(target, opts)
}
