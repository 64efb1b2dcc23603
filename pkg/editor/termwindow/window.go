// Package termwindow embeds an editor in the controlling terminal. It is the
// window backend for running an editor outside a plugin host and for
// headless hosts that expose a terminal.
package termwindow

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/muesli/cancelreader"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/justyntemme/vst3gui/pkg/editor"
)

const (
	enterAltScreen = "\x1b[?1049h\x1b[?25l"
	leaveAltScreen = "\x1b[?25h\x1b[?1049l"
	enableMouse    = "\x1b[?1000h\x1b[?1002h\x1b[?1006h"
	disableMouse   = "\x1b[?1006l\x1b[?1002l\x1b[?1000l"
	clearScreen    = "\x1b[H\x1b[2J"
)

// ErrNotTerminal is returned when the embedding target is not a terminal.
var ErrNotTerminal = errors.New("termwindow: not a terminal target")

// Options configures the terminal backend.
type Options struct {
	In  *os.File
	Out io.Writer

	// CellWidth and CellHeight convert between terminal cells and the
	// editor's logical pixels.
	CellWidth  int
	CellHeight int

	// SizePoll is how often the terminal size is checked for changes.
	SizePoll time.Duration

	// Mouse enables SGR mouse reporting.
	Mouse bool
}

func (o Options) withDefaults() Options {
	if o.In == nil {
		o.In = os.Stdin
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.CellWidth <= 0 {
		o.CellWidth = 8
	}
	if o.CellHeight <= 0 {
		o.CellHeight = 16
	}
	if o.SizePoll <= 0 {
		o.SizePoll = 250 * time.Millisecond
	}
	return o
}

// Factory creates terminal windows. Only one window may be live at a time.
type Factory struct {
	opts Options
	log  *zap.Logger
}

// NewFactory returns a factory drawing to opts.Out and reading opts.In.
func NewFactory(opts Options) *Factory {
	return &Factory{
		opts: opts.withDefaults(),
		log:  editor.Logger().Named("termwindow"),
	}
}

// CreateWindow takes over the terminal. The target must use the Terminal
// platform type.
func (f *Factory) CreateWindow(target editor.EmbeddingTarget, opts editor.WindowOptions) (editor.NativeWindow, error) {
	if target.Platform != editor.PlatformTerminal {
		return nil, fmt.Errorf("%w: platform %q", ErrNotTerminal, target.Platform)
	}

	w := &Window{
		opts:     f.opts,
		log:      f.log,
		fd:       int(f.opts.In.Fd()),
		events:   make(chan editor.Event, 64),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
	w.isTerm = term.IsTerminal(w.fd)

	if w.isTerm {
		state, err := term.MakeRaw(w.fd)
		if err != nil {
			return nil, fmt.Errorf("termwindow: raw mode: %w", err)
		}
		w.restore = state
	}

	setup := enterAltScreen
	if opts.Title != "" {
		setup += "\x1b]0;" + opts.Title + "\a"
	}
	if f.opts.Mouse {
		setup += enableMouse
	}

	in, err := cancelreader.NewReader(f.opts.In)
	if err != nil {
		w.restoreTerminal()
		return nil, fmt.Errorf("termwindow: input: %w", err)
	}
	w.in = in

	if _, err := io.WriteString(w.opts.Out, setup); err != nil {
		in.Close()
		w.restoreTerminal()
		return nil, fmt.Errorf("termwindow: %w", err)
	}

	w.size = w.measure(opts.Size)

	rate := opts.FrameRate
	if rate <= 0 {
		rate = 60
	}
	w.wg.Add(2)
	go w.clock(time.Second / time.Duration(rate))
	go w.watchSize()
	go w.read()

	f.log.Debug("terminal window created",
		zap.Bool("tty", w.isTerm),
		zap.Stringer("size", w.size))
	return w, nil
}

// Window is a terminal acting as an editor window.
type Window struct {
	opts    Options
	log     *zap.Logger
	fd      int
	isTerm  bool
	restore *term.State
	in      cancelreader.CancelReader

	events   chan editor.Event
	done     chan struct{}
	readDone chan struct{}
	wg       sync.WaitGroup
	once     sync.Once

	mu      sync.Mutex
	size    editor.Size
	handler func(editor.Size)
}

// Events returns the frame clock, keyboard and mouse input. It is not closed
// by Close; input EOF is reported as EventWindowClosed.
func (w *Window) Events() <-chan editor.Event {
	return w.events
}

// Present redraws the whole screen with frame.
func (w *Window) Present(frame string) error {
	var b strings.Builder
	b.Grow(len(clearScreen) + len(frame) + strings.Count(frame, "\n"))
	b.WriteString(clearScreen)
	if w.isTerm {
		// Raw mode does not translate newlines.
		b.WriteString(strings.ReplaceAll(frame, "\n", "\r\n"))
	} else {
		b.WriteString(frame)
	}
	_, err := io.WriteString(w.opts.Out, b.String())
	return err
}

// RequestResize answers with the terminal's own size; a terminal cannot be
// resized by the program inside it.
func (w *Window) RequestResize(size editor.Size) (editor.Size, bool) {
	if !w.isTerm {
		w.mu.Lock()
		w.size = size
		w.mu.Unlock()
		return size, true
	}
	return w.measure(size), true
}

// SubscribeSizeNegotiation registers handler for terminal size changes.
func (w *Window) SubscribeSizeNegotiation(handler func(editor.Size)) func() {
	w.mu.Lock()
	w.handler = handler
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		w.handler = nil
		w.mu.Unlock()
	}
}

// Close stops the clock and the input reader and gives the terminal back.
// Input that arrives afterwards is left for the next window.
func (w *Window) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		if w.in.Cancel() {
			<-w.readDone
		} else {
			w.log.Debug("input read could not be interrupted")
		}
		w.wg.Wait()
		if cerr := w.in.Close(); cerr != nil {
			w.log.Debug("closing input reader", zap.Error(cerr))
		}

		reset := leaveAltScreen
		if w.opts.Mouse {
			reset = disableMouse + reset
		}
		_, err = io.WriteString(w.opts.Out, reset)
		if rerr := w.restoreTerminal(); rerr != nil && err == nil {
			err = rerr
		}
	})
	return err
}

func (w *Window) restoreTerminal() error {
	if w.restore == nil {
		return nil
	}
	return term.Restore(w.fd, w.restore)
}

// measure returns the terminal size in logical pixels, or fallback when the
// input is not a terminal.
func (w *Window) measure(fallback editor.Size) editor.Size {
	if !w.isTerm {
		return fallback
	}
	cols, rows, err := term.GetSize(w.fd)
	if err != nil {
		w.log.Debug("terminal size unavailable", zap.Error(err))
		return fallback
	}
	return editor.Size{Width: cols * w.opts.CellWidth, Height: rows * w.opts.CellHeight}
}

// send delivers ev unless the window is closing. Frame events are dropped
// when the editor is behind.
func (w *Window) send(ev editor.Event, block bool) {
	if !block {
		select {
		case w.events <- ev:
		default:
		}
		return
	}
	select {
	case w.events <- ev:
	case <-w.done:
	}
}

func (w *Window) clock(interval time.Duration) {
	defer w.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-t.C:
			w.send(editor.Event{Kind: editor.EventFrame}, false)
		}
	}
}

func (w *Window) watchSize() {
	defer w.wg.Done()
	if !w.isTerm {
		return
	}
	t := time.NewTicker(w.opts.SizePoll)
	defer t.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-t.C:
		}

		w.mu.Lock()
		last := w.size
		w.mu.Unlock()

		now := w.measure(last)
		if now == last {
			continue
		}

		w.mu.Lock()
		w.size = now
		h := w.handler
		w.mu.Unlock()
		if h != nil {
			h(now)
		}
	}
}

// read decodes input until EOF or until Close cancels it.
func (w *Window) read() {
	defer close(w.readDone)
	buf := make([]byte, 256)
	for {
		n, err := w.in.Read(buf)
		if n > 0 {
			for _, ev := range decode(buf[:n]) {
				w.send(ev, true)
			}
		}
		if err != nil {
			if errors.Is(err, cancelreader.ErrCanceled) {
				return
			}
			if !errors.Is(err, io.EOF) {
				w.log.Debug("terminal read failed", zap.Error(err))
			}
			w.send(editor.Event{Kind: editor.EventWindowClosed}, true)
			return
		}
		select {
		case <-w.done:
			return
		default:
		}
	}
}
