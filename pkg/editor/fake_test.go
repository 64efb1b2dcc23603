package editor

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/justyntemme/vst3gui/pkg/framework/param"
)

const (
	gainID  uint32 = 1
	mixID   uint32 = 2
	waitFor        = 2 * time.Second
)

// fakeWindow records what the editor does to it. Resize requests are
// accepted as proposed unless accept is set.
type fakeWindow struct {
	events chan Event

	mu         sync.Mutex
	frames     []string
	requests   []Size
	accept     func(Size) (Size, bool)
	handler    func(Size)
	cancelled  bool
	closed     int
	presentErr error
	presented  chan string
}

func newFakeWindow() *fakeWindow {
	return &fakeWindow{
		events:    make(chan Event, 16),
		presented: make(chan string, 64),
	}
}

func (w *fakeWindow) Events() <-chan Event { return w.events }

func (w *fakeWindow) Present(frame string) error {
	w.mu.Lock()
	err := w.presentErr
	if err == nil {
		w.frames = append(w.frames, frame)
	}
	w.mu.Unlock()
	if err == nil {
		select {
		case w.presented <- frame:
		default:
		}
	}
	return err
}

func (w *fakeWindow) RequestResize(s Size) (Size, bool) {
	w.mu.Lock()
	w.requests = append(w.requests, s)
	accept := w.accept
	w.mu.Unlock()
	if accept != nil {
		return accept(s)
	}
	return s, true
}

func (w *fakeWindow) SubscribeSizeNegotiation(h func(Size)) func() {
	w.mu.Lock()
	w.handler = h
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		w.handler = nil
		w.cancelled = true
		w.mu.Unlock()
	}
}

func (w *fakeWindow) Close() error {
	w.mu.Lock()
	w.closed++
	w.mu.Unlock()
	return nil
}

// hostResize simulates the host resizing the window.
func (w *fakeWindow) hostResize(s Size) {
	w.mu.Lock()
	h := w.handler
	w.mu.Unlock()
	if h != nil {
		h(s)
	}
}

func (w *fakeWindow) frameCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

func (w *fakeWindow) lastFrame() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.frames) == 0 {
		return ""
	}
	return w.frames[len(w.frames)-1]
}

func (w *fakeWindow) closeCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *fakeWindow) requestLog() []Size {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Size(nil), w.requests...)
}

// fakeFactory hands out fake windows and remembers them.
type fakeFactory struct {
	mu      sync.Mutex
	err     error
	windows []*fakeWindow
	opts    []WindowOptions
	prepare func(*fakeWindow)
}

func (f *fakeFactory) CreateWindow(_ EmbeddingTarget, opts WindowOptions) (NativeWindow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	w := newFakeWindow()
	if f.prepare != nil {
		f.prepare(w)
	}
	f.windows = append(f.windows, w)
	return w, nil
}

func (f *fakeFactory) window(i int) *fakeWindow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windows[i]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.windows)
}

type write struct {
	id    uint32
	value float64
}

// fakeHost is a parameter registry that records writes and gestures.
type fakeHost struct {
	reg *param.Registry

	mu       sync.Mutex
	writes   []write
	gestures []string
	onWrite  func(id uint32, value float64)
}

func newFakeHost(t testing.TB) *fakeHost {
	t.Helper()
	reg := param.NewRegistry()
	if err := reg.Add(
		param.Gain(gainID, "Gain").Build(),
		param.Percent(mixID, "Mix", 100).Build(),
	); err != nil {
		t.Fatalf("failed to add parameters: %v", err)
	}
	return &fakeHost{reg: reg}
}

func (h *fakeHost) ReadSnapshot() param.Snapshot { return h.reg.Snapshot() }

func (h *fakeHost) RequestParameterWrite(id uint32, value float64) {
	h.mu.Lock()
	h.writes = append(h.writes, write{id, value})
	onWrite := h.onWrite
	h.mu.Unlock()
	if onWrite != nil {
		onWrite(id, value)
	}
}

func (h *fakeHost) BeginEdit(id uint32) {
	h.mu.Lock()
	h.gestures = append(h.gestures, fmt.Sprintf("begin %d", id))
	h.mu.Unlock()
}

func (h *fakeHost) EndEdit(id uint32) {
	h.mu.Lock()
	h.gestures = append(h.gestures, fmt.Sprintf("end %d", id))
	h.mu.Unlock()
}

func (h *fakeHost) writeLog() []write {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]write(nil), h.writes...)
}

// recorder is a tea.Model that keeps every message it receives. Its view
// lists parameter values so a change is visible on screen.
type recorder struct {
	mu     *sync.Mutex
	msgs   *[]tea.Msg
	values map[uint32]float64
	size   tea.WindowSizeMsg

	ctx      Context
	onUpdate func(tea.Msg) tea.Cmd
	panicOn  func(tea.Msg) bool
	viewHook func() string
	updates  chan tea.Msg
}

func newRecorder(ctx Context) *recorder {
	values := make(map[uint32]float64)
	for _, v := range ctx.Snapshot.Values() {
		values[v.ID] = v.Value
	}
	return &recorder{
		mu:      &sync.Mutex{},
		msgs:    &[]tea.Msg{},
		values:  values,
		ctx:     ctx,
		updates: make(chan tea.Msg, 256),
	}
}

func (m *recorder) Init() tea.Cmd { return nil }

func (m *recorder) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.panicOn != nil && m.panicOn(msg) {
		panic("boom")
	}
	m.mu.Lock()
	*m.msgs = append(*m.msgs, msg)
	m.mu.Unlock()
	select {
	case m.updates <- msg:
	default:
	}

	switch msg := msg.(type) {
	case ParamChangedMsg:
		m.values[msg.ID] = msg.Value
	case tea.WindowSizeMsg:
		m.size = msg
	}
	if m.onUpdate != nil {
		return m, m.onUpdate(msg)
	}
	return m, nil
}

func (m *recorder) View() string {
	if m.viewHook != nil {
		return m.viewHook()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%dx%d\n", m.size.Width, m.size.Height)
	for _, id := range m.ctx.Snapshot.IDs() {
		fmt.Fprintf(&b, "%d=%.3f\n", id, m.values[id])
	}
	return b.String()
}

func (m *recorder) received() []tea.Msg {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tea.Msg(nil), *m.msgs...)
}

func (m *recorder) paramMsgs() []ParamChangedMsg {
	var out []ParamChangedMsg
	for _, msg := range m.received() {
		if p, ok := msg.(ParamChangedMsg); ok {
			out = append(out, p)
		}
	}
	return out
}

// waitMsg blocks until the model receives a message matching match.
func (m *recorder) waitMsg(t *testing.T, match func(tea.Msg) bool) tea.Msg {
	t.Helper()
	timeout := time.After(waitFor)
	for {
		select {
		case msg := <-m.updates:
			if match(msg) {
				return msg
			}
		case <-timeout:
			t.Fatal("timed out waiting for message")
			return nil
		}
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Title = "Test"
	cfg.LogLevel = ""
	return cfg
}

// waitUntil polls cond until it holds or the test times out.
func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitFor)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

var errFake = errors.New("fake failure")
