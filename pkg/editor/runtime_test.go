package editor

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/justyntemme/vst3gui/pkg/bridge"
	"github.com/justyntemme/vst3gui/pkg/framework/debug"
)

type pingMsg struct{}

type runtimeFixture struct {
	rt    *runtime
	model *recorder
	win   *fakeWindow
	host  *fakeHost
	ch    *bridge.Channel
	sizes *negotiator
}

func newRuntimeFixture(t *testing.T, cfg Config, setup func(*recorder)) *runtimeFixture {
	t.Helper()
	host := newFakeHost(t)
	snap := host.ReadSnapshot()
	ch := bridge.New(snap.IDs())
	win := newFakeWindow()

	sizes := newNegotiator(Size{Width: cfg.Width, Height: cfg.Height})
	lo, hi := cfg.bounds()
	sizes.reset(lo, hi)
	sizes.attach(win)

	params := newParamSetter(host)
	model := newRecorder(Context{Snapshot: snap, Params: params})
	if setup != nil {
		setup(model)
	}

	rt := newRuntime(model, snap, ch, win, sizes, params, cfg, zap.NewNop(), nil)
	if err := rt.start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return &runtimeFixture{rt: rt, model: model, win: win, host: host, ch: ch, sizes: sizes}
}

func (f *runtimeFixture) tick(t *testing.T, events ...Event) {
	t.Helper()
	if err := f.rt.tick(events); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
}

// since returns the messages the model received after the first n.
func (f *runtimeFixture) since(n int) []tea.Msg {
	return f.model.received()[n:]
}

func TestRuntimeStart(t *testing.T) {
	f := newRuntimeFixture(t, testConfig(), nil)

	msgs := f.model.received()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message after start, got %d: %v", len(msgs), msgs)
	}
	if size, ok := msgs[0].(tea.WindowSizeMsg); !ok || size.Width != 640 || size.Height != 400 {
		t.Errorf("expected WindowSizeMsg 640x400, got %#v", msgs[0])
	}
	if f.win.frameCount() != 1 {
		t.Errorf("expected first frame presented, got %d frames", f.win.frameCount())
	}
}

func TestTickCoalescesParameterChanges(t *testing.T) {
	f := newRuntimeFixture(t, testConfig(), nil)
	frames := f.win.frameCount()

	f.ch.Publish(gainID, 0.8)
	f.ch.Publish(gainID, 0.6)
	f.ch.Publish(gainID, 0.9)
	f.tick(t)

	got := f.model.paramMsgs()
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 ParamChangedMsg, got %d: %v", len(got), got)
	}
	if got[0].ID != gainID || got[0].Value != 0.9 {
		t.Errorf("expected gain=0.9, got %+v", got[0])
	}
	if want := f.host.reg.Get(gainID).Format(0.9); got[0].Display != want {
		t.Errorf("expected display %q, got %q", want, got[0].Display)
	}
	if f.win.frameCount() != frames+1 {
		t.Errorf("expected one redraw, got %d", f.win.frameCount()-frames)
	}
	if !strings.Contains(f.win.lastFrame(), "1=0.900") {
		t.Errorf("frame does not show new value:\n%s", f.win.lastFrame())
	}
}

func TestTickIdle(t *testing.T) {
	f := newRuntimeFixture(t, testConfig(), nil)
	msgs := len(f.model.received())
	frames := f.win.frameCount()

	f.tick(t)
	f.tick(t, Event{Kind: EventFrame}, Event{Kind: EventFrame})

	if n := len(f.model.received()) - msgs; n != 0 {
		t.Errorf("idle ticks delivered %d messages", n)
	}
	if n := f.win.frameCount() - frames; n != 0 {
		t.Errorf("idle ticks redrew %d times", n)
	}
}

func TestTickSkipsUnchangedFrame(t *testing.T) {
	f := newRuntimeFixture(t, testConfig(), func(m *recorder) {
		m.viewHook = func() string { return "static" }
	})
	frames := f.win.frameCount()

	f.ch.Publish(gainID, 0.3)
	f.tick(t)

	if len(f.model.paramMsgs()) != 1 {
		t.Fatal("expected the change to reach the model")
	}
	if f.win.frameCount() != frames {
		t.Error("unchanged view should not be presented again")
	}
}

func TestTickMessageOrder(t *testing.T) {
	f := newRuntimeFixture(t, testConfig(), nil)
	n := len(f.model.received())

	f.ch.Publish(mixID, 0.5)
	f.ch.Publish(gainID, 0.5)
	f.rt.post(pingMsg{})
	key := tea.Key{Type: tea.KeyRunes, Runes: []rune("a")}
	mouse := tea.MouseEvent{X: 3, Y: 4, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}
	f.tick(t, Event{Kind: EventKey, Key: key}, Event{Kind: EventFrame}, Event{Kind: EventMouse, Mouse: mouse})

	got := f.since(n)
	if len(got) != 5 {
		t.Fatalf("expected 5 messages, got %d: %#v", len(got), got)
	}
	if p, ok := got[0].(ParamChangedMsg); !ok || p.ID != gainID {
		t.Errorf("message 0: expected gain change, got %#v", got[0])
	}
	if p, ok := got[1].(ParamChangedMsg); !ok || p.ID != mixID {
		t.Errorf("message 1: expected mix change, got %#v", got[1])
	}
	if _, ok := got[2].(pingMsg); !ok {
		t.Errorf("message 2: expected pingMsg, got %#v", got[2])
	}
	if k, ok := got[3].(tea.KeyMsg); !ok || k.String() != "a" {
		t.Errorf("message 3: expected key a, got %#v", got[3])
	}
	if m, ok := got[4].(tea.MouseMsg); !ok || m.X != 3 || m.Y != 4 {
		t.Errorf("message 4: expected mouse press, got %#v", got[4])
	}
}

func TestTickCommandResults(t *testing.T) {
	f := newRuntimeFixture(t, testConfig(), func(m *recorder) {
		m.onUpdate = func(msg tea.Msg) tea.Cmd {
			if _, ok := msg.(tea.KeyMsg); ok {
				return tea.Batch(
					func() tea.Msg { return pingMsg{} },
					func() tea.Msg { return pingMsg{} },
				)
			}
			return nil
		}
	})

	f.tick(t, Event{Kind: EventKey, Key: tea.Key{Type: tea.KeyEnter}})

	pings := 0
	deadline := time.After(waitFor)
	for pings < 2 {
		select {
		case <-f.rt.wake:
		case <-deadline:
			t.Fatalf("timed out with %d pings", pings)
		}
		f.tick(t)
		pings = 0
		for _, msg := range f.model.received() {
			if _, ok := msg.(pingMsg); ok {
				pings++
			}
		}
	}
}

func TestTickFaults(t *testing.T) {
	t.Run("update panic", func(t *testing.T) {
		f := newRuntimeFixture(t, testConfig(), func(m *recorder) {
			m.panicOn = func(msg tea.Msg) bool {
				_, ok := msg.(ParamChangedMsg)
				return ok
			}
		})
		f.ch.Publish(gainID, 0.1)
		err := f.rt.tick(nil)
		if err == nil || !strings.Contains(err.Error(), "panicked") {
			t.Errorf("expected panic error, got %v", err)
		}
	})

	t.Run("view panic", func(t *testing.T) {
		armed := false
		f := newRuntimeFixture(t, testConfig(), func(m *recorder) {
			m.viewHook = func() string {
				if armed {
					panic("view")
				}
				return "ok"
			}
		})
		armed = true
		f.ch.Publish(gainID, 0.1)
		if err := f.rt.tick(nil); err == nil {
			t.Error("expected view panic to fail the tick")
		}
	})

	t.Run("present error", func(t *testing.T) {
		f := newRuntimeFixture(t, testConfig(), nil)
		f.win.mu.Lock()
		f.win.presentErr = errFake
		f.win.mu.Unlock()

		f.ch.Publish(gainID, 0.1)
		if err := f.rt.tick(nil); !errors.Is(err, errFake) {
			t.Errorf("expected present error, got %v", err)
		}
	})
}

func TestTickQuit(t *testing.T) {
	f := newRuntimeFixture(t, testConfig(), nil)
	f.rt.post(tea.QuitMsg{})
	f.rt.post(pingMsg{})

	if err := f.rt.tick(nil); !errors.Is(err, errQuit) {
		t.Fatalf("expected errQuit, got %v", err)
	}
	for _, msg := range f.model.received() {
		if _, ok := msg.(pingMsg); ok {
			t.Error("messages after quit should not be delivered")
		}
	}
}

func TestTickParameterWrites(t *testing.T) {
	f := newRuntimeFixture(t, testConfig(), nil)
	n := len(f.model.received())

	f.rt.post(BeginEditMsg{ID: gainID})
	f.rt.post(SetParameterMsg{ID: gainID, Value: 1.7})
	f.rt.post(EndEditMsg{ID: gainID})
	f.tick(t)

	if got := f.since(n); len(got) != 0 {
		t.Errorf("parameter commands reached the model: %#v", got)
	}
	writes := f.host.writeLog()
	if len(writes) != 1 || writes[0] != (write{gainID, 1.7}) {
		t.Errorf("expected unclamped write {1 1.7}, got %v", writes)
	}
	if got := strings.Join(f.host.gestures, ","); got != "begin 1,end 1" {
		t.Errorf("unexpected gestures %q", got)
	}
}

func TestTickResizeRequest(t *testing.T) {
	f := newRuntimeFixture(t, testConfig(), nil)

	f.rt.post(ResizeRequestMsg{Size: Size{Width: 800, Height: 600}})
	f.tick(t)

	if g := f.sizes.geometry(); g.Size != (Size{800, 600}) {
		t.Errorf("expected geometry 800x600, got %v", g.Size)
	}
	size, ok := f.model.received()[len(f.model.received())-1].(tea.WindowSizeMsg)
	if !ok || size.Width != 800 || size.Height != 600 {
		t.Errorf("expected WindowSizeMsg 800x600, got %#v", size)
	}
	if !strings.HasPrefix(f.win.lastFrame(), "800x600") {
		t.Errorf("frame not redrawn at new size:\n%s", f.win.lastFrame())
	}

	n := len(f.model.received())
	f.rt.post(ResizeRequestMsg{Size: Size{Width: 800, Height: 600}})
	f.tick(t)
	if len(f.win.requestLog()) != 1 {
		t.Errorf("same size should not be proposed again: %v", f.win.requestLog())
	}
	if got := f.since(n); len(got) != 0 {
		t.Errorf("same size should not notify the model: %#v", got)
	}
}

func TestTickHostResize(t *testing.T) {
	f := newRuntimeFixture(t, testConfig(), nil)

	f.win.hostResize(Size{Width: 1000, Height: 700})
	select {
	case <-f.sizes.wake:
	default:
		t.Fatal("host resize did not wake the loop")
	}
	f.tick(t)

	if !strings.HasPrefix(f.win.lastFrame(), "1000x700") {
		t.Errorf("expected frame at 1000x700, got:\n%s", f.win.lastFrame())
	}
}

func TestTickAutoSize(t *testing.T) {
	cfg := testConfig()
	cfg.AutoSize = true
	f := newRuntimeFixture(t, cfg, func(m *recorder) {
		m.viewHook = func() string {
			return strings.Repeat(strings.Repeat("x", 60)+"\n", 29) + strings.Repeat("x", 60)
		}
	})

	// 60 columns x 30 rows at 8x16 cells.
	if g := f.sizes.geometry(); g.Size != (Size{480, 480}) {
		t.Errorf("expected auto size 480x480, got %v", g.Size)
	}
	if got := f.win.requestLog(); len(got) != 1 {
		t.Errorf("expected 1 resize proposal, got %v", got)
	}
}

func TestRuntimeShutdown(t *testing.T) {
	f := newRuntimeFixture(t, testConfig(), nil)
	f.rt.shutdown()

	msgs := f.model.received()
	if _, ok := msgs[len(msgs)-1].(WillCloseMsg); !ok {
		t.Errorf("expected WillCloseMsg last, got %#v", msgs[len(msgs)-1])
	}

	f.rt.post(pingMsg{})
	if len(f.rt.takeInbox()) != 0 {
		t.Error("post after shutdown should be dropped")
	}
}

type seqMsg int

func TestTickRunsSequence(t *testing.T) {
	f := newRuntimeFixture(t, testConfig(), func(m *recorder) {
		m.onUpdate = func(msg tea.Msg) tea.Cmd {
			if _, ok := msg.(tea.KeyMsg); ok {
				return tea.Sequence(
					func() tea.Msg { time.Sleep(10 * time.Millisecond); return seqMsg(1) },
					tea.Batch(
						func() tea.Msg { return seqMsg(2) },
						func() tea.Msg { return seqMsg(2) },
					),
					func() tea.Msg { return seqMsg(3) },
				)
			}
			return nil
		}
	})

	f.tick(t, Event{Kind: EventKey, Key: tea.Key{Type: tea.KeyEnter}})

	var got []seqMsg
	deadline := time.After(waitFor)
	for len(got) < 4 {
		select {
		case <-f.rt.wake:
		case <-deadline:
			t.Fatalf("timed out with %v", got)
		}
		f.tick(t)
		got = got[:0]
		for _, msg := range f.model.received() {
			if n, ok := msg.(seqMsg); ok {
				got = append(got, n)
			}
		}
	}
	if want := []seqMsg{1, 2, 2, 3}; !slices.Equal(got, want) {
		t.Errorf("sequence delivered %v, want %v", got, want)
	}
	for _, msg := range f.model.received() {
		if _, ok := sequenceCmds(msg); ok {
			t.Errorf("sequence reached the model: %#v", msg)
		}
	}
}

func TestSequenceCmds(t *testing.T) {
	ping := func() tea.Msg { return pingMsg{} }

	if cmds, ok := sequenceCmds(tea.Sequence(ping, ping)()); !ok || len(cmds) != 2 {
		t.Errorf("expected 2 commands from tea.Sequence, got %d ok=%v", len(cmds), ok)
	}
	for _, msg := range []tea.Msg{nil, pingMsg{}, tea.BatchMsg{ping}, []int{1}} {
		if _, ok := sequenceCmds(msg); ok {
			t.Errorf("%#v is not a sequence", msg)
		}
	}
}

func TestRuntimeShutdownKeepsResizeRequests(t *testing.T) {
	f := newRuntimeFixture(t, testConfig(), func(m *recorder) {
		m.onUpdate = func(msg tea.Msg) tea.Cmd {
			if _, ok := msg.(WillCloseMsg); ok {
				return RequestResize(Size{Width: 900, Height: 700})
			}
			return nil
		}
	})

	// Posted but never ticked.
	f.rt.post(ResizeRequestMsg{Size: Size{Width: 800, Height: 600}})
	f.sizes.detach()
	f.rt.shutdown()

	w := newFakeWindow()
	waitUntil(t, func() bool {
		f.sizes.mu.Lock()
		defer f.sizes.mu.Unlock()
		return f.sizes.pending != nil && *f.sizes.pending == (Size{Width: 900, Height: 700})
	})
	queued, ok := f.sizes.attach(w)
	if !ok || queued != (Size{Width: 900, Height: 700}) {
		t.Errorf("expected the close-time request queued, got %v ok=%v", queued, ok)
	}
	if len(f.win.requestLog()) != 0 {
		t.Errorf("closed window should not be asked to resize: %v", f.win.requestLog())
	}
}

func TestTickFrameMessages(t *testing.T) {
	cfg := testConfig()
	cfg.FrameMessages = true
	f := newRuntimeFixture(t, cfg, nil)
	n := len(f.model.received())

	f.tick(t, Event{Kind: EventFrame}, Event{Kind: EventFrame})

	got := f.since(n)
	if len(got) != 1 {
		t.Fatalf("expected one FrameMsg per tick, got %#v", got)
	}
	if fm, ok := got[0].(FrameMsg); !ok || fm.Time.IsZero() {
		t.Errorf("expected FrameMsg, got %#v", got[0])
	}
}

func TestTickProfiled(t *testing.T) {
	f := newRuntimeFixture(t, testConfig(), nil)
	f.rt.prof = debug.NewProfiler(16)

	f.ch.Publish(gainID, 0.4)
	f.tick(t)

	for _, name := range []string{sectionTick, sectionUpdate, sectionPresent} {
		if m, ok := f.rt.prof.Measurement(name); !ok || m.Count != 1 {
			t.Errorf("%s: expected one sample, got %+v", name, m)
		}
	}
}
