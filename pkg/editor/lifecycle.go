package editor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justyntemme/vst3gui/pkg/bridge"
	"github.com/justyntemme/vst3gui/pkg/framework/debug"
	"github.com/justyntemme/vst3gui/pkg/framework/param"
)

// maxBatch bounds how many queued native events one tick consumes.
const maxBatch = 64

// Editor is a plugin editor that can be opened and closed any number of
// times. Open and Close are meant for the host's control thread;
// NotifyParameterChanged may be called from the audio thread at any time.
type Editor struct {
	factory WindowFactory
	host    Host
	newApp  AppFactory
	cfg     Config
	log     *zap.Logger

	// Profiler receives tick timings. Nil disables profiling.
	Profiler *debug.Profiler

	mu    sync.Mutex // serializes Open, Close and teardown
	state atomic.Int32
	armed atomic.Pointer[bridge.Channel]
	sizes *negotiator
	sess  *session
	live  atomic.Pointer[session] // sess, for callers that must not take mu
}

// session is everything that lives from Opening to Closed.
type session struct {
	id      string
	channel *bridge.Channel
	window  NativeWindow
	rt      *runtime
	params  *ParamSetter
	log     *zap.Logger
	stop    chan struct{}
	done    chan struct{}
	exit    error // why the loop ended; written before done is closed
}

// New creates a closed editor.
func New(factory WindowFactory, host Host, app AppFactory, cfg Config) *Editor {
	return &Editor{
		factory: factory,
		host:    host,
		newApp:  app,
		cfg:     cfg,
		log:     cfg.logger(),
		sizes:   newNegotiator(Size{Width: cfg.Width, Height: cfg.Height}),
	}
}

// State returns the current lifecycle state.
func (e *Editor) State() State {
	return State(e.state.Load())
}

// IsOpen reports whether the editor is Open.
func (e *Editor) IsOpen() bool {
	return e.State() == Open
}

// Geometry returns the current window geometry.
func (e *Editor) Geometry() Geometry {
	return e.sizes.geometry()
}

// SessionID returns the id of the open session, or "" when closed.
func (e *Editor) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return ""
	}
	return e.sess.id
}

// NotifyParameterChanged publishes a parameter change to the GUI. It never
// blocks or allocates and does nothing unless the editor is Open.
func (e *Editor) NotifyParameterChanged(id uint32, value float64) {
	e.armed.Load().Publish(id, value)
}

func (e *Editor) transition(to State) error {
	from := e.State()
	if !CanTransition(from, to) {
		err := fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		e.log.Error("lifecycle", zap.Error(err))
		return err
	}
	e.state.Store(int32(to))
	e.log.Debug("lifecycle", zap.Stringer("from", from), zap.Stringer("to", to))
	return nil
}

// Open creates the native window inside target and starts the GUI with the
// given parameter values. On failure the editor stays Closed and the error is
// a *CreationError.
func (e *Editor) Open(target EmbeddingTarget, snapshot param.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() != Closed {
		return ErrAlreadyOpen
	}
	if err := e.transition(Opening); err != nil {
		return err
	}

	s := &session{
		id:      uuid.NewString(),
		channel: bridge.New(snapshot.IDs()),
		params:  newParamSetter(e.host),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.log = e.log.With(zap.String("session", s.id))

	lo, hi := e.cfg.bounds()
	geom := e.sizes.reset(lo, hi)
	model := e.newApp(Context{
		SessionID: s.id,
		Title:     e.cfg.Title,
		Snapshot:  snapshot,
		Geometry:  geom,
		Params:    s.params,
		Cell:      Size{Width: e.cfg.CellWidth, Height: e.cfg.CellHeight},
	})
	if model == nil {
		return e.abort(s, "create model", errors.New("app factory returned nil model"))
	}
	if c, ok := model.(Constrained); ok {
		lo, hi = c.SizeConstraints()
		geom = e.sizes.reset(lo, hi)
	}

	w, err := e.factory.CreateWindow(target, WindowOptions{
		Title:     e.cfg.Title,
		Size:      geom.Size,
		FrameRate: e.cfg.FrameRate,
	})
	if err != nil {
		return e.abort(s, "create window", err)
	}
	if w == nil {
		return e.abort(s, "create window", errors.New("factory returned nil window"))
	}
	s.window = w

	s.rt = newRuntime(model, snapshot, s.channel, w, e.sizes, s.params, e.cfg, s.log, e.Profiler)
	if err := s.rt.start(); err != nil {
		s.rt.stop()
		return e.abort(s, "first render", err)
	}

	if err := e.transition(Open); err != nil {
		return e.abort(s, "open", err)
	}
	e.sess = s
	e.live.Store(s)
	e.armed.Store(s.channel)
	e.resync(s, snapshot)

	if queued, ok := e.sizes.attach(w); ok {
		s.rt.post(ResizeRequestMsg{Size: queued})
	}

	go e.run(s)

	s.log.Info("editor open",
		zap.Int("params", s.channel.Len()),
		zap.Int("width", geom.Size.Width),
		zap.Int("height", geom.Size.Height))
	return nil
}

// abort unwinds a failed Open back to Closed.
func (e *Editor) abort(s *session, op string, err error) error {
	s.params.close()
	if s.window != nil {
		if cerr := s.window.Close(); cerr != nil {
			s.log.Warn("closing window after failed open", zap.Error(cerr))
		}
	}
	e.transition(Closed)

	cerr := &CreationError{Op: op, Err: err}
	s.log.Error("editor open failed", zap.Error(cerr))
	return cerr
}

// resync publishes values that moved between the snapshot handed to Open and
// the moment the bridge was armed.
func (e *Editor) resync(s *session, opened param.Snapshot) {
	for _, v := range e.host.ReadSnapshot().Values() {
		if old, ok := opened.Get(v.ID); ok && old != v.Value {
			s.channel.Publish(v.ID, v.Value)
		}
	}
}

// Close tears the editor down. It waits for an in-flight tick to finish.
// Closing a closed editor does nothing.
//
// Close must not be called from the GUI goroutine, that is from the model or
// from a Host method the editor is calling, because it would wait for itself.
// Use RequestClose there.
func (e *Editor) Close() {
	e.mu.Lock()
	s := e.sess
	if e.State() != Open || s == nil {
		e.mu.Unlock()
		return
	}
	e.transition(Closing)
	e.armed.Store(nil)
	close(s.stop)
	<-s.done
	fault := e.teardown(s)
	e.mu.Unlock()

	e.report(fault)
}

// RequestClose asks the open session to close after its current tick and
// returns without waiting. It is safe from any goroutine, including the GUI
// goroutine, and does nothing when the editor is not Open.
func (e *Editor) RequestClose() {
	if s := e.live.Load(); s != nil {
		s.rt.post(tea.QuitMsg{})
	}
}

// closeFromLoop is the GUI loop's own exit path: the window went away, the
// model quit, or a tick failed.
func (e *Editor) closeFromLoop(s *session) {
	e.mu.Lock()
	if e.sess != s {
		e.mu.Unlock()
		return
	}
	e.transition(Closing)
	e.armed.Store(nil)
	fault := e.teardown(s)
	e.mu.Unlock()

	e.report(fault)
}

// teardown releases the session's resources and moves to Closed. The GUI
// loop must have exited. Returns the fault that ended the session, if any.
func (e *Editor) teardown(s *session) error {
	var fault *RuntimeFault
	errors.As(s.exit, &fault)

	e.live.Store(nil)
	e.sizes.detach()
	s.rt.shutdown()
	s.params.close()
	if err := s.window.Close(); err != nil {
		s.log.Warn("closing window", zap.Error(err))
	}
	e.sess = nil
	e.transition(Closed)

	if fault != nil {
		s.log.Error("editor closed after runtime fault", zap.Error(fault))
		return fault
	}
	s.log.Info("editor closed", zap.NamedError("reason", s.exit))
	return nil
}

func (e *Editor) report(fault error) {
	if fault != nil && e.cfg.OnFault != nil {
		e.cfg.OnFault(fault)
	}
}

// run is the GUI goroutine of a session.
func (e *Editor) run(s *session) {
	s.exit = e.loop(s)
	close(s.done)
	if s.exit != nil {
		e.closeFromLoop(s)
	}
}

// loop ticks on every batch of native events and on every wake-up from the
// runtime or the negotiator. It returns nil when stopped by Close.
func (e *Editor) loop(s *session) error {
	events := s.window.Events()
	batch := make([]Event, 0, maxBatch)

	for {
		select {
		case <-s.stop:
			return nil
		default:
		}

		batch = batch[:0]
		select {
		case <-s.stop:
			return nil
		case ev, ok := <-events:
			if !ok {
				return errWindowClosed
			}
			batch = append(batch, ev)
		more:
			for len(batch) < maxBatch {
				select {
				case ev, ok := <-events:
					if !ok {
						break more
					}
					batch = append(batch, ev)
				default:
					break more
				}
			}
		case <-s.rt.wake:
		case <-e.sizes.wake:
		}

		closed := false
		for _, ev := range batch {
			if ev.Kind == EventWindowClosed {
				closed = true
			}
		}
		if err := s.rt.tick(batch); err != nil {
			if errors.Is(err, errQuit) {
				return err
			}
			return &RuntimeFault{Session: s.id, Err: err}
		}
		if closed {
			return errWindowClosed
		}
	}
}
