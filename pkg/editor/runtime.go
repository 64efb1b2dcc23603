package editor

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/justyntemme/vst3gui/pkg/bridge"
	"github.com/justyntemme/vst3gui/pkg/framework/debug"
	"github.com/justyntemme/vst3gui/pkg/framework/param"
)

// Profiler sections recorded for every tick.
const (
	sectionTick    = "editor.tick"
	sectionUpdate  = "editor.update"
	sectionPresent = "editor.present"
)

// runtime drives one model for one session. All methods except post run on
// the GUI goroutine.
type runtime struct {
	model    tea.Model
	snapshot param.Snapshot
	channel  *bridge.Channel
	window   NativeWindow
	sizes    *negotiator
	params   *ParamSetter
	cfg      Config
	log      *zap.Logger
	prof     *debug.Profiler

	inboxMu sync.Mutex
	inbox   []tea.Msg
	stopped bool // guarded by inboxMu
	wake    chan struct{}

	queue     []tea.Msg
	lastFrame string
	presented bool
	updated   bool
	resized   bool
	quit      bool
}

func newRuntime(model tea.Model, snapshot param.Snapshot, ch *bridge.Channel, w NativeWindow,
	sizes *negotiator, params *ParamSetter, cfg Config, log *zap.Logger, prof *debug.Profiler) *runtime {
	return &runtime{
		model:    model,
		snapshot: snapshot,
		channel:  ch,
		window:   w,
		sizes:    sizes,
		params:   params,
		cfg:      cfg,
		log:      log,
		prof:     prof,
		wake:     make(chan struct{}, 1),
	}
}

// start runs Init, tells the model its size and presents the first frame.
func (r *runtime) start() error {
	cmd, err := r.safeInit()
	if err != nil {
		return err
	}
	r.exec(cmd)

	g := r.sizes.geometry()
	if err := r.update(sizeMsg(g.Size)); err != nil {
		return err
	}
	return r.render(true)
}

// tick is one iteration of the GUI loop: drain parameter changes, collect
// host sizes and command results, translate input, update, and redraw if the
// frame changed. A tick with nothing to do does not touch the model.
func (r *runtime) tick(events []Event) error {
	defer r.prof.Start(sectionTick)()

	q := r.queue[:0]
	r.channel.Drain(func(id uint32, value float64) {
		q = append(q, ParamChangedMsg{ID: id, Value: value, Display: r.snapshot.Format(id, value)})
	})
	if g, changed := r.sizes.takeHostSize(); changed {
		q = append(q, sizeMsg(g.Size))
		r.resized = true
	}
	if s, ok := r.sizes.takePending(); ok {
		q = append(q, ResizeRequestMsg{Size: s})
	}
	q = append(q, r.takeInbox()...)
	framed := false
	for _, ev := range events {
		switch ev.Kind {
		case EventKey:
			q = append(q, tea.KeyMsg(ev.Key))
		case EventMouse:
			q = append(q, tea.MouseMsg(ev.Mouse))
		case EventFrame:
			if r.cfg.FrameMessages && !framed {
				q = append(q, FrameMsg{Time: time.Now()})
				framed = true
			}
		}
	}
	r.queue = q

	if len(q) == 0 && !r.resized {
		return nil
	}

	stop := r.prof.Start(sectionUpdate)
	for i := 0; i < len(r.queue) && !r.quit; i++ {
		if err := r.handle(r.queue[i]); err != nil {
			stop()
			return err
		}
	}
	stop()
	clear(r.queue)

	if r.quit {
		return errQuit
	}
	return r.render(false)
}

func (r *runtime) handle(msg tea.Msg) error {
	switch m := msg.(type) {
	case ResizeRequestMsg:
		if g, changed := r.sizes.request(m.Size); changed {
			r.resized = true
			return r.update(sizeMsg(g.Size))
		}
		return nil
	case SetParameterMsg:
		r.params.Set(m.ID, m.Value)
		return nil
	case BeginEditMsg:
		r.params.Begin(m.ID)
		return nil
	case EndEditMsg:
		r.params.End(m.ID)
		return nil
	case tea.QuitMsg:
		r.quit = true
		return nil
	case tea.BatchMsg:
		for _, cmd := range m {
			r.exec(cmd)
		}
		return nil
	}
	if cmds, ok := sequenceCmds(msg); ok {
		r.runSequence(cmds)
		return nil
	}
	return r.update(msg)
}

var cmdsType = reflect.TypeOf([]tea.Cmd(nil))

// sequenceCmds unpacks the message built by tea.Sequence. Its type is
// unexported, so it is recognized by shape: a slice of commands that is not a
// tea.BatchMsg.
func sequenceCmds(msg tea.Msg) ([]tea.Cmd, bool) {
	if msg == nil {
		return nil, false
	}
	if _, ok := msg.(tea.BatchMsg); ok {
		return nil, false
	}
	v := reflect.ValueOf(msg)
	if v.Kind() != reflect.Slice || !v.Type().ConvertibleTo(cmdsType) {
		return nil, false
	}
	return v.Convert(cmdsType).Interface().([]tea.Cmd), true
}

func (r *runtime) update(msg tea.Msg) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("update %T panicked: %v", msg, p)
		}
	}()
	var cmd tea.Cmd
	r.model, cmd = r.model.Update(msg)
	r.updated = true
	r.exec(cmd)
	return nil
}

// render lays out the view and presents it when it differs from what is on
// screen. With AutoSize the laid-out view is measured and proposed as the
// window size; an accepted change is fed back and laid out once more.
func (r *runtime) render(force bool) error {
	if !force && !r.updated && !r.resized {
		return nil
	}
	r.updated = false

	frame, err := r.view()
	if err != nil {
		return err
	}

	if r.cfg.AutoSize {
		w, h := lipgloss.Size(frame)
		desired := Size{Width: w * r.cfg.CellWidth, Height: h * r.cfg.CellHeight}
		if g, changed := r.sizes.request(desired); changed {
			r.resized = true
			if err := r.update(sizeMsg(g.Size)); err != nil {
				return err
			}
			if frame, err = r.view(); err != nil {
				return err
			}
		}
	}

	if r.presented && !force && !r.resized && frame == r.lastFrame {
		return nil
	}
	r.resized = false

	stop := r.prof.Start(sectionPresent)
	err = r.window.Present(frame)
	stop()
	if err != nil {
		return fmt.Errorf("present: %w", err)
	}
	r.lastFrame = frame
	r.presented = true
	return nil
}

func (r *runtime) view() (frame string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("view panicked: %v", p)
		}
	}()
	return r.model.View(), nil
}

func (r *runtime) safeInit() (cmd tea.Cmd, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("init panicked: %v", p)
		}
	}()
	return r.model.Init(), nil
}

// exec runs cmd on its own goroutine, as bubbletea does, and posts the
// resulting message to the inbox.
func (r *runtime) exec(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() {
		defer r.recoverCmd()
		if msg := cmd(); msg != nil {
			r.post(msg)
		}
	}()
}

// runSequence runs cmds one after another on its own goroutine. Each result
// is posted before the next command starts.
func (r *runtime) runSequence(cmds []tea.Cmd) {
	go func() {
		defer r.recoverCmd()
		r.sequence(cmds)
	}()
}

func (r *runtime) sequence(cmds []tea.Cmd) {
	for _, cmd := range cmds {
		if cmd != nil {
			r.deliver(cmd())
		}
	}
}

// deliver posts a result from inside a sequence. Nested batches run to
// completion and nested sequences run in place, so ordering holds.
func (r *runtime) deliver(msg tea.Msg) {
	if msg == nil {
		return
	}
	if batch, ok := msg.(tea.BatchMsg); ok {
		var wg sync.WaitGroup
		for _, cmd := range batch {
			if cmd == nil {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer r.recoverCmd()
				r.deliver(cmd())
			}()
		}
		wg.Wait()
		return
	}
	if cmds, ok := sequenceCmds(msg); ok {
		r.sequence(cmds)
		return
	}
	r.post(msg)
}

func (r *runtime) recoverCmd() {
	if p := recover(); p != nil {
		r.log.Error("command panicked", zap.Any("panic", p))
	}
}

// post queues msg for the next tick. Safe from any goroutine. After stop the
// message goes to late instead.
func (r *runtime) post(msg tea.Msg) {
	r.inboxMu.Lock()
	if r.stopped {
		r.inboxMu.Unlock()
		r.late(msg)
		return
	}
	r.inbox = append(r.inbox, msg)
	r.inboxMu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *runtime) takeInbox() []tea.Msg {
	r.inboxMu.Lock()
	defer r.inboxMu.Unlock()
	msgs := r.inbox
	r.inbox = nil
	return msgs
}

// stop ends the inbox. It returns what was posted but never ticked.
func (r *runtime) stop() []tea.Msg {
	r.inboxMu.Lock()
	defer r.inboxMu.Unlock()
	r.stopped = true
	msgs := r.inbox
	r.inbox = nil
	return msgs
}

// late handles a message that arrives once the session has stopped. Resize
// requests are kept for the next session; everything else is dropped.
func (r *runtime) late(msg tea.Msg) {
	switch m := msg.(type) {
	case ResizeRequestMsg:
		r.sizes.queue(m.Size)
	case tea.BatchMsg:
		for _, cmd := range m {
			r.exec(cmd)
		}
	default:
		if cmds, ok := sequenceCmds(msg); ok {
			r.runSequence(cmds)
		}
	}
}

// shutdown stops the inbox and gives the model its WillCloseMsg. Called after
// the GUI loop has exited and the negotiator is detached, so resize requests
// still queued or made on close wait for the next Open.
func (r *runtime) shutdown() {
	for _, msg := range r.stop() {
		r.late(msg)
	}
	if err := r.update(WillCloseMsg{}); err != nil {
		r.log.Warn("model failed on close", zap.Error(err))
	}
}

func sizeMsg(s Size) tea.WindowSizeMsg {
	return tea.WindowSizeMsg{Width: s.Width, Height: s.Height}
}
