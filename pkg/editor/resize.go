package editor

import "sync"

// Geometry is the current window size and the bounds it must stay within.
type Geometry struct {
	Size Size
	Min  Size
	Max  Size
}

// Clamp fits s into the bounds.
func (g Geometry) Clamp(s Size) Size {
	return Size{
		Width:  clampInt(s.Width, g.Min.Width, g.Max.Width),
		Height: clampInt(s.Height, g.Min.Height, g.Max.Height),
	}
}

func clampInt(v, lo, hi int) int {
	if hi > 0 && v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// negotiator owns the window geometry. GUI requests come from the GUI
// goroutine; host answers and host-initiated sizes may come from anywhere and
// are parked in a one-slot mailbox until the GUI goroutine picks them up.
type negotiator struct {
	mu       sync.Mutex
	geom     Geometry
	window   NativeWindow
	cancel   func()
	open     bool
	pending  *Size // latest GUI request made while not open
	fromHost *Size // latest size pushed by the host
	wake     chan struct{}
}

func newNegotiator(initial Size) *negotiator {
	return &negotiator{
		geom: Geometry{Size: initial},
		wake: make(chan struct{}, 1),
	}
}

// reset fixes the bounds for the next session. Called while Opening.
func (n *negotiator) reset(min, max Size) Geometry {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.geom.Min, n.geom.Max = min, max
	n.geom.Size = n.geom.Clamp(n.geom.Size)
	n.fromHost = nil
	return n.geom
}

// attach starts negotiating with w and returns the request queued while the
// editor was not open, if any.
func (n *negotiator) attach(w NativeWindow) (Size, bool) {
	n.mu.Lock()
	n.window = w
	n.open = true
	pending := n.pending
	n.pending = nil
	n.mu.Unlock()

	cancel := w.SubscribeSizeNegotiation(n.offer)

	n.mu.Lock()
	n.cancel = cancel
	n.mu.Unlock()

	if pending == nil {
		return Size{}, false
	}
	return *pending, true
}

// detach stops negotiating. Requests made from now on are queued.
func (n *negotiator) detach() {
	n.mu.Lock()
	cancel := n.cancel
	n.cancel = nil
	n.window = nil
	n.open = false
	n.fromHost = nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// request proposes desired to the host. It returns the resulting geometry
// and whether the size changed. The host is called without holding the lock
// so it may answer through offer synchronously.
func (n *negotiator) request(desired Size) (Geometry, bool) {
	n.mu.Lock()
	if !n.open {
		queued := desired
		n.pending = &queued
		g := n.geom
		n.mu.Unlock()
		return g, false
	}
	proposal := n.geom.Clamp(desired)
	if proposal == n.geom.Size {
		g := n.geom
		n.mu.Unlock()
		return g, false
	}
	w := n.window
	n.mu.Unlock()

	accepted, ok := w.RequestResize(proposal)
	if !ok {
		return n.geometry(), false
	}
	return n.apply(accepted)
}

// queue parks desired as the request to replay, replacing any earlier one.
// It is for requests that outlive their session: while closed they wait for
// attach, while open the GUI goroutine is woken to pick them up.
func (n *negotiator) queue(desired Size) {
	n.mu.Lock()
	queued := desired
	n.pending = &queued
	open := n.open
	n.mu.Unlock()

	if open {
		select {
		case n.wake <- struct{}{}:
		default:
		}
	}
}

// takePending returns the queued request, if any, and forgets it.
func (n *negotiator) takePending() (Size, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pending == nil || !n.open {
		return Size{}, false
	}
	s := *n.pending
	n.pending = nil
	return s, true
}

// offer is the host's size callback.
func (n *negotiator) offer(s Size) {
	n.mu.Lock()
	if !n.open {
		n.mu.Unlock()
		return
	}
	n.fromHost = &s
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// takeHostSize applies the size most recently pushed by the host, if any.
func (n *negotiator) takeHostSize() (Geometry, bool) {
	n.mu.Lock()
	s := n.fromHost
	n.fromHost = nil
	n.mu.Unlock()

	if s == nil {
		return n.geometry(), false
	}
	return n.apply(*s)
}

func (n *negotiator) apply(accepted Size) (Geometry, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	next := n.geom.Clamp(accepted)
	changed := next != n.geom.Size
	n.geom.Size = next
	return n.geom, changed
}

func (n *negotiator) geometry() Geometry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.geom
}
