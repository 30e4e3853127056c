// Package capture is the platform-independent half of the event
// capture contract from spec §4.4: edge-arrival detection while this
// host is Local, and translation of raw OS events to semantic
// InputEvents while forwarding to a remote. The actual system-wide
// event interceptor (the host-input tap) is an external collaborator,
// driven through the On* methods below. Those methods call the
// Callbacks synchronously on the caller's goroutine; this package holds
// no queue of its own, so a callback that blocks also blocks the
// collaborator's delivery.
package capture

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/alexandertomana/MouseShare/arrangement"
	"github.com/alexandertomana/MouseShare/codec"
)

// EscapeKeyCode is the virtual keycode suppressed and raised as the
// distinguished "escape-to-local" signal (macOS keycode 53, or its
// platform equivalent).
const EscapeKeyCode = 53

// Point is a cursor position in OS screen coordinates.
type Point struct{ X, Y float64 }

// Bounds is the combined local display bounds in OS screen
// coordinates, used for edge-distance checks.
type Bounds struct{ MinX, MinY, MaxX, MaxY float64 }

// EdgeSettings configures the debounce behavior from spec §4.4.
type EdgeSettings struct {
	ThresholdPx     float64
	CornerDeadZonePx float64
	TransitionDelay time.Duration
}

// Callbacks is what the Controller consumes from Capture.
type Callbacks struct {
	// OnEdgeArrival fires when the cursor has settled at an edge for
	// TransitionDelay while isControlling is true.
	OnEdgeArrival func(edge arrangement.Edge, point Point)
	// OnEvent delivers a semantic InputEvent while isControlling is
	// false (this host is forwarding to a remote).
	OnEvent func(codec.InputEvent)
	// OnEscapeToLocal fires when the escape key is suppressed while
	// forwarding.
	OnEscapeToLocal func()
}

// Capture holds the isControlling flag and the edge-debounce state
// machine. It has no knowledge of ControlState; the Controller derives
// isControlling from its own state and calls SetControlling.
type Capture struct {
	cb Callbacks

	isControlling atomic.Bool

	mu           sync.Mutex
	bounds       Bounds
	settings     EdgeSettings
	currentEdge  arrangement.Edge
	hasEdge      bool
	edgeSince    time.Time
	notified     bool
}

func New(cb Callbacks) *Capture {
	c := &Capture{cb: cb}
	c.isControlling.Store(true)
	return c
}

func (c *Capture) SetControlling(v bool) {
	c.isControlling.Store(v)
	if v {
		c.mu.Lock()
		c.hasEdge = false
		c.notified = false
		c.mu.Unlock()
	}
}

func (c *Capture) IsControlling() bool { return c.isControlling.Load() }

func (c *Capture) SetBounds(b Bounds) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bounds = b
}

func (c *Capture) SetEdgeSettings(s EdgeSettings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s
}

// edgeAt classifies point against bounds/threshold, honoring the
// corner dead zone: a point within cornerDeadZone of two orthogonal
// edges simultaneously never triggers.
func edgeAt(p Point, b Bounds, s EdgeSettings) (arrangement.Edge, bool) {
	distLeft := p.X - b.MinX
	distRight := b.MaxX - p.X
	distTop := p.Y - b.MinY
	distBottom := b.MaxY - p.Y

	nearLeft := distLeft <= s.ThresholdPx
	nearRight := distRight <= s.ThresholdPx
	nearTop := distTop <= s.ThresholdPx
	nearBottom := distBottom <= s.ThresholdPx

	inDeadZoneX := distLeft <= s.CornerDeadZonePx || distRight <= s.CornerDeadZonePx
	inDeadZoneY := distTop <= s.CornerDeadZonePx || distBottom <= s.CornerDeadZonePx
	if inDeadZoneX && inDeadZoneY {
		return 0, false
	}

	switch {
	case nearLeft:
		return arrangement.Left, true
	case nearRight:
		return arrangement.Right, true
	case nearTop:
		return arrangement.Top, true
	case nearBottom:
		return arrangement.Bottom, true
	default:
		return 0, false
	}
}

// OnCursorMoved is invoked by the OS glue on every raw cursor position
// update while isControlling is true. Non-edge positions pass through
// to the OS unchanged (there is nothing for this package to do); edge
// positions run the debounce and, once settled for TransitionDelay,
// notify the Controller exactly once per dwell.
func (c *Capture) OnCursorMoved(p Point) {
	if !c.isControlling.Load() {
		return
	}

	c.mu.Lock()
	edge, at := edgeAt(p, c.bounds, c.settings)
	if !at {
		c.hasEdge = false
		c.notified = false
		c.mu.Unlock()
		return
	}

	now := time.Now()
	if !c.hasEdge || c.currentEdge != edge {
		c.hasEdge = true
		c.currentEdge = edge
		c.edgeSince = now
		settled := c.settings.TransitionDelay <= 0
		c.notified = settled
		c.mu.Unlock()
		if settled {
			c.notifyEdge(edge, p)
		}
		return
	}

	already := c.notified
	dwell := now.Sub(c.edgeSince)
	ready := !already && dwell >= c.settings.TransitionDelay
	if ready {
		c.notified = true
	}
	c.mu.Unlock()

	if ready {
		c.notifyEdge(edge, p)
	}
}

func (c *Capture) notifyEdge(edge arrangement.Edge, p Point) {
	if c.cb.OnEdgeArrival != nil {
		c.cb.OnEdgeArrival(edge, p)
	}
}

// OnRawMouseDelta is invoked by the OS glue with a relative mouse delta
// while isControlling is false: the event is suppressed locally and
// forwarded as a semantic InputEvent.
func (c *Capture) OnRawMouseDelta(dx, dy float64, mods codec.Modifiers) {
	if c.isControlling.Load() {
		return
	}
	c.deliver(codec.NewMouseMove(dx, dy, mods))
}

func (c *Capture) OnRawMouseDown(btn codec.MouseButton, clicks int, mods codec.Modifiers) {
	if c.isControlling.Load() {
		return
	}
	c.deliver(codec.NewMouseDown(btn, clicks, mods))
}

func (c *Capture) OnRawMouseUp(btn codec.MouseButton, clicks int, mods codec.Modifiers) {
	if c.isControlling.Load() {
		return
	}
	c.deliver(codec.NewMouseUp(btn, clicks, mods))
}

func (c *Capture) OnRawScroll(dx, dy float64) {
	if c.isControlling.Load() {
		return
	}
	c.deliver(codec.NewScroll(dx, dy))
}

// OnRawKeyDown is invoked by the OS glue for every key press while
// forwarding. The escape key is suppressed and never forwarded as a
// KeyDown — it raises the distinguished escape-to-local signal instead
// (spec §4.4, §8 property 10).
func (c *Capture) OnRawKeyDown(code uint16, chars string, mods codec.Modifiers) {
	if c.isControlling.Load() {
		return
	}
	if code == EscapeKeyCode {
		if c.cb.OnEscapeToLocal != nil {
			c.cb.OnEscapeToLocal()
		}
		return
	}
	c.deliver(codec.NewKeyDown(code, chars, mods))
}

func (c *Capture) OnRawKeyUp(code uint16, mods codec.Modifiers) {
	if c.isControlling.Load() {
		return
	}
	if code == EscapeKeyCode {
		return
	}
	c.deliver(codec.NewKeyUp(code, mods))
}

func (c *Capture) OnRawFlagsChanged(mods codec.Modifiers) {
	if c.isControlling.Load() {
		return
	}
	c.deliver(codec.NewFlagsChanged(mods))
}

func (c *Capture) deliver(ev codec.InputEvent) {
	if c.cb.OnEvent != nil {
		c.cb.OnEvent(ev)
	}
}
