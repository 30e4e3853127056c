// Package inject is the platform-independent half of the event
// injection contract from spec §4.5: translating a received
// InputEvent into calls against the OS synthetic-input boundary. The
// OS primitives themselves (warp, post synthetic event, show/hide
// cursor, associate mouse to cursor) are external collaborators,
// specified only at the OSHooks interface below.
package inject

import (
	"github.com/alexandertomana/MouseShare/arrangement"
	"github.com/alexandertomana/MouseShare/codec"
)

// InsetPx is how far inside the target edge warp_to_edge snaps the
// cursor, so it lands visibly on-screen rather than exactly on the
// boundary.
const InsetPx = 4

// Point is an absolute cursor position in OS screen coordinates.
type Point struct{ X, Y float64 }

// Bounds is the main display's bounds in OS screen coordinates, used
// to clamp relative moves.
type Bounds struct{ MinX, MinY, MaxX, MaxY float64 }

// OSHooks is the out-of-scope OS boundary: enumerating/warping the
// cursor, posting synthetic events, and toggling visibility/mouse
// association. An implementation is platform-specific and lives
// outside this package.
type OSHooks interface {
	CurrentPosition() Point
	WarpCursor(Point)
	PostMouseDown(btn codec.MouseButton, clicks int, mods codec.Modifiers, at Point)
	PostMouseUp(btn codec.MouseButton, clicks int, mods codec.Modifiers, at Point)
	PostScroll(dx, dy float64)
	PostKeyDown(code uint16, chars string, mods codec.Modifiers)
	PostKeyUp(code uint16, mods codec.Modifiers)
	SetCursorVisible(bool)
	SetMouseCursorAssociation(associated bool)
}

// Injector applies received InputEvents at the OS boundary. Mutated
// only by the Controller, per spec §5's shared-resource rule: the OS
// cursor is mutated only by Injection, and Injection is invoked only
// by the Controller.
type Injector struct {
	hooks  OSHooks
	bounds Bounds
}

func New(hooks OSHooks, bounds Bounds) *Injector {
	return &Injector{hooks: hooks, bounds: bounds}
}

func (i *Injector) SetBounds(b Bounds) { i.bounds = b }

// CurrentPosition exposes the OS cursor position, consulted by the
// Controller's return-edge detector while Controlled.
func (i *Injector) CurrentPosition() Point { return i.hooks.CurrentPosition() }

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Inject translates one received InputEvent into OS-boundary calls.
// MouseMove/MouseDrag read the current absolute position, add the
// event's delta, clamp to bounds, and warp; MouseDown/Up use the
// current cursor position, never a sender's absolute coordinates
// (spec §4.5 invariant — the core forbids comparing a peer's absolute
// coordinates against local geometry).
func (i *Injector) Inject(ev codec.InputEvent) {
	switch e := ev.(type) {
	case codec.MouseMove:
		i.applyDelta(e.DX, e.DY)
	case codec.MouseDrag:
		i.applyDelta(e.DX, e.DY)
	case codec.MouseDown:
		i.hooks.PostMouseDown(e.Button, e.ClickCount, e.Mods, i.hooks.CurrentPosition())
	case codec.MouseUp:
		i.hooks.PostMouseUp(e.Button, e.ClickCount, e.Mods, i.hooks.CurrentPosition())
	case codec.Scroll:
		i.hooks.PostScroll(e.DX, e.DY)
	case codec.KeyDown:
		i.hooks.PostKeyDown(e.Code, e.Chars, e.Mods)
	case codec.KeyUp:
		i.hooks.PostKeyUp(e.Code, e.Mods)
	case codec.FlagsChanged:
		// No direct OS injection call beyond the modifier state carried
		// on subsequent key/mouse events; nothing to post standalone.
	}
}

func (i *Injector) applyDelta(dx, dy float64) {
	cur := i.hooks.CurrentPosition()
	next := Point{
		X: clamp(cur.X+dx, i.bounds.MinX, i.bounds.MaxX),
		Y: clamp(cur.Y+dy, i.bounds.MinY, i.bounds.MaxY),
	}
	i.hooks.WarpCursor(next)
}

// MoveTo performs an absolute warp to p.
func (i *Injector) MoveTo(p Point) {
	i.hooks.WarpCursor(p)
}

// ParkCursor warps to the bounds' center and disassociates the
// physical device from the (now hidden) logical cursor, so continued
// physical movement doesn't affect it while forwarding.
func (i *Injector) ParkCursor() {
	center := Point{
		X: (i.bounds.MinX + i.bounds.MaxX) / 2,
		Y: (i.bounds.MinY + i.bounds.MaxY) / 2,
	}
	i.hooks.WarpCursor(center)
	i.hooks.SetMouseCursorAssociation(false)
}

// WarpToEdge snaps the cursor to InsetPx inside the given edge at the
// given relative position, used when returning control and when
// entering Controlled on ScreenEnter.
func (i *Injector) WarpToEdge(edge arrangement.Edge, relPos float64) {
	var p Point
	switch edge {
	case arrangement.Left:
		p = Point{X: i.bounds.MinX + InsetPx, Y: lerp(i.bounds.MinY, i.bounds.MaxY, relPos)}
	case arrangement.Right:
		p = Point{X: i.bounds.MaxX - InsetPx, Y: lerp(i.bounds.MinY, i.bounds.MaxY, relPos)}
	case arrangement.Top:
		p = Point{X: lerp(i.bounds.MinX, i.bounds.MaxX, relPos), Y: i.bounds.MinY + InsetPx}
	case arrangement.Bottom:
		p = Point{X: lerp(i.bounds.MinX, i.bounds.MaxX, relPos), Y: i.bounds.MaxY - InsetPx}
	}
	i.hooks.WarpCursor(p)
}

func lerp(min, max, t float64) float64 {
	return min + t*(max-min)
}

func (i *Injector) SetCursorVisible(visible bool) {
	i.hooks.SetCursorVisible(visible)
}

func (i *Injector) ReassociateMouse() {
	i.hooks.SetMouseCursorAssociation(true)
}
