// Package codec frames, encodes and optionally seals the wire messages
// exchanged between peers: InputPackets and handshake messages. The
// in-memory InputEvent type is a tagged sum — one Go type per variant —
// so illegal states (e.g. a MouseMove with no delta) are unrepresentable,
// even though the wire encoding below is a flat tagged record for
// simplicity of parsing.
package codec

import "time"

// Modifiers is a bitmask of held modifier keys, shared across variants
// that carry a modifier state.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModControl
	ModAlt
	ModMeta
)

// MouseButton identifies which button a Down/Up/Drag event concerns.
type MouseButton uint8

const (
	ButtonLeft MouseButton = iota
	ButtonRight
	ButtonMiddle
	ButtonOther
)

// Edge mirrors arrangement.Edge without importing it, so codec has no
// dependency on the arrangement package; Controller translates between
// the two at its boundary.
type Edge uint8

const (
	EdgeLeft Edge = iota
	EdgeRight
	EdgeTop
	EdgeBottom
)

// InputEvent is the tagged sum of every event the wire carries. Each
// concrete type below implements it with a private method, so no type
// outside this package can satisfy it — callers must switch on the
// concrete type (or use the Tag method) to handle a received event.
type InputEvent interface {
	Tag() EventTag
	Timestamp() time.Time
	isInputEvent()
}

type EventTag uint8

const (
	TagMouseMove EventTag = iota
	TagMouseDown
	TagMouseUp
	TagMouseDrag
	TagScroll
	TagKeyDown
	TagKeyUp
	TagFlagsChanged
	TagClipboardUpdate
	TagScreenEnter
	TagScreenLeave
	TagScreenEnterAck
	TagHeartbeat
)

type base struct {
	At time.Time
}

func (b base) Timestamp() time.Time { return b.At }

func (base) isInputEvent() {}

// MouseMove MUST carry a delta, never an absolute position: absolute
// coordinates from a different screen's geometry are meaningless on the
// receiving host (spec invariant, see arrangement's coordinate-frame
// discussion).
type MouseMove struct {
	base
	DX, DY float64
	Mods   Modifiers
}

func (MouseMove) Tag() EventTag { return TagMouseMove }

type MouseDown struct {
	base
	Button     MouseButton
	ClickCount int
	Mods       Modifiers
}

func (MouseDown) Tag() EventTag { return TagMouseDown }

type MouseUp struct {
	base
	Button     MouseButton
	ClickCount int
	Mods       Modifiers
}

func (MouseUp) Tag() EventTag { return TagMouseUp }

// MouseDrag carries a delta for the same reason MouseMove does.
type MouseDrag struct {
	base
	DX, DY     float64
	Button     MouseButton
	ClickCount int
	Mods       Modifiers
}

func (MouseDrag) Tag() EventTag { return TagMouseDrag }

type Scroll struct {
	base
	DX, DY float64
}

func (Scroll) Tag() EventTag { return TagScroll }

type KeyDown struct {
	base
	Code  uint16
	Chars string // optional; empty when not applicable
	Mods  Modifiers
}

func (KeyDown) Tag() EventTag { return TagKeyDown }

type KeyUp struct {
	base
	Code uint16
	Mods Modifiers
}

func (KeyUp) Tag() EventTag { return TagKeyUp }

type FlagsChanged struct {
	base
	Mods Modifiers
}

func (FlagsChanged) Tag() EventTag { return TagFlagsChanged }

// ClipboardUpdate carries the clipboard payload and a MIME-like tag
// describing its contents. Capped at 10 MiB by the clipboard bridge
// before it ever reaches the codec.
type ClipboardUpdate struct {
	base
	Blob    []byte
	MimeTag string
}

func (ClipboardUpdate) Tag() EventTag { return TagClipboardUpdate }

// ScreenEnter announces an incoming control hand-off: edge is the edge
// the receiving host should treat the crossing as entering through, and
// RelEntryX/Y are normalized [0,1] coordinates along that edge.
type ScreenEnter struct {
	base
	Edge               Edge
	RelEntryX, RelEntryY float64
}

func (ScreenEnter) Tag() EventTag { return TagScreenEnter }

type ScreenLeave struct {
	base
	Edge Edge
}

func (ScreenLeave) Tag() EventTag { return TagScreenLeave }

type ScreenEnterAck struct {
	base
	Edge Edge
}

func (ScreenEnterAck) Tag() EventTag { return TagScreenEnterAck }

type Heartbeat struct {
	base
}

func (Heartbeat) Tag() EventTag { return TagHeartbeat }

// NewMouseMove and its siblings stamp the event with the current time;
// callers never set Timestamp by hand.
func NewMouseMove(dx, dy float64, mods Modifiers) MouseMove {
	return MouseMove{base: base{time.Now()}, DX: dx, DY: dy, Mods: mods}
}

func NewMouseDown(btn MouseButton, clicks int, mods Modifiers) MouseDown {
	return MouseDown{base: base{time.Now()}, Button: btn, ClickCount: clicks, Mods: mods}
}

func NewMouseUp(btn MouseButton, clicks int, mods Modifiers) MouseUp {
	return MouseUp{base: base{time.Now()}, Button: btn, ClickCount: clicks, Mods: mods}
}

func NewMouseDrag(dx, dy float64, btn MouseButton, clicks int, mods Modifiers) MouseDrag {
	return MouseDrag{base: base{time.Now()}, DX: dx, DY: dy, Button: btn, ClickCount: clicks, Mods: mods}
}

func NewScroll(dx, dy float64) Scroll {
	return Scroll{base: base{time.Now()}, DX: dx, DY: dy}
}

func NewKeyDown(code uint16, chars string, mods Modifiers) KeyDown {
	return KeyDown{base: base{time.Now()}, Code: code, Chars: chars, Mods: mods}
}

func NewKeyUp(code uint16, mods Modifiers) KeyUp {
	return KeyUp{base: base{time.Now()}, Code: code, Mods: mods}
}

func NewFlagsChanged(mods Modifiers) FlagsChanged {
	return FlagsChanged{base: base{time.Now()}, Mods: mods}
}

func NewClipboardUpdate(blob []byte, mimeTag string) ClipboardUpdate {
	return ClipboardUpdate{base: base{time.Now()}, Blob: blob, MimeTag: mimeTag}
}

func NewScreenEnter(edge Edge, relX, relY float64) ScreenEnter {
	return ScreenEnter{base: base{time.Now()}, Edge: edge, RelEntryX: relX, RelEntryY: relY}
}

func NewScreenLeave(edge Edge) ScreenLeave {
	return ScreenLeave{base: base{time.Now()}, Edge: edge}
}

func NewScreenEnterAck(edge Edge) ScreenEnterAck {
	return ScreenEnterAck{base: base{time.Now()}, Edge: edge}
}

func NewHeartbeat() Heartbeat {
	return Heartbeat{base: base{time.Now()}}
}
