package codec

import (
	"fmt"
	"time"
)

// encodeEvent appends one tagged InputEvent to w: an fEventTag field
// carrying the EventTag byte, a timestamp, then that variant's fields
// in a fixed order, closed by fEnd. The fixed order is a property of
// this codec alone (writer and reader are the same code, versioned
// together); skip-unknown handling at this level is unnecessary and
// its complexity is better spent at the packet/handshake level, where
// cross-version peers actually need it.
func encodeEvent(w *writer, ev InputEvent) {
	w.tag(fEventTag)
	w.buf = append(w.buf, byte(ev.Tag()))
	w.timestamp(ev.Timestamp())

	switch e := ev.(type) {
	case MouseMove:
		w.f64(fFloat64, e.DX)
		w.f64(fFloat64b, e.DY)
		w.u8(fUint8, uint8(e.Mods))
	case MouseDown:
		w.u8(fUint8, uint8(e.Button))
		w.i64(fInt, int64(e.ClickCount))
		w.u8(fUint8, uint8(e.Mods))
	case MouseUp:
		w.u8(fUint8, uint8(e.Button))
		w.i64(fInt, int64(e.ClickCount))
		w.u8(fUint8, uint8(e.Mods))
	case MouseDrag:
		w.f64(fFloat64, e.DX)
		w.f64(fFloat64b, e.DY)
		w.u8(fUint8, uint8(e.Button))
		w.i64(fInt, int64(e.ClickCount))
		w.u8(fUint8, uint8(e.Mods))
	case Scroll:
		w.f64(fFloat64, e.DX)
		w.f64(fFloat64b, e.DY)
	case KeyDown:
		w.u16(fUint16, e.Code)
		w.str(fString, e.Chars)
		w.u8(fUint8, uint8(e.Mods))
	case KeyUp:
		w.u16(fUint16, e.Code)
		w.u8(fUint8, uint8(e.Mods))
	case FlagsChanged:
		w.u8(fUint8, uint8(e.Mods))
	case ClipboardUpdate:
		w.bytes(fBytes, e.Blob)
		w.str(fString, e.MimeTag)
	case ScreenEnter:
		w.u8(fUint8, uint8(e.Edge))
		w.f64(fFloat64, e.RelEntryX)
		w.f64(fFloat64b, e.RelEntryY)
	case ScreenLeave:
		w.u8(fUint8, uint8(e.Edge))
	case ScreenEnterAck:
		w.u8(fUint8, uint8(e.Edge))
	case Heartbeat:
		// no additional fields
	default:
		panic(fmt.Sprintf("codec: unhandled event type %T", ev))
	}
	w.tag(fEnd)
}

// eventDecoder reads the fixed-order fields of one event sub-record.
// It verifies each field's tag matches what this variant's encoder
// wrote, reporting FrameMalformed-worthy errors on mismatch.
type eventDecoder struct{ r *reader }

func (d eventDecoder) expect(want fieldTag) error {
	t, err := d.r.peekTag()
	if err != nil {
		return err
	}
	if t != want {
		return fmt.Errorf("expected field tag %d, got %d", want, t)
	}
	d.r.advanceTag()
	return nil
}

func (d eventDecoder) f64(want fieldTag) (float64, error) {
	if err := d.expect(want); err != nil {
		return 0, err
	}
	return d.r.f64()
}

func (d eventDecoder) u8(want fieldTag) (uint8, error) {
	if err := d.expect(want); err != nil {
		return 0, err
	}
	return d.r.u8()
}

func (d eventDecoder) u16(want fieldTag) (uint16, error) {
	if err := d.expect(want); err != nil {
		return 0, err
	}
	return d.r.u16()
}

func (d eventDecoder) i64(want fieldTag) (int64, error) {
	if err := d.expect(want); err != nil {
		return 0, err
	}
	return d.r.i64()
}

func (d eventDecoder) str(want fieldTag) (string, error) {
	if err := d.expect(want); err != nil {
		return "", err
	}
	return d.r.str()
}

func (d eventDecoder) bytes(want fieldTag) ([]byte, error) {
	if err := d.expect(want); err != nil {
		return nil, err
	}
	return d.r.bytes()
}

func (d eventDecoder) end() error {
	return d.expect(fEnd)
}

// decodeEvent reads one tagged InputEvent sub-record. r.pos must be
// positioned just past the fEventTag byte that selected this call.
func decodeEvent(r *reader) (InputEvent, error) {
	tagByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	if err := (eventDecoder{r}).expect(fTimestamp); err != nil {
		return nil, err
	}
	us, err := r.i64()
	if err != nil {
		return nil, err
	}
	b := base{At: time.UnixMicro(us)}
	d := eventDecoder{r}

	switch EventTag(tagByte) {
	case TagMouseMove:
		dx, err := d.f64(fFloat64)
		if err != nil {
			return nil, err
		}
		dy, err := d.f64(fFloat64b)
		if err != nil {
			return nil, err
		}
		mods, err := d.u8(fUint8)
		if err != nil {
			return nil, err
		}
		return MouseMove{base: b, DX: dx, DY: dy, Mods: Modifiers(mods)}, d.end()

	case TagMouseDown, TagMouseUp:
		btn, clicks, mods, err := decodeClickFields(d)
		if err != nil {
			return nil, err
		}
		if EventTag(tagByte) == TagMouseDown {
			return MouseDown{base: b, Button: btn, ClickCount: clicks, Mods: mods}, d.end()
		}
		return MouseUp{base: b, Button: btn, ClickCount: clicks, Mods: mods}, d.end()

	case TagMouseDrag:
		dx, err := d.f64(fFloat64)
		if err != nil {
			return nil, err
		}
		dy, err := d.f64(fFloat64b)
		if err != nil {
			return nil, err
		}
		btn, clicks, mods, err := decodeClickFields(d)
		if err != nil {
			return nil, err
		}
		return MouseDrag{base: b, DX: dx, DY: dy, Button: btn, ClickCount: clicks, Mods: mods}, d.end()

	case TagScroll:
		dx, err := d.f64(fFloat64)
		if err != nil {
			return nil, err
		}
		dy, err := d.f64(fFloat64b)
		if err != nil {
			return nil, err
		}
		return Scroll{base: b, DX: dx, DY: dy}, d.end()

	case TagKeyDown:
		code, err := d.u16(fUint16)
		if err != nil {
			return nil, err
		}
		chars, err := d.str(fString)
		if err != nil {
			return nil, err
		}
		mods, err := d.u8(fUint8)
		if err != nil {
			return nil, err
		}
		return KeyDown{base: b, Code: code, Chars: chars, Mods: Modifiers(mods)}, d.end()

	case TagKeyUp:
		code, err := d.u16(fUint16)
		if err != nil {
			return nil, err
		}
		mods, err := d.u8(fUint8)
		if err != nil {
			return nil, err
		}
		return KeyUp{base: b, Code: code, Mods: Modifiers(mods)}, d.end()

	case TagFlagsChanged:
		mods, err := d.u8(fUint8)
		if err != nil {
			return nil, err
		}
		return FlagsChanged{base: b, Mods: Modifiers(mods)}, d.end()

	case TagClipboardUpdate:
		blob, err := d.bytes(fBytes)
		if err != nil {
			return nil, err
		}
		mime, err := d.str(fString)
		if err != nil {
			return nil, err
		}
		return ClipboardUpdate{base: b, Blob: blob, MimeTag: mime}, d.end()

	case TagScreenEnter:
		edge, err := d.u8(fUint8)
		if err != nil {
			return nil, err
		}
		rx, err := d.f64(fFloat64)
		if err != nil {
			return nil, err
		}
		ry, err := d.f64(fFloat64b)
		if err != nil {
			return nil, err
		}
		return ScreenEnter{base: b, Edge: Edge(edge), RelEntryX: rx, RelEntryY: ry}, d.end()

	case TagScreenLeave:
		edge, err := d.u8(fUint8)
		if err != nil {
			return nil, err
		}
		return ScreenLeave{base: b, Edge: Edge(edge)}, d.end()

	case TagScreenEnterAck:
		edge, err := d.u8(fUint8)
		if err != nil {
			return nil, err
		}
		return ScreenEnterAck{base: b, Edge: Edge(edge)}, d.end()

	case TagHeartbeat:
		return Heartbeat{base: b}, d.end()

	default:
		return nil, fmt.Errorf("unknown event tag %d", tagByte)
	}
}

func decodeClickFields(d eventDecoder) (btn MouseButton, clicks int, mods Modifiers, err error) {
	b, err := d.u8(fUint8)
	if err != nil {
		return
	}
	btn = MouseButton(b)
	c, err := d.i64(fInt)
	if err != nil {
		return
	}
	clicks = int(c)
	m, err := d.u8(fUint8)
	if err != nil {
		return
	}
	mods = Modifiers(m)
	return
}
