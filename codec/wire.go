package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Wire encoding: a self-describing tagged-field format, generalizing
// the teacher's manual binary.Write/binary.Read struct marshaling
// (noise-protocol.go) to variable, optional fields. Every message
// starts with a one-byte message kind, then a sequence of
// (fieldTag byte, value) pairs terminated by fEnd. Readers that
// don't recognize a fieldTag skip it by its known width, so adding a
// field to one peer's build doesn't break an older peer's parser —
// the format is forward-compatible the way the spec requires
// ("optional fields omittable").

type msgKind uint8

const (
	msgInputPacket msgKind = iota
	msgHandshakeRequest
	msgHandshakeResponse
)

type fieldTag uint8

const (
	fEnd fieldTag = iota
	fVersion
	fSequenceNumber
	fEventCount
	fEventTag
	fTimestamp
	fFloat64 // generic float64 payload, order-dependent within an event
	fFloat64b
	fUint8
	fUint16
	fInt
	fString
	fBytes
	fPeerID
	fPeerName
	fScreenW
	fScreenH
	fEncryptionEnabled
	fAccepted
	fErrorMessage
)

type writer struct {
	buf []byte
}

func (w *writer) tag(t fieldTag) { w.buf = append(w.buf, byte(t)) }

func (w *writer) u8(t fieldTag, v uint8) {
	w.tag(t)
	w.buf = append(w.buf, v)
}

func (w *writer) u16(t fieldTag, v uint16) {
	w.tag(t)
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) u32(t fieldTag, v uint32) {
	w.tag(t)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) i64(t fieldTag, v int64) {
	w.tag(t)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) f64(t fieldTag, v float64) {
	w.tag(t)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) bytes(t fieldTag, v []byte) {
	w.tag(t)
	var lb [4]byte
	binary.BigEndian.PutUint32(lb[:], uint32(len(v)))
	w.buf = append(w.buf, lb[:]...)
	w.buf = append(w.buf, v...)
}

func (w *writer) str(t fieldTag, v string) {
	w.bytes(t, []byte(v))
}

func (w *writer) bool(t fieldTag, v bool) {
	var b uint8
	if v {
		b = 1
	}
	w.u8(t, b)
}

func (w *writer) timestamp(t time.Time) {
	w.i64(fTimestamp, t.UnixMicro())
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) done() bool { return r.pos >= len(r.buf) }

func (r *reader) peekTag() (fieldTag, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("unexpected end of message")
	}
	return fieldTag(r.buf[r.pos]), nil
}

func (r *reader) advanceTag() { r.pos++ }

func (r *reader) u8() (uint8, error) {
	if r.pos+1 > len(r.buf) {
		return 0, fmt.Errorf("truncated u8")
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if r.pos+2 > len(r.buf) {
		return 0, fmt.Errorf("truncated u16")
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, fmt.Errorf("truncated u32")
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) i64() (int64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, fmt.Errorf("truncated i64")
	}
	v := int64(binary.BigEndian.Uint64(r.buf[r.pos:]))
	r.pos += 8
	return v, nil
}

func (r *reader) f64() (float64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, fmt.Errorf("truncated f64")
	}
	v := math.Float64frombits(binary.BigEndian.Uint64(r.buf[r.pos:]))
	r.pos += 8
	return v, nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.buf) {
		return nil, fmt.Errorf("truncated bytes field")
	}
	v := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return v, nil
}

func (r *reader) str() (string, error) {
	b, err := r.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) bool() (bool, error) {
	v, err := r.u8()
	return v != 0, err
}

func (r *reader) timestamp() (time.Time, error) {
	us, err := r.i64()
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(us), nil
}

// skipUnknown advances past a field of a tag this reader version does
// not recognize, keyed on the field's declared fixed width where
// applicable, or its length prefix for variable fields.
func (r *reader) skipUnknown(t fieldTag) error {
	switch t {
	case fUint8, fAccepted, fEncryptionEnabled:
		_, err := r.u8()
		return err
	case fUint16, fScreenW, fScreenH:
		_, err := r.u16()
		return err
	case fSequenceNumber, fEventCount:
		_, err := r.u32()
		return err
	case fTimestamp, fInt:
		_, err := r.i64()
		return err
	case fFloat64, fFloat64b:
		_, err := r.f64()
		return err
	case fString, fBytes, fPeerName, fErrorMessage, fPeerID:
		_, err := r.bytes()
		return err
	default:
		return fmt.Errorf("unknown field tag %d", t)
	}
}
