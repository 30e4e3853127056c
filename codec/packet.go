package codec

import "fmt"

const ProtocolVersion = 1

// InputPacket is the unit exchanged once a connection is established:
// an ordered batch of events under one monotonically non-decreasing
// sequence number.
type InputPacket struct {
	Version        uint8
	SequenceNumber uint32
	Events         []InputEvent
}

// HandshakeRequest is sent by the connection initiator immediately
// after the TCP connection is established.
type HandshakeRequest struct {
	Version           uint8
	PeerID            string
	PeerName          string
	ScreenW, ScreenH  uint16
	EncryptionEnabled bool
	Timestamp         int64
}

// HandshakeResponse is sent by the acceptor in reply.
type HandshakeResponse struct {
	Accepted     bool
	PeerID       string
	PeerName     string
	ScreenW      uint16
	ScreenH      uint16
	ErrorMessage string
}

// EncodePacket serializes an InputPacket into the tagged wire format
// (before framing/sealing).
func EncodePacket(p InputPacket) []byte {
	w := &writer{}
	w.buf = append(w.buf, byte(msgInputPacket))
	w.u8(fVersion, p.Version)
	w.u32(fSequenceNumber, p.SequenceNumber)
	w.u32(fEventCount, uint32(len(p.Events)))
	for _, ev := range p.Events {
		encodeEvent(w, ev)
	}
	w.tag(fEnd)
	return w.buf
}

// DecodePacket parses bytes produced by EncodePacket (after
// decryption, if any). Malformed input returns an error; the caller
// drops the frame and keeps the connection per spec §4.1.
func DecodePacket(b []byte) (InputPacket, error) {
	r := &reader{buf: b}
	kind, err := r.u8()
	if err != nil {
		return InputPacket{}, err
	}
	if msgKind(kind) != msgInputPacket {
		return InputPacket{}, fmt.Errorf("unexpected message kind %d for InputPacket", kind)
	}

	var p InputPacket
	var eventCount uint32
	for {
		t, err := r.peekTag()
		if err != nil {
			return InputPacket{}, err
		}
		r.advanceTag()
		switch t {
		case fEnd:
			if uint32(len(p.Events)) != eventCount {
				return InputPacket{}, fmt.Errorf("event count mismatch: declared %d, got %d", eventCount, len(p.Events))
			}
			return p, nil
		case fVersion:
			v, err := r.u8()
			if err != nil {
				return InputPacket{}, err
			}
			p.Version = v
		case fSequenceNumber:
			v, err := r.u32()
			if err != nil {
				return InputPacket{}, err
			}
			p.SequenceNumber = v
		case fEventCount:
			v, err := r.u32()
			if err != nil {
				return InputPacket{}, err
			}
			eventCount = v
		case fEventTag:
			ev, err := decodeEvent(r)
			if err != nil {
				return InputPacket{}, err
			}
			p.Events = append(p.Events, ev)
		default:
			if err := r.skipUnknown(t); err != nil {
				return InputPacket{}, err
			}
		}
	}
}

func EncodeHandshakeRequest(h HandshakeRequest) []byte {
	w := &writer{}
	w.buf = append(w.buf, byte(msgHandshakeRequest))
	w.u8(fVersion, h.Version)
	w.str(fPeerID, h.PeerID)
	w.str(fPeerName, h.PeerName)
	w.u16(fScreenW, h.ScreenW)
	w.u16(fScreenH, h.ScreenH)
	w.bool(fEncryptionEnabled, h.EncryptionEnabled)
	w.i64(fInt, h.Timestamp)
	w.tag(fEnd)
	return w.buf
}

func DecodeHandshakeRequest(b []byte) (HandshakeRequest, error) {
	r := &reader{buf: b}
	kind, err := r.u8()
	if err != nil {
		return HandshakeRequest{}, err
	}
	if msgKind(kind) != msgHandshakeRequest {
		return HandshakeRequest{}, fmt.Errorf("unexpected message kind %d for HandshakeRequest", kind)
	}
	var h HandshakeRequest
	for {
		t, err := r.peekTag()
		if err != nil {
			return HandshakeRequest{}, err
		}
		r.advanceTag()
		switch t {
		case fEnd:
			return h, nil
		case fVersion:
			h.Version, err = r.u8()
		case fPeerID:
			h.PeerID, err = r.str()
		case fPeerName:
			h.PeerName, err = r.str()
		case fScreenW:
			h.ScreenW, err = r.u16()
		case fScreenH:
			h.ScreenH, err = r.u16()
		case fEncryptionEnabled:
			h.EncryptionEnabled, err = r.bool()
		case fInt:
			h.Timestamp, err = r.i64()
		default:
			err = r.skipUnknown(t)
		}
		if err != nil {
			return HandshakeRequest{}, err
		}
	}
}

func EncodeHandshakeResponse(h HandshakeResponse) []byte {
	w := &writer{}
	w.buf = append(w.buf, byte(msgHandshakeResponse))
	w.bool(fAccepted, h.Accepted)
	w.str(fPeerID, h.PeerID)
	w.str(fPeerName, h.PeerName)
	w.u16(fScreenW, h.ScreenW)
	w.u16(fScreenH, h.ScreenH)
	if h.ErrorMessage != "" {
		w.str(fErrorMessage, h.ErrorMessage)
	}
	w.tag(fEnd)
	return w.buf
}

func DecodeHandshakeResponse(b []byte) (HandshakeResponse, error) {
	r := &reader{buf: b}
	kind, err := r.u8()
	if err != nil {
		return HandshakeResponse{}, err
	}
	if msgKind(kind) != msgHandshakeResponse {
		return HandshakeResponse{}, fmt.Errorf("unexpected message kind %d for HandshakeResponse", kind)
	}
	var h HandshakeResponse
	for {
		t, err := r.peekTag()
		if err != nil {
			return HandshakeResponse{}, err
		}
		r.advanceTag()
		switch t {
		case fEnd:
			return h, nil
		case fAccepted:
			h.Accepted, err = r.bool()
		case fPeerID:
			h.PeerID, err = r.str()
		case fPeerName:
			h.PeerName, err = r.str()
		case fScreenW:
			h.ScreenW, err = r.u16()
		case fScreenH:
			h.ScreenH, err = r.u16()
		case fErrorMessage:
			h.ErrorMessage, err = r.str()
		default:
			err = r.skipUnknown(t)
		}
		if err != nil {
			return HandshakeResponse{}, err
		}
	}
}

// PeekKind reports which message a raw (decrypted) body holds, so the
// transport's receive loop knows whether to parse a handshake message
// or an InputPacket.
func PeekKind(b []byte) (isHandshakeRequest, isHandshakeResponse, isInputPacket bool, err error) {
	if len(b) == 0 {
		return false, false, false, fmt.Errorf("empty message")
	}
	switch msgKind(b[0]) {
	case msgInputPacket:
		return false, false, true, nil
	case msgHandshakeRequest:
		return true, false, false, nil
	case msgHandshakeResponse:
		return false, true, false, nil
	default:
		return false, false, false, fmt.Errorf("unknown message kind %d", b[0])
	}
}
