package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePacket() InputPacket {
	return InputPacket{
		Version:        ProtocolVersion,
		SequenceNumber: 42,
		Events: []InputEvent{
			NewMouseMove(1.5, -2.25, ModShift),
			NewMouseDown(ButtonLeft, 1, 0),
			NewKeyDown(53, "", ModControl|ModAlt),
			NewScreenEnter(EdgeRight, 1.0, 0.5),
			NewHeartbeat(),
			NewClipboardUpdate([]byte("hello"), "text/plain"),
		},
	}
}

// Packet round-trip without framing: DecodePacket(EncodePacket(P)) == P
// (the unsealed body half of property 3).
func TestPacketRoundTripPlain(t *testing.T) {
	p := samplePacket()
	body := EncodePacket(p)
	got, err := DecodePacket(body)
	require.NoError(t, err)
	require.Equal(t, len(p.Events), len(got.Events))
	assert.Equal(t, p.Version, got.Version)
	assert.Equal(t, p.SequenceNumber, got.SequenceNumber)

	mm, ok := got.Events[0].(MouseMove)
	require.True(t, ok)
	assert.Equal(t, 1.5, mm.DX)
	assert.Equal(t, -2.25, mm.DY)
	assert.Equal(t, ModShift, mm.Mods)

	se, ok := got.Events[3].(ScreenEnter)
	require.True(t, ok)
	assert.Equal(t, EdgeRight, se.Edge)
	assert.InDelta(t, 1.0, se.RelEntryX, 1e-9)
	assert.InDelta(t, 0.5, se.RelEntryY, 1e-9)

	cu, ok := got.Events[5].(ClipboardUpdate)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), cu.Blob)
	assert.Equal(t, "text/plain", cu.MimeTag)
}

func TestPacketRoundTripEncrypted(t *testing.T) {
	key, err := DeriveKey("correct horse battery staple")
	require.NoError(t, err)
	aead, err := NewAEAD(key)
	require.NoError(t, err)
	c := New(aead)

	p := samplePacket()
	frame, err := c.EncodeFrame(EncodePacket(p))
	require.NoError(t, err)

	// Strip the length prefix the same way a reader would via ReadFrame.
	body := frame[lengthPrefixSize:]
	plain, err := c.DecodeFrameBody(body)
	require.NoError(t, err)
	got, err := DecodePacket(plain)
	require.NoError(t, err)
	assert.Equal(t, p.SequenceNumber, got.SequenceNumber)
}

func TestMismatchedKeyFailsDecrypt(t *testing.T) {
	keyA, _ := DeriveKey("password-a")
	keyB, _ := DeriveKey("password-b")
	aeadA, err := NewAEAD(keyA)
	require.NoError(t, err)
	aeadB, err := NewAEAD(keyB)
	require.NoError(t, err)

	sealed, err := aeadA.Seal(EncodePacket(samplePacket()))
	require.NoError(t, err)

	_, err = aeadB.Open(sealed)
	require.Error(t, err)
}

func TestFrameLengthBoundRejected(t *testing.T) {
	body := make([]byte, 16)
	frame := Frame(body)
	_, err := ReadFrame(bytes.NewReader(frame), 8)
	require.Error(t, err)
}

func TestHandshakeRoundTrip(t *testing.T) {
	req := HandshakeRequest{
		Version:           ProtocolVersion,
		PeerID:            "11111111-1111-1111-1111-111111111111",
		PeerName:          "desk-a",
		ScreenW:           1920,
		ScreenH:           1080,
		EncryptionEnabled: true,
		Timestamp:         1234,
	}
	got, err := DecodeHandshakeRequest(EncodeHandshakeRequest(req))
	require.NoError(t, err)
	assert.Equal(t, req, got)

	resp := HandshakeResponse{
		Accepted:     false,
		PeerID:       req.PeerID,
		PeerName:     "desk-b",
		ScreenW:      2560,
		ScreenH:      1440,
		ErrorMessage: "encryption-mismatch",
	}
	gotResp, err := DecodeHandshakeResponse(EncodeHandshakeResponse(resp))
	require.NoError(t, err)
	assert.Equal(t, resp, gotResp)
}
