package codec

// Codec ties framing, tagged encoding and optional AEAD sealing
// together for one connection. aead is nil when encryption is
// disabled; all peers in a session must agree (spec §4.1).
type Codec struct {
	aead    *AEAD
	maxLen  uint32
}

func New(aead *AEAD) *Codec {
	return &Codec{aead: aead, maxLen: DefaultMaxFrameLength}
}

func (c *Codec) Encrypted() bool { return c.aead != nil }

// EncodeFrame serializes a tagged body (already produced by
// EncodePacket/EncodeHandshake{Request,Response}), seals it if
// encryption is enabled, and applies the length-prefix frame.
func (c *Codec) EncodeFrame(body []byte) ([]byte, error) {
	if c.aead != nil {
		sealed, err := c.aead.Seal(body)
		if err != nil {
			return nil, err
		}
		body = sealed
	}
	return Frame(body), nil
}

// DecodeFrameBody reverses sealing for a frame body already extracted
// by ReadFrame, returning the plaintext tagged body ready for
// DecodePacket/DecodeHandshake{Request,Response}.
func (c *Codec) DecodeFrameBody(body []byte) ([]byte, error) {
	if c.aead != nil {
		return c.aead.Open(body)
	}
	return body, nil
}

func (c *Codec) MaxFrameLength() uint32 { return c.maxLen }
