package transport

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/alexandertomana/MouseShare/codec"
	"github.com/alexandertomana/MouseShare/errkind"
	"github.com/alexandertomana/MouseShare/peer"
)

const sendQueueSize = 256

// Conn is one peer's framed, sequenced transport stream. The send
// side is a buffered channel drained by a writer goroutine (batching
// lives one layer up in the Controller; Conn just guarantees ordered,
// sequence-numbered delivery of whatever it's handed); the receive
// side is a single goroutine that parses frames in arrival order and
// hands decoded events to the Controller via callback — the "per-peer
// receive stream is sequential" ordering guarantee from spec §5.
type Conn struct {
	raw    net.Conn
	codec  *codec.Codec
	remote peer.Id
	log    zerolog.Logger

	sendSeq atomic.Uint32
	rcvSeq  atomic.Uint32 // last received sequence number, 0 before first packet

	peerRecord atomic.Pointer[peer.Peer]

	sendQueue chan []codec.InputEvent
	closeOnce sync.Once
	closed    chan struct{}
}

// SetPeer attaches the shared peer record this Conn should feed its
// observed send/receive counts and sequence gaps into. Called by the
// Controller's OnConnected handler once it has created or resolved the
// peer.Peer for this remote, before the read/write loops can observe
// any traffic.
func (c *Conn) SetPeer(p *peer.Peer) {
	c.peerRecord.Store(p)
}

func newConn(raw net.Conn, cd *codec.Codec, remote peer.Id, log zerolog.Logger) *Conn {
	return &Conn{
		raw:       raw,
		codec:     cd,
		remote:    remote,
		log:       log.With().Str("peer", remote.String()).Logger(),
		sendQueue: make(chan []codec.InputEvent, sendQueueSize),
		closed:    make(chan struct{}),
	}
}

// Send enqueues one batch of events to be framed as a single
// InputPacket with the next sequence number. Never blocks forever: if
// the queue is full the batch is dropped, matching the spec's
// allowance for coalescing/backpressure rather than unbounded memory
// growth.
func (c *Conn) Send(events []codec.InputEvent) error {
	select {
	case c.sendQueue <- events:
		return nil
	case <-c.closed:
		return errkind.New(errkind.SendFailed, "connection closed")
	default:
		return errkind.New(errkind.SendFailed, "send queue full, batch dropped")
	}
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.raw.Close()
	})
}

// run drives both the write loop (draining sendQueue) and the read
// loop (parsing inbound frames) until the connection closes, then
// reports disconnection once via cb.OnDisconnected.
func (c *Conn) run(cb Callbacks) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()

	err := c.readLoop(cb)
	c.Close()
	wg.Wait()

	if cb.OnDisconnected != nil {
		cb.OnDisconnected(c.remote, err)
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case events := <-c.sendQueue:
			seq := c.sendSeq.Add(1)
			body := codec.EncodePacket(codec.InputPacket{
				Version:        codec.ProtocolVersion,
				SequenceNumber: seq,
				Events:         events,
			})
			frame, err := c.codec.EncodeFrame(body)
			if err != nil {
				c.log.Error().Err(err).Msg("failed to seal outbound packet")
				continue
			}
			if _, err := c.raw.Write(frame); err != nil {
				c.log.Debug().Err(err).Msg("write failed, closing connection")
				c.Close()
				return
			}
			if pr := c.peerRecord.Load(); pr != nil {
				pr.RecordSent()
			}
		case <-c.closed:
			return
		}
	}
}

// readLoop implements the receive pipeline from spec §4.3: decrypt if
// enabled, parse, compare sequence numbers (log a gap but still
// deliver), then update the expected counter. A decrypt or parse
// failure drops the frame without advancing the counter; a length
// violation or I/O error ends the connection.
func (c *Conn) readLoop(cb Callbacks) error {
	for {
		body, err := codec.ReadFrame(c.raw, c.codec.MaxFrameLength())
		if err != nil {
			if errkind.Of(err, errkind.FrameMalformed) {
				return err
			}
			if err == io.EOF {
				return nil
			}
			return errkind.Wrap(errkind.ReceiveClosed, "read frame", err)
		}

		plain, err := c.codec.DecodeFrameBody(body)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping frame: decrypt failed")
			continue
		}

		isReq, isResp, isPacket, err := codec.PeekKind(plain)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping frame: unrecognized message kind")
			continue
		}
		if isReq || isResp {
			// A handshake message after the session is established is
			// malformed traffic for this connection; drop it.
			c.log.Warn().Msg("dropping unexpected post-handshake handshake message")
			continue
		}
		if !isPacket {
			continue
		}

		packet, err := codec.DecodePacket(plain)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}

		expected := c.rcvSeq.Load() + 1
		gap := packet.SequenceNumber != expected && c.rcvSeq.Load() != 0
		if gap {
			c.log.Warn().
				Err(errkind.New(errkind.SequenceGap, "received out-of-order InputPacket")).
				Uint32("expected", expected).
				Uint32("got", packet.SequenceNumber).
				Msg("sequence gap")
		}
		c.rcvSeq.Store(packet.SequenceNumber)
		if pr := c.peerRecord.Load(); pr != nil {
			pr.RecordReceived(gap)
		}

		if cb.OnEvents != nil {
			cb.OnEvents(c.remote, packet.SequenceNumber, packet.Events)
		}
	}
}

func readHandshakeRequest(raw net.Conn) (codec.HandshakeRequest, error) {
	raw.SetReadDeadline(time.Now().Add(HandshakeTimeout))
	defer raw.SetReadDeadline(time.Time{})

	body, err := codec.ReadFrame(raw, codec.DefaultMaxFrameLength)
	if err != nil {
		return codec.HandshakeRequest{}, err
	}
	return codec.DecodeHandshakeRequest(body)
}

func writeHandshakeRequest(raw net.Conn, req codec.HandshakeRequest) error {
	_, err := raw.Write(codec.Frame(codec.EncodeHandshakeRequest(req)))
	return err
}

func readHandshakeResponse(raw net.Conn) (codec.HandshakeResponse, error) {
	body, err := codec.ReadFrame(raw, codec.DefaultMaxFrameLength)
	if err != nil {
		return codec.HandshakeResponse{}, err
	}
	return codec.DecodeHandshakeResponse(body)
}

func writeHandshakeResponse(raw net.Conn, resp codec.HandshakeResponse) error {
	_, err := raw.Write(codec.Frame(codec.EncodeHandshakeResponse(resp)))
	return err
}
