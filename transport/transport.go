// Package transport accepts inbound TCP connections and dials outbound
// ones, drives the handshake, and owns each peer's framed,
// sequence-numbered send/receive streams (spec §4.3).
package transport

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/alexandertomana/MouseShare/codec"
	"github.com/alexandertomana/MouseShare/errkind"
	"github.com/alexandertomana/MouseShare/peer"
	"github.com/alexandertomana/MouseShare/ratelimit"
)

// HandshakeTimeout bounds how long an initiator waits for a
// HandshakeResponse before giving up (spec §7: HandshakeTimeout).
const HandshakeTimeout = 5 * time.Second

// Identity is this host's own handshake fields.
type Identity struct {
	PeerID            peer.Id
	PeerName          string
	ScreenW, ScreenH  int
	EncryptionEnabled bool
	Password          string
}

// Callbacks is what the Controller consumes from Transport.
type Callbacks struct {
	// OnConnected fires once a handshake completes successfully, in
	// either direction.
	OnConnected func(remote peer.Id, name string, screenW, screenH int, conn *Conn)
	// OnDisconnected fires when a connection closes for any reason;
	// err is nil for a clean shutdown.
	OnDisconnected func(remote peer.Id, err error)
	// OnEvents delivers one received InputPacket's events, in order.
	OnEvents func(remote peer.Id, seq uint32, events []codec.InputEvent)
}

// Transport owns the shared listener and the set of live connections.
type Transport struct {
	log      zerolog.Logger
	identity Identity
	cb       Callbacks
	limiter  *ratelimit.HandshakeLimiter

	mu        sync.Mutex
	listener  net.Listener
	conns     map[peer.Id]*Conn
}

func New(log zerolog.Logger, identity Identity, cb Callbacks) *Transport {
	return &Transport{
		log:      log.With().Str("component", "transport").Logger(),
		identity: identity,
		cb:       cb,
		limiter:  ratelimit.NewHandshakeLimiter(),
		conns:    make(map[peer.Id]*Conn),
	}
}

// Listen binds the shared port and accepts inbound connections until
// ctx is canceled. Bind failure is reported via errkind.BindFailed.
func (t *Transport) Listen(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return errkind.Wrap(errkind.BindFailed, "listen on transport port", err)
	}

	t.mu.Lock()
	t.listener = ln
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				t.log.Error().Err(err).Msg("accept failed")
				return
			}
		}
		go t.acceptInbound(conn)
	}
}

func (t *Transport) acceptInbound(raw net.Conn) {
	addr, _ := netip.ParseAddrPort(raw.RemoteAddr().String())
	if addr.IsValid() && !t.limiter.Allow(addr.Addr()) {
		t.log.Warn().Str("remote", raw.RemoteAddr().String()).Msg("handshake rate limited")
		raw.Close()
		return
	}

	req, err := readHandshakeRequest(raw)
	if err != nil {
		t.log.Debug().Err(err).Msg("inbound handshake request unreadable")
		raw.Close()
		return
	}

	remoteID, err := peer.ParseId(req.PeerID)
	if err != nil {
		raw.Close()
		return
	}

	if req.EncryptionEnabled != t.identity.EncryptionEnabled {
		_ = writeHandshakeResponse(raw, codec.HandshakeResponse{
			Accepted:     false,
			PeerID:       t.identity.PeerID.String(),
			PeerName:     t.identity.PeerName,
			ErrorMessage: "encryption-mismatch",
		})
		raw.Close()
		return
	}

	cd, err := buildCodec(t.identity.EncryptionEnabled, t.identity.Password)
	if err != nil {
		raw.Close()
		return
	}

	if err := writeHandshakeResponse(raw, codec.HandshakeResponse{
		Accepted: true,
		PeerID:   t.identity.PeerID.String(),
		PeerName: t.identity.PeerName,
		ScreenW:  uint16(t.identity.ScreenW),
		ScreenH:  uint16(t.identity.ScreenH),
	}); err != nil {
		raw.Close()
		return
	}

	conn := newConn(raw, cd, remoteID, t.log)
	t.registerConn(remoteID, conn)
	if t.cb.OnConnected != nil {
		t.cb.OnConnected(remoteID, req.PeerName, int(req.ScreenW), int(req.ScreenH), conn)
	}
	conn.run(t.cb)
}

// Dial initiates an outbound connection to a peer at addr, sending the
// HandshakeRequest and awaiting acceptance.
func (t *Transport) Dial(ctx context.Context, remoteID peer.Id, addr string) error {
	dialer := net.Dialer{}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errkind.Wrap(errkind.SendFailed, "dial peer", err)
	}

	raw.SetDeadline(time.Now().Add(HandshakeTimeout))

	req := codec.HandshakeRequest{
		Version:           codec.ProtocolVersion,
		PeerID:            t.identity.PeerID.String(),
		PeerName:          t.identity.PeerName,
		ScreenW:           uint16(t.identity.ScreenW),
		ScreenH:           uint16(t.identity.ScreenH),
		EncryptionEnabled: t.identity.EncryptionEnabled,
		Timestamp:         time.Now().UnixMicro(),
	}
	if err := writeHandshakeRequest(raw, req); err != nil {
		raw.Close()
		return errkind.Wrap(errkind.SendFailed, "write handshake request", err)
	}

	resp, err := readHandshakeResponse(raw)
	if err != nil {
		raw.Close()
		return errkind.Wrap(errkind.HandshakeTimeout, "read handshake response", err)
	}
	if !resp.Accepted {
		raw.Close()
		return errkind.New(errkind.HandshakeRejected, resp.ErrorMessage)
	}

	raw.SetDeadline(time.Time{})

	cd, err := buildCodec(t.identity.EncryptionEnabled, t.identity.Password)
	if err != nil {
		raw.Close()
		return err
	}

	conn := newConn(raw, cd, remoteID, t.log)
	t.registerConn(remoteID, conn)
	if t.cb.OnConnected != nil {
		t.cb.OnConnected(remoteID, resp.PeerName, int(resp.ScreenW), int(resp.ScreenH), conn)
	}
	go conn.run(t.cb)
	return nil
}

func (t *Transport) registerConn(id peer.Id, c *Conn) {
	t.mu.Lock()
	if old, ok := t.conns[id]; ok {
		old.Close()
	}
	t.conns[id] = c
	t.mu.Unlock()
}

// Send enqueues a packet for delivery to remote; it is dropped if no
// connection is live. Never auto-reconnects (spec §4.3).
func (t *Transport) Send(remote peer.Id, events []codec.InputEvent) error {
	t.mu.Lock()
	c, ok := t.conns[remote]
	t.mu.Unlock()
	if !ok {
		return errkind.New(errkind.SendFailed, "no connection to peer")
	}
	return c.Send(events)
}

// Disconnect closes and forgets the connection to remote, if any.
func (t *Transport) Disconnect(remote peer.Id) {
	t.mu.Lock()
	c, ok := t.conns[remote]
	delete(t.conns, remote)
	t.mu.Unlock()
	if ok {
		c.Close()
	}
}

func (t *Transport) Close() {
	t.mu.Lock()
	if t.listener != nil {
		t.listener.Close()
	}
	conns := make([]*Conn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.conns = make(map[peer.Id]*Conn)
	t.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	t.limiter.Close()
}

func buildCodec(encryptionEnabled bool, password string) (*codec.Codec, error) {
	if !encryptionEnabled {
		return codec.New(nil), nil
	}
	key, err := codec.DeriveKey(password)
	if err != nil {
		return nil, err
	}
	aead, err := codec.NewAEAD(key)
	if err != nil {
		return nil, err
	}
	return codec.New(aead), nil
}
