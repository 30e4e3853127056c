// Package peer holds the identity and lifecycle record shared by
// discovery, transport and the controller: PeerId, the human-readable
// name, the resolved network endpoint, and the observable connection
// state. The Controller creates and updates the entries; transport
// connections update the link-quality counters of the same shared
// record, and discovery reports peers through its own Info values.
package peer

import (
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Id is a stable 128-bit peer identifier, persisted locally and carried
// in the mDNS TXT record and handshake.
type Id uuid.UUID

func NewId() Id {
	return Id(uuid.New())
}

func ParseId(s string) (Id, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Id{}, err
	}
	return Id(u), nil
}

func (id Id) String() string {
	return uuid.UUID(id).String()
}

func (id Id) IsZero() bool {
	return id == Id{}
}

// Endpoint is a resolved network address for a peer's transport connection.
type Endpoint = netip.AddrPort

// State is a Peer's lifecycle stage, independent of the host's own
// ControlState (see package control).
type State int

const (
	Discovered State = iota
	Connecting
	Connected
	Controlling
	ControlledBy
	Disconnected
	Error
)

func (s State) String() string {
	switch s {
	case Discovered:
		return "discovered"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Controlling:
		return "controlling"
	case ControlledBy:
		return "controlled-by"
	case Disconnected:
		return "disconnected"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// LinkQuality tracks per-peer counters surfaced to the (out-of-scope) UI.
// The controller's silence/failsafe checks use LastSeen, not these.
type LinkQuality struct {
	PacketsSent     uint64
	PacketsReceived uint64
	SequenceGaps    uint64
	RTTEstimate     time.Duration
}

// Peer is the mutable record for one remote host. Reads should go
// through the accessor methods, which take the internal lock. The
// Controller writes name, screen size, lifecycle state, lastSeen and
// the RTT estimate; Transport's Conn writes the sent/received and
// sequence-gap counters (see transport.Conn.SetPeer).
type Peer struct {
	mu sync.RWMutex

	id       Id
	name     string
	endpoint Endpoint

	screenW, screenH int

	state    State
	lastSeen time.Time

	link LinkQuality
}

func New(id Id, name string, endpoint Endpoint) *Peer {
	return &Peer{
		id:       id,
		name:     name,
		endpoint: endpoint,
		state:    Discovered,
		lastSeen: time.Now(),
	}
}

func (p *Peer) Id() Id { return p.id }

func (p *Peer) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

func (p *Peer) SetName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = name
}

func (p *Peer) Endpoint() Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.endpoint
}

func (p *Peer) SetEndpoint(e Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoint = e
}

func (p *Peer) ScreenSize() (w, h int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.screenW, p.screenH
}

func (p *Peer) SetScreenSize(w, h int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenW, p.screenH = w, h
}

func (p *Peer) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Peer) SetState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

func (p *Peer) LastSeen() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSeen
}

func (p *Peer) Touch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeen = time.Now()
}

func (p *Peer) SilentFor(d time.Duration) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.lastSeen) > d
}

func (p *Peer) Link() LinkQuality {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.link
}

func (p *Peer) RecordSent() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.link.PacketsSent++
}

func (p *Peer) RecordReceived(gap bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.link.PacketsReceived++
	if gap {
		p.link.SequenceGaps++
	}
}

func (p *Peer) RecordRTT(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.link.RTTEstimate = d
}

// Store is the concurrency-safe PeerId -> Peer map shared by Discovery,
// Transport and the Controller. Its lifetime is the longest of its
// holders'; entries are removed only by the Controller, on mDNS
// withdrawal of a peer with no live or pending connection. A transport
// close does not remove the entry: the peer stays in the Store in the
// Disconnected state.
type Store struct {
	mu    sync.RWMutex
	peers map[Id]*Peer
}

func NewStore() *Store {
	return &Store{peers: make(map[Id]*Peer)}
}

func (s *Store) Get(id Id) (*Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[id]
	return p, ok
}

func (s *Store) GetByName(name string) (*Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.peers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

func (s *Store) Put(p *Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[p.id] = p
}

func (s *Store) Delete(id Id) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, id)
}

func (s *Store) Connected() []*Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		switch p.State() {
		case Connected, Controlling, ControlledBy:
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) All() []*Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}
