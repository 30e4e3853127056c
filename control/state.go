// Package control defines ControlState: the tagged, mutually exclusive
// variants a host can occupy. Keeping this as its own small package
// (rather than flattening to a struct with nullable fields, the way the
// teacher's source flattens InputEvent) makes illegal states
// unrepresentable — there is no way to construct a Controlling value
// without a peer id, exit edge and exit position all present.
package control

import (
	"github.com/alexandertomana/MouseShare/arrangement"
	"github.com/alexandertomana/MouseShare/peer"
)

type Kind int

const (
	Local Kind = iota
	Controlling
	Controlled
)

func (k Kind) String() string {
	switch k {
	case Local:
		return "local"
	case Controlling:
		return "controlling"
	case Controlled:
		return "controlled"
	default:
		return "unknown"
	}
}

// State is the sum type from spec §3. Exactly one of the three
// constructors below produces a valid State; the zero value is Local.
type State struct {
	kind Kind

	// valid when kind == Controlling
	controllingPeer peer.Id
	exitEdge        arrangement.Edge
	exitPos         float64 // normalized position along the exit edge, [0,1]

	// valid when kind == Controlled
	controlledPeer peer.Id
	entryEdge      arrangement.Edge
	hasMovedAway   bool
}

func NewLocal() State {
	return State{kind: Local}
}

func NewControlling(p peer.Id, edge arrangement.Edge, pos float64) State {
	return State{kind: Controlling, controllingPeer: p, exitEdge: edge, exitPos: pos}
}

func NewControlled(p peer.Id, edge arrangement.Edge) State {
	return State{kind: Controlled, controlledPeer: p, entryEdge: edge, hasMovedAway: false}
}

func (s State) Kind() Kind { return s.kind }

func (s State) IsLocal() bool       { return s.kind == Local }
func (s State) IsControlling() bool { return s.kind == Controlling }
func (s State) IsControlled() bool  { return s.kind == Controlled }

// ControllingPeer returns the counterparty and exit geometry; ok is
// false unless Kind() == Controlling.
func (s State) ControllingPeer() (id peer.Id, edge arrangement.Edge, pos float64, ok bool) {
	if s.kind != Controlling {
		return peer.Id{}, 0, 0, false
	}
	return s.controllingPeer, s.exitEdge, s.exitPos, true
}

// ControlledPeer returns the counterparty and entry geometry; ok is
// false unless Kind() == Controlled.
func (s State) ControlledPeer() (id peer.Id, edge arrangement.Edge, hasMovedAway bool, ok bool) {
	if s.kind != Controlled {
		return peer.Id{}, 0, false, false
	}
	return s.controlledPeer, s.entryEdge, s.hasMovedAway, true
}

// WithMovedAway returns a copy of a Controlled state with hasMovedAway
// set. Invalid (returns s unchanged) unless Kind() == Controlled.
func (s State) WithMovedAway(moved bool) State {
	if s.kind != Controlled {
		return s
	}
	s.hasMovedAway = moved
	return s
}

// ActivePeer returns the single counterparty peer id for non-Local
// states, satisfying the mutual-exclusion invariant: at most one peer
// is ever the active counterparty.
func (s State) ActivePeer() (peer.Id, bool) {
	switch s.kind {
	case Controlling:
		return s.controllingPeer, true
	case Controlled:
		return s.controlledPeer, true
	default:
		return peer.Id{}, false
	}
}
