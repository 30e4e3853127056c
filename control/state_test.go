package control

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alexandertomana/MouseShare/arrangement"
	"github.com/alexandertomana/MouseShare/peer"
)

func TestZeroValueIsLocal(t *testing.T) {
	var s State
	assert.True(t, s.IsLocal())
	_, ok := s.ActivePeer()
	assert.False(t, ok)
}

func TestControllingCarriesExitGeometry(t *testing.T) {
	id := peer.NewId()
	s := NewControlling(id, arrangement.Left, 0.25)

	assert.True(t, s.IsControlling())
	assert.False(t, s.IsControlled())
	gotID, edge, pos, ok := s.ControllingPeer()
	assert.True(t, ok)
	assert.Equal(t, id, gotID)
	assert.Equal(t, arrangement.Left, edge)
	assert.Equal(t, 0.25, pos)

	active, ok := s.ActivePeer()
	assert.True(t, ok)
	assert.Equal(t, id, active)
}

func TestControlledPeerRejectedForWrongKind(t *testing.T) {
	s := NewLocal()
	_, _, _, ok := s.ControlledPeer()
	assert.False(t, ok)
	_, _, _, ok = s.ControllingPeer()
	assert.False(t, ok)
}

func TestWithMovedAwayOnlyAffectsControlled(t *testing.T) {
	id := peer.NewId()
	controlled := NewControlled(id, arrangement.Right)
	_, _, moved, ok := controlled.ControlledPeer()
	assert.True(t, ok)
	assert.False(t, moved)

	updated := controlled.WithMovedAway(true)
	_, _, moved, ok = updated.ControlledPeer()
	assert.True(t, ok)
	assert.True(t, moved)

	// Local state: WithMovedAway is a harmless no-op, not a panic.
	local := NewLocal()
	assert.Equal(t, local, local.WithMovedAway(true))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "local", Local.String())
	assert.Equal(t, "controlling", Controlling.String())
	assert.Equal(t, "controlled", Controlled.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
