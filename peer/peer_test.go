package peer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdRoundTripsThroughString(t *testing.T) {
	id := NewId()
	parsed, err := ParseId(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.False(t, id.IsZero())
	assert.True(t, Id{}.IsZero())
}

func TestNewPeerStartsDiscovered(t *testing.T) {
	p := New(NewId(), "B", Endpoint{})
	assert.Equal(t, Discovered, p.State())
	assert.Equal(t, "B", p.Name())
}

func TestTouchAdvancesLastSeen(t *testing.T) {
	p := New(NewId(), "B", Endpoint{})
	before := p.LastSeen()
	time.Sleep(time.Millisecond)
	p.Touch()
	assert.True(t, p.LastSeen().After(before))
}

func TestSilentForReflectsElapsedTime(t *testing.T) {
	p := New(NewId(), "B", Endpoint{})
	assert.False(t, p.SilentFor(time.Hour))
	p.mu.Lock()
	p.lastSeen = time.Now().Add(-2 * time.Second)
	p.mu.Unlock()
	assert.True(t, p.SilentFor(time.Second))
}

func TestLinkQualityCounters(t *testing.T) {
	p := New(NewId(), "B", Endpoint{})
	p.RecordSent()
	p.RecordReceived(false)
	p.RecordReceived(true)
	p.RecordRTT(42 * time.Millisecond)

	lq := p.Link()
	assert.Equal(t, uint64(1), lq.PacketsSent)
	assert.Equal(t, uint64(2), lq.PacketsReceived)
	assert.Equal(t, uint64(1), lq.SequenceGaps)
	assert.Equal(t, 42*time.Millisecond, lq.RTTEstimate)
}

func TestStorePutGetDeleteByName(t *testing.T) {
	s := NewStore()
	p := New(NewId(), "B", Endpoint{})
	s.Put(p)

	got, ok := s.Get(p.Id())
	require.True(t, ok)
	assert.Same(t, p, got)

	byName, ok := s.GetByName("B")
	require.True(t, ok)
	assert.Same(t, p, byName)

	assert.Equal(t, 1, s.Len())
	s.Delete(p.Id())
	assert.Equal(t, 0, s.Len())
	_, ok = s.Get(p.Id())
	assert.False(t, ok)
}

func TestStoreConnectedFiltersByState(t *testing.T) {
	s := NewStore()
	connected := New(NewId(), "connected", Endpoint{})
	connected.SetState(Connected)
	controlling := New(NewId(), "controlling", Endpoint{})
	controlling.SetState(Controlling)
	discovered := New(NewId(), "discovered", Endpoint{})

	s.Put(connected)
	s.Put(controlling)
	s.Put(discovered)

	got := s.Connected()
	assert.Len(t, got, 2)
	assert.Len(t, s.All(), 3)
}
