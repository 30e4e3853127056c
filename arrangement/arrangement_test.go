package arrangement

import (
	"testing"

	"github.com/alexandertomana/MouseShare/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerForEdgeAdjacency(t *testing.T) {
	a := New()
	a.InitializeLocalDisplays([]Display{{ID: "main", X: 0, Y: 0, W: 1920, H: 1080, IsPrimary: true}})

	remoteID := peer.NewId()
	// Remote sits just to the left of the local screen.
	a.UpdateRemoteScreen(remoteID, "desk-b", 1920, 1080)
	a.UpdatePosition(remoteID.String(), -1920, 0)

	got, ok := a.PeerForEdge(Left)
	require.True(t, ok)
	assert.Equal(t, remoteID, got)

	_, ok = a.PeerForEdge(Right)
	assert.False(t, ok)
}

func TestPeerForEdgeLegacyFallback(t *testing.T) {
	a := New()
	a.InitializeLocalDisplays([]Display{{ID: "main", X: 0, Y: 0, W: 1920, H: 1080, IsPrimary: true}})
	id := peer.NewId()
	a.BindLegacyLink(Top, id)

	got, ok := a.PeerForEdge(Top)
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestComputeEntryPositionInRange(t *testing.T) {
	source := ArrangedScreen{X: 0, Y: 0, W: 1920, H: 1080}
	target := ArrangedScreen{X: -1920, Y: 0, W: 1920, H: 1080}

	for _, exit := range []float64{0, 0.25, 0.5, 0.75, 1} {
		rel := ComputeEntryPosition(exit, source, target, Left)
		assert.GreaterOrEqual(t, rel, 0.0)
		assert.LessOrEqual(t, rel, 1.0)
	}

	// Full vertical overlap: exit Y maps 1:1 onto target's local Y.
	assert.InDelta(t, 0.5, ComputeEntryPosition(0.5, source, target, Left), 1e-9)
}

func TestComputeEntryPositionNoOverlapReturnsHalf(t *testing.T) {
	source := ArrangedScreen{X: 0, Y: 0, W: 1920, H: 1080}
	// Target is adjacent horizontally but shifted far enough vertically
	// that there's no Y overlap at all.
	target := ArrangedScreen{X: -1920, Y: 5000, W: 1920, H: 1080}

	rel := ComputeEntryPosition(0.5, source, target, Left)
	assert.Equal(t, 0.5, rel)
}

func TestComputeEntryPositionTopBottomUsesXAxis(t *testing.T) {
	source := ArrangedScreen{X: 0, Y: 0, W: 1920, H: 1080}
	target := ArrangedScreen{X: 0, Y: -1080, W: 1920, H: 1080}

	// Exiting through the top at X=0.25 should land at X=0.25 on the
	// target, not degenerate to a constant 0.5.
	rel := ComputeEntryPosition(0.25, source, target, Top)
	assert.InDelta(t, 0.25, rel, 1e-9)
}

func TestRemoveStaleRemoteScreens(t *testing.T) {
	a := New()
	id := peer.NewId()
	a.UpdateRemoteScreen(id, "desk-b", 1920, 1080)
	require.Len(t, a.Screens(), 1)

	a.RemoveStaleRemoteScreens(map[peer.Id]bool{})
	assert.Empty(t, a.Screens())
}
