package controller

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandertomana/MouseShare/arrangement"
	"github.com/alexandertomana/MouseShare/capture"
	"github.com/alexandertomana/MouseShare/clipboard"
	"github.com/alexandertomana/MouseShare/codec"
	"github.com/alexandertomana/MouseShare/config"
	"github.com/alexandertomana/MouseShare/inject"
	"github.com/alexandertomana/MouseShare/peer"
	"github.com/alexandertomana/MouseShare/transport"
)

type fakeHooks struct {
	pos       inject.Point
	visible   bool
	associated bool
}

func (f *fakeHooks) CurrentPosition() inject.Point        { return f.pos }
func (f *fakeHooks) WarpCursor(p inject.Point)            { f.pos = p }
func (f *fakeHooks) PostMouseDown(codec.MouseButton, int, codec.Modifiers, inject.Point) {}
func (f *fakeHooks) PostMouseUp(codec.MouseButton, int, codec.Modifiers, inject.Point)   {}
func (f *fakeHooks) PostScroll(float64, float64)                                        {}
func (f *fakeHooks) PostKeyDown(uint16, string, codec.Modifiers)                        {}
func (f *fakeHooks) PostKeyUp(uint16, codec.Modifiers)                                  {}
func (f *fakeHooks) SetCursorVisible(v bool)                                            { f.visible = v }
func (f *fakeHooks) SetMouseCursorAssociation(v bool)                                   { f.associated = v }

type fakeOSClipboard struct {
	blob  []byte
	mime  string
	count uint64
}

func (f *fakeOSClipboard) Read() ([]byte, string, uint64) { return f.blob, f.mime, f.count }
func (f *fakeOSClipboard) Write(blob []byte, mime string) { f.blob, f.mime = blob, mime; f.count++ }

const testBoundsW, testBoundsH = 1920.0, 1080.0

// newTestController builds a Controller wired entirely with fakes and
// an idle (never-listening) Transport, so tests exercise real state
// transitions without any actual socket I/O.
func newTestController(t *testing.T) (*Controller, *peer.Peer, *fakeHooks) {
	t.Helper()

	selfID := peer.NewId()
	remoteID := peer.NewId()

	peers := peer.NewStore()
	remote := peer.New(remoteID, "B", peer.Endpoint{})
	remote.SetState(peer.Connected)
	remote.SetScreenSize(1920, 1080)
	peers.Put(remote)

	arr := arrangement.New()
	arr.InitializeLocalDisplays([]arrangement.Display{
		{ID: "local-0", X: 0, Y: 0, W: 1920, H: 1080, IsPrimary: true},
	})
	arr.UpdateRemoteScreen(remoteID, "B", 1920, 1080)
	// Place B to the left of A, matching scenario 2 of spec §8.
	screens := arr.Screens()
	for _, s := range screens {
		if !s.IsLocal {
			arr.UpdatePosition(s.ID, -1920, 0)
		}
	}

	var ctrl *Controller

	tr := transport.New(zerolog.Nop(), transport.Identity{
		PeerID: selfID, PeerName: "A", ScreenW: 1920, ScreenH: 1080,
	}, transport.Callbacks{
		OnConnected:    func(id peer.Id, name string, w, h int, c *transport.Conn) { ctrl.HandleConnected(id, name, w, h, c) },
		OnDisconnected: func(id peer.Id, err error) { ctrl.HandleDisconnected(id, err) },
		OnEvents:       func(id peer.Id, seq uint32, events []codec.InputEvent) { ctrl.HandleEvents(id, seq, events) },
	})

	hooks := &fakeHooks{pos: inject.Point{X: testBoundsW / 2, Y: testBoundsH / 2}}
	inj := inject.New(hooks, inject.Bounds{MinX: 0, MinY: 0, MaxX: testBoundsW, MaxY: testBoundsH})

	capt := capture.New(capture.Callbacks{
		OnEdgeArrival:   func(e arrangement.Edge, p capture.Point) { ctrl.OnEdgeArrival(e, p) },
		OnEvent:         func(ev codec.InputEvent) { ctrl.OnCapturedEvent(ev) },
		OnEscapeToLocal: func() { ctrl.OnEscapeToLocal() },
	})

	osClip := &fakeOSClipboard{count: 1}
	var clip *clipboard.Bridge
	clip = clipboard.New(zerolog.Nop(), osClip, clipboard.Callbacks{Broadcast: func(u codec.ClipboardUpdate) { ctrl.BroadcastClipboard(u) }})

	ctrl = New(Deps{
		SelfID:      selfID,
		SelfName:    "A",
		Peers:       peers,
		Arrangement: arr,
		Settings:    config.Default(),
		Transport:   tr,
		Capture:     capt,
		Injector:    inj,
		Clipboard:   clip,
		Log:         zerolog.Nop(),
	})
	ctrl.SetLocalBounds(capture.Bounds{MinX: 0, MinY: 0, MaxX: testBoundsW, MaxY: testBoundsH})

	return ctrl, remote, hooks
}

// Property 1: mutual exclusion of the active peer; fresh Controller
// starts Local.
func TestInitialStateIsLocal(t *testing.T) {
	ctrl, _, _ := newTestController(t)
	assert.True(t, ctrl.State().IsLocal())
	_, ok := ctrl.State().ActivePeer()
	assert.False(t, ok)
}

func TestEdgeArrivalEntersControlling(t *testing.T) {
	ctrl, remote, _ := newTestController(t)

	ctrl.OnEdgeArrival(arrangement.Left, capture.Point{X: 0, Y: 540})

	require.True(t, ctrl.State().IsControlling())
	id, edge, _, ok := ctrl.State().ControllingPeer()
	require.True(t, ok)
	assert.Equal(t, remote.Id(), id)
	assert.Equal(t, arrangement.Left, edge)
	assert.False(t, ctrl.capture.IsControlling())
}

func TestCooldownBlocksImmediateRetrigger(t *testing.T) {
	ctrl, _, _ := newTestController(t)

	ctrl.OnEdgeArrival(arrangement.Left, capture.Point{X: 0, Y: 540})
	require.True(t, ctrl.State().IsControlling())

	ctrl.OnEscapeToLocal()
	require.True(t, ctrl.State().IsLocal())

	ctrl.OnEdgeArrival(arrangement.Left, capture.Point{X: 0, Y: 540})
	assert.True(t, ctrl.State().IsLocal(), "cooldown window should suppress the immediate re-trigger")
}

// Property 10: escape semantics.
func TestEscapeReturnsToLocalWithStatus(t *testing.T) {
	ctrl, _, _ := newTestController(t)
	ctrl.OnEdgeArrival(arrangement.Left, capture.Point{X: 0, Y: 540})
	require.True(t, ctrl.State().IsControlling())

	ctrl.OnEscapeToLocal()

	assert.True(t, ctrl.State().IsLocal())
	assert.Equal(t, string(StatusEscaped), ctrl.StatusLine())
}

func TestRemoteScreenLeaveReturnsControllingToLocal(t *testing.T) {
	ctrl, remote, _ := newTestController(t)
	ctrl.OnEdgeArrival(arrangement.Left, capture.Point{X: 0, Y: 540})
	require.True(t, ctrl.State().IsControlling())

	ctrl.HandleEvents(remote.Id(), 1, []codec.InputEvent{codec.NewScreenLeave(codec.EdgeRight)})

	assert.True(t, ctrl.State().IsLocal())
}

func TestScreenEnterTransitionsToControlled(t *testing.T) {
	ctrl, remote, hooks := newTestController(t)

	ctrl.HandleEvents(remote.Id(), 1, []codec.InputEvent{codec.NewScreenEnter(codec.EdgeRight, 0.5, 0.5)})

	require.True(t, ctrl.State().IsControlled())
	id, edge, movedAway, ok := ctrl.State().ControlledPeer()
	require.True(t, ok)
	assert.Equal(t, remote.Id(), id)
	assert.Equal(t, arrangement.Right, edge)
	assert.False(t, movedAway)
	assert.True(t, hooks.visible)
}

// Property 5: return anti-ping-pong.
func TestReturnEdgeRequiresMovingAwayFirst(t *testing.T) {
	ctrl, remote, hooks := newTestController(t)
	ctrl.HandleEvents(remote.Id(), 1, []codec.InputEvent{codec.NewScreenEnter(codec.EdgeRight, 0.5, 0.5)})
	require.True(t, ctrl.State().IsControlled())

	// Sitting right at the entry edge already (within 3px) must NOT fire
	// a return before the cursor has ever moved ReturnMoveAwayPx away.
	ctrl.HandleEvents(remote.Id(), 2, []codec.InputEvent{codec.NewMouseMove(2, 0, 0)})
	assert.True(t, ctrl.State().IsControlled())

	// Move far away: no return yet (still near-edge inequality untouched).
	ctrl.HandleEvents(remote.Id(), 3, []codec.InputEvent{codec.NewMouseMove(-400, 0, 0)})
	assert.True(t, ctrl.State().IsControlled())

	// Approach back within 3px of the right edge: now the return fires.
	dx := (testBoundsW - 2) - hooks.pos.X
	ctrl.HandleEvents(remote.Id(), 4, []codec.InputEvent{codec.NewMouseMove(dx, 0, 0)})
	assert.True(t, ctrl.State().IsLocal())
}

func TestBatchCoalescesConsecutiveMouseMoves(t *testing.T) {
	ctrl, remote, _ := newTestController(t)
	ctrl.OnEdgeArrival(arrangement.Left, capture.Point{X: 0, Y: 540})
	require.True(t, ctrl.State().IsControlling())

	ctrl.OnCapturedEvent(codec.NewMouseMove(1, 1, 0))
	ctrl.OnCapturedEvent(codec.NewMouseMove(2, 3, 0))
	ctrl.OnCapturedEvent(codec.NewMouseMove(-1, 0, 0))

	ctrl.mu.Lock()
	q := ctrl.batch[remote.Id()]
	ctrl.mu.Unlock()
	require.Len(t, q, 1)
	mv := q[0].(codec.MouseMove)
	assert.Equal(t, 2.0, mv.DX)
	assert.Equal(t, 4.0, mv.DY)
}

func TestMouseDownFlushesImmediately(t *testing.T) {
	ctrl, remote, _ := newTestController(t)
	ctrl.OnEdgeArrival(arrangement.Left, capture.Point{X: 0, Y: 540})
	require.True(t, ctrl.State().IsControlling())

	ctrl.OnCapturedEvent(codec.NewMouseMove(1, 1, 0))
	ctrl.OnCapturedEvent(codec.NewMouseDown(codec.ButtonLeft, 1, 0))

	ctrl.mu.Lock()
	q := ctrl.batch[remote.Id()]
	ctrl.mu.Unlock()
	assert.Len(t, q, 0)
}
