package controller

import (
	"time"

	"github.com/alexandertomana/MouseShare/arrangement"
	"github.com/alexandertomana/MouseShare/capture"
	"github.com/alexandertomana/MouseShare/codec"
	"github.com/alexandertomana/MouseShare/config"
	"github.com/alexandertomana/MouseShare/control"
	"github.com/alexandertomana/MouseShare/peer"
)

func isEdgeHorizontal(e arrangement.Edge) bool {
	return e == arrangement.Left || e == arrangement.Right
}

func toWireEdge(e arrangement.Edge) codec.Edge {
	switch e {
	case arrangement.Left:
		return codec.EdgeLeft
	case arrangement.Right:
		return codec.EdgeRight
	case arrangement.Top:
		return codec.EdgeTop
	default:
		return codec.EdgeBottom
	}
}

func fromWireEdge(e codec.Edge) arrangement.Edge {
	switch e {
	case codec.EdgeLeft:
		return arrangement.Left
	case codec.EdgeRight:
		return arrangement.Right
	case codec.EdgeTop:
		return arrangement.Top
	default:
		return arrangement.Bottom
	}
}

// relPosFromScreenEnter picks the relevant normalized coordinate: Y for
// a left/right entry edge, X for a top/bottom one. OnEdgeArrival sends
// the same entry position in both fields.
func relPosFromScreenEnter(ev codec.ScreenEnter) float64 {
	if isEdgeHorizontal(fromWireEdge(ev.Edge)) {
		return ev.RelEntryY
	}
	return ev.RelEntryX
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// exitPositionForLocked normalizes a capture-reported point against the
// combined local bounds, along the axis parallel to edge.
func (c *Controller) exitPositionForLocked(edge arrangement.Edge, p capture.Point) float64 {
	b := c.bounds
	if edge == arrangement.Left || edge == arrangement.Right {
		if b.MaxY == b.MinY {
			return 0.5
		}
		return clamp01((p.Y - b.MinY) / (b.MaxY - b.MinY))
	}
	if b.MaxX == b.MinX {
		return 0.5
	}
	return clamp01((p.X - b.MinX) / (b.MaxX - b.MinX))
}

func (c *Controller) distanceFromEdgeLocked(edge arrangement.Edge, p capture.Point) float64 {
	b := c.bounds
	switch edge {
	case arrangement.Left:
		return p.X - b.MinX
	case arrangement.Right:
		return b.MaxX - p.X
	case arrangement.Top:
		return p.Y - b.MinY
	default:
		return b.MaxY - p.Y
	}
}

// findLocalScreen and findPeerScreen locate the ArrangedScreens needed
// to compute an entry position; both are best-effort lookups against
// the current Arrangement snapshot.
func findLocalScreen(screens []arrangement.ArrangedScreen) (arrangement.ArrangedScreen, bool) {
	for _, s := range screens {
		if s.IsLocal {
			return s, true
		}
	}
	return arrangement.ArrangedScreen{}, false
}

func findPeerScreen(screens []arrangement.ArrangedScreen, id peer.Id) (arrangement.ArrangedScreen, bool) {
	for _, s := range screens {
		if !s.IsLocal && s.PeerID == id {
			return s, true
		}
	}
	return arrangement.ArrangedScreen{}, false
}

func (c *Controller) persistEdgeLinkLocked(edge arrangement.Edge, id peer.Id) {
	entry := config.EdgeLinkEntry{Edge: int(edge), PeerID: id.String()}
	replaced := false
	for i, l := range c.settings.Arrangement.Links {
		if l.Edge == entry.Edge {
			c.settings.Arrangement.Links[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		c.settings.Arrangement.Links = append(c.settings.Arrangement.Links, entry)
	}
	if c.settingsStore != nil {
		_ = c.settingsStore.Save(c.settings)
	}
}

// OnEdgeArrival is Capture's callback, invoked while this host owns its
// own physical cursor (ControlState == Local) once the cursor has
// settled at a screen edge (spec §4.7 Local -> Controlling).
func (c *Controller) OnEdgeArrival(edge arrangement.Edge, p capture.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsLocal() {
		return
	}
	if time.Now().Before(c.cooldownUntil) {
		return
	}

	targetID, ok := c.arrangement.PeerForEdge(edge)
	if !ok {
		connected := c.peers.Connected()
		if len(connected) == 1 {
			targetID = connected[0].Id()
			c.arrangement.BindLegacyLink(edge, targetID)
			c.persistEdgeLinkLocked(edge, targetID)
			ok = true
		}
	}
	if !ok {
		return
	}
	pr, found := c.peers.Get(targetID)
	if !found || pr.State() != peer.Connected {
		return
	}

	exitPos := c.exitPositionForLocked(edge, p)

	screens := c.arrangement.Screens()
	source, haveSource := findLocalScreen(screens)
	target, haveTarget := findPeerScreen(screens, targetID)
	entryPos := exitPos
	if haveSource && haveTarget {
		entryPos = arrangement.ComputeEntryPosition(exitPos, source, target, edge)
	}

	c.state = control.NewControlling(targetID, edge, exitPos)
	pr.SetState(peer.Controlling)
	c.setStatus(StatusControlling, pr.Name())

	c.capture.SetControlling(false)
	c.injector.SetCursorVisible(false)
	c.injector.ParkCursor()

	c.startBatchFlusherLocked()
	c.armFailsafeLocked()

	wireEdge := toWireEdge(edge.Opposite())
	_ = c.transport.Send(targetID, []codec.InputEvent{codec.NewScreenEnter(wireEdge, entryPos, entryPos)})
}

// forceReturnToLocalLocked implements every Controlling -> Local side
// effect from spec §4.7, regardless of which of the five triggers
// fired it.
func (c *Controller) forceReturnToLocalLocked(reason, peerName string) {
	id, exitEdge, exitPos, ok := c.state.ControllingPeer()
	if !ok {
		return
	}

	c.cancelFailsafeLocked()
	c.stopBatchFlusherLocked()

	c.capture.SetControlling(true)
	c.injector.ReassociateMouse()
	c.injector.WarpToEdge(exitEdge, exitPos)
	c.injector.SetCursorVisible(true)

	c.cooldownUntil = time.Now().Add(CooldownWindow)
	c.state = control.NewLocal()
	if pr, ok2 := c.peers.Get(id); ok2 && pr.State() != peer.Disconnected {
		pr.SetState(peer.Connected)
	}

	switch reason {
	case "failsafe", "peer-silent":
		c.setStatus(StatusLostConnection, peerName)
	case "escape":
		c.setStatus(StatusEscaped, "")
	default:
		c.setStatus(StatusRunning, "")
	}

	wireEdge := toWireEdge(exitEdge.Opposite())
	_ = c.transport.Send(id, []codec.InputEvent{codec.NewScreenLeave(wireEdge)})
}

// OnEscapeToLocal is Capture's callback for the suppressed escape key
// while Controlling (spec §4.4, §8 property 10).
func (c *Controller) OnEscapeToLocal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsControlling() {
		return
	}
	id, _, _, _ := c.state.ControllingPeer()
	name := c.peerNameLocked(id)
	c.forceReturnToLocalLocked("escape", name)
}

func (c *Controller) peerNameLocked(id peer.Id) string {
	if pr, ok := c.peers.Get(id); ok {
		return pr.Name()
	}
	return ""
}

// handleScreenEnterLocked is Local -> Controlled: receipt of ScreenEnter
// from a connected peer (spec §4.7).
func (c *Controller) handleScreenEnterLocked(remote peer.Id, wireEdge codec.Edge, relPos float64) {
	if !c.state.IsLocal() {
		return
	}
	pr, ok := c.peers.Get(remote)
	if !ok {
		return
	}

	entryEdge := fromWireEdge(wireEdge)
	c.state = control.NewControlled(remote, entryEdge)
	pr.SetState(peer.ControlledBy)
	c.capture.SetControlling(false)
	c.setStatus(StatusControlledBy, pr.Name())

	_ = c.transport.Send(remote, []codec.InputEvent{codec.NewScreenEnterAck(wireEdge)})

	c.injector.WarpToEdge(entryEdge, relPos)
	c.injector.SetCursorVisible(true)
}

// handleScreenEnterAckLocked cancels the failsafe timer armed on entry
// into Controlling, once the peer confirms the hand-off.
func (c *Controller) handleScreenEnterAckLocked(remote peer.Id) {
	if id, _, _, ok := c.state.ControllingPeer(); ok && id == remote {
		c.cancelFailsafeLocked()
	}
}

// handleScreenLeaveLocked is the receipt of ScreenLeave from the
// counterparty: either the Controlled peer's own return-edge detector
// firing (we are Controlling), or the controlling peer forcing a
// return to local for some other reason (escape, failsafe, peer-silent
// — we are Controlled, and the mirror of returnedge.go's own-detector
// transition applies here too, since our physical cursor was
// suppressed for the duration and has no other way back).
func (c *Controller) handleScreenLeaveLocked(remote peer.Id) {
	id, ok := c.state.ActivePeer()
	if !ok || id != remote {
		return
	}
	if c.state.IsControlling() {
		c.forceReturnToLocalLocked("remote-left", c.peerNameLocked(remote))
	} else if c.state.IsControlled() {
		c.capture.SetControlling(true)
		c.state = control.NewLocal()
		if pr, ok2 := c.peers.Get(remote); ok2 && pr.State() != peer.Disconnected {
			pr.SetState(peer.Connected)
		}
		c.setStatus(StatusRunning, "")
	}
}
