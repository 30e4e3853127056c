package controller

import (
	"github.com/alexandertomana/MouseShare/capture"
	"github.com/alexandertomana/MouseShare/codec"
	"github.com/alexandertomana/MouseShare/control"
	"github.com/alexandertomana/MouseShare/peer"
)

// checkReturnEdgeLocked implements the two-phase return-edge detector
// from spec §4.7/§8 property 5: the synthetic cursor must first move
// ReturnMoveAwayPx away from entryEdge before a subsequent approach
// within ReturnArrivalPx fires the return transition. Called after
// every injected MouseMove while Controlled.
func (c *Controller) checkReturnEdgeLocked() {
	id, entryEdge, hasMovedAway, ok := c.state.ControlledPeer()
	if !ok {
		return
	}

	raw := c.injector.CurrentPosition()
	pos := capture.Point{X: raw.X, Y: raw.Y}
	dist := c.distanceFromEdgeLocked(entryEdge, pos)

	if !hasMovedAway {
		if dist >= ReturnMoveAwayPx {
			c.state = c.state.WithMovedAway(true)
		}
		return
	}

	if dist > ReturnArrivalPx {
		return
	}

	wireEdge := toWireEdge(entryEdge)
	_ = c.transport.Send(id, []codec.InputEvent{codec.NewScreenLeave(wireEdge)})

	c.capture.SetControlling(true)
	c.state = control.NewLocal()
	if pr, ok2 := c.peers.Get(id); ok2 && pr.State() != peer.Disconnected {
		pr.SetState(peer.Connected)
	}
	c.setStatus(StatusRunning, "")
}
