// This file wires the Controller's exported callback methods to
// Transport and Discovery: handleReceivedEvents dispatches every
// received InputPacket's events by tag, and the discovery handlers
// maintain peer.Store/Arrangement and drive auto-connect.
package controller

import (
	"context"
	"net/netip"
	"time"

	"github.com/alexandertomana/MouseShare/codec"
	"github.com/alexandertomana/MouseShare/control"
	"github.com/alexandertomana/MouseShare/discovery"
	"github.com/alexandertomana/MouseShare/peer"
	"github.com/alexandertomana/MouseShare/transport"
)

const dialTimeout = 5 * time.Second

// HandleEvents is Transport's OnEvents callback: one received
// InputPacket's events, delivered in wire order (spec §4.7 "Controlled
// -> Controlled (event application)").
func (c *Controller) HandleEvents(remote peer.Id, seq uint32, events []codec.InputEvent) {
	if pr, ok := c.peers.Get(remote); ok {
		pr.Touch()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ev := range events {
		switch e := ev.(type) {
		case codec.Heartbeat:
			// peer.Touch already recorded above; a Heartbeat carries the
			// sender's own send time, so elapsed-since-send is a rough
			// one-way latency estimate, the best this symmetric keepalive
			// (no request/response pairing) can offer for RTTEstimate.
			if pr, ok := c.peers.Get(remote); ok {
				if rtt := time.Since(e.Timestamp()); rtt >= 0 {
					pr.RecordRTT(rtt)
				}
			}
		case codec.ClipboardUpdate:
			if c.settings.ClipboardSyncEnabled {
				c.clip.ApplyRemote(e)
			}
		case codec.ScreenEnter:
			c.handleScreenEnterLocked(remote, e.Edge, relPosFromScreenEnter(e))
		case codec.ScreenEnterAck:
			c.handleScreenEnterAckLocked(remote)
		case codec.ScreenLeave:
			c.handleScreenLeaveLocked(remote)
		default:
			id, ok := c.state.ActivePeer()
			if !ok || id != remote || !c.state.IsControlled() {
				continue
			}
			c.injector.Inject(ev)
			if _, isMove := ev.(codec.MouseMove); isMove {
				c.checkReturnEdgeLocked()
			}
		}
	}
}

// HandleConnected is Transport's OnConnected callback.
func (c *Controller) HandleConnected(remote peer.Id, name string, screenW, screenH int, conn *transport.Conn) {
	pr, ok := c.peers.Get(remote)
	if !ok {
		pr = peer.New(remote, name, netip.AddrPort{})
		c.peers.Put(pr)
	}
	pr.SetName(name)
	pr.SetScreenSize(screenW, screenH)
	pr.SetState(peer.Connected)
	pr.Touch()
	if conn != nil {
		conn.SetPeer(pr)
	}
	c.arrangement.UpdateRemoteScreen(remote, name, screenW, screenH)
}

// HandleDisconnected is Transport's OnDisconnected callback.
func (c *Controller) HandleDisconnected(remote peer.Id, err error) {
	c.mu.Lock()
	if id, ok := c.state.ActivePeer(); ok && id == remote {
		reason := "disconnected"
		if err != nil {
			reason = "connection-error"
		}
		if c.state.IsControlling() {
			c.forceReturnToLocalLocked(reason, c.peerNameLocked(remote))
		} else if c.state.IsControlled() {
			c.capture.SetControlling(true)
			c.state = control.NewLocal()
			c.setStatus(StatusRunning, "")
		}
	}
	c.mu.Unlock()

	if pr, ok := c.peers.Get(remote); ok {
		pr.SetState(peer.Disconnected)
	}
	connected := map[peer.Id]bool{}
	for _, pr := range c.peers.Connected() {
		connected[pr.Id()] = true
	}
	c.arrangement.RemoveStaleRemoteScreens(connected)
}

// HandlePeerAdded is Discovery's OnPeerAdded callback.
func (c *Controller) HandlePeerAdded(info discovery.Info) {
	pr, ok := c.peers.Get(info.ID)
	if !ok {
		endpoint, _ := netip.ParseAddrPort(info.Addr)
		pr = peer.New(info.ID, info.Name, endpoint)
		c.peers.Put(pr)
	} else {
		pr.SetName(info.Name)
	}
	pr.SetScreenSize(info.Width, info.Height)
	c.arrangement.UpdateRemoteScreen(info.ID, info.Name, info.Width, info.Height)

	if c.autoConnectEnabled() && pr.State() == peer.Discovered {
		go c.dialPeer(info)
	}
}

// HandlePeerUpdated is Discovery's OnPeerUpdated callback.
func (c *Controller) HandlePeerUpdated(info discovery.Info) {
	pr, ok := c.peers.Get(info.ID)
	if !ok {
		c.HandlePeerAdded(info)
		return
	}
	pr.SetName(info.Name)
	pr.SetScreenSize(info.Width, info.Height)
	c.arrangement.UpdateRemoteScreen(info.ID, info.Name, info.Width, info.Height)
}

// HandlePeerLost is Discovery's OnPeerLost callback. A peer with a live
// or pending transport connection is kept despite the mDNS withdrawal
// (see peer.Store's doc comment).
func (c *Controller) HandlePeerLost(id peer.Id) {
	pr, ok := c.peers.Get(id)
	if !ok {
		return
	}
	switch pr.State() {
	case peer.Connected, peer.Controlling, peer.ControlledBy, peer.Connecting:
		return
	default:
		c.peers.Delete(id)
	}
}

func (c *Controller) dialPeer(info discovery.Info) {
	pr, ok := c.peers.Get(info.ID)
	if !ok {
		return
	}
	switch pr.State() {
	case peer.Connected, peer.Controlling, peer.ControlledBy, peer.Connecting:
		return
	}
	pr.SetState(peer.Connecting)
	c.mu.Lock()
	c.setStatus(StatusConnecting, pr.Name())
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := c.transport.Dial(ctx, info.ID, info.Addr); err != nil {
		pr.SetState(peer.Error)
		c.log.Warn().Err(err).Str("peer", pr.Name()).Msg("dial failed")
	}
}
