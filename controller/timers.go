package controller

import (
	"time"

	"github.com/alexandertomana/MouseShare/codec"
	"github.com/alexandertomana/MouseShare/errkind"
	"github.com/alexandertomana/MouseShare/peer"
)

// appendBatchLocked queues a captured event for the currently
// Controlling peer, coalescing consecutive MouseMove deltas within the
// batch window (spec §4.7 "Batching").
func (c *Controller) appendBatchLocked(id peer.Id, ev codec.InputEvent) {
	q := c.batch[id]
	if mv, ok := ev.(codec.MouseMove); ok && len(q) > 0 {
		if last, ok2 := q[len(q)-1].(codec.MouseMove); ok2 {
			q[len(q)-1] = codec.NewMouseMove(last.DX+mv.DX, last.DY+mv.DY, mv.Mods)
			c.batch[id] = q
			return
		}
	}
	c.batch[id] = append(q, ev)
}

func (c *Controller) flushBatchLocked(id peer.Id) {
	events := c.batch[id]
	if len(events) == 0 {
		return
	}
	delete(c.batch, id)
	_ = c.transport.Send(id, events)
}

func (c *Controller) startBatchFlusherLocked() {
	c.batchFlusher = time.NewTicker(BatchFlushInterval)
	c.flusherDone = make(chan struct{})
	done := c.flusherDone
	ticker := c.batchFlusher
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.onBatchTick()
			}
		}
	}()
}

func (c *Controller) stopBatchFlusherLocked() {
	if c.batchFlusher != nil {
		c.batchFlusher.Stop()
		close(c.flusherDone)
		c.batchFlusher = nil
		c.flusherDone = nil
	}
	// Batched-but-unflushed events are dropped on transition out of
	// Controlling (spec §5 "Cancellation").
	c.batch = make(map[peer.Id][]codec.InputEvent)
}

func (c *Controller) stopBatchFlusher() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopBatchFlusherLocked()
}

func (c *Controller) onBatchTick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, _, _, ok := c.state.ControllingPeer()
	if !ok {
		return
	}
	c.flushBatchLocked(id)
}

// OnCapturedEvent is Capture's callback for every semantic InputEvent
// produced while forwarding (spec §4.7 "Controlling -> Controlling").
func (c *Controller) OnCapturedEvent(ev codec.InputEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, _, _, ok := c.state.ControllingPeer()
	if !ok {
		return
	}
	c.appendBatchLocked(id, ev)
	switch ev.(type) {
	case codec.MouseDown, codec.MouseUp, codec.KeyDown, codec.KeyUp:
		c.flushBatchLocked(id)
	}
}

// armFailsafeLocked starts the 2 s failsafe timer on entering
// Controlling. The callback re-checks c.failsafeGen so a stale timer
// firing after cancellation or rearming is a no-op.
func (c *Controller) armFailsafeLocked() {
	c.failsafeGen++
	gen := c.failsafeGen
	c.rearmedOnce = false
	c.failsafeArmedAt = time.Now()
	c.failsafeTimer = time.AfterFunc(FailsafeTimeout, func() { c.onFailsafeFire(gen) })
}

func (c *Controller) cancelFailsafeLocked() {
	c.failsafeGen++
	if c.failsafeTimer != nil {
		c.failsafeTimer.Stop()
		c.failsafeTimer = nil
	}
}

func (c *Controller) onFailsafeFire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.failsafeGen {
		return
	}
	id, _, _, ok := c.state.ControllingPeer()
	if !ok {
		return
	}
	pr, found := c.peers.Get(id)
	recentlyHeard := found && time.Since(pr.LastSeen()) < FailsafeTimeout

	if recentlyHeard && !c.rearmedOnce {
		c.rearmedOnce = true
		c.failsafeGen++
		newGen := c.failsafeGen
		c.failsafeTimer = time.AfterFunc(FailsafeTimeout, func() { c.onFailsafeFire(newGen) })
		return
	}

	c.log.Warn().Err(errkind.New(errkind.PeerSilent, "failsafe timeout with no ScreenEnterAck")).
		Str("peer", c.peerNameLocked(id)).Msg("forcing return to local")
	c.forceReturnToLocalLocked("failsafe", c.peerNameLocked(id))
}

// onHeartbeatTick sends a Heartbeat to every connected peer and enforces
// the 5 s controlling-silence check (spec §4.7, §8 property 8).
func (c *Controller) onHeartbeatTick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, pr := range c.peers.Connected() {
		_ = c.transport.Send(pr.Id(), []codec.InputEvent{codec.NewHeartbeat()})
	}

	if !c.state.IsControlling() {
		return
	}
	id, _, _, ok := c.state.ControllingPeer()
	if !ok {
		return
	}
	pr, found := c.peers.Get(id)
	if found && pr.SilentFor(ControllingSilence) {
		c.log.Warn().Err(errkind.New(errkind.PeerSilent, "no traffic from controlling peer within ControllingSilence")).
			Str("peer", pr.Name()).Msg("forcing return to local")
		c.forceReturnToLocalLocked("peer-silent", pr.Name())
	}
}
