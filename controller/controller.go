// Package controller is the orchestrator from spec §4.7: it holds the
// ControlState machine, routes captured events to Transport while
// Controlling, routes received events to Injection while Controlled,
// arms failsafe timers, and drives heartbeats and batching. It is the
// single serialization point for control-state transitions (spec §5):
// every entry point that reads or changes the ControlState takes the
// same mutex for the duration of its transition, satisfying "parallel with a single
// serialization point" via the mutex-based option the spec allows.
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/alexandertomana/MouseShare/arrangement"
	"github.com/alexandertomana/MouseShare/capture"
	"github.com/alexandertomana/MouseShare/clipboard"
	"github.com/alexandertomana/MouseShare/codec"
	"github.com/alexandertomana/MouseShare/config"
	"github.com/alexandertomana/MouseShare/control"
	"github.com/alexandertomana/MouseShare/inject"
	"github.com/alexandertomana/MouseShare/peer"
	"github.com/alexandertomana/MouseShare/transport"
)

const (
	BatchFlushInterval  = 8 * time.Millisecond
	HeartbeatInterval   = 1 * time.Second
	FailsafeTimeout     = 2 * time.Second
	ControllingSilence  = 5 * time.Second
	CooldownWindow      = 500 * time.Millisecond
	ReturnMoveAwayPx    = 300.0
	ReturnArrivalPx     = 3.0
)

// Status mirrors the user-visible statuses from spec §7.
type Status string

const (
	StatusRunning         Status = "Running"
	StatusConnecting      Status = "Connecting to"
	StatusControlling     Status = "Controlling"
	StatusControlledBy    Status = "Controlled by"
	StatusLostConnection  Status = "Lost connection to"
	StatusEscaped         Status = "Escaped to local control"
)

// Controller is the single-writer domain for ControlState. Reached by
// message passing from Capture, Transport, Discovery, ClipboardBridge
// and timer tasks — see each handler method below.
type Controller struct {
	log zerolog.Logger

	selfID   peer.Id
	selfName string

	mu       sync.Mutex
	state    control.State
	status   Status
	statusOf string // peer name the status refers to, when applicable

	peers       *peer.Store
	arrangement *arrangement.Arrangement
	settings    config.Settings
	settingsStore *config.Store
	bounds      capture.Bounds

	transport *transport.Transport
	capture   *capture.Capture
	injector  *inject.Injector
	clip      *clipboard.Bridge

	batch        map[peer.Id][]codec.InputEvent
	batchFlusher *time.Ticker
	flusherDone  chan struct{}

	heartbeatTicker *time.Ticker
	heartbeatDone   chan struct{}

	failsafeTimer   *time.Timer
	failsafeArmedAt time.Time
	failsafeGen     uint64
	rearmedOnce     bool

	cooldownUntil time.Time
}

// Deps bundles the components the Controller wires together, built by
// the caller (the out-of-scope launcher) and handed in fully
// constructed.
type Deps struct {
	SelfID      peer.Id
	SelfName    string
	Peers       *peer.Store
	Arrangement *arrangement.Arrangement
	Settings    config.Settings
	SettingsStore *config.Store
	Transport   *transport.Transport
	Capture     *capture.Capture
	Injector    *inject.Injector
	Clipboard   *clipboard.Bridge
	Log         zerolog.Logger
}

func New(d Deps) *Controller {
	c := &Controller{
		log:           d.Log.With().Str("component", "controller").Logger(),
		selfID:        d.SelfID,
		selfName:      d.SelfName,
		state:         control.NewLocal(),
		status:        StatusRunning,
		peers:         d.Peers,
		arrangement:   d.Arrangement,
		settings:      d.Settings,
		settingsStore: d.SettingsStore,
		transport:     d.Transport,
		capture:       d.Capture,
		injector:      d.Injector,
		clip:          d.Clipboard,
		batch:         make(map[peer.Id][]codec.InputEvent),
	}
	return c
}

// Start begins the heartbeat ticker; the batch flusher is started and
// stopped per Controlling session (spec §4.7).
func (c *Controller) Start(ctx context.Context) {
	c.heartbeatTicker = time.NewTicker(HeartbeatInterval)
	c.heartbeatDone = make(chan struct{})
	go func() {
		for {
			select {
			case <-ctx.Done():
				c.heartbeatTicker.Stop()
				return
			case <-c.heartbeatDone:
				c.heartbeatTicker.Stop()
				return
			case <-c.heartbeatTicker.C:
				c.onHeartbeatTick()
			}
		}
	}()
}

func (c *Controller) Stop() {
	if c.heartbeatDone != nil {
		close(c.heartbeatDone)
	}
	c.stopBatchFlusher()
}

// State returns a snapshot of the current ControlState.
func (c *Controller) State() control.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StatusLine returns the current user-visible status string.
func (c *Controller) StatusLine() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.status {
	case StatusRunning, StatusEscaped:
		return string(c.status)
	default:
		return string(c.status) + " " + c.statusOf
	}
}

func (c *Controller) setStatus(s Status, peerName string) {
	c.status = s
	c.statusOf = peerName
}

// SetLocalBounds updates the combined local display bounds consulted
// by edge-distance math and propagates it to Capture and Injection.
func (c *Controller) SetLocalBounds(b capture.Bounds) {
	c.mu.Lock()
	c.bounds = b
	c.mu.Unlock()
	c.capture.SetBounds(b)
	c.injector.SetBounds(inject.Bounds{MinX: b.MinX, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY})
}

// ApplySettings installs new Settings, propagating edge/capture knobs.
func (c *Controller) ApplySettings(s config.Settings) {
	s.Validate()
	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
	c.capture.SetEdgeSettings(capture.EdgeSettings{
		ThresholdPx:      float64(s.EdgeThreshold),
		CornerDeadZonePx: float64(s.CornerDeadZone),
		TransitionDelay:  time.Duration(s.TransitionDelay) * time.Millisecond,
	})
	c.clip.SetEnabled(s.ClipboardSyncEnabled)
}

func (c *Controller) autoConnectEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.AutoConnect
}

func (c *Controller) clipboardSyncEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.ClipboardSyncEnabled
}

// BroadcastClipboard sends a ClipboardUpdate to every connected peer.
// Wired as the ClipboardBridge's Broadcast callback by the launcher.
func (c *Controller) BroadcastClipboard(update codec.ClipboardUpdate) {
	for _, pr := range c.peers.Connected() {
		_ = c.transport.Send(pr.Id(), []codec.InputEvent{update})
	}
}
