// Package clipboard implements the ClipboardBridge from spec §2/§4.7:
// polls the local clipboard, broadcasts changes to connected peers, and
// applies remote updates with a self-update guard so an applied remote
// update never loops back out as a broadcast (spec §8 property 9). The
// actual OS clipboard read/write/change-counter is an external
// collaborator, specified only at the OSClipboard interface below.
package clipboard

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/alexandertomana/MouseShare/codec"
	"github.com/alexandertomana/MouseShare/errkind"
)

const (
	PollInterval = 500 * time.Millisecond
	// MaxSize is the cap from spec §4.7: contents over 10 MiB are
	// dropped locally, never broadcast.
	MaxSize = 10 << 20
)

// OSClipboard is the out-of-scope clipboard boundary.
type OSClipboard interface {
	// Read returns the current contents, a MIME-like tag, and a
	// monotonically increasing change counter the bridge can compare
	// against to detect external changes without re-reading content
	// every tick.
	Read() (blob []byte, mimeTag string, changeCount uint64)
	Write(blob []byte, mimeTag string)
}

// Callbacks is what the Controller consumes from the bridge.
type Callbacks struct {
	// Broadcast sends a ClipboardUpdate to every connected peer.
	Broadcast func(codec.ClipboardUpdate)
}

// Bridge polls os on a ticker and guards against self-triggered loops
// while applying a remote update.
type Bridge struct {
	log zerolog.Logger
	os  OSClipboard
	cb  Callbacks

	enabled       atomic.Bool
	applyingGuard atomic.Bool
	lastSeen      atomic.Uint64
}

func New(log zerolog.Logger, os OSClipboard, cb Callbacks) *Bridge {
	b := &Bridge{log: log.With().Str("component", "clipboard").Logger(), os: os, cb: cb}
	b.enabled.Store(true)
	return b
}

func (b *Bridge) SetEnabled(v bool) { b.enabled.Store(v) }

// Run polls until ctx is canceled.
func (b *Bridge) Run(ctx context.Context) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.poll()
		}
	}
}

func (b *Bridge) poll() {
	if !b.enabled.Load() || b.applyingGuard.Load() {
		return
	}
	blob, mime, count := b.os.Read()
	if count == b.lastSeen.Load() {
		return
	}
	b.lastSeen.Store(count)

	if len(blob) > MaxSize {
		b.log.Warn().Err(errkind.New(errkind.ClipboardTooLarge, "local clipboard contents exceed MaxSize")).
			Int("size", len(blob)).Msg("dropping clipboard broadcast")
		return
	}
	if b.cb.Broadcast != nil {
		b.cb.Broadcast(codec.NewClipboardUpdate(blob, mime))
	}
}

// ApplyRemote writes a received ClipboardUpdate to the local
// clipboard under the self-update guard, so the next poll tick does
// not re-broadcast it.
func (b *Bridge) ApplyRemote(update codec.ClipboardUpdate) {
	if !b.enabled.Load() {
		return
	}
	if len(update.Blob) > MaxSize {
		b.log.Warn().Err(errkind.New(errkind.ClipboardTooLarge, "remote clipboard update exceeds MaxSize")).
			Int("size", len(update.Blob)).Msg("dropping remote clipboard update")
		return
	}
	b.applyingGuard.Store(true)
	defer b.applyingGuard.Store(false)
	b.os.Write(update.Blob, update.MimeTag)
	// Record the change counter the write itself produced, so the next
	// poll tick doesn't see our own write as an external change to
	// rebroadcast.
	_, _, count := b.os.Read()
	b.lastSeen.Store(count)
}
