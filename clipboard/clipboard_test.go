package clipboard

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandertomana/MouseShare/codec"
)

type fakeOSClipboard struct {
	blob    []byte
	mime    string
	count   uint64
}

func (f *fakeOSClipboard) Read() ([]byte, string, uint64) { return f.blob, f.mime, f.count }
func (f *fakeOSClipboard) Write(blob []byte, mime string) {
	f.blob, f.mime = blob, mime
	f.count++
}

// Property 9: a remote ClipboardUpdate applied locally does not
// trigger a broadcast.
func TestApplyRemoteDoesNotBroadcast(t *testing.T) {
	os := &fakeOSClipboard{count: 1}
	broadcasts := 0
	b := New(zerolog.Nop(), os, Callbacks{Broadcast: func(codec.ClipboardUpdate) { broadcasts++ }})

	b.ApplyRemote(codec.NewClipboardUpdate([]byte("from peer"), "text/plain"))
	b.poll()

	assert.Equal(t, 0, broadcasts)
	assert.Equal(t, []byte("from peer"), os.blob)
}

func TestLocalChangeBroadcasts(t *testing.T) {
	os := &fakeOSClipboard{count: 1}
	var got codec.ClipboardUpdate
	b := New(zerolog.Nop(), os, Callbacks{Broadcast: func(u codec.ClipboardUpdate) { got = u }})

	os.blob, os.mime, os.count = []byte("local copy"), "text/plain", 2
	b.poll()

	require.Equal(t, []byte("local copy"), got.Blob)
}

func TestOversizedClipboardDropped(t *testing.T) {
	os := &fakeOSClipboard{count: 1}
	broadcasts := 0
	b := New(zerolog.Nop(), os, Callbacks{Broadcast: func(codec.ClipboardUpdate) { broadcasts++ }})

	os.blob = make([]byte, MaxSize+1)
	os.count = 2
	b.poll()

	assert.Equal(t, 0, broadcasts)
}
