package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandertomana/MouseShare/codec"
	"github.com/alexandertomana/MouseShare/peer"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

type connectedEvent struct {
	id      peer.Id
	name    string
	w, h    int
}

func newCollector() (Callbacks, *sync.Mutex, *[]connectedEvent, *[]codec.InputEvent) {
	var mu sync.Mutex
	var connected []connectedEvent
	var events []codec.InputEvent
	cb := Callbacks{
		OnConnected: func(id peer.Id, name string, w, h int, _ *Conn) {
			mu.Lock()
			connected = append(connected, connectedEvent{id, name, w, h})
			mu.Unlock()
		},
		OnEvents: func(id peer.Id, seq uint32, evs []codec.InputEvent) {
			mu.Lock()
			events = append(events, evs...)
			mu.Unlock()
		},
	}
	return cb, &mu, &connected, &events
}

func TestDialCompletesHandshakeAndDeliversEvents(t *testing.T) {
	port := freePort(t)

	serverID := peer.NewId()
	clientID := peer.NewId()

	serverCB, serverMu, serverConnected, serverEvents := newCollector()
	server := New(zerolog.Nop(), Identity{PeerID: serverID, PeerName: "server", ScreenW: 1920, ScreenH: 1080}, serverCB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Listen(ctx, port)
	time.Sleep(50 * time.Millisecond)

	clientCB, _, clientConnected, _ := newCollector()
	client := New(zerolog.Nop(), Identity{PeerID: clientID, PeerName: "client", ScreenW: 1280, ScreenH: 720}, clientCB)

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dialCancel()
	err := client.Dial(dialCtx, serverID, fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		serverMu.Lock()
		defer serverMu.Unlock()
		return len(*serverConnected) == 1
	}, time.Second, 10*time.Millisecond)

	serverMu.Lock()
	got := (*serverConnected)[0]
	serverMu.Unlock()
	assert.Equal(t, clientID, got.id)
	assert.Equal(t, "client", got.name)
	assert.Equal(t, 1280, got.w)

	require.Len(t, *clientConnected, 1)
	assert.Equal(t, serverID, (*clientConnected)[0].id)

	require.NoError(t, client.Send(serverID, []codec.InputEvent{codec.NewMouseMove(5, -3, 0)}))

	require.Eventually(t, func() bool {
		serverMu.Lock()
		defer serverMu.Unlock()
		return len(*serverEvents) == 1
	}, time.Second, 10*time.Millisecond)

	serverMu.Lock()
	mv, ok := (*serverEvents)[0].(codec.MouseMove)
	serverMu.Unlock()
	require.True(t, ok)
	assert.Equal(t, 5.0, mv.DX)

	server.Close()
	client.Close()
}

func TestConnFeedsPeerLinkQualityCounters(t *testing.T) {
	port := freePort(t)

	serverID := peer.NewId()
	clientID := peer.NewId()

	serverPeer := peer.New(clientID, "client", peer.Endpoint{})
	clientPeer := peer.New(serverID, "server", peer.Endpoint{})

	serverCB := Callbacks{OnConnected: func(id peer.Id, name string, w, h int, c *Conn) { c.SetPeer(serverPeer) }}
	server := New(zerolog.Nop(), Identity{PeerID: serverID, PeerName: "server", ScreenW: 1920, ScreenH: 1080}, serverCB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Listen(ctx, port)
	time.Sleep(50 * time.Millisecond)

	clientCB := Callbacks{OnConnected: func(id peer.Id, name string, w, h int, c *Conn) { c.SetPeer(clientPeer) }}
	client := New(zerolog.Nop(), Identity{PeerID: clientID, PeerName: "client", ScreenW: 1280, ScreenH: 720}, clientCB)

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dialCancel()
	require.NoError(t, client.Dial(dialCtx, serverID, fmt.Sprintf("127.0.0.1:%d", port)))

	require.NoError(t, client.Send(serverID, []codec.InputEvent{codec.NewMouseMove(1, 1, 0)}))

	require.Eventually(t, func() bool {
		return serverPeer.Link().PacketsReceived == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(1), clientPeer.Link().PacketsSent)

	server.Close()
	client.Close()
}

func TestSendToUnknownPeerReturnsError(t *testing.T) {
	tr := New(zerolog.Nop(), Identity{PeerID: peer.NewId(), PeerName: "a"}, Callbacks{})
	err := tr.Send(peer.NewId(), []codec.InputEvent{codec.NewHeartbeat()})
	assert.Error(t, err)
}

func TestDialToNothingListeningFails(t *testing.T) {
	tr := New(zerolog.Nop(), Identity{PeerID: peer.NewId(), PeerName: "a"}, Callbacks{})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := tr.Dial(ctx, peer.NewId(), "127.0.0.1:1")
	assert.Error(t, err)
}
