// Package discovery publishes and observes mDNS service records
// carrying peer identity and screen dimensions, via
// github.com/libp2p/zeroconf/v2 — the mDNS library the retrieval pack
// converges on (shurlinet-shurli, petervdpas-goop2, galargh-go-libp2p
// and others all depend on it for LAN peer discovery).
package discovery

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/libp2p/zeroconf/v2"
	"github.com/rs/zerolog"

	"github.com/alexandertomana/MouseShare/errkind"
	"github.com/alexandertomana/MouseShare/peer"
)

// ServiceType is the DNS-SD service type from spec §6.
const ServiceType = "_mouseshare._tcp"

const serviceDomain = "local."

// DefaultPort is the fixed listener port from spec §4.2/§6.
const DefaultPort = 24801

const (
	browseInterval = 30 * time.Second
	browseTimeout  = 10 * time.Second
	listenerBackoff = 2 * time.Second
)

// Info is what one discovered or self-advertised record carries.
type Info struct {
	ID     peer.Id
	Name   string
	Version string
	Width  int
	Height int
	Addr   string // host:port the peer answered from
}

// Callbacks is the set of events the Controller consumes from
// Discovery (spec §4.2: peer-added / peer-updated / peer-lost).
type Callbacks struct {
	OnPeerAdded   func(Info)
	OnPeerUpdated func(Info)
	OnPeerLost    func(peer.Id)
}

// Discovery owns the mDNS server (advertise) and resolver (browse)
// for one host.
type Discovery struct {
	log      zerolog.Logger
	selfID   peer.Id
	selfName string
	cb       Callbacks

	mu      sync.Mutex
	server  *zeroconf.Server
	seen    map[peer.Id]time.Time // last time each peer's record was observed
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(log zerolog.Logger, selfID peer.Id, selfName string, cb Callbacks) *Discovery {
	return &Discovery{
		log:      log.With().Str("component", "discovery").Logger(),
		selfID:   selfID,
		selfName: selfName,
		cb:       cb,
		seen:     make(map[peer.Id]time.Time),
	}
}

// Start advertises this host's record and begins the periodic browse
// loop. Listener (advertise) failures are retried with a fixed 2s
// backoff, per spec §4.2; browse failures are logged and retried on
// the next tick.
func (d *Discovery) Start(ctx context.Context, width, height int) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go d.advertiseLoop(ctx, width, height)

	d.wg.Add(1)
	go d.browseLoop(ctx)

	return nil
}

func (d *Discovery) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.mu.Lock()
	if d.server != nil {
		d.server.Shutdown()
		d.server = nil
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Discovery) advertiseLoop(ctx context.Context, width, height int) {
	defer d.wg.Done()

	for {
		server, err := zeroconf.Register(
			d.selfName,
			ServiceType,
			serviceDomain,
			DefaultPort,
			[]string{
				"id=" + d.selfID.String(),
				"name=" + d.selfName,
				"version=1.0",
				"width=" + strconv.Itoa(width),
				"height=" + strconv.Itoa(height),
			},
			nil,
		)
		if err != nil {
			d.log.Error().Err(errkind.Wrap(errkind.DiscoveryFailed, "mdns register failed", err)).Msg("advertise failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(listenerBackoff):
				continue
			}
		}

		d.mu.Lock()
		d.server = server
		d.mu.Unlock()

		<-ctx.Done()
		server.Shutdown()
		return
	}
}

func (d *Discovery) browseLoop(ctx context.Context) {
	defer d.wg.Done()

	// Let the advertise side bind first so our own record is filterable.
	select {
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
		return
	}

	d.runBrowse(ctx)
	ticker := time.NewTicker(browseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runBrowse(ctx)
		}
	}
}

func (d *Discovery) runBrowse(ctx context.Context) {
	browseCtx, cancel := context.WithTimeout(ctx, browseTimeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		d.log.Error().Err(err).Msg("failed to create mdns resolver")
		return
	}

	entries := make(chan *zeroconf.ServiceEntry, 16)
	go func() {
		for entry := range entries {
			d.handleEntry(entry)
		}
	}()

	if err := resolver.Browse(browseCtx, ServiceType, serviceDomain, entries); err != nil {
		d.log.Debug().Err(err).Msg("mdns browse round ended")
	}
	<-browseCtx.Done()
	d.expireStale()
}

func (d *Discovery) handleEntry(entry *zeroconf.ServiceEntry) {
	info, ok := parseTXT(entry)
	if !ok {
		return
	}
	// Self-record filtering by id and by name, per spec §4.2.
	if info.ID == d.selfID || info.Name == d.selfName {
		return
	}

	d.mu.Lock()
	_, existed := d.seen[info.ID]
	d.seen[info.ID] = time.Now()
	d.mu.Unlock()

	if existed {
		if d.cb.OnPeerUpdated != nil {
			d.cb.OnPeerUpdated(info)
		}
	} else if d.cb.OnPeerAdded != nil {
		d.cb.OnPeerAdded(info)
	}
}

// expireStale withdraws peers whose record was not re-observed in the
// last two browse intervals — duplicate records across interfaces
// refresh the same peer's timestamp, so only a genuinely absent record
// ages out.
func (d *Discovery) expireStale() {
	cutoff := time.Now().Add(-2 * browseInterval)
	var lost []peer.Id

	d.mu.Lock()
	for id, last := range d.seen {
		if last.Before(cutoff) {
			delete(d.seen, id)
			lost = append(lost, id)
		}
	}
	d.mu.Unlock()

	for _, id := range lost {
		if d.cb.OnPeerLost != nil {
			d.cb.OnPeerLost(id)
		}
	}
}

func parseTXT(entry *zeroconf.ServiceEntry) (Info, bool) {
	fields := map[string]string{}
	for _, kv := range entry.Text {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				fields[kv[:i]] = kv[i+1:]
				break
			}
		}
	}

	idStr, ok := fields["id"]
	if !ok {
		return Info{}, false
	}
	id, err := peer.ParseId(idStr)
	if err != nil {
		return Info{}, false
	}

	width, _ := strconv.Atoi(fields["width"])
	height, _ := strconv.Atoi(fields["height"])

	addr := ""
	if len(entry.AddrIPv4) > 0 {
		addr = fmt.Sprintf("%s:%d", entry.AddrIPv4[0].String(), entry.Port)
	} else if len(entry.AddrIPv6) > 0 {
		addr = fmt.Sprintf("[%s]:%d", entry.AddrIPv6[0].String(), entry.Port)
	}

	return Info{
		ID:      id,
		Name:    fields["name"],
		Version: fields["version"],
		Width:   width,
		Height:  height,
		Addr:    addr,
	}, true
}
