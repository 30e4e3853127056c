// Package arrangement is a pure model of the virtual 2-D layout of local
// and remote screens: no I/O, no OS calls. It answers which peer sits on
// a given edge and where an exit point on one screen maps to an entry
// point on another.
package arrangement

import (
	"sync"

	"github.com/alexandertomana/MouseShare/peer"
)

type Edge int

const (
	Left Edge = iota
	Right
	Top
	Bottom
)

func (e Edge) String() string {
	switch e {
	case Left:
		return "left"
	case Right:
		return "right"
	case Top:
		return "top"
	case Bottom:
		return "bottom"
	default:
		return "unknown"
	}
}

// Opposite returns the edge a peer on the other side of this one would
// see the crossing from: e.g. our Left is their Right.
func (e Edge) Opposite() Edge {
	switch e {
	case Left:
		return Right
	case Right:
		return Left
	case Top:
		return Bottom
	case Bottom:
		return Top
	default:
		return e
	}
}

func (e Edge) isHorizontal() bool { return e == Left || e == Right }

// adjacencyTolerance (τ) bounds both the perpendicular gap allowed
// between two screens and the minimum parallel-axis overlap required
// for them to count as adjacent on an edge. ~50 virtual px, matching
// the source's adjacency slack.
const adjacencyTolerance = 50.0

// ArrangedScreen is one entry in the virtual layout: a local display or
// a remote peer's advertised screen, placed in shared virtual
// coordinates (primary local display normalized to (0,0), Y downward).
type ArrangedScreen struct {
	ID      string
	Name    string
	X, Y    float64
	W, H    float64
	IsLocal bool
	PeerID  peer.Id // zero value when unresolved (no peerId bound yet)
}

func (s ArrangedScreen) hasPeer() bool { return !s.PeerID.IsZero() }

// rect returns the screen's bounds in virtual coordinates as
// (xMin, xMax, yMin, yMax).
func (s ArrangedScreen) rect() (xMin, xMax, yMin, yMax float64) {
	return s.X, s.X + s.W, s.Y, s.Y + s.H
}

// Arrangement is the ordered, mutable set of ArrangedScreens for one
// host. Owned by the Controller; read by Capture (edge rules) and
// Transport (screen dimensions for the handshake).
type Arrangement struct {
	mu      sync.RWMutex
	screens []ArrangedScreen

	// legacyLinks is the compatibility fallback from spec §9: an
	// explicit edge -> peer binding consulted only when no geometric
	// adjacency is found. Arrangement-based lookup is authoritative.
	legacyLinks map[Edge]peer.Id
}

func New() *Arrangement {
	return &Arrangement{legacyLinks: make(map[Edge]peer.Id)}
}

// Display describes one local OS display, as enumerated by the
// out-of-scope Display collaborator.
type Display struct {
	ID            string
	X, Y          int
	W, H          int
	IsPrimary     bool
}

// InitializeLocalDisplays (re)populates the local screens from the OS
// display list, normalizing the primary display to (0,0). Existing
// remote screens are left untouched.
func (a *Arrangement) InitializeLocalDisplays(displays []Display) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var originX, originY int
	for _, d := range displays {
		if d.IsPrimary {
			originX, originY = d.X, d.Y
			break
		}
	}

	kept := make([]ArrangedScreen, 0, len(a.screens))
	for _, s := range a.screens {
		if !s.IsLocal {
			kept = append(kept, s)
		}
	}
	for _, d := range displays {
		kept = append(kept, ArrangedScreen{
			ID:      d.ID,
			Name:    d.ID,
			X:       float64(d.X - originX),
			Y:       float64(d.Y - originY),
			W:       float64(d.W),
			H:       float64(d.H),
			IsLocal: true,
		})
	}
	a.screens = kept
}

// UpdateRemoteScreen inserts or updates a remote screen for a peer.
// Keyed first by peerId, falling back to name, to tolerate transient
// id churn across reconnects before the peer id is confirmed.
func (a *Arrangement) UpdateRemoteScreen(id peer.Id, name string, w, h int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.screens {
		s := &a.screens[i]
		if s.IsLocal {
			continue
		}
		if s.PeerID == id || (s.PeerID.IsZero() && s.Name == name) {
			s.PeerID = id
			s.Name = name
			s.W, s.H = float64(w), float64(h)
			return
		}
	}
	a.screens = append(a.screens, ArrangedScreen{
		ID:     id.String(),
		Name:   name,
		PeerID: id,
		W:      float64(w),
		H:      float64(h),
	})
}

// RemoveStaleRemoteScreens deletes remote screens that are unresolved or
// whose peer id is no longer in the connected set.
func (a *Arrangement) RemoveStaleRemoteScreens(connected map[peer.Id]bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.screens[:0:0]
	for _, s := range a.screens {
		if s.IsLocal {
			kept = append(kept, s)
			continue
		}
		if s.hasPeer() && connected[s.PeerID] {
			kept = append(kept, s)
		}
	}
	a.screens = kept
}

// UpdatePosition repositions a screen, e.g. after a user drag in the
// (out-of-scope) settings UI.
func (a *Arrangement) UpdatePosition(id string, x, y float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.screens {
		if a.screens[i].ID == id {
			a.screens[i].X, a.screens[i].Y = x, y
			return
		}
	}
}

// BindLegacyLink records an explicit edge -> peer binding, used for
// auto-linking persistence and as the compatibility fallback.
func (a *Arrangement) BindLegacyLink(edge Edge, id peer.Id) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.legacyLinks[edge] = id
}

func (a *Arrangement) Screens() []ArrangedScreen {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]ArrangedScreen, len(a.screens))
	copy(out, a.screens)
	return out
}

// adjacent reports whether b sits adjacent to a on edge E of a: the gap
// between them along E's perpendicular axis is within tolerance, and
// their extents overlap along the parallel axis by more than tolerance.
func adjacent(a, b ArrangedScreen, e Edge) bool {
	aXMin, aXMax, aYMin, aYMax := a.rect()
	bXMin, bXMax, bYMin, bYMax := b.rect()

	var gap float64
	switch e {
	case Left:
		gap = aXMin - bXMax
	case Right:
		gap = bXMin - aXMax
	case Top:
		gap = aYMin - bYMax
	case Bottom:
		gap = bYMin - aYMax
	}
	if gap < -adjacencyTolerance || gap > adjacencyTolerance {
		return false
	}

	if e.isHorizontal() {
		overlap := min(aYMax, bYMax) - max(aYMin, bYMin)
		return overlap > adjacencyTolerance
	}
	overlap := min(aXMax, bXMax) - max(aXMin, bXMin)
	return overlap > adjacencyTolerance
}

// PeerForEdge iterates local screens; for each, finds a remote screen
// adjacent on edge E and returns its peer id. The first match in
// iteration order wins when multiple remotes qualify. Falls back to the
// legacy explicit link table only when no geometric adjacency exists.
func (a *Arrangement) PeerForEdge(e Edge) (peer.Id, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, local := range a.screens {
		if !local.IsLocal {
			continue
		}
		for _, remote := range a.screens {
			if remote.IsLocal || !remote.hasPeer() {
				continue
			}
			if adjacent(local, remote, e) {
				return remote.PeerID, true
			}
		}
	}
	if id, ok := a.legacyLinks[e]; ok {
		return id, true
	}
	return peer.Id{}, false
}

// ComputeEntryPosition maps a normalized exit point on source's edge
// to a normalized entry point on target, per spec §4.6. edge is the
// edge of source the cursor exited through (source is adjacent to
// target along edge's axis).
func ComputeEntryPosition(exitPoint float64, source, target ArrangedScreen, edge Edge) float64 {
	var sourceOrigin, sourceExtent, targetOrigin, targetExtent float64
	var overlapMin, overlapMax float64

	sXMin, sXMax, sYMin, sYMax := source.rect()
	tXMin, tXMax, tYMin, tYMax := target.rect()

	if edge.isHorizontal() {
		// Crossing a left/right edge: the shared axis is Y.
		sourceOrigin, sourceExtent = sYMin, sYMax-sYMin
		targetOrigin, targetExtent = tYMin, tYMax-tYMin
		overlapMin, overlapMax = max(sYMin, tYMin), min(sYMax, tYMax)
	} else {
		// Crossing a top/bottom edge: the shared axis is X. Always use
		// the parallel-axis normalized coordinate here — do not
		// degenerate to a constant 0.5 the way one of the source's two
		// code paths does.
		sourceOrigin, sourceExtent = sXMin, sXMax-sXMin
		targetOrigin, targetExtent = tXMin, tXMax-tXMin
		overlapMin, overlapMax = max(sXMin, tXMin), min(sXMax, tXMax)
	}

	if overlapMax <= overlapMin || targetExtent == 0 {
		return 0.5
	}

	a := sourceOrigin + exitPoint*sourceExtent
	switch {
	case a < overlapMin:
		a = overlapMin
	case a > overlapMax:
		a = overlapMax
	}
	rel := (a - targetOrigin) / targetExtent
	if rel < 0 {
		rel = 0
	}
	if rel > 1 {
		rel = 1
	}
	return rel
}
