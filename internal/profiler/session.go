package profiler

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"fathom/internal/ambient"
	"fathom/internal/devtime"
)

// Session boundary marker names. The exporter keys on the start marker to
// anchor all offsets; the double-underscore prefix keeps them out of user
// namespace.
const (
	StartMarkName  = "__start_profile"
	StopMarkName   = "__stop_profile"
	WarmupMarkName = "__cuda_startup"
	DeviceMarkName = "__cuda_start_event"
)

// session is the state of one enable-to-disable lifetime. It owns its
// per-goroutine event lists; nested sessions never share state. One short-
// held mutex guards the list map and appends.
type session struct {
	cfg     Config
	backend devtime.Backend

	mu    sync.Mutex
	lists map[uint64]*EventList
}

func newSession(cfg Config, backend devtime.Backend) *session {
	return &session{
		cfg:     cfg,
		backend: backend,
		lists:   make(map[uint64]*EventList),
	}
}

// eventList returns the calling goroutine's list, creating it on first use.
// Callers hold s.mu.
func (s *session) eventList(gid uint64) *EventList {
	l := s.lists[gid]
	if l == nil {
		l = &EventList{}
		s.lists[gid] = l
	}
	return l
}

// mark records a single point-in-time event, or forwards it to the device
// tool in NVTX mode.
func (s *session) mark(name string, includeDevice bool) {
	if s.cfg.State == Disabled {
		return
	}
	if s.cfg.State == NVTX {
		s.backend.PointMark(name)
		return
	}

	ev := Event{Kind: Mark, Name: name, GID: ambient.GoroutineID()}
	ev.record(s.backend, includeDevice && s.cfg.State == CUDA)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventList(ev.GID).append(ev)
}

// pushRange records a range entry. msg and seq compose the optional
// sequence suffix; shapes is non-nil only when the session reports input
// shapes.
func (s *session) pushRange(name, msg string, seq int64, shapes [][]int64) {
	if s.cfg.State == Disabled {
		return
	}
	if s.cfg.State == NVTX {
		s.backend.BeginRange(nvtxMessage(name, msg, seq, shapes))
		return
	}

	ev := Event{Kind: PushRange, Name: name, GID: ambient.GoroutineID(), Shapes: shapes}
	ev.record(s.backend, s.cfg.State == CUDA)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventList(ev.GID).append(ev)
}

// popRange records the matching range exit. Pops carry no name; pairing is
// positional within the goroutine's list.
func (s *session) popRange() {
	if s.cfg.State == Disabled {
		return
	}
	if s.cfg.State == NVTX {
		s.backend.EndRange()
		return
	}

	ev := Event{Kind: PopRange, GID: ambient.GoroutineID()}
	ev.record(s.backend, s.cfg.State == CUDA)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventList(ev.GID).append(ev)
}

// consolidate drains the per-goroutine lists into a Trace. Destructive: the
// session's map is cleared and further recording through this session is
// lost. Threads are ordered by goroutine ID for deterministic output; only
// within-thread order is meaningful.
func (s *session) consolidate() Trace {
	s.mu.Lock()
	defer s.mu.Unlock()

	gids := make([]uint64, 0, len(s.lists))
	for gid := range s.lists {
		gids = append(gids, gid)
	}
	sort.Slice(gids, func(i, j int) bool { return gids[i] < gids[j] })

	tr := Trace{Threads: make([]ThreadEvents, 0, len(gids))}
	for _, gid := range gids {
		tr.Threads = append(tr.Threads, ThreadEvents{GID: gid, Events: s.lists[gid].events})
	}
	s.lists = make(map[uint64]*EventList)
	return tr
}

// nvtxMessage renders the range message the device tool receives: the name,
// an optional sequence suffix, and the observed input shapes with absent
// shapes rendered as an empty bracket pair.
func nvtxMessage(name, msg string, seq int64, shapes [][]int64) string {
	if seq < 0 && len(shapes) == 0 {
		return name
	}

	var sb strings.Builder
	sb.WriteString(name)
	if seq >= 0 {
		sb.WriteString(msg)
		sb.WriteString(strconv.FormatInt(seq, 10))
	}
	if len(shapes) > 0 {
		sb.WriteString(", sizes = [")
		for i, shape := range shapes {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("[")
			for dim, size := range shape {
				if dim > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(strconv.FormatInt(size, 10))
			}
			sb.WriteString("]")
		}
		sb.WriteString("]")
	}
	return sb.String()
}
