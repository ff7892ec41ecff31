package traceout

import (
	"errors"
	"sort"

	"fortio.org/safecast"

	"fathom/internal/devtime"
	"fathom/internal/profiler"
)

// ErrMissingStartMark means the trace carries no session start marker, so
// there is no time zero to anchor record offsets against.
var ErrMissingStartMark = errors.New("traceout: trace has no start marker")

// Record is one completed range, flattened out of a trace's push/pop pairs.
// Times are microseconds relative to the session start marker.
type Record struct {
	Name    string    `msgpack:"name" json:"name"`
	StartUS float64   `msgpack:"start_us" json:"start_us"`
	DurUS   float64   `msgpack:"dur_us" json:"dur_us"`
	GID     int64     `msgpack:"gid" json:"gid"`
	Shapes  [][]int64 `msgpack:"shapes,omitempty" json:"shapes,omitempty"`
}

// Records pairs each trace thread's push and pop events into flat duration
// records, ordered by start time. Durations come from the device backend
// when both ends of a range carry handles on the same device, and from the
// CPU clock otherwise. Ranges still open at the end of the trace, and pops
// with no matching push, are dropped.
func Records(tr profiler.Trace, b devtime.Backend) ([]Record, error) {
	var anchor *profiler.Event
	for ti := range tr.Threads {
		for i := range tr.Threads[ti].Events {
			ev := &tr.Threads[ti].Events[i]
			if ev.Kind == profiler.Mark && ev.Name == profiler.StartMarkName {
				anchor = ev
				break
			}
		}
		if anchor != nil {
			break
		}
	}
	if anchor == nil {
		return nil, ErrMissingStartMark
	}

	var out []Record
	for ti := range tr.Threads {
		th := &tr.Threads[ti]
		gid, err := safecast.Conv[int64](th.GID)
		if err != nil {
			return nil, err
		}

		var open []*profiler.Event
		for i := range th.Events {
			ev := &th.Events[i]
			switch ev.Kind {
			case profiler.PushRange:
				open = append(open, ev)
			case profiler.PopRange:
				if len(open) == 0 {
					continue
				}
				push := open[len(open)-1]
				open = open[:len(open)-1]

				dur := profiler.CPUElapsedUS(push, ev)
				if push.HasDevice() && ev.HasDevice() && push.Device == ev.Device {
					d, err := profiler.DeviceElapsedUS(b, push, ev)
					if err != nil {
						return nil, err
					}
					dur = d
				}
				out = append(out, Record{
					Name:    push.Name,
					StartUS: profiler.CPUElapsedUS(anchor, push),
					DurUS:   dur,
					GID:     gid,
					Shapes:  push.Shapes,
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartUS != out[j].StartUS {
			return out[i].StartUS < out[j].StartUS
		}
		return out[i].GID < out[j].GID
	})
	return out, nil
}
