package profiler

// EventList is the append-only event buffer of one goroutine within one
// session. The owning session's mutex guards all access.
type EventList struct {
	events []Event
}

func (l *EventList) append(ev Event) {
	l.events = append(l.events, ev)
}

// Len returns the number of recorded events.
func (l *EventList) Len() int {
	return len(l.events)
}

// ThreadEvents is one goroutine's consolidated event sequence, in record
// order.
type ThreadEvents struct {
	GID    uint64
	Events []Event
}

// Trace is the consolidated result of one session: per-goroutine event
// sequences. Order within a thread is record order; no ordering holds
// across threads.
type Trace struct {
	Threads []ThreadEvents
}

// Empty reports whether the trace holds no events at all.
func (t Trace) Empty() bool {
	for _, th := range t.Threads {
		if len(th.Events) > 0 {
			return false
		}
	}
	return true
}

// EventCount returns the total number of events across all threads.
func (t Trace) EventCount() int {
	n := 0
	for _, th := range t.Threads {
		n += len(th.Events)
	}
	return n
}
