package traceout

import "sort"

// Stat aggregates all records sharing one range name.
type Stat struct {
	Name    string
	Count   int
	TotalUS float64
	AvgUS   float64
	MaxUS   float64
}

// Summarize groups records by name and returns per-name statistics ordered
// by total time, most expensive first.
func Summarize(records []Record) []Stat {
	byName := make(map[string]*Stat)
	order := make([]string, 0, 16)
	for _, r := range records {
		st := byName[r.Name]
		if st == nil {
			st = &Stat{Name: r.Name}
			byName[r.Name] = st
			order = append(order, r.Name)
		}
		st.Count++
		st.TotalUS += r.DurUS
		if r.DurUS > st.MaxUS {
			st.MaxUS = r.DurUS
		}
	}

	out := make([]Stat, 0, len(order))
	for _, name := range order {
		st := byName[name]
		st.AvgUS = st.TotalUS / float64(st.Count)
		out = append(out, *st)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalUS > out[j].TotalUS })
	return out
}
