package traceout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// chromeEvent is one complete-duration entry in the trace-viewer JSON array.
// The viewer groups by pid then tid, so every record lands under one "CPU
// Functions" process with the goroutine as the thread lane.
type chromeEvent struct {
	Name string   `json:"name"`
	Ph   string   `json:"ph"`
	Ts   float64  `json:"ts"`
	Dur  float64  `json:"dur"`
	Tid  int64    `json:"tid"`
	Pid  string   `json:"pid"`
	Args struct{} `json:"args"`
}

// WriteChrome writes records as a Chrome trace-viewer JSON array. Open the
// result at chrome://tracing or ui.perfetto.dev.
func WriteChrome(w io.Writer, records []Record) error {
	if _, err := io.WriteString(w, "[\n"); err != nil {
		return err
	}
	firstEvent := true
	for _, r := range records {
		if !firstEvent {
			if _, err := io.WriteString(w, ",\n"); err != nil {
				return err
			}
		}
		firstEvent = false

		data, err := json.Marshal(chromeEvent{
			Name: r.Name,
			Ph:   "X",
			Ts:   r.StartUS,
			Dur:  r.DurUS,
			Tid:  r.GID,
			Pid:  "CPU Functions",
		})
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n]\n")
	return err
}

// ExportChrome writes records to a trace-viewer JSON file at path.
func ExportChrome(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}
	if err := WriteChrome(f, records); err != nil {
		f.Close()
		return fmt.Errorf("failed to write trace file: %w", err)
	}
	return f.Close()
}
