package traceout

import (
	"fmt"
	"strings"

	"fathom/internal/devtime"
	"fathom/internal/profiler"
)

// StartRecording enables a profiling session on p and returns a closer that
// disables it and writes the resulting records to path. The extension picks
// the format: .ftrace gets the binary encoding, anything else trace-viewer
// JSON. A nil backend defers to the process-wide devtime registration.
func StartRecording(p *profiler.Profiler, cfg profiler.Config, b devtime.Backend, path string) (func() error, error) {
	if err := p.Enable(cfg); err != nil {
		return nil, err
	}
	return func() error {
		tr, err := p.Disable()
		if err != nil {
			return err
		}
		// NVTX sessions stream to the device tool and buffer nothing to
		// write here.
		if cfg.State == profiler.NVTX {
			return nil
		}
		backend := b
		if backend == nil {
			backend = devtime.Active()
		}
		records, err := Records(tr, backend)
		if err != nil {
			return fmt.Errorf("failed to flatten trace: %w", err)
		}
		if strings.HasSuffix(path, ".ftrace") {
			return ExportBinary(path, records)
		}
		return ExportChrome(path, records)
	}, nil
}
