package profiler

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// FileConfig is the on-disk profiler configuration, the [profiler] section
// of a fathom.toml:
//
//	[profiler]
//	mode = "cpu"                # off|cpu|cuda|nvtx
//	report_input_shapes = true
//	warmup_events = 5
//	output = "trace.json"
type FileConfig struct {
	Mode              string `toml:"mode"`
	ReportInputShapes bool   `toml:"report_input_shapes"`
	WarmupEvents      int    `toml:"warmup_events"`
	Output            string `toml:"output"`
}

type configFile struct {
	Profiler FileConfig `toml:"profiler"`
}

// LoadConfig parses the [profiler] section of the TOML file at path and
// returns the session config plus the configured output path (empty when
// unset). A missing section yields a disabled config, not an error.
func LoadConfig(path string) (Config, string, error) {
	var file configFile
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return Config{}, "", fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("profiler") {
		return Config{State: Disabled}, "", nil
	}

	state := Disabled
	if file.Profiler.Mode != "" {
		state, err = ParseState(file.Profiler.Mode)
		if err != nil {
			return Config{}, "", fmt.Errorf("%s: %w", path, err)
		}
	}
	cfg := Config{
		State:             state,
		ReportInputShapes: file.Profiler.ReportInputShapes,
		WarmupEvents:      file.Profiler.WarmupEvents,
	}
	return cfg, file.Profiler.Output, nil
}
