// Package prof wraps the Go runtime's own profilers for the fathom process
// itself. This is profiling of the tool, not of the traced workload; the
// workload goes through the profiler package.
package prof

import (
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Options selects which host profiles to collect. Empty paths disable the
// corresponding profile.
type Options struct {
	CPUPath   string
	MemPath   string
	TracePath string
}

// Session holds the open profile files between Start and Stop.
type Session struct {
	opts      Options
	cpuFile   *os.File
	traceFile *os.File
}

// Start opens the requested profiles. On error every profile already
// started is stopped again, so a failed Start leaves nothing running.
func Start(opts Options) (*Session, error) {
	s := &Session{opts: opts}

	if opts.CPUPath != "" {
		f, err := os.Create(opts.CPUPath)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, err
		}
		s.cpuFile = f
	}

	if opts.TracePath != "" {
		f, err := os.Create(opts.TracePath)
		if err != nil {
			s.stopCPU()
			return nil, err
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			s.stopCPU()
			return nil, err
		}
		s.traceFile = f
	}

	return s, nil
}

// Stop ends all active profiles and writes the heap profile if one was
// requested. Safe to call more than once.
func (s *Session) Stop() error {
	if s == nil {
		return nil
	}
	if s.traceFile != nil {
		trace.Stop()
		_ = s.traceFile.Close()
		s.traceFile = nil
	}
	s.stopCPU()

	if s.opts.MemPath != "" {
		path := s.opts.MemPath
		s.opts.MemPath = ""
		return writeMem(path)
	}
	return nil
}

func (s *Session) stopCPU() {
	if s.cpuFile != nil {
		pprof.StopCPUProfile()
		_ = s.cpuFile.Close()
		s.cpuFile = nil
	}
}

func writeMem(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
