package traceout

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when the payload format changes
const binarySchemaVersion uint16 = 1

// binaryPayload is the on-disk shape of a .ftrace file.
type binaryPayload struct {
	Schema  uint16
	Records []Record
}

// WriteBinary encodes records in the compact .ftrace binary format.
func WriteBinary(w io.Writer, records []Record) error {
	enc := msgpack.NewEncoder(w)
	return enc.Encode(&binaryPayload{
		Schema:  binarySchemaVersion,
		Records: records,
	})
}

// ReadBinary decodes a .ftrace payload, rejecting unknown schema versions.
func ReadBinary(r io.Reader) ([]Record, error) {
	var payload binaryPayload
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode trace payload: %w", err)
	}
	if payload.Schema != binarySchemaVersion {
		return nil, fmt.Errorf("unsupported trace schema version %d (want %d)",
			payload.Schema, binarySchemaVersion)
	}
	return payload.Records, nil
}

// ExportBinary writes records to path atomically via a temp file rename.
func ExportBinary(path string, records []Record) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := WriteBinary(f, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// LoadBinary reads records back from a .ftrace file.
func LoadBinary(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := ReadBinary(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}
