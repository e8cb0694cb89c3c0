package types

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// WriteSessionLog gzip-compresses and writes a SessionLog to path, the
// wire format spec'd in spec section 6 (UTF-8 JSON, gzip-wrapped).
func WriteSessionLog(path string, log *SessionLog) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create session log %s: %w", path, err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	defer gz.Close()

	enc := json.NewEncoder(gz)
	if err := enc.Encode(log); err != nil {
		return fmt.Errorf("encode session log %s: %w", path, err)
	}
	return nil
}

// ReadSessionLog reads and decompresses a SessionLog from path.
func ReadSessionLog(path string) (*SessionLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session log %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("gzip reader %s: %w", path, err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("read session log %s: %w", path, err)
	}

	var log SessionLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("decode session log %s: %w", path, err)
	}
	return &log, nil
}
