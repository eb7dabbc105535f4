// Package portfile reads the sidecar file an evaluator writes into the
// project root to advertise its listen port.
package portfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pkt.systems/replx/schema"
)

// DefaultName is the sidecar file name looked for in the project root.
const DefaultName = ".replx-port"

// Read parses the decimal port number held by the file at path.
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%s: %w", path, schema.ErrNoPortFile)
		}
		return 0, fmt.Errorf("read port file: %w", err)
	}
	port, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse port file %s: %w", path, err)
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("port file %s holds invalid port %d", path, port)
	}
	return port, nil
}

// Write records the port for discovery by other clients.
func Write(path string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(port)+"\n"), 0o644)
}

// Find walks from startDir toward the filesystem root looking for a
// sidecar file with the given name and returns the port it holds.
func Find(startDir, name string) (int, error) {
	if name == "" {
		name = DefaultName
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return 0, err
	}
	for {
		port, err := Read(filepath.Join(dir, name))
		if err == nil {
			return port, nil
		}
		if !errors.Is(err, schema.ErrNoPortFile) {
			return 0, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return 0, schema.ErrNoPortFile
		}
		dir = parent
	}
}
