package sshserver

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Allowlist holds the public keys permitted to open SSH sessions.
type Allowlist struct {
	keys map[string]struct{}
}

// LoadAuthorizedKeys parses an authorized_keys file into an allowlist.
// The file must exist and contain at least one key; an empty allowlist
// would lock everyone out, which is better surfaced at startup.
func LoadAuthorizedKeys(path string) (*Allowlist, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("authorized keys path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read authorized keys: %w", err)
	}
	list := &Allowlist{keys: make(map[string]struct{})}
	for rest := bytes.TrimSpace(data); len(rest) > 0; rest = bytes.TrimSpace(rest) {
		key, _, _, remaining, err := ssh.ParseAuthorizedKey(rest)
		if err != nil {
			return nil, fmt.Errorf("parse authorized keys: %w", err)
		}
		list.keys[string(key.Marshal())] = struct{}{}
		rest = remaining
	}
	if len(list.keys) == 0 {
		return nil, fmt.Errorf("no keys in %s", path)
	}
	return list, nil
}

// Contains reports whether the key is on the allowlist.
func (a *Allowlist) Contains(key ssh.PublicKey) bool {
	if a == nil || key == nil {
		return false
	}
	_, ok := a.keys[string(key.Marshal())]
	return ok
}
