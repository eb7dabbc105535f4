package core

import (
	"crypto/rand"
	"encoding/hex"
)

func newConnID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "conn-unknown"
	}
	return hex.EncodeToString(buf[:])
}
