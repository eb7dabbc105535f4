package core

import (
	"fmt"
	"net"
	"sync"

	"pkt.systems/pslog"

	"pkt.systems/replx/internal/wire"
	"pkt.systems/replx/schema"
)

// conn owns one transport endpoint and the state hanging off it: the
// session token, current namespace, receive decoder, pending-request
// table, transcript, and inspect session. All fields other than the
// transport and writeMu are guarded by the engine mutex.
type conn struct {
	id         schema.ConnID
	host       string
	port       int
	session    string
	ns         schema.Namespace
	transport  net.Conn
	decoder    *wire.Decoder
	pending    *correlator
	transcript *transcript
	history    *inputHistory
	inspector  *inspectorSession
	log        pslog.Logger

	// closing marks an explicit close so transport teardown is not
	// reported as an unexpected disconnect.
	closing bool
	// removed marks the conn as gone from the registry; late responses
	// and double teardown are ignored.
	removed bool

	writeMu sync.Mutex
}

// write frames and sends one request. Serialized by writeMu so
// concurrent callers cannot interleave frames; called without the
// engine mutex held.
func (c *conn) write(req schema.Request) error {
	frame, err := wire.Encode(req)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.transport.Write(frame); err != nil {
		return fmt.Errorf("send %s request: %w", req.Op, err)
	}
	return nil
}

func (c *conn) snapshotLocked(active bool) schema.ConnSnapshot {
	return schema.ConnSnapshot{
		ID:        c.id,
		Host:      c.host,
		Port:      c.port,
		Session:   c.session,
		Namespace: c.ns,
		Active:    active,
		Pending:   c.pending.size(),
	}
}
