// Package mockeval is a toy evaluator speaking the wire protocol over
// TCP. It exists so the client can be exercised end to end without a
// real evaluator: a small arithmetic vocabulary, namespaces, canned
// symbol metadata, and a handle-based inspector over vector literals.
package mockeval

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"

	"pkt.systems/pslog"
)

// Server accepts wire-protocol connections.
type Server struct {
	ln  net.Listener
	log pslog.Logger

	mu       sync.Mutex
	sessions int
	closed   bool

	wg sync.WaitGroup
}

// Listen binds the server. Use addr ":0" for an ephemeral port.
func Listen(addr string, logger pslog.Logger) (*Server, error) {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("mock evaluator listen: %w", err)
	}
	return &Server{ln: ln, log: logger}, nil
}

// Port returns the bound listen port.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Serve runs the accept loop until Close.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

// Close stops accepting and waits for in-flight connections.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	err := s.ln.Close()
	s.wg.Wait()
	return err
}

type mockSession struct {
	id      string
	ns      string
	handles map[string]mockValue
	nextH   int
}

func (s *Server) newSession() *mockSession {
	s.mu.Lock()
	s.sessions++
	n := s.sessions
	s.mu.Unlock()
	return &mockSession{
		id:      fmt.Sprintf("mock-session-%d", n),
		ns:      "user",
		handles: make(map[string]mockValue),
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	log := s.log.With("peer", conn.RemoteAddr().String())
	log.Debug("client connected")

	var sess *mockSession
	write := func(frame map[string]any) bool {
		encoded, err := json.Marshal(frame)
		if err != nil {
			log.Warn("encode reply", "err", err)
			return false
		}
		if _, err := conn.Write(append(encoded, '\n')); err != nil {
			return false
		}
		return true
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var frame map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
			log.Warn("malformed request dropped", "err", err)
			continue
		}
		id, _ := frame["id"].(string)
		op, _ := frame["op"].(string)
		if sess == nil && op != "clone" {
			write(map[string]any{"id": id, "error": "no session; clone first", "status": []string{"done", "error"}})
			continue
		}
		switch op {
		case "clone":
			sess = s.newSession()
			write(map[string]any{"id": id, "new-session": sess.id, "status": "done"})
		case "close":
			write(map[string]any{"id": id, "status": "done"})
			log.Debug("client closed session", "session", sess.id)
			return
		default:
			for _, reply := range sess.handle(op, frame) {
				reply["id"] = id
				if !write(reply) {
					return
				}
			}
		}
	}
}

func (sess *mockSession) handle(op string, frame map[string]any) []map[string]any {
	switch op {
	case "eval":
		code, _ := frame["code"].(string)
		if ns, ok := frame["ns"].(string); ok && ns != "" {
			sess.ns = ns
		}
		return sess.eval(code)
	case "load-file":
		file, _ := frame["file"].(string)
		return sess.loadFile(file)
	case "using-ns":
		ns, _ := frame["ns"].(string)
		if ns == "" {
			return []map[string]any{{"error": "ns is required", "status": []string{"done", "error"}}}
		}
		sess.ns = ns
		return []map[string]any{{"ns": ns, "status": "done"}}
	case "ns-list":
		return []map[string]any{{
			"namespaces": knownNamespaces(sess.ns),
			"current-ns": sess.ns,
			"status":     "done",
		}}
	case "info":
		symbol, _ := frame["symbol"].(string)
		return symbolInfo(symbol, sess.ns)
	case "macroexpand":
		code, _ := frame["code"].(string)
		return []map[string]any{{"expansion": "(do " + code + ")", "status": "done"}}
	case "transpile":
		code, _ := frame["code"].(string)
		return []map[string]any{{
			"go-source": "// generated from " + sess.ns + "\n" + "_ = " + strconv.Quote(code) + "\n",
			"status":    "done",
		}}
	case "find-def":
		symbol, _ := frame["symbol"].(string)
		return findDef(symbol, sess.ns)
	case "complete":
		prefix, _ := frame["prefix"].(string)
		return []map[string]any{{"completions": complete(prefix), "status": "done"}}
	case "protocols":
		return []map[string]any{{"protocols": protocolTable(), "status": "done"}}
	case "inspect-start":
		code, _ := frame["code"].(string)
		return sess.inspectStart(code)
	case "inspect-nav":
		handle, _ := frame["handle"].(string)
		segment, _ := frame["path"].(string)
		return sess.inspectNav(handle, segment)
	}
	return []map[string]any{{"error": "unknown op " + op, "status": []string{"done", "error"}}}
}

func knownNamespaces(current string) []string {
	list := []string{"user", "app.core", "app.io"}
	for _, ns := range list {
		if ns == current {
			return list
		}
	}
	return append(list, current)
}
