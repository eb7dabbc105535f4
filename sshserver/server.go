// Package sshserver shares the running client over SSH: a session gets
// the same transcript console the local terminal does, attached to the
// active connection. Authentication is public key only, against an
// authorized_keys allowlist.
package sshserver

import (
	"context"
	"io"
	"net"

	gliderssh "github.com/gliderlabs/ssh"
	"golang.org/x/crypto/ssh"

	"pkt.systems/pslog"
	"pkt.systems/replx/core"
	"pkt.systems/replx/internal/console"
	"pkt.systems/replx/internal/eventbus"
)

// Config defines SSH server settings.
type Config struct {
	Addr               string
	HostKeyPath        string
	AuthorizedKeysPath string
}

// Server exposes the transcript console over SSH.
type Server struct {
	Addr               string
	HostKeyPath        string
	AuthorizedKeysPath string
	Listener           net.Listener
	Service            core.Service
	EventBus           *eventbus.Bus
	Logger             pslog.Logger
}

// ListenAndServe starts the SSH server and shuts down on context
// cancellation.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.Logger == nil {
		s.Logger = pslog.Ctx(ctx)
	}

	signer, err := EnsureHostKey(s.HostKeyPath)
	if err != nil {
		return err
	}
	allowlist, err := LoadAuthorizedKeys(s.AuthorizedKeysPath)
	if err != nil {
		return err
	}

	server := &gliderssh.Server{
		Addr:             s.Addr,
		Handler:          s.handleSession,
		PublicKeyHandler: s.publicKeyHandler(allowlist),
	}
	server.AddHostKey(signer)

	errCh := make(chan error, 1)
	go func() {
		if s.Listener != nil {
			errCh <- server.Serve(s.Listener)
			return
		}
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = server.Close()
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) publicKeyHandler(allowlist *Allowlist) gliderssh.PublicKeyHandler {
	return func(ctx gliderssh.Context, key gliderssh.PublicKey) bool {
		fingerprint := ssh.FingerprintSHA256(key)
		log := s.Logger.With("user", ctx.User(), "remote", remoteAddr(ctx), "fingerprint", fingerprint)
		if !allowlist.Contains(key) {
			log.Warn("ssh pubkey rejected", "reason", "no matching key")
			return false
		}
		log.Info("ssh pubkey accepted")
		return true
	}
}

func remoteAddr(ctx gliderssh.Context) string {
	if ctx == nil || ctx.RemoteAddr() == nil {
		return ""
	}
	return ctx.RemoteAddr().String()
}

func (s *Server) handleSession(sess gliderssh.Session) {
	remote := sess.RemoteAddr().String()
	log := s.Logger.With("user", sess.User(), "remote", remote)
	if id := sess.Context().SessionID(); id != "" {
		log = log.With("ssh_session", id)
	}

	pty, winCh, ok := sess.Pty()
	if !ok {
		log.Info("ssh session rejected", "reason", "pty required")
		_, _ = io.WriteString(sess, "pty required\n")
		return
	}

	log.Info("ssh session opened", "term", pty.Term)
	// An empty conn id tracks whichever connection is active.
	ui := console.New(s.Service, s.EventBus, "", sess, sess, log)
	ui.UseAltScreen(true)
	ui.SetSize(pty.Window.Width, pty.Window.Height)

	ctx, cancel := context.WithCancel(sess.Context())
	defer cancel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case win, ok := <-winCh:
				if !ok {
					return
				}
				ui.SetSize(win.Width, win.Height)
			}
		}
	}()

	if err := ui.Run(ctx); err != nil {
		log.Warn("ssh session error", "err", err)
	}
	log.Info("ssh session closed", "term", pty.Term)
}
