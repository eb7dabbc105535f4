// Package replx composes the client core with its front-end servers:
// the connection engine, the event bus console sessions subscribe to,
// and the optional SSH console server.
package replx

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/replx/core"
	"pkt.systems/replx/internal/eventbus"
	"pkt.systems/replx/schema"
	"pkt.systems/replx/sshserver"
)

// ClientConfig configures the compositor.
type ClientConfig struct {
	Engine schema.EngineConfig
	SSH    sshserver.Config
}

// ClientDeps captures dependencies required to build the client.
type ClientDeps struct {
	Dialer core.Dialer
	Logger pslog.Logger
	// EventSink receives engine events in addition to the internal bus.
	EventSink core.EventSink
}

// ClientOption toggles compositor components.
type ClientOption func(*clientOptions)

type clientOptions struct {
	enableSSH bool
}

// WithSSH enables the SSH console server.
func WithSSH() ClientOption {
	return func(o *clientOptions) { o.enableSSH = true }
}

// Client owns a running engine and its attached servers.
type Client struct {
	cfg     ClientConfig
	options clientOptions
	engine  *core.Engine
	bus     *eventbus.Bus
	sshSrv  *sshserver.Server

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	logger  pslog.Logger
	started bool
}

// NewClient constructs the compositor. The engine always runs; SSH is
// opt-in.
func NewClient(cfg ClientConfig, deps ClientDeps, opts ...ClientOption) (*Client, error) {
	options := clientOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	bus := eventbus.New(deps.Logger)
	var sink core.EventSink = bus
	if deps.EventSink != nil {
		sink = eventFanout{sinks: []core.EventSink{deps.EventSink, bus}}
	}

	engine, err := core.NewEngine(cfg.Engine, core.EngineDeps{
		Dialer: deps.Dialer,
		Sink:   sink,
		Logger: deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	var sshSrv *sshserver.Server
	if options.enableSSH {
		sshSrv = &sshserver.Server{
			Addr:               cfg.SSH.Addr,
			HostKeyPath:        cfg.SSH.HostKeyPath,
			AuthorizedKeysPath: cfg.SSH.AuthorizedKeysPath,
			Service:            engine,
			EventBus:           bus,
			Logger:             deps.Logger,
		}
	}

	return &Client{
		cfg:     cfg,
		options: options,
		engine:  engine,
		bus:     bus,
		sshSrv:  sshSrv,
	}, nil
}

// Service exposes the client API.
func (c *Client) Service() core.Service {
	return c.engine
}

// Bus exposes the event bus for console subscriptions.
func (c *Client) Bus() *eventbus.Bus {
	return c.bus
}

// Start launches the background loops.
func (c *Client) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		pslog.Ctx(ctx).Warn("client start rejected", "reason", "already started")
		return errors.New("client already started")
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.errCh = make(chan error, 2)
	c.started = true
	c.logger = pslog.Ctx(c.ctx)
	c.mu.Unlock()

	log := c.logger
	log.Info("client start", "ssh", c.options.enableSSH, "ssh_addr", c.cfg.SSH.Addr)

	go func() {
		if err := c.engine.Run(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("engine loop failed", "err", err)
			c.errCh <- err
		}
	}()
	if c.sshSrv != nil {
		go func() {
			if err := c.sshSrv.ListenAndServe(c.ctx); err != nil {
				log.Error("ssh console server failed", "err", err)
				c.errCh <- err
			}
		}()
	}
	return nil
}

// Wait blocks until the context ends or a component fails.
func (c *Client) Wait() error {
	c.mu.Lock()
	ctx := c.ctx
	errCh := c.errCh
	started := c.started
	c.mu.Unlock()
	if !started {
		return errors.New("client not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("client stopped", "err", err)
			_ = c.Stop(context.Background())
			return err
		}
		return nil
	}
}

// Stop closes every connection and cancels the background loops.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	started := c.started
	log := c.logger
	c.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("client stop requested")
	if ctx == nil {
		ctx = context.Background()
	}
	c.engine.Shutdown(ctx)
	if cancel != nil {
		cancel()
	}
	log.Info("client stopped")
	return nil
}
