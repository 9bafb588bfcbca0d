package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"sharehub/pkg/config"
	"sharehub/pkg/notify"
	"sharehub/pkg/protocol"
	"sharehub/pkg/storage"
	"sharehub/pkg/store"
	"sharehub/pkg/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Coordinator is the business-logic core of the sharing server. It owns the
// ownership stores, the presence registry, the session registry and the
// runtime delivery cache, accepts client connections, and drives the
// periodic persistence and notification jobs. Presentation and email are
// collaborators it only writes to.
type Coordinator struct {
	cfg      *config.Config
	logger   *zap.Logger
	sink     types.StatusSink
	notifier notify.Notifier

	layout   *storage.CategoryLayout
	stores   []*store.OwnershipStore
	presence *store.PresenceRegistry
	sessions *sessionRegistry
	cache    *runtimeCache

	handlerMu sync.Mutex
	handlers  map[string]*ConnectionHandler

	listener  net.Listener
	scheduler *SyncScheduler
	group     *errgroup.Group

	ctx    context.Context
	cancel context.CancelFunc

	stopOnce sync.Once
}

// New builds a coordinator from configuration: bootstraps the data root,
// loads the persisted ownership maps and client list, and rebuilds the
// runtime delivery cache for every known identity. Persistence artifacts
// that cannot be read load as empty state; that is logged, never fatal.
func New(cfg *config.Config, logger *zap.Logger, sink types.StatusSink, notifier notify.Notifier) (*Coordinator, error) {
	if sink == nil {
		sink = types.NopSink{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}

	layout := storage.NewCategoryLayout(cfg.DataDir, cfg.Categories, cfg.ControlFileName, cfg.ClientsFileName, logger)
	if err := layout.Bootstrap(); err != nil {
		return nil, fmt.Errorf("failed to bootstrap data root: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		cfg:      cfg,
		logger:   logger,
		sink:     sink,
		notifier: notifier,
		layout:   layout,
		presence: store.NewPresenceRegistry(cfg.ServerIdentity(), layout.ClientsFilePath(), logger),
		sessions: newSessionRegistry(cfg.TokenLength),
		cache:    newRuntimeCache(),
		handlers: make(map[string]*ConnectionHandler),
		ctx:      ctx,
		cancel:   cancel,
	}

	for _, category := range cfg.Categories {
		s := store.NewOwnershipStore(layout.Dir(category), cfg.ControlFileName, logger)
		if err := s.LoadFromDisk(); err != nil {
			sink.SetStatus("Can't read file")
			sink.AddLog(types.LogError, fmt.Sprintf("Can't read ownership map for %s: %v", category, err))
			logger.Error("failed to load ownership map", zap.String("category", category), zap.Error(err))
		}
		c.stores = append(c.stores, s)
	}

	if err := c.presence.LoadFromDisk(); err != nil {
		sink.SetStatus("Can't read or parse file")
		sink.AddLog(types.LogError, fmt.Sprintf("Can't read client list: %v", err))
		logger.Error("failed to load client list", zap.Error(err))
	}
	c.presence.SetOnChange(c.presenceChanged)
	c.fillRuntimeCache()

	c.scheduler = newSyncScheduler(logger, schedulerWorkers, []job{
		{name: "presence-dump", delay: 30 * time.Second, period: 120 * time.Second, fn: c.dumpPresence},
		{name: "ownership-dump", delay: 10 * time.Second, period: 60 * time.Second, fn: c.dumpOwnership},
		{name: "pending-sweep", delay: 180 * time.Second, period: 7200 * time.Second, fn: c.sweepPendingFiles},
		{name: "idle-heartbeat", delay: 10 * time.Second, period: 60 * time.Second, fn: func() {
			sink.SetStatus("Waiting for the clients...")
		}},
	})

	return c, nil
}

// fillRuntimeCache seeds the delivery cache from the ownership stores for
// every identity known at startup.
func (c *Coordinator) fillRuntimeCache() {
	server := c.cfg.ServerIdentity()
	for _, user := range c.presence.Snapshot() {
		if user.Same(server) {
			continue
		}
		c.cache.replace(user, c.ListFilesForUser(user))
	}
}

func (c *Coordinator) presenceChanged(statuses []store.ClientStatus) {
	online := 0
	server := c.cfg.ServerIdentity()
	for _, status := range statuses {
		if status.Online && !status.User.Same(server) {
			online++
		}
	}
	c.sink.SetStatus(fmt.Sprintf("Clients online: %d", online))
}

// Start listens on the configured address and serves until Stop is called.
// It returns after the accept loop and every connection handler it spawned
// have finished.
func (c *Coordinator) Start() error {
	listener, err := net.Listen("tcp", c.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.cfg.Address, err)
	}
	c.listener = listener

	g, ctx := errgroup.WithContext(c.ctx)
	c.group = g
	c.scheduler.start(ctx)

	c.logger.Info("server listening",
		zap.String("address", c.cfg.Address),
		zap.Strings("categories", c.cfg.Categories))
	c.sink.SetStatus("Waiting for the clients...")
	c.sink.AddLog(types.LogInfo, "Waiting for the clients...")

	g.Go(c.acceptLoop)
	return g.Wait()
}

func (c *Coordinator) acceptLoop() error {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			select {
			case <-c.ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			c.logger.Warn("accept failed", zap.Error(err))
			continue
		}
		h := newConnectionHandler(c, conn)
		c.group.Go(func() error {
			h.run()
			return nil
		})
	}
}

// Stop flushes state to disk, stops the scheduler and tears down every
// connection with the usual bounded drains.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.sink.SetStatus("Closing...")
		c.sink.AddLog(types.LogInfo, "Closing...")

		c.dumpPresence()
		c.dumpOwnership()
		c.scheduler.stop()

		c.cancel()
		if c.listener != nil {
			c.listener.Close()
		}

		c.handlerMu.Lock()
		open := make([]*ConnectionHandler, 0, len(c.handlers))
		for _, h := range c.handlers {
			open = append(open, h)
		}
		c.handlerMu.Unlock()

		var wg sync.WaitGroup
		for _, h := range open {
			wg.Add(1)
			go func(h *ConnectionHandler) {
				defer wg.Done()
				h.close()
			}(h)
		}
		wg.Wait()

		c.logger.Info("server stopped")
	})
}

// authenticate validates the credential triple from a connection's first
// message, issues a session token and flips the identity online. A
// credential never seen before gets a welcome notification.
func (c *Coordinator) authenticate(h *ConnectionHandler, req protocol.AuthRequest) (string, error) {
	cred := req.Credential
	if cred.IsEmpty() || cred.Email == "" {
		return "", fmt.Errorf("invalid credential")
	}
	if !req.Service.Valid() {
		return "", fmt.Errorf("unknown service kind %q", req.Service)
	}
	if cred.Same(c.cfg.ServerIdentity()) {
		return "", fmt.Errorf("reserved identity")
	}

	newUser := !c.presence.Contains(cred)
	token, err := c.sessions.generate()
	if err != nil {
		return "", err
	}

	h.setSession(cred, token, req.Service)
	c.handlerMu.Lock()
	c.handlers[token] = h
	c.handlerMu.Unlock()

	c.presence.SetStatus(cred, true)
	c.cache.ensure(cred)

	if newUser {
		c.notifier.Notify(cred, notify.PurposeWelcome)
	}
	c.sink.AddLog(types.LogInfo, fmt.Sprintf("%s authorized (%s)", cred.DisplayName, req.Service))
	c.logger.Info("client authorized",
		zap.String("user", cred.DisplayName),
		zap.String("service", string(req.Service)))
	return token, nil
}

// cleanupSession releases the connection's token and flips the identity
// offline. Safe to call for connections that never authenticated.
func (c *Coordinator) cleanupSession(h *ConnectionHandler) {
	user, token := h.session()
	if token == "" {
		return
	}
	c.sessions.release(token)
	c.handlerMu.Lock()
	delete(c.handlers, token)
	c.handlerMu.Unlock()
	c.presence.SetStatus(user, false)

	c.sink.AddLog(types.LogInfo, user.DisplayName+" logged out")
	c.logger.Info("session closed", zap.String("user", user.DisplayName))
}

// watchersFor returns the notification-watch handlers of an identity.
func (c *Coordinator) watchersFor(user types.Identity) []*ConnectionHandler {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	var out []*ConnectionHandler
	for _, h := range c.handlers {
		owner, _ := h.session()
		if owner.Same(user) && h.serviceKind() == protocol.ServiceNotificationWatch {
			out = append(out, h)
		}
	}
	return out
}

func (c *Coordinator) reportProtocolError(h *ConnectionHandler, err error) {
	c.sink.SetStatus("Can't get the message!")
	c.sink.AddLog(types.LogError, fmt.Sprintf("Can't get the message: %v", err))
	h.logger.Warn("protocol violation", zap.Error(err))
}

func (c *Coordinator) reportSendError(h *ConnectionHandler, kind protocol.Kind, err error) {
	c.sink.SetStatus("Can't send the message!")
	c.sink.AddLog(types.LogError, fmt.Sprintf("Can't send the %s message: %v", kind, err))
	h.logger.Warn("send failed", zap.String("kind", string(kind)), zap.Error(err))
}
