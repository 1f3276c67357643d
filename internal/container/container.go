package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/backoffice-wizard/internal/application/dispatcher"
	"github.com/garyjia/backoffice-wizard/internal/application/port"
	"github.com/garyjia/backoffice-wizard/internal/application/service"
	"github.com/garyjia/backoffice-wizard/internal/config"
	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
	"github.com/garyjia/backoffice-wizard/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/backoffice-wizard/internal/infrastructure/roster"
	"github.com/garyjia/backoffice-wizard/internal/infrastructure/worker"
	httpapi "github.com/garyjia/backoffice-wizard/internal/interfaces/http"
	"github.com/garyjia/backoffice-wizard/internal/interfaces/websocket"
	"github.com/garyjia/backoffice-wizard/internal/wizard"
	"github.com/garyjia/backoffice-wizard/pkg/database"
	"github.com/garyjia/backoffice-wizard/pkg/utils"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and stop in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure - Data
	conn        *database.DB
	db          *sqlite.DB
	drafts      port.DraftStoreProvider
	submissions port.SubmissionRepository

	// Infrastructure - External
	transport port.SubmissionTransport

	// Application
	roster     *entity.Roster
	flows      []*wizard.Flow
	dispatcher dispatcher.Dispatcher
	sessions   service.SessionService

	// Interfaces
	hub    *websocket.Hub
	server *httpapi.Server

	// Workers
	workers *worker.Manager

	// Lifecycle
	mu      sync.Mutex
	cancel  context.CancelFunc
	hubDone chan struct{}
	ready   atomic.Bool
	closed  atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins background processing:
// 1. Database, drafts and the submission repository
// 2. Submission transport
// 3. Roster and flows
// 4. Dispatcher, websocket hub and receipt writer
// 5. Session service
// 6. Workers
// 7. HTTP server (built, not listening)
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initData(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized", zap.String("drafts", c.config.Drafts.Backend))

	transport, err := ProvideTransport(c.config, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize transport: %w", err)
	}
	c.transport = transport
	c.logger.Info("Submission transport initialized", zap.String("transport", transport.Name()))

	if c.roster, err = roster.Load(c.config.Roster.Path); err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}
	c.flows = ProvideFlows(c.roster, ProvideUploadPolicy(&c.config.Uploads))

	c.initEvents(ctx)
	c.logger.Info("Dispatcher initialized")

	coordinator := wizard.NewCoordinator(c.transport, c.submissions, c.config.Submission.Timeout, c.logger)
	c.sessions = service.NewSessionService(c.flows, c.drafts, coordinator, c.dispatcher, c.logger)
	c.logger.Info("Session service initialized", zap.Int("flows", len(c.flows)))

	c.workers = worker.NewManager(c.logger)
	c.workers.Register(worker.NewAutosaveWorker(worker.AutosaveConfig{
		Interval:    c.config.Drafts.AutosaveInterval,
		IdleTimeout: c.config.Drafts.IdleTimeout,
	}, c.sessions, c.logger))
	if err := c.workers.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.logger.Info("Workers started")

	c.server = httpapi.NewServer(httpapi.ServerConfig{
		Host:         c.config.Server.Host,
		Port:         c.config.Server.Port,
		ReadTimeout:  c.config.Server.ReadTimeout,
		WriteTimeout: c.config.Server.WriteTimeout,
		AllowOrigins: c.config.Server.AllowOrigins,
		Debug:        c.config.Logger.Level == "debug",
	}, httpapi.Dependencies{
		Sessions:    c.sessions,
		Submissions: c.submissions,
		Roster:      c.roster,
		Hub:         c.hub,
		Health: func() (bool, interface{}) {
			h := c.Health()
			return h.Overall, h.Components
		},
	}, utils.NewSugarLogger(c.logger))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

func (c *Container) initData() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.conn = bundle.Conn
	c.db = bundle.DB
	c.submissions = sqlite.NewSubmissionRepository(c.db, c.logger)

	c.drafts, err = ProvideDraftStore(&c.config.Drafts, c.db, c.logger)
	return err
}

func (c *Container) initEvents(ctx context.Context) {
	c.dispatcher = ProvideDispatcher(c.logger)

	c.hub = websocket.NewHub(originAllowed(c.config.Server.AllowOrigins), utils.NewSugarLogger(c.logger))
	c.dispatcher.SubscribeNamed(dispatcher.AnyType, "websocket_hub", c.hub.Handle)
	c.hubDone = make(chan struct{})
	go func() {
		defer close(c.hubDone)
		c.hub.Run(ctx)
	}()

	ProvideReceiptWriter(&c.config.Receipts, c.dispatcher, c.logger)
}

// originAllowed returns nil, allowing every origin, when the list is empty
func originAllowed(origins []string) func(string) bool {
	if len(origins) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(origin string) bool { return allowed[origin] || allowed["*"] }
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	var errs []error

	// stop workers before the final flush
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	if c.sessions != nil {
		saved := c.sessions.AutosaveAll(context.Background())
		c.logger.Info("Flushed dirty sessions", zap.Int("saved", saved))
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.cancel != nil {
		c.cancel()
	}
	if c.hubDone != nil {
		<-c.hubDone
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	mark := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.conn == nil:
		mark("database", false, "not initialized")
	default:
		if err := c.conn.Ping(); err != nil {
			mark("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			mark("database", true, "")
		}
	}

	if c.workers != nil {
		mark("workers", c.workers.IsRunning(), "")
	} else {
		mark("workers", false, "not initialized")
	}

	if c.transport != nil {
		mark("transport", true, c.transport.Name())
	} else {
		mark("transport", false, "not initialized")
	}

	if c.hub != nil {
		mark("websocket", true, fmt.Sprintf("clients: %d", c.hub.ClientCount()))
	} else {
		mark("websocket", false, "not initialized")
	}

	return status
}

// Server returns the HTTP server built by Start.
func (c *Container) Server() *httpapi.Server {
	return c.server
}

// Sessions returns the session service.
func (c *Container) Sessions() service.SessionService {
	return c.sessions
}

// Drafts returns the configured draft backend.
func (c *Container) Drafts() port.DraftStoreProvider {
	return c.drafts
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}
