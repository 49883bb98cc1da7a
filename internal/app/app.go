package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"seedbazaar/internal/adapter/repository"
	"seedbazaar/internal/domain/entity"
	domainrepo "seedbazaar/internal/domain/repository"
	"seedbazaar/internal/infrastructure/firebase"
	"seedbazaar/internal/infrastructure/metrics"
	"seedbazaar/internal/infrastructure/ratelimit"
	"seedbazaar/internal/infrastructure/sse"
	ws "seedbazaar/internal/infrastructure/websocket"
	"seedbazaar/internal/usecase"
	"seedbazaar/pkg/config"
	"seedbazaar/pkg/logger"
)

const (
	EventBadges     = "badges"
	eventLoopBuffer = 256
)

// Deps overrides the collaborators App would otherwise build from the
// configuration. Nil fields are built as usual.
type Deps struct {
	State         domainrepo.StateRepository
	Notifications domainrepo.NotificationRepository
	Chat          domainrepo.ChatRepository
	Push          usecase.PushConnection
	Registry      *prometheus.Registry
}

// App owns every component of the agent. It replaces process wide globals:
// build one with New, call Init once and Dispose on shutdown.
type App struct {
	cfg *config.Config

	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Limiter  *ratelimit.RateLimiter
	Hub      *sse.Hub

	State     domainrepo.StateRepository
	Session   *usecase.Session
	Loop      *usecase.EventLoop
	Store     *usecase.ReconciliationStore
	Watermark *usecase.ReadWatermark
	Badges    *usecase.BadgeCounters
	Screens   *usecase.ScreenTracker

	Fetcher       *usecase.SnapshotFetcher
	Realtime      *usecase.RealtimeUseCase
	Chat          *usecase.ChatUseCase
	Notifications *usecase.NotificationUseCase
	ScreenUC      *usecase.ScreenUseCase
	BadgeUC       *usecase.BadgeUseCase

	push    usecase.PushConnection
	closers []func() error
	runCtx  context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(ctx context.Context, cfg *config.Config, deps Deps) (*App, error) {
	a := &App{
		cfg:  cfg,
		Hub:  sse.NewHub(),
		done: make(chan struct{}),
	}
	a.runCtx, a.cancel = context.WithCancel(context.Background())

	a.Registry = deps.Registry
	if a.Registry == nil {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	a.Metrics = metrics.New(a.Registry)
	a.Limiter = ratelimit.NewRateLimiter(ratelimit.DefaultLimits(cfg.ChatSendPerMinute, cfg.RefreshPerMinute))

	a.State = deps.State
	if a.State == nil {
		state, err := a.newStateRepository(ctx)
		if err != nil {
			return nil, err
		}
		a.State = state
	}
	a.Session = usecase.NewSession(a.State)

	rest := repository.NewRestClient(cfg.APIBaseURL, cfg.RequestTimeout, a.Session, a.Metrics)
	notifRepo := deps.Notifications
	if notifRepo == nil {
		notifRepo = repository.NewRestNotificationRepository(rest)
	}
	chatRepo := deps.Chat
	if chatRepo == nil {
		chatRepo = repository.NewRestChatRepository(rest)
	}

	a.push = deps.Push
	if a.push == nil {
		a.push = ws.NewConnection(ws.Options{
			URL:               cfg.WSURL,
			Token:             a.Session.Token,
			ReconnectDelay:    cfg.ReconnectDelay,
			MaxReconnectDelay: cfg.MaxReconnectDelay,
			Exponential:       cfg.ExponentialBackoff,
			Heartbeat:         cfg.HeartbeatInterval,
			Metrics:           a.Metrics,
			OnError: func(err error) {
				logger.Warn("Push connection: %v", err)
			},
		})
	}

	a.Loop = usecase.NewEventLoop(eventLoopBuffer)
	a.Store = usecase.NewReconciliationStore(a.Session, notifRepo, cfg.ChatEchoWindow, a.Metrics)
	a.Watermark = usecase.NewReadWatermark(a.State)
	a.Badges = usecase.NewBadgeCounters(a.Store, a.Watermark, a.Session, a.Metrics)
	a.Screens = usecase.NewScreenTracker()

	a.Fetcher = usecase.NewSnapshotFetcher(notifRepo, chatRepo, a.Store, a.Badges, a.Screens, a.Loop, a.Limiter, a.Session, a.Metrics)
	a.Realtime = usecase.NewRealtimeUseCase(a.push, a.Loop, a.Store, a.Badges, a.Screens, a.Fetcher, a.Session, a.Metrics)
	a.Chat = usecase.NewChatUseCase(chatRepo, a.push, a.Store, a.Loop, a.Limiter, a.Session)
	a.Notifications = usecase.NewNotificationUseCase(notifRepo, a.Store, a.Badges, a.Watermark, a.Loop, a.Session)
	a.ScreenUC = usecase.NewScreenUseCase(a.Screens, a.Badges, a.Watermark, a.Loop, a.Fetcher)
	a.BadgeUC = usecase.NewBadgeUseCase(a.Badges, a.Loop)

	a.Badges.OnChange(func(counts entity.BadgeCounts) {
		a.Hub.Publish(sse.Event{Name: EventBadges, Data: counts})
	})

	return a, nil
}

func (a *App) newStateRepository(ctx context.Context) (domainrepo.StateRepository, error) {
	deviceID := a.cfg.StateDeviceID
	if deviceID == "" && a.cfg.StateBackend != config.StateBackendFile && a.cfg.StateBackend != config.StateBackendMemory {
		deviceID = uuid.NewString()
		logger.Warn("STATE_DEVICE_ID not set, state is scoped to this run only (%s)", deviceID)
	}

	switch a.cfg.StateBackend {
	case config.StateBackendFile:
		logger.Info("Persisting state to %s", a.cfg.StateFilePath)
		return repository.NewFileStateRepository(a.cfg.StateFilePath), nil

	case config.StateBackendFirestore:
		client, err := firebase.NewFirestoreClient(ctx, firebase.Config{
			ProjectID:          a.cfg.FirebaseProject,
			ServiceAccountJSON: a.cfg.ServiceAccountJSON,
			ServiceAccountPath: a.cfg.ServiceAccountPath,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		logger.Info("Persisting state to Firestore project %s", a.cfg.FirebaseProject)
		return repository.NewFirestoreStateRepository(client, deviceID), nil

	case config.StateBackendRedis:
		client := repository.NewRedisClient(repository.RedisConfig{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
			DeviceID: deviceID,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.cfg.RedisAddr, err)
		}
		a.closers = append(a.closers, client.Close)
		logger.Info("Persisting state to Redis at %s", a.cfg.RedisAddr)
		return repository.NewRedisStateRepository(client, deviceID), nil

	case config.StateBackendMemory:
		logger.Warn("State is kept in memory and lost on exit")
		return repository.NewMemoryStateRepository(), nil
	}
	return nil, fmt.Errorf("unknown state backend %q", a.cfg.StateBackend)
}

// Init restores the persisted state, starts the event loop and, when a
// session exists, seeds the store and opens the push connection.
func (a *App) Init(ctx context.Context) error {
	if err := a.Session.Load(ctx); err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if err := a.Watermark.Load(ctx); err != nil {
		return fmt.Errorf("failed to load read watermark: %w", err)
	}

	a.Loop.Start(a.runCtx)
	a.Limiter.StartCleanupRoutine(10*time.Minute, a.done)

	if a.Session.Expired() {
		logger.Warn("Stored token for user %s has expired", a.Session.UserID())
	}
	a.startSession(ctx)
	return nil
}

func (a *App) startSession(ctx context.Context) {
	if a.Session.UserID() == "" {
		logger.Info("No stored session, waiting for sign in")
		return
	}
	if err := a.Fetcher.Seed(ctx); err != nil {
		logger.Warn("Initial snapshot incomplete: %v", err)
	}
	// the connection outlives the request that started it
	a.Realtime.Start(a.runCtx)
}

// Login stores new credentials and restarts the push connection for them.
func (a *App) Login(ctx context.Context, userID, token string) error {
	previous := a.Session.UserID()
	a.Realtime.Stop()

	if err := a.Session.SetCredentials(ctx, userID, token); err != nil {
		return err
	}
	if previous != "" && previous != userID {
		a.onLoop(ctx, a.resetLocal)
	}
	a.startSession(ctx)
	return nil
}

// Logout closes the push connection and forgets everything the signed-in
// user has seen on this device.
func (a *App) Logout(ctx context.Context) error {
	a.Realtime.Stop()
	err := a.Session.Logout(ctx)
	a.onLoop(ctx, func() {
		a.Watermark.Reset()
		a.resetLocal()
	})
	return err
}

func (a *App) resetLocal() {
	a.Store.Reset()
	a.Badges.Reset()
}

// onLoop runs fn as a loop task. Once the loop is gone nothing else
// touches the state, so fn runs inline.
func (a *App) onLoop(ctx context.Context, fn func()) {
	err := a.Loop.Do(ctx, func() error {
		fn()
		return nil
	})
	if err != nil {
		fn()
	}
}

// Dispose stops every background task and closes the backends.
func (a *App) Dispose() {
	a.Realtime.Stop()
	a.cancel()
	a.Loop.Stop()

	select {
	case <-a.done:
	default:
		close(a.done)
	}
	a.Hub.Close()

	for _, closer := range a.closers {
		if err := closer(); err != nil {
			logger.Warn("Error closing backend: %v", err)
		}
	}
	logger.Info("Agent disposed")
}

func (a *App) Connected() bool {
	return a.push.Connected()
}
