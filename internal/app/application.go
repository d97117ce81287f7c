package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/lampstack/versekeeper/internal/app/services/accounts"
	"github.com/lampstack/versekeeper/internal/app/services/bibletext"
	"github.com/lampstack/versekeeper/internal/app/services/billing"
	leaderboardsvc "github.com/lampstack/versekeeper/internal/app/services/leaderboard"
	"github.com/lampstack/versekeeper/internal/app/services/progression"
	"github.com/lampstack/versekeeper/internal/app/services/reconcile"
	"github.com/lampstack/versekeeper/internal/app/storage"
	"github.com/lampstack/versekeeper/internal/app/storage/memory"
	"github.com/lampstack/versekeeper/internal/app/system"
	"github.com/lampstack/versekeeper/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users       storage.UserStore
	Verses      storage.VerseStore
	RankHistory storage.RankHistoryStore
	Leaderboard storage.LeaderboardStore
}

// Options carries the secrets and endpoints the services need.
type Options struct {
	TokenSecret   []byte
	WebhookSecret []byte

	BibleAPIURL string
	BibleAPIKey string
	BibleRPS    float64

	// Redis backs the leaderboard cache when set.
	Redis *redis.Client

	// ReconcileSchedule is a cron expression; empty uses the default
	// nightly sweep.
	ReconcileSchedule string
}

// DefaultBibleAPIURL is used when no upstream endpoint is configured.
const DefaultBibleAPIURL = "https://bible-api.example.com/v1"

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Accounts    *accounts.Service
	Progression *progression.Service
	Leaderboard *leaderboardsvc.Service
	BibleText   *bibletext.Service
	Billing     *billing.Service
	Reconciler  *reconcile.Reconciler
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if len(opts.TokenSecret) == 0 {
		return nil, fmt.Errorf("token secret required")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Verses == nil {
		stores.Verses = mem
	}
	if stores.RankHistory == nil {
		stores.RankHistory = mem
	}
	if stores.Leaderboard == nil {
		stores.Leaderboard = mem
	}

	manager := system.NewManager()

	acctService := accounts.New(stores.Users, opts.TokenSecret, log)
	progService := progression.New(stores.Users, stores.Verses, stores.RankHistory, log)

	var cache *leaderboardsvc.Cache
	if opts.Redis != nil {
		cache = leaderboardsvc.NewCache(opts.Redis, 0)
	} else {
		log.Warn("redis not configured; leaderboard cache disabled")
	}
	boardService := leaderboardsvc.New(stores.Leaderboard, cache, log)

	bibleURL := opts.BibleAPIURL
	if bibleURL == "" {
		bibleURL = DefaultBibleAPIURL
		log.Warn("BIBLE_API_URL not set; using default scripture endpoint")
	}
	httpClient := &http.Client{Timeout: 10 * time.Second}
	bibleService, err := bibletext.New(httpClient, bibleURL, opts.BibleAPIKey, opts.BibleRPS, stores.Users, log)
	if err != nil {
		return nil, fmt.Errorf("configure scripture proxy: %w", err)
	}

	billingService := billing.New(stores.Users, opts.WebhookSecret, log)
	reconciler := reconcile.New(stores.Users, opts.ReconcileSchedule, log)

	for _, name := range []string{"accounts", "progression", "leaderboard", "billing"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}
	if err := manager.Register(reconciler); err != nil {
		return nil, fmt.Errorf("register %s: %w", reconciler.Name(), err)
	}

	return &Application{
		manager:     manager,
		log:         log,
		Accounts:    acctService,
		Progression: progService,
		Leaderboard: boardService,
		BibleText:   bibleService,
		Billing:     billingService,
		Reconciler:  reconciler,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
