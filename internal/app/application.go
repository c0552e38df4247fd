// Package app wires the state layer together: storage backend selection,
// domain services and their lifecycle.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	chatdomain "github.com/studyflow-app/studyflow-core/internal/app/domain/chat"
	"github.com/studyflow-app/studyflow-core/internal/app/domain/credit"
	jobdomain "github.com/studyflow-app/studyflow-core/internal/app/domain/job"
	"github.com/studyflow-app/studyflow-core/internal/app/services/assistant"
	chatstore "github.com/studyflow-app/studyflow-core/internal/app/services/chat"
	"github.com/studyflow-app/studyflow-core/internal/app/services/identity"
	jobssvc "github.com/studyflow-app/studyflow-core/internal/app/services/jobs"
	"github.com/studyflow-app/studyflow-core/internal/app/storage"
	"github.com/studyflow-app/studyflow-core/internal/app/storage/local"
	"github.com/studyflow-app/studyflow-core/internal/app/storage/localkv"
	supastore "github.com/studyflow-app/studyflow-core/internal/app/storage/supabase"
	"github.com/studyflow-app/studyflow-core/internal/app/system"
	"github.com/studyflow-app/studyflow-core/internal/config"
	"github.com/studyflow-app/studyflow-core/pkg/logger"
	"github.com/studyflow-app/studyflow-core/supabase/client"
)

// Backend identifies which persistence port the application was wired with.
// The choice is made once at construction and never changes at runtime.
type Backend string

const (
	BackendLocal    Backend = "local"
	BackendSupabase Backend = "supabase"
)

// Stores encapsulates persistence dependencies. Nil entries are filled in
// from the configured backend.
type Stores struct {
	Durable storage.KV
	Session storage.KV
	Jobs    storage.Collection[jobdomain.Job]
	Chat    storage.Collection[chatdomain.Message]
	Credits storage.Collection[credit.Transaction]
}

// Application ties the domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Backend  Backend
	Supabase *client.Client // nil when running on the local backend

	Identity  *identity.Service
	Jobs      *jobssvc.Service
	Chat      *chatstore.Service
	Assistant *assistant.Service
	Simulator *jobssvc.Simulator
}

// New builds a fully initialised application. The storage backend is chosen
// here, exactly once: Supabase when configured, the local file store
// otherwise.
func New(cfg *config.Config, stores Stores, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		cfg = &config.Config{DataDir: "."}
	}
	if log == nil {
		log = logger.NewDefault("app")
	}

	if stores.Durable == nil {
		kv, err := localkv.OpenFile(filepath.Join(cfg.DataDir, "studyflow.json"))
		if err != nil {
			return nil, fmt.Errorf("open durable store: %w", err)
		}
		stores.Durable = kv
	}
	if stores.Session == nil {
		stores.Session = localkv.NewMemory()
	}

	backend := BackendLocal
	var sc *client.Client
	if cfg.Supabase.Configured() {
		var err error
		sc, err = client.New(client.Config{URL: cfg.Supabase.URL, APIKey: cfg.Supabase.AnonKey})
		if err != nil {
			return nil, fmt.Errorf("create supabase client: %w", err)
		}
		backend = BackendSupabase
	}

	if stores.Jobs == nil {
		if sc != nil {
			stores.Jobs = supastore.New[jobdomain.Job](sc, "jobs", "createdAt", false)
		} else {
			stores.Jobs = local.New(stores.Durable, storage.DomainJobs, func(a, b jobdomain.Job) bool {
				return a.CreatedAt.After(b.CreatedAt)
			})
		}
	}
	if stores.Chat == nil {
		if sc != nil {
			stores.Chat = supastore.New[chatdomain.Message](sc, "messages", "timestamp", true)
		} else {
			stores.Chat = local.New(stores.Durable, storage.DomainChat, func(a, b chatdomain.Message) bool {
				return a.Timestamp.Before(b.Timestamp)
			})
		}
	}
	if stores.Credits == nil {
		if sc != nil {
			stores.Credits = supastore.New[credit.Transaction](sc, "credit_transactions", "createdAt", false)
		} else {
			stores.Credits = local.New(stores.Durable, storage.DomainCredits, func(a, b credit.Transaction) bool {
				return a.CreatedAt.After(b.CreatedAt)
			})
		}
	}

	costs, err := config.LoadCostTable(cfg.CostsPath)
	if err != nil {
		return nil, err
	}

	var remote identity.Remote
	if sc != nil {
		remote = sc.Auth()
	}
	identityService := identity.New(stores.Durable, stores.Session, remote, stores.Credits, log.With("component", "identity"))

	// The table client's bearer tracks the session token: reinstalled for
	// a session restored from disk, updated on every sign-in, cleared on
	// sign-out.
	if sc != nil {
		identityService.OnToken(sc.SetAccessToken)
		if token := identityService.AccessToken(); token != "" {
			sc.SetAccessToken(token)
		}
	}

	jobService := jobssvc.New(stores.Jobs, identityService, costs, log.With("component", "jobs"))
	chatService := chatstore.New(stores.Chat, identityService, log.With("component", "chat"))

	// Sign-out drops the replay snapshots so the next subscriber never sees
	// the previous user's data.
	identityService.OnSignOut(jobService.ResetFeed)
	identityService.OnSignOut(chatService.ResetFeed)
	assistantService := assistant.New(cfg.Gemini.APIKey, cfg.Gemini.Model, log.With("component", "assistant"))

	manager := system.NewManager()
	if sc != nil {
		rt := client.NewRealtimeClient(cfg.Supabase.URL, cfg.Supabase.AnonKey)
		if err := manager.Register(newRealtimeService(rt, jobService, chatService, log)); err != nil {
			return nil, err
		}
	}

	return &Application{
		manager:   manager,
		log:       log,
		Backend:   backend,
		Supabase:  sc,
		Identity:  identityService,
		Jobs:      jobService,
		Chat:      chatService,
		Assistant: assistantService,
		Simulator: jobssvc.NewSimulator(jobService, 0, log.With("component", "simulator")),
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before
// Start.
func (a *Application) Attach(svc system.Service) error {
	return a.manager.Register(svc)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
