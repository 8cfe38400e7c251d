// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/markdave123-py/contexta-graph/internal/api/handlers"
	"github.com/markdave123-py/contexta-graph/internal/config"
	"github.com/markdave123-py/contexta-graph/internal/core"
	db "github.com/markdave123-py/contexta-graph/internal/core/database"
	"github.com/markdave123-py/contexta-graph/internal/core/graphdb"
	"github.com/markdave123-py/contexta-graph/internal/core/ingestion_engine"
	"github.com/markdave123-py/contexta-graph/internal/core/llm"
	objectclient "github.com/markdave123-py/contexta-graph/internal/core/object-client"
	"github.com/markdave123-py/contexta-graph/internal/core/prompts"
	"github.com/markdave123-py/contexta-graph/internal/core/retrieval"
	"github.com/markdave123-py/contexta-graph/internal/core/taskqueue"
	"github.com/markdave123-py/contexta-graph/internal/core/webpage"
	"github.com/markdave123-py/contexta-graph/internal/logger"
	"github.com/markdave123-py/contexta-graph/internal/services"
)

// App holds every long-lived dependency shared by the API and worker
// processes.
type App struct {
	Config    *config.Config
	Graph     *graphdb.Client
	Redis     *goredis.Client
	Jobs      core.JobStore
	Queue     *taskqueue.RedisQueue
	Ingestor  *ingestion_engine.DocumentIngestor
	Users     *services.UserService
	Documents *services.DocumentService
	Tasks     *services.TaskService
	Assembler *retrieval.Assembler

	log     *logger.Logger
	closers []func(context.Context) error
}

func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *App, err error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{Config: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	a.Graph, err = graphdb.NewClient(appCtx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Graph.Close)
	a.Graph.EnsureSchema(appCtx)
	log.Info("Graph store initialized and ready.")

	a.Redis, err = taskqueue.NewRedisClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return a.Redis.Close() })
	a.Queue = taskqueue.NewRedisQueue(a.Redis, cfg.QueueName)

	switch cfg.ResultBackend {
	case "postgres":
		pg, err := db.NewJobStore(appCtx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return pg.Close() })
		a.Jobs = pg
	default:
		a.Jobs = taskqueue.NewRedisJobStore(a.Redis, cfg.QueueName, cfg.ResultTTL)
	}
	log.Info("Task queue initialized and ready.", "result_backend", cfg.ResultBackend)

	gemEmbedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return gemEmbedder.Close() })
	gemLLM, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the llm, %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return gemLLM.Close() })

	limiter := llm.NewLimiter(cfg.LLMRatePerSec)
	embedder := llm.NewRateLimitedEmbedder(gemEmbedder, limiter)
	completer := llm.NewRateLimitedLLM(gemLLM, limiter)

	prompt, err := prompts.Load(cfg.PromptsFile)
	if err != nil {
		return nil, err
	}

	var admission ingestion_engine.Admission
	if cfg.AdmissionScope == "shared" {
		admission = ingestion_engine.NewSharedAdmission(a.Redis, cfg.QueueName+":admission", cfg.MaxConcurrentTasks, cfg.JobTimeout, log)
	} else {
		admission = ingestion_engine.NewLocalAdmission(cfg.MaxConcurrentTasks)
	}

	derived := ingestion_engine.NewDerivedContentGenerator(completer, embedder, a.Graph, prompt, cfg.MaxQuestionsPerPage, cfg.EmbedDim)
	a.Ingestor = ingestion_engine.NewDocumentIngestor(a.Graph, embedder, derived, a.Jobs, a.Queue, admission,
		ingestion_engine.IngestConfigFrom(cfg), log)

	var storage core.ObjectClient
	if cfg.ObjectStorageEnabled() {
		s3c, err := objectclient.NewS3Client(appCtx, cfg, log)
		if err != nil {
			return nil, err
		}
		storage = s3c
		log.Info("Object client initialized and ready.")
	} else {
		log.Warn("Object storage not configured; originals and snapshots are not archived")
	}

	a.Users = services.NewUserService(a.Graph, cfg.JWTSecret, cfg.TokenTTL, log)
	a.Documents = services.NewDocumentService(a.Graph, webpage.NewFetcher(cfg.FetchTimeout),
		ingestion_engine.NewDocconvExtractor(false), storage, a.Ingestor, log)
	a.Tasks = services.NewTaskService(a.Ingestor, a.Jobs, a.Queue, a.Graph, cfg.ResultWait, log)
	a.Assembler = retrieval.NewAssembler(embedder, completer, a.Graph, a.Graph, prompt, retrieval.Config{
		K:        cfg.RetrievalK,
		MinScore: cfg.RetrievalMinScore,
		Mode:     cfg.RetrievalMode,
	}, log)

	if err := a.Users.EnsureDefaultUser(appCtx, services.DefaultUser{
		UUID:     cfg.DefaultUserUUID,
		Username: cfg.DefaultUserUsername,
		Email:    cfg.DefaultUserEmail,
		Name:     cfg.DefaultUserName,
		Password: cfg.DefaultUserPassword,
	}); err != nil {
		return nil, err
	}
	return a, nil
}

// Handlers builds the HTTP handlers over the app's services.
func (a *App) Handlers() Handlers {
	return Handlers{
		Auth:      handlers.NewAuthHandler(a.Users, a.log),
		Documents: handlers.NewDocumentHandler(a.Documents, a.log),
		Tasks:     handlers.NewTaskHandler(a.Tasks, a.log),
		Chat:      handlers.NewChatHandler(a.Assembler, a.log),
		Tokens:    a.Users,
	}
}

// Close releases clients in reverse order of creation.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Warn("Close failed", "error", err)
		}
	}
	a.closers = nil
}
