// Package knowledge provides the knowledge base server implementation.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/knowledge-x/internal/knowledge/biz"
	"github.com/kart-io/knowledge-x/internal/knowledge/handler"
	"github.com/kart-io/knowledge-x/internal/knowledge/router"
	"github.com/kart-io/knowledge-x/internal/knowledge/store"
	"github.com/kart-io/knowledge-x/internal/model"
	"github.com/kart-io/knowledge-x/pkg/component/milvus"
	"github.com/kart-io/knowledge-x/pkg/component/postgres"
	"github.com/kart-io/knowledge-x/pkg/infra/app"
	"github.com/kart-io/knowledge-x/pkg/infra/pool"
	"github.com/kart-io/knowledge-x/pkg/llm"
	"github.com/kart-io/knowledge-x/pkg/llm/resilience"
	cacheopts "github.com/kart-io/knowledge-x/pkg/options/cache"
	kbopts "github.com/kart-io/knowledge-x/pkg/options/kb"
	llmopts "github.com/kart-io/knowledge-x/pkg/options/llm"
	logopts "github.com/kart-io/knowledge-x/pkg/options/logger"
	milvusopts "github.com/kart-io/knowledge-x/pkg/options/milvus"
	postgresopts "github.com/kart-io/knowledge-x/pkg/options/postgres"
	httpopts "github.com/kart-io/knowledge-x/pkg/options/server/http"

	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/knowledge-x/pkg/llm/ollama"
	_ "github.com/kart-io/knowledge-x/pkg/llm/openai"
)

// Name is the name of the application.
const Name = "knowledge-server"

// defaultQueryTimeout bounds a single routed query across both backends.
const defaultQueryTimeout = 60 * time.Second

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	PostgresOptions  *postgresopts.Options
	MilvusOptions    *milvusopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	KBOptions        *kbopts.Options
	CacheOptions     *cacheopts.Options
	ShutdownTimeout  time.Duration
}

// Server represents the knowledge base server.
type Server struct {
	httpSrv         *http.Server
	workers         *pool.Pool
	shutdownTimeout time.Duration
	closers         []func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting knowledge service...")

	var closers []func()

	// 2. 初始化文件登记表（PostgreSQL）。
	// 连接失败时仅禁用关系查询后端，向量链路照常工作。
	var (
		fileRegistry biz.FileRegistry
		relational   store.RelationalConnector
		fileStats    biz.FileStatsProvider
	)
	pgClient, err := postgres.NewWithContext(ctx, cfg.PostgresOptions)
	if err != nil {
		logger.Warnw("failed to connect to postgres, relational backend disabled", "error", err.Error())
	} else {
		fileStore := store.NewFileStore(pgClient.DB())
		if err := fileStore.AutoMigrate(); err != nil {
			_ = pgClient.Close()
			return nil, fmt.Errorf("failed to migrate file registry: %w", err)
		}
		fileRegistry = fileStore
		relational = fileStore
		fileStats = fileStore
		closers = append(closers, func() { _ = pgClient.Close() })
		logger.Info("File registry initialized")
	}

	// 3. 初始化向量库：Milvus 不可用或被禁用时回退到内存实现
	var vectors store.VectorStore
	if cfg.MilvusOptions.Enabled {
		milvusClient, err := milvus.New(cfg.MilvusOptions)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		vectors = store.NewMilvusStore(milvusClient)
		closers = append(closers, func() { _ = milvusClient.Close(context.Background()) })
		logger.Infow("Milvus vector store initialized", "address", cfg.MilvusOptions.Address)
	} else {
		vectors = store.NewMemoryStore()
		logger.Warn("Milvus disabled, using in-memory vector store")
	}

	// 4. 集合注册表
	registry := store.DefaultRegistry(cfg.KBOptions.EmbeddingDim)

	// 5. 初始化 Redis（查询缓存与嵌入缓存）
	var redisClient *goredis.Client
	var queryCache *biz.QueryCache
	if cfg.CacheOptions.Enabled {
		redisOpts := cfg.CacheOptions.Redis
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         redisOpts.Addr(),
			Password:     redisOpts.Password,
			DB:           redisOpts.Database,
			MaxRetries:   redisOpts.MaxRetries,
			PoolSize:     redisOpts.PoolSize,
			MinIdleConns: redisOpts.MinIdleConns,
			DialTimeout:  redisOpts.DialTimeout,
			ReadTimeout:  redisOpts.ReadTimeout,
			WriteTimeout: redisOpts.WriteTimeout,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
			_ = redisClient.Close()
			redisClient = nil
		} else {
			queryCache = biz.NewQueryCache(redisClient, &biz.QueryCacheConfig{
				Enabled:   true,
				TTL:       cfg.CacheOptions.TTL,
				KeyPrefix: cfg.CacheOptions.KeyPrefix,
			})
			closers = append(closers, func() { _ = redisClient.Close() })
			logger.Infow("Redis cache initialized", "addr", redisOpts.Addr(), "ttl", cfg.CacheOptions.TTL)
		}
	} else {
		logger.Info("Cache is disabled")
	}

	// 6. 初始化 LLM 供应商（重试 + 熔断，Redis 可用时叠加嵌入缓存）
	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	var embedder llm.EmbeddingProvider = resilience.NewResilientEmbeddingProvider(embedProvider, nil, nil)
	if redisClient != nil {
		embedder = llm.NewCachedEmbeddingProvider(embedder, redisClient, nil)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	chat := resilience.NewResilientChatProvider(chatProvider, nil, nil)
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	// 7. 初始化摄入 worker 池
	workers, err := pool.NewPool("kb-ingest", &pool.Config{
		Capacity: cfg.KBOptions.Workers,
	})
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	// 8. 初始化 Biz 层
	orchestrator := biz.NewOrchestrator(
		biz.NewTextExtractor(cfg.KBOptions.MaxFileSize),
		embedder,
		biz.NewReconciler(model.SecurityLevel(cfg.KBOptions.DefaultSecurityLevel)),
		registry,
		vectors,
		fileRegistry,
		workers,
		biz.OrchestratorConfig{
			ChunkSize:    cfg.KBOptions.ChunkSize,
			ChunkOverlap: cfg.KBOptions.ChunkOverlap,
		},
	)
	queryRouter := biz.NewQueryRouter(
		biz.NewClassifier(nil, chat),
		embedder,
		vectors,
		relational,
		registry,
		biz.QueryRouterConfig{
			TopK:           cfg.KBOptions.TopK,
			Timeout:        defaultQueryTimeout,
			VectorPriority: cfg.KBOptions.VectorPriority,
		},
	)
	generator := biz.NewGenerator(chat, cfg.KBOptions.SystemPrompt)
	service := biz.NewService(orchestrator, queryRouter, generator, queryCache, registry, vectors, fileStats)
	logger.Infow("Knowledge service initialized",
		"cache.enabled", queryCache != nil,
		"relational.enabled", relational != nil,
		"workers", cfg.KBOptions.Workers,
	)

	// 9. 初始化 Handler 层与路由
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	router.Register(engine, handler.NewKnowledgeHandler(service))

	// 10. HTTP 服务器
	httpSrv := &http.Server{
		Addr:         cfg.HTTPOptions.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
		WriteTimeout: cfg.HTTPOptions.WriteTimeout,
		IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
	}

	logger.Info("Knowledge service is ready")
	return &Server{
		httpSrv:         httpSrv,
		workers:         workers,
		shutdownTimeout: cfg.ShutdownTimeout,
		closers:         closers,
	}, nil
}

// Run starts the HTTP server and blocks until the context is cancelled
// or the server fails. Shutdown drains in-flight requests first.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.close()
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down knowledge service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	err := s.httpSrv.Shutdown(shutdownCtx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.workers != nil {
		s.workers.Release()
	}
	for _, c := range s.closers {
		c()
	}
}
