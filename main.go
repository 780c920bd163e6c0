package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/automatter/rfptrack/handlers"
	"github.com/automatter/rfptrack/internal/assistant"
	"github.com/automatter/rfptrack/internal/attachments"
	"github.com/automatter/rfptrack/internal/config"
	"github.com/automatter/rfptrack/internal/database"
	"github.com/automatter/rfptrack/internal/identity"
	"github.com/automatter/rfptrack/internal/schema"
	"github.com/automatter/rfptrack/internal/search"
	"github.com/automatter/rfptrack/internal/store"
	"github.com/automatter/rfptrack/pkg/logger"
	"github.com/automatter/rfptrack/pkg/metrics"
	"github.com/automatter/rfptrack/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// logging controlled with LOG_LEVEL env: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v elastic=%v oidc=%v",
		cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Elastic.Node != "", cfg.OIDC.Issuer != "")

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Lightweight CORS for dev/test; production fronts this with a stricter
	// policy at the proxy.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})

	ctx := context.Background()

	// Redis first: the rate limiter and the session revocation list want it.
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimit(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// MongoDB with retry/backoff to tolerate startup races.
	var mongoStore store.Store
	if cfg.MongoDB.URI != "" {
		const maxAttempts = 5
		backoff := time.Second
		var lastErr error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			db, closeDB, err := database.Connect(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.Timeout)
			if err == nil {
				defer closeDB()
				schemas, err := schema.DefaultRegistry()
				if err != nil {
					logger.Fatalf("failed to compile schemas: %v", err)
				}
				mongoStore = store.NewMongo(db, store.Options{HiddenPrefix: cfg.Fields.HiddenPrefix}, schemas)
				break
			}
			lastErr = err
			logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, err)
			if attempt < maxAttempts {
				time.Sleep(backoff)
				backoff *= 2
			}
		}
		if mongoStore == nil {
			logger.Fatalf("could not connect to MongoDB after %d attempts: %v", maxAttempts, lastErr)
		}
	} else {
		logger.Fatalf("MONGODB_URI is required")
	}

	// Token verifier: OIDC against the configured issuer, or the insecure
	// claims parser for integration tests.
	var verifier identity.TokenVerifier
	if cfg.OIDC.Issuer != "" && cfg.OIDC.ClientID != "" {
		ver, err := identity.NewOIDCVerifier(ctx, cfg.OIDC.Issuer, cfg.OIDC.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifier = ver
		}
	}
	if verifier == nil {
		if strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN")), "true") {
			logger.Warnf("enabling insecure token verifier (integration mode)")
			verifier = identity.NewInsecureVerifier()
		}
	}

	var revoked identity.RevocationList
	if redisClient != nil {
		revoked = identity.NewRedisRevocationList(redisClient, "revoked:")
	} else {
		logger.Warnf("no Redis: logout will not revoke outstanding sessions")
	}

	resolver := identity.NewResolver(identity.ResolverOptions{
		Secret:      cfg.Session.Secret,
		CookieName:  cfg.Session.CookieName,
		SessionTTL:  cfg.Session.TTL,
		ServiceKeys: cfg.ServiceKeys,
		Verifier:    verifier,
		Revoked:     revoked,
	})

	// Search mirror. A missing Elastic config degrades to a no-op mirror so
	// the CRUD path keeps working; search routes then return errors.
	var elastic *search.Elastic
	var mirror search.Mirror = search.NopMirror{}
	var searcher handlers.Searcher = search.NopSearcher{}
	if cfg.Elastic.Node != "" {
		elastic, err = search.NewElastic(search.Config{Node: cfg.Elastic.Node, APIKey: cfg.Elastic.APIKey})
		if err != nil {
			logger.Warnf("failed to initialize Elasticsearch client: %v", err)
		} else {
			mirror = elastic
			searcher = elastic
		}
	}

	var files *attachments.Storage
	if cfg.MinIO.Endpoint != "" {
		files, err = attachments.NewStorage(attachments.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warnf("failed to initialize attachment storage: %v", err)
		}
	}

	model := assistant.NewOpenAIClient(assistant.OpenAIConfig{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
	})
	assistantSvc := assistant.NewService(model, mongoStore)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{
			"mongo":   mongoStore != nil,
			"redis":   redisClient != nil || cfg.Redis.Host == "",
			"elastic": elastic != nil || cfg.Elastic.Node == "",
			"oidc":    verifier != nil || cfg.OIDC.Issuer == "",
		}
		for _, ok := range deps {
			if !ok {
				ready = false
			}
		}
		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "deps": deps, "uptime": time.Since(startTime).String()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	secureCookie := cfg.Server.Environment == "production"
	handlers.NewAuthHandler(resolver, mongoStore, secureCookie).Register(r)

	api := r.Group("/api", middleware.Auth(resolver))
	resource := handlers.NewResourceHandler(mongoStore, cfg.Fields.ControlPrefix)
	handlers.NewSolicitationHandler(resource, mongoStore, mirror, searcher, files, cfg.Elastic.Index).Register(api)
	handlers.NewUserHandler(resource, mongoStore, mustRegistry()).Register(api)
	handlers.NewStatHandler(resource, mongoStore).Register(api)
	handlers.NewScriptLogHandler(resource).Register(api)
	handlers.NewAssistantHandler(assistantSvc).Register(api)
	resource.Register(api)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("listening on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}

func mustRegistry() *schema.Registry {
	schemas, err := schema.DefaultRegistry()
	if err != nil {
		logger.Fatalf("failed to compile schemas: %v", err)
	}
	return schemas
}
