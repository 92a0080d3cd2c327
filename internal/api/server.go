package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"member-directory/internal/config"
	"member-directory/internal/db"
	"member-directory/internal/directory"
	"member-directory/internal/identity"
	"member-directory/internal/processor"
	"member-directory/internal/profile"
	"member-directory/internal/redis"
	"member-directory/internal/security"
	"member-directory/internal/storage"
)

type Server struct {
	log       *slog.Logger
	db        *db.DB
	redis     *redis.Client
	cfg       config.Config
	router    *gin.Engine
	profiles  *profile.Repository
	directory *directory.Engine
	events    *processor.EventProcessor
	photos    storage.PhotoStore
	provider  *identity.Client

	webhookLimiter *security.LimiterStore
}

func NewServer(
	log *slog.Logger,
	dbConn *db.DB,
	redisClient *redis.Client,
	cfg config.Config,
	profiles *profile.Repository,
	dirEngine *directory.Engine,
	events *processor.EventProcessor,
	photos storage.PhotoStore,
	provider *identity.Client,
) *Server {
	s := &Server{
		log:            log,
		db:             dbConn,
		redis:          redisClient,
		cfg:            cfg,
		router:         gin.New(),
		profiles:       profiles,
		directory:      dirEngine,
		events:         events,
		photos:         photos,
		provider:       provider,
		webhookLimiter: security.NewLimiterStore(rate.Limit(5), 10, 10*time.Minute),
	}

	gin.SetMode(gin.ReleaseMode)
	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.inputValidationMiddleware())
	r.Use(s.rateLimitMiddleware())

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/directory", s.listDirectory)
		v1.GET("/directory/count", s.countDirectory)
		v1.GET("/directory/facets/:field", s.facetValues)
		v1.GET("/profiles/:slug", s.getProfileBySlug)
		v1.GET("/profiles/:slug/projects", s.listProjects)
		v1.GET("/health", s.health)

		v1.POST("/webhooks/identity", s.identityWebhook)

		// Routes requiring a verified identity
		me := v1.Group("")
		me.Use(s.authMiddleware())
		{
			me.GET("/me/profile", s.getOwnProfile)
			me.POST("/me/profile", s.createProfile)
			me.PUT("/me/profile", s.updateProfile)
			me.POST("/me/photo", s.uploadPhoto)
			me.DELETE("/me/photo", s.deletePhoto)
			me.POST("/profiles/:id/claim", s.claimProfile)
			me.GET("/slug/check", s.checkSlug)
			me.GET("/slug/suggest", s.suggestSlug)
		}
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}
