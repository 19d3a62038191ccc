package server

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/vondrachek/linkboard/backend/internal/database"
	"github.com/vondrachek/linkboard/backend/internal/handlers"
	"github.com/vondrachek/linkboard/backend/internal/identity"
	"github.com/vondrachek/linkboard/backend/internal/middleware"
	"github.com/vondrachek/linkboard/backend/internal/ratelimit"
)

type Server struct {
	db      database.Service
	handler *handlers.Handler
}

// NewServer creates and configures a new server. The identity client and the
// rate limiter are constructed once here and injected into the handlers; no
// handler reaches for ambient globals.
func NewServer() *http.Server {
	// Apply the schema-level constraints before gorm takes over
	bootstrap, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := bootstrap.Initialize(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	bootstrap.Close()

	db := database.New()

	resolver := identity.NewClient(
		os.Getenv("IDENTITY_API_URL"),
		os.Getenv("IDENTITY_API_KEY"),
	)

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379" // local dev fallback
	}
	limiter, err := ratelimit.NewRedisLimiter(redisAddr, ratelimit.DefaultRules())
	if err != nil {
		log.Fatalf("Failed to initialize rate limiter: %v", err)
	}

	// Create unified handler
	handler := handlers.NewHandler(db.GetDB(), resolver, limiter)

	// Create server instance
	newServer := &Server{
		db:      db,
		handler: handler,
	}

	// Configure Gin router
	router := newServer.RegisterRoutes()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080" // local dev fallback
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         "0.0.0.0:" + port,
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("🚀 Server starting on port %s\n", port)
	fmt.Println("📝 Press Ctrl+C to stop the server")

	return server
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.Default()

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * 3600,
	}))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.db.Health())
	})

	// API routes
	api := r.Group("/api")
	{
		// Feed routes (public reads)
		api.GET("/posts", s.handler.Feed.GetPosts)
		api.GET("/posts/:id", s.handler.Feed.GetPost)
		api.GET("/users/:id/feed", s.handler.Feed.GetUserFeed)

		// Comment routes (public reads)
		api.GET("/posts/:id/comments", s.handler.Comment.GetComments)

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// Post protected routes
			protected.POST("/posts", s.handler.Post.CreatePost)
			protected.PUT("/posts/:id", s.handler.Post.UpdatePost)
			protected.DELETE("/posts/:id", s.handler.Post.DeletePost)
			protected.POST("/posts/:id/vote", s.handler.Post.VotePost)

			// Comment protected routes
			protected.POST("/posts/:id/comments", s.handler.Comment.CreateComment)
			protected.DELETE("/comments/:commentId", s.handler.Comment.DeleteComment)
		}
	}

	return r
}
