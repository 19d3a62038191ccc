package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vondrachek/linkboard/backend/internal/feed"
	"github.com/vondrachek/linkboard/backend/internal/handlers"
	"github.com/vondrachek/linkboard/backend/internal/middleware"
	"github.com/vondrachek/linkboard/backend/internal/models"
	"github.com/vondrachek/linkboard/backend/internal/ratelimit"
)

const testJWTSecret = "test-secret"

var testDB *gorm.DB

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Setenv("JWT_SECRET", testJWTSecret)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("linkboard_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		log.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&models.Post{}, &models.Vote{}, &models.Comment{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	testDB = db

	code := m.Run()

	_ = container.Terminate(ctx)
	os.Exit(code)
}

func resetDB(t *testing.T) {
	t.Helper()
	require.NoError(t, testDB.Exec("TRUNCATE posts, votes, comments RESTART IDENTITY").Error)
}

// identityStub fakes the identity provider's user-list endpoint and counts
// calls so tests can assert batching.
type identityStub struct {
	mu       sync.Mutex
	profiles map[string]models.Author
	calls    int
}

func newIdentityStub(profiles map[string]models.Author) *identityStub {
	return &identityStub{profiles: profiles}
}

func (s *identityStub) ResolveAuthors(_ context.Context, ids []string) (map[string]models.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	authors := make(map[string]models.Author, len(ids))
	for _, id := range ids {
		author, ok := s.profiles[id]
		if !ok || author.Username == "" {
			return nil, errNoProfile
		}
		authors[id] = author
	}
	return authors, nil
}

func (s *identityStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var errNoProfile = errors.New("profile not found")

// allowAllLimiter never throttles.
type allowAllLimiter struct{}

func (allowAllLimiter) Allow(context.Context, string, string) (bool, error) {
	return true, nil
}

// denyLimiter throttles one action and allows everything else.
type denyLimiter struct {
	action string
}

func (l denyLimiter) Allow(_ context.Context, action, _ string) (bool, error) {
	return action != l.action, nil
}

var defaultProfiles = map[string]models.Author{
	"user_alice": {ID: "user_alice", Username: "alice", ProfilePicture: "https://img.example/alice.png"},
	"user_bob":   {ID: "user_bob", Username: "bob", ProfilePicture: "https://img.example/bob.png"},
}

// newTestRouter wires the handlers onto the same routes the server registers.
func newTestRouter(resolver feed.Resolver, limiter ratelimit.Limiter) *gin.Engine {
	h := handlers.NewHandler(testDB, resolver, limiter)

	r := gin.New()
	api := r.Group("/api")
	api.GET("/posts", h.Feed.GetPosts)
	api.GET("/posts/:id", h.Feed.GetPost)
	api.GET("/users/:id/feed", h.Feed.GetUserFeed)
	api.GET("/posts/:id/comments", h.Comment.GetComments)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware())
	protected.POST("/posts", h.Post.CreatePost)
	protected.PUT("/posts/:id", h.Post.UpdatePost)
	protected.DELETE("/posts/:id", h.Post.DeletePost)
	protected.POST("/posts/:id/vote", h.Post.VotePost)
	protected.POST("/posts/:id/comments", h.Comment.CreateComment)
	protected.DELETE("/comments/:commentId", h.Comment.DeleteComment)

	return r
}

func defaultRouter() *gin.Engine {
	return newTestRouter(newIdentityStub(defaultProfiles), allowAllLimiter{})
}

func authToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// createPost inserts a post directly, optionally with an explicit creation
// time so pagination tests control the ordering.
func createPost(t *testing.T, authorID, title, content string, createdAt time.Time) models.Post {
	t.Helper()
	post := models.Post{
		AuthorID:  authorID,
		Title:     title,
		Content:   content,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, testDB.Create(&post).Error)
	return post
}
