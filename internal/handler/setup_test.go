package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/msomdec/snapgram/internal/cache"
	"github.com/msomdec/snapgram/internal/handler"
	"github.com/msomdec/snapgram/internal/queries"
	"github.com/msomdec/snapgram/internal/repository/sqlite"
	"github.com/msomdec/snapgram/internal/service"
)

const testJWTSecret = "test-secret-for-handler-tests-0123456789"

// testApp is the whole stack over a temporary SQLite database.
type testApp struct {
	db    *sqlite.DB
	auth  *service.AuthService
	files *service.FileService
	cache *cache.Client
	q     *queries.Client
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWithTTL(t, time.Hour)
}

// newTestAppWithTTL builds the stack with the given session lifetime. The
// cache keeps values until they are invalidated.
func newTestAppWithTTL(t *testing.T, sessionTTL time.Duration) *testApp {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	urls := service.URLBuilder{Endpoint: "http://localhost:8080", ProjectID: "test"}

	auth := service.NewAuthService(db, urls, service.AuthOptions{
		JWTSecret: testJWTSecret, BcryptCost: 4, SessionTTL: sessionTTL,
	}, logger)
	files := service.NewFileService(db.FileStore(), urls, 1<<20, logger)
	posts := service.NewPostService(db.Posts(), files, logger)
	saves := service.NewSaveService(db.Saves(), db.Posts(), logger)
	users := service.NewUserService(db.Users(), files, logger)

	c := cache.New(cache.Options{Logger: logger})
	t.Cleanup(c.Close)

	return &testApp{db: db, auth: auth, files: files, cache: c, q: queries.New(c, auth, posts, saves, users)}
}

func (a *testApp) server(t *testing.T) *httptest.Server {
	t.Helper()
	limiter := service.NewTokenBucket(10, 10)
	t.Cleanup(limiter.Stop)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, a.q, a.files, a.db, limiter, handler.Options{MaxUploadSize: 1 << 20})

	srv := httptest.NewServer(handler.SecurityHeaders(mux))
	t.Cleanup(srv.Close)
	return srv
}

// signUp creates an account and returns a session token for it.
func (a *testApp) signUp(t *testing.T, name, email string) string {
	t.Helper()
	ctx := context.Background()
	if _, err := a.auth.CreateUserAccount(ctx, service.NewAccount{
		Name: name, Username: name, Email: email, Password: "password123",
	}); err != nil {
		t.Fatalf("CreateUserAccount: %v", err)
	}
	token, _, err := a.auth.SignIn(ctx, email, "password123")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	return token
}
