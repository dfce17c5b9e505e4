package handler

import (
	"net/http"

	"github.com/msomdec/snapgram/internal/queries"
	"github.com/msomdec/snapgram/internal/service"
)

// Options holds the HTTP settings that come from configuration.
type Options struct {
	CookieSecure  bool
	MaxUploadSize int64
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, q *queries.Client, files *service.FileService, db Pinger, loginLimiter *service.TokenBucket, opts Options) {
	authHandler := NewAuthHandler(q, opts.CookieSecure)
	postHandler := NewPostHandler(q, opts.MaxUploadSize)
	saveHandler := NewSaveHandler(q)
	userHandler := NewUserHandler(q, opts.MaxUploadSize)
	storageHandler := NewStorageHandler(files)
	eventsHandler := NewEventsHandler(q.Cache())

	requireAuth := func(h http.HandlerFunc) http.Handler { return RequireAuth(q, h) }

	mux.HandleFunc("GET /healthz", HandleHealthz(db))

	// Auth
	mux.HandleFunc("POST /api/auth/register", authHandler.HandleRegister)
	mux.Handle("POST /api/auth/login", RateLimit(loginLimiter, http.HandlerFunc(authHandler.HandleLogin)))
	mux.Handle("POST /api/auth/logout", requireAuth(authHandler.HandleLogout))
	mux.Handle("GET /api/auth/me", requireAuth(authHandler.HandleMe))

	// Posts
	mux.HandleFunc("GET /api/posts", postHandler.HandleFeed)
	mux.HandleFunc("POST /api/posts/next", postHandler.HandleNextPage)
	mux.HandleFunc("GET /api/posts/recent", postHandler.HandleRecent)
	mux.HandleFunc("GET /api/posts/search", postHandler.HandleSearch)
	mux.Handle("POST /api/posts", requireAuth(postHandler.HandleCreate))
	mux.Handle("GET /api/posts/{id}", OptionalAuth(q, http.HandlerFunc(postHandler.HandleGet)))
	mux.Handle("PUT /api/posts/{id}", requireAuth(postHandler.HandleUpdate))
	mux.Handle("DELETE /api/posts/{id}", requireAuth(postHandler.HandleDelete))
	mux.Handle("POST /api/posts/{id}/like", requireAuth(postHandler.HandleToggleLike))
	mux.Handle("PUT /api/posts/{id}/likes", requireAuth(postHandler.HandleSetLikes))
	mux.Handle("POST /api/posts/{id}/save", requireAuth(postHandler.HandleSave))

	// Saves
	mux.Handle("GET /api/saved", requireAuth(saveHandler.HandleList))
	mux.Handle("DELETE /api/saves/{id}", requireAuth(saveHandler.HandleDelete))

	// Users
	mux.HandleFunc("GET /api/users", userHandler.HandleList)
	mux.HandleFunc("GET /api/users/{id}", userHandler.HandleGet)
	mux.Handle("PUT /api/users/{id}", requireAuth(userHandler.HandleUpdate))
	mux.HandleFunc("GET /api/users/{id}/posts", userHandler.HandlePosts)
	mux.HandleFunc("GET /api/users/{id}/liked", userHandler.HandleLiked)

	// Invalidation events
	mux.HandleFunc("GET /api/events", eventsHandler.HandleStream)

	// Files and avatars
	mux.HandleFunc("GET /storage/files/{id}", storageHandler.HandleFile)
	mux.HandleFunc("GET /storage/files/{id}/preview", storageHandler.HandlePreview)
	mux.HandleFunc("GET /avatars/initials", storageHandler.HandleAvatar)
}
