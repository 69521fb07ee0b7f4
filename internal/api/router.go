package api

import (
	"net/http"

	"github.com/streamvault/backend/internal/events"
)

type Router struct {
	mux              *http.ServeMux
	downloadHandlers *DownloadHandlers
	wishlistHandlers *WishlistHandlers
	catalogHandlers  *CatalogHandlers
	hub              *events.Hub
	healthHandler    http.HandlerFunc
	metricsHandler   http.HandlerFunc
}

func NewRouter(downloadHandlers *DownloadHandlers, wishlistHandlers *WishlistHandlers, catalogHandlers *CatalogHandlers, hub *events.Hub, healthHandler, metricsHandler http.HandlerFunc) *Router {
	r := &Router{
		mux:              http.NewServeMux(),
		downloadHandlers: downloadHandlers,
		wishlistHandlers: wishlistHandlers,
		catalogHandlers:  catalogHandlers,
		hub:              hub,
		healthHandler:    healthHandler,
		metricsHandler:   metricsHandler,
	}
	r.setupRoutes()
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	handler := RequestIDMiddleware(LoggingMiddleware(r.mux))
	handler.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	// Operational endpoints
	r.mux.HandleFunc("GET /health", r.healthHandler)
	r.mux.HandleFunc("GET /metrics", r.metricsHandler)

	// Download jobs
	r.mux.HandleFunc("POST /api/v1/downloads", r.downloadHandlers.Submit)
	r.mux.HandleFunc("GET /api/v1/downloads", r.downloadHandlers.ListRecent)
	r.mux.HandleFunc("DELETE /api/v1/downloads/{id}", r.downloadHandlers.Cancel)

	// Wishlist
	r.mux.HandleFunc("POST /api/v1/wishlist", r.wishlistHandlers.Add)
	r.mux.HandleFunc("GET /api/v1/wishlist", r.wishlistHandlers.List)
	r.mux.HandleFunc("POST /api/v1/wishlist/sweep", r.wishlistHandlers.RunSweep)
	r.mux.HandleFunc("GET /api/v1/wishlist/{id}", r.wishlistHandlers.Get)
	r.mux.HandleFunc("PATCH /api/v1/wishlist/{id}", r.wishlistHandlers.Update)
	r.mux.HandleFunc("DELETE /api/v1/wishlist/{id}", r.wishlistHandlers.Remove)
	r.mux.HandleFunc("GET /api/v1/wishlist/{id}/matches", r.wishlistHandlers.Matches)
	r.mux.HandleFunc("GET /api/v1/wishlist/{id}/log", r.wishlistHandlers.Log)

	// Catalog mirror
	r.mux.HandleFunc("POST /api/v1/catalog/sync", r.catalogHandlers.Sync)
	r.mux.HandleFunc("GET /api/v1/catalog/{kind}/{provider_id}", r.catalogHandlers.Get)

	// Live status events
	r.mux.HandleFunc("GET /ws", func(w http.ResponseWriter, req *http.Request) {
		events.ServeWS(r.hub, w, req)
	})
}
