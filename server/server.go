// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

// Package server exposes the gateway over HTTP: the OpenAI-style
// completion, embedding, and image endpoints behind API-key auth, rate
// limiting, and budget enforcement, plus the admin key API, health,
// and prometheus metrics.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"educhat/platform/apikey"
	"educhat/platform/gateway"
	"educhat/platform/metering"
	"educhat/platform/shared/logger"
)

// Server wires the gateway's HTTP surface together.
type Server struct {
	router    *gateway.Router
	relay     *gateway.Relay
	keys      *apikey.Store
	recorder  *metering.Recorder
	budget    *metering.BudgetEnforcer
	estimator *metering.Estimator
	prices    map[string]metering.PriceModel
	limiter   *RateLimiter
	log       *logger.Logger

	adminToken  string
	corsOrigins []string
}

// Deps are the collaborators the server needs. Limiter may be nil, in
// which case rate limiting is disabled. AdminToken guards the /admin
// surface; when empty that surface rejects every request.
type Deps struct {
	Router      *gateway.Router
	Keys        *apikey.Store
	Recorder    *metering.Recorder
	Budget      *metering.BudgetEnforcer
	Prices      map[string]metering.PriceModel
	Limiter     *RateLimiter
	AdminToken  string
	CORSOrigins []string
	Log         *logger.Logger
}

// New creates the HTTP server.
func New(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = logger.New("server")
	}
	estimator := metering.NewEstimator()
	return &Server{
		router:      deps.Router,
		relay:       gateway.NewRelay(estimator, log),
		keys:        deps.Keys,
		recorder:    deps.Recorder,
		budget:      deps.Budget,
		estimator:   estimator,
		prices:      deps.Prices,
		limiter:     deps.Limiter,
		log:         log,
		adminToken:  deps.AdminToken,
		corsOrigins: deps.CORSOrigins,
	}
}

// Handler builds the routing table. Gateway endpoints run the full
// middleware chain; the admin surface is gated by the operator token
// instead of API-key auth; health and metrics stay open.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Gateway surface: request id -> auth -> rate limit -> budget.
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(s.authMiddlewareFunc, s.rateLimitMiddlewareFunc, s.budgetMiddlewareFunc)
	v1.HandleFunc("/chat/completions", s.handleChatCompletions).Methods("POST")
	v1.HandleFunc("/embeddings", s.handleEmbeddings).Methods("POST")
	v1.HandleFunc("/images/generations", s.handleImageGenerations).Methods("POST")
	v1.HandleFunc("/models", s.handleModels).Methods("GET")

	// Admin key management.
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(s.adminAuthMiddlewareFunc)
	admin.HandleFunc("/keys", s.handleCreateKey).Methods("POST")
	admin.HandleFunc("/keys", s.handleListKeys).Methods("GET")
	admin.HandleFunc("/keys/{id}/state", s.handleUpdateKeyState).Methods("PUT")
	admin.HandleFunc("/keys/{id}", s.handleDeleteKey).Methods("DELETE")

	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return s.requestIDMiddleware(c.Handler(r))
}

// mux.Use wants mux.MiddlewareFunc; these adapt the http.Handler
// middlewares.
func (s *Server) authMiddlewareFunc(next http.Handler) http.Handler {
	return s.authMiddleware(next)
}

func (s *Server) rateLimitMiddlewareFunc(next http.Handler) http.Handler {
	return s.rateLimitMiddleware(next)
}

func (s *Server) budgetMiddlewareFunc(next http.Handler) http.Handler {
	return s.budgetMiddleware(next)
}

func (s *Server) adminAuthMiddlewareFunc(next http.Handler) http.Handler {
	return s.adminAuthMiddleware(next)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	ids := s.router.Models()
	data := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		data = append(data, map[string]string{"id": id, "object": "model"})
	}
	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": data})
}
