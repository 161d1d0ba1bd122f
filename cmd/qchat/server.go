package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/diegolsarmond/qchat/internal/constants"
	"github.com/diegolsarmond/qchat/internal/database"
	apperrors "github.com/diegolsarmond/qchat/internal/errors"
	"github.com/diegolsarmond/qchat/internal/httputil"
	"github.com/diegolsarmond/qchat/internal/middleware"
	"github.com/diegolsarmond/qchat/internal/models"
	"github.com/diegolsarmond/qchat/internal/realtime"
	"github.com/diegolsarmond/qchat/internal/service"
	"github.com/diegolsarmond/qchat/internal/tracing"
)

const maxRequestBodyBytes = 10 << 20

type Server struct {
	router      *mux.Router
	cfg         *models.Config
	db          *database.Database
	guard       *service.Guard
	msgService  *service.MessageService
	attendance  *service.AttendanceService
	hub         *realtime.Hub
	logger      *logrus.Logger
	rateLimiter *RateLimiter
	server      *http.Server
}

func NewServer(cfg *models.Config, db *database.Database, guard *service.Guard, msgService *service.MessageService, attendance *service.AttendanceService, hub *realtime.Hub, logger *logrus.Logger) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		cfg:         cfg,
		db:          db,
		guard:       guard,
		msgService:  msgService,
		attendance:  attendance,
		hub:         hub,
		logger:      logger,
		rateLimiter: NewRateLimiter(cfg.Server.RateLimitPerMinute, time.Minute),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))

	// Health check and metrics
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	// Provider webhook
	webhook := s.router.PathPrefix("/webhook/provider").Subrouter()
	webhook.Use(middleware.WebhookObservabilityMiddleware(s.logger, "provider"))
	webhook.HandleFunc("", s.handleProviderWebhook()).Methods(http.MethodPost)

	// Console API
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/credentials", s.handleCreateCredential()).Methods(http.MethodPost)
	api.HandleFunc("/credentials", s.handleListCredentials()).Methods(http.MethodGet)

	cred := api.PathPrefix("/credentials/{credentialID}").Subrouter()
	cred.HandleFunc("", s.handleGetCredential()).Methods(http.MethodGet)
	cred.HandleFunc("/sync", s.handleSyncChats()).Methods(http.MethodPost)
	cred.HandleFunc("/chats", s.handleListChats()).Methods(http.MethodGet)
	cred.HandleFunc("/chats/{chatID:[0-9]+}/messages", s.handleFetchMessages()).Methods(http.MethodGet)
	cred.HandleFunc("/chats/{chatID:[0-9]+}/messages", s.handleSendMessage()).Methods(http.MethodPost)
	cred.HandleFunc("/chats/{chatID:[0-9]+}/assign", s.handleAssignChat()).Methods(http.MethodPost)
	cred.HandleFunc("/chats/{chatID:[0-9]+}/finish", s.handleFinishAttendance()).Methods(http.MethodPost)
	cred.HandleFunc("/chats/{chatID:[0-9]+}/labels/{labelID:[0-9]+}", s.handleAddChatLabel()).Methods(http.MethodPut)
	cred.HandleFunc("/chats/{chatID:[0-9]+}/labels/{labelID:[0-9]+}", s.handleRemoveChatLabel()).Methods(http.MethodDelete)
	cred.HandleFunc("/labels", s.handleCreateLabel()).Methods(http.MethodPost)
	cred.HandleFunc("/labels", s.handleListLabels()).Methods(http.MethodGet)
	cred.HandleFunc("/ws", s.handleRealtime()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	port := os.Getenv("PORT")
	if port == "" {
		port = fmt.Sprintf("%d", s.cfg.Server.Port)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting server on port %s", port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

// handleProviderWebhook receives pushed provider events. Deliveries are
// authenticated by HMAC signature and resolved to a tenant through the
// envelope's subdomain.
func (s *Server) handleProviderWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := httputil.GetClientIP(r)
		if !s.rateLimiter.Allow(clientIP) {
			s.writeError(w, r, apperrors.NewRateLimitError(s.cfg.Server.RateLimitPerMinute, "minute"))
			return
		}

		body, err := verifySignature(r, s.cfg.Provider.WebhookSecret, "X-Webhook-Signature", s.cfg.Server.WebhookMaxSkewSec)
		if err != nil {
			s.logger.WithError(err).WithField(service.LogFieldRemoteIP, clientIP).
				Warn("Rejected webhook delivery")
			s.writeError(w, r, apperrors.New(apperrors.ErrCodeAuthentication, "invalid webhook signature"))
			return
		}

		var env models.WebhookEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			s.writeError(w, r, apperrors.NewValidationError("body", "", "malformed webhook payload"))
			return
		}
		if env.Subdomain == "" {
			s.writeError(w, r, apperrors.NewValidationError("subdomain", "", "subdomain is required"))
			return
		}

		cred, err := s.db.GetCredentialBySubdomain(r.Context(), env.Subdomain)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if cred == nil {
			s.writeError(w, r, apperrors.NewNotFoundError("credential", env.Subdomain))
			return
		}

		processed, err := s.msgService.HandleWebhook(r.Context(), cred, &env)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, map[string]any{"processed": processed})
	}
}

// handleRealtime upgrades a console client onto the credential's event
// stream.
func (s *Server) handleRealtime() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credentialID := mux.Vars(r)["credentialID"]
		if _, err := s.guard.Authorize(r.Context(), credentialID, callerID(r)); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.hub.Handle(w, r, credentialID)
	}
}

// callerID extracts the authenticated user id established by the edge
// authentication layer.
func callerID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestInfo := tracing.GetRequestInfo(r.Context())
	status := apperrors.HTTPStatusCode(err)

	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField(service.LogFieldRequestID, requestInfo.RequestID).
			Error("Request failed")
	}

	resp := apperrors.ToHTTPResponse(err, requestInfo.RequestID)
	s.writeJSON(w, status, resp)
}
