package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	apperrors "github.com/diegolsarmond/qchat/internal/errors"
	"github.com/diegolsarmond/qchat/internal/models"
	"github.com/diegolsarmond/qchat/internal/service"
	"github.com/diegolsarmond/qchat/internal/validation"
)

func (s *Server) handleCreateCredential() http.HandlerFunc {
	type request struct {
		Subdomain string `json:"subdomain"`
		Token     string `json:"token"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		caller := callerID(r)
		if caller == "" {
			s.writeError(w, r, apperrors.NewForbiddenError("create credential", "caller identity is missing"))
			return
		}

		var req request
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := validation.ValidateSubdomain(req.Subdomain); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.Token == "" {
			s.writeError(w, r, apperrors.NewValidationError("token", "", "provider token is required"))
			return
		}

		cred := &models.Credential{
			ID:        uuid.NewString(),
			UserID:    caller,
			Subdomain: req.Subdomain,
			Token:     req.Token,
			Status:    "pending",
		}
		if err := s.db.CreateCredential(r.Context(), cred); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.db.EnsureMember(r.Context(), cred.ID, caller, models.RoleOwner); err != nil {
			s.writeError(w, r, err)
			return
		}

		cred.Token = ""
		s.writeJSON(w, http.StatusCreated, cred)
	}
}

func (s *Server) handleListCredentials() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := callerID(r)
		if caller == "" {
			s.writeError(w, r, apperrors.NewForbiddenError("list credentials", "caller identity is missing"))
			return
		}

		creds, err := s.db.ListCredentialsByUser(r.Context(), caller)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		for i := range creds {
			creds[i].Token = ""
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"credentials": creds})
	}
}

func (s *Server) handleGetCredential() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cred, err := s.guard.Authorize(r.Context(), mux.Vars(r)["credentialID"], callerID(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		cred.Token = ""
		s.writeJSON(w, http.StatusOK, cred)
	}
}

func (s *Server) handleSyncChats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cred, err := s.guard.Authorize(r.Context(), mux.Vars(r)["credentialID"], callerID(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		count, err := s.msgService.SyncChats(r.Context(), cred)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"synced": count})
	}
}

func (s *Server) handleListChats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cred, err := s.guard.Authorize(r.Context(), mux.Vars(r)["credentialID"], callerID(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		chats, err := s.db.ListChats(r.Context(), cred.ID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"chats": chats})
	}
}

func (s *Server) handleFetchMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cred, err := s.guard.Authorize(r.Context(), mux.Vars(r)["credentialID"], callerID(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		chatID, err := pathInt64(r, "chatID")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		query := r.URL.Query()
		opts := service.FetchOptions{
			Limit:  queryInt(query.Get("limit")),
			Offset: queryInt(query.Get("offset")),
			Reset:  query.Get("reset") == "true",
		}

		page, err := s.msgService.FetchMessages(r.Context(), cred, chatID, opts)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, page)
	}
}

func (s *Server) handleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cred, err := s.guard.Authorize(r.Context(), mux.Vars(r)["credentialID"], callerID(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		chatID, err := pathInt64(r, "chatID")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req service.SendRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		req.ChatID = chatID

		msg, err := s.msgService.SendMessage(r.Context(), cred, req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, map[string]any{"message": msg})
	}
}

func (s *Server) handleAssignChat() http.HandlerFunc {
	type request struct {
		AgentID string `json:"agentId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		credentialID := mux.Vars(r)["credentialID"]
		chatID, err := pathInt64(r, "chatID")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req request
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		chat, err := s.attendance.Assign(r.Context(), credentialID, callerID(r), chatID, req.AgentID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"chat": chat})
	}
}

func (s *Server) handleFinishAttendance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credentialID := mux.Vars(r)["credentialID"]
		chatID, err := pathInt64(r, "chatID")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		chat, err := s.attendance.Finish(r.Context(), credentialID, callerID(r), chatID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"chat": chat})
	}
}

func (s *Server) handleAddChatLabel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credentialID := mux.Vars(r)["credentialID"]
		chatID, err := pathInt64(r, "chatID")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		labelID, err := pathInt64(r, "labelID")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		chat, err := s.attendance.AddLabel(r.Context(), credentialID, callerID(r), chatID, labelID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"chat": chat})
	}
}

func (s *Server) handleRemoveChatLabel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credentialID := mux.Vars(r)["credentialID"]
		chatID, err := pathInt64(r, "chatID")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		labelID, err := pathInt64(r, "labelID")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		chat, err := s.attendance.RemoveLabel(r.Context(), credentialID, callerID(r), chatID, labelID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"chat": chat})
	}
}

func (s *Server) handleCreateLabel() http.HandlerFunc {
	type request struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		cred, err := s.guard.Authorize(r.Context(), mux.Vars(r)["credentialID"], callerID(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req request
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := validation.ValidateLabelName(req.Name); err != nil {
			s.writeError(w, r, err)
			return
		}

		label := &models.Label{
			CredentialID: cred.ID,
			Name:         req.Name,
			Color:        req.Color,
		}
		id, err := s.db.CreateLabel(r.Context(), label)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		label.ID = id
		s.writeJSON(w, http.StatusCreated, label)
	}
}

func (s *Server) handleListLabels() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cred, err := s.guard.Authorize(r.Context(), mux.Vars(r)["credentialID"], callerID(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		labels, err := s.db.ListLabels(r.Context(), cred.ID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"labels": labels})
	}
}

func decodeBody(r *http.Request, dst any) error {
	if err := validation.ValidateHTTPRequestSize(r, maxRequestBodyBytes); err != nil {
		return err
	}
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		return apperrors.NewValidationError("body", "", "malformed JSON body")
	}
	return nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, apperrors.NewValidationError(name, raw, "must be a positive integer")
	}
	return value, nil
}

func queryInt(raw string) int {
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
