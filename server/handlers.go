// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"educhat/platform/apikey"
	"educhat/platform/gateway"
	"educhat/platform/metering"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, errType string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Message: message, Type: errType}})
}

// writeGatewayError maps gateway errors onto HTTP statuses. Vendor
// 4xx statuses pass through so callers see quota and validation
// problems as their own; vendor 5xx collapses to 502.
func (s *Server) writeGatewayError(w http.ResponseWriter, requestID string, err error) {
	var unknownModel *gateway.UnknownModelError
	var unsupported *gateway.UnsupportedOperationError
	var vendorErr *gateway.VendorError
	var cfgErr *gateway.ConfigError

	switch {
	case errors.As(err, &unknownModel):
		writeError(w, http.StatusNotFound, err.Error(), "model_not_found")
	case errors.As(err, &unsupported):
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_request_error")
	case errors.As(err, &vendorErr):
		status := http.StatusBadGateway
		if vendorErr.StatusCode >= 400 && vendorErr.StatusCode < 500 {
			status = vendorErr.StatusCode
		}
		s.log.ErrorWithCode(requestID, "vendor call failed", status, err, map[string]interface{}{
			"vendor": string(vendorErr.Vendor),
		})
		writeError(w, status, err.Error(), "vendor_error")
	case errors.As(err, &cfgErr):
		s.log.ErrorWithCode(requestID, "model misconfigured", http.StatusInternalServerError, err, nil)
		writeError(w, http.StatusInternalServerError, "model misconfigured", "internal_error")
	default:
		s.log.ErrorWithCode(requestID, "request failed", http.StatusInternalServerError, err, nil)
		writeError(w, http.StatusInternalServerError, "internal error", "internal_error")
	}
}

// record persists one usage record and updates the meters. Recording
// failures are logged, never surfaced: the caller already has their
// response and usage loss is an operator problem.
func (s *Server) record(r *http.Request, modelID string, m metering.Measured, estimated bool) {
	requestID := RequestIDFromContext(r.Context())
	key := KeyFromContext(r.Context())
	if key == nil {
		return
	}

	price := s.prices[modelID]
	rec, err := s.recorder.Record(r.Context(), requestID, key.ID, modelID, price, m, estimated)
	if err != nil {
		s.log.Error(requestID, "failed to record usage", map[string]interface{}{
			"model": modelID,
			"error": err.Error(),
		})
		return
	}

	promTokensTotal.WithLabelValues(modelID, "prompt").Add(float64(m.PromptTokens))
	promTokensTotal.WithLabelValues(modelID, "completion").Add(float64(m.CompletionTokens))
	promCostCentsTotal.WithLabelValues(modelID).Add(float64(rec.CostInCent))
	if estimated {
		promEstimationFallback.WithLabelValues(modelID).Inc()
	}
}

func (s *Server) observe(vendor gateway.VendorType, operation, status string, start time.Time) {
	promRequestsTotal.WithLabelValues(string(vendor), operation, status).Inc()
	promRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// vendorOf resolves the vendor label for metrics; unknown models keep
// an empty label.
func (s *Server) vendorOf(modelID string) gateway.VendorType {
	if a, err := s.router.Adapter(modelID); err == nil {
		return a.Vendor()
	}
	return ""
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := RequestIDFromContext(r.Context())

	var req gateway.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_request_error")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required", "invalid_request_error")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty", "invalid_request_error")
		return
	}

	vendor := s.vendorOf(req.Model)
	operation := "completion"
	if req.Stream {
		operation = "streaming_completion"
	}

	if req.Stream {
		s.streamCompletion(w, r, req, vendor, start)
		return
	}

	completion, err := s.router.Completion(r.Context(), req.Model, req)
	if err != nil {
		s.observe(vendor, operation, "error", start)
		s.writeGatewayError(w, requestID, err)
		return
	}

	usage := completion.Usage
	if usage.TotalTokens == 0 {
		// Vendor omitted usage; fall back to the heuristic estimate.
		var completionText strings.Builder
		for _, choice := range completion.Choices {
			completionText.WriteString(choice.Message.Content)
		}
		measured := s.estimator.EstimateUsage(req.PromptTexts(), completionText.String())
		usage = gateway.Usage{
			PromptTokens:     measured.PromptTokens,
			CompletionTokens: measured.CompletionTokens,
			TotalTokens:      measured.PromptTokens + measured.CompletionTokens,
			Estimated:        true,
		}
		completion.Usage = usage
		s.log.Info(requestID, "vendor omitted usage, synthesized estimate", map[string]interface{}{
			"model": req.Model,
		})
	}

	s.record(r, req.Model, metering.Measured{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
	}, usage.Estimated)

	s.observe(vendor, operation, "ok", start)
	writeJSON(w, http.StatusOK, completion)
}

// streamCompletion relays NDJSON chunks to the caller and meters the
// request from the relay's usage result, including the partial work of
// a stream that failed midway.
func (s *Server) streamCompletion(w http.ResponseWriter, r *http.Request, req gateway.Request, vendor gateway.VendorType, start time.Time) {
	requestID := RequestIDFromContext(r.Context())

	stream, err := s.router.StreamCompletion(r.Context(), req.Model, req)
	if err != nil {
		s.observe(vendor, "streaming_completion", "error", start)
		s.writeGatewayError(w, requestID, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	promptText := strings.Join(req.PromptTexts(), " ")
	usage, relayErr := s.relay.Run(r.Context(), requestID, stream, w, promptText)

	s.record(r, req.Model, metering.Measured{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
	}, usage.Estimated)

	status := "ok"
	if relayErr != nil {
		status = "error"
	}
	s.observe(vendor, "streaming_completion", status, start)
}

func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := RequestIDFromContext(r.Context())

	var req gateway.EmbeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_request_error")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required", "invalid_request_error")
		return
	}
	if len(req.Input) == 0 {
		writeError(w, http.StatusBadRequest, "input must not be empty", "invalid_request_error")
		return
	}

	vendor := s.vendorOf(req.Model)
	resp, err := s.router.Embedding(r.Context(), req.Model, req)
	if err != nil {
		s.observe(vendor, "embedding", "error", start)
		s.writeGatewayError(w, requestID, err)
		return
	}

	usage := resp.Usage
	estimated := false
	if usage.TotalTokens == 0 {
		measured := s.estimator.EstimateUsage(req.Input, "")
		usage.PromptTokens = measured.PromptTokens
		usage.TotalTokens = measured.PromptTokens
		estimated = true
		resp.Usage = usage
	}

	s.record(r, req.Model, metering.Measured{PromptTokens: usage.PromptTokens}, estimated)
	s.observe(vendor, "embedding", "ok", start)
	writeJSON(w, http.StatusOK, resp)
}

// imageGenerationRequest adds the model field to the canonical image
// request, matching the OpenAI images endpoint shape.
type imageGenerationRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n,omitempty"`
	Size   string `json:"size,omitempty"`
}

func (s *Server) handleImageGenerations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := RequestIDFromContext(r.Context())

	var req imageGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_request_error")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required", "invalid_request_error")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required", "invalid_request_error")
		return
	}

	vendor := s.vendorOf(req.Model)
	resp, err := s.router.ImageGeneration(r.Context(), req.Model, gateway.ImageRequest{
		Prompt: req.Prompt,
		N:      req.N,
		Size:   req.Size,
	})
	if err != nil {
		s.observe(vendor, "image_generation", "error", start)
		s.writeGatewayError(w, requestID, err)
		return
	}

	s.record(r, req.Model, metering.Measured{Images: len(resp.Data)}, false)
	s.observe(vendor, "image_generation", "ok", start)
	writeJSON(w, http.StatusOK, resp)
}

// === Admin key API ===

type createKeyRequest struct {
	Name          string     `json:"name"`
	LimitInCent   int64      `json:"limit_in_cent"`
	BudgetMinutes int        `json:"budget_minutes"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type createKeyResponse struct {
	Key    string     `json:"key"`
	Record apikey.Key `json:"record"`
}

func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFromContext(r.Context())

	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_request_error")
		return
	}

	key, display, err := s.keys.Create(r.Context(), apikey.CreateParams{
		Name:          req.Name,
		LimitInCent:   req.LimitInCent,
		BudgetMinutes: req.BudgetMinutes,
		ExpiresAt:     req.ExpiresAt,
	})
	if err != nil {
		s.log.ErrorWithCode(requestID, "failed to create api key", http.StatusInternalServerError, err, nil)
		writeError(w, http.StatusInternalServerError, "internal error", "internal_error")
		return
	}

	// The display string is returned exactly once; only its hash is
	// stored.
	writeJSON(w, http.StatusCreated, createKeyResponse{Key: display, Record: *key})
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFromContext(r.Context())

	keys, err := s.keys.List(r.Context())
	if err != nil {
		s.log.ErrorWithCode(requestID, "failed to list api keys", http.StatusInternalServerError, err, nil)
		writeError(w, http.StatusInternalServerError, "internal error", "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

type updateKeyStateRequest struct {
	Active bool `json:"active"`
}

func (s *Server) handleUpdateKeyState(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFromContext(r.Context())
	id := mux.Vars(r)["id"]

	var req updateKeyStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_request_error")
		return
	}

	if err := s.keys.SetActive(r.Context(), id, req.Active); err != nil {
		s.writeKeyError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFromContext(r.Context())
	id := mux.Vars(r)["id"]

	if err := s.keys.Delete(r.Context(), id); err != nil {
		s.writeKeyError(w, requestID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeKeyError(w http.ResponseWriter, requestID string, err error) {
	if reason, ok := apikey.IsValidationError(err); ok {
		switch reason {
		case apikey.ReasonNotFound:
			writeError(w, http.StatusNotFound, "api key not found", "not_found")
		default:
			writeError(w, http.StatusConflict, err.Error(), "invalid_state")
		}
		return
	}
	s.log.ErrorWithCode(requestID, "api key operation failed", http.StatusInternalServerError, err, nil)
	writeError(w, http.StatusInternalServerError, "internal error", "internal_error")
}
