package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/helixir/scientometrics-service/internal/authz"
	"github.com/helixir/scientometrics-service/internal/domain"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
	maxAuthorIDLength  = 256
)

// listSources handles GET /sources.
func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	enabled := s.deps.AuthorIDs.EnabledSources()
	sources := make([]string, len(enabled))
	for i, src := range enabled {
		sources[i] = string(src)
	}
	writeJSON(w, http.StatusOK, sourcesResponse{
		Sources:        sources,
		ShowOnUserPage: s.deps.ShowOnUserPage,
	})
}

// getMetrics handles GET /users/{userRef}/metrics.
func (s *Server) getMetrics(w http.ResponseWriter, r *http.Request) {
	userRef := chi.URLParam(r, "userRef")
	records, err := s.deps.Metrics.GetMetrics(r.Context(), userRef)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metricsResponse{UserRef: userRef, Metrics: records})
}

// refreshMetrics handles POST /users/{userRef}/metrics/refresh.
// An empty body refreshes every declared source.
func (s *Server) refreshMetrics(w http.ResponseWriter, r *http.Request) {
	userRef := chi.URLParam(r, "userRef")

	var req refreshRequest
	if !s.decodeBody(w, r, &req, true) {
		return
	}

	results, err := s.deps.Metrics.UpdateMetrics(r.Context(), userRef, domain.ParseSources(req.RequestedSources))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{UserRef: userRef, Results: results})
}

// deleteMetrics handles DELETE /users/{userRef}/metrics.
func (s *Server) deleteMetrics(w http.ResponseWriter, r *http.Request) {
	userRef := chi.URLParam(r, "userRef")
	n, err := s.deps.Metrics.DeleteMetrics(r.Context(), userRef)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{UserRef: userRef, Deleted: n})
}

// setMetricStatus handles PUT /users/{userRef}/metrics/{source}/status.
func (s *Server) setMetricStatus(w http.ResponseWriter, r *http.Request) {
	userRef := chi.URLParam(r, "userRef")
	source := domain.Source(chi.URLParam(r, "source"))

	var req statusRequest
	if !s.decodeBody(w, r, &req, false) {
		return
	}

	rec, err := s.deps.Metrics.SetStatus(r.Context(), userRef, source, domain.MetricStatus(req.Status))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// getAuthorIDs handles GET /users/{userRef}/author-ids.
func (s *Server) getAuthorIDs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userRef := chi.URLParam(r, "userRef")
	if err := s.deps.Authorizer.Authorize(ctx, authz.ActionShowAuthorIDs, userRef); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	profile, err := s.deps.AuthorIDs.Read(ctx, userRef)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authorIDsResponse{
		UserID:    profile.UserID,
		UserName:  profile.UserName,
		AuthorIDs: authorIDKeys(profile.Declared()),
	})
}

// patchAuthorIDs handles PATCH /users/{userRef}/author-ids.
// The body maps "<source>_author_id" keys to ids; an empty id removes the key.
func (s *Server) patchAuthorIDs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userRef := chi.URLParam(r, "userRef")

	var updates map[string]string
	if !s.decodeBody(w, r, &updates, false) {
		return
	}
	if len(updates) == 0 {
		writeError(w, http.StatusBadRequest, "at least one author id is required")
		return
	}
	for key, id := range updates {
		if err := s.validate.Var(id, fmt.Sprintf("max=%d", maxAuthorIDLength)); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be at most %d characters", key, maxAuthorIDLength))
			return
		}
		updates[key] = strings.TrimSpace(id)
	}

	ids, err := s.deps.AuthorIDs.Write(ctx, userRef, updates)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	profile, err := s.deps.AuthorIDs.Read(ctx, userRef)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authorIDsResponse{
		UserID:    profile.UserID,
		UserName:  profile.UserName,
		AuthorIDs: authorIDKeys(ids),
	})
}

// decodeBody reads a JSON body into dst and validates structs. It writes a
// 400 response and returns false on failure. With allowEmpty an absent body
// leaves dst untouched.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if len(body) > maxRequestBodySize {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		if allowEmpty {
			return true
		}
		writeError(w, http.StatusBadRequest, "request body is required")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}

	if _, isMap := dst.(*map[string]string); isMap {
		return true
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// validationMessage renders the first failed validation rule.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

// writeDomainError maps domain errors to HTTP status codes. Internal
// details are logged, never returned.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrUnsupportedSource):
		var ue *domain.UnsupportedSourceError
		if errors.As(err, &ue) {
			writeError(w, http.StatusBadRequest, ue.Error())
		} else {
			writeError(w, http.StatusBadRequest, "unsupported source")
		}
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		s.logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
