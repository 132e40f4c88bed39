package http

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"schoolhub/internal/logger"
	"schoolhub/internal/validation"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
	maxBodyBytes     = 1 << 20
)

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func writeValidationError(w http.ResponseWriter, fields validation.FieldErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":  "validation_failed",
		"fields": fields,
	})
}

// serverError logs err against the request and answers 500.
func serverError(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).WithError(err).WithField("path", r.URL.Path).Error("request failed")
	writeError(w, http.StatusInternalServerError, "server_error")
}

// validate writes the error response and returns false when in is invalid.
func (s *Server) validate(w http.ResponseWriter, r *http.Request, in interface{}) bool {
	err := s.validator.Struct(in)
	if err == nil {
		return true
	}
	var fields validation.FieldErrors
	if errors.As(err, &fields) {
		writeValidationError(w, fields)
		return false
	}
	serverError(w, r, err)
	return false
}

// decodeValid decodes the body into in and validates it.
func (s *Server) decodeValid(w http.ResponseWriter, r *http.Request, in interface{}) bool {
	if err := decodeJSON(r, in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return false
	}
	return s.validate(w, r, in)
}

type page struct {
	Limit  int
	Offset int
}

func parsePage(r *http.Request) (page, bool) {
	p := page{Limit: defaultPageLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return p, false
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}
		p.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return p, false
		}
		p.Offset = offset
	}
	return p, true
}

func parseDateParam(r *http.Request, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// clientIP is the peer address. Forwarded headers only count when
// TRUST_PROXY mounts middleware.RealIP, which rewrites RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func dateString(t time.Time) string {
	return t.Format(time.DateOnly)
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
