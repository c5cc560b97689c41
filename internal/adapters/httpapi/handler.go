package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mikey/phishing-report-relay/internal/core"
	"github.com/mikey/phishing-report-relay/internal/validate"
)

// forbiddenReason is the fixed reason returned to callers outside the allowlist
const forbiddenReason = "Forbidden (IP not allowlisted)"

// submissionResponse is the success body for a report submission
type submissionResponse struct {
	Status    core.SubmissionStatus `json:"status"`
	MessageID string                `json:"message_id"`
}

// errorResponse is the body for guard rejections
type errorResponse struct {
	Error string `json:"error"`
}

// validationResponse carries field-level detail for rejected payloads
type validationResponse struct {
	Error  string                `json:"error"`
	Fields []validate.FieldError `json:"fields"`
}

// requireAllowlisted rejects callers whose address is outside the configured
// CIDR ranges before the payload is even read
func (s *Server) requireAllowlisted(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.guard.Allowed(r.RemoteAddr) {
			s.logger.Warn("Rejected caller outside allowlist",
				zap.String("remote_addr", r.RemoteAddr))
			writeJSON(w, http.StatusForbidden, errorResponse{Error: forbiddenReason})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleReport runs the intake pipeline: validate, dedup, enqueue. The
// response is written before any delivery work happens.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	payload, err := validate.ParseReport(r)
	if err != nil {
		var verr *validate.Error
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
				Error:  "validation_failed",
				Fields: verr.Fields,
			})
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Error: "validation_failed",
			Fields: []validate.FieldError{
				{Field: "body", Message: err.Error()},
			},
		})
		return
	}

	status := s.service.Submit(payload)

	writeJSON(w, http.StatusAccepted, submissionResponse{
		Status:    status,
		MessageID: payload.MessageID,
	})
}

// handleHealthz reports process liveness
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
