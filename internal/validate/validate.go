package validate

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/mikey/phishing-report-relay/internal/core"
)

// MaxBodyBytes caps how much of a request body is read before decoding
const MaxBodyBytes = 1 << 20

// FieldError describes a single schema violation
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the validation failure returned for a rejected payload
type Error struct {
	Fields []FieldError
}

// Error implements the error interface
func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// authStatus is the wire form of a single authentication check outcome
type authStatus struct {
	Status string `json:"status" validate:"required,oneof=pass fail none unknown"`
}

// authResults is the wire form of the auth_results sub-record
type authResults struct {
	DKIM  *authStatus `json:"dkim"`
	SPF   *authStatus `json:"spf"`
	DMARC *authStatus `json:"dmarc"`
}

// reportRequest is the wire form of a report submission. Required integer
// fields are pointers so that an absent field is distinguishable from zero.
type reportRequest struct {
	MessageID          string       `json:"message_id" validate:"required"`
	Subject            string       `json:"subject" validate:"required"`
	FromAddress        string       `json:"from_address" validate:"required,email"`
	ToAddress          string       `json:"to_address" validate:"omitempty,email"`
	FinalScore         *int         `json:"final_score" validate:"required,min=0,max=100"`
	HeuristicScore     *int         `json:"heuristic_score" validate:"required,min=0,max=120"`
	LLMScore           *int         `json:"llm_score" validate:"omitempty,min=0,max=100"`
	Details            []string     `json:"details"`
	SuspiciousElements []string     `json:"suspicious_elements"`
	AuthResults        *authResults `json:"auth_results"`
	AnalysedAt         *time.Time   `json:"analysed_at"`
}

var (
	once       sync.Once
	vld        *validator.Validate
	translator ut.Translator
)

// initValidator builds the singleton validator with json tag names and
// english message translations.
func initValidator() {
	once.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		translator, _ = uni.GetTranslator("en")

		vld = validator.New(validator.WithRequiredStructEnabled())

		// Prefer json tag names in messages
		vld.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})

		_ = en_translations.RegisterDefaultTranslations(vld, translator)
	})
}

// ParseReport decodes and validates a report submission from an HTTP request
// body. It returns a *Error describing every violated field on failure.
func ParseReport(r *http.Request) (core.ReportPayload, error) {
	defer r.Body.Close()
	return Report(io.LimitReader(r.Body, MaxBodyBytes))
}

// Report decodes and validates a report submission from raw JSON. Unknown
// fields are rejected. On success the returned payload has defaults applied:
// absent auth results are unknown and analysed_at is left unset for the
// caller to substitute.
func Report(raw io.Reader) (core.ReportPayload, error) {
	initValidator()

	var req reportRequest
	dec := json.NewDecoder(raw)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return core.ReportPayload{}, &Error{Fields: []FieldError{
			{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)},
		}}
	}

	if err := vld.Struct(req); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return core.ReportPayload{}, &Error{Fields: []FieldError{
				{Field: "body", Message: err.Error()},
			}}
		}
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field:   fe.Field(),
				Message: fe.Translate(translator),
			})
		}
		return core.ReportPayload{}, &Error{Fields: fields}
	}

	return toPayload(req), nil
}

// toPayload converts a validated wire request into the domain payload,
// applying defaults for the optional auth results.
func toPayload(req reportRequest) core.ReportPayload {
	auth := core.AuthResults{
		DKIM:  core.AuthUnknown,
		SPF:   core.AuthUnknown,
		DMARC: core.AuthUnknown,
	}
	if req.AuthResults != nil {
		if req.AuthResults.DKIM != nil {
			auth.DKIM = core.AuthResult(req.AuthResults.DKIM.Status)
		}
		if req.AuthResults.SPF != nil {
			auth.SPF = core.AuthResult(req.AuthResults.SPF.Status)
		}
		if req.AuthResults.DMARC != nil {
			auth.DMARC = core.AuthResult(req.AuthResults.DMARC.Status)
		}
	}

	return core.ReportPayload{
		MessageID:          req.MessageID,
		Subject:            req.Subject,
		FromAddress:        req.FromAddress,
		ToAddress:          req.ToAddress,
		FinalScore:         *req.FinalScore,
		HeuristicScore:     *req.HeuristicScore,
		LLMScore:           req.LLMScore,
		Details:            req.Details,
		SuspiciousElements: req.SuspiciousElements,
		AuthResults:        auth,
		AnalysedAt:         req.AnalysedAt,
	}
}
