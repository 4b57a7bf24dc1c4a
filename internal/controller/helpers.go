package controller

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/cassiomorais/invoicing/internal/domain/errors"
)

var validate = validator.New()

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// Ordering matters: the first match wins, so more specific sentinels come
// before broader ones.
var errorMappings = []errorMapping{
	{errors.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature"},
	{errors.ErrPaymentMethodChanged, http.StatusConflict, "payment_method_changed"},
	{errors.ErrProcessorDeclined, http.StatusPaymentRequired, "declined"},
	{errors.ErrProcessorUnavailable, http.StatusServiceUnavailable, "processor_unavailable"},
	{errors.ErrUnreconcilable, http.StatusUnprocessableEntity, "unreconcilable"},
	{errors.ErrCustomerNotFound, http.StatusNotFound, "customer_not_found"},
	{errors.ErrInvoiceNotFound, http.StatusNotFound, "invoice_not_found"},
	{errors.ErrPaymentNotFound, http.StatusNotFound, "payment_not_found"},
	{errors.ErrPaymentMethodNotFound, http.StatusNotFound, "payment_method_not_found"},
	{errors.ErrDuplicateInvoiceNumber, http.StatusConflict, "duplicate_invoice_number"},
	{errors.ErrDuplicateEmail, http.StatusConflict, "duplicate_email"},
	{errors.ErrDuplicateProcessorRef, http.StatusConflict, "duplicate_processor_ref"},
	{errors.ErrInvalidStateTransition, http.StatusConflict, "invalid_transition"},
	{errors.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{errors.ErrConflictingOutcome, http.StatusConflict, "conflicting_outcome"},
	{errors.ErrValidationFailed, http.StatusBadRequest, "validation_failed"},
	{errors.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Error().Err(err).Msg("failed to encode response body")
		}
	}
}

func writeError(w http.ResponseWriter, err error) {
	var validationErr *errors.ValidationError
	if stderrors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: validationErr.Message,
			Code:  "validation_failed",
			Details: map[string]string{
				"field": validationErr.Field,
			},
		})
		return
	}

	var decline *errors.DeclineError
	if stderrors.As(err, &decline) {
		writeJSON(w, http.StatusPaymentRequired, errorResponse{
			Error: "charge declined",
			Code:  "declined",
			Details: map[string]string{
				"reason": string(decline.Reason),
			},
		})
		return
	}

	for _, m := range errorMappings {
		if stderrors.Is(err, m.target) {
			writeJSON(w, m.status, errorResponse{Error: err.Error(), Code: m.code})
			return
		}
	}

	log.Error().Err(err).Msg("unhandled error")
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error: "internal server error",
		Code:  "internal",
	})
}

func decodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.NewDomainError("bad_json", "request body is not valid JSON", errors.ErrInvalidInput)
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if stderrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return errors.NewValidationError(fe.Field(), "failed on "+fe.Tag())
		}
		return errors.NewDomainError("invalid_body", "request body failed validation", errors.ErrValidationFailed)
	}
	return nil
}
