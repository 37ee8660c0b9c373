// Package responder отправляет прикрепленную к запросу команду в шину и
// отображает результат или ошибку в HTTP-ответ.
package responder

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/x-research-team/req2cmd/bus/command"
	"github.com/x-research-team/req2cmd/errs"
)

// Коды ошибок в конверте ответа.
const (
	CodeExtractionFailed       = "extraction_failed"
	CodeDenormalizationFailed  = "denormalization_failed"
	CodeInvalidInput           = "invalid_input"
	CodeMissingAttachedCommand = "missing_command"
	CodeDispatchFailed         = "dispatch_failed"
	CodeInternal               = "internal"
)

// APIError — тело ошибки.
type APIError struct {
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Fields  []errs.FieldError `json:"fields,omitempty"`
}

// ErrorEnvelope — конверт ответа с ошибкой.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// StatusFor сопоставляет ошибку конвейера с HTTP-статусом и кодом.
func StatusFor(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, errs.ErrDenormalizationFailed):
		return http.StatusUnprocessableEntity, CodeDenormalizationFailed
	case errors.Is(err, errs.ErrExtractionFailed):
		return http.StatusBadRequest, CodeExtractionFailed
	case errors.Is(err, command.ErrInvalidInput):
		return http.StatusUnprocessableEntity, CodeInvalidInput
	case errors.Is(err, errs.ErrMissingAttachedCommand):
		return http.StatusInternalServerError, CodeMissingAttachedCommand
	case errors.Is(err, errs.ErrDispatchFailed):
		return http.StatusInternalServerError, CodeDispatchFailed
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// WriteJSON пишет v в формате JSON с указанным статусом. Для 204 тело не пишется.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	if status == http.StatusNoContent || v == nil {
		w.WriteHeader(status)
		return nil
	}

	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}

// WriteError пишет конверт ошибки и возвращает выбранный статус. Текст
// серверных ошибок заменяется стандартным описанием статуса.
func WriteError(w http.ResponseWriter, err error) int {
	status, code := StatusFor(err)

	apiErr := APIError{Code: code, Fields: errs.FieldsOf(err)}
	if status >= http.StatusInternalServerError || err == nil {
		apiErr.Message = http.StatusText(status)
		apiErr.Fields = nil
	} else {
		apiErr.Message = err.Error()
	}

	if writeErr := WriteJSON(w, status, ErrorEnvelope{Error: apiErr}); writeErr != nil {
		w.WriteHeader(status)
	}
	return status
}
