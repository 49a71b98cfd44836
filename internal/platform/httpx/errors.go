package httpx

import (
	"errors"
	"log/slog"
	"net/http"
)

// Sentinel errors for request handling.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrValidation = errors.New("validation failed")
)

// Classifier maps a domain error to an HTTP status and a stable code.
type Classifier func(error) (status int, code string)

// publicError is implemented by errors that can describe themselves without
// exposing storage details.
type publicError interface {
	Public() string
	Context() map[string]any
}

// RespondError writes an error envelope. Server errors are logged with their full
// chain and answered with the public description only.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error, classify Classifier) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, ErrValidation):
		status, code = http.StatusBadRequest, "VALIDATION"
	case errors.Is(err, ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case classify != nil:
		status, code = classify(err)
	}
	if status < http.StatusInternalServerError {
		Fail(w, status, ErrorBody{Code: code, Message: err.Error()})
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("request failed", slog.String("code", code), slog.Any("error", err))
	body := ErrorBody{Code: code, Message: http.StatusText(status)}
	var pub publicError
	if errors.As(err, &pub) {
		body.Message = pub.Public()
		body.Context = pub.Context()
	}
	Fail(w, status, body)
}
