package scan

import (
	"net/http"

	"Shelfscan/pkg/response"
)

var (
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
	ErrBadRequest          = response.NewError(http.StatusBadRequest, "bad request")
	ErrNoImageProvided     = response.NewError(http.StatusBadRequest, "no image provided")
	ErrProviderUnavailable = response.NewError(http.StatusServiceUnavailable, "vision provider unavailable")
)
