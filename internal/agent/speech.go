package agent

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

const maxErrorBody = 512

var ErrEmptyAudio = errors.New("empty audio")

// APIError is a non-200 reply from one of the speech services.
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Service, e.StatusCode, e.Body)
}

func apiError(service string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{Service: service, StatusCode: resp.StatusCode, Body: string(body)}
}
