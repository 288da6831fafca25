package httpx

import (
	"github.com/go-resty/resty/v2"
	"github.com/leokalinowski/purpose-driven-crm/engine/core"
)

// ResponseError converts a non-2xx response into an ExternalServiceError
// carrying the truncated body. Success responses yield nil.
func ResponseError(service string, r *resty.Response) error {
	if r.IsSuccess() {
		return nil
	}
	return core.NewExternalServiceError(service, r.StatusCode(), string(r.Body()))
}
