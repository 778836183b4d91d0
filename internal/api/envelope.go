package api

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/catalog-server/internal/http/response"
)

// EnvelopeTransformer wraps every huma response body in the API envelope.
// Error bodies become {success:false, error:{...}}; anything else is data.
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	switch body := v.(type) {
	case response.Envelope, *response.Envelope:
		return v, nil
	case *APIError:
		return response.Fail(response.ErrorBody{
			Code:    body.Code,
			Message: body.Message,
			Details: body.Details,
		}), nil
	}
	return response.Ok(v), nil
}
