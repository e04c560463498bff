// Package reasoning defines the reasoning service port (interface).
package reasoning

import "context"

// Request is a single structured completion call to the reasoning
// service. SystemPrompt carries the instructions, UserPrompt the data.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// Response carries the model output plus token accounting for logging.
type Response struct {
	Content   string
	TokensIn  int
	TokensOut int
	Model     string
}

// Service is the port interface for the external reasoning service that
// performs classification and prose generation.
//
// Implementations translate upstream failures to the domain sentinels:
// domain.ErrRateLimited when the provider throttles, domain.ErrUnavailable
// for other transport failures, and domain.ErrMalformed when the response
// envelope cannot be decoded. Schema validation of the Content payload is
// the caller's concern.
type Service interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
