// Package ports declares the narrow collaborator interfaces the engine
// depends on: an inbound/outbound messaging channel and an LLM completion
// client. Concrete adapters live in internal/channel and internal/llmclient.
package ports

import (
	"context"

	"github.com/arcadehub/promptengine/internal/domain"
)

// Channel delivers inbound user messages and sends outbound replies. A
// concrete adapter owns the transport (e.g. long-polling a bot API); the
// admission front only calls Send.
type Channel interface {
	// Send delivers text to chatID. Implementations should be safe to call
	// concurrently from multiple workers.
	Send(ctx context.Context, chatID, text string) error
}

// LLM generates model completions for both the activity prompt and the
// judge prompt. Implementations must honor ctx cancellation/timeout.
type LLM interface {
	// Generate produces the model's answer to the user's prompt, given the
	// level's system prompt and an output-token budget.
	Generate(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, error)

	// Complete is the narrower call used by the judge stage; in the
	// concrete adapter it is the same transport as Generate.
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, error)
}

// InboundHandler is implemented by the admission front and registered with
// a Channel adapter as the callback for inbound messages.
type InboundHandler interface {
	OnMessage(ctx context.Context, msg domain.InboundMessage) error
}
