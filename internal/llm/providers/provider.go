package providers

import "context"

// Message is one chat turn sent to a completion provider.
type Message struct {
	Role    string
	Content string
}

// Provider is the minimal completion capability the idea service needs:
// generate text from a prompt. Failures are classified by the gateway.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Name() string
}
