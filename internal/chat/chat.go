package chat

import "context"

// Transport delivers messages to the chat system the operators and
// clients live in. Implementations must be safe for concurrent use.
type Transport interface {
	// SendMessage posts text to a channel, optionally as a reply to an
	// existing message, and returns the id of the created message.
	SendMessage(ctx context.Context, channelID, text string, replyTo *string) (string, error)
}
