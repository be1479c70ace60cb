// Package mail delivers outbound email.
package mail

import (
	"context"
	"errors"
)

// ErrNoRecipients is returned when a message has nobody to deliver to.
var ErrNoRecipients = errors.New("mail: message has no recipients")

// Message is a single outbound email. Text and HTML may both be set.
type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Recipients returns the non-empty, de-duplicated addresses in order.
func Recipients(addrs ...string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
