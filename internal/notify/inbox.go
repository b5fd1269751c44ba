package notify

import (
	"context"
	"strings"
	"sync"
)

const inboxLimit = 50

// Inbox is a publisher that keeps messages in memory until they are drained.
// It backs the "api" connector used by the local chat endpoint.
type Inbox struct {
	mu       sync.Mutex
	messages map[string][]string
}

func NewInbox() *Inbox {
	return &Inbox{messages: map[string][]string{}}
}

func (i *Inbox) Publish(ctx context.Context, externalID, text string) error {
	externalID = strings.TrimSpace(externalID)
	i.mu.Lock()
	defer i.mu.Unlock()
	pending := append(i.messages[externalID], text)
	if len(pending) > inboxLimit {
		pending = pending[len(pending)-inboxLimit:]
	}
	i.messages[externalID] = pending
	return nil
}

// Drain returns and forgets the messages queued for externalID.
func (i *Inbox) Drain(externalID string) []string {
	externalID = strings.TrimSpace(externalID)
	i.mu.Lock()
	defer i.mu.Unlock()
	pending := i.messages[externalID]
	delete(i.messages, externalID)
	if pending == nil {
		return []string{}
	}
	return pending
}
