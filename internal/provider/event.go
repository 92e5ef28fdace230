// Package provider defines the types through that the core interacts with
// a code-hosting provider: incoming change notifications and the narrow
// client interface for applying side effects.
package provider

import (
	"fmt"

	"go.uber.org/zap"
)

// Event is a pull-request state change notification.
// Delivery is at-least-once, the receiving side must absorb duplicates.
type Event struct {
	JSON     []byte
	Provider string

	DeliveryID      string
	EventType       string
	Action          string
	RepositoryOwner string
	Repository      string
	BaseBranch      string
	Branch          string
	CommitID        string
	// PullRequestNr is 0 if it's not available
	PullRequestNr int

	LogFields []zap.Field
}

func (e *Event) String() string {
	return fmt.Sprintf("%s/%s (deliveryID: %s)", e.Provider, e.EventType, e.DeliveryID)
}
