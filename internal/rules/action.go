package rules

// ActionKind discriminates the action variants of a rule.
type ActionKind uint8

const (
	ActionComment ActionKind = iota
	ActionReview
	ActionDismissReviews
	ActionQueue
)

var actionKindNames = [...]string{
	ActionComment:        "comment",
	ActionReview:         "review",
	ActionDismissReviews: "dismiss_reviews",
	ActionQueue:          "queue",
}

func (k ActionKind) String() string {
	if int(k) >= len(actionKindNames) {
		return "invalid"
	}

	return actionKindNames[k]
}

// Action is one action of a rule.
// It carries no runtime state, idempotency is tracked in the dispatch
// history.
type Action struct {
	Kind ActionKind

	// Message is the comment or dismissal message template,
	// set for ActionComment and ActionDismissReviews.
	Message *Template

	// ReviewType is APPROVE or REQUEST_CHANGES, set for ActionReview.
	ReviewType string

	// ChangesRequestedOnly limits dismissal to changes-requested
	// reviews, set for ActionDismissReviews.
	ChangesRequestedOnly bool

	// QueueName references a queue rule, set for ActionQueue.
	QueueName string
}

func (a *Action) String() string {
	return a.Kind.String()
}
