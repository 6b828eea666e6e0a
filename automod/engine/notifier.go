package engine

import (
	"context"
)

// Interface for a type that can handle sending notifications
type Notifier interface {
	SendOutcome(ctx context.Context, c Comment, o Outcome) error
}

// Whether an outcome is worth a notification: any destructive action which was applied or needs a human.
func Notable(o Outcome) bool {
	if o.Cached {
		return false
	}
	if o.HasAnnotation(AnnotationManualReview) {
		return true
	}
	return o.Decision.Action.Destructive()
}
