package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable signals that the backing attribute store cannot be reached.
	ErrSourceUnavailable = errors.New("attribute source unavailable")
	// ErrInvalidRuleCondition signals a rule with zero or multiple condition types.
	ErrInvalidRuleCondition = errors.New("invalid rule condition")
	// ErrQueryTimeout signals that query execution exceeded its deadline.
	ErrQueryTimeout = errors.New("query timeout")
	// ErrUnknownFilterKey signals a filter key with no matching filter definition.
	ErrUnknownFilterKey = errors.New("unknown filter key")
	// ErrTypeMismatch signals a filter value of the wrong type for its definition.
	ErrTypeMismatch = errors.New("filter value type mismatch")
	// ErrNoGeneration signals that no index generation has been published yet.
	ErrNoGeneration = errors.New("no index generation published")
	// ErrRebuildInProgress signals that a rebuild is already running.
	ErrRebuildInProgress = errors.New("rebuild already in progress")
	// ErrRebuildThrottled signals that rebuilds are rate limited.
	ErrRebuildThrottled = errors.New("rebuild rate limit exceeded")
	// ErrUnknownNode signals a taxonomy code with no matching node.
	ErrUnknownNode = errors.New("unknown taxonomy node")
)

// RebuildPhaseError wraps a failure of one rebuild phase. The previous
// generation stays published; ItemID is set when a single item caused the failure.
type RebuildPhaseError struct {
	Phase  string
	ItemID string
	Err    error
}

func (e *RebuildPhaseError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("rebuild phase %s failed at item %s: %v", e.Phase, e.ItemID, e.Err)
	}
	return fmt.Sprintf("rebuild phase %s failed: %v", e.Phase, e.Err)
}

func (e *RebuildPhaseError) Unwrap() error { return e.Err }

// NewRebuildPhaseError creates a rebuild phase error.
func NewRebuildPhaseError(phase, itemID string, err error) error {
	return &RebuildPhaseError{Phase: phase, ItemID: itemID, Err: err}
}
