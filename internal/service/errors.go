package service

import (
	"fmt"

	"github.com/forgewright/orchestrator/internal/domain"
)

// domainInvariantErr reports an attempted transition on an entity that
// isn't in the required state: rejected with a conflict-class error,
// no state change.
func domainInvariantErr(action string, status any) error {
	return fmt.Errorf("%s: %w (status=%v)", action, domain.ErrInvariant, status)
}
