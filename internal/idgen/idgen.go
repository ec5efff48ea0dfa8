// Package idgen generates entity identifiers.
package idgen

import "github.com/google/uuid"

// New returns a time-sortable v7 UUID string, the identifier format used
// for every entity in the data model (§3: "keyed by time-sortable UUIDs").
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
