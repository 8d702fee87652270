// Package drift compares the locally held state of a published item with the
// state the platform currently reports.
package drift

import (
	"fmt"
	"strings"
	"time"
)

// MissingDifference is reported when the remote item no longer exists.
const MissingDifference = "item not found, may have been deleted"

// Snapshot is the comparable state of one item on either side.
type Snapshot struct {
	ItemID    string     `json:"item_id,omitempty"`
	Title     string     `json:"title"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Status is a computed, non-persistent comparison result.
type Status struct {
	InSync      bool      `json:"in_sync"`
	Local       Snapshot  `json:"local"`
	Remote      *Snapshot `json:"remote"`
	Differences []string  `json:"differences"`
	CheckedAt   time.Time `json:"checked_at"`
}

// Compare reports the item out of sync when titles differ or when the local
// copy was updated strictly after the remote one.
func Compare(local, remote Snapshot) *Status {
	st := &Status{
		Local:       local,
		Remote:      &remote,
		Differences: []string{},
		CheckedAt:   time.Now().UTC(),
	}

	if strings.TrimSpace(local.Title) != strings.TrimSpace(remote.Title) {
		st.Differences = append(st.Differences,
			fmt.Sprintf("title differs: local %q, remote %q", local.Title, remote.Title))
	}

	if local.UpdatedAt != nil && remote.UpdatedAt != nil && local.UpdatedAt.After(*remote.UpdatedAt) {
		st.Differences = append(st.Differences,
			fmt.Sprintf("local changes not yet published: local updated %s, remote updated %s",
				local.UpdatedAt.UTC().Format(time.RFC3339), remote.UpdatedAt.UTC().Format(time.RFC3339)))
	}

	st.InSync = len(st.Differences) == 0
	return st
}

// Missing builds the status for an item the platform no longer has.
func Missing(local Snapshot) *Status {
	return &Status{
		InSync:      false,
		Local:       local,
		Remote:      nil,
		Differences: []string{MissingDifference},
		CheckedAt:   time.Now().UTC(),
	}
}
