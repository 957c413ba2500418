// Package roster synchronizes identity metadata with an external student
// information system. Face encodings are never touched by a sync; only who a
// person is (name, email, group) comes from the roster.
package roster

import (
	"context"
	"fmt"

	"github.com/kadlecj/facetrack/internal/store"
	"github.com/kadlecj/facetrack/internal/store/sis"
)

// Lister is the slice of the SIS pool the sync needs.
type Lister interface {
	ListStudents(ctx context.Context) ([]sis.Student, error)
}

// IdentityStore combines the identity access a sync needs.
type IdentityStore interface {
	store.IdentityReader
	store.IdentityWriter
}

// Result summarizes one sync run.
type Result struct {
	Updated    int      // identities whose metadata changed
	Unchanged  int      // identities already in sync
	NotInSIS   []string // enrolled external IDs missing from the roster
	Unenrolled int      // roster students with no enrolled identity (no face yet)
	// Duplicates lists normalized names shared by more than one roster
	// entry. Enrolling the same physical person twice under different IDs is
	// out of scope for matching, so it is surfaced here instead.
	Duplicates []string
}

// Sync updates enrolled identities' metadata from the roster. The progress
// callback (may be nil) is invoked once per enrolled identity.
func Sync(ctx context.Context, roster Lister, identities IdentityStore, progress func()) (*Result, error) {
	students, err := roster.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing roster: %w", err)
	}

	byExternalID := make(map[string]sis.Student, len(students))
	seenNames := make(map[string][]string)
	for _, s := range students {
		byExternalID[s.ExternalID] = s
		key := NormalizeName(s.Name)
		seenNames[key] = append(seenNames[key], s.ExternalID)
	}

	result := &Result{}
	for name, ids := range seenNames {
		if len(ids) > 1 {
			result.Duplicates = append(result.Duplicates, name)
		}
	}

	enrolled, err := identities.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing identities: %w", err)
	}

	enrolledIDs := make(map[string]bool, len(enrolled))
	for _, identity := range enrolled {
		enrolledIDs[identity.ExternalID] = true
		if progress != nil {
			progress()
		}

		student, ok := byExternalID[identity.ExternalID]
		if !ok {
			result.NotInSIS = append(result.NotInSIS, identity.ExternalID)
			continue
		}

		if student.Name == identity.Name && student.Email == identity.Email && student.Group == identity.Group {
			result.Unchanged++
			continue
		}

		if err := identities.UpdateMetadata(ctx, identity.ID, student.Name, student.Email, student.Group); err != nil {
			return nil, fmt.Errorf("updating identity %s: %w", identity.ExternalID, err)
		}
		result.Updated++
	}

	for _, s := range students {
		if !enrolledIDs[s.ExternalID] {
			result.Unenrolled++
		}
	}

	return result, nil
}
