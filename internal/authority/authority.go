// Package authority answers scope questions: which affiliations an
// evaluator administers and which directions those reach.
package authority

import (
	"errors"
	"sort"

	"github.com/akozyrev/sciselect/internal/model"
)

// ErrNoAffiliations is returned when a master with zero affiliations
// attempts any scoped operation. Mapped to a 403 at the request boundary.
var ErrNoAffiliations = errors.New("master has no affiliations")

// IsAuthorized reports whether the affiliation is in the master's set.
func IsAuthorized(affiliations []model.Affiliation, affiliationID int64) bool {
	for _, a := range affiliations {
		if a.ID == affiliationID {
			return true
		}
	}
	return false
}

// MasterDirections returns the distinct direction IDs reachable through
// the master's affiliations.
func MasterDirections(affiliations []model.Affiliation) []int64 {
	seen := make(map[int64]bool, len(affiliations))
	var directions []int64
	for _, a := range affiliations {
		if !seen[a.DirectionID] {
			seen[a.DirectionID] = true
			directions = append(directions, a.DirectionID)
		}
	}
	sort.Slice(directions, func(i, j int) bool { return directions[i] < directions[j] })
	return directions
}

// GroupByDirection buckets affiliations by their direction, each bucket
// ordered by (company, platoon).
func GroupByDirection(affiliations []model.Affiliation) map[int64][]model.Affiliation {
	grouped := make(map[int64][]model.Affiliation)
	for _, a := range affiliations {
		grouped[a.DirectionID] = append(grouped[a.DirectionID], a)
	}
	for _, affs := range grouped {
		sort.Slice(affs, func(i, j int) bool {
			if affs[i].Company != affs[j].Company {
				return affs[i].Company < affs[j].Company
			}
			return affs[i].Platoon < affs[j].Platoon
		})
	}
	return grouped
}

// RequireAffiliations guards scoped master operations: it fails with
// ErrNoAffiliations when the set is empty.
func RequireAffiliations(affiliations []model.Affiliation) error {
	if len(affiliations) == 0 {
		return ErrNoAffiliations
	}
	return nil
}
