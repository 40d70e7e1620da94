package booking

import (
	"errors"

	"github.com/akozyrev/sciselect/internal/model"
	"github.com/akozyrev/sciselect/internal/store"
)

// ErrNotBookedHere means the candidate is not booked at the affiliation
// whose work group is being assigned.
var ErrNotBookedHere = errors.New("candidate is not booked at this affiliation")

// Assigner places booked candidates into work groups.
type Assigner struct {
	store *store.Store
}

// NewAssigner creates a work-group assigner.
func NewAssigner(s *store.Store) *Assigner {
	return &Assigner{store: s}
}

// Assign puts the candidate into the work group. The candidate must be
// booked at the group's affiliation; a second call replaces the previous
// assignment.
func (a *Assigner) Assign(master *model.Member, app *model.Application, workGroupID int64) error {
	group, err := a.store.GetWorkGroup(workGroupID)
	if err != nil {
		return err
	}
	if group == nil {
		return ErrBookingNotFound
	}
	affiliations, err := a.store.MemberAffiliations(master.ID)
	if err != nil {
		return err
	}
	if !containsAffiliation(affiliations, group.AffiliationID) {
		return ErrNotAuthorized
	}
	booking, err := a.store.BookedBookingAt(app.MemberID, group.AffiliationID)
	if err != nil {
		return err
	}
	if booking == nil {
		return ErrNotBookedHere
	}
	return a.store.SetApplicationWorkGroup(app.ID, &workGroupID)
}

// Remove takes the candidate out of their work group. Removing a
// candidate who has no group is a no-op.
func (a *Assigner) Remove(master *model.Member, app *model.Application) error {
	if app.WorkGroupID == nil {
		return nil
	}
	group, err := a.store.GetWorkGroup(*app.WorkGroupID)
	if err != nil {
		return err
	}
	if group != nil {
		affiliations, err := a.store.MemberAffiliations(master.ID)
		if err != nil {
			return err
		}
		if !containsAffiliation(affiliations, group.AffiliationID) {
			return ErrNotAuthorized
		}
	}
	return a.store.SetApplicationWorkGroup(app.ID, nil)
}

func containsAffiliation(affiliations []model.Affiliation, id int64) bool {
	for _, a := range affiliations {
		if a.ID == id {
			return true
		}
	}
	return false
}
