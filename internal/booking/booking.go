// Package booking implements the booking ledger: confirmed selections
// and wishlist entries of candidates into affiliation quotas.
//
// The ledger validates scope and direction rules before writing;
// the at-most-one-booked-per-candidate invariant itself is enforced by a
// database index, so two masters racing for the same candidate cannot
// both win.
package booking

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/akozyrev/sciselect/internal/authority"
	"github.com/akozyrev/sciselect/internal/model"
	"github.com/akozyrev/sciselect/internal/store"
)

var (
	// ErrNotAuthorized means the affiliation is outside the master's scope.
	ErrNotAuthorized = errors.New("affiliation is not in the master's scope")
	// ErrInvalidDirection means the candidate did not choose the
	// affiliation's direction.
	ErrInvalidDirection = errors.New("candidate did not choose the affiliation's direction")
	// ErrAlreadyBooked means the candidate is already booked, by any
	// master into any affiliation.
	ErrAlreadyBooked = errors.New("candidate is already booked")
	// ErrBookingNotFound means no booked booking matches the request.
	ErrBookingNotFound = errors.New("booking not found")
)

// NotOwnerError is returned when a master tries to unbook a candidate
// booked by someone else. The original booker is named for the audit
// trail.
type NotOwnerError struct {
	Booker string
}

func (e *NotOwnerError) Error() string {
	return fmt.Sprintf("candidate was booked by %s", e.Booker)
}

// Ledger performs booking operations against the store.
type Ledger struct {
	store *store.Store
}

// NewLedger creates a booking ledger.
func NewLedger(s *store.Store) *Ledger {
	return &Ledger{store: s}
}

// Book creates a booked booking of the candidate into the affiliation.
// The master must administer the affiliation, the candidate must have
// chosen its direction, and the candidate must not be booked anywhere.
func (l *Ledger) Book(master *model.Member, app *model.Application, affiliationID int64) error {
	affiliations, err := l.store.MemberAffiliations(master.ID)
	if err != nil {
		return err
	}
	if !authority.IsAuthorized(affiliations, affiliationID) {
		return ErrNotAuthorized
	}

	affiliation, err := l.store.GetAffiliation(affiliationID)
	if err != nil {
		return err
	}
	if affiliation == nil {
		return ErrBookingNotFound
	}
	chosen, err := l.store.ApplicationDirections(app.ID)
	if err != nil {
		return err
	}
	if !containsID(chosen, affiliation.DirectionID) {
		return ErrInvalidDirection
	}

	existing, err := l.store.BookedBooking(app.MemberID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyBooked
	}

	// The unique index closes the race if another master booked the
	// candidate between the check and this insert.
	if _, err := l.store.InsertBooked(master.ID, app.MemberID, affiliationID); err != nil {
		if errors.Is(err, store.ErrBookedExists) {
			return ErrAlreadyBooked
		}
		return err
	}
	slog.Info("booked candidate", "master", master.Username, "member", app.MemberID, "affiliation", affiliationID)
	return nil
}

// Unbook removes the candidate's booked booking at the affiliation and
// clears the candidate's work group. Only the master who created the
// booking may remove it.
func (l *Ledger) Unbook(master *model.Member, app *model.Application, affiliationID int64) error {
	booking, err := l.store.BookedBookingAt(app.MemberID, affiliationID)
	if err != nil {
		return err
	}
	if booking == nil {
		return ErrBookingNotFound
	}
	if booking.MasterID != master.ID {
		booker, err := l.store.GetMemberByID(booking.MasterID)
		if err != nil {
			return err
		}
		name := "unknown"
		if booker != nil {
			name = booker.DisplayName
		}
		return &NotOwnerError{Booker: name}
	}

	deleted, err := l.store.DeleteBookedAndClearWorkGroup(booking.ID, app.MemberID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrBookingNotFound
	}
	slog.Info("unbooked candidate", "master", master.Username, "member", app.MemberID, "affiliation", affiliationID)
	return nil
}

// AddToWishlist creates wishlist entries for the candidate at each of the
// given affiliations. Validation is all-or-nothing: if any affiliation is
// outside the master's scope, nothing is written. Entries that already
// exist are left untouched.
func (l *Ledger) AddToWishlist(master *model.Member, app *model.Application, affiliationIDs []int64) error {
	affiliations, err := l.store.MemberAffiliations(master.ID)
	if err != nil {
		return err
	}
	for _, affID := range affiliationIDs {
		if !authority.IsAuthorized(affiliations, affID) {
			return ErrNotAuthorized
		}
	}
	for _, affID := range affiliationIDs {
		if err := l.store.InsertWishlist(master.ID, app.MemberID, affID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFromWishlist deletes the candidate's wishlist entries at the
// given affiliations, regardless of which master created them. Removing
// entries that do not exist is a no-op. The acting master must
// administer every named affiliation; removal at a foreign affiliation
// fails with ErrNotAuthorized.
func (l *Ledger) RemoveFromWishlist(master *model.Member, app *model.Application, affiliationIDs []int64) error {
	affiliations, err := l.store.MemberAffiliations(master.ID)
	if err != nil {
		return err
	}
	for _, affID := range affiliationIDs {
		if !authority.IsAuthorized(affiliations, affID) {
			return ErrNotAuthorized
		}
	}
	return l.store.DeleteWishlist(app.MemberID, affiliationIDs)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
