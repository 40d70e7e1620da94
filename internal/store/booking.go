package store

import (
	"database/sql"
	"errors"

	"github.com/akozyrev/sciselect/internal/model"
)

// ErrBookedExists is returned when a booked booking for the candidate
// already exists. The partial unique index raises it even when two
// masters race: exactly one insert wins.
var ErrBookedExists = errors.New("candidate already has a booked booking")

// InsertBooked creates a booked booking for a candidate.
func (s *Store) InsertBooked(masterID, slaveID, affiliationID int64) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO bookings (booking_type, master_id, slave_id, affiliation_id) VALUES (?, ?, ?, ?)`,
		model.TypeBooked, masterID, slaveID, affiliationID,
	)
	if isUniqueViolation(err) {
		return 0, ErrBookedExists
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// BookedBooking returns the candidate's booked booking, or nil.
func (s *Store) BookedBooking(slaveID int64) (*model.Booking, error) {
	return s.scanBooking(s.db.QueryRow(
		`SELECT id, booking_type, master_id, slave_id, affiliation_id
		 FROM bookings WHERE slave_id = ? AND booking_type = ?`, slaveID, model.TypeBooked))
}

// BookedBookingAt returns the candidate's booked booking at the exact
// affiliation, or nil.
func (s *Store) BookedBookingAt(slaveID, affiliationID int64) (*model.Booking, error) {
	return s.scanBooking(s.db.QueryRow(
		`SELECT id, booking_type, master_id, slave_id, affiliation_id
		 FROM bookings WHERE slave_id = ? AND affiliation_id = ? AND booking_type = ?`,
		slaveID, affiliationID, model.TypeBooked))
}

func (s *Store) scanBooking(row *sql.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.Type, &b.MasterID, &b.SlaveID, &b.AffiliationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteBookedAndClearWorkGroup removes a booked booking and clears the
// candidate's work group in one transaction. Returns false when the
// booking row was already gone (lost a race with another unbooker).
func (s *Store) DeleteBookedAndClearWorkGroup(bookingID, slaveID int64) (bool, error) {
	var deleted bool
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`DELETE FROM bookings WHERE id = ? AND booking_type = ?`, bookingID, model.TypeBooked)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		deleted = true
		_, err = tx.Exec(`UPDATE applications SET work_group_id = NULL WHERE member_id = ?`, slaveID)
		return err
	})
	return deleted, err
}

// InsertWishlist adds a wishlist entry. An existing entry for the same
// (candidate, affiliation) pair makes this a no-op.
func (s *Store) InsertWishlist(masterID, slaveID, affiliationID int64) error {
	_, err := s.db.Exec(
		`INSERT INTO bookings (booking_type, master_id, slave_id, affiliation_id)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		model.TypeInWishlist, masterID, slaveID, affiliationID,
	)
	return err
}

// DeleteWishlist removes the candidate's wishlist entries at the given
// affiliations, regardless of which master created them. Removing
// nothing is not an error.
func (s *Store) DeleteWishlist(slaveID int64, affiliationIDs []int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		for _, affID := range affiliationIDs {
			if _, err := tx.Exec(
				`DELETE FROM bookings WHERE slave_id = ? AND affiliation_id = ? AND booking_type = ?`,
				slaveID, affID, model.TypeInWishlist); err != nil {
				return err
			}
		}
		return nil
	})
}

// WishlistFor returns the candidate's wishlist entries.
func (s *Store) WishlistFor(slaveID int64) ([]model.Booking, error) {
	return s.listBookings(
		`SELECT id, booking_type, master_id, slave_id, affiliation_id
		 FROM bookings WHERE slave_id = ? AND booking_type = ? ORDER BY id`,
		slaveID, model.TypeInWishlist)
}

// BookingsByMaster returns every booking a master created.
func (s *Store) BookingsByMaster(masterID int64) ([]model.Booking, error) {
	return s.listBookings(
		`SELECT id, booking_type, master_id, slave_id, affiliation_id
		 FROM bookings WHERE master_id = ? ORDER BY id`, masterID)
}

// BookedByAffiliation returns booked bookings at one affiliation.
func (s *Store) BookedByAffiliation(affiliationID int64) ([]model.Booking, error) {
	return s.listBookings(
		`SELECT id, booking_type, master_id, slave_id, affiliation_id
		 FROM bookings WHERE affiliation_id = ? AND booking_type = ? ORDER BY id`,
		affiliationID, model.TypeBooked)
}

func (s *Store) listBookings(query string, args ...any) ([]model.Booking, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bookings []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.Type, &b.MasterID, &b.SlaveID, &b.AffiliationID); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
