package store

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/akozyrev/sciselect/internal/model"
)

// CreateMember inserts a new member.
func (s *Store) CreateMember(m model.Member) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO members (username, display_name, password_hash, role, phone, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Username, m.DisplayName, m.PasswordHash, m.Role, m.Phone, m.Active, time.Now(),
	)
	if err != nil {
		slog.Error("failed to create member", "username", m.Username, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created member", "id", id, "username", m.Username, "role", m.Role)
	return id, nil
}

// GetMemberByUsername returns a member by username, or nil.
func (s *Store) GetMemberByUsername(username string) (*model.Member, error) {
	return s.scanMember(s.db.QueryRow(
		`SELECT id, username, display_name, password_hash, role, phone, active, created_at
		 FROM members WHERE username = ?`, username,
	))
}

// GetMemberByID returns a member by ID, or nil.
func (s *Store) GetMemberByID(id int64) (*model.Member, error) {
	return s.scanMember(s.db.QueryRow(
		`SELECT id, username, display_name, password_hash, role, phone, active, created_at
		 FROM members WHERE id = ?`, id,
	))
}

func (s *Store) scanMember(row *sql.Row) (*model.Member, error) {
	var m model.Member
	err := row.Scan(&m.ID, &m.Username, &m.DisplayName, &m.PasswordHash, &m.Role, &m.Phone, &m.Active, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MemberCount returns the total number of members.
func (s *Store) MemberCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM members`).Scan(&count)
	return count, err
}

// SetMemberRole assigns a role, done at account activation.
func (s *Store) SetMemberRole(id int64, role model.Role) error {
	_, err := s.db.Exec(`UPDATE members SET role = ? WHERE id = ?`, role, id)
	return err
}

// ListMembers returns all members ordered by username.
func (s *Store) ListMembers() ([]model.Member, error) {
	rows, err := s.db.Query(
		`SELECT id, username, display_name, password_hash, role, phone, active, created_at
		 FROM members ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.ID, &m.Username, &m.DisplayName, &m.PasswordHash, &m.Role, &m.Phone, &m.Active, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ToggleMemberActive flips a member's active flag.
func (s *Store) ToggleMemberActive(id int64) error {
	_, err := s.db.Exec(`UPDATE members SET active = NOT active WHERE id = ?`, id)
	return err
}

// CreateDirection inserts a research direction.
func (s *Store) CreateDirection(d model.Direction) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO directions (name, description) VALUES (?, ?)`, d.Name, d.Description)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListDirections returns all directions ordered by name.
func (s *Store) ListDirections() ([]model.Direction, error) {
	rows, err := s.db.Query(`SELECT id, name, description FROM directions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var directions []model.Direction
	for rows.Next() {
		var d model.Direction
		if err := rows.Scan(&d.ID, &d.Name, &d.Description); err != nil {
			return nil, err
		}
		directions = append(directions, d)
	}
	return directions, rows.Err()
}

// CreateAffiliation inserts a (direction, company, platoon) quota unit.
func (s *Store) CreateAffiliation(a model.Affiliation) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO affiliations (direction_id, company, platoon) VALUES (?, ?, ?)`,
		a.DirectionID, a.Company, a.Platoon,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetAffiliation returns an affiliation by ID, or nil.
func (s *Store) GetAffiliation(id int64) (*model.Affiliation, error) {
	var a model.Affiliation
	err := s.db.QueryRow(
		`SELECT id, direction_id, company, platoon FROM affiliations WHERE id = ?`, id,
	).Scan(&a.ID, &a.DirectionID, &a.Company, &a.Platoon)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAffiliations returns all affiliations ordered by (company, platoon).
func (s *Store) ListAffiliations() ([]model.Affiliation, error) {
	rows, err := s.db.Query(
		`SELECT id, direction_id, company, platoon FROM affiliations ORDER BY company, platoon`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var affiliations []model.Affiliation
	for rows.Next() {
		var a model.Affiliation
		if err := rows.Scan(&a.ID, &a.DirectionID, &a.Company, &a.Platoon); err != nil {
			return nil, err
		}
		affiliations = append(affiliations, a)
	}
	return affiliations, rows.Err()
}

// AssignAffiliation adds an affiliation to a member's scope. Adding the
// same pair twice is a no-op.
func (s *Store) AssignAffiliation(memberID, affiliationID int64) error {
	_, err := s.db.Exec(
		`INSERT INTO member_affiliations (member_id, affiliation_id) VALUES (?, ?)
		 ON CONFLICT(member_id, affiliation_id) DO NOTHING`,
		memberID, affiliationID,
	)
	return err
}

// MemberAffiliations returns the affiliations a member administers,
// ordered by (company, platoon).
func (s *Store) MemberAffiliations(memberID int64) ([]model.Affiliation, error) {
	rows, err := s.db.Query(
		`SELECT a.id, a.direction_id, a.company, a.platoon
		 FROM affiliations a
		 JOIN member_affiliations ma ON ma.affiliation_id = a.id
		 WHERE ma.member_id = ?
		 ORDER BY a.company, a.platoon`, memberID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var affiliations []model.Affiliation
	for rows.Next() {
		var a model.Affiliation
		if err := rows.Scan(&a.ID, &a.DirectionID, &a.Company, &a.Platoon); err != nil {
			return nil, err
		}
		affiliations = append(affiliations, a)
	}
	return affiliations, rows.Err()
}
