// Package store is the sqlite persistence layer. Uniqueness invariants
// that must survive concurrent writers (single booked booking per
// candidate, one wishlist row per candidate-affiliation pair, one session
// per test-member pair) are enforced by database indexes, so every
// check-then-write in the services layered on top is closed here.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		member_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (member_id) REFERENCES members(id)
	);

	CREATE TABLE IF NOT EXISTS directions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS affiliations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		direction_id INTEGER NOT NULL,
		company INTEGER NOT NULL,
		platoon INTEGER NOT NULL,
		FOREIGN KEY (direction_id) REFERENCES directions(id)
	);

	CREATE TABLE IF NOT EXISTS member_affiliations (
		member_id INTEGER NOT NULL,
		affiliation_id INTEGER NOT NULL,
		UNIQUE (member_id, affiliation_id),
		FOREIGN KEY (member_id) REFERENCES members(id),
		FOREIGN KEY (affiliation_id) REFERENCES affiliations(id)
	);

	CREATE TABLE IF NOT EXISTS work_groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		affiliation_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (affiliation_id) REFERENCES affiliations(id)
	);

	CREATE TABLE IF NOT EXISTS applications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		member_id INTEGER NOT NULL UNIQUE,
		birth_day DATETIME NOT NULL,
		birth_place TEXT NOT NULL DEFAULT '',
		nationality TEXT NOT NULL DEFAULT '',
		military_commissariat TEXT NOT NULL DEFAULT '',
		group_of_health TEXT NOT NULL DEFAULT '',
		draft_year INTEGER NOT NULL,
		draft_season INTEGER NOT NULL,

		international_articles BOOLEAN NOT NULL DEFAULT 0,
		patents BOOLEAN NOT NULL DEFAULT 0,
		vac_articles BOOLEAN NOT NULL DEFAULT 0,
		innovation_proposals BOOLEAN NOT NULL DEFAULT 0,
		rinc_articles BOOLEAN NOT NULL DEFAULT 0,
		evm_register BOOLEAN NOT NULL DEFAULT 0,
		compliance_prior_direction BOOLEAN NOT NULL DEFAULT 0,
		compliance_additional_direction BOOLEAN NOT NULL DEFAULT 0,
		international_olympics BOOLEAN NOT NULL DEFAULT 0,
		president_scholarship BOOLEAN NOT NULL DEFAULT 0,
		country_olympics BOOLEAN NOT NULL DEFAULT 0,
		government_scholarship BOOLEAN NOT NULL DEFAULT 0,
		military_grants BOOLEAN NOT NULL DEFAULT 0,
		region_olympics BOOLEAN NOT NULL DEFAULT 0,
		city_olympics BOOLEAN NOT NULL DEFAULT 0,
		science_experience BOOLEAN NOT NULL DEFAULT 0,
		opk_experience BOOLEAN NOT NULL DEFAULT 0,
		commercial_experience BOOLEAN NOT NULL DEFAULT 0,
		military_sport_achievements BOOLEAN NOT NULL DEFAULT 0,
		sport_achievements BOOLEAN NOT NULL DEFAULT 0,

		scientific_achievements TEXT NOT NULL DEFAULT '',
		scholarships TEXT NOT NULL DEFAULT '',
		candidate_exams TEXT NOT NULL DEFAULT '',
		sporting_achievements TEXT NOT NULL DEFAULT '',
		hobby TEXT NOT NULL DEFAULT '',
		other_information TEXT NOT NULL DEFAULT '',

		is_final BOOLEAN NOT NULL DEFAULT 0,
		fullness INTEGER NOT NULL DEFAULT 0,
		final_score REAL NOT NULL DEFAULT 0,
		work_group_id INTEGER,
		create_date DATETIME NOT NULL,
		update_date DATETIME NOT NULL,
		FOREIGN KEY (member_id) REFERENCES members(id),
		FOREIGN KEY (work_group_id) REFERENCES work_groups(id)
	);

	CREATE TABLE IF NOT EXISTS educations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		application_id INTEGER NOT NULL,
		education_type TEXT NOT NULL,
		university TEXT NOT NULL DEFAULT '',
		specialization TEXT NOT NULL DEFAULT '',
		avg_score REAL NOT NULL,
		end_year INTEGER NOT NULL,
		is_ended BOOLEAN NOT NULL DEFAULT 0,
		theme_of_diploma TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (application_id) REFERENCES applications(id)
	);

	CREATE TABLE IF NOT EXISTS application_scores (
		application_id INTEGER PRIMARY KEY,
		a1 REAL NOT NULL DEFAULT 0,
		a2 REAL NOT NULL DEFAULT 0,
		a3 REAL NOT NULL DEFAULT 0,
		a4 REAL NOT NULL DEFAULT 0,
		a5 REAL NOT NULL DEFAULT 0,
		a6 REAL NOT NULL DEFAULT 0,
		a7 REAL NOT NULL DEFAULT 0,
		FOREIGN KEY (application_id) REFERENCES applications(id)
	);

	CREATE TABLE IF NOT EXISTS application_directions (
		application_id INTEGER NOT NULL,
		direction_id INTEGER NOT NULL,
		UNIQUE (application_id, direction_id),
		FOREIGN KEY (application_id) REFERENCES applications(id),
		FOREIGN KEY (direction_id) REFERENCES directions(id)
	);

	CREATE TABLE IF NOT EXISTS competencies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS application_competencies (
		application_id INTEGER NOT NULL,
		competence_id INTEGER NOT NULL,
		level INTEGER NOT NULL DEFAULT 0,
		UNIQUE (application_id, competence_id),
		FOREIGN KEY (application_id) REFERENCES applications(id),
		FOREIGN KEY (competence_id) REFERENCES competencies(id)
	);

	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		member_id INTEGER NOT NULL,
		file_name TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (member_id) REFERENCES members(id)
	);

	CREATE TABLE IF NOT EXISTS bookings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		booking_type TEXT NOT NULL,
		master_id INTEGER NOT NULL,
		slave_id INTEGER NOT NULL,
		affiliation_id INTEGER NOT NULL,
		FOREIGN KEY (master_id) REFERENCES members(id),
		FOREIGN KEY (slave_id) REFERENCES members(id),
		FOREIGN KEY (affiliation_id) REFERENCES affiliations(id)
	);

	-- A candidate is either unbooked or booked into exactly one affiliation.
	CREATE UNIQUE INDEX IF NOT EXISTS bookings_single_booked
		ON bookings(slave_id) WHERE booking_type = 'booked';

	-- At most one wishlist entry per (candidate, affiliation) pair.
	CREATE UNIQUE INDEX IF NOT EXISTS bookings_wishlist_pair
		ON bookings(slave_id, affiliation_id) WHERE booking_type = 'in_wishlist';

	CREATE TABLE IF NOT EXISTS tests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		time_limit INTEGER NOT NULL,
		type TEXT NOT NULL DEFAULT 'ordinary',
		creator_id INTEGER NOT NULL,
		create_date DATETIME NOT NULL,
		FOREIGN KEY (creator_id) REFERENCES members(id)
	);

	CREATE TABLE IF NOT EXISTS test_directions (
		test_id INTEGER NOT NULL,
		direction_id INTEGER NOT NULL,
		UNIQUE (test_id, direction_id),
		FOREIGN KEY (test_id) REFERENCES tests(id),
		FOREIGN KEY (direction_id) REFERENCES directions(id)
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		test_id INTEGER NOT NULL,
		wording TEXT NOT NULL,
		question_type INTEGER NOT NULL,
		FOREIGN KEY (test_id) REFERENCES tests(id)
	);

	CREATE TABLE IF NOT EXISTS answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question_id INTEGER NOT NULL,
		meaning TEXT NOT NULL,
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS correct_answers (
		question_id INTEGER NOT NULL,
		answer_id INTEGER NOT NULL,
		UNIQUE (question_id, answer_id),
		FOREIGN KEY (question_id) REFERENCES questions(id),
		FOREIGN KEY (answer_id) REFERENCES answers(id)
	);

	CREATE TABLE IF NOT EXISTS test_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		test_id INTEGER NOT NULL,
		member_id INTEGER NOT NULL,
		result INTEGER NOT NULL DEFAULT 0,
		start_date DATETIME NOT NULL,
		end_date DATETIME NOT NULL,
		status INTEGER NOT NULL DEFAULT 2,
		UNIQUE (test_id, member_id),
		FOREIGN KEY (test_id) REFERENCES tests(id),
		FOREIGN KEY (member_id) REFERENCES members(id)
	);

	CREATE TABLE IF NOT EXISTS user_answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question_id INTEGER NOT NULL,
		member_id INTEGER NOT NULL,
		answer_ids TEXT NOT NULL DEFAULT '[]',
		UNIQUE (question_id, member_id),
		FOREIGN KEY (question_id) REFERENCES questions(id),
		FOREIGN KEY (member_id) REFERENCES members(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// isUniqueViolation reports whether err is a sqlite unique-index conflict.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
