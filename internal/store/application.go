package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akozyrev/sciselect/internal/model"
	"github.com/akozyrev/sciselect/internal/score"
)

// ErrApplicationExists is returned when a member already has an application.
var ErrApplicationExists = errors.New("member already has an application")

const applicationColumns = `id, member_id, birth_day, birth_place, nationality, military_commissariat,
	group_of_health, draft_year, draft_season,
	international_articles, patents, vac_articles, innovation_proposals, rinc_articles, evm_register,
	compliance_prior_direction, compliance_additional_direction,
	international_olympics, president_scholarship, country_olympics, government_scholarship,
	military_grants, region_olympics, city_olympics,
	science_experience, opk_experience, commercial_experience,
	military_sport_achievements, sport_achievements,
	scientific_achievements, scholarships, candidate_exams, sporting_achievements, hobby, other_information,
	is_final, fullness, final_score, work_group_id, create_date, update_date`

func scanApplication(row interface{ Scan(...any) error }) (*model.Application, error) {
	var a model.Application
	err := row.Scan(
		&a.ID, &a.MemberID, &a.BirthDay, &a.BirthPlace, &a.Nationality, &a.MilitaryCommissariat,
		&a.GroupOfHealth, &a.DraftYear, &a.DraftSeason,
		&a.InternationalArticles, &a.Patents, &a.VACArticles, &a.InnovationProposals, &a.RINCArticles, &a.EVMRegister,
		&a.CompliancePriorDirection, &a.ComplianceAdditionalDirection,
		&a.InternationalOlympics, &a.PresidentScholarship, &a.CountryOlympics, &a.GovernmentScholarship,
		&a.MilitaryGrants, &a.RegionOlympics, &a.CityOlympics,
		&a.ScienceExperience, &a.OPKExperience, &a.CommercialExperience,
		&a.MilitarySportAchievements, &a.SportAchievements,
		&a.ScientificAchievements, &a.Scholarships, &a.CandidateExams, &a.SportingAchievements, &a.Hobby, &a.OtherInformation,
		&a.IsFinal, &a.Fullness, &a.FinalScore, &a.WorkGroupID, &a.CreateDate, &a.UpdateDate,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateApplication inserts a candidate's application. A member may have
// exactly one; a second insert fails with ErrApplicationExists.
func (s *Store) CreateApplication(a model.Application) (int64, error) {
	now := time.Now()
	res, err := s.db.Exec(
		`INSERT INTO applications (member_id, birth_day, birth_place, nationality, military_commissariat,
			group_of_health, draft_year, draft_season, create_date, update_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.MemberID, a.BirthDay, a.BirthPlace, a.Nationality, a.MilitaryCommissariat,
		a.GroupOfHealth, a.DraftYear, a.DraftSeason, now, now,
	)
	if isUniqueViolation(err) {
		return 0, ErrApplicationExists
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetApplication returns an application by ID, or nil.
func (s *Store) GetApplication(id int64) (*model.Application, error) {
	return scanApplication(s.db.QueryRow(
		`SELECT `+applicationColumns+` FROM applications WHERE id = ?`, id))
}

// GetApplicationByMember returns the application owned by a member, or nil.
func (s *Store) GetApplicationByMember(memberID int64) (*model.Application, error) {
	return scanApplication(s.db.QueryRow(
		`SELECT `+applicationColumns+` FROM applications WHERE member_id = ?`, memberID))
}

// UpdateApplication persists the mutable fields of an application.
func (s *Store) UpdateApplication(a *model.Application) error {
	_, err := s.db.Exec(
		`UPDATE applications SET
			birth_day = ?, birth_place = ?, nationality = ?, military_commissariat = ?,
			group_of_health = ?, draft_year = ?, draft_season = ?,
			international_articles = ?, patents = ?, vac_articles = ?, innovation_proposals = ?,
			rinc_articles = ?, evm_register = ?,
			compliance_prior_direction = ?, compliance_additional_direction = ?,
			international_olympics = ?, president_scholarship = ?, country_olympics = ?,
			government_scholarship = ?, military_grants = ?, region_olympics = ?, city_olympics = ?,
			science_experience = ?, opk_experience = ?, commercial_experience = ?,
			military_sport_achievements = ?, sport_achievements = ?,
			scientific_achievements = ?, scholarships = ?, candidate_exams = ?,
			sporting_achievements = ?, hobby = ?, other_information = ?,
			update_date = ?
		 WHERE id = ?`,
		a.BirthDay, a.BirthPlace, a.Nationality, a.MilitaryCommissariat,
		a.GroupOfHealth, a.DraftYear, a.DraftSeason,
		a.InternationalArticles, a.Patents, a.VACArticles, a.InnovationProposals,
		a.RINCArticles, a.EVMRegister,
		a.CompliancePriorDirection, a.ComplianceAdditionalDirection,
		a.InternationalOlympics, a.PresidentScholarship, a.CountryOlympics,
		a.GovernmentScholarship, a.MilitaryGrants, a.RegionOlympics, a.CityOlympics,
		a.ScienceExperience, a.OPKExperience, a.CommercialExperience,
		a.MilitarySportAchievements, a.SportAchievements,
		a.ScientificAchievements, a.Scholarships, a.CandidateExams,
		a.SportingAchievements, a.Hobby, a.OtherInformation,
		time.Now(), a.ID,
	)
	return err
}

// SetApplicationFinal closes or reopens an application for candidate edits.
func (s *Store) SetApplicationFinal(id int64, final bool) error {
	_, err := s.db.Exec(`UPDATE applications SET is_final = ?, update_date = ? WHERE id = ?`, final, time.Now(), id)
	return err
}

// AddEducation inserts an education record.
func (s *Store) AddEducation(e model.Education) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO educations (application_id, education_type, university, specialization,
			avg_score, end_year, is_ended, theme_of_diploma)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ApplicationID, e.Type, e.University, e.Specialization,
		e.AvgScore, e.EndYear, e.IsEnded, e.ThemeOfDiploma,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListEducations returns an application's education records, newest program
// first by end year.
func (s *Store) ListEducations(applicationID int64) ([]model.Education, error) {
	rows, err := s.db.Query(
		`SELECT id, application_id, education_type, university, specialization,
			avg_score, end_year, is_ended, theme_of_diploma
		 FROM educations WHERE application_id = ? ORDER BY end_year DESC`, applicationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var educations []model.Education
	for rows.Next() {
		var e model.Education
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.Type, &e.University, &e.Specialization,
			&e.AvgScore, &e.EndYear, &e.IsEnded, &e.ThemeOfDiploma); err != nil {
			return nil, err
		}
		educations = append(educations, e)
	}
	return educations, rows.Err()
}

// DeleteEducation removes one education record.
func (s *Store) DeleteEducation(id, applicationID int64) error {
	_, err := s.db.Exec(`DELETE FROM educations WHERE id = ? AND application_id = ?`, id, applicationID)
	return err
}

// SetApplicationDirections replaces the application's chosen directions.
func (s *Store) SetApplicationDirections(applicationID int64, directionIDs []int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM application_directions WHERE application_id = ?`, applicationID); err != nil {
			return err
		}
		for _, id := range directionIDs {
			if _, err := tx.Exec(
				`INSERT INTO application_directions (application_id, direction_id) VALUES (?, ?)`,
				applicationID, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplicationDirections returns the chosen direction IDs of an application.
func (s *Store) ApplicationDirections(applicationID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT direction_id FROM application_directions WHERE application_id = ? ORDER BY direction_id`,
		applicationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateCompetence inserts a competence.
func (s *Store) CreateCompetence(name string) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO competencies (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SetApplicationCompetencies replaces the application's declared competencies.
func (s *Store) SetApplicationCompetencies(applicationID int64, chosen []model.ApplicationCompetence) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM application_competencies WHERE application_id = ?`, applicationID); err != nil {
			return err
		}
		for _, c := range chosen {
			if _, err := tx.Exec(
				`INSERT INTO application_competencies (application_id, competence_id, level) VALUES (?, ?, ?)`,
				applicationID, c.CompetenceID, c.Level); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplicationCompetencies returns the declared competencies of an application.
func (s *Store) ApplicationCompetencies(applicationID int64) ([]model.ApplicationCompetence, error) {
	rows, err := s.db.Query(
		`SELECT application_id, competence_id, level FROM application_competencies
		 WHERE application_id = ? ORDER BY competence_id`, applicationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chosen []model.ApplicationCompetence
	for rows.Next() {
		var c model.ApplicationCompetence
		if err := rows.Scan(&c.ApplicationID, &c.CompetenceID, &c.Level); err != nil {
			return nil, err
		}
		chosen = append(chosen, c)
	}
	return chosen, rows.Err()
}

// AddFile records an uploaded attachment for a member.
func (s *Store) AddFile(f model.File) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO files (member_id, file_name, created_at) VALUES (?, ?, ?)`,
		f.MemberID, f.FileName, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// MemberFileCount returns the number of attachments a member has.
func (s *Store) MemberFileCount(memberID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM files WHERE member_id = ?`, memberID).Scan(&count)
	return count, err
}

// GetScores returns the sub-score record for an application, or nil when
// none has been computed yet.
func (s *Store) GetScores(applicationID int64) (*model.ApplicationScores, error) {
	var sc model.ApplicationScores
	err := s.db.QueryRow(
		`SELECT application_id, a1, a2, a3, a4, a5, a6, a7 FROM application_scores WHERE application_id = ?`,
		applicationID,
	).Scan(&sc.ApplicationID, &sc.A1, &sc.A2, &sc.A3, &sc.A4, &sc.A5, &sc.A6, &sc.A7)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// UpdateScores recomputes fullness, the seven sub-scores, and the final
// score of an application and persists all of them. The scores row is
// created lazily on the first computation.
func (s *Store) UpdateScores(calc *score.Calculator, applicationID int64) error {
	app, err := s.GetApplication(applicationID)
	if err != nil {
		return err
	}
	if app == nil {
		return fmt.Errorf("application %d not found", applicationID)
	}

	educations, err := s.ListEducations(applicationID)
	if err != nil {
		return err
	}
	directions, err := s.ApplicationDirections(applicationID)
	if err != nil {
		return err
	}
	competencies, err := s.ApplicationCompetencies(applicationID)
	if err != nil {
		return err
	}
	fileCount, err := s.MemberFileCount(app.MemberID)
	if err != nil {
		return err
	}

	scores, err := s.GetScores(applicationID)
	if err != nil {
		return err
	}
	if scores == nil {
		scores = &model.ApplicationScores{ApplicationID: applicationID}
	}

	fullness := score.Fullness(score.Presence{
		BasicData:    true,
		Education:    len(educations) > 0,
		Directions:   len(directions) > 0,
		Competencies: len(competencies) > 0,
		Files:        fileCount > 0,
	})
	finalScore := calc.Update(app, educations, scores)

	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO application_scores (application_id, a1, a2, a3, a4, a5, a6, a7)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(application_id) DO UPDATE SET
				a1 = excluded.a1, a2 = excluded.a2, a3 = excluded.a3, a4 = excluded.a4,
				a5 = excluded.a5, a6 = excluded.a6, a7 = excluded.a7`,
			scores.ApplicationID, scores.A1, scores.A2, scores.A3, scores.A4, scores.A5, scores.A6, scores.A7,
		)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`UPDATE applications SET fullness = ?, final_score = ?, update_date = ? WHERE id = ?`,
			fullness, finalScore, time.Now(), applicationID,
		)
		return err
	})
}

// DeleteApplication removes an application together with its owned
// aggregates: educations, scores, direction and competence links, and
// the candidate's recorded test answers.
func (s *Store) DeleteApplication(id int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		var memberID int64
		if err := tx.QueryRow(
			`SELECT member_id FROM applications WHERE id = ?`, id,
		).Scan(&memberID); err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return err
		}
		if _, err := tx.Exec(`DELETE FROM user_answers WHERE member_id = ?`, memberID); err != nil {
			return err
		}
		for _, q := range []string{
			`DELETE FROM educations WHERE application_id = ?`,
			`DELETE FROM application_scores WHERE application_id = ?`,
			`DELETE FROM application_directions WHERE application_id = ?`,
			`DELETE FROM application_competencies WHERE application_id = ?`,
			`DELETE FROM applications WHERE id = ?`,
		} {
			if _, err := tx.Exec(q, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateWorkGroup inserts a work group owned by an affiliation.
func (s *Store) CreateWorkGroup(g model.WorkGroup) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO work_groups (affiliation_id, name, description) VALUES (?, ?, ?)`,
		g.AffiliationID, g.Name, g.Description,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetWorkGroup returns a work group by ID, or nil.
func (s *Store) GetWorkGroup(id int64) (*model.WorkGroup, error) {
	var g model.WorkGroup
	err := s.db.QueryRow(
		`SELECT id, affiliation_id, name, description FROM work_groups WHERE id = ?`, id,
	).Scan(&g.ID, &g.AffiliationID, &g.Name, &g.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// SetApplicationWorkGroup assigns or clears (nil) an application's work group.
func (s *Store) SetApplicationWorkGroup(applicationID int64, workGroupID *int64) error {
	_, err := s.db.Exec(
		`UPDATE applications SET work_group_id = ?, update_date = ? WHERE id = ?`,
		workGroupID, time.Now(), applicationID,
	)
	return err
}
