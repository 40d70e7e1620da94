package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/akozyrev/sciselect/internal/model"
)

// ErrSessionFinished is returned by the conditional finalization when the
// session already left the started state.
var ErrSessionFinished = errors.New("test session already finished")

// CreateTest inserts a test with its direction bindings.
func (s *Store) CreateTest(t model.Test, directionIDs []int64) (int64, error) {
	var testID int64
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT INTO tests (name, description, time_limit, type, creator_id, create_date)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			t.Name, t.Description, t.TimeLimit, t.Type, t.CreatorID, time.Now(),
		)
		if err != nil {
			return err
		}
		testID, err = res.LastInsertId()
		if err != nil {
			return err
		}
		for _, dirID := range directionIDs {
			if _, err := tx.Exec(
				`INSERT INTO test_directions (test_id, direction_id) VALUES (?, ?)`, testID, dirID); err != nil {
				return err
			}
		}
		return nil
	})
	return testID, err
}

// GetTest returns a test by ID, or nil.
func (s *Store) GetTest(id int64) (*model.Test, error) {
	var t model.Test
	err := s.db.QueryRow(
		`SELECT id, name, description, time_limit, type, creator_id, create_date FROM tests WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &t.Description, &t.TimeLimit, &t.Type, &t.CreatorID, &t.CreateDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTestsByDirections returns the tests bound to any of the directions,
// oldest first.
func (s *Store) ListTestsByDirections(directionIDs []int64) ([]model.Test, error) {
	if len(directionIDs) == 0 {
		return nil, nil
	}
	query := `SELECT DISTINCT t.id, t.name, t.description, t.time_limit, t.type, t.creator_id, t.create_date
		 FROM tests t JOIN test_directions td ON td.test_id = t.id
		 WHERE td.direction_id IN (`
	args := make([]any, 0, len(directionIDs))
	for i, id := range directionIDs {
		if i > 0 {
			query += `, `
		}
		query += `?`
		args = append(args, id)
	}
	query += `) ORDER BY t.create_date`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.TimeLimit, &t.Type, &t.CreatorID, &t.CreateDate); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// DeleteTest removes a test together with its owned aggregates: questions,
// their answers and correct-answer flags, session results, user answers.
func (s *Store) DeleteTest(id int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM user_answers WHERE question_id IN (SELECT id FROM questions WHERE test_id = ?)`,
			`DELETE FROM correct_answers WHERE question_id IN (SELECT id FROM questions WHERE test_id = ?)`,
			`DELETE FROM answers WHERE question_id IN (SELECT id FROM questions WHERE test_id = ?)`,
			`DELETE FROM questions WHERE test_id = ?`,
			`DELETE FROM test_results WHERE test_id = ?`,
			`DELETE FROM test_directions WHERE test_id = ?`,
			`DELETE FROM tests WHERE id = ?`,
		} {
			if _, err := tx.Exec(q, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddQuestion inserts a question with its answer options; correctIdx
// indexes into answers and flags the correct options.
func (s *Store) AddQuestion(q model.Question, answers []string, correctIdx []int) (int64, error) {
	var questionID int64
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT INTO questions (test_id, wording, question_type) VALUES (?, ?, ?)`,
			q.TestID, q.Wording, q.Type,
		)
		if err != nil {
			return err
		}
		questionID, err = res.LastInsertId()
		if err != nil {
			return err
		}
		answerIDs := make([]int64, len(answers))
		for i, meaning := range answers {
			res, err := tx.Exec(`INSERT INTO answers (question_id, meaning) VALUES (?, ?)`, questionID, meaning)
			if err != nil {
				return err
			}
			if answerIDs[i], err = res.LastInsertId(); err != nil {
				return err
			}
		}
		for _, idx := range correctIdx {
			if _, err := tx.Exec(
				`INSERT INTO correct_answers (question_id, answer_id) VALUES (?, ?)`,
				questionID, answerIDs[idx]); err != nil {
				return err
			}
		}
		return nil
	})
	return questionID, err
}

// QuestionsForTest returns the test's questions with answer options and
// correct-answer sets loaded.
func (s *Store) QuestionsForTest(testID int64) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT id, test_id, wording, question_type FROM questions WHERE test_id = ? ORDER BY id`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.TestID, &q.Wording, &q.Type); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range questions {
		q := &questions[i]
		arows, err := s.db.Query(
			`SELECT id, question_id, meaning FROM answers WHERE question_id = ? ORDER BY id`, q.ID)
		if err != nil {
			return nil, err
		}
		for arows.Next() {
			var a model.Answer
			if err := arows.Scan(&a.ID, &a.QuestionID, &a.Meaning); err != nil {
				arows.Close()
				return nil, err
			}
			q.Answers = append(q.Answers, a)
		}
		if err := arows.Err(); err != nil {
			arows.Close()
			return nil, err
		}
		arows.Close()

		crows, err := s.db.Query(
			`SELECT answer_id FROM correct_answers WHERE question_id = ? ORDER BY answer_id`, q.ID)
		if err != nil {
			return nil, err
		}
		for crows.Next() {
			var id int64
			if err := crows.Scan(&id); err != nil {
				crows.Close()
				return nil, err
			}
			q.CorrectAnswers = append(q.CorrectAnswers, id)
		}
		if err := crows.Err(); err != nil {
			crows.Close()
			return nil, err
		}
		crows.Close()
	}
	return questions, nil
}

// StartTestResult returns the session for (test, member), creating it in
// the started state with a fixed deadline when none exists. The unique
// index makes concurrent first requests converge on one row.
func (s *Store) StartTestResult(testID, memberID int64, timeLimit int) (*model.TestResult, bool, error) {
	now := time.Now()
	res, err := s.db.Exec(
		`INSERT INTO test_results (test_id, member_id, result, start_date, end_date, status)
		 VALUES (?, ?, 0, ?, ?, ?)
		 ON CONFLICT(test_id, member_id) DO NOTHING`,
		testID, memberID, now, now.Add(time.Duration(timeLimit)*time.Minute), model.StatusStarted,
	)
	if err != nil {
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	tr, err := s.GetTestResult(testID, memberID)
	return tr, n > 0, err
}

// GetTestResult returns the session record for (test, member), or nil.
func (s *Store) GetTestResult(testID, memberID int64) (*model.TestResult, error) {
	var r model.TestResult
	err := s.db.QueryRow(
		`SELECT id, test_id, member_id, result, start_date, end_date, status
		 FROM test_results WHERE test_id = ? AND member_id = ?`, testID, memberID,
	).Scan(&r.ID, &r.TestID, &r.MemberID, &r.Result, &r.StartDate, &r.EndDate, &r.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ExpireTestResult force-finishes a started session whose deadline passed.
// A session already finished is left untouched.
func (s *Store) ExpireTestResult(testID, memberID int64) error {
	_, err := s.db.Exec(
		`UPDATE test_results SET status = ? WHERE test_id = ? AND member_id = ? AND status = ?`,
		model.StatusFinished, testID, memberID, model.StatusStarted,
	)
	return err
}

// FinalizeTestResult grades a started session: the update is conditional
// on the started status, so exactly one of two concurrent submissions
// persists a result. Returns ErrSessionFinished when the session already
// left the started state.
func (s *Store) FinalizeTestResult(testID, memberID int64, result int) error {
	res, err := s.db.Exec(
		`UPDATE test_results SET status = ?, result = ? WHERE test_id = ? AND member_id = ? AND status = ?`,
		model.StatusFinished, result, testID, memberID, model.StatusStarted,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionFinished
	}
	return nil
}

// ReplaceUserAnswers stores the member's answer selections, one row per
// question, replacing any previous selection wholesale.
func (s *Store) ReplaceUserAnswers(memberID int64, answers map[int64][]int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		for questionID, answerIDs := range answers {
			encoded, err := json.Marshal(answerIDs)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(
				`INSERT INTO user_answers (question_id, member_id, answer_ids) VALUES (?, ?, ?)
				 ON CONFLICT(question_id, member_id) DO UPDATE SET answer_ids = excluded.answer_ids`,
				questionID, memberID, string(encoded)); err != nil {
				return err
			}
		}
		return nil
	})
}

// UserAnswersForTest returns the member's stored selections for the
// test's questions, keyed by question ID.
func (s *Store) UserAnswersForTest(testID, memberID int64) (map[int64][]int64, error) {
	rows, err := s.db.Query(
		`SELECT ua.question_id, ua.answer_ids
		 FROM user_answers ua JOIN questions q ON q.id = ua.question_id
		 WHERE q.test_id = ? AND ua.member_id = ?`, testID, memberID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	answers := make(map[int64][]int64)
	for rows.Next() {
		var questionID int64
		var encoded string
		if err := rows.Scan(&questionID, &encoded); err != nil {
			return nil, err
		}
		var answerIDs []int64
		if err := json.Unmarshal([]byte(encoded), &answerIDs); err != nil {
			return nil, err
		}
		answers[questionID] = answerIDs
	}
	return answers, rows.Err()
}

// TestResultsForTest returns every session recorded for a test.
func (s *Store) TestResultsForTest(testID int64) ([]model.TestResult, error) {
	rows, err := s.db.Query(
		`SELECT id, test_id, member_id, result, start_date, end_date, status
		 FROM test_results WHERE test_id = ? ORDER BY id`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.TestResult
	for rows.Next() {
		var r model.TestResult
		if err := rows.Scan(&r.ID, &r.TestID, &r.MemberID, &r.Result, &r.StartDate, &r.EndDate, &r.Status); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
