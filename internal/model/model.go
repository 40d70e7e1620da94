package model

import (
	"context"
	"fmt"
	"time"
)

// Role represents a member's access level.
type Role string

const (
	// RoleOperator is a candidate submitting an application.
	RoleOperator Role = "operator"
	// RoleMaster is an evaluator reviewing and booking candidates.
	RoleMaster Role = "master"
	// RoleModerator is a moderator with administrative access.
	RoleModerator Role = "moderator"
)

// Member represents a system user: a candidate, an evaluator, or a moderator.
type Member struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Phone        string    `json:"phone"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsMaster reports whether the member is an evaluator.
func (m *Member) IsMaster() bool { return m.Role == RoleMaster }

// IsOperator reports whether the member is a candidate.
func (m *Member) IsOperator() bool { return m.Role == RoleOperator }

// IsModerator reports whether the member is a moderator.
func (m *Member) IsModerator() bool { return m.Role == RoleModerator }

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	MemberID  int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type memberCtxKey struct{}

// ContextWithMember stores the acting member in the request context.
func ContextWithMember(ctx context.Context, m *Member) context.Context {
	return context.WithValue(ctx, memberCtxKey{}, m)
}

// MemberFromContext retrieves the acting member from context, or nil.
func MemberFromContext(ctx context.Context) *Member {
	m, _ := ctx.Value(memberCtxKey{}).(*Member)
	return m
}

// Direction is a research direction a quota unit recruits for.
type Direction struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Affiliation is a (direction, company, platoon) quota unit. Evaluators are
// scoped to the affiliations they administer; ordering is (company, platoon).
type Affiliation struct {
	ID          int64 `json:"id"`
	DirectionID int64 `json:"direction_id"`
	Company     int   `json:"company"`
	Platoon     int   `json:"platoon"`
}

func (a Affiliation) String() string {
	return fmt.Sprintf("company %d platoon %d", a.Company, a.Platoon)
}

// DraftSeason is the recruiting season an application belongs to.
type DraftSeason int

const (
	SeasonSpring DraftSeason = 1
	SeasonAutumn DraftSeason = 2
)

func (s DraftSeason) String() string {
	if s == SeasonAutumn {
		return "autumn"
	}
	return "spring"
}

// AchievementFlags are the boolean achievement attributes of an application
// that feed the rating score criteria.
type AchievementFlags struct {
	// Scientific output.
	InternationalArticles bool `json:"international_articles"`
	Patents               bool `json:"patents"`
	VACArticles           bool `json:"vac_articles"`
	InnovationProposals   bool `json:"innovation_proposals"`
	RINCArticles          bool `json:"rinc_articles"`
	EVMRegister           bool `json:"evm_register"`

	// Education profile compliance.
	CompliancePriorDirection      bool `json:"compliance_prior_direction"`
	ComplianceAdditionalDirection bool `json:"compliance_additional_direction"`

	// Olympiads and scholarships.
	InternationalOlympics bool `json:"international_olympics"`
	PresidentScholarship  bool `json:"president_scholarship"`
	CountryOlympics       bool `json:"country_olympics"`
	GovernmentScholarship bool `json:"government_scholarship"`
	MilitaryGrants        bool `json:"military_grants"`
	RegionOlympics        bool `json:"region_olympics"`
	CityOlympics          bool `json:"city_olympics"`

	// Work experience.
	ScienceExperience    bool `json:"science_experience"`
	OPKExperience        bool `json:"opk_experience"`
	CommercialExperience bool `json:"commercial_experience"`

	// Sports.
	MilitarySportAchievements bool `json:"military_sport_achievements"`
	SportAchievements         bool `json:"sport_achievements"`
}

// Application is a candidate's selection application, one per member.
// Mutable by the candidate until IsFinal is set; read-only after.
type Application struct {
	ID                   int64       `json:"id"`
	MemberID             int64       `json:"member_id"`
	BirthDay             time.Time   `json:"birth_day"`
	BirthPlace           string      `json:"birth_place"`
	Nationality          string      `json:"nationality"`
	MilitaryCommissariat string      `json:"military_commissariat"`
	GroupOfHealth        string      `json:"group_of_health"`
	DraftYear            int         `json:"draft_year"`
	DraftSeason          DraftSeason `json:"draft_season"`

	AchievementFlags

	ScientificAchievements string `json:"scientific_achievements"`
	Scholarships           string `json:"scholarships"`
	CandidateExams         string `json:"candidate_exams"`
	SportingAchievements   string `json:"sporting_achievements"`
	Hobby                  string `json:"hobby"`
	OtherInformation       string `json:"other_information"`

	IsFinal     bool    `json:"is_final"`
	Fullness    int     `json:"fullness"`
	FinalScore  float64 `json:"final_score"`
	WorkGroupID *int64  `json:"work_group_id,omitempty"`

	CreateDate time.Time `json:"create_date"`
	UpdateDate time.Time `json:"update_date"`
}

// DraftTime returns the human-readable recruiting cycle, e.g. "spring 2026".
func (a *Application) DraftTime() string {
	return fmt.Sprintf("%s %d", a.DraftSeason, a.DraftYear)
}

// EducationType is the program a candidate studied under.
type EducationType string

const (
	EducationBachelor     EducationType = "b"
	EducationMaster       EducationType = "m"
	EducationPostgraduate EducationType = "a"
	EducationSpecialist   EducationType = "s"
)

// Education is one education record of an application.
// "Last education" is the record with the maximum end year.
type Education struct {
	ID             int64         `json:"id"`
	ApplicationID  int64         `json:"application_id"`
	Type           EducationType `json:"education_type"`
	University     string        `json:"university"`
	Specialization string        `json:"specialization"`
	AvgScore       float64       `json:"avg_score"`
	EndYear        int           `json:"end_year"`
	IsEnded        bool          `json:"is_ended"`
	ThemeOfDiploma string        `json:"theme_of_diploma"`
}

// ApplicationScores holds the seven criteria sub-scores of an application.
// Created lazily on first score computation.
type ApplicationScores struct {
	ApplicationID int64   `json:"application_id"`
	A1            float64 `json:"a1"`
	A2            float64 `json:"a2"`
	A3            float64 `json:"a3"`
	A4            float64 `json:"a4"`
	A5            float64 `json:"a5"`
	A6            float64 `json:"a6"`
	A7            float64 `json:"a7"`
}

// Competence is a skill a candidate can declare on the application.
type Competence struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ApplicationCompetence links an application to a competence with a level 0-3.
type ApplicationCompetence struct {
	ApplicationID int64 `json:"application_id"`
	CompetenceID  int64 `json:"competence_id"`
	Level         int   `json:"level"`
}

// File is an uploaded attachment recorded for a member (metadata only;
// upload handling itself lives outside this service).
type File struct {
	ID        int64     `json:"id"`
	MemberID  int64     `json:"member_id"`
	FileName  string    `json:"file_name"`
	CreatedAt time.Time `json:"created_at"`
}

// BookingType distinguishes a confirmed selection from a wishlist entry.
type BookingType string

const (
	TypeBooked     BookingType = "booked"
	TypeInWishlist BookingType = "in_wishlist"
)

// Booking links a candidate to an affiliation, made by a master.
// A candidate has at most one booked booking at any time; wishlist
// entries are unlimited across distinct affiliations.
type Booking struct {
	ID            int64       `json:"id"`
	Type          BookingType `json:"booking_type"`
	MasterID      int64       `json:"master_id"`
	SlaveID       int64       `json:"slave_id"`
	AffiliationID int64       `json:"affiliation_id"`
}

// WorkGroup is a sub-grouping of booked candidates within one affiliation.
type WorkGroup struct {
	ID            int64  `json:"id"`
	AffiliationID int64  `json:"affiliation_id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
}

// TestType distinguishes scored tests from psychological questionnaires.
type TestType string

const (
	TestOrdinary      TestType = "ordinary"
	TestPsychological TestType = "psychological"
)

// Test is a timed questionnaire assigned to directions.
type Test struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TimeLimit   int       `json:"time_limit"` // minutes
	Type        TestType  `json:"type"`
	CreatorID   int64     `json:"creator_id"`
	CreateDate  time.Time `json:"create_date"`
}

// QuestionType is the answer mode of a question.
type QuestionType int

const (
	QuestionSingleChoice QuestionType = 1
	QuestionMultiChoice  QuestionType = 2
	QuestionFreeResponse QuestionType = 3
)

// Question belongs to a test. CorrectAnswers holds the IDs of the answer
// options flagged correct; empty for free-response questions.
type Question struct {
	ID             int64        `json:"id"`
	TestID         int64        `json:"test_id"`
	Wording        string       `json:"wording"`
	Type           QuestionType `json:"question_type"`
	Answers        []Answer     `json:"answers,omitempty"`
	CorrectAnswers []int64      `json:"-"`
}

// Answer is one answer option of a question.
type Answer struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Meaning    string `json:"meaning"`
}

// SessionStatus is the state of a candidate's test session.
type SessionStatus int

const (
	StatusNotStarted SessionStatus = 1
	StatusStarted    SessionStatus = 2
	StatusFinished   SessionStatus = 3
)

func (s SessionStatus) String() string {
	switch s {
	case StatusStarted:
		return "started"
	case StatusFinished:
		return "finished"
	default:
		return "not_started"
	}
}

// TestResult is the one session record per (test, member). The deadline is
// fixed at EndDate when the session starts; it never slides.
type TestResult struct {
	ID        int64         `json:"id"`
	TestID    int64         `json:"test_id"`
	MemberID  int64         `json:"member_id"`
	Result    int           `json:"result"`
	StartDate time.Time     `json:"start_date"`
	EndDate   time.Time     `json:"end_date"`
	Status    SessionStatus `json:"status"`
}

// Expired reports whether the session deadline has passed at the given time.
func (r *TestResult) Expired(now time.Time) bool {
	return now.After(r.EndDate)
}

// UserAnswer records a candidate's chosen answer options for one question.
// Replaced wholesale on each submission while the session is open.
type UserAnswer struct {
	ID         int64   `json:"id"`
	QuestionID int64   `json:"question_id"`
	MemberID   int64   `json:"member_id"`
	AnswerIDs  []int64 `json:"answer_ids"`
}
