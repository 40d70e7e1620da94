// Package score computes the deterministic rating score of an application.
//
// Seven criteria sub-scores a1..a7 are derived from the application's
// achievement flags and education records, then combined into the final
// score with the configured weight coefficients. Given the same inputs and
// configuration the result is always bit-identical.
package score

import (
	"math"

	"github.com/akozyrev/sciselect/internal/model"
)

// Config holds every coefficient of the rating formula. Values are loaded
// from the configuration surface at startup; Default mirrors the point
// values of the approved selection methodology.
type Config struct {
	// Weight coefficients k1..k7 applied to a1..a7. No renormalization is
	// performed; the sum is whatever the methodology says it is.
	K [7]float64 `mapstructure:"k"`

	// a1: scientific output.
	InternationalArticles float64 `mapstructure:"international_articles"`
	Patents               float64 `mapstructure:"patents"`
	VACArticles           float64 `mapstructure:"vac_articles"`
	InnovationProposals   float64 `mapstructure:"innovation_proposals"`
	RINCArticles          float64 `mapstructure:"rinc_articles"`
	EVMRegister           float64 `mapstructure:"evm_register"`

	// a2: multiplier on the last education's average score.
	BachelorCoef       float64 `mapstructure:"bachelor_coef"`
	SpecialAndMoreCoef float64 `mapstructure:"special_and_more_coef"`

	// a3: direction compliance.
	CompliancePriorDirection      float64 `mapstructure:"compliance_prior_direction"`
	ComplianceAdditionalDirection float64 `mapstructure:"compliance_additional_direction"`

	// a4: olympiads and scholarships.
	InternationalOlympics float64 `mapstructure:"international_olympics"`
	PresidentScholarship  float64 `mapstructure:"president_scholarship"`
	CountryOlympics       float64 `mapstructure:"country_olympics"`
	GovernmentScholarship float64 `mapstructure:"government_scholarship"`
	MilitaryGrants        float64 `mapstructure:"military_grants"`
	RegionOlympics        float64 `mapstructure:"region_olympics"`
	CityOlympics          float64 `mapstructure:"city_olympics"`

	// a5: postgraduate studies.
	PostgraduateEnded               float64 `mapstructure:"postgraduate_ended"`
	PostgraduatePriorDirection      float64 `mapstructure:"postgraduate_prior_direction"`
	PostgraduateAdditionalDirection float64 `mapstructure:"postgraduate_additional_direction"`

	// a6: work experience.
	ScienceExperience    float64 `mapstructure:"science_experience"`
	OPKExperience        float64 `mapstructure:"opk_experience"`
	CommercialExperience float64 `mapstructure:"commercial_experience"`

	// a7: sports.
	MilitarySportAchievements float64 `mapstructure:"military_sport_achievements"`
	SportAchievements         float64 `mapstructure:"sport_achievements"`

	// Validation bounds for an education's average score.
	MinAvgScore float64 `mapstructure:"min_avg_score"`
	MaxAvgScore float64 `mapstructure:"max_avg_score"`
}

// Default returns the methodology's standard coefficients.
func Default() Config {
	return Config{
		K: [7]float64{0.25, 0.15, 0.3, 0.2, 0.5, 0.25, 0.1},

		InternationalArticles: 5,
		Patents:               4,
		VACArticles:           3,
		InnovationProposals:   1,
		RINCArticles:          1,
		EVMRegister:           0.5,

		BachelorCoef:       0.8,
		SpecialAndMoreCoef: 1,

		CompliancePriorDirection:      3,
		ComplianceAdditionalDirection: 1,

		InternationalOlympics: 4,
		PresidentScholarship:  4,
		CountryOlympics:       3,
		GovernmentScholarship: 3,
		MilitaryGrants:        3,
		RegionOlympics:        2,
		CityOlympics:          1,

		PostgraduateEnded:               3,
		PostgraduatePriorDirection:      8,
		PostgraduateAdditionalDirection: 6,

		ScienceExperience:    6,
		OPKExperience:        4,
		CommercialExperience: 2,

		MilitarySportAchievements: 4,
		SportAchievements:         2,

		MinAvgScore: 1,
		MaxAvgScore: 5,
	}
}

// Calculator computes sub-scores and the final rating score.
type Calculator struct {
	cfg Config
}

// NewCalculator returns a Calculator using the given coefficients.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// round2 rounds to two decimal places, the precision every persisted
// score is stored with.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// LastEducation returns the education record with the maximum end year,
// or nil when the list is empty.
func LastEducation(educations []model.Education) *model.Education {
	var last *model.Education
	for i := range educations {
		if last == nil || educations[i].EndYear > last.EndYear {
			last = &educations[i]
		}
	}
	return last
}

func hasEndedPostgraduate(educations []model.Education) bool {
	for _, e := range educations {
		if e.Type == model.EducationPostgraduate && e.IsEnded {
			return true
		}
	}
	return false
}

func points(flag bool, value float64) float64 {
	if flag {
		return value
	}
	return 0
}

// Update recomputes the sub-scores in place and returns the final score.
//
// a2 and a5 are only written when a qualifying education record exists;
// otherwise the previous values are carried over untouched. That matches
// the historical behavior of the scoring routine and is covered by an
// explicit test so a future change of it is deliberate.
func (c *Calculator) Update(app *model.Application, educations []model.Education, scores *model.ApplicationScores) float64 {
	cfg := c.cfg

	scores.A1 = round2(points(app.InternationalArticles, cfg.InternationalArticles) +
		points(app.Patents, cfg.Patents) +
		points(app.VACArticles, cfg.VACArticles) +
		points(app.InnovationProposals, cfg.InnovationProposals) +
		points(app.RINCArticles, cfg.RINCArticles) +
		points(app.EVMRegister, cfg.EVMRegister))

	if last := LastEducation(educations); last != nil {
		coef := cfg.SpecialAndMoreCoef
		if last.Type == model.EducationBachelor {
			coef = cfg.BachelorCoef
		}
		scores.A2 = round2(last.AvgScore * coef)
	}

	scores.A3 = round2(points(app.CompliancePriorDirection, cfg.CompliancePriorDirection) +
		points(app.ComplianceAdditionalDirection, cfg.ComplianceAdditionalDirection))

	scores.A4 = round2(points(app.InternationalOlympics, cfg.InternationalOlympics) +
		points(app.PresidentScholarship, cfg.PresidentScholarship) +
		points(app.CountryOlympics, cfg.CountryOlympics) +
		points(app.GovernmentScholarship, cfg.GovernmentScholarship) +
		points(app.MilitaryGrants, cfg.MilitaryGrants) +
		points(app.RegionOlympics, cfg.RegionOlympics) +
		points(app.CityOlympics, cfg.CityOlympics))

	if hasEndedPostgraduate(educations) {
		scores.A5 = round2(cfg.PostgraduateEnded +
			points(app.CompliancePriorDirection, cfg.PostgraduatePriorDirection) +
			points(app.ComplianceAdditionalDirection, cfg.PostgraduateAdditionalDirection))
	}

	scores.A6 = round2(points(app.ScienceExperience, cfg.ScienceExperience) +
		points(app.OPKExperience, cfg.OPKExperience) +
		points(app.CommercialExperience, cfg.CommercialExperience))

	scores.A7 = round2(points(app.MilitarySportAchievements, cfg.MilitarySportAchievements) +
		points(app.SportAchievements, cfg.SportAchievements))

	return c.FinalScore(scores)
}

// FinalScore combines stored sub-scores with the weight coefficients.
func (c *Calculator) FinalScore(s *model.ApplicationScores) float64 {
	k := c.cfg.K
	return round2(s.A1*k[0] + s.A2*k[1] + s.A3*k[2] + s.A4*k[3] + s.A5*k[4] + s.A6*k[5] + s.A7*k[6])
}

// ValidAvgScore reports whether an education average score is inside the
// configured bounds. Out-of-range values are rejected at entry, never
// clamped.
func (c *Calculator) ValidAvgScore(v float64) bool {
	return v >= c.cfg.MinAvgScore && v <= c.cfg.MaxAvgScore
}

// MinAvgScore is the lower bound accepted by ValidAvgScore.
func (c *Calculator) MinAvgScore() float64 { return c.cfg.MinAvgScore }

// MaxAvgScore is the upper bound accepted by ValidAvgScore.
func (c *Calculator) MaxAvgScore() float64 { return c.cfg.MaxAvgScore }

// Application block presence, used for the fullness percentage. BasicData
// is true for any existing application row.
type Presence struct {
	BasicData    bool
	Education    bool
	Directions   bool
	Competencies bool
	Files        bool
}

// Fullness returns the completion percentage of an application: the share
// of filled blocks out of five, as an integer percent.
func Fullness(p Presence) int {
	blocks := []bool{p.BasicData, p.Education, p.Directions, p.Competencies, p.Files}
	filled := 0
	for _, b := range blocks {
		if b {
			filled++
		}
	}
	return int(math.Round(float64(filled) / float64(len(blocks)) * 100))
}
