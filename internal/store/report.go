package store

import (
	"sort"
	"strings"

	"github.com/akozyrev/sciselect/internal/model"
)

// prefixColumns qualifies every column in a comma-separated list with a
// table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// ApplicationListItem is one row of the evaluator's candidate list:
// the application plus booking flags relative to the acting master.
type ApplicationListItem struct {
	Application model.Application `json:"application"`
	MemberName  string            `json:"member_name"`
	IsBooked    bool              `json:"is_booked"`
	InWishlist  bool              `json:"in_wishlist"`
}

// ListApplications returns applications visible to a master, restricted
// to candidates whose chosen directions intersect the given set (empty
// set means no direction filter). The wishlist flag is scoped to the
// acting master; the booked flag is global.
func (s *Store) ListApplications(masterID int64, directionIDs []int64) ([]ApplicationListItem, error) {
	query := `SELECT ` + prefixColumns("a", applicationColumns) + `, m.display_name,
		EXISTS(SELECT 1 FROM bookings b WHERE b.slave_id = a.member_id AND b.booking_type = 'booked'),
		EXISTS(SELECT 1 FROM bookings b WHERE b.slave_id = a.member_id AND b.booking_type = 'in_wishlist' AND b.master_id = ?)
		FROM applications a JOIN members m ON m.id = a.member_id`
	args := []any{masterID}

	if len(directionIDs) > 0 {
		query += ` WHERE a.id IN (SELECT application_id FROM application_directions WHERE direction_id IN (`
		for i, id := range directionIDs {
			if i > 0 {
				query += `, `
			}
			query += `?`
			args = append(args, id)
		}
		query += `))`
	}
	query += ` ORDER BY a.create_date`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ApplicationListItem
	for rows.Next() {
		var it ApplicationListItem
		a := &it.Application
		if err := rows.Scan(
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
			&it.MemberName, &it.IsBooked, &it.InWishlist,
		); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// RatingList returns all applications with member names ordered by final
// score, best first.
func (s *Store) RatingList() ([]ApplicationListItem, error) {
	items, err := s.ListApplications(0, nil)
	if err != nil {
		return nil, err
	}
	// Stable on top of the base query's create-date order.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Application.FinalScore > items[j].Application.FinalScore
	})
	return items, nil
}
