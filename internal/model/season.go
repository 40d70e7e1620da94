package model

import "time"

// Recruiting cycles switch from spring to autumn in the middle of July.
var midRecruitingMonth, midRecruitingDay = time.July, 15

// CurrentDraftCycle returns the draft year and season for the given date:
// spring until mid-July, autumn after.
func CurrentDraftCycle(now time.Time) (int, DraftSeason) {
	middle := time.Date(now.Year(), midRecruitingMonth, midRecruitingDay, 0, 0, 0, 0, now.Location())
	if now.After(middle) {
		return now.Year(), SeasonAutumn
	}
	return now.Year(), SeasonSpring
}
