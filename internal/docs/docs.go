// Package docs builds the printable selection paperwork: candidate
// lists, rating tables, evaluation statements, interview sheets and
// psychological test summaries.
package docs

import (
	"context"
	"fmt"
	"strings"

	"github.com/akozyrev/sciselect/internal/i18n"
	"github.com/akozyrev/sciselect/internal/model"
	"github.com/akozyrev/sciselect/internal/store"
)

// Document is a renderer-agnostic table: a title, column headings and
// string cells. Sheets without a tabular shape use one two-column row
// per field.
type Document struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// Renderer writes a document to the given path.
type Renderer interface {
	Render(doc *Document, path string) error
}

// Generator assembles documents from stored applications.
type Generator struct {
	store *store.Store
}

// NewGenerator creates a document generator.
func NewGenerator(s *store.Store) *Generator {
	return &Generator{store: s}
}

// Candidates builds the candidate list visible to the master: every
// application in the master's directions with the rating score.
func (g *Generator) Candidates(ctx context.Context, masterID int64, directionIDs []int64) (*Document, error) {
	items, err := g.store.ListApplications(masterID, directionIDs)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Title: i18n.T(ctx, "DocCandidates"),
		Columns: []string{
			i18n.T(ctx, "DocColumnName"),
			i18n.T(ctx, "DocColumnBirth"),
			i18n.T(ctx, "DocColumnEducation"),
			i18n.T(ctx, "DocColumnScore"),
		},
	}
	for _, it := range items {
		doc.Rows = append(doc.Rows, []string{
			it.MemberName,
			it.Application.BirthDay.Format("02.01.2006"),
			g.educationLine(it.Application.ID),
			formatScore(it.Application.FinalScore),
		})
	}
	return doc, nil
}

// Rating builds the site-wide rating list ordered by final score.
func (g *Generator) Rating(ctx context.Context) (*Document, error) {
	items, err := g.store.RatingList()
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Title: i18n.T(ctx, "DocRating"),
		Columns: []string{
			"#",
			i18n.T(ctx, "DocColumnName"),
			i18n.T(ctx, "DocColumnScore"),
		},
	}
	for i, it := range items {
		doc.Rows = append(doc.Rows, []string{
			fmt.Sprintf("%d", i+1),
			it.MemberName,
			formatScore(it.Application.FinalScore),
		})
	}
	return doc, nil
}

// Evaluation builds the evaluation statement for one affiliation: the
// booked candidates with their scores.
func (g *Generator) Evaluation(ctx context.Context, affiliationID int64) (*Document, error) {
	aff, err := g.store.GetAffiliation(affiliationID)
	if err != nil {
		return nil, err
	}
	if aff == nil {
		return nil, fmt.Errorf("affiliation %d not found", affiliationID)
	}
	bookings, err := g.store.BookedByAffiliation(affiliationID)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Title: i18n.T(ctx, "DocEvaluation") + ": " + aff.String(),
		Columns: []string{
			i18n.T(ctx, "DocColumnName"),
			i18n.T(ctx, "DocColumnEducation"),
			i18n.T(ctx, "DocColumnScore"),
		},
	}
	for _, b := range bookings {
		member, err := g.store.GetMemberByID(b.SlaveID)
		if err != nil {
			return nil, err
		}
		app, err := g.store.GetApplicationByMember(b.SlaveID)
		if err != nil {
			return nil, err
		}
		if member == nil || app == nil {
			continue
		}
		doc.Rows = append(doc.Rows, []string{
			member.DisplayName,
			g.educationLine(app.ID),
			formatScore(app.FinalScore),
		})
	}
	return doc, nil
}

// Interview builds a one-candidate sheet for the interview: personal
// data, education and the free-text application blocks.
func (g *Generator) Interview(ctx context.Context, applicationID int64) (*Document, error) {
	app, err := g.store.GetApplication(applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, fmt.Errorf("application %d not found", applicationID)
	}
	member, err := g.store.GetMemberByID(app.MemberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("member %d not found", app.MemberID)
	}

	doc := &Document{Title: i18n.T(ctx, "DocInterview")}
	put := func(label, value string) {
		if value != "" {
			doc.Rows = append(doc.Rows, []string{label, value})
		}
	}
	put(i18n.T(ctx, "DocColumnName"), member.DisplayName)
	put(i18n.T(ctx, "DocColumnBirth"), app.BirthDay.Format("02.01.2006"))
	put(i18n.T(ctx, "DocColumnEducation"), g.educationLine(app.ID))
	put(i18n.T(ctx, "DocColumnScore"), formatScore(app.FinalScore))
	put(i18n.T(ctx, "DocFieldScience"), app.ScientificAchievements)
	put(i18n.T(ctx, "DocFieldScholarships"), app.Scholarships)
	put(i18n.T(ctx, "DocFieldExams"), app.CandidateExams)
	put(i18n.T(ctx, "DocFieldSport"), app.SportingAchievements)
	put(i18n.T(ctx, "DocFieldHobby"), app.Hobby)
	put(i18n.T(ctx, "DocFieldOther"), app.OtherInformation)
	return doc, nil
}

// PsychResults builds the summary of a psychological test: who finished
// it and when. Scores are omitted, the questionnaire has none.
func (g *Generator) PsychResults(ctx context.Context, testID int64) (*Document, error) {
	test, err := g.store.GetTest(testID)
	if err != nil {
		return nil, err
	}
	if test == nil {
		return nil, fmt.Errorf("test %d not found", testID)
	}
	results, err := g.store.TestResultsForTest(testID)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Title: i18n.T(ctx, "DocPsychResults") + ": " + test.Name,
		Columns: []string{
			i18n.T(ctx, "DocColumnName"),
			i18n.T(ctx, "DocColumnResult"),
		},
	}
	for _, r := range results {
		member, err := g.store.GetMemberByID(r.MemberID)
		if err != nil {
			return nil, err
		}
		if member == nil {
			continue
		}
		status := r.Status.String()
		if test.Type == model.TestOrdinary && r.Status == model.StatusFinished {
			status = fmt.Sprintf("%d%%", r.Result)
		}
		doc.Rows = append(doc.Rows, []string{member.DisplayName, status})
	}
	return doc, nil
}

// educationLine summarizes the latest education of an application, or
// returns an empty string when none is recorded.
func (g *Generator) educationLine(applicationID int64) string {
	educations, err := g.store.ListEducations(applicationID)
	if err != nil || len(educations) == 0 {
		return ""
	}
	last := educations[0]
	parts := []string{string(last.Type)}
	if last.University != "" {
		parts = append(parts, last.University)
	}
	if last.Specialization != "" {
		parts = append(parts, last.Specialization)
	}
	return strings.Join(parts, ", ")
}

// formatScore renders a score with the decimal comma used in the
// printed forms.
func formatScore(v float64) string {
	return strings.Replace(fmt.Sprintf("%.2f", v), ".", ",", 1)
}
