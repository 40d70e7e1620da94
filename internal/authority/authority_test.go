package authority

import (
	"errors"
	"testing"

	"github.com/akozyrev/sciselect/internal/model"
)

var testAffiliations = []model.Affiliation{
	{ID: 1, DirectionID: 10, Company: 2, Platoon: 1},
	{ID: 2, DirectionID: 10, Company: 1, Platoon: 2},
	{ID: 3, DirectionID: 20, Company: 1, Platoon: 1},
}

func TestIsAuthorized(t *testing.T) {
	if !IsAuthorized(testAffiliations, 2) {
		t.Error("expected affiliation 2 to be authorized")
	}
	if IsAuthorized(testAffiliations, 99) {
		t.Error("expected affiliation 99 to be rejected")
	}
	if IsAuthorized(nil, 1) {
		t.Error("expected empty set to authorize nothing")
	}
}

func TestMasterDirections(t *testing.T) {
	directions := MasterDirections(testAffiliations)
	if len(directions) != 2 || directions[0] != 10 || directions[1] != 20 {
		t.Errorf("expected [10 20], got %v", directions)
	}
	if got := MasterDirections(nil); len(got) != 0 {
		t.Errorf("expected no directions, got %v", got)
	}
}

func TestGroupByDirection(t *testing.T) {
	grouped := GroupByDirection(testAffiliations)
	if len(grouped) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(grouped))
	}
	// Within a direction, ordering is (company, platoon).
	dir10 := grouped[10]
	if len(dir10) != 2 || dir10[0].ID != 2 || dir10[1].ID != 1 {
		t.Errorf("unexpected ordering for direction 10: %v", dir10)
	}
}

func TestRequireAffiliations(t *testing.T) {
	if err := RequireAffiliations(testAffiliations); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := RequireAffiliations(nil); !errors.Is(err, ErrNoAffiliations) {
		t.Errorf("expected ErrNoAffiliations, got %v", err)
	}
}
