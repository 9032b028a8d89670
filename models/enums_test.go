package models_test

import (
	"testing"

	"github.com/cascacheck/cascacheck_backend/models"
)

func TestSeverityForCount(t *testing.T) {
	cases := []struct {
		count int
		want  models.SeverityBand
	}{
		{0, models.SeverityBaseline},
		{1, models.SeverityRecurrence},
		{2, models.SeverityCritical},
		{7, models.SeverityCritical},
		{-1, models.SeverityBaseline},
	}
	for _, c := range cases {
		if got := models.SeverityForCount(c.count); got != c.want {
			t.Fatalf("SeverityForCount(%d) = %q; want %q", c.count, got, c.want)
		}
	}
}

func TestItemStatusValid(t *testing.T) {
	if !models.ItemStatusConforming.Valid() || !models.ItemStatusNonConforming.Valid() {
		t.Fatalf("sim and nao must be valid answers")
	}
	if models.ItemStatusUnanswered.Valid() {
		t.Fatalf("the unanswered state is not an acceptable answer")
	}
	if models.ItemStatus("yes").Valid() {
		t.Fatalf("unknown status must be rejected")
	}
}

func TestReviewDecisionValid(t *testing.T) {
	if !models.ReviewDecisionApprove.Valid() || !models.ReviewDecisionReject.Valid() {
		t.Fatalf("approve and reject must be valid decisions")
	}
	if models.ReviewDecision("defer").Valid() {
		t.Fatalf("unknown decision must be rejected")
	}
}

func TestParseUserRole(t *testing.T) {
	role, err := models.ParseUserRole("A")
	if err != nil || role != models.UserRoleAdmin {
		t.Fatalf("ParseUserRole(A) = %q, %v", role, err)
	}
	if _, err := models.ParseUserRole("X"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestActionPlanIsLive(t *testing.T) {
	if !(models.ActionPlan{Status: models.ActionPlanStatusPending}).IsLive() {
		t.Fatalf("pending plan must block new plans")
	}
	if !(models.ActionPlan{Status: models.ActionPlanStatusApproved}).IsLive() {
		t.Fatalf("approved plan must block new plans")
	}
	if (models.ActionPlan{Status: models.ActionPlanStatusRejected}).IsLive() {
		t.Fatalf("rejected plan must be supersedable")
	}
}
