package models_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cascacheck/cascacheck_backend/models"
)

func TestAlertScopeStore(t *testing.T) {
	if scope, err := models.AlertScopeStore(true, 7, true); err != nil || scope != 0 {
		t.Fatalf("admin scope = %d, %v; want 0, nil", scope, err)
	}
	if scope, err := models.AlertScopeStore(false, 7, true); err != nil || scope != 7 {
		t.Fatalf("collaborator scope = %d, %v; want 7, nil", scope, err)
	}
	if _, err := models.AlertScopeStore(false, 0, false); !errors.Is(err, models.ErrUnauthenticated) {
		t.Fatalf("collaborator without store: err = %v; want ErrUnauthenticated", err)
	}
}

func TestAlertFetchFailure(t *testing.T) {
	if got := models.AlertFetchFailure(nil); got != nil {
		t.Fatalf("nil fetch error must stay nil; got %v", got)
	}
	if got := models.AlertFetchFailure(errors.New("dial tcp: connection refused")); got != nil {
		t.Fatalf("exhausted network failure must be silent; got %v", got)
	}
	if got := models.AlertFetchFailure(models.ErrUnauthenticated); !errors.Is(got, models.ErrUnauthenticated) {
		t.Fatalf("domain error must pass through unwrapped; got %v", got)
	}

	cause := errors.New("Error 1064: syntax error")
	got := models.AlertFetchFailure(cause)
	if !models.IsTransientIOError(got) {
		t.Fatalf("unclassified failure must wrap as transient; got %v", got)
	}
	if !errors.Is(got, cause) {
		t.Fatalf("transient wrapper must unwrap to the cause; got %v", got)
	}
	if !strings.Contains(got.Error(), "list pending action plans") {
		t.Fatalf("transient wrapper must name the operation; got %q", got.Error())
	}
}

func TestBuildPendingAlert(t *testing.T) {
	if alert := models.BuildPendingAlert(nil); alert != nil {
		t.Fatalf("empty queue must yield no alert")
	}

	now := time.Now()
	views := []*models.PendingActionPlanView{
		{PlanId: 1, CreatedAt: now, DaysPending: 2},
		{PlanId: 2, CreatedAt: now, DaysPending: 11},
		{PlanId: 3, CreatedAt: now, DaysPending: 0},
	}
	alert := models.BuildPendingAlert(views)
	if alert == nil {
		t.Fatalf("expected an alert")
	}
	if alert.Count != 3 {
		t.Fatalf("alert count = %d; want 3", alert.Count)
	}
	if alert.MaxDaysPending != 11 {
		t.Fatalf("alert max days = %d; want 11", alert.MaxDaysPending)
	}
}
