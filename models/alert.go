package models

import (
	"context"
	"errors"

	"github.com/cascacheck/cascacheck_backend/utils"
)

// PendingAlert is the aging signal for outstanding plans. Display cadence
// (once per session, dismissable) is a client concern; the payload itself is
// idempotent.
type PendingAlert struct {
	Count          int `json:"count"`
	MaxDaysPending int `json:"max_days_pending"`
}

// AlertScopeStore resolves which store the alert query covers. Admins see
// all stores (zero); collaborators only their own.
func AlertScopeStore(isAdmin bool, storeId int, hasStore bool) (int, error) {
	if isAdmin {
		return 0, nil
	}
	if !hasStore {
		return 0, ErrUnauthenticated
	}
	return storeId, nil
}

// BuildPendingAlert folds the review queue into the alert payload.
// Returns nil when nothing is pending.
func BuildPendingAlert(views []*PendingActionPlanView) *PendingAlert {
	if len(views) == 0 {
		return nil
	}
	alert := PendingAlert{Count: len(views)}
	for _, v := range views {
		if v.DaysPending > alert.MaxDaysPending {
			alert.MaxDaysPending = v.DaysPending
		}
	}
	return &alert
}

// AlertFetchFailure maps a failed queue fetch to what the caller sees:
// nil for network failures that survived the retry budget (silent, a flaky
// link never breaks the page that asked), the error itself for domain
// errors, and a transient wrapper carrying the operation context otherwise.
func AlertFetchFailure(err error) error {
	switch {
	case err == nil:
		return nil
	case utils.IsNetworkError(err):
		return nil
	case errors.Is(err, ErrUnauthenticated), IsAuthorizationError(err), IsValidationError(err):
		return err
	default:
		return NewTransientIOError("list pending action plans", err)
	}
}

// CheckForAlerts returns the pending-plan alert for the session's scope, or
// nil when nothing is pending. The fetch runs through the shared retry
// policy; failures surface through AlertFetchFailure.
func CheckForAlerts(ctx context.Context) (*PendingAlert, error) {

	isAdmin, _ := utils.GetIsAdminFromContext(ctx)
	ctxStoreId, hasStore := utils.GetStoreIdFromContext(ctx)
	storeId, err := AlertScopeStore(isAdmin, ctxStoreId, hasStore)
	if err != nil {
		return nil, err
	}

	var views []*PendingActionPlanView
	policy := utils.DefaultRetryPolicy()
	err = policy.Do(ctx, func() error {
		var fetchErr error
		views, fetchErr = GetPendingActionPlans(ctx, storeId)
		return fetchErr
	})
	if err != nil {
		return nil, AlertFetchFailure(err)
	}

	return BuildPendingAlert(views), nil
}
