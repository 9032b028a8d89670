package models

import "errors"

// ItemStatus is the answer recorded for a checklist item.
// Empty string means the item has not been answered yet.
type ItemStatus string

const (
	ItemStatusUnanswered    ItemStatus = ""
	ItemStatusConforming    ItemStatus = "sim"
	ItemStatusNonConforming ItemStatus = "nao"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusConforming, ItemStatusNonConforming:
		return true
	}
	return false
}

type ActionPlanStatus string

const (
	ActionPlanStatusPending  ActionPlanStatus = "pending"
	ActionPlanStatusApproved ActionPlanStatus = "approved"
	ActionPlanStatusRejected ActionPlanStatus = "rejected"
)

func (s ActionPlanStatus) Valid() bool {
	switch s {
	case ActionPlanStatusPending, ActionPlanStatusApproved, ActionPlanStatusRejected:
		return true
	}
	return false
}

// ReviewDecision is the admin verdict on a pending plan.
type ReviewDecision string

const (
	ReviewDecisionApprove ReviewDecision = "approve"
	ReviewDecisionReject  ReviewDecision = "reject"
)

func (d ReviewDecision) Valid() bool {
	return d == ReviewDecisionApprove || d == ReviewDecisionReject
}

type ChecklistCategory string

const (
	CategoryReposicaoFrenteLoja ChecklistCategory = "reposicao-frente-loja"
	CategoryEstoqueSeco         ChecklistCategory = "estoque-seco"
	CategoryCozinhaCopa         ChecklistCategory = "cozinha-copa"
	CategoryBanheiros           ChecklistCategory = "banheiros"
	CategoryAreaProducao        ChecklistCategory = "area-producao"
	CategoryAreaExterna         ChecklistCategory = "area-externa"
)

func (c ChecklistCategory) Valid() bool {
	switch c {
	case CategoryReposicaoFrenteLoja, CategoryEstoqueSeco, CategoryCozinhaCopa,
		CategoryBanheiros, CategoryAreaProducao, CategoryAreaExterna:
		return true
	}
	return false
}

// Period is the shift during which an inspection runs.
type Period string

const (
	PeriodManha Period = "manha"
	PeriodTarde Period = "tarde"
	PeriodNoite Period = "noite"
)

func (p Period) Valid() bool {
	switch p {
	case PeriodManha, PeriodTarde, PeriodNoite:
		return true
	}
	return false
}

type UserRole string

const (
	UserRoleAdmin        UserRole = "A"
	UserRoleCollaborator UserRole = "C"
)

func (r UserRole) Valid() bool {
	return r == UserRoleAdmin || r == UserRoleCollaborator
}

func ParseUserRole(s string) (UserRole, error) {
	r := UserRole(s)
	if !r.Valid() {
		return "", errors.New("invalid user role")
	}
	return r, nil
}

// SeverityBand classifies how serious a recurring non-conformance is.
type SeverityBand string

const (
	SeverityBaseline   SeverityBand = "baseline"
	SeverityRecurrence SeverityBand = "recurrence"
	SeverityCritical   SeverityBand = "critical"
)

// SeverityForCount maps a recurrence count to its band.
// A first failure is baseline, a repeat is a recurrence, two or more
// prior failures make the item critical.
func SeverityForCount(count int) SeverityBand {
	switch {
	case count >= 2:
		return SeverityCritical
	case count == 1:
		return SeverityRecurrence
	default:
		return SeverityBaseline
	}
}
