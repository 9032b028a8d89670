package models

import (
	"context"
	"strings"
	"time"

	"github.com/cascacheck/cascacheck_backend/config"
	"github.com/cascacheck/cascacheck_backend/utils"
	"gorm.io/gorm"
)

type ActionPlan struct {
	ID              int              `gorm:"primary_key" json:"id"`
	ChecklistId     int              `gorm:"not null;index" json:"checklist_id"`
	ChecklistItemId int              `gorm:"not null;index" json:"checklist_item_id"`
	StoreId         int              `gorm:"not null;index" json:"store_id"`
	Description     string           `gorm:"size:1000;not null" json:"description"`
	Status          ActionPlanStatus `gorm:"size:10;not null;default:'pending'" json:"status"`
	CreatorId       int              `gorm:"not null" json:"creator_id"`
	CreatorName     string           `gorm:"size:100" json:"creator_name"`
	ReviewerId      *int             `json:"reviewer_id"`
	ReviewerName    string           `gorm:"size:100" json:"reviewer_name"`
	ReviewComment   string           `gorm:"size:500" json:"review_comment"`
	ReviewedAt      *time.Time       `json:"reviewed_at"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewActionPlan struct {
	ChecklistId     int    `json:"checklist_id" binding:"required"`
	ChecklistItemId int    `json:"checklist_item_id" binding:"required"`
	Description     string `json:"description" binding:"required"`
}

type ReviewActionPlanInput struct {
	Decision ReviewDecision `json:"decision" binding:"required"`
	Comment  string         `json:"comment"`
}

// IsLive reports whether this plan still occupies its item. A pending or
// approved plan blocks new plans; a rejected one can be superseded.
func (p ActionPlan) IsLive() bool {
	return p.Status == ActionPlanStatusPending || p.Status == ActionPlanStatusApproved
}

/*
caches:
	PendingActionPlansList:$storeId (invalidated on create/review)
*/

func (plan ActionPlan) RemoveAllRedis() error {
	if err := utils.RemoveRedisList[PendingActionPlanView](plan.StoreId); err != nil {
		return err
	}
	return utils.RemoveRedisList[PendingActionPlanView](0)
}

// CreateActionPlan files a remediation plan against one non-conforming item.
// One live plan per item: a pending or approved plan blocks creation, a
// rejected one is superseded by the new plan.
func CreateActionPlan(ctx context.Context, input *NewActionPlan) (*ActionPlan, error) {

	creatorId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || creatorId == 0 {
		return nil, ErrUnauthenticated
	}
	creatorName, _ := utils.GetUserNameFromContext(ctx)

	if strings.TrimSpace(input.Description) == "" {
		return nil, NewValidationError("action plan description is required")
	}

	checklist, err := GetChecklist(ctx, input.ChecklistId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var item ChecklistItem
	if err := db.WithContext(ctx).
		Where("checklist_id = ?", checklist.ID).
		First(&item, input.ChecklistItemId).Error; err != nil {
		return nil, NewNotFoundError("checklist item not found")
	}

	if item.Status != ItemStatusNonConforming {
		return nil, NewValidationError("action plans are only accepted on non-conforming items")
	}
	if strings.TrimSpace(item.Justification) == "" {
		return nil, NewValidationError("item has no justification recorded")
	}

	if item.ActionPlanId != nil {
		var current ActionPlan
		if err := db.WithContext(ctx).First(&current, *item.ActionPlanId).Error; err == nil {
			if current.IsLive() {
				return nil, NewValidationError("item already has a live action plan")
			}
		}
	}

	plan := ActionPlan{
		ChecklistId:     checklist.ID,
		ChecklistItemId: item.ID,
		StoreId:         checklist.StoreId,
		Description:     input.Description,
		Status:          ActionPlanStatusPending,
		CreatorId:       creatorId,
		CreatorName:     creatorName,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Create(&plan).Error; txErr != nil {
			return txErr
		}
		// the new plan becomes the item's current plan
		return tx.Model(&ChecklistItem{}).
			Where("id = ?", item.ID).
			Update("action_plan_id", plan.ID).Error
	})
	if err != nil {
		return nil, err
	}

	if err := plan.RemoveAllRedis(); err != nil {
		return nil, err
	}
	return &plan, nil
}

func GetActionPlan(ctx context.Context, id int) (*ActionPlan, error) {
	plan, err := utils.FetchSingleModel[ActionPlan](ctx, id)
	if err != nil {
		return nil, NewNotFoundError("action plan not found")
	}
	return plan, nil
}

// ReviewActionPlan applies an admin verdict to a pending plan. Approval and
// rejection are both terminal for the plan itself; a rejected plan stays on
// the pending surface until a replacement is filed.
func ReviewActionPlan(ctx context.Context, planId int, input *ReviewActionPlanInput) (*ActionPlan, error) {

	if err := RequireAdmin(ctx); err != nil {
		return nil, err
	}
	reviewerId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || reviewerId == 0 {
		return nil, ErrUnauthenticated
	}
	reviewerName, _ := utils.GetUserNameFromContext(ctx)

	if !input.Decision.Valid() {
		return nil, NewValidationError("decision must be approve or reject")
	}

	plan, err := GetActionPlan(ctx, planId)
	if err != nil {
		return nil, err
	}
	if plan.Status != ActionPlanStatusPending {
		return nil, NewValidationError("action plan is already reviewed")
	}

	now := time.Now()
	status := ActionPlanStatusApproved
	if input.Decision == ReviewDecisionReject {
		status = ActionPlanStatusRejected
	}

	db := config.GetDB()
	result := db.WithContext(ctx).Model(&ActionPlan{}).
		Where("id = ? AND status = ?", plan.ID, ActionPlanStatusPending).
		Updates(map[string]interface{}{
			"status":         status,
			"reviewer_id":    reviewerId,
			"reviewer_name":  reviewerName,
			"review_comment": input.Comment,
			"reviewed_at":    now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	// zero rows means another reviewer's decision landed first
	if result.RowsAffected == 0 {
		return nil, NewValidationError("action plan is already reviewed")
	}

	plan.Status = status
	plan.ReviewerId = &reviewerId
	plan.ReviewerName = reviewerName
	plan.ReviewComment = input.Comment
	plan.ReviewedAt = &now

	if err := plan.RemoveAllRedis(); err != nil {
		return nil, err
	}

	// notification fan-out is best effort, the review itself already committed
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	go func(p ActionPlan) {
		event := config.ReviewEvent{
			ActionPlanId:    p.ID,
			ChecklistId:     p.ChecklistId,
			ChecklistItemId: p.ChecklistItemId,
			StoreId:         p.StoreId,
			Decision:        string(p.Status),
			ReviewerId:      reviewerId,
			ReviewerName:    reviewerName,
			ReviewComment:   p.ReviewComment,
			ReviewedAt:      now,
			CorrelationId:   correlationId,
		}
		if err := config.PublishReviewEvent(event); err != nil {
			logger := config.GetLogger()
			config.LogError(logger, "actionPlan", "ReviewActionPlan", "publish review event", event, err)
		}
	}(*plan)

	return plan, nil
}

// PendingActionPlanView is the projection served to the review queue.
// DaysPending is computed on read, never stored.
type PendingActionPlanView struct {
	PlanId          int              `json:"plan_id"`
	ChecklistId     int              `json:"checklist_id"`
	ChecklistItemId int              `json:"checklist_item_id"`
	StoreId         int              `json:"store_id"`
	StoreName       string           `json:"store_name"`
	Category        string           `json:"category"`
	ItemDescription string           `json:"item_description"`
	Justification   string           `json:"justification"`
	PlanDescription string           `json:"plan_description"`
	Status          ActionPlanStatus `json:"status"`
	CreatorName     string           `json:"creator_name"`
	CreatedAt       time.Time        `json:"created_at"`
	DaysPending     int              `json:"days_pending"`
}

// GetPendingActionPlans lists the review queue, oldest first. storeId zero
// means all stores (admin). Rejected plans stay listed while they are still
// the item's current plan. The list is redis-cached per scope and
// invalidated by RemoveAllRedis on create and review.
func GetPendingActionPlans(ctx context.Context, storeId int) ([]*PendingActionPlanView, error) {

	if storeId != 0 {
		if err := checkStoreScope(ctx, storeId); err != nil {
			return nil, err
		}
	} else {
		isAdmin, _ := utils.GetIsAdminFromContext(ctx)
		if !isAdmin {
			ctxStoreId, ok := utils.GetStoreIdFromContext(ctx)
			if !ok {
				return nil, ErrUnauthenticated
			}
			storeId = ctxStoreId
		}
	}

	cached, err := utils.RetrieveRedisList[PendingActionPlanView](storeId)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	db := config.GetDB()
	query := `SELECT p.id AS plan_id, p.checklist_id, p.checklist_item_id, p.store_id,
	                 s.name AS store_name, c.category, i.description AS item_description,
	                 i.justification, p.description AS plan_description, p.status,
	                 p.creator_name, p.created_at,
	                 DATEDIFF(CURDATE(), DATE(p.created_at)) AS days_pending
	          FROM action_plans p
	          JOIN checklist_items i ON i.id = p.checklist_item_id
	          JOIN checklists c ON c.id = p.checklist_id
	          JOIN stores s ON s.id = p.store_id
	          WHERE (p.status = ? OR (p.status = ? AND p.id = i.action_plan_id))`
	args := []interface{}{ActionPlanStatusPending, ActionPlanStatusRejected}
	if storeId != 0 {
		query += ` AND p.store_id = ?`
		args = append(args, storeId)
	}
	query += ` ORDER BY p.created_at ASC`

	var results []*PendingActionPlanView
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&results).Error; err != nil {
		return nil, err
	}

	if err := utils.StoreRedisList[PendingActionPlanView](results, storeId); err != nil {
		return nil, err
	}
	return results, nil
}
