package models

import (
	"context"
	"strings"
	"time"

	"github.com/cascacheck/cascacheck_backend/config"
	"github.com/cascacheck/cascacheck_backend/utils"
	"gorm.io/gorm"
)

type Checklist struct {
	ID        int               `gorm:"primary_key" json:"id"`
	Category  ChecklistCategory `gorm:"size:50;not null;index" json:"category"`
	Title     string            `gorm:"size:150;not null" json:"title"`
	Date      time.Time         `gorm:"type:date;not null;index" json:"date"`
	StoreId   int               `gorm:"not null;index" json:"store_id"`
	UserId    int               `gorm:"not null" json:"user_id"`
	UserName  string            `gorm:"size:100;not null" json:"user_name"`
	Period    Period            `gorm:"size:10;not null" json:"period"`
	Completed *bool             `gorm:"not null" json:"completed"`
	Items     []ChecklistItem   `gorm:"foreignKey:ChecklistId" json:"items"`
	CreatedAt time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type ChecklistItem struct {
	ID              int        `gorm:"primary_key" json:"id"`
	ChecklistId     int        `gorm:"not null;index" json:"checklist_id"`
	Description     string     `gorm:"size:255;not null" json:"description"`
	Status          ItemStatus `gorm:"size:3;not null;default:''" json:"status"`
	Justification   string     `gorm:"size:500" json:"justification"`
	PhotoUrl        string     `gorm:"size:500" json:"photo_url"`
	RecordedAt      *time.Time `json:"recorded_at"`
	RecurrenceCount int        `gorm:"not null;default:0" json:"recurrence_count"`
	ActionPlanId    *int       `gorm:"index" json:"action_plan_id"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewChecklist struct {
	Category ChecklistCategory `json:"category" binding:"required"`
	StoreId  int               `json:"store_id" binding:"required"`
	Period   Period            `json:"period" binding:"required"`
	Date     *time.Time        `json:"date"`
}

type UpdateChecklistItemInput struct {
	Status        ItemStatus `json:"status" binding:"required"`
	Justification string     `json:"justification"`
	PhotoUrl      string     `json:"photo_url"`
}

// checkStoreScope rejects collaborators acting outside their own store.
// Admins pass for any store.
func checkStoreScope(ctx context.Context, storeId int) error {
	isAdmin, _ := utils.GetIsAdminFromContext(ctx)
	if isAdmin {
		return nil
	}
	ctxStoreId, ok := utils.GetStoreIdFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if ctxStoreId != storeId {
		return NewAuthorizationError("store is outside your scope")
	}
	return nil
}

// CreateChecklist materializes one item per template entry. Items start
// unanswered with recurrence counts pre-populated from the tracker.
func CreateChecklist(ctx context.Context, input *NewChecklist) (*Checklist, error) {

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, ErrUnauthenticated
	}
	userName, _ := utils.GetUserNameFromContext(ctx)

	template, err := GetChecklistTemplate(input.Category)
	if err != nil {
		return nil, NewValidationError("unknown checklist category")
	}
	if !input.Period.Valid() {
		return nil, NewValidationError("invalid period")
	}
	if err := utils.ValidateResourceId[Store](ctx, input.StoreId); err != nil {
		return nil, NewValidationError("store does not exist")
	}
	if err := checkStoreScope(ctx, input.StoreId); err != nil {
		return nil, err
	}

	counts, err := GetRecurrenceCounts(ctx, input.StoreId, template.Items)
	if err != nil {
		return nil, err
	}

	date := time.Now()
	if input.Date != nil {
		date = *input.Date
	}
	// The checklist day follows the store's local calendar, not UTC.
	localDay, err := utils.ConvertToDate(date, "")
	if err != nil {
		return nil, err
	}
	date = time.Date(localDay.Year(), localDay.Month(), localDay.Day(), 0, 0, 0, 0, time.UTC)

	checklist := Checklist{
		Category:  input.Category,
		Title:     template.Title,
		Date:      date,
		StoreId:   input.StoreId,
		UserId:    userId,
		UserName:  userName,
		Period:    input.Period,
		Completed: utils.NewFalse(),
	}
	for _, description := range template.Items {
		checklist.Items = append(checklist.Items, ChecklistItem{
			Description:     description,
			Status:          ItemStatusUnanswered,
			RecurrenceCount: counts[description],
		})
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&checklist).Error; err != nil {
		return nil, err
	}
	return &checklist, nil
}

func GetChecklist(ctx context.Context, id int) (*Checklist, error) {
	checklist, err := utils.FetchSingleModel[Checklist](ctx, id, "Items")
	if err != nil {
		return nil, NewNotFoundError("checklist not found")
	}
	if err := checkStoreScope(ctx, checklist.StoreId); err != nil {
		return nil, err
	}
	return checklist, nil
}

type ChecklistFilter struct {
	StoreId  int
	Date     *time.Time
	Category ChecklistCategory
}

// GetChecklists applies the filters independently; zero values are skipped.
func GetChecklists(ctx context.Context, filter ChecklistFilter) ([]*Checklist, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Items")

	if filter.StoreId != 0 {
		if err := checkStoreScope(ctx, filter.StoreId); err != nil {
			return nil, err
		}
		dbCtx = dbCtx.Where("store_id = ?", filter.StoreId)
	} else {
		// collaborators never see other stores, even unfiltered
		isAdmin, _ := utils.GetIsAdminFromContext(ctx)
		if !isAdmin {
			storeId, ok := utils.GetStoreIdFromContext(ctx)
			if !ok {
				return nil, ErrUnauthenticated
			}
			dbCtx = dbCtx.Where("store_id = ?", storeId)
		}
	}
	if filter.Date != nil {
		day := time.Date(filter.Date.Year(), filter.Date.Month(), filter.Date.Day(), 0, 0, 0, 0, time.UTC)
		dbCtx = dbCtx.Where("date = ?", day)
	}
	if filter.Category != "" {
		if !filter.Category.Valid() {
			return nil, NewValidationError("unknown checklist category")
		}
		dbCtx = dbCtx.Where("category = ?", filter.Category)
	}

	var results []*Checklist
	if err := dbCtx.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetChecklistsByStore(ctx context.Context, storeId int) ([]*Checklist, error) {
	return GetChecklists(ctx, ChecklistFilter{StoreId: storeId})
}

func GetChecklistsByDate(ctx context.Context, date time.Time) ([]*Checklist, error) {
	return GetChecklists(ctx, ChecklistFilter{Date: &date})
}

func GetChecklistsByCategory(ctx context.Context, category ChecklistCategory) ([]*Checklist, error) {
	return GetChecklists(ctx, ChecklistFilter{Category: category})
}

// UpdateChecklistItem records the answer for one item. A non-conforming
// answer requires a justification and bumps the recurrence streak; a
// conforming answer may carry photo evidence. The streak moves only on the
// transition into nao, so repeating nao does not double count, while
// re-entering nao after a conforming answer counts as a new failure. The
// item row, the streak and the timestamp move in one transaction.
func UpdateChecklistItem(ctx context.Context, checklistId int, itemId int, input *UpdateChecklistItemInput) (*ChecklistItem, error) {

	if _, ok := utils.GetUserIdFromContext(ctx); !ok {
		return nil, ErrUnauthenticated
	}
	if !input.Status.Valid() {
		return nil, NewValidationError("status must be sim or nao")
	}
	if input.Status == ItemStatusNonConforming && strings.TrimSpace(input.Justification) == "" {
		return nil, NewValidationError("non-conforming item requires a justification")
	}
	if input.Status == ItemStatusNonConforming && input.PhotoUrl != "" {
		return nil, NewValidationError("photo evidence is only accepted on conforming items")
	}

	db := config.GetDB()

	checklist, err := GetChecklist(ctx, checklistId)
	if err != nil {
		return nil, err
	}
	if *checklist.Completed {
		return nil, NewValidationError("checklist is already completed")
	}

	var item ChecklistItem
	if err := db.WithContext(ctx).
		Where("checklist_id = ?", checklistId).
		First(&item, itemId).Error; err != nil {
		return nil, NewNotFoundError("checklist item not found")
	}

	failing := input.Status == ItemStatusNonConforming && item.Status != ItemStatusNonConforming
	conforming := input.Status == ItemStatusConforming

	var lockRelease func()
	if failing || (conforming && config.RecurrenceResetOnConforming()) {
		if lock := obtainRecurrenceLock(ctx, checklist.StoreId, item.Description); lock != nil {
			lockRelease = func() { _ = lock.Release(ctx) }
		}
	}
	if lockRelease != nil {
		defer lockRelease()
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		item.Status = input.Status
		item.RecordedAt = &now

		if input.Status == ItemStatusNonConforming {
			item.Justification = input.Justification
			item.PhotoUrl = ""
			if failing {
				count, txErr := recordItemFailureTx(tx, checklist.StoreId, item.Description)
				if txErr != nil {
					return txErr
				}
				item.RecurrenceCount = count
			}
		} else {
			item.Justification = ""
			if input.PhotoUrl != "" {
				item.PhotoUrl = input.PhotoUrl
			}
			if config.RecurrenceResetOnConforming() {
				if txErr := resetItemRecurrenceTx(tx, checklist.StoreId, item.Description); txErr != nil {
					return txErr
				}
				item.RecurrenceCount = 0
			}
		}

		return tx.Save(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// AttachItemPhoto merges a photo URL into an already-conforming item.
// Re-attaching the same photo is a no-op, keyed by item id.
func AttachItemPhoto(ctx context.Context, checklistId int, itemId int, photoUrl string) (*ChecklistItem, error) {

	if photoUrl == "" {
		return nil, NewValidationError("photo url is required")
	}

	checklist, err := GetChecklist(ctx, checklistId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var item ChecklistItem
	if err := db.WithContext(ctx).
		Where("checklist_id = ?", checklist.ID).
		First(&item, itemId).Error; err != nil {
		return nil, NewNotFoundError("checklist item not found")
	}
	if item.Status != ItemStatusConforming {
		return nil, NewValidationError("photo evidence is only accepted on conforming items")
	}
	if item.PhotoUrl == photoUrl {
		return &item, nil
	}

	if err := db.WithContext(ctx).Model(&item).Update("photo_url", photoUrl).Error; err != nil {
		return nil, err
	}
	item.PhotoUrl = photoUrl
	return &item, nil
}

// SubmitChecklist marks the checklist complete. Completion is one-way and
// resubmitting a completed checklist is a no-op.
func SubmitChecklist(ctx context.Context, id int) (*Checklist, error) {

	checklist, err := GetChecklist(ctx, id)
	if err != nil {
		return nil, err
	}
	if *checklist.Completed {
		return checklist, nil
	}

	for _, item := range checklist.Items {
		if item.Status == ItemStatusUnanswered {
			return nil, ErrIncompleteChecklist
		}
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Checklist{}).
		Where("id = ?", checklist.ID).
		Update("completed", true).Error; err != nil {
		return nil, err
	}
	checklist.Completed = utils.NewTrue()
	return checklist, nil
}

// OpenNonConformity is a non-conforming item with no live remediation plan.
type OpenNonConformity struct {
	ChecklistId     int        `json:"checklist_id"`
	ChecklistItemId int        `json:"checklist_item_id"`
	StoreId         int        `json:"store_id"`
	Category        string     `json:"category"`
	Description     string     `json:"description"`
	Justification   string     `json:"justification"`
	RecurrenceCount int        `json:"recurrence_count"`
	RecordedAt      *time.Time `json:"recorded_at"`
}

// GetOpenNonConformities lists failed items whose remediation is still
// deferred: no plan was ever filed, or the last one was rejected.
func GetOpenNonConformities(ctx context.Context, storeId int) ([]*OpenNonConformity, error) {

	if err := checkStoreScope(ctx, storeId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var results []*OpenNonConformity
	err := db.WithContext(ctx).Raw(
		`SELECT c.id AS checklist_id, i.id AS checklist_item_id, c.store_id, c.category,
		        i.description, i.justification, i.recurrence_count, i.recorded_at
		 FROM checklist_items i
		 JOIN checklists c ON c.id = i.checklist_id
		 LEFT JOIN action_plans p ON p.id = i.action_plan_id
		 WHERE c.store_id = ? AND i.status = ?
		   AND (p.id IS NULL OR p.status = ?)
		 ORDER BY i.recorded_at ASC`,
		storeId, ItemStatusNonConforming, ActionPlanStatusRejected,
	).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
