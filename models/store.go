package models

import (
	"context"
	"time"

	"github.com/cascacheck/cascacheck_backend/config"
	"github.com/cascacheck/cascacheck_backend/utils"
)

type Store struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:150;not null;unique" json:"name" binding:"required"`
	IsActive  *bool     `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewStore struct {
	Name     string `json:"name" binding:"required"`
	IsActive *bool  `json:"is_active"`
}

/*
caches:
	StoreList
*/

func (store Store) RemoveAllRedis() error {
	return utils.RemoveRedisList[Store](0)
}

func CreateStore(ctx context.Context, input *NewStore) (*Store, error) {

	db := config.GetDB()

	if err := utils.ValidateUnique[Store](ctx, "name", input.Name, 0); err != nil {
		return nil, NewValidationError("duplicate store name")
	}

	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}

	store := Store{
		Name:     input.Name,
		IsActive: isActive,
	}
	if err := db.WithContext(ctx).Create(&store).Error; err != nil {
		return nil, err
	}

	if err := store.RemoveAllRedis(); err != nil {
		return nil, err
	}
	return &store, nil
}

func GetStore(ctx context.Context, id int) (*Store, error) {
	return utils.FetchSingleModel[Store](ctx, id)
}

// GetStores lists active stores, redis-cached.
func GetStores(ctx context.Context) ([]*Store, error) {

	results, err := utils.RetrieveRedisList[Store](0)
	if err != nil {
		return nil, err
	}
	if results != nil {
		return results, nil
	}

	results, err = utils.FetchModelsWhere[Store](ctx, "is_active = ?", true)
	if err != nil {
		return nil, err
	}

	if err := utils.StoreRedisList[Store](results, 0); err != nil {
		return nil, err
	}
	return results, nil
}
