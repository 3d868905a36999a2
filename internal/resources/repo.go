package resources

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookings-backend/pkg/db/models"
)

// Repository reads bookable resources. Resource CRUD lives in the listings service.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID returns gorm.ErrRecordNotFound when the resource does not exist.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Resource, error) {
	var resource models.Resource
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&resource).Error; err != nil {
		return nil, err
	}
	return &resource, nil
}
