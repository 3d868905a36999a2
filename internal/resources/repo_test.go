package resources

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookings-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bookings-backend/pkg/db/models"
	"github.com/angelmondragon/bookings-backend/pkg/enums"
)

func TestFindByID(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)

	resource := models.Resource{
		ID:                uuid.New(),
		OwnerID:           uuid.New(),
		Title:             "Lake cabin",
		BookingType:       enums.BookingTypeDateRange,
		Enabled:           true,
		PublicationStatus: models.PublicationStatusPublished,
		Attributes:        json.RawMessage(`{"manual_contact_schedule_type":"none"}`),
	}
	require.NoError(t, db.Create(&resource).Error)

	found, err := repo.FindByID(context.Background(), resource.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BookingTypeDateRange, found.BookingType)
	assert.True(t, found.IsBookable())
	assert.JSONEq(t, `{"manual_contact_schedule_type":"none"}`, string(found.Attributes))

	_, err = repo.FindByID(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestIsBookable(t *testing.T) {
	assert.False(t, models.Resource{Enabled: false, PublicationStatus: models.PublicationStatusPublished}.IsBookable())
	assert.False(t, models.Resource{Enabled: true, PublicationStatus: "draft"}.IsBookable())
}
