package tasks

import (
	"context"
	"testing"
	"time"

	"ecolookapi/dbhelper"
	"ecolookapi/models"
	"ecolookapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleOrphanLookCleanup(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)
	items := test.FakeWardrobe(db, user.ID)

	oldOrphan := models.Look{Name: "Old Orphan", Occasion: models.OccasionCasual, OwnerID: user.ID}
	oldOrphan.CreatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, db.Create(&oldOrphan).Error)

	freshOrphan := models.Look{Name: "Fresh Orphan", Occasion: models.OccasionCasual, OwnerID: user.ID}
	require.NoError(t, db.Create(&freshOrphan).Error)

	oldComplete := models.Look{Name: "Old Complete", Occasion: models.OccasionFesta, OwnerID: user.ID}
	oldComplete.CreatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, db.Create(&oldComplete).Error)
	require.NoError(t, db.Create(&models.LookItem{LookID: oldComplete.ID, ClothingItemID: items[0].ID}).Error)

	task, err := NewOrphanLookCleanupTask()
	require.NoError(t, err)
	require.NoError(t, HandleOrphanLookCleanupTask(context.Background(), task, db))

	var count int64
	db.Model(&models.Look{}).Where("id = ?", oldOrphan.ID).Count(&count)
	assert.Equal(t, int64(0), count, "stale orphan must be removed")
	db.Model(&models.Look{}).Where("id = ?", freshOrphan.ID).Count(&count)
	assert.Equal(t, int64(1), count, "fresh look may still be mid-save")
	db.Model(&models.Look{}).Where("id = ?", oldComplete.ID).Count(&count)
	assert.Equal(t, int64(1), count, "looks with items are never touched")
}

func TestHandleItemImageProcessingSkipsProcessed(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)
	items := test.FakeWardrobe(db, user.ID)

	// already processed items are not re-downloaded or re-uploaded
	task, err := NewItemImageProcessingTask(items[0].ID)
	require.NoError(t, err)
	require.NoError(t, HandleItemImageProcessingTask(context.Background(), task, db, test.AWSProviderMock{}, nil))

	var item models.ClothingItem
	require.NoError(t, db.First(&item, items[0].ID).Error)
	assert.Equal(t, "processed", item.ImageStatus)
}
