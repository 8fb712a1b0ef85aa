package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ecolookapi/models"
	"ecolookapi/services"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

type ItemImageProcessingPayload struct {
	ItemID uint `json:"item_id"`
}

// Whitening parameters tuned for phone photos on light backdrops.
const (
	whitenThreshold = uint8(240)
	whitenBlurSigma = 4.0
)

func NewItemImageProcessingTask(itemID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(ItemImageProcessingPayload{ItemID: itemID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask("process:item_image", payload), nil

}

func NewOrphanLookCleanupTask() (*asynq.Task, error) {
	return asynq.NewTask("cleanup:orphan_looks", nil), nil
}

func NewStyleReminderTask() (*asynq.Task, error) {
	return asynq.NewTask("notify:style_reminder", nil), nil
}

func getItemImage(awsService services.AWSServiceProvider, item models.ClothingItem) ([]byte, error) {
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	fmt.Printf("[Item: %v] Bucket name: %s\n", item.ID, bucketName)
	if item.ImageURL == nil {
		return nil, fmt.Errorf("[Item: %v] Image URL is nil", item.ID)
	}
	fileUrl, err := awsService.GetPresignedR2FileReadURL(context.TODO(), bucketName, *item.ImageURL)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on getting presigned URL for file %s", item.ID, *item.ImageURL))
		return nil, err
	}
	fmt.Printf("Downloading... %s\n", fileUrl)
	fileBytes, err := services.ReadFileFromUrl(fileUrl)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on downloading file %s: %v", item.ID, *item.ImageURL, err))
		return nil, err
	}
	return fileBytes, nil
}

// HandleItemImageProcessingTask whitens the background of a freshly uploaded
// item photo and writes the result back over the original object key.
func HandleItemImageProcessingTask(ctx context.Context, t *asynq.Task, db *gorm.DB, awsService services.AWSServiceProvider, fbApp *firebase.App) error {
	var payload ItemImageProcessingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Item: %v] Start Processing\n", payload.ItemID)

	var item models.ClothingItem
	res := db.First(&item, payload.ItemID)
	if res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on retrieving item for processing %v", payload.ItemID))
		return res.Error
	}
	if item.ImageStatus == "processed" {
		fmt.Printf("[Item: %v] Already processed\n", payload.ItemID)
		return nil
	}

	fileBytes, err := getItemImage(awsService, item)
	if err != nil {
		// the upload may still be in flight, asynq retries cover that window
		fmt.Printf("[Item: %v] Error on getting image: %v\n", payload.ItemID, err)
		return err
	}
	fmt.Printf("[Item: %v] Downloaded file size: %d bytes\n", payload.ItemID, len(fileBytes))

	whitenedBytes, err := services.WhitenBackgroundSmooth(fileBytes, whitenThreshold, whitenBlurSigma)
	if err != nil {
		fmt.Printf("[Item: %v] Error on whitening image: %v\n", payload.ItemID, err)
		sentry.CaptureException(fmt.Errorf("[Item: %v] Error on whitening image: %v", payload.ItemID, err))
		return err
	}

	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	uploadUrl, presignErr := awsService.PresignLink(context.Background(), bucketName, *item.ImageURL)
	if presignErr != nil {
		fmt.Printf("[Item: %v] Unable to create presign link for %s: %v\n", item.ID, item.Name, presignErr)
		sentry.CaptureException(presignErr)
		return presignErr
	}
	respBody, statusCode, err := awsService.UploadToPresignedURL(context.Background(), bucketName, uploadUrl, whitenedBytes)
	fmt.Printf("[Item: %v] R2 Upload file size %v, url %s, response body: %s, status code: %d\n", payload.ItemID, len(whitenedBytes), uploadUrl, respBody, statusCode)
	if err != nil || statusCode != 200 {
		fmt.Printf("[Item: %v] Error on uploading whitened file: %v\n", payload.ItemID, err)
		sentry.CaptureException(err)
		return err
	}

	item.ImageStatus = "processed"
	if err := db.Save(&item).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on saving item %v", payload.ItemID))
		return err
	}
	fmt.Printf("[Item: %v] Processing finished succesfully..\n", payload.ItemID)

	var owner models.UserAccount
	if err := db.First(&owner, item.OwnerID).Error; err == nil && owner.ReceiveNotifications {
		fmt.Printf("[Item: %v] Sending notification to user %v\n", payload.ItemID, item.OwnerID)
		services.SendNotification(fbApp, db, item.OwnerID, "Peça pronta", fmt.Sprintf("Sua peça %s foi processada e está no seu guarda-roupa", item.Name), map[string]string{"item_id": fmt.Sprintf("%d", item.ID), "type": "item_processed"})
	}
	return nil
}

// HandleOrphanLookCleanupTask removes look rows that lost all their item rows,
// usually a half-finished save interrupted before the transaction landed, or
// looks emptied out by item deletions.
func HandleOrphanLookCleanupTask(ctx context.Context, t *asynq.Task, db *gorm.DB) error {
	cutoff := time.Now().Add(-1 * time.Hour)
	result := db.Where(
		"created_at < ? and id not in (select look_id from look_items)", cutoff,
	).Delete(&models.Look{})
	if result.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Cleanup] Error deleting orphan looks: %v", result.Error))
		return result.Error
	}
	fmt.Printf("[Cleanup] Deleted %d orphan looks\n", result.RowsAffected)
	return nil
}

// HandleStyleReminderTask nudges opted-in users who have wardrobe content.
func HandleStyleReminderTask(ctx context.Context, t *asynq.Task, db *gorm.DB, fbApp *firebase.App) error {
	fmt.Printf("[Style Reminder] Processing for all users\n")

	var users []models.UserAccount
	result := db.Where("banned = ? and receive_notifications = ?", false, true).Find(&users)
	if result.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Style Reminder] Error fetching users: %v", result.Error))
		return result.Error
	}
	fmt.Printf("[Style Reminder] Found %d users to send notifications\n", len(users))

	for _, user := range users {
		var itemCount int64
		if err := db.Model(&models.ClothingItem{}).Where("owner_id = ?", user.ID).Count(&itemCount).Error; err != nil {
			fmt.Printf("[Style Reminder] Failed to count items for user %d: %v\n", user.ID, err)
			continue
		}
		if itemCount == 0 {
			continue
		}
		services.SendNotification(fbApp, db, user.ID, "Que tal um look novo?", "Abra seu guarda-roupa e gere looks para a sua próxima ocasião", map[string]string{"type": "style_reminder"})
		fmt.Printf("[Style Reminder] Successfully sent reminder to user %d\n", user.ID)
		time.Sleep(1 * time.Second) // To avoid hitting rate limits
	}
	return nil
}
