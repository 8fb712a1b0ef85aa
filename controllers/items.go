package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"ecolookapi/models"
	"ecolookapi/services"
	"ecolookapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type CreateItemIn struct {
	Name             string  `json:"name" validate:"required,max=100"`
	FileName         *string `json:"file_name" validate:"required,max=200"`
	Category         string  `json:"category" validate:"required,oneof=superior inferior sapato acessorio"`
	Type             *string `json:"type" validate:"omitempty,max=100"`
	Color            *string `json:"color" validate:"omitempty,max=100"`
	Pattern          *string `json:"pattern" validate:"omitempty,max=100"`
	Material         *string `json:"material" validate:"omitempty,max=100"`
	Style            *string `json:"style" validate:"omitempty,max=100"`
	DescriptionShort *string `json:"description_short" validate:"omitempty,max=300"`
	DescriptionLong  *string `json:"description_long" validate:"omitempty,max=2000"`
}

type AnalyzeItemIn struct {
	Image string `json:"image" validate:"required"`
}

type ItemResponse struct {
	ID               uint    `json:"id"`
	Name             string  `json:"name"`
	Category         string  `json:"category"`
	Type             *string `json:"type"`
	Color            *string `json:"color"`
	Pattern          *string `json:"pattern"`
	Material         *string `json:"material"`
	Style            *string `json:"style"`
	DescriptionShort *string `json:"description_short"`
	DescriptionLong  *string `json:"description_long"`
	ImageStatus      string  `json:"image_status"`
	Uri              *string `json:"uri,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

type ItemCreatedResponse struct {
	Item          ItemResponse `json:"item"`
	FileUploadUrl string       `json:"file_upload_url"`
}

type ItemsListResponse struct {
	Superiores []ItemResponse `json:"superior"`
	Inferiores []ItemResponse `json:"inferior"`
	Sapatos    []ItemResponse `json:"sapato"`
	Acessorios []ItemResponse `json:"acessorio"`
	TotalItems int            `json:"total_items"`
}

type ItemsController struct {
	AWSService services.AWSServiceProvider
	Stylist    services.StylistProvider
	URLCache   services.URLCacheServiceProvider
}

func (controller *ItemsController) ItemRoutes(g *echo.Group) {
	g.POST("", controller.CreateItem)
	g.GET("", controller.ListItems)
	g.DELETE("/:id", controller.DeleteItem)
	g.POST("/analyze", controller.AnalyzeItem)
}

func (controller *ItemsController) CreateItem(c echo.Context) error {
	var req CreateItemIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	asynqClient, ok := c.Get("__asynqclient").(*asynq.Client)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Service is not available, please try again a bit later"})
	}

	if req.FileName == nil || *req.FileName == "" {
		sentry.CaptureException(fmt.Errorf("Image was not provided when creating item %s, user %v", req.Name, user.ID))
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Sorry, it seems image was not provided, please try again"})
	}

	item := models.ClothingItem{
		Name:             req.Name,
		Category:         models.ScanCategory(req.Category),
		Type:             req.Type,
		Color:            req.Color,
		Pattern:          req.Pattern,
		Material:         req.Material,
		Style:            req.Style,
		DescriptionShort: req.DescriptionShort,
		DescriptionLong:  req.DescriptionLong,
		OwnerID:          user.ID,
		ImageStatus:      "uploaded",
	}
	var bucketName = services.GetEnv("R2_BUCKET_NAME", "")
	safeFileName := fmt.Sprintf("items/%v/%s", user.ID, *req.FileName)

	uploadUrl, presignErr := controller.AWSService.PresignLink(context.Background(), bucketName, safeFileName)
	if presignErr != nil {
		log.Printf("Unable to presign generate for %s!, %s", item.Name, presignErr)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"message": "Error while creating item with attachment",
		})
	}
	item.ImageURL = &safeFileName
	if err := db.Create(&item).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save item, please try again"})
	}

	// without a queue wired the item simply stays in "uploaded" state
	if asynqClient != nil {
		task, err := tasks.NewItemImageProcessingTask(item.ID)
		if err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process item image, please try again"})
		}
		info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("images"))
		if err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process item image, please try again"})
		}
		fmt.Println("[Queue] Process item image task submitted, Item ID: ", item.ID, " Task ID: ", info.ID)
	}

	response := ItemCreatedResponse{
		Item:          itemToResponse(item, nil),
		FileUploadUrl: uploadUrl,
	}
	return c.JSON(http.StatusCreated, response)
}

func itemToResponse(item models.ClothingItem, uri *string) ItemResponse {
	return ItemResponse{
		ID:               item.ID,
		Name:             item.Name,
		Category:         string(item.Category),
		Type:             item.Type,
		Color:            item.Color,
		Pattern:          item.Pattern,
		Material:         item.Material,
		Style:            item.Style,
		DescriptionShort: item.DescriptionShort,
		DescriptionLong:  item.DescriptionLong,
		ImageStatus:      item.ImageStatus,
		Uri:              uri,
		CreatedAt:        item.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:        item.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// populatePresignedItemImages enriches raw item rows with presigned read URLs
// concurrently. Includes a failsafe for when the cache system itself fails.
func (controller *ItemsController) populatePresignedItemImages(ctx context.Context, items []models.ClothingItem) []ItemResponse {
	if len(items) == 0 {
		return []ItemResponse{}
	}

	var wg sync.WaitGroup
	processedResponses := make([]ItemResponse, len(items))
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")

	for i, clothingItem := range items {
		wg.Add(1)
		go func(index int, item models.ClothingItem) {
			defer wg.Done()

			var imageUrl string
			if item.ImageURL != nil && *item.ImageURL != "" {
				objectKey := *item.ImageURL

				url, err := controller.URLCache.GetReadURL(ctx, objectKey)
				if err == nil {
					imageUrl = url
				} else {
					log.Printf("CACHE WARNING: Cache system failed for key '%s': %v. Triggering manual R2 fallback.", objectKey, err)
					sentry.WithScope(func(scope *sentry.Scope) {
						scope.SetTag("failure_type", "cache_system")
						scope.SetExtra("objectKey", objectKey)
						sentry.CaptureException(err)
					})

					fallbackUrl, fallbackErr := controller.AWSService.GetPresignedR2FileReadURL(ctx, bucketName, objectKey)
					if fallbackErr != nil {
						log.Printf("CRITICAL: Manual R2 fallback also failed for key '%s': %v", objectKey, fallbackErr)
						sentry.CaptureException(fallbackErr)
					} else {
						imageUrl = fallbackUrl
					}
				}
			}
			processedResponses[index] = itemToResponse(item, &imageUrl)
		}(i, clothingItem)
	}

	wg.Wait()
	return processedResponses
}

func (controller *ItemsController) ListItems(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var items []models.ClothingItem
	if err := db.Where("owner_id = ?", user.ID).Order("created_at desc").Find(&items).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch items"})
	}
	processedResponses := controller.populatePresignedItemImages(c.Request().Context(), items)

	response := ItemsListResponse{
		Superiores: []ItemResponse{},
		Inferiores: []ItemResponse{},
		Sapatos:    []ItemResponse{},
		Acessorios: []ItemResponse{},
		TotalItems: len(processedResponses),
	}

	for _, resp := range processedResponses {
		switch resp.Category {
		case "superior":
			response.Superiores = append(response.Superiores, resp)
		case "inferior":
			response.Inferiores = append(response.Inferiores, resp)
		case "sapato":
			response.Sapatos = append(response.Sapatos, resp)
		case "acessorio":
			response.Acessorios = append(response.Acessorios, resp)
		}
	}

	return c.JSON(http.StatusOK, response)
}

func (controller *ItemsController) DeleteItem(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var itemId uint
	if err := echo.PathParamsBinder(c).Uint("id", &itemId).BindError(); err != nil {
		return echo.ErrBadRequest
	}

	var item models.ClothingItem
	result := db.Where("id = ? and owner_id = ?", itemId, user.ID).Take(&item)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Item not found"})
	}
	if result.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch item"})
	}

	// saved looks keep working, their rows drop the removed reference
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("clothing_item_id = ?", item.ID).Delete(&models.LookItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&item).Error
	})
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete item"})
	}
	fmt.Println("Deleted item ", item.ID, " of user ", user.ID)
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}

func (controller *ItemsController) AnalyzeItem(c echo.Context) error {
	var req AnalyzeItemIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	analysis, err := controller.Stylist.AnalyzeClothing(c.Request().Context(), req.Image)
	if err != nil {
		fmt.Println("Analyze failed for user ", user.ID, ": ", err)
		switch {
		case errors.Is(err, services.ErrStylistRateLimited):
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many requests, please wait a moment and try again"})
		case errors.Is(err, services.ErrStylistQuotaExhausted):
			return c.JSON(http.StatusPaymentRequired, map[string]string{"error": "AI credits exhausted, please check your plan"})
		case errors.Is(err, services.ErrMalformedStylistReply):
			return c.JSON(http.StatusBadGateway, map[string]string{"error": "Could not understand the AI reply, please try again"})
		default:
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to analyze image, please try again"})
		}
	}
	return c.JSON(http.StatusOK, analysis)
}
