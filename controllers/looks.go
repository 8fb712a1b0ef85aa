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

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

type GenerateLooksIn struct {
	Occasion string `json:"occasion" validate:"required,occasion"`
}

type SaveLookIn struct {
	Name        string  `json:"name" validate:"omitempty,max=100"`
	Occasion    string  `json:"occasion" validate:"required,occasion"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Items       []uint  `json:"items" validate:"required,min=1"`
}

type GeneratedLookOut struct {
	Items       []ItemResponse `json:"items"`
	Description string         `json:"description"`
}

type GenerateLooksResponse struct {
	Occasion string             `json:"occasion"`
	Looks    []GeneratedLookOut `json:"looks"`
}

type LookResponse struct {
	ID          uint           `json:"id"`
	Name        string         `json:"name"`
	Occasion    string         `json:"occasion"`
	Description *string        `json:"description"`
	Items       []ItemResponse `json:"items"`
	CreatedAt   string         `json:"created_at"`
}

type LooksController struct {
	Stylist    services.StylistProvider
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
}

func (controller *LooksController) LookRoutes(g *echo.Group) {
	g.POST("/generate", controller.GenerateLooks)
	g.POST("", controller.SaveLook)
	g.GET("", controller.ListLooks)
	g.GET("/:id", controller.GetLook)
	g.DELETE("/:id", controller.DeleteLook)
}

// resolveReadURL goes through the presign cache with a direct R2 fallback so a
// cache outage degrades to slower responses instead of missing images.
func (controller *LooksController) resolveReadURL(ctx context.Context, objectKey string) string {
	url, err := controller.URLCache.GetReadURL(ctx, objectKey)
	if err == nil {
		return url
	}
	log.Printf("CACHE WARNING: Cache system failed for key '%s': %v. Triggering manual R2 fallback.", objectKey, err)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("failure_type", "cache_system")
		scope.SetExtra("objectKey", objectKey)
		sentry.CaptureException(err)
	})
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	fallbackUrl, fallbackErr := controller.AWSService.GetPresignedR2FileReadURL(ctx, bucketName, objectKey)
	if fallbackErr != nil {
		log.Printf("CRITICAL: Manual R2 fallback also failed for key '%s': %v", objectKey, fallbackErr)
		sentry.CaptureException(fallbackErr)
		return ""
	}
	return fallbackUrl
}

// assembleProposals resolves proposal item ids against the loaded wardrobe and
// renders each look concurrently, writing results by index. References that
// do not resolve to a wardrobe row are skipped instead of failing the batch.
func (controller *LooksController) assembleProposals(ctx context.Context, proposals []services.LookProposal, items []models.ClothingItem) []GeneratedLookOut {
	itemByID := make(map[uint]models.ClothingItem, len(items))
	for _, item := range items {
		itemByID[item.ID] = item
	}

	var wg sync.WaitGroup
	assembled := make([]GeneratedLookOut, len(proposals))
	for i, proposal := range proposals {
		wg.Add(1)
		go func(index int, proposal services.LookProposal) {
			defer wg.Done()
			out := GeneratedLookOut{
				Items:       []ItemResponse{},
				Description: proposal.Description,
			}
			for _, ref := range proposal.Items {
				item, ok := itemByID[uint(ref)]
				if !ok {
					fmt.Println("Skipping unknown item reference in proposal: ", ref)
					continue
				}
				var uri string
				if item.ImageURL != nil && *item.ImageURL != "" {
					uri = controller.resolveReadURL(ctx, *item.ImageURL)
				}
				out.Items = append(out.Items, itemToResponse(item, &uri))
			}
			assembled[index] = out
		}(i, proposal)
	}
	wg.Wait()
	return assembled
}

func (controller *LooksController) GenerateLooks(c echo.Context) error {
	var req GenerateLooksIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if !models.ValidateOccasionRaw(req.Occasion) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Please provide proper occasion parameter"})
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

	var items []models.ClothingItem
	if err := db.Where("owner_id = ?", user.ID).Find(&items).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch items"})
	}
	if len(items) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Your wardrobe is empty, add some items first"})
	}

	proposals, err := controller.Stylist.ProposeLooks(c.Request().Context(), req.Occasion, items)
	if err != nil {
		fmt.Println("Look generation failed for user ", user.ID, ": ", err)
		switch {
		case errors.Is(err, services.ErrEmptyInventory):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Your wardrobe is empty, add some items first"})
		case errors.Is(err, services.ErrStylistRateLimited):
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many requests, please wait a moment and try again"})
		case errors.Is(err, services.ErrStylistQuotaExhausted):
			return c.JSON(http.StatusPaymentRequired, map[string]string{"error": "AI credits exhausted, please check your plan"})
		case errors.Is(err, services.ErrMalformedStylistReply):
			return c.JSON(http.StatusBadGateway, map[string]string{"error": "Could not understand the AI reply, please try again"})
		default:
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate looks, please try again"})
		}
	}

	kept := services.NormalizeProposals(proposals, items)
	fmt.Printf("Generated %v proposals for user %v, kept %v after normalization\n", len(proposals), user.ID, len(kept))

	return c.JSON(http.StatusOK, GenerateLooksResponse{
		Occasion: req.Occasion,
		Looks:    controller.assembleProposals(c.Request().Context(), kept, items),
	})
}

func (controller *LooksController) SaveLook(c echo.Context) error {
	var req SaveLookIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if !models.ValidateOccasionRaw(req.Occasion) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Please provide proper occasion parameter"})
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

	// only items the user actually owns end up referenced by the look
	var items []models.ClothingItem
	if err := db.Where("id in ? and owner_id = ?", req.Items, user.ID).Find(&items).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch items"})
	}
	if len(items) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "None of the referenced items exist in your wardrobe"})
	}

	name := req.Name
	if name == "" {
		name = fmt.Sprintf("Look %s", cases.Title(language.BrazilianPortuguese).String(req.Occasion))
	}

	look := models.Look{
		Name:        name,
		Occasion:    models.ScanOccasion(req.Occasion),
		Description: req.Description,
		OwnerID:     user.ID,
	}
	// the look and its rows land together or not at all
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&look).Error; err != nil {
			return err
		}
		for _, item := range items {
			lookItem := models.LookItem{
				LookID:         look.ID,
				ClothingItemID: item.ID,
			}
			if err := tx.Create(&lookItem).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save look, please try again"})
	}
	fmt.Println("Saved look ", look.ID, " with ", len(items), " items for user ", user.ID)

	return c.JSON(http.StatusCreated, controller.lookToResponse(c.Request().Context(), look, items))
}

func (controller *LooksController) lookToResponse(ctx context.Context, look models.Look, items []models.ClothingItem) LookResponse {
	var wg sync.WaitGroup
	itemResponses := make([]ItemResponse, len(items))
	for i, lookItem := range items {
		wg.Add(1)
		go func(index int, item models.ClothingItem) {
			defer wg.Done()
			var uri string
			if item.ImageURL != nil && *item.ImageURL != "" {
				uri = controller.resolveReadURL(ctx, *item.ImageURL)
			}
			itemResponses[index] = itemToResponse(item, &uri)
		}(i, lookItem)
	}
	wg.Wait()
	return LookResponse{
		ID:          look.ID,
		Name:        look.Name,
		Occasion:    string(look.Occasion),
		Description: look.Description,
		Items:       itemResponses,
		CreatedAt:   look.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (controller *LooksController) ListLooks(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var looks []models.Look
	if err := db.Where("owner_id = ?", user.ID).Order("created_at desc").Preload("Items.ClothingItem").Find(&looks).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch looks"})
	}

	response := make([]LookResponse, 0, len(looks))
	for _, look := range looks {
		items := make([]models.ClothingItem, 0, len(look.Items))
		for _, lookItem := range look.Items {
			items = append(items, lookItem.ClothingItem)
		}
		response = append(response, controller.lookToResponse(c.Request().Context(), look, items))
	}
	return c.JSON(http.StatusOK, echo.Map{"looks": response})
}

func (controller *LooksController) GetLook(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var lookId uint
	if err := echo.PathParamsBinder(c).Uint("id", &lookId).BindError(); err != nil {
		return echo.ErrBadRequest
	}

	var look models.Look
	result := db.Where("id = ? and owner_id = ?", lookId, user.ID).Preload("Items.ClothingItem").Take(&look)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Look not found"})
	}
	if result.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch look"})
	}

	items := make([]models.ClothingItem, 0, len(look.Items))
	for _, lookItem := range look.Items {
		items = append(items, lookItem.ClothingItem)
	}
	return c.JSON(http.StatusOK, controller.lookToResponse(c.Request().Context(), look, items))
}

func (controller *LooksController) DeleteLook(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var lookId uint
	if err := echo.PathParamsBinder(c).Uint("id", &lookId).BindError(); err != nil {
		return echo.ErrBadRequest
	}

	var look models.Look
	result := db.Where("id = ? and owner_id = ?", lookId, user.ID).Take(&look)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Look not found"})
	}
	if result.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch look"})
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("look_id = ?", look.ID).Delete(&models.LookItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&look).Error
	})
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete look"})
	}
	fmt.Println("Deleted look ", look.ID, " of user ", user.ID)
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}
