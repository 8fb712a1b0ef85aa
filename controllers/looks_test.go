package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ecolookapi/dbhelper"
	"ecolookapi/models"
	"ecolookapi/services"
	"ecolookapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLooksOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	mockUrl := "https://cached.example.com/items/read.png"
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.StylistMock{}, nil, nil, test.URLCacheMock{MockUrl: mockUrl})
	user := test.FakeUser(db)
	test.FakeWardrobe(db, user.ID)

	reqBody := GenerateLooksIn{Occasion: "casual"}
	req := test.NewJSONAuthRequest("POST", "/wardrobe/looks/generate", fmt.Sprint(user.ID), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "Expected status code 200 OK, got %d: %s", rec.Code, rec.Body.String())

	var response GenerateLooksResponse
	err := json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)
	require.Equal(t, "casual", response.Occasion)
	require.Len(t, response.Looks, 3)
	// the first proposal carries the accessory on top of the core trio
	require.Len(t, response.Looks[0].Items, 4)
	for _, look := range response.Looks {
		assert.NotEmpty(t, look.Description)
		assert.GreaterOrEqual(t, len(look.Items), 3)
		for _, item := range look.Items {
			require.NotNil(t, item.Uri)
			assert.Equal(t, mockUrl, *item.Uri)
		}
	}
}

func TestGenerateLooksEmptyWardrobe(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.StylistMock{}, nil, nil, test.URLCacheMock{})
	user := test.FakeUser(db)

	reqBody := GenerateLooksIn{Occasion: "festa"}
	req := test.NewJSONAuthRequest("POST", "/wardrobe/looks/generate", fmt.Sprint(user.ID), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var response map[string]string
	err := json.Unmarshal(rec.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Contains(t, response["error"], "empty")
}

func TestGenerateLooksInvalidOccasion(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.StylistMock{}, nil, nil, test.URLCacheMock{})
	user := test.FakeUser(db)
	test.FakeWardrobe(db, user.ID)

	reqBody := GenerateLooksIn{Occasion: "skydiving"}
	req := test.NewJSONAuthRequest("POST", "/wardrobe/looks/generate", fmt.Sprint(user.ID), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateLooksUnauthorized(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.StylistMock{}, nil, nil, test.URLCacheMock{})

	req := test.NewJSONAuthRequest("POST", "/wardrobe/looks/generate", "", GenerateLooksIn{Occasion: "casual"})
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGenerateLooksRateLimited(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.FailingStylistMock{Err: services.ErrStylistRateLimited}, nil, nil, test.URLCacheMock{})
	user := test.FakeUser(db)
	test.FakeWardrobe(db, user.ID)

	req := test.NewJSONAuthRequest("POST", "/wardrobe/looks/generate", fmt.Sprint(user.ID), GenerateLooksIn{Occasion: "casual"})
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code, rec.Body.String())
}

func TestGenerateLooksQuotaExhausted(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.FailingStylistMock{Err: services.ErrStylistQuotaExhausted}, nil, nil, test.URLCacheMock{})
	user := test.FakeUser(db)
	test.FakeWardrobe(db, user.ID)

	req := test.NewJSONAuthRequest("POST", "/wardrobe/looks/generate", fmt.Sprint(user.ID), GenerateLooksIn{Occasion: "casual"})
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code, rec.Body.String())
}

func TestGenerateLooksMalformedReply(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.FailingStylistMock{Err: services.ErrMalformedStylistReply}, nil, nil, test.URLCacheMock{})
	user := test.FakeUser(db)
	test.FakeWardrobe(db, user.ID)

	req := test.NewJSONAuthRequest("POST", "/wardrobe/looks/generate", fmt.Sprint(user.ID), GenerateLooksIn{Occasion: "casual"})
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())
}

func TestAssembleProposalsSkipsUnknownRefs(t *testing.T) {
	controller := LooksController{AWSService: test.AWSProviderMock{}, URLCache: test.URLCacheMock{MockUrl: "https://cached.example.com/read.png"}}
	items := []models.ClothingItem{
		{JsonModel: models.JsonModel{ID: 1}, Name: "Camisa", Category: models.CategorySuperior},
		{JsonModel: models.JsonModel{ID: 2}, Name: "Calça", Category: models.CategoryInferior},
	}
	proposals := []services.LookProposal{
		{Items: []services.ItemRef{1, 2, 999}, Description: "com referência inventada"},
	}

	assembled := controller.assembleProposals(context.Background(), proposals, items)

	require.Len(t, assembled, 1)
	// the invented id vanishes, the resolvable ones survive
	require.Len(t, assembled[0].Items, 2)
	assert.Equal(t, "Camisa", assembled[0].Items[0].Name)
	assert.Equal(t, "Calça", assembled[0].Items[1].Name)
}

func TestSaveLookOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.StylistMock{}, nil, nil, test.URLCacheMock{MockUrl: "https://cached.example.com/read.png"})
	user := test.FakeUser(db)
	items := test.FakeWardrobe(db, user.ID)

	reqBody := SaveLookIn{
		Occasion: "casual",
		Items:    []uint{items[0].ID, items[2].ID, items[3].ID, items[4].ID},
	}
	req := test.NewJSONAuthRequest("POST", "/wardrobe/looks", fmt.Sprint(user.ID), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, "Expected status code 201 Created, got %d: %s", rec.Code, rec.Body.String())

	var response LookResponse
	err := json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)
	// no name given, the occasion title is used
	require.Equal(t, "Look Casual", response.Name)
	require.Equal(t, "casual", response.Occasion)
	require.Len(t, response.Items, 4)

	var lookCount int64
	db.Model(&models.Look{}).Count(&lookCount)
	require.Equal(t, int64(1), lookCount)
	var lookItemCount int64
	db.Model(&models.LookItem{}).Where("look_id = ?", response.ID).Count(&lookItemCount)
	require.Equal(t, int64(4), lookItemCount)
}

func TestSaveLookCustomName(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.StylistMock{}, nil, nil, test.URLCacheMock{})
	user := test.FakeUser(db)
	items := test.FakeWardrobe(db, user.ID)

	reqBody := SaveLookIn{
		Name:        "Sexta informal",
		Occasion:    "trabalho",
		Description: test.StrPointer("Combinação leve para o escritório"),
		Items:       []uint{items[0].ID, items[2].ID, items[3].ID},
	}
	req := test.NewJSONAuthRequest("POST", "/wardrobe/looks", fmt.Sprint(user.ID), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var response LookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "Sexta informal", response.Name)
	require.NotNil(t, response.Description)
	assert.Equal(t, "Combinação leve para o escritório", *response.Description)
}

func TestSaveLookUnknownItems(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.StylistMock{}, nil, nil, test.URLCacheMock{})
	user := test.FakeUser(db)

	reqBody := SaveLookIn{
		Occasion: "casual",
		Items:    []uint{99999},
	}
	req := test.NewJSONAuthRequest("POST", "/wardrobe/looks", fmt.Sprint(user.ID), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	var lookCount int64
	db.Model(&models.Look{}).Count(&lookCount)
	assert.Equal(t, int64(0), lookCount)
}

func TestSaveLookOtherUsersItems(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.StylistMock{}, nil, nil, test.URLCacheMock{})
	user := test.FakeUser(db)
	other := test.FakeUserV2(db, "Other", "other@example.com")
	otherItems := test.FakeWardrobe(db, other.ID)

	reqBody := SaveLookIn{
		Occasion: "casual",
		Items:    []uint{otherItems[0].ID, otherItems[2].ID},
	}
	req := test.NewJSONAuthRequest("POST", "/wardrobe/looks", fmt.Sprint(user.ID), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestListLooksOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	mockUrl := "https://cached.example.com/read.png"
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.StylistMock{}, nil, nil, test.URLCacheMock{MockUrl: mockUrl})
	user := test.FakeUser(db)
	items := test.FakeWardrobe(db, user.ID)

	look := models.Look{Name: "Look Casual", Occasion: models.OccasionCasual, OwnerID: user.ID}
	require.NoError(t, db.Create(&look).Error)
	for _, item := range []models.ClothingItem{items[0], items[2], items[3]} {
		require.NoError(t, db.Create(&models.LookItem{LookID: look.ID, ClothingItemID: item.ID}).Error)
	}

	req := test.NewJSONAuthRequest("GET", "/wardrobe/looks", fmt.Sprint(user.ID), "")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response struct {
		Looks []LookResponse `json:"looks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Looks, 1)
	assert.Equal(t, look.ID, response.Looks[0].ID)
	assert.Equal(t, "Look Casual", response.Looks[0].Name)
	require.Len(t, response.Looks[0].Items, 3)
	for _, item := range response.Looks[0].Items {
		require.NotNil(t, item.Uri)
		assert.Equal(t, mockUrl, *item.Uri)
	}
}

func TestGetLookNotFoundForOtherUser(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.StylistMock{}, nil, nil, test.URLCacheMock{})
	user := test.FakeUser(db)
	other := test.FakeUserV2(db, "Other", "other@example.com")

	look := models.Look{Name: "Look Festa", Occasion: models.OccasionFesta, OwnerID: other.ID}
	require.NoError(t, db.Create(&look).Error)

	req := test.NewJSONAuthRequest("GET", fmt.Sprintf("/wardrobe/looks/%v", look.ID), fmt.Sprint(user.ID), "")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func TestDeleteLookOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.StylistMock{}, nil, nil, test.URLCacheMock{})
	user := test.FakeUser(db)
	items := test.FakeWardrobe(db, user.ID)

	look := models.Look{Name: "Look Viagem", Occasion: models.OccasionViagem, OwnerID: user.ID}
	require.NoError(t, db.Create(&look).Error)
	require.NoError(t, db.Create(&models.LookItem{LookID: look.ID, ClothingItemID: items[0].ID}).Error)
	require.NoError(t, db.Create(&models.LookItem{LookID: look.ID, ClothingItemID: items[2].ID}).Error)

	req := test.NewJSONAuthRequest("DELETE", fmt.Sprintf("/wardrobe/looks/%v", look.ID), fmt.Sprint(user.ID), "")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var lookCount int64
	db.Model(&models.Look{}).Where("id = ?", look.ID).Count(&lookCount)
	assert.Equal(t, int64(0), lookCount)
	var lookItemCount int64
	db.Model(&models.LookItem{}).Where("look_id = ?", look.ID).Count(&lookItemCount)
	assert.Equal(t, int64(0), lookItemCount)
	// the referenced wardrobe items survive the look removal
	var itemCount int64
	db.Model(&models.ClothingItem{}).Where("owner_id = ?", user.ID).Count(&itemCount)
	assert.Equal(t, int64(5), itemCount)
}

func TestDeleteLookNotFound(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.StylistMock{}, nil, nil, test.URLCacheMock{})
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("DELETE", "/wardrobe/looks/424242", fmt.Sprint(user.ID), "")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}
