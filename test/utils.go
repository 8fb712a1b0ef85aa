package test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"ecolookapi/models"
	"ecolookapi/services"

	"github.com/golang-jwt/jwt/v4"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"
)

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {

	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func GenerateUserToken(userPk string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userPk,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		log.Fatalf("Error when signing user token for %s. Error %s ", userPk, err)
	}
	return t
}

func NewJSONAuthRequest(method string, target string, userPk string, param interface{}) *http.Request {
	log.Println(JsonString(param))
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func NewJSONAuthRequestRaw(method string, target string, userPk string, json string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(json))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func StrPointer(s string) *string {
	return &s
}

func FakeUser(db *gorm.DB) *models.UserAccount {
	user := &models.UserAccount{
		Name:                 "OurName",
		Email:                "email@example.com",
		GoogleID:             "12232",
		Platform:             models.PlatformIOS,
		LastIp:               "123.122.122.122",
		Status:               "FINISHED_AUTH",
		AvatarURL:            "pictureurl",
		ReceiveNotifications: true,
	}
	db.Create(&user)
	tokenDb := models.UserPushToken{
		UserAccountID: user.ID,
		Platform:      "android",
		Token:         "cX-UZ3zwQEiPt-2GJkG2gA:APA91bGqRflaGrJrnynhRwZ442HdgUjVcO7mWMFnx6IwAdJ9RRKopvSP4QU7hbvTmk1XAp8XGvtHZLvo5JmOPTVKBbGqqvhfbZWKlXA9csEjx1hgpNvrWepU",
		Active:        true,
	}
	db.Save(&tokenDb)
	return user
}

func FakeUserV2(db *gorm.DB, userName string, email string) *models.UserAccount {
	if email == "" {
		email = "email@example.com"
	}
	user := &models.UserAccount{
		Name:      userName,
		Email:     email,
		GoogleID:  "12232",
		Platform:  models.PlatformIOS,
		LastIp:    "123.122.122.122",
		Status:    "FINISHED_AUTH",
		AvatarURL: "pictureurl",
	}
	db.Create(&user)
	return user
}

// FakeWardrobe seeds a wearable wardrobe: two superiores, one inferior, one
// sapato and one acessorio.
func FakeWardrobe(db *gorm.DB, ownerID uint) []models.ClothingItem {
	items := []models.ClothingItem{
		{
			Name:        "Camisa Branca",
			Category:    models.CategorySuperior,
			Color:       StrPointer("branco"),
			Style:       StrPointer("casual"),
			OwnerID:     ownerID,
			ImageStatus: "processed",
			ImageURL:    StrPointer(fmt.Sprintf("items/%v/camisa.png", ownerID)),
		},
		{
			Name:        "Blusa Preta",
			Category:    models.CategorySuperior,
			Color:       StrPointer("preto"),
			Style:       StrPointer("casual"),
			OwnerID:     ownerID,
			ImageStatus: "processed",
			ImageURL:    StrPointer(fmt.Sprintf("items/%v/blusa.png", ownerID)),
		},
		{
			Name:        "Calça Jeans",
			Category:    models.CategoryInferior,
			Color:       StrPointer("azul"),
			Style:       StrPointer("casual"),
			OwnerID:     ownerID,
			ImageStatus: "processed",
			ImageURL:    StrPointer(fmt.Sprintf("items/%v/calca.png", ownerID)),
		},
		{
			Name:        "Tênis Preto",
			Category:    models.CategorySapato,
			Color:       StrPointer("preto"),
			Style:       StrPointer("esportivo"),
			OwnerID:     ownerID,
			ImageStatus: "processed",
			ImageURL:    StrPointer(fmt.Sprintf("items/%v/tenis.png", ownerID)),
		},
		{
			Name:        "Relógio",
			Category:    models.CategoryAcessorio,
			Color:       StrPointer("prata"),
			OwnerID:     ownerID,
			ImageStatus: "processed",
			ImageURL:    StrPointer(fmt.Sprintf("items/%v/relogio.png", ownerID)),
		},
	}
	for i := range items {
		db.Create(&items[i])
	}
	return items
}

func Contains(items []string, lookFor string) bool {
	for i := 0; i < len(items); i++ {
		if items[i] == lookFor {
			return true
		}
	}
	return false
}

type GoogleServiceMock struct{}

func (gsm GoogleServiceMock) ValidateIdToken(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error) {

	return &idtoken.Payload{Issuer: "Issue", Audience: "AAA", Expires: 119919191919, IssuedAt: 12312321321, Subject: "fake@example.com", Claims: map[string]interface{}{
		"email":   "fake@example.com",
		"picture": "pictureurl",
		"name":    "Fake Name",
		"sub":     "123googleid",
	}}, nil

}

type AWSProviderMock struct {
	MockUrl string
}

func (awsService AWSProviderMock) InitPresignClient(ctx context.Context) error {
	return nil
}

func (awsService AWSProviderMock) PresignLink(ctx context.Context, bucketName string, fileName string) (string, error) {

	return fmt.Sprintf("https://fakebucketurl.com/%s", fileName), nil
}

func (awsService AWSProviderMock) GetPresignedR2FileReadURL(ctx context.Context, bucketName, fileKey string) (string, error) {
	return awsService.MockUrl, nil
}

func (awsService AWSProviderMock) UploadToPresignedURL(ctx context.Context, bucketName, url string, fileContent []byte) (string, int, error) {
	return url, 200, nil
}

type URLCacheMock struct {
	MockUrl string
}

func (cache URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	return cache.MockUrl, nil
}

// StylistMock answers deterministically: the analysis is fixed and proposals
// are built from the inventory it receives, so handlers can be exercised
// without the upstream model.
type StylistMock struct{}

func (sm StylistMock) AnalyzeClothing(ctx context.Context, imageDataURI string) (*services.ClothingAnalysis, error) {
	return &services.ClothingAnalysis{
		Name:             "Camisa Social Azul",
		Type:             "camisa",
		Category:         "superior",
		Color:            "azul",
		Pattern:          "liso",
		Material:         "algodão",
		Style:            "formal",
		DescriptionShort: "Camisa social azul de algodão",
		DescriptionLong:  "Camisa social azul, ideal para trabalho e eventos formais",
	}, nil
}

func (sm StylistMock) ProposeLooks(ctx context.Context, occasion string, items []models.ClothingItem) ([]services.LookProposal, error) {
	if len(items) == 0 {
		return nil, services.ErrEmptyInventory
	}
	byCategory := map[models.Category][]models.ClothingItem{}
	for _, item := range items {
		byCategory[item.Category] = append(byCategory[item.Category], item)
	}
	tops := byCategory[models.CategorySuperior]
	bottoms := byCategory[models.CategoryInferior]
	shoes := byCategory[models.CategorySapato]
	if len(tops) == 0 || len(bottoms) == 0 || len(shoes) == 0 {
		return []services.LookProposal{}, nil
	}

	proposals := make([]services.LookProposal, 0, 3)
	for i := 0; i < 3; i++ {
		proposal := services.LookProposal{
			Items: []services.ItemRef{
				services.ItemRef(tops[i%len(tops)].ID),
				services.ItemRef(bottoms[i%len(bottoms)].ID),
				services.ItemRef(shoes[i%len(shoes)].ID),
			},
			Description: fmt.Sprintf("Look %v para %s", i+1, occasion),
		}
		if accessories := byCategory[models.CategoryAcessorio]; len(accessories) > 0 && i == 0 {
			proposal.Items = append(proposal.Items, services.ItemRef(accessories[0].ID))
		}
		proposals = append(proposals, proposal)
	}
	return proposals, nil
}

// FailingStylistMock always returns the configured error.
type FailingStylistMock struct {
	Err error
}

func (sm FailingStylistMock) AnalyzeClothing(ctx context.Context, imageDataURI string) (*services.ClothingAnalysis, error) {
	return nil, sm.Err
}

func (sm FailingStylistMock) ProposeLooks(ctx context.Context, occasion string, items []models.ClothingItem) ([]services.LookProposal, error) {
	return nil, sm.Err
}
