package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ecolookapi/dbhelper"
	"ecolookapi/models"
	"ecolookapi/test"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthGoogle(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.StylistMock{}, nil, nil, test.URLCacheMock{})

	param := models.GoogleAuthSignIn{
		IdToken:  "some-google-id-token",
		Platform: "ios",
	}
	req := test.NewJSONRequest("POST", "/auth/google", param)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.AuthTokensOut
	json.Unmarshal(rec.Body.Bytes(), &resp)

	assert.Equal(t, "fake@example.com", resp.Email, resp)
	assert.Equal(t, true, resp.New, resp)
	assert.Equal(t, "pictureurl", resp.Avatar, resp)
	assert.NotEmpty(t, resp.AccessToken, resp)
	assert.NotEmpty(t, resp.RefreshToken, resp)

	var user models.UserAccount
	db.First(&user, "email = ?", "fake@example.com")

	assert.Equal(t, "fake@example.com", user.Email)
	assert.Equal(t, "123googleid", user.GoogleID)
	assert.Equal(t, "FINISHED_AUTH", user.Status)
	assert.Equal(t, models.PlatformIOS, user.Platform)

	// second sign-in reuses the same account
	req2 := test.NewJSONRequest("POST", "/auth/google", param)
	rec2 := httptest.NewRecorder()

	e.ServeHTTP(rec2, req2)

	assert.Equal(t, http.StatusOK, rec2.Code, rec2.Body.String())
	var resp2 models.AuthTokensOut
	json.Unmarshal(rec2.Body.Bytes(), &resp2)
	assert.Equal(t, false, resp2.New, resp2)
	assert.Equal(t, user.ID, resp2.Id)

	var userCount int64
	db.Model(&models.UserAccount{}).Count(&userCount)
	assert.Equal(t, int64(1), userCount)
}

func TestAuthGoogleInvalidPlatform(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.StylistMock{}, nil, nil, test.URLCacheMock{})

	param := models.GoogleAuthSignIn{
		IdToken:  "some-google-id-token",
		Platform: "blackberry",
	}
	req := test.NewJSONRequest("POST", "/auth/google", param)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
}

func TestAuthGoogleBannedUser(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.StylistMock{}, nil, nil, test.URLCacheMock{})

	banned := models.UserAccount{
		Name:     "Banned",
		Email:    "fake@example.com",
		GoogleID: "123googleid",
		Status:   "FINISHED_AUTH",
		Banned:   true,
	}
	require.NoError(t, db.Create(&banned).Error)

	param := models.GoogleAuthSignIn{
		IdToken:  "some-google-id-token",
		Platform: "ios",
	}
	req := test.NewJSONRequest("POST", "/auth/google", param)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
}

func TestRefreshToken(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.StylistMock{}, nil, nil, test.URLCacheMock{})

	userDb := test.FakeUserV2(db, "name", "refresh@example.com")
	refreshToken, err := GenerateRefreshToken(fmt.Sprint(userDb.ID))
	if err != nil {
		fmt.Println("Error generating refesh", err)
	}
	param := echo.Map{
		"refresh_token": refreshToken,
	}
	req := test.NewJSONRequest("POST", "/auth/refresh-token", param)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["access_token"])
	assert.NotEmpty(t, resp["refresh_token"])
}

func TestRefreshTokenGarbage(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, test.AWSProviderMock{}, test.StylistMock{}, nil, nil, test.URLCacheMock{})

	param := echo.Map{
		"refresh_token": "not-a-jwt",
	}
	req := test.NewJSONRequest("POST", "/auth/refresh-token", param)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}
