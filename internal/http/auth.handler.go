package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kerem-kaynak/dashjs/internal/appcontext"
	"github.com/kerem-kaynak/dashjs/internal/entity"
	"github.com/kerem-kaynak/dashjs/internal/http/middleware"
	"github.com/kerem-kaynak/dashjs/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const stateCookie = "oauth_state"

var googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

func Login(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := uuid.NewString()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(stateCookie, state, 600, "/", "", ctx.IsProduction(), true)

		url := ctx.OAuth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
		c.Redirect(http.StatusTemporaryRedirect, url)
	}
}

func Callback(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := c.Cookie(stateCookie)
		if err != nil || state == "" || state != c.Query("state") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid OAuth state"})
			return
		}
		c.SetCookie(stateCookie, "", -1, "/", "", ctx.IsProduction(), true)

		token, err := ctx.OAuth2Config.Exchange(c.Request.Context(), c.Query("code"))
		if err != nil {
			ctx.Logger.Error("Failed to exchange token", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to exchange token"})
			return
		}

		client := ctx.OAuth2Config.Client(c.Request.Context(), token)
		resp, err := client.Get(googleUserInfoURL)
		if err != nil {
			ctx.Logger.Error("Failed to get user info", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user info"})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			ctx.Logger.Error("Failed to get user info", zap.Int("status", resp.StatusCode))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user info"})
			return
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			ctx.Logger.Error("Failed to read user info response body", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read user info response body"})
			return
		}

		profile := struct {
			Sub     string `json:"sub"`
			Email   string `json:"email"`
			Name    string `json:"name"`
			Picture string `json:"picture"`
		}{}

		if err := json.Unmarshal(body, &profile); err != nil || profile.Email == "" {
			ctx.Logger.Error("Failed to unmarshal user info", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unmarshal user info"})
			return
		}

		var user entity.User
		err = ctx.DB.WithContext(c.Request.Context()).Where("email = ?", profile.Email).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = entity.User{
				Email:          profile.Email,
				Name:           profile.Name,
				ProfilePicture: profile.Picture,
				Provider:       "google",
				ProviderID:     profile.Sub,
			}
			if err := ctx.DB.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
				ctx.Logger.Error("Failed to create user", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
				return
			}
		case err != nil:
			ctx.Logger.Error("Failed to find user", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to find user"})
			return
		default:
			updates := map[string]interface{}{
				"name":            profile.Name,
				"profile_picture": profile.Picture,
				"provider":        "google",
				"provider_id":     profile.Sub,
			}
			if err := ctx.DB.WithContext(c.Request.Context()).Model(&user).Updates(updates).Error; err != nil {
				ctx.Logger.Error("Failed to update user details", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user details"})
				return
			}
		}

		tokenString, err := utils.GenerateJWT(ctx.SessionSecret, user.ID.String(), ctx.SessionTTL)
		if err != nil {
			ctx.Logger.Error("Failed to generate JWT token", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate JWT token"})
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.SessionCookie, tokenString, int(ctx.SessionTTL.Seconds()), "/", "", ctx.IsProduction(), true)
		c.Redirect(http.StatusTemporaryRedirect, fmt.Sprintf("%s/%s/datasets", ctx.AppURL, user.ID))
	}
}

func Logout(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetCookie(middleware.SessionCookie, "", -1, "/", "", ctx.IsProduction(), true)
		c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
	}
}

func GetUserInfo(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := utils.GetUserIDFromClaims(c)
		if err != nil {
			ctx.Logger.Error("Failed to get user ID from claims", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		var user entity.User
		if err := ctx.DB.WithContext(c.Request.Context()).First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
				return
			}
			ctx.Logger.Error("Failed to find user", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to find user"})
			return
		}

		c.JSON(http.StatusOK, user)
	}
}
