package http

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/anonsocial/anon/internal/models"
)

const (
	sessionCookie = "anon_session"
	sessionTTL    = 7 * 24 * time.Hour
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{4,15}$`)

type DevLoginInput struct {
	Email        string `json:"email" binding:"required,email"`
	ReferralCode string `json:"referral_code"`
}

type SetUsernameInput struct {
	Username   string `json:"username" binding:"required"`
	AvatarSeed string `json:"avatar_seed" binding:"required"`
}

type SetBioInput struct {
	Bio string `json:"bio" binding:"max=140"`
}

type userOut struct {
	ID           uint     `json:"id"`
	Username     *string  `json:"username"`
	IsWaitListed bool     `json:"is_wait_listed"`
	Tags         []string `json:"tags"`
	Bio          *string  `json:"bio"`
	AvatarSeed   *string  `json:"avatar_seed"`
}

func toUserOut(u *models.User) userOut {
	return userOut{
		ID:           u.ID,
		Username:     u.Username,
		IsWaitListed: u.IsWaitListed,
		Tags:         u.Tags,
		Bio:          u.Bio,
		AvatarSeed:   u.AvatarSeed,
	}
}

func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// DevLogin handles POST /auth/dev-login. The real deployment signs users in
// through the OAuth flow; this stand-in takes an email, creates the account
// on first sight and sets the session cookie, which is all the client needs.
func (e *Env) DevLogin(c *gin.Context) {
	var input DevLoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	var user models.User
	err := e.DB.Where("email = ?", input.Email).First(&user).Error
	created := false
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{Email: input.Email}
		if err := e.DB.Create(&user).Error; err != nil {
			fail(c, http.StatusInternalServerError, "Failed to create user")
			return
		}
		created = true
	} else if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to log in")
		return
	}

	if created && input.ReferralCode != "" {
		if err := e.completeReferral(input.ReferralCode, user.ID); err != nil {
			log.Printf("referral completion for %q failed: %v", input.ReferralCode, err)
		}
	}

	token, err := newSessionToken()
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to log in")
		return
	}
	sess := models.SessionToken{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(sessionTTL),
	}
	if err := e.DB.Create(&sess).Error; err != nil {
		fail(c, http.StatusInternalServerError, "Failed to log in")
		return
	}

	c.SetCookie(sessionCookie, token, int(sessionTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, toUserOut(&user))
}

// Logout handles POST /auth/logout: drops the server-side session and
// expires the cookie. Logging out twice is fine.
func (e *Env) Logout(c *gin.Context) {
	if token, err := c.Cookie(sessionCookie); err == nil && token != "" {
		if err := e.DB.Delete(&models.SessionToken{}, "token = ?", token).Error; err != nil {
			log.Printf("Error deleting session: %v", err)
		}
	}
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me handles GET /users/me.
func (e *Env) Me(c *gin.Context) {
	c.JSON(http.StatusOK, toUserOut(currentUser(c)))
}

// SetUsername handles PATCH /users/me/username. A username can be set once;
// setting it also provisions the user's referral code.
func (e *Env) SetUsername(c *gin.Context) {
	user := currentUser(c)

	var input SetUsernameInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if user.Username != nil {
		fail(c, http.StatusBadRequest, "Username has already been set for this account.")
		return
	}
	if !usernamePattern.MatchString(input.Username) {
		fail(c, http.StatusUnprocessableEntity, "Invalid username format.")
		return
	}

	var existing models.User
	err := e.DB.Where("username = ?", input.Username).First(&existing).Error
	if err == nil {
		fail(c, http.StatusConflict, "Username is already taken. Please choose another one.")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, http.StatusInternalServerError, "Failed to set username")
		return
	}

	user.Username = &input.Username
	user.AvatarSeed = &input.AvatarSeed
	if err := e.DB.Save(user).Error; err != nil {
		fail(c, http.StatusInternalServerError, "Failed to set username")
		return
	}

	if _, err := e.ensureReferralCode(user.ID); err != nil {
		log.Printf("Error provisioning referral code for user %d: %v", user.ID, err)
	}

	c.JSON(http.StatusOK, toUserOut(user))
}

// SetBio handles PATCH /users/me/bio.
func (e *Env) SetBio(c *gin.Context) {
	user := currentUser(c)

	var input SetBioInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	user.Bio = &input.Bio
	if err := e.DB.Save(user).Error; err != nil {
		fail(c, http.StatusInternalServerError, "Failed to update bio")
		return
	}
	c.JSON(http.StatusOK, toUserOut(user))
}

// GetUser handles GET /users/user/:username. Public, no session required.
func (e *Env) GetUser(c *gin.Context) {
	var user models.User
	err := e.DB.Where("username = ?", c.Param("username")).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, toUserOut(&user))
}
