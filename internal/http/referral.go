package http

import (
	"crypto/rand"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/anonsocial/anon/internal/models"
)

const (
	referralCodeLength   = 8
	referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	referralMaxUses      = 5
)

type referralStatsOut struct {
	ReferralCode        *string `json:"referral_code"`
	TotalReferrals      int     `json:"total_referrals"`
	SuccessfulReferrals int     `json:"successful_referrals"`
	RemainingReferrals  int     `json:"remaining_referrals"`
}

type referralValidationOut struct {
	IsValid          bool    `json:"is_valid"`
	Code             *string `json:"code,omitempty"`
	ReferrerUsername *string `json:"referrer_username,omitempty"`
	RemainingUses    *int    `json:"remaining_uses,omitempty"`
}

func newReferralCode() (string, error) {
	b := make([]byte, referralCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = referralCodeAlphabet[int(b[i])%len(referralCodeAlphabet)]
	}
	return string(b), nil
}

// ensureReferralCode returns the user's active code, creating one if needed.
func (e *Env) ensureReferralCode(userID uint) (*models.ReferralCode, error) {
	var code models.ReferralCode
	err := e.DB.Where("user_id = ? AND is_active = ?", userID, true).First(&code).Error
	if err == nil {
		return &code, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	raw, err := newReferralCode()
	if err != nil {
		return nil, err
	}
	code = models.ReferralCode{
		UserID:  userID,
		Code:    raw,
		MaxUses: referralMaxUses,
	}
	if err := e.DB.Create(&code).Error; err != nil {
		return nil, err
	}
	return &code, nil
}

func (e *Env) referralStats(userID uint) (referralStatsOut, error) {
	out := referralStatsOut{RemainingReferrals: referralMaxUses}

	var code models.ReferralCode
	err := e.DB.Where("user_id = ? AND is_active = ?", userID, true).First(&code).Error
	if err == nil {
		out.ReferralCode = &code.Code
		remaining := code.MaxUses - code.CurrentUses
		if remaining < 0 {
			remaining = 0
		}
		out.RemainingReferrals = remaining
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return out, err
	}

	var total, successful int64
	if err := e.DB.Model(&models.Referral{}).Where("referrer_id = ?", userID).Count(&total).Error; err != nil {
		return out, err
	}
	if err := e.DB.Model(&models.Referral{}).
		Where("referrer_id = ? AND status = ?", userID, models.ReferralCompleted).
		Count(&successful).Error; err != nil {
		return out, err
	}
	out.TotalReferrals = int(total)
	out.SuccessfulReferrals = int(successful)
	return out, nil
}

// ReferralMe handles GET /referral/me.
func (e *Env) ReferralMe(c *gin.Context) {
	stats, err := e.referralStats(currentUser(c).ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch referral stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ReferralGenerate handles POST /referral/generate. Generating twice returns
// the existing code's stats.
func (e *Env) ReferralGenerate(c *gin.Context) {
	user := currentUser(c)
	if _, err := e.ensureReferralCode(user.ID); err != nil {
		fail(c, http.StatusInternalServerError, "Failed to generate referral code")
		return
	}
	stats, err := e.referralStats(user.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch referral stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// lookupReferral resolves a code to its row and owner when it is still
// usable.
func (e *Env) lookupReferral(code string) (*models.ReferralCode, *models.User, bool) {
	var rc models.ReferralCode
	err := e.DB.Where("code = ? AND is_active = ?", code, true).First(&rc).Error
	if err != nil {
		return nil, nil, false
	}
	if rc.CurrentUses >= rc.MaxUses {
		return nil, nil, false
	}
	var owner models.User
	if err := e.DB.First(&owner, rc.UserID).Error; err != nil || owner.Username == nil {
		return nil, nil, false
	}
	return &rc, &owner, true
}

// ReferralValidate handles GET /referral/validate/:code. An unknown or
// exhausted code is a valid response, not an error.
func (e *Env) ReferralValidate(c *gin.Context) {
	code := c.Param("code")

	rc, owner, ok := e.lookupReferral(code)
	if !ok {
		c.JSON(http.StatusOK, referralValidationOut{IsValid: false, Code: &code})
		return
	}

	remaining := rc.MaxUses - rc.CurrentUses
	c.JSON(http.StatusOK, referralValidationOut{
		IsValid:          true,
		Code:             &code,
		ReferrerUsername: owner.Username,
		RemainingUses:    &remaining,
	})
}

// completeReferral records a successful signup through a code.
func (e *Env) completeReferral(code string, referredUserID uint) error {
	rc, owner, ok := e.lookupReferral(code)
	if !ok {
		return errors.New("invalid or exhausted referral code")
	}

	return e.DB.Transaction(func(tx *gorm.DB) error {
		ref := models.Referral{
			ReferrerID:     owner.ID,
			ReferredUserID: &referredUserID,
			ReferralCodeID: rc.ID,
			Status:         models.ReferralCompleted,
		}
		if err := tx.Create(&ref).Error; err != nil {
			return err
		}
		return tx.Model(rc).Update("current_uses", rc.CurrentUses+1).Error
	})
}
