package models

import "time"

// User is an account scoped to the university email domain. Username, Bio
// and AvatarSeed stay NULL until profile setup.
type User struct {
	ID           uint      `gorm:"primarykey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	Username     *string   `gorm:"uniqueIndex"`
	IsWaitListed bool      `gorm:"not null;default:false"`
	Tags         []string  `gorm:"serializer:json"`
	Bio          *string
	AvatarSeed   *string
	CreatedAt    time.Time
}

// Post is a single anonymous post. Deleted posts are hidden, never dropped.
type Post struct {
	ID        uint   `gorm:"primarykey"`
	Content   string `gorm:"not null"`
	AuthorID  uint   `gorm:"not null;index"`
	Deleted   bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}

// Vote is one user's +1 or -1 on a post; at most one per user per post.
type Vote struct {
	ID        uint `gorm:"primarykey"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_user_post"`
	PostID    uint `gorm:"not null;uniqueIndex:idx_user_post;index"`
	Value     int  `gorm:"not null"` // +1 or -1
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReferralCode entitles its holder's invitees to join, up to MaxUses times.
type ReferralCode struct {
	ID          uint   `gorm:"primarykey"`
	UserID      uint   `gorm:"not null;index"`
	Code        string `gorm:"uniqueIndex;size:8;not null"`
	IsActive    bool   `gorm:"not null;default:true"`
	MaxUses     int    `gorm:"not null;default:5"`
	CurrentUses int    `gorm:"not null;default:0"`
	CreatedAt   time.Time
}

// Referral statuses.
const (
	ReferralPending   = "pending"
	ReferralCompleted = "completed"
	ReferralExpired   = "expired"
)

// Referral tracks one use of a referral code.
type Referral struct {
	ID             uint   `gorm:"primarykey"`
	ReferrerID     uint   `gorm:"not null;index"`
	ReferredUserID *uint  `gorm:"index"`
	ReferralCodeID uint   `gorm:"not null;index"`
	Status         string `gorm:"size:20;not null;default:pending"`
	CreatedAt      time.Time
}

// SessionToken is a server-side session backing the auth cookie.
type SessionToken struct {
	Token     string `gorm:"primarykey;size:64"`
	UserID    uint   `gorm:"not null;index"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index"`
}
