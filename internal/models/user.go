package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Channel names recognized for inbound users.
const (
	ChannelTelegram = "Telegram"
)

type User struct {
	ID            string    `gorm:"type:varchar(512);primaryKey" json:"id"`
	FirstName     string    `gorm:"type:varchar(128)" json:"first_name"`
	LastName      string    `gorm:"type:varchar(128)" json:"last_name"`
	ChatID        string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"chat_id"`
	Channel       string    `gorm:"type:varchar(64)" json:"channel"`
	PrivacyPolicy bool      `gorm:"default:false" json:"privacy_policy"`
	Age           int       `json:"age"`
	Gender        string    `gorm:"type:varchar(128)" json:"gender"`
	Email         string    `gorm:"type:varchar(128)" json:"email"`
	Username      string    `gorm:"type:varchar(256);default:''" json:"username"`
	IsDeleted     bool      `gorm:"default:false" json:"-"`
	IsVerified    bool      `gorm:"default:false" json:"is_verified"`
	IsFirstLogin  bool      `gorm:"default:true" json:"is_first_login"`
	LoginCount    int       `gorm:"default:0" json:"login_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
