package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Identity is a sign-in credential. RoleClaim is only ever written server side
// and travels inside session tokens.
type Identity struct {
	UID          string    `gorm:"primaryKey;size:36"`
	Email        string    `gorm:"uniqueIndex;size:256;not null"`
	PasswordHash string    `gorm:"size:128;not null"`
	RoleClaim    string    `gorm:"size:16"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// BeforeCreate assigns the identity uid.
func (i *Identity) BeforeCreate(tx *gorm.DB) error {
	if i.UID == "" {
		i.UID = uuid.NewString()
	}
	return nil
}

// AppUser is the role record kept for every identity.
type AppUser struct {
	UID       string    `gorm:"primaryKey;size:36"`
	Email     string    `gorm:"size:256;not null"`
	Role      string    `gorm:"size:16;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName keeps the role records in "users".
func (AppUser) TableName() string {
	return "users"
}
