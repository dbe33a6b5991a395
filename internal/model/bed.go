package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bed is a tracked physical bed asset.
type Bed struct {
	ID                 string    `gorm:"primaryKey;size:36"`
	PatientLastName    string    `gorm:"size:128"`
	BedType            string    `gorm:"size:64;not null"`
	OtherBedTypeName   string    `gorm:"size:128"`
	BedArea            string    `gorm:"size:128;not null"`
	Status             string    `gorm:"size:64;not null;index"`
	Location           string    `gorm:"size:128;not null"`
	IsRental           bool      `gorm:"not null;default:false"`
	VendorConfirmation string    `gorm:"size:128"`
	AssetNumber        string    `gorm:"size:64"`
	SerialNumber       string    `gorm:"size:64"`
	PurchaseOrder      string    `gorm:"size:64"`
	Notes              string    `gorm:"type:text"`
	LastEditedBy       string    `gorm:"size:256;not null"`
	LastEditedDate     time.Time `gorm:"not null;index"`
	Version            int       `gorm:"not null;default:1"`
}

// BeforeCreate assigns the storage identifier.
func (b *Bed) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
