package store

import (
	"errors"
	"strings"

	"bedlog-backend/internal/bed"
	"bedlog-backend/internal/model"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmailExists is returned when an identity with the same email exists.
	ErrEmailExists = errors.New("email already registered")
	// ErrStaleWrite is returned when an update names an outdated version.
	ErrStaleWrite = errors.New("record was modified by another writer")
)

// NormalizeEmail is the canonical form identities are stored and looked up by.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ToRecord converts a row into the domain view.
func ToRecord(m model.Bed) bed.Record {
	return bed.Record{
		ID: m.ID,
		Draft: bed.Draft{
			PatientLastName:    m.PatientLastName,
			BedType:            bed.BedType(m.BedType),
			OtherBedTypeName:   m.OtherBedTypeName,
			BedArea:            m.BedArea,
			Status:             bed.Status(m.Status),
			Location:           m.Location,
			IsRental:           m.IsRental,
			VendorConfirmation: m.VendorConfirmation,
			AssetNumber:        m.AssetNumber,
			SerialNumber:       m.SerialNumber,
			PurchaseOrder:      m.PurchaseOrder,
			Notes:              m.Notes,
		},
		LastEditedBy:   m.LastEditedBy,
		LastEditedDate: m.LastEditedDate.UTC(),
		Version:        m.Version,
	}
}

func fromPayload(id string, p bed.Payload, version int) model.Bed {
	d := p.Draft()
	return model.Bed{
		ID:                 id,
		PatientLastName:    d.PatientLastName,
		BedType:            string(d.BedType),
		OtherBedTypeName:   d.OtherBedTypeName,
		BedArea:            d.BedArea,
		Status:             string(d.Status),
		Location:           d.Location,
		IsRental:           d.IsRental,
		VendorConfirmation: d.VendorConfirmation,
		AssetNumber:        d.AssetNumber,
		SerialNumber:       d.SerialNumber,
		PurchaseOrder:      d.PurchaseOrder,
		Notes:              d.Notes,
		LastEditedBy:       p.LastEditedBy(),
		LastEditedDate:     p.LastEditedDate(),
		Version:            version,
	}
}
