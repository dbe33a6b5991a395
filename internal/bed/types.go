package bed

import (
	"strconv"
	"strings"
	"time"
)

// OutOfServiceLocation is where every out-of-service bed is held.
const OutOfServiceLocation = "14th Floor"

// BedType is the closed set of bed models tracked by the log.
type BedType string

const (
	TypeRegular       BedType = "Regular"
	TypeLowAirLoss    BedType = "Low Air Loss"
	TypeBariLAL       BedType = "Bari LAL"
	TypePosey         BedType = "Posey Bed"
	TypeReclinerChair BedType = "Recliner Chair"
	TypeOther         BedType = "Other (Specify)"
)

// BedTypes lists the bed types in display order.
var BedTypes = []BedType{TypeRegular, TypeLowAirLoss, TypeBariLAL, TypePosey, TypeReclinerChair, TypeOther}

// Valid reports whether t is one of the known bed types.
func (t BedType) Valid() bool {
	for _, known := range BedTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of a bed.
type Status string

const (
	StatusAssigned     Status = "Assigned to Patient"
	StatusAvailable    Status = "Stored - Available"
	StatusOutOfService Status = "Out of Service / Broken"
)

// Statuses lists the statuses in display order.
var Statuses = []Status{StatusAssigned, StatusAvailable, StatusOutOfService}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAssigned, StatusAvailable, StatusOutOfService:
		return true
	}
	return false
}

// BedAreas are the department labels offered by the form. BedArea itself is free text.
var BedAreas = []string{"ICU", "Jewish", "Frazier", "Vendor"}

// Draft holds the user-editable fields of a bed record.
type Draft struct {
	PatientLastName    string  `json:"patientLastName"`
	BedType            BedType `json:"bedType"`
	OtherBedTypeName   string  `json:"otherBedTypeName"`
	BedArea            string  `json:"bedArea"`
	Status             Status  `json:"status"`
	Location           string  `json:"location"`
	IsRental           bool    `json:"isRental"`
	VendorConfirmation string  `json:"vendorConfirmation"`
	AssetNumber        string  `json:"assetNumber"`
	SerialNumber       string  `json:"serialNumber"`
	PurchaseOrder      string  `json:"purchaseOrder"`
	Notes              string  `json:"notes"`
}

// Record is a persisted bed as seen by readers.
type Record struct {
	ID string `json:"id"`
	Draft
	LastEditedBy   string    `json:"lastEditedBy"`
	LastEditedDate time.Time `json:"lastEditedDate"`
	Version        int       `json:"version"`
}

// Field names a bed attribute. Values match the JSON keys.
type Field string

const (
	FieldID                 Field = "id"
	FieldPatientLastName    Field = "patientLastName"
	FieldBedType            Field = "bedType"
	FieldOtherBedTypeName   Field = "otherBedTypeName"
	FieldBedArea            Field = "bedArea"
	FieldStatus             Field = "status"
	FieldLocation           Field = "location"
	FieldIsRental           Field = "isRental"
	FieldVendorConfirmation Field = "vendorConfirmation"
	FieldAssetNumber        Field = "assetNumber"
	FieldSerialNumber       Field = "serialNumber"
	FieldPurchaseOrder      Field = "purchaseOrder"
	FieldNotes              Field = "notes"
	FieldLastEditedBy       Field = "lastEditedBy"
	FieldLastEditedDate     Field = "lastEditedDate"
)

// RecordFields is every attribute a search scans and a sort may key on.
var RecordFields = []Field{
	FieldID, FieldPatientLastName, FieldBedType, FieldOtherBedTypeName, FieldBedArea, FieldStatus,
	FieldLocation, FieldIsRental, FieldVendorConfirmation, FieldAssetNumber, FieldSerialNumber,
	FieldPurchaseOrder, FieldNotes, FieldLastEditedBy, FieldLastEditedDate,
}

// ParseField resolves a JSON field name.
func ParseField(s string) (Field, bool) {
	for _, f := range RecordFields {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// AdminOnly reports whether only an Admin may change f.
func (f Field) AdminOnly() bool {
	return f == FieldAssetNumber || f == FieldSerialNumber || f == FieldPurchaseOrder
}

// isoMillis matches the ISO-8601 form browsers produce for timestamps.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t the way it appears at the JSON boundary.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

// Value returns the string form of field f and whether it is present.
// Empty text counts as absent.
func (r Record) Value(f Field) (string, bool) {
	var v string
	switch f {
	case FieldID:
		v = r.ID
	case FieldPatientLastName:
		v = r.PatientLastName
	case FieldBedType:
		v = string(r.BedType)
	case FieldOtherBedTypeName:
		v = r.OtherBedTypeName
	case FieldBedArea:
		v = r.BedArea
	case FieldStatus:
		v = string(r.Status)
	case FieldLocation:
		v = r.Location
	case FieldIsRental:
		return strconv.FormatBool(r.IsRental), true
	case FieldVendorConfirmation:
		v = r.VendorConfirmation
	case FieldAssetNumber:
		v = r.AssetNumber
	case FieldSerialNumber:
		v = r.SerialNumber
	case FieldPurchaseOrder:
		v = r.PurchaseOrder
	case FieldNotes:
		v = r.Notes
	case FieldLastEditedBy:
		v = r.LastEditedBy
	case FieldLastEditedDate:
		if r.LastEditedDate.IsZero() {
			return "", false
		}
		return FormatTimestamp(r.LastEditedDate), true
	}
	return v, v != ""
}

// Role is the closed set of application roles.
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// ParseRole accepts exactly "User" or "Admin".
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
