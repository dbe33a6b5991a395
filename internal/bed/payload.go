package bed

import (
	"strings"
	"time"
)

// Payload is the write that reaches storage: the validated draft plus the
// system-set audit pair. Build it with BuildPayload only.
type Payload struct {
	draft          Draft
	lastEditedBy   string
	lastEditedDate time.Time
}

// BuildPayload copies the whitelisted draft fields, applies the write-path
// invariants and stamps the acting identity and time.
func BuildPayload(d Draft, editor string, at time.Time) Payload {
	p := Draft{
		PatientLastName:    strings.TrimSpace(d.PatientLastName),
		BedType:            d.BedType,
		OtherBedTypeName:   strings.TrimSpace(d.OtherBedTypeName),
		BedArea:            strings.TrimSpace(d.BedArea),
		Status:             d.Status,
		Location:           strings.TrimSpace(d.Location),
		IsRental:           d.IsRental,
		VendorConfirmation: strings.TrimSpace(d.VendorConfirmation),
		AssetNumber:        strings.TrimSpace(d.AssetNumber),
		SerialNumber:       strings.TrimSpace(d.SerialNumber),
		PurchaseOrder:      strings.TrimSpace(d.PurchaseOrder),
		Notes:              d.Notes,
	}
	if p.Status == StatusOutOfService {
		p.Location = OutOfServiceLocation
	}
	if !p.IsRental {
		p.VendorConfirmation = ""
	}
	if p.BedType != TypeOther {
		p.OtherBedTypeName = ""
	}
	return Payload{draft: p, lastEditedBy: editor, lastEditedDate: at.UTC()}
}

// Draft returns a copy of the payload fields.
func (p Payload) Draft() Draft { return p.draft }

// LastEditedBy is the acting identity.
func (p Payload) LastEditedBy() string { return p.lastEditedBy }

// LastEditedDate is the server time of the write.
func (p Payload) LastEditedDate() time.Time { return p.lastEditedDate }
