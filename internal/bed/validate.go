package bed

import (
	"sort"
	"strings"
)

// FieldErrors maps a field to the message shown next to it.
type FieldErrors map[Field]string

// ValidationError carries every field-level problem found in a draft.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		keys = append(keys, string(f))
	}
	sort.Strings(keys)
	return "invalid bed record: " + strings.Join(keys, ", ")
}

// Validate checks d against the status, type and rental rules. All
// applicable errors are returned together; an empty result means the draft
// can be submitted.
func Validate(d Draft) FieldErrors {
	errs := FieldErrors{}

	if d.Status == StatusAssigned && blank(d.PatientLastName) {
		errs[FieldPatientLastName] = "Patient Last Name is required when bed is assigned."
	}
	if d.BedType == TypeOther && blank(d.OtherBedTypeName) {
		errs[FieldOtherBedTypeName] = "Specify bed type name when 'Other' is selected."
	}
	if blank(d.Location) {
		errs[FieldLocation] = "Location is required."
	}

	switch {
	case d.BedType == "":
		errs[FieldBedType] = "Bed Type is required."
	case !d.BedType.Valid():
		errs[FieldBedType] = "Bed Type is not recognized."
	}
	if blank(d.BedArea) {
		errs[FieldBedArea] = "Bed Area is required."
	}
	switch {
	case d.Status == "":
		errs[FieldStatus] = "Status is required."
	case !d.Status.Valid():
		errs[FieldStatus] = "Status is not recognized."
	}

	if d.IsRental && blank(d.VendorConfirmation) {
		errs[FieldVendorConfirmation] = "Vendor Confirmation # is required for rental beds."
	}
	return errs
}

// FieldMessages returns the errors keyed by JSON field name.
func (e *ValidationError) FieldMessages() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for f, msg := range e.Fields {
		out[string(f)] = msg
	}
	return out
}
