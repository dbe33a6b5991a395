package bed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validDraft() Draft {
	return Draft{
		BedType:  TypeRegular,
		BedArea:  "ICU",
		Status:   StatusAvailable,
		Location: "Room 4",
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name     string
		mutate   func(d *Draft)
		expected []Field
	}{
		{
			name:     "valid draft has no errors",
			mutate:   func(d *Draft) {},
			expected: nil,
		},
		{
			name: "assigned without patient name",
			mutate: func(d *Draft) {
				d.Status = StatusAssigned
				d.PatientLastName = "   "
			},
			expected: []Field{FieldPatientLastName},
		},
		{
			name: "other type without name",
			mutate: func(d *Draft) {
				d.BedType = TypeOther
				d.OtherBedTypeName = ""
			},
			expected: []Field{FieldOtherBedTypeName},
		},
		{
			name: "rental without confirmation",
			mutate: func(d *Draft) {
				d.IsRental = true
			},
			expected: []Field{FieldVendorConfirmation},
		},
		{
			name: "missing required selects",
			mutate: func(d *Draft) {
				d.BedType = ""
				d.BedArea = ""
				d.Status = ""
			},
			expected: []Field{FieldBedType, FieldBedArea, FieldStatus},
		},
		{
			name: "unknown enum values",
			mutate: func(d *Draft) {
				d.BedType = "Hammock"
				d.Status = "Lost"
			},
			expected: []Field{FieldBedType, FieldStatus},
		},
		{
			name: "errors are not short-circuited",
			mutate: func(d *Draft) {
				d.Status = StatusAssigned
				d.BedType = TypeOther
				d.Location = ""
				d.IsRental = true
			},
			expected: []Field{FieldPatientLastName, FieldOtherBedTypeName, FieldLocation, FieldVendorConfirmation},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := validDraft()
			tc.mutate(&d)

			errs := Validate(d)

			got := make([]Field, 0, len(errs))
			for f := range errs {
				got = append(got, f)
			}
			assert.ElementsMatch(t, tc.expected, got)
		})
	}
}

func TestValidate_OtherTypeScenario(t *testing.T) {
	d := Draft{
		BedType:          TypeOther,
		OtherBedTypeName: "",
		BedArea:          "ICU",
		Status:           StatusAvailable,
		Location:         "Room 4",
		IsRental:         false,
	}

	errs := Validate(d)

	assert.Len(t, errs, 1)
	assert.Contains(t, errs, FieldOtherBedTypeName)
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Fields: FieldErrors{FieldLocation: "x", FieldBedArea: "y"}}
	assert.Equal(t, "invalid bed record: bedArea, location", err.Error())
}

func TestBuildPayload(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("EST", -5*3600))

	t.Run("applies write-path invariants", func(t *testing.T) {
		d := Draft{
			BedType:            TypeRegular,
			OtherBedTypeName:   "stale",
			BedArea:            " ICU ",
			Status:             StatusOutOfService,
			Location:           "Room 9",
			IsRental:           false,
			VendorConfirmation: "CONF-1",
		}

		p := BuildPayload(d, "nurse@example.org", at)

		assert.Equal(t, OutOfServiceLocation, p.Draft().Location)
		assert.Empty(t, p.Draft().VendorConfirmation)
		assert.Empty(t, p.Draft().OtherBedTypeName)
		assert.Equal(t, "ICU", p.Draft().BedArea)
		assert.Equal(t, "nurse@example.org", p.LastEditedBy())
		assert.Equal(t, time.UTC, p.LastEditedDate().Location())
		assert.True(t, at.Equal(p.LastEditedDate()))
	})

	t.Run("keeps rental confirmation", func(t *testing.T) {
		d := validDraft()
		d.IsRental = true
		d.VendorConfirmation = "CONF-2"

		p := BuildPayload(d, "a@example.org", at)

		assert.Equal(t, "CONF-2", p.Draft().VendorConfirmation)
		assert.Equal(t, "Room 4", p.Draft().Location)
	})
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("Admin")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, r)

	_, ok = ParseRole("admin")
	assert.False(t, ok)
	_, ok = ParseRole("")
	assert.False(t, ok)
}

func TestSampleDraftsAreValid(t *testing.T) {
	for _, d := range SampleDrafts() {
		assert.Empty(t, Validate(d), "sample %+v", d)
	}
}
