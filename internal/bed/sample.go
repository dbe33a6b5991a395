package bed

// SampleDrafts are the example rows an admin can insert into an empty log.
func SampleDrafts() []Draft {
	return []Draft{
		{
			PatientLastName: "Smith",
			BedType:         TypeLowAirLoss,
			BedArea:         "ICU",
			Status:          StatusAssigned,
			Location:        "ICU-3A",
			AssetNumber:     "HR-10234",
			Notes:           "Post-op monitoring",
		},
		{
			BedType:            TypeBariLAL,
			BedArea:            "Jewish",
			Status:             StatusAvailable,
			Location:           "Storage Room B",
			IsRental:           true,
			VendorConfirmation: "CONF-8891",
			Notes:              "Ready for dispatch",
		},
		{
			BedType:      TypeReclinerChair,
			BedArea:      "Frazier",
			Status:       StatusOutOfService,
			Location:     OutOfServiceLocation,
			SerialNumber: "SN-7782",
			Notes:        "Wheel lock issue",
		},
		{
			PatientLastName:    "Lee",
			BedType:            TypeOther,
			OtherBedTypeName:   "Cardiac Bed",
			BedArea:            "Vendor",
			Status:             StatusAssigned,
			Location:           "4 West - 412",
			IsRental:           true,
			VendorConfirmation: "CONF-9120",
			PurchaseOrder:      "PO-55213",
			Notes:              "Vendor delivery expected tomorrow",
		},
	}
}
