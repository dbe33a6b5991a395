package form

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"bedlog-backend/internal/apperr"
	"bedlog-backend/internal/auth"
	"bedlog-backend/internal/bed"
	"bedlog-backend/internal/store"
)

var (
	// ErrFieldLocked is returned by a setter whose field the actor may not
	// change in the current state.
	ErrFieldLocked = errors.New("field is locked")
	// ErrSubmitInFlight is returned by Submit while another submit runs.
	ErrSubmitInFlight = errors.New("submit already in progress")
)

// Writer persists a built payload.
type Writer interface {
	CreateBed(ctx context.Context, p bed.Payload) (bed.Record, error)
	UpdateBed(ctx context.Context, id string, p bed.Payload, expectedVersion int) (bed.Record, error)
}

// Controller is the edit state of one bed draft. It keeps the draft
// consistent while it is edited and submits at most one write at a time.
type Controller struct {
	actor auth.Session
	w     Writer
	clock func() time.Time

	mu              sync.Mutex
	id              string
	expectedVersion int
	draft           bed.Draft
	errs            bed.FieldErrors
	submitting      bool
	done            bool
	saved           bed.Record
}

// New starts a create draft when initial is nil and an edit draft otherwise.
// A nil clock uses time.Now.
func New(actor auth.Session, initial *bed.Record, w Writer, clock func() time.Time) *Controller {
	if clock == nil {
		clock = time.Now
	}
	c := &Controller{
		actor: actor,
		w:     w,
		clock: clock,
		errs:  bed.FieldErrors{},
	}
	if initial == nil {
		c.draft = bed.Draft{
			BedType: bed.TypeLowAirLoss,
			BedArea: "ICU",
			Status:  bed.StatusAvailable,
		}
		return c
	}
	c.id = initial.ID
	c.draft = initial.Draft
	if c.draft.Status == bed.StatusOutOfService {
		c.draft.Location = bed.OutOfServiceLocation
	}
	return c
}

// ExpectVersion makes the next update fail with FailedPrecondition when the
// stored record is no longer at version v. Zero disables the check.
func (c *Controller) ExpectVersion(v int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expectedVersion = v
}

// Draft returns the current draft.
func (c *Controller) Draft() bed.Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// IsEdit reports whether the controller updates an existing record.
func (c *Controller) IsEdit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id != ""
}

// LocationLocked reports whether location is pinned by the status.
func (c *Controller) LocationLocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Status == bed.StatusOutOfService
}

func (c *Controller) edit(f bed.Field, fn func(d *bed.Draft)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.draft)
	delete(c.errs, f)
}

// SetStatus changes the status. Out of service pins the location.
func (c *Controller) SetStatus(s bed.Status) {
	c.edit(bed.FieldStatus, func(d *bed.Draft) {
		d.Status = s
		if s == bed.StatusOutOfService {
			d.Location = bed.OutOfServiceLocation
		}
	})
}

// SetLocation fails with ErrFieldLocked while the bed is out of service.
func (c *Controller) SetLocation(v string) error {
	if c.LocationLocked() {
		return ErrFieldLocked
	}
	c.edit(bed.FieldLocation, func(d *bed.Draft) { d.Location = v })
	return nil
}

// SetRental toggles the rental flag. Clearing it drops the vendor
// confirmation and any error pending on it.
func (c *Controller) SetRental(rental bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.IsRental = rental
	delete(c.errs, bed.FieldIsRental)
	if !rental {
		c.draft.VendorConfirmation = ""
		delete(c.errs, bed.FieldVendorConfirmation)
	}
}

func (c *Controller) SetVendorConfirmation(v string) {
	c.edit(bed.FieldVendorConfirmation, func(d *bed.Draft) { d.VendorConfirmation = v })
}

func (c *Controller) SetPatientLastName(v string) {
	c.edit(bed.FieldPatientLastName, func(d *bed.Draft) { d.PatientLastName = v })
}

func (c *Controller) SetBedType(t bed.BedType) {
	c.edit(bed.FieldBedType, func(d *bed.Draft) { d.BedType = t })
}

func (c *Controller) SetOtherBedTypeName(v string) {
	c.edit(bed.FieldOtherBedTypeName, func(d *bed.Draft) { d.OtherBedTypeName = v })
}

func (c *Controller) SetBedArea(v string) {
	c.edit(bed.FieldBedArea, func(d *bed.Draft) { d.BedArea = v })
}

func (c *Controller) SetNotes(v string) {
	c.edit(bed.FieldNotes, func(d *bed.Draft) { d.Notes = v })
}

// SetAssetNumber is Admin only.
func (c *Controller) SetAssetNumber(v string) error {
	return c.setAdminOnly(bed.FieldAssetNumber, func(d *bed.Draft) { d.AssetNumber = v })
}

// SetSerialNumber is Admin only.
func (c *Controller) SetSerialNumber(v string) error {
	return c.setAdminOnly(bed.FieldSerialNumber, func(d *bed.Draft) { d.SerialNumber = v })
}

// SetPurchaseOrder is Admin only.
func (c *Controller) SetPurchaseOrder(v string) error {
	return c.setAdminOnly(bed.FieldPurchaseOrder, func(d *bed.Draft) { d.PurchaseOrder = v })
}

func (c *Controller) setAdminOnly(f bed.Field, fn func(d *bed.Draft)) error {
	if !c.actor.CanEditAdminFields() {
		return ErrFieldLocked
	}
	c.edit(f, fn)
	return nil
}

// Set changes a field by name. System-set fields cannot be set.
func (c *Controller) Set(f bed.Field, value string) error {
	switch f {
	case bed.FieldStatus:
		c.SetStatus(bed.Status(value))
	case bed.FieldLocation:
		return c.SetLocation(value)
	case bed.FieldIsRental:
		rental, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid isRental value %q: %w", value, err)
		}
		c.SetRental(rental)
	case bed.FieldVendorConfirmation:
		c.SetVendorConfirmation(value)
	case bed.FieldPatientLastName:
		c.SetPatientLastName(value)
	case bed.FieldBedType:
		c.SetBedType(bed.BedType(value))
	case bed.FieldOtherBedTypeName:
		c.SetOtherBedTypeName(value)
	case bed.FieldBedArea:
		c.SetBedArea(value)
	case bed.FieldNotes:
		c.SetNotes(value)
	case bed.FieldAssetNumber:
		return c.SetAssetNumber(value)
	case bed.FieldSerialNumber:
		return c.SetSerialNumber(value)
	case bed.FieldPurchaseOrder:
		return c.SetPurchaseOrder(value)
	default:
		return fmt.Errorf("%w: %s is system-set", ErrFieldLocked, f)
	}
	return nil
}

// Apply replays a complete incoming draft through the setters. Fields equal
// to the current draft are skipped, so a non-admin may resubmit unchanged
// admin-only values. A location sent for an out-of-service bed is ignored.
func (c *Controller) Apply(in bed.Draft) error {
	cur := c.Draft()

	admin := []struct {
		field bed.Field
		in    string
		cur   string
		set   func(string) error
	}{
		{bed.FieldAssetNumber, in.AssetNumber, cur.AssetNumber, c.SetAssetNumber},
		{bed.FieldSerialNumber, in.SerialNumber, cur.SerialNumber, c.SetSerialNumber},
		{bed.FieldPurchaseOrder, in.PurchaseOrder, cur.PurchaseOrder, c.SetPurchaseOrder},
	}
	if !c.actor.CanEditAdminFields() {
		for _, a := range admin {
			if a.in != a.cur {
				return apperr.Wrap(apperr.PermissionDenied,
					fmt.Sprintf("Only an Admin can change %s.", a.field), ErrFieldLocked)
			}
		}
	}

	if in.Status != cur.Status {
		c.SetStatus(in.Status)
	}
	if in.IsRental != cur.IsRental {
		c.SetRental(in.IsRental)
	}

	cur = c.Draft()
	if in.Location != cur.Location && !c.LocationLocked() {
		_ = c.SetLocation(in.Location)
	}
	if in.PatientLastName != cur.PatientLastName {
		c.SetPatientLastName(in.PatientLastName)
	}
	if in.BedType != cur.BedType {
		c.SetBedType(in.BedType)
	}
	if in.OtherBedTypeName != cur.OtherBedTypeName {
		c.SetOtherBedTypeName(in.OtherBedTypeName)
	}
	if in.BedArea != cur.BedArea {
		c.SetBedArea(in.BedArea)
	}
	if in.IsRental && in.VendorConfirmation != cur.VendorConfirmation {
		c.SetVendorConfirmation(in.VendorConfirmation)
	}
	if in.Notes != cur.Notes {
		c.SetNotes(in.Notes)
	}
	for _, a := range admin {
		if a.in == a.cur {
			continue
		}
		if err := a.set(a.in); err != nil {
			return err
		}
	}
	return nil
}

// Errors returns the field errors of the last failed submit that have not
// been cleared by an edit since.
func (c *Controller) Errors() bed.FieldErrors {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(bed.FieldErrors, len(c.errs))
	for f, msg := range c.errs {
		out[f] = msg
	}
	return out
}

// Submitting reports whether a write is in flight.
func (c *Controller) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// Done reports whether a submit has succeeded.
func (c *Controller) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Saved returns the record stored by the last successful submit.
func (c *Controller) Saved() bed.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saved
}

// Submit validates the draft and writes it. Validation problems are
// returned as *bed.ValidationError and kept for Errors; a failed write
// leaves the draft untouched so it can be resubmitted.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmitInFlight
	}
	if errs := bed.Validate(c.draft); len(errs) > 0 {
		c.errs = errs
		out := make(bed.FieldErrors, len(errs))
		for f, msg := range errs {
			out[f] = msg
		}
		c.mu.Unlock()
		return &bed.ValidationError{Fields: out}
	}
	c.errs = bed.FieldErrors{}
	c.submitting = true
	id, version, draft := c.id, c.expectedVersion, c.draft
	c.mu.Unlock()

	payload := bed.BuildPayload(draft, c.actor.Email, c.clock())

	var (
		rec bed.Record
		err error
	)
	if id == "" {
		rec, err = c.w.CreateBed(ctx, payload)
	} else {
		rec, err = c.w.UpdateBed(ctx, id, payload, version)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		return classify(err)
	}
	c.done = true
	c.saved = rec
	c.id = rec.ID
	if c.expectedVersion > 0 {
		c.expectedVersion = rec.Version
	}
	return nil
}

func classify(err error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, store.ErrStaleWrite):
		return apperr.Wrap(apperr.FailedPrecondition, "This bed was changed by someone else. Reload and try again.", err)
	case errors.Is(err, store.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, "Bed not found.", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.Unavailable, "The save was interrupted. Please try again.", err)
	}
	return apperr.Wrap(apperr.Unavailable, "Could not save the bed. Please try again.", err)
}
