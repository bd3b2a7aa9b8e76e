package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hims-billing-backend/internal/model"
	"hims-billing-backend/internal/parse"
)

// Store defines the interface for all database operations.
type Store interface {
	ListCharges(ctx context.Context, patientID int64) ([]model.Charge, error)
	CreateCharge(ctx context.Context, c *model.Charge) error

	ListOccupancies(ctx context.Context) ([]model.Occupancy, error)
	CreateBed(ctx context.Context, occ *model.Occupancy) error
	UpdateOccupancy(ctx context.Context, bedID string, patch OccupancyPatch) (model.Occupancy, error)
	ApplyBedFeed(ctx context.Context, now time.Time, items []BedFeedItem) error

	ListBills(ctx context.Context, filter BillFilter) ([]model.Bill, error)
	GetBill(ctx context.Context, id string) (model.Bill, error)
	CreateBill(ctx context.Context, b *model.Bill) error
	UpdateBill(ctx context.Context, b *model.Bill) error

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// --- Charges ---

// ListCharges returns every charge recorded for a patient, oldest first.
func (s *gormStore) ListCharges(ctx context.Context, patientID int64) ([]model.Charge, error) {
	var charges []model.Charge
	if err := s.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("recorded_at, id").
		Find(&charges).Error; err != nil {
		return nil, fmt.Errorf("failed to list charges for patient %d: %w", patientID, err)
	}
	return charges, nil
}

// CreateCharge validates and inserts a charge. The total is always derived
// from quantity and unit price.
func (s *gormStore) CreateCharge(ctx context.Context, c *model.Charge) error {
	switch {
	case c.PatientID <= 0:
		return fmt.Errorf("%w: patient id is required", ErrInvalidCharge)
	case strings.TrimSpace(c.ItemName) == "":
		return fmt.Errorf("%w: item name is required", ErrInvalidCharge)
	case !c.Category.Valid():
		return fmt.Errorf("%w: unknown category %q", ErrInvalidCharge, c.Category)
	case c.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidCharge)
	case c.UnitPrice.IsNegative():
		return fmt.Errorf("%w: unit price must not be negative", ErrInvalidCharge)
	}

	c.ID = 0
	c.TotalPrice = c.UnitPrice.Mul(decimal.NewFromInt(int64(c.Quantity)))
	if c.RecordedAt.IsZero() {
		c.RecordedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create charge for patient %d: %w", c.PatientID, err)
	}
	return nil
}

// --- Beds ---

// ListOccupancies returns every bed with its current binding.
func (s *gormStore) ListOccupancies(ctx context.Context) ([]model.Occupancy, error) {
	var occs []model.Occupancy
	if err := s.db.WithContext(ctx).Order("bed_id").Find(&occs).Error; err != nil {
		return nil, fmt.Errorf("failed to list occupancies: %w", err)
	}
	return occs, nil
}

// CreateBed registers a new, unoccupied bed.
func (s *gormStore) CreateBed(ctx context.Context, occ *model.Occupancy) error {
	if occ.Status == "" {
		occ.Status = model.BedAvailable
	}
	if !occ.Status.Valid() || occ.Status == model.BedOccupied {
		return fmt.Errorf("%w: new beds cannot start as %q", ErrInvalidTransition, occ.Status)
	}
	occ.PatientID = nil
	occ.PatientName = ""
	occ.AdmissionDate = ""

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fillBedCode(occ, occ.Ward)
		wards, err := ensureWards(tx, []string{occ.Ward})
		if err != nil {
			return err
		}
		if w, ok := wards[occ.Ward]; ok {
			occ.WardID = &w.ID
		}
		if err := tx.Create(occ).Error; err != nil {
			return fmt.Errorf("failed to create bed %s: %w", occ.BedID, err)
		}
		return nil
	})
}

// UpdateOccupancy applies a partial update to a bed. Leaving the Occupied
// state archives the stay and clears the patient linkage.
func (s *gormStore) UpdateOccupancy(ctx context.Context, bedID string, patch OccupancyPatch) (model.Occupancy, error) {
	var updated model.Occupancy
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.Occupancy
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, "bed_id = ?", bedID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("bed %s: %w", bedID, ErrNotFound)
			}
			return fmt.Errorf("failed to load bed %s: %w", bedID, err)
		}

		next, err := applyPatch(current, patch)
		if err != nil {
			return err
		}
		if next.IsOccupied() && !(current.IsOccupied() && sameStay(current, next)) {
			if err := ensureNotAdmitted(tx, *next.PatientID, bedID); err != nil {
				return err
			}
		}

		if current.IsOccupied() && !sameStay(current, next) {
			if err := archiveStay(tx, current, next.Status, time.Now().UTC()); err != nil {
				return err
			}
		}
		if err := tx.Save(&next).Error; err != nil {
			return fmt.Errorf("failed to update bed %s: %w", bedID, err)
		}
		updated = next
		return nil
	})
	return updated, err
}

func applyPatch(current model.Occupancy, patch OccupancyPatch) (model.Occupancy, error) {
	next := current
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return next, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, *patch.Status)
		}
		next.Status = *patch.Status
	}
	if patch.DailyRate != nil {
		if patch.DailyRate.IsNegative() {
			return next, fmt.Errorf("%w: daily rate must not be negative", ErrInvalidTransition)
		}
		next.DailyRate = *patch.DailyRate
	}

	if next.Status != model.BedOccupied {
		if patch.PatientID != nil {
			return next, fmt.Errorf("%w: cannot assign a patient to a %s bed", ErrInvalidTransition, next.Status)
		}
		next.PatientID = nil
		next.PatientName = ""
		next.AdmissionDate = ""
		return next, nil
	}

	if patch.PatientID != nil {
		if current.IsOccupied() && *current.PatientID != *patch.PatientID {
			return next, fmt.Errorf("%w: bed %s is already occupied by patient %d", ErrInvalidTransition, current.BedID, *current.PatientID)
		}
		id := *patch.PatientID
		next.PatientID = &id
	}
	if patch.PatientName != nil {
		next.PatientName = *patch.PatientName
	}
	if patch.AdmissionDate != nil {
		next.AdmissionDate = *patch.AdmissionDate
	}
	if next.PatientID == nil {
		return next, fmt.Errorf("%w: an occupied bed needs a patient", ErrInvalidTransition)
	}
	return next, nil
}

// ensureNotAdmitted fails when the patient already occupies a bed other than
// bedID.
func ensureNotAdmitted(tx *gorm.DB, patientID int64, bedID string) error {
	var other model.Occupancy
	err := tx.Select("bed_id").
		Where("status = ? AND patient_id = ? AND bed_id <> ?", model.BedOccupied, patientID, bedID).
		Take(&other).Error
	switch {
	case err == nil:
		return fmt.Errorf("%w: patient %d already occupies bed %s", ErrInvalidTransition, patientID, other.BedID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return fmt.Errorf("failed to check admissions of patient %d: %w", patientID, err)
	}
}

// sameStay reports whether b continues the stay of the occupied bed a.
func sameStay(a, b model.Occupancy) bool {
	return b.IsOccupied() && *a.PatientID == *b.PatientID
}

// archiveStay creates a historical record of a finished bed stay.
func archiveStay(tx *gorm.DB, occ model.Occupancy, endStatus model.BedStatus, endedAt time.Time) error {
	history := model.BedStayHistory{
		BedID:         occ.BedID,
		PatientID:     *occ.PatientID,
		PatientName:   occ.PatientName,
		AdmissionDate: occ.AdmissionDate,
		DailyRate:     occ.DailyRate,
		EndStatus:     endStatus,
		EndedAt:       endedAt,
	}
	if err := tx.Create(&history).Error; err != nil {
		return fmt.Errorf("failed to archive stay on bed %s: %w", occ.BedID, err)
	}
	return nil
}

// ApplyBedFeed reconciles bed bindings with a snapshot of the upstream bed
// board. Beds missing from the snapshot are left untouched.
func (s *gormStore) ApplyBedFeed(ctx context.Context, now time.Time, items []BedFeedItem) error {
	current, err := s.fetchAllOccupancies(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch occupancies: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wardNames := make([]string, 0, len(items))
		for _, item := range items {
			wardNames = append(wardNames, wardFor(item))
		}
		wards, err := ensureWards(tx, wardNames)
		if err != nil {
			return err
		}

		prepared := make([]model.Occupancy, 0, len(items))
		for _, item := range items {
			if next, ok := prepareOccupancy(item, current[item.BedCode]); ok {
				prepared = append(prepared, next)
			}
		}

		for _, next := range dropDoubleAdmissions(current, prepared) {
			if w, ok := wards[next.Ward]; ok {
				next.WardID = &w.ID
			}

			if old, exists := current[next.BedID]; exists && old.IsOccupied() && !sameStay(old, next) {
				if err := archiveStay(tx, old, next.Status, now); err != nil {
					return err
				}
			}
			if err := tx.Save(&next).Error; err != nil {
				return fmt.Errorf("failed to save bed %s: %w", next.BedID, err)
			}
		}
		return nil
	})
}

// dropDoubleAdmissions removes feed bindings that would leave a patient
// occupying more than one bed once applied over current. Skipped beds keep
// their current state, which can expose new conflicts, so it repeats until
// nothing changes.
func dropDoubleAdmissions(current map[string]model.Occupancy, next []model.Occupancy) []model.Occupancy {
	skipped := make(map[string]bool)
	for {
		final := make(map[string]model.Occupancy, len(current)+len(next))
		for id, o := range current {
			final[id] = o
		}
		for _, o := range next {
			if !skipped[o.BedID] {
				final[o.BedID] = o
			}
		}

		beds := make(map[int64]int)
		for _, o := range final {
			if o.IsOccupied() {
				beds[*o.PatientID]++
			}
		}

		changed := false
		for _, o := range next {
			if skipped[o.BedID] || !o.IsOccupied() || beds[*o.PatientID] < 2 {
				continue
			}
			if old, ok := current[o.BedID]; ok && old.IsOccupied() && sameStay(old, o) {
				continue
			}
			log.Printf("Warning: patient %d is already in another bed, skipping bed %s", *o.PatientID, o.BedID)
			skipped[o.BedID] = true
			changed = true
		}
		if !changed {
			break
		}
	}

	kept := make([]model.Occupancy, 0, len(next))
	for _, o := range next {
		if !skipped[o.BedID] {
			kept = append(kept, o)
		}
	}
	return kept
}

func (s *gormStore) fetchAllOccupancies(ctx context.Context) (map[string]model.Occupancy, error) {
	var occs []model.Occupancy
	if err := s.db.WithContext(ctx).Find(&occs).Error; err != nil {
		return nil, err
	}
	m := make(map[string]model.Occupancy, len(occs))
	for _, o := range occs {
		m[o.BedID] = o
	}
	return m, nil
}

func prepareOccupancy(item BedFeedItem, existing model.Occupancy) (model.Occupancy, bool) {
	status := model.BedStatus(item.Status)
	if !status.Valid() {
		log.Printf("Warning: bed %s has unknown status %q, skipping", item.BedCode, item.Status)
		return model.Occupancy{}, false
	}
	if status == model.BedOccupied && item.PatientID == nil {
		log.Printf("Warning: bed %s is occupied without a patient id, skipping", item.BedCode)
		return model.Occupancy{}, false
	}

	next := model.Occupancy{
		BedID:     item.BedCode,
		Status:    status,
		DailyRate: existing.DailyRate,
	}
	if item.DailyRate != nil {
		next.DailyRate = *item.DailyRate
	}
	if status == model.BedOccupied {
		next.PatientID = item.PatientID
		next.PatientName = item.PatientName
		if item.AdmissionDate != nil {
			next.AdmissionDate = *item.AdmissionDate
		}
	}
	fillBedCode(&next, item.Ward)
	return next, true
}

func wardFor(item BedFeedItem) string {
	if item.Ward != "" {
		return item.Ward
	}
	if code, err := parse.ParseBedCode(item.BedCode); err == nil {
		return code.Ward
	}
	return ""
}

// fillBedCode derives ward, room and bed number from the bed id.
func fillBedCode(occ *model.Occupancy, ward string) {
	code, err := parse.ParseBedCode(occ.BedID)
	if err != nil {
		log.Printf("Warning: could not parse bed code %q: %v", occ.BedID, err)
		occ.BedNumber = occ.BedID
		occ.Ward = ward
		return
	}
	occ.Room = code.Room
	occ.BedNumber = code.Bed
	occ.Ward = code.Ward
	if ward != "" {
		occ.Ward = ward
	}
}

func ensureWards(tx *gorm.DB, names []string) (map[string]model.Ward, error) {
	unique := make(map[string]model.Ward)
	for _, n := range names {
		if n == "" {
			continue
		}
		unique[n] = model.Ward{Name: n}
	}
	if len(unique) == 0 {
		return make(map[string]model.Ward), nil
	}

	wardList := make([]model.Ward, 0, len(unique))
	for _, w := range unique {
		wardList = append(wardList, w)
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(&wardList).Error; err != nil {
		return nil, fmt.Errorf("batch upsert wards failed: %w", err)
	}

	var all []model.Ward
	if err := tx.Find(&all).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve wards after upsert: %w", err)
	}
	wardMap := make(map[string]model.Ward, len(all))
	for _, w := range all {
		wardMap[w.Name] = w
	}
	return wardMap, nil
}

// --- Bills ---

func withBillDetail(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("paid_at, id") })
}

// ListBills returns bills with lines and payments, newest first.
func (s *gormStore) ListBills(ctx context.Context, filter BillFilter) ([]model.Bill, error) {
	q := withBillDetail(s.db.WithContext(ctx))
	if filter.PatientID != 0 {
		q = q.Where("patient_id = ?", filter.PatientID)
	}
	if filter.Type != "" {
		q = q.Where("bill_type = ?", filter.Type)
	}

	var bills []model.Bill
	if err := q.Order("created_at DESC").Find(&bills).Error; err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	return bills, nil
}

// GetBill loads one bill with its lines and payments.
func (s *gormStore) GetBill(ctx context.Context, id string) (model.Bill, error) {
	var bill model.Bill
	if err := withBillDetail(s.db.WithContext(ctx)).First(&bill, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return bill, fmt.Errorf("bill %s: %w", id, ErrNotFound)
		}
		return bill, fmt.Errorf("failed to load bill %s: %w", id, err)
	}
	return bill, nil
}

// CreateBill inserts a bill with its lines and payments under a fresh id.
func (s *gormStore) CreateBill(ctx context.Context, b *model.Bill) error {
	b.ID = uuid.NewString()
	for i := range b.Lines {
		b.Lines[i].ID = 0
		b.Lines[i].BillID = b.ID
		b.Lines[i].Position = i
	}
	for i := range b.Payments {
		b.Payments[i].ID = 0
		b.Payments[i].BillID = b.ID
	}
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		return fmt.Errorf("failed to create %s bill for patient %d: %w", b.Type, b.PatientID, err)
	}
	return nil
}

// UpdateBill persists totals and status in place, replaces the lines when
// they are set, and inserts payments that have not been stored yet. Stored
// payments are never modified.
func (s *gormStore) UpdateBill(ctx context.Context, b *model.Bill) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Bill{}).Where("id = ?", b.ID).Updates(map[string]any{
			"total_amount":   b.TotalAmount,
			"amount_due":     b.AmountDue,
			"payment_status": b.PaymentStatus,
			"updated_at":     time.Now().UTC(),
		})
		if res.Error != nil {
			return fmt.Errorf("failed to update bill %s: %w", b.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("bill %s: %w", b.ID, ErrNotFound)
		}

		if b.Lines != nil {
			if err := tx.Where("bill_id = ?", b.ID).Delete(&model.BillLine{}).Error; err != nil {
				return fmt.Errorf("failed to clear lines of bill %s: %w", b.ID, err)
			}
			for i := range b.Lines {
				b.Lines[i].ID = 0
				b.Lines[i].BillID = b.ID
				b.Lines[i].Position = i
			}
			if len(b.Lines) > 0 {
				if err := tx.Create(&b.Lines).Error; err != nil {
					return fmt.Errorf("failed to write lines of bill %s: %w", b.ID, err)
				}
			}
		}

		for i := range b.Payments {
			if b.Payments[i].ID != 0 {
				continue
			}
			b.Payments[i].BillID = b.ID
			if err := tx.Create(&b.Payments[i]).Error; err != nil {
				return fmt.Errorf("failed to append payment to bill %s: %w", b.ID, err)
			}
		}
		return nil
	})
}
