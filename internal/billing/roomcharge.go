package billing

import (
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hims-billing-backend/internal/model"
	"hims-billing-backend/internal/parse"
)

const day = 24 * time.Hour

// admissionLayouts are tried in order; layouts without an offset are read in
// the billing timezone.
var admissionLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseAdmissionDate reads an admission timestamp as recorded upstream.
func ParseAdmissionDate(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("admission date is empty")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range admissionLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised admission date %q", raw)
}

// StayDays is the number of started days between admission and asOf,
// never less than one.
func StayDays(admittedAt, asOf time.Time) int {
	days := int(math.Ceil(float64(asOf.Sub(admittedAt)) / float64(day)))
	if days < 1 {
		return 1
	}
	return days
}

// RoomChargeLine derives the room line for an occupied bed. It returns false,
// and logs, when the admission date is missing or unreadable so that the rest
// of the bill can still be shown.
func RoomChargeLine(occ model.Occupancy, asOf time.Time, loc *time.Location) (model.BillLine, bool) {
	admittedAt, err := ParseAdmissionDate(occ.AdmissionDate, loc)
	if err != nil {
		log.Printf("Warning: no room charge for bed %s: %v", occ.BedID, err)
		return model.BillLine{}, false
	}

	days := StayDays(admittedAt, asOf)
	return model.BillLine{
		Name:       roomLineName(occ, days),
		Category:   model.CategoryRoom,
		Quantity:   days,
		UnitPrice:  occ.DailyRate,
		TotalPrice: occ.DailyRate.Mul(decimal.NewFromInt(int64(days))),
	}, true
}

func roomLineName(occ model.Occupancy, days int) string {
	bed := occ.BedID
	if code, err := parse.ParseBedCode(occ.BedID); err == nil {
		bed = code.Label()
	}
	unit := "days"
	if days == 1 {
		unit = "day"
	}
	return fmt.Sprintf("Room charge - Bed %s (%d %s)", bed, days, unit)
}
