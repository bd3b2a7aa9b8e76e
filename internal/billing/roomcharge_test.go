package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hims-billing-backend/internal/model"
)

func occupied(bedID string, patientID int64, admission string, rate int64) model.Occupancy {
	return model.Occupancy{
		BedID:         bedID,
		Status:        model.BedOccupied,
		PatientID:     &patientID,
		PatientName:   "Patient " + bedID,
		AdmissionDate: admission,
		DailyRate:     decimal.NewFromInt(rate),
	}
}

func TestStayDays(t *testing.T) {
	admitted := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

	testCases := []struct {
		name string
		asOf time.Time
		want int
	}{
		{name: "same instant", asOf: admitted, want: 1},
		{name: "one minute later", asOf: admitted.Add(time.Minute), want: 1},
		{name: "exactly one day", asOf: admitted.Add(24 * time.Hour), want: 1},
		{name: "one day and a second", asOf: admitted.Add(24*time.Hour + time.Second), want: 2},
		{name: "two and a half days", asOf: admitted.Add(60 * time.Hour), want: 3},
		{name: "clock behind admission", asOf: admitted.Add(-time.Hour), want: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StayDays(admitted, tc.asOf))
		})
	}
}

func TestRoomChargeLine_AdmittedJustBeforeMidnight(t *testing.T) {
	occ := occupied("ICU-2-07", 1, "2026-10-15 23:59", 500)
	asOf := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	line, ok := RoomChargeLine(occ, asOf, time.UTC)
	require.True(t, ok)

	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, model.CategoryRoom, line.Category)
	assert.True(t, decimal.NewFromInt(500).Equal(line.TotalPrice))
}

func TestRoomChargeLine_Totals(t *testing.T) {
	occ := occupied("ICU-2-07", 1, "2026-10-13", 1200)
	asOf := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

	line, ok := RoomChargeLine(occ, asOf, time.UTC)
	require.True(t, ok)

	assert.Equal(t, 3, line.Quantity)
	assert.True(t, decimal.NewFromInt(1200).Equal(line.UnitPrice))
	assert.True(t, decimal.NewFromInt(3600).Equal(line.TotalPrice))
	assert.Equal(t, "Room charge - Bed ICU 2-07 (3 days)", line.Name)
}

func TestRoomChargeLine_UnparsedBedCodeKeepsRawID(t *testing.T) {
	occ := occupied("Bed 5", 1, "2026-10-15T08:00:00Z", 300)

	line, ok := RoomChargeLine(occ, time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC), time.UTC)
	require.True(t, ok)
	assert.Equal(t, "Room charge - Bed Bed 5 (1 day)", line.Name)
}

func TestRoomChargeLine_Timezone(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 2026-10-15 23:00 IST is 17:30 UTC; at 18:00 UTC half an hour has passed.
	occ := occupied("GW-1-01", 1, "2026-10-15 23:00:00", 100)
	asOf := time.Date(2026, 10, 15, 18, 0, 0, 0, time.UTC)

	line, ok := RoomChargeLine(occ, asOf, kolkata)
	require.True(t, ok)
	assert.Equal(t, 1, line.Quantity)

	// An explicit offset wins over the configured zone.
	occ.AdmissionDate = "2026-10-13T18:00:00Z"
	line, ok = RoomChargeLine(occ, asOf, kolkata)
	require.True(t, ok)
	assert.Equal(t, 2, line.Quantity)
}

func TestRoomChargeLine_BadAdmissionDate(t *testing.T) {
	for _, raw := range []string{"", "   ", "yesterday", "15/10/2026", "2026-13-40"} {
		t.Run(raw, func(t *testing.T) {
			occ := occupied("GW-1-01", 1, raw, 100)
			line, ok := RoomChargeLine(occ, time.Now(), time.UTC)
			assert.False(t, ok)
			assert.Equal(t, model.BillLine{}, line)
		})
	}
}
