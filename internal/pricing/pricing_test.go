package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avstrong/roomstay/internal/booking"
)

func testListing() *booking.Listing {
	return &booking.Listing{
		ID:                  "room-1",
		Type:                booking.RoomTypeBoth,
		SingleOccupancyRate: 1000,
		DoubleOccupancyRate: 1500,
	}
}

func TestComputeCost_Scenarios(t *testing.T) {
	e := New(DefaultRates())
	listing := testListing()

	tests := []struct {
		name     string
		nights   int
		guests   booking.GuestComposition
		roomType booking.RoomType
		purpose  booking.Purpose
		want     int64
	}{
		{
			name:     "double occupancy non ac",
			nights:   3,
			guests:   booking.GuestComposition{Adults: 2},
			roomType: booking.RoomTypeNonAC,
			purpose:  booking.PurposePersonal,
			want:     4500,
		},
		{
			name:     "single occupancy ac",
			nights:   2,
			guests:   booking.GuestComposition{Adults: 1},
			roomType: booking.RoomTypeAC,
			purpose:  booking.PurposePersonal,
			want:     2800,
		},
		{
			name:     "double occupancy ac ignores children",
			nights:   2,
			guests:   booking.GuestComposition{Adults: 2, Children: 2},
			roomType: booking.RoomTypeAC,
			purpose:  booking.PurposePersonal,
			want:     (1500 + 500) * 2,
		},
		{
			name:     "campus recruitment is flat",
			nights:   4,
			guests:   booking.GuestComposition{Adults: 2, Children: 1},
			roomType: booking.RoomTypeAC,
			purpose:  booking.PurposeCampusRecruitment,
			want:     500 * 4,
		},
		{
			name:     "zero nights",
			nights:   0,
			guests:   booking.GuestComposition{Adults: 1},
			roomType: booking.RoomTypeAC,
			purpose:  booking.PurposePersonal,
			want:     0,
		},
		{
			name:     "negative nights",
			nights:   -2,
			guests:   booking.GuestComposition{Adults: 2},
			roomType: booking.RoomTypeNonAC,
			purpose:  booking.PurposeCampusRecruitment,
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.ComputeCost(tt.nights, tt.guests, tt.roomType, tt.purpose, listing)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeCost_SingleACFormula(t *testing.T) {
	e := New(DefaultRates())
	listing := testListing()

	for nights := 1; nights <= 30; nights++ {
		got := e.ComputeCost(nights, booking.GuestComposition{Adults: 1, Children: nights % 3},
			booking.RoomTypeAC, booking.PurposePersonal, listing)
		assert.Equal(t, (listing.SingleOccupancyRate+400)*int64(nights), got)
	}
}

func TestComputeCost_CampusRecruitmentIgnoresOccupancyAndRoom(t *testing.T) {
	e := New(DefaultRates())
	listing := testListing()

	for nights := 1; nights <= 10; nights++ {
		for adults := 1; adults <= 3; adults++ {
			for _, rt := range []booking.RoomType{booking.RoomTypeAC, booking.RoomTypeNonAC} {
				got := e.ComputeCost(nights, booking.GuestComposition{Adults: adults, Children: 1},
					rt, booking.PurposeCampusRecruitment, listing)
				assert.Equal(t, int64(500*nights), got)
			}
		}
	}
}

func TestComputeCost_Idempotent(t *testing.T) {
	e := New(DefaultRates())
	listing := testListing()
	guests := booking.GuestComposition{Adults: 2, Children: 1}

	first := e.ComputeCost(5, guests, booking.RoomTypeAC, booking.PurposePersonal, listing)
	second := e.ComputeCost(5, guests, booking.RoomTypeAC, booking.PurposePersonal, listing)

	assert.Equal(t, first, second)
}

func TestComputeCost_ConfiguredRates(t *testing.T) {
	e := New(Rates{FlatInstitutional: 700, ACSurchargeSingle: 100, ACSurchargeDouble: 200})
	listing := testListing()

	assert.Equal(t, int64(1400), e.ComputeCost(2, booking.GuestComposition{Adults: 2},
		booking.RoomTypeNonAC, booking.PurposeCampusRecruitment, listing))
	assert.Equal(t, int64(1100), e.ComputeCost(1, booking.GuestComposition{Adults: 1},
		booking.RoomTypeAC, booking.PurposePersonal, listing))
	assert.Equal(t, int64(1700), e.ComputeCost(1, booking.GuestComposition{Adults: 3},
		booking.RoomTypeAC, booking.PurposePersonal, listing))
}
