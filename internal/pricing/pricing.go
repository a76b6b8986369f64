package pricing

import "github.com/avstrong/roomstay/internal/booking"

// Rates are per night, in whole currency units.
type Rates struct {
	FlatInstitutional int64
	ACSurchargeSingle int64
	ACSurchargeDouble int64
}

func DefaultRates() Rates {
	return Rates{
		FlatInstitutional: 500, //nolint:gomnd
		ACSurchargeSingle: 400, //nolint:gomnd
		ACSurchargeDouble: 500, //nolint:gomnd
	}
}

type Engine struct {
	rates Rates
}

func New(rates Rates) *Engine {
	return &Engine{rates: rates}
}

// ComputeCost returns 0 for nights <= 0; callers treat that as an invalid stay.
// Campus recruitment stays pay the flat rate whatever the occupancy or room type.
func (e *Engine) ComputeCost(
	nights int,
	guests booking.GuestComposition,
	roomType booking.RoomType,
	purpose booking.Purpose,
	listing *booking.Listing,
) int64 {
	if nights <= 0 {
		return 0
	}

	var base, extra int64

	if purpose == booking.PurposeCampusRecruitment {
		base = e.rates.FlatInstitutional
	} else {
		single := guests.Adults == 1

		base = listing.DoubleOccupancyRate
		if single {
			base = listing.SingleOccupancyRate
		}

		if roomType == booking.RoomTypeAC {
			extra = e.rates.ACSurchargeDouble
			if single {
				extra = e.rates.ACSurchargeSingle
			}
		}
	}

	return (base + extra) * int64(nights)
}
