package booking

import (
	"strings"
	"time"
)

type StayInput struct {
	ListingID string `json:"listingId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Guests    string `json:"guests"`
	Type      string `json:"type"`
	Purpose   string `json:"purpose"`
}

func (in *StayInput) Build() (StayRequest, error) {
	ve := newValidationError()

	if strings.TrimSpace(in.ListingID) == "" {
		ve.addError("listingId", "provide listingId")
	}

	start, ok := parseDate(in.StartDate)
	if !ok {
		ve.addError("startDate", "provide startDate as YYYY-MM-DD or RFC3339")
	}

	end, ok := parseDate(in.EndDate)
	if !ok {
		ve.addError("endDate", "provide endDate as YYYY-MM-DD or RFC3339")
	}

	guests, err := ParseGuestsStrict(in.Guests)
	if err != nil {
		ve.addError("guests", "guests must look like 2A+1C")
	}

	roomType, ok := parseRoomType(in.Type)
	if !ok {
		ve.addError("type", "type must be AC or NonAC")
	}

	purpose, ok := ParsePurpose(in.Purpose)
	if !ok {
		ve.addError("purpose", "purpose must be Personal or Campus_Recruitment")
	}

	if ve.fieldsCount() > 0 {
		return StayRequest{}, ve
	}

	stay := StayRequest{
		ListingID: strings.TrimSpace(in.ListingID),
		StartDate: start,
		EndDate:   end,
		Guests:    guests,
		RoomType:  roomType,
		Purpose:   purpose,
	}

	if err := stay.validate(); err != nil {
		return StayRequest{}, err
	}

	return stay, nil
}

// BuildRange validates only the listing and the dates, for availability checks that carry no guests.
func (in *StayInput) BuildRange() (string, DateRange, error) {
	ve := newValidationError()

	listingID := strings.TrimSpace(in.ListingID)
	if listingID == "" {
		ve.addError("listingId", "provide listingId")
	}

	start, okStart := parseDate(in.StartDate)
	if !okStart {
		ve.addError("startDate", "provide startDate as YYYY-MM-DD or RFC3339")
	}

	end, okEnd := parseDate(in.EndDate)
	if !okEnd {
		ve.addError("endDate", "provide endDate as YYYY-MM-DD or RFC3339")
	}

	if okStart && okEnd && !end.After(start) {
		ve.addError("endDate", "endDate must be after startDate")
	}

	if ve.fieldsCount() > 0 {
		return "", DateRange{}, ve
	}

	return listingID, DateRange{Start: start, End: end}, nil
}

// WithDefaults fills guests, type and purpose for a request that carries only a listing and dates:
// the default guests, a Personal stay, and an AC room only when the listing offers nothing else.
func (in StayInput) WithDefaults(offered RoomType) StayInput {
	if in.HasStayDetails() {
		return in
	}

	in.Guests = ParseGuests(in.Guests).String()
	in.Purpose = string(PurposePersonal)
	in.Type = string(RoomTypeNonAC)

	if offered == RoomTypeAC {
		in.Type = string(RoomTypeAC)
	}

	return in
}

func (in *StayInput) HasStayDetails() bool {
	return in.Guests != "" || in.Type != "" || in.Purpose != ""
}

func (s *StayRequest) validate() error {
	ve := newValidationError()

	if s.ListingID == "" {
		ve.addError("listingId", "provide listingId")
	}

	if s.StartDate.IsZero() {
		ve.addError("startDate", "provide startDate")
	}

	if s.EndDate.IsZero() {
		ve.addError("endDate", "provide endDate")
	}

	if !s.EndDate.After(s.StartDate) {
		ve.addError("endDate", "endDate must be after startDate")
	}

	if s.Guests.Adults < 1 {
		ve.addError("guests", "at least one adult is required")
	}

	if s.Guests.Children < 0 {
		ve.addError("guests", "children must not be negative")
	}

	if s.RoomType != RoomTypeAC && s.RoomType != RoomTypeNonAC {
		ve.addError("type", "type must be AC or NonAC")
	}

	if s.Purpose != PurposePersonal && s.Purpose != PurposeCampusRecruitment {
		ve.addError("purpose", "purpose must be Personal or Campus_Recruitment")
	}

	if ve.fieldsCount() > 0 {
		return ve
	}

	return nil
}

func parseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)

	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}

	return time.Time{}, false
}

func parseRoomType(v string) (RoomType, bool) {
	switch RoomType(v) {
	case RoomTypeAC, RoomTypeNonAC:
		return RoomType(v), true
	default:
		return "", false
	}
}

func ParsePurpose(v string) (Purpose, bool) {
	switch v {
	case string(PurposePersonal):
		return PurposePersonal, true
	case string(PurposeCampusRecruitment), "CampusRecruitment":
		return PurposeCampusRecruitment, true
	default:
		return "", false
	}
}
