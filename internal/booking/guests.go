package booking

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	guestTokenPattern       = regexp.MustCompile(`(\d+)A\+(\d+)C`)
	strictGuestTokenPattern = regexp.MustCompile(`^(\d+)A\+(\d+)C$`)

	errGuestToken = errors.New("guests must look like 2A+1C")
)

var DefaultGuests = GuestComposition{Adults: 2, Children: 0}

// ParseGuests never fails: a token that does not contain "{n}A+{m}C" yields DefaultGuests.
func ParseGuests(token string) GuestComposition {
	g, err := parseGuests(guestTokenPattern, token)
	if err != nil {
		return DefaultGuests
	}

	return g
}

func ParseGuestsStrict(token string) (GuestComposition, error) {
	return parseGuests(strictGuestTokenPattern, token)
}

func parseGuests(re *regexp.Regexp, token string) (GuestComposition, error) {
	m := re.FindStringSubmatch(token)
	if m == nil {
		return GuestComposition{}, fmt.Errorf("parse %q: %w", token, errGuestToken)
	}

	adults, err := strconv.Atoi(m[1])
	if err != nil {
		return GuestComposition{}, fmt.Errorf("parse adults of %q: %w", token, err)
	}

	children, err := strconv.Atoi(m[2])
	if err != nil {
		return GuestComposition{}, fmt.Errorf("parse children of %q: %w", token, err)
	}

	return GuestComposition{Adults: adults, Children: children}, nil
}

func (g GuestComposition) String() string {
	return fmt.Sprintf("%dA+%dC", g.Adults, g.Children)
}

func (g GuestComposition) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *GuestComposition) UnmarshalText(text []byte) error {
	parsed, err := ParseGuestsStrict(string(text))
	if err != nil {
		return err
	}

	*g = parsed

	return nil
}
