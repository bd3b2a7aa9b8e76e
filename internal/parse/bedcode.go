package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	bedRe  = regexp.MustCompile(`[-#]\s*([0-9]+[A-Za-z]?|[A-Za-z])\s*$`)
	roomRe = regexp.MustCompile(`(?i)[-#\s]?\s*(\d+)\s*$`)
	wsRe   = regexp.MustCompile(`\s+`)
)

// BedCode holds the structured parts of a bed identifier.
type BedCode struct {
	Ward string
	Room int
	Bed  string
}

// Label is the short human form used on bills, e.g. "ICU 2-07".
func (b BedCode) Label() string {
	if b.Room == 0 {
		return fmt.Sprintf("%s %s", b.Ward, b.Bed)
	}
	return fmt.Sprintf("%s %d-%s", b.Ward, b.Room, b.Bed)
}

// ParseBedCode extracts ward, room and bed from codes such as "ICU-2-07",
// "GW 3#12", "PVT-4B" or "W3-12-B".
func ParseBedCode(raw string) (BedCode, error) {
	s := strings.TrimSpace(wsRe.ReplaceAllString(raw, " "))
	if s == "" {
		return BedCode{}, fmt.Errorf("empty bed code")
	}

	// 1) trailing bed designator after the last separator
	loc := bedRe.FindStringSubmatchIndex(s)
	if loc == nil {
		return BedCode{}, fmt.Errorf("unable to parse bed from code: %q", raw)
	}
	bed := strings.ToUpper(s[loc[2]:loc[3]])
	rest := strings.TrimSpace(s[:loc[0]])

	// 2) optional room number at the end of what is left
	room := 0
	ward := rest
	if m := roomRe.FindStringSubmatchIndex(rest); m != nil && m[0] > 0 {
		if n, err := strconv.Atoi(rest[m[2]:m[3]]); err == nil {
			room = n
			ward = strings.TrimSpace(rest[:m[0]])
		}
	}
	ward = strings.Trim(ward, "-# ")

	if ward == "" {
		return BedCode{}, fmt.Errorf("unable to parse ward from code: %q", raw)
	}
	return BedCode{Ward: strings.ToUpper(ward), Room: room, Bed: bed}, nil
}
