package service

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Operators type durations in whatever shorthand their chat client makes
// easy. All of these parse: "1:30", "90", "2h", "2ч", "45m", "45м",
// "1.5ч", "1ч 30м". Storage and display always use the canonical short
// form ("1 час 30 мин") so the journal and the spreadsheet stay uniform.
var (
	clockRe   = regexp.MustCompile(`^(\d{1,3}):([0-5]\d)$`)
	minutesRe = regexp.MustCompile(`^(\d{1,4})\s*(?:м|мин|минут[аы]?|m|min|mins)\.?$`)
	hoursRe   = regexp.MustCompile(`^(\d{1,3}(?:[.,]\d{1,2})?)\s*(?:ч|час|часа|часов|h|hr|hrs|hour|hours)\.?(?:\s+(\d{1,2})\s*(?:м|мин|m|min)\.?)?$`)
	bareRe    = regexp.MustCompile(`^\d{1,4}$`)
)

// ParseDuration normalizes free-form operator input to the canonical
// short form. Bare numbers are read as minutes.
func ParseDuration(raw string) (string, error) {
	minutes, err := parseDurationMinutes(raw)
	if err != nil {
		return "", err
	}
	return FormatDuration(minutes), nil
}

func parseDurationMinutes(raw string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, ErrEmptyValue
	}

	if m := clockRe.FindStringSubmatch(s); m != nil {
		hours, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		return checkMinutes(hours*60 + mins)
	}

	if bareRe.MatchString(s) {
		mins, _ := strconv.Atoi(s)
		return checkMinutes(mins)
	}

	if m := minutesRe.FindStringSubmatch(s); m != nil {
		mins, _ := strconv.Atoi(m[1])
		return checkMinutes(mins)
	}

	if m := hoursRe.FindStringSubmatch(s); m != nil {
		hours, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, raw)
		}
		total := int(math.Round(hours * 60))
		if m[2] != "" {
			mins, _ := strconv.Atoi(m[2])
			total += mins
		}
		return checkMinutes(total)
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, raw)
}

func checkMinutes(minutes int) (int, error) {
	if minutes <= 0 {
		return 0, fmt.Errorf("%w: duration must be positive", ErrInvalidDuration)
	}
	return minutes, nil
}

// FormatDuration renders minutes as the canonical short form: "45 мин",
// "1 час", "2 часа", "5 часов", "1 час 30 мин".
func FormatDuration(minutes int) string {
	hours := minutes / 60
	mins := minutes % 60

	switch {
	case hours > 0 && mins > 0:
		return fmt.Sprintf("%d %s %d мин", hours, hourWord(hours), mins)
	case hours > 0:
		return fmt.Sprintf("%d %s", hours, hourWord(hours))
	default:
		return fmt.Sprintf("%d мин", mins)
	}
}

func hourWord(hours int) string {
	n := hours % 100
	if n >= 11 && n <= 14 {
		return "часов"
	}
	switch n % 10 {
	case 1:
		return "час"
	case 2, 3, 4:
		return "часа"
	default:
		return "часов"
	}
}
