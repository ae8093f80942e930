package discovery

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTime is returned for time strings that are neither 24-hour
// "HH:MM" nor 12-hour "h:MM AM|PM".
var ErrInvalidTime = errors.New("invalid time")

// TimeOptions are the reservation times offered by the time picker.
var TimeOptions = []string{
	"11:00 AM", "11:30 AM",
	"12:00 PM", "12:30 PM",
	"1:00 PM", "1:30 PM",
	"2:00 PM", "2:30 PM",
	"3:00 PM", "3:30 PM",
	"4:00 PM", "4:30 PM",
	"5:00 PM", "5:30 PM",
	"6:00 PM", "6:30 PM",
	"7:00 PM", "7:30 PM",
	"8:00 PM", "8:30 PM",
	"9:00 PM", "9:30 PM",
	"10:00 PM",
}

// Cities are the locations offered by the location picker.
var Cities = []string{
	"San Francisco", "New York", "Los Angeles", "Chicago", "Seattle",
	"Austin", "Boston", "Denver", "Portland", "Miami",
	"Washington, D.C.", "Philadelphia", "San Diego", "Atlanta", "San Jose",
}

// NormalizeTime converts s to 24-hour "HH:MM". 24-hour input is returned
// zero-padded, so normalizing twice is the same as normalizing once. A
// trailing seconds field is dropped.
func NormalizeTime(s string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(s))

	meridiem := ""
	for _, suffix := range []string{"AM", "PM"} {
		if rest, ok := strings.CutSuffix(t, suffix); ok {
			meridiem = suffix
			t = strings.TrimSpace(rest)
			break
		}
	}

	parts := strings.Split(t, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) > 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 || minute > 59 || minute < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || len(parts[2]) != 2 || sec < 0 || sec > 59 {
			return "", fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
	}

	switch meridiem {
	case "":
		if hour < 0 || hour > 23 {
			return "", fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
	default:
		if hour < 1 || hour > 12 {
			return "", fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		hour %= 12
		if meridiem == "PM" {
			hour += 12
		}
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// DateLayout is the ISO calendar date format the API expects.
const DateLayout = "2006-01-02"

// ParseDate parses an ISO calendar date. The empty string is the zero time.
func ParseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD: %w", s, err)
	}
	return d, nil
}
