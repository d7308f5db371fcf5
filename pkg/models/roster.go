package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used across the API.
const DateLayout = "2006-01-02"

// WorkGroup is a rotating field crew.
type WorkGroup struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" example:"Kelompok 1"`
	Shift     string    `json:"shift,omitempty" example:"pagi"`
	CreatedAt time.Time `json:"created_at"`
}

// Report is one completed field activity performed by a group.
type Report struct {
	ID            string    `json:"id"`
	GroupID       string    `json:"group_id"`
	Date          time.Time `json:"date"`
	StartTime     string    `json:"start_time,omitempty" example:"08:15"`
	EndTime       string    `json:"end_time,omitempty" example:"08:40"`
	Activity      Activity  `json:"activity"`
	DurationHours float64   `json:"duration_hours"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ErrInvalidClock is returned for a time of day that is not HH:MM or HH:MM:SS.
var ErrInvalidClock = errors.New("invalid time of day")

// NormalizeClock returns s as HH:MM:SS. It accepts HH:MM and HH:MM:SS.
func NormalizeClock(s string) (string, error) {
	secs, err := clockSeconds(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60), nil
}

// DurationBetween returns the hours between two times of day, rounded to six
// decimal places. An end before the start is taken to be on the next day.
func DurationBetween(start, end string) (float64, error) {
	from, err := clockSeconds(start)
	if err != nil {
		return 0, err
	}
	to, err := clockSeconds(end)
	if err != nil {
		return 0, err
	}
	if to < from {
		to += 24 * 3600
	}
	hours, _ := decimal.NewFromInt(int64(to - from)).
		DivRound(decimal.NewFromInt(3600), 6).
		Float64()
	return hours, nil
}

func clockSeconds(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	limits := []int{23, 59, 59}
	var secs int
	for i, p := range parts {
		if len(p) == 0 || len(p) > 2 || (i > 0 && len(p) != 2) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > limits[i] {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
		secs = secs*60 + v
	}
	if len(parts) == 2 {
		secs *= 60
	}
	return secs, nil
}
