package models

import (
	"errors"
	"fmt"
	"strings"
)

// Activity is the closed set of field-service activity types.
type Activity string

const (
	ActivityMeterRepair      Activity = "Perbaikan Meteran"
	ActivityConnectionRepair Activity = "Perbaikan Sambungan Rumah"
	ActivitySubstationCheck  Activity = "Pemeriksaan Gardu"
	ActivityOther            Activity = "Jenis Kegiatan lainnya"
)

// ErrUnknownActivity is returned when input matches no activity or alias.
var ErrUnknownActivity = errors.New("unknown activity")

// activityAliases maps lowercased raw input to its canonical activity.
// Canonical names and their snake_case forms are added in init.
var activityAliases = map[string]Activity{
	"perbaikan_kwh":            ActivityMeterRepair,
	"pemeliharaan_pengkabelan": ActivityConnectionRepair,
	"pengecekan_gardu":         ActivitySubstationCheck,
	"penanganan_gangguan":      ActivityOther,
	"jenis_kegiatan":           ActivityOther,
	"jenis kegiatan":           ActivityOther,
}

func init() {
	for _, a := range Activities() {
		activityAliases[strings.ToLower(string(a))] = a
		activityAliases[a.Slug()] = a
	}
}

// Activities returns the canonical activities in display order.
func Activities() []Activity {
	return []Activity{
		ActivityMeterRepair,
		ActivityConnectionRepair,
		ActivitySubstationCheck,
		ActivityOther,
	}
}

// ParseActivity normalizes a raw activity name or alias. Matching ignores
// case and surrounding whitespace.
func ParseActivity(raw string) (Activity, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if a, ok := activityAliases[key]; ok {
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownActivity, raw)
}

// Slug returns the snake_case form, e.g. "perbaikan_meteran".
func (a Activity) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(a)), " ", "_")
}

// Valid reports whether a is one of the canonical activities.
func (a Activity) Valid() bool {
	for _, c := range Activities() {
		if a == c {
			return true
		}
	}
	return false
}
