package policy

import (
	"fmt"
	"slices"
	"time"

	"github.com/fieldcast/fieldcast/pkg/models"
	"github.com/fieldcast/fieldcast/pkg/roles"
)

// Aggregation selects how report observations become engine positions.
type Aggregation int

const (
	// AggregateNone feeds one position per report.
	AggregateNone Aggregation = iota
	// AggregateMonthly feeds the mean duration of each calendar month.
	AggregateMonthly
)

// DefaultLookback covers a full cycle of months even when the latest
// report falls early in its month.
const DefaultLookback = 13

// MonthLayout labels monthly positions.
const MonthLayout = "2006-01"

func (a Aggregation) String() string {
	switch a {
	case AggregateNone:
		return "none"
	case AggregateMonthly:
		return "monthly"
	default:
		return fmt.Sprintf("Aggregation(%d)", int(a))
	}
}

// ParseAggregation converts a configuration string into an Aggregation.
func ParseAggregation(s string) (Aggregation, error) {
	switch s {
	case "", "none", "report":
		return AggregateNone, nil
	case "monthly", "month":
		return AggregateMonthly, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAggregate, s)
}

// Series turns a chronological report history into the raw engine input
// and one label per position.
func (p Policy) Series(obs []roles.Observation) ([]float64, []string) {
	if p.Aggregate == AggregateMonthly {
		return monthlyMeans(obs, p.Lookback)
	}
	raw := make([]float64, len(obs))
	labels := make([]string, len(obs))
	for i, o := range obs {
		raw[i] = o.Hours
		labels[i] = o.Date.Format(models.DateLayout)
	}
	return raw, labels
}

// monthlyMeans averages obs per calendar month, oldest month first.
// Observations before the first of the month lookback months earlier than
// the latest observation are dropped; lookback 0 keeps all of them.
func monthlyMeans(obs []roles.Observation, lookback int) ([]float64, []string) {
	if len(obs) == 0 {
		return nil, nil
	}

	latest := obs[0].Date
	for _, o := range obs[1:] {
		if o.Date.After(latest) {
			latest = o.Date
		}
	}
	var from time.Time
	if lookback > 0 {
		from = time.Date(latest.Year(), latest.Month()-time.Month(lookback), 1, 0, 0, 0, 0, latest.Location())
	}

	type bucket struct {
		sum float64
		n   int
	}
	buckets := make(map[int]*bucket)
	var months []int
	for _, o := range obs {
		if o.Date.Before(from) {
			continue
		}
		key := o.Date.Year()*12 + int(o.Date.Month()) - 1
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			months = append(months, key)
		}
		b.sum += o.Hours
		b.n++
	}
	slices.Sort(months)

	raw := make([]float64, len(months))
	labels := make([]string, len(months))
	for i, key := range months {
		b := buckets[key]
		raw[i] = b.sum / float64(b.n)
		labels[i] = time.Date(key/12, time.Month(key%12+1), 1, 0, 0, 0, 0, time.UTC).Format(MonthLayout)
	}
	return raw, labels
}
