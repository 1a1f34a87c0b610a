package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// AgingBucket names a days-past-due range
type AgingBucket string

const (
	AgingCurrent AgingBucket = "current"
	Aging1To30   AgingBucket = "1-30"
	Aging31To60  AgingBucket = "31-60"
	Aging61To90  AgingBucket = "61-90"
	AgingOver90  AgingBucket = "90+"
)

// AgingBuckets lists buckets from youngest to oldest
var AgingBuckets = []AgingBucket{AgingCurrent, Aging1To30, Aging31To60, Aging61To90, AgingOver90}

// BucketFor returns the bucket for a number of days past due
func BucketFor(daysPastDue int) AgingBucket {
	switch {
	case daysPastDue <= 0:
		return AgingCurrent
	case daysPastDue <= 30:
		return Aging1To30
	case daysPastDue <= 60:
		return Aging31To60
	case daysPastDue <= 90:
		return Aging61To90
	default:
		return AgingOver90
	}
}

// AgingReport is the open balance split by age. The buckets always sum to Total.
type AgingReport struct {
	AsOf    time.Time
	Buckets map[AgingBucket]decimal.Decimal
	Counts  map[AgingBucket]int
	Total   decimal.Decimal
}

// BuildAgingReport buckets the remaining amount of every open receivable as of now
func BuildAgingReport(receivables []Receivable, now time.Time) AgingReport {
	report := AgingReport{
		AsOf:    now,
		Buckets: make(map[AgingBucket]decimal.Decimal, len(AgingBuckets)),
		Counts:  make(map[AgingBucket]int, len(AgingBuckets)),
		Total:   decimal.Zero,
	}
	for _, b := range AgingBuckets {
		report.Buckets[b] = decimal.Zero
	}
	for i := range receivables {
		r := &receivables[i]
		if !r.Status.IsOpen() {
			continue
		}
		bucket := BucketFor(r.DaysPastDue(now))
		report.Buckets[bucket] = report.Buckets[bucket].Add(r.RemainingAmount)
		report.Counts[bucket]++
		report.Total = report.Total.Add(r.RemainingAmount)
	}
	return report
}

// BucketSum adds up all buckets
func (a AgingReport) BucketSum() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range a.Buckets {
		sum = sum.Add(v)
	}
	return sum
}
