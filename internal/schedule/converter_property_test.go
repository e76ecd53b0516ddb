package schedule

import (
	"math/big"
	"testing"
	"time"

	"streamvault-go/internal/models"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// TestRateIsFlooredQuotient verifies ratePerSecond = floor(minor / secondsPerUnit).
func TestRateIsFlooredQuotient(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("rate per second is the floored quotient and never negative", prop.ForAll(
		func(minor int64, unit models.RateUnit) bool {
			amount := decimal.New(minor, -6).String()
			secs, _ := SecondsPerUnit(unit)

			got := RatePerSecond(amount, unit, 6)
			want := new(big.Int).Quo(big.NewInt(minor), new(big.Int).SetUint64(secs))

			return got.Sign() >= 0 && got.Cmp(want) == 0
		},
		gen.Int64Range(0, 1<<52),
		gen.OneConstOf(models.UnitSecond, models.UnitMinute, models.UnitHour, models.UnitDay),
	))

	properties.TestingRun(t)
}

// TestSubmittableRequiresForwardWindow verifies stop > start gates submission.
func TestSubmittableRequiresForwardWindow(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("fixed windows are submittable only when stop is after start", prop.ForAll(
		func(startOffset, endOffset int) bool {
			in := models.ScheduleInput{
				Amount:     "1",
				RateUnit:   models.UnitSecond,
				StartMode:  models.StartSchedule,
				StartLocal: base.Add(time.Duration(startOffset) * time.Minute).Format("2006-01-02T15:04"),
				EndMode:    models.EndFixed,
				EndLocal:   base.Add(time.Duration(endOffset) * time.Minute).Format("2006-01-02T15:04"),
			}
			d := Derive(in, base, time.UTC, 6)
			return d.Submittable() == (endOffset > startOffset)
		},
		gen.IntRange(0, 10000),
		gen.IntRange(0, 10000),
	))

	properties.TestingRun(t)
}
