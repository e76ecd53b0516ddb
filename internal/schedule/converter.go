package schedule

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"streamvault-go/internal/models"
)

// Layouts accepted for user-entered local times, most specific first.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Derive computes the on-chain schedule for a user input at wall-clock time now.
// It never fails: unparsable fields fall back to now, an unparsable amount
// yields a zero rate, and the result reports through Submittable whether it
// can be sent.
func Derive(in models.ScheduleInput, now time.Time, loc *time.Location, decimals int32) models.DerivedSchedule {
	if loc == nil {
		loc = time.Local
	}
	nowSec := epochSeconds(now)

	start := nowSec
	if in.StartMode == models.StartSchedule {
		start = parseLocalOr(in.StartLocal, loc, nowSec)
	}

	var stop uint64
	if in.EndMode == models.EndFixed {
		stop = parseLocalOr(in.EndLocal, loc, nowSec)
	} else {
		unit := in.DurationUnit
		if unit == "" {
			unit = models.UnitHour
		}
		secs, ok := SecondsPerUnit(unit)
		if !ok {
			secs = 0
		}
		stop = saturatingAdd(start, saturatingMul(durationCount(in.DurationCount), secs))
	}

	return models.DerivedSchedule{
		Start:         start,
		Stop:          stop,
		RatePerSecond: RatePerSecond(in.Amount, in.RateUnit, decimals),
	}
}

// RatePerSecond returns floor(amountMinor / secondsPerUnit(unit)), or zero when
// the amount or unit cannot be interpreted.
func RatePerSecond(amount string, unit models.RateUnit, decimals int32) *big.Int {
	if unit == "" {
		unit = models.UnitHour
	}
	secs, ok := SecondsPerUnit(unit)
	if !ok {
		return new(big.Int)
	}

	minor, err := ToMinorUnits(amount, decimals)
	if err != nil {
		return new(big.Int)
	}

	return minor.Quo(minor, new(big.Int).SetUint64(secs))
}

// ParseLocal parses a datetime-local style timestamp in loc
func ParseLocal(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// FormatLocal renders epoch seconds in the datetime-local layout
func FormatLocal(sec uint64, loc *time.Location) string {
	if sec > math.MaxInt64 {
		return ""
	}
	return time.Unix(int64(sec), 0).In(loc).Format("2006-01-02T15:04")
}

// DefaultLocalStart returns the suggested scheduled start: one minute from now,
// rounded down to the minute.
func DefaultLocalStart(now time.Time, loc *time.Location) string {
	return now.Add(time.Minute).In(loc).Truncate(time.Minute).Format("2006-01-02T15:04")
}

func parseLocalOr(s string, loc *time.Location, fallback uint64) uint64 {
	t, ok := ParseLocal(s, loc)
	if !ok {
		return fallback
	}
	return epochSeconds(t)
}

func durationCount(s string) uint64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < 1 {
		return 1
	}
	if f >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(math.Floor(f))
}

func epochSeconds(t time.Time) uint64 {
	u := t.Unix()
	if u < 0 {
		return 0
	}
	return uint64(u)
}

func saturatingMul(a, b uint64) uint64 {
	if a != 0 && b > math.MaxUint64/a {
		return math.MaxUint64
	}
	return a * b
}

func saturatingAdd(a, b uint64) uint64 {
	if b > math.MaxUint64-a {
		return math.MaxUint64
	}
	return a + b
}
