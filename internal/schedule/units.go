/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package schedule

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"streamvault-go/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNegativeAmount  = errors.New("amount must not be negative")
	ErrTooManyDecimals = errors.New("amount has more fractional digits than the token supports")
)

var unitSeconds = map[models.RateUnit]uint64{
	models.UnitSecond: 1,
	models.UnitMinute: 60,
	models.UnitHour:   3600,
	models.UnitDay:    86400,
}

// SecondsPerUnit returns the length of a rate or duration unit in seconds
func SecondsPerUnit(unit models.RateUnit) (uint64, bool) {
	s, ok := unitSeconds[unit]
	return s, ok
}

// ParseUnit maps user input such as "hour" or "hours" to a RateUnit
func ParseUnit(s string) (models.RateUnit, error) {
	u := models.RateUnit(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	switch u {
	case "second":
		u = models.UnitSecond
	case "minute":
		u = models.UnitMinute
	}
	if _, ok := unitSeconds[u]; !ok {
		return "", fmt.Errorf("unknown unit %q (expected sec, min, hour or day)", s)
	}
	return u, nil
}

// ToMinorUnits converts a display amount such as "0.1" into integer minor
// units for a token with the given number of decimals. An empty amount is zero.
func ToMinorUnits(amount string, decimals int32) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		s = "0"
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q", ErrNegativeAmount, amount)
	}
	if !d.Truncate(decimals).Equal(d) {
		return nil, fmt.Errorf("%w: %q (max %d)", ErrTooManyDecimals, amount, decimals)
	}

	return d.Shift(decimals).BigInt(), nil
}

// FromMinorUnits converts integer minor units back to a display decimal
func FromMinorUnits(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}

// FormatMinorUnits renders minor units as a display amount, e.g. 1500000 -> "1.5"
func FormatMinorUnits(v *big.Int, decimals int32) string {
	return FromMinorUnits(v, decimals).String()
}
