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

package models

import "math/big"

// RateUnit is the time unit a user-entered amount or duration is expressed in
type RateUnit string

const (
	UnitSecond RateUnit = "sec"
	UnitMinute RateUnit = "min"
	UnitHour   RateUnit = "hour"
	UnitDay    RateUnit = "day"
)

// StartMode selects how the stream start time is chosen
type StartMode string

const (
	StartNow      StartMode = "now"
	StartSchedule StartMode = "schedule"
)

// EndMode selects how the stream stop time is chosen
type EndMode string

const (
	EndDuration EndMode = "duration"
	EndFixed    EndMode = "fixed"
)

// ScheduleInput is the raw, user-facing form of a stream schedule
type ScheduleInput struct {
	Amount        string    `json:"amount"`
	RateUnit      RateUnit  `json:"rate_unit"`
	StartMode     StartMode `json:"start_mode"`
	StartLocal    string    `json:"start_local,omitempty"`
	EndMode       EndMode   `json:"end_mode"`
	DurationCount string    `json:"duration_count,omitempty"`
	DurationUnit  RateUnit  `json:"duration_unit,omitempty"`
	EndLocal      string    `json:"end_local,omitempty"`
}

// DerivedSchedule holds the canonical on-chain parameters computed from a
// ScheduleInput. Start and Stop are epoch seconds; RatePerSecond is in token
// minor units.
type DerivedSchedule struct {
	Start         uint64   `json:"start"`
	Stop          uint64   `json:"stop"`
	RatePerSecond *big.Int `json:"rate_per_second"`
}

// Submittable reports whether the schedule may be sent to the contract
func (d DerivedSchedule) Submittable() bool {
	return d.Stop > d.Start && d.RatePerSecond != nil && d.RatePerSecond.Sign() > 0
}
