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

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Phase is the lifecycle position of a TransactionAttempt
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseSubmitting           Phase = "submitting"
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
	PhaseConfirmed            Phase = "confirmed"
	PhaseFailed               Phase = "failed"
)

// InFlight reports whether a write is between submission and its outcome
func (p Phase) InFlight() bool {
	return p == PhaseSubmitting || p == PhaseAwaitingConfirmation
}

// Terminal reports whether the phase is a final outcome
func (p Phase) Terminal() bool {
	return p == PhaseConfirmed || p == PhaseFailed
}

// Action names one logical contract write
type Action string

const (
	ActionCreate  Action = "create"
	ActionApprove Action = "approve"
	ActionFund    Action = "fund"
	ActionClaim   Action = "claim"
)

// TransactionAttempt is a point-in-time view of one on-chain write
type TransactionAttempt struct {
	Action     Action         `json:"action"`
	Phase      Phase          `json:"phase"`
	Handle     common.Hash    `json:"handle,omitempty"`
	HasHandle  bool           `json:"has_handle"`
	Receipt    *types.Receipt `json:"-"`
	Error      error          `json:"-"`
	Generation uint64         `json:"generation"`
}

// ErrorMessage returns the recorded error text, or "" when none
func (a TransactionAttempt) ErrorMessage() string {
	if a.Error == nil {
		return ""
	}
	return a.Error.Error()
}
