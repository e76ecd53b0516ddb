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

package session

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"streamvault-go/internal/activity"
	"streamvault-go/internal/address"
	"streamvault-go/internal/chain"
	"streamvault-go/internal/models"
	"streamvault-go/internal/schedule"
	"streamvault-go/internal/txn"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// ChainWriter broadcasts encoded contract calls and waits for their receipts
type ChainWriter interface {
	Submit(ctx context.Context, call chain.ContractCall) (common.Hash, error)
	WaitForConfirmation(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// AddressValidator classifies a user-supplied recipient
type AddressValidator interface {
	Validate(ctx context.Context, value string, expected models.ChainFamily, chainName string) models.AddressResolution
}

// State is the explicit session state shared by the stream actions
type State struct {
	Vault       string
	Token       string
	Payee       models.AddressResolution
	Schedule    models.DerivedSchedule
	StreamId    string
	HasStreamId bool
}

type Coordinator struct {
	writer    ChainWriter
	validator AddressValidator
	log       *activity.Log
	decimals  int32
	chainName string
	trackers  map[models.Action]*txn.Tracker
	payee     LatestResolution

	// gate serializes write admission across actions
	gate sync.Mutex

	mu             sync.Mutex
	state          State
	pendingApprove *big.Int
	approveSpender string
	approved       *big.Int
	pendingFund    *big.Int
	createVault    string
}

type Params struct {
	Writer    ChainWriter
	Validator AddressValidator
	Log       *activity.Log
	Vault     string
	Token     string
	Decimals  int32
	ChainName string
}

// NewCoordinator wires one lifecycle tracker per action. Confirmation watches
// live as long as ctx.
func NewCoordinator(ctx context.Context, p Params) *Coordinator {
	if p.Log == nil {
		p.Log = activity.NewLog()
	}
	c := &Coordinator{
		writer:    p.Writer,
		validator: p.Validator,
		log:       p.Log,
		decimals:  p.Decimals,
		chainName: p.ChainName,
		trackers:  make(map[models.Action]*txn.Tracker),
		state:     State{Vault: strings.TrimSpace(p.Vault), Token: strings.TrimSpace(p.Token)},
		approved:  new(big.Int),
	}

	for _, action := range []models.Action{models.ActionCreate, models.ActionApprove, models.ActionFund, models.ActionClaim} {
		tracker := txn.NewTracker(ctx, action, p.Writer)
		tracker.OnChange(c.onAttempt)
		c.trackers[action] = tracker
	}

	return c
}

func (c *Coordinator) Log() *activity.Log {
	return c.log
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) SetVault(vault string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Vault = strings.TrimSpace(vault)
}

func (c *Coordinator) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Token = strings.TrimSpace(token)
}

// Session returns the create-stream view of the session
func (c *Coordinator) Session() models.StreamSession {
	attempt := c.trackers[models.ActionCreate].Snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()
	return models.StreamSession{
		Schedule:    c.state.Schedule,
		Payee:       c.state.Payee,
		Attempt:     attempt,
		StreamId:    c.state.StreamId,
		HasStreamId: c.state.HasStreamId,
	}
}

func (c *Coordinator) Attempt(action models.Action) models.TransactionAttempt {
	return c.trackers[action].Snapshot()
}

// Wait blocks until the current attempt for action is terminal
func (c *Coordinator) Wait(ctx context.Context, action models.Action) (models.TransactionAttempt, error) {
	return c.trackers[action].Wait(ctx)
}

// ApprovedAmount is the approval still available for funding, in minor units
func (c *Coordinator) ApprovedAmount() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.approved)
}

// ValidatePayee validates value and records it as the session payee unless a
// newer validation has started in the meantime.
func (c *Coordinator) ValidatePayee(ctx context.Context, value string) (models.AddressResolution, bool) {
	ticket := c.payee.Begin()
	res := c.validator.Validate(ctx, value, models.FamilyEVM, c.chainName)
	if !c.payee.Commit(ticket, res) {
		zap.L().Debug("Dropping superseded payee validation", zap.String("input", value))
		return res, false
	}

	c.mu.Lock()
	c.state.Payee = res
	c.mu.Unlock()
	return res, true
}

// CanCreate reports the first failing create-stream predicate, if any
func (c *Coordinator) CanCreate(payee models.AddressResolution, derived models.DerivedSchedule) error {
	vault := c.State().Vault
	switch {
	case !address.IsEVMAddress(vault):
		return &IneligibleError{Predicate: PredicateVault, Detail: "vault address is not valid"}
	case !payee.Valid() || payee.Family != models.FamilyEVM:
		detail := payee.Reason
		if detail == "" {
			detail = "payee is not a valid EVM address"
		}
		return &IneligibleError{Predicate: PredicatePayee, Detail: detail}
	case derived.Stop <= derived.Start:
		return &IneligibleError{Predicate: PredicateWindow, Detail: "stop must be after start"}
	case derived.RatePerSecond == nil || derived.RatePerSecond.Sign() <= 0:
		return &IneligibleError{Predicate: PredicateRate, Detail: "rate per second rounds to zero"}
	case c.trackers[models.ActionCreate].Snapshot().Phase.InFlight():
		return &IneligibleError{Predicate: PredicateInFlight, Detail: "a create transaction is already in flight"}
	}
	return nil
}

// Create submits createStream(payee, rate, start, end). The stream id is
// extracted from the receipt once the transaction confirms.
func (c *Coordinator) Create(ctx context.Context, payee models.AddressResolution, derived models.DerivedSchedule) (models.TransactionAttempt, error) {
	tracker := c.trackers[models.ActionCreate]
	if err := c.CanCreate(payee, derived); err != nil {
		return tracker.Snapshot(), err
	}

	vault := c.State().Vault
	call, err := chain.CreateStreamRequest{
		Vault: vault,
		Payee: payee.Address,
		Rate:  derived.RatePerSecond,
		Start: derived.Start,
		End:   derived.Stop,
	}.Encode()
	if err != nil {
		return tracker.Snapshot(), err
	}

	c.log.Info("Creating stream", fmt.Sprintf("payee %s, %s/sec from %d to %d",
		address.ShortAddress(payee.Address),
		schedule.FormatMinorUnits(derived.RatePerSecond, c.decimals),
		derived.Start, derived.Stop))

	return c.submit(ctx, tracker, call, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.state.Payee = payee
		c.state.Schedule = derived
		c.state.StreamId = ""
		c.state.HasStreamId = false
		c.createVault = vault
	})
}

// Approve lets the vault pull amount of the funding token
func (c *Coordinator) Approve(ctx context.Context, amount string) (models.TransactionAttempt, error) {
	tracker := c.trackers[models.ActionApprove]
	st := c.State()
	if !address.IsEVMAddress(st.Vault) {
		return tracker.Snapshot(), ErrInvalidVault
	}
	if !address.IsEVMAddress(st.Token) {
		return tracker.Snapshot(), ErrInvalidToken
	}

	minor, err := schedule.ToMinorUnits(amount, c.decimals)
	if err != nil {
		return tracker.Snapshot(), err
	}

	call, err := chain.ApproveRequest{Token: st.Token, Spender: st.Vault, Amount: minor}.Encode()
	if err != nil {
		return tracker.Snapshot(), err
	}

	c.log.Info("Approving", fmt.Sprintf("%s for vault %s", amount, address.ShortAddress(st.Vault)))
	return c.submit(ctx, tracker, call, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.pendingApprove = minor
		c.approveSpender = st.Vault
		c.approved = new(big.Int)
	})
}

// Fund deposits amount into a stream. The approve attempt must be confirmed
// for the current vault and cover amount; otherwise nothing is sent.
func (c *Coordinator) Fund(ctx context.Context, streamId, amount string) (models.TransactionAttempt, error) {
	tracker := c.trackers[models.ActionFund]

	st := c.State()
	if !address.IsEVMAddress(st.Vault) {
		return tracker.Snapshot(), ErrInvalidVault
	}

	id, err := ParseStreamId(streamId)
	if err != nil {
		return tracker.Snapshot(), err
	}

	minor, err := schedule.ToMinorUnits(amount, c.decimals)
	if err != nil {
		return tracker.Snapshot(), err
	}
	if err := c.fundAllowed(st.Vault, minor); err != nil {
		return tracker.Snapshot(), err
	}

	call, err := chain.FundRequest{Vault: st.Vault, StreamId: id, Amount: minor}.Encode()
	if err != nil {
		return tracker.Snapshot(), err
	}

	c.log.Info("Funding stream", fmt.Sprintf("%s into stream %s", amount, id))
	// Re-checked under the write gate: the approval may have been replaced
	// since the check above.
	return c.submitChecked(ctx, tracker, call, func() error {
		return c.fundAllowed(st.Vault, minor)
	}, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.pendingFund = minor
	})
}

// fundAllowed reports whether a confirmed approval for vault covers minor
func (c *Coordinator) fundAllowed(vault string, minor *big.Int) error {
	approve := c.trackers[models.ActionApprove].Snapshot()
	if approve.Phase != models.PhaseConfirmed {
		return fmt.Errorf("%w (approve is %s)", ErrApproveNotConfirmed, approve.Phase)
	}

	c.mu.Lock()
	spender := c.approveSpender
	approved := new(big.Int).Set(c.approved)
	c.mu.Unlock()
	if !strings.EqualFold(spender, vault) {
		return fmt.Errorf("%w (approval was for %s)", ErrApproveNotConfirmed, spender)
	}
	if minor.Cmp(approved) > 0 {
		return fmt.Errorf("%w: %s > %s", ErrFundExceedsApproval,
			schedule.FormatMinorUnits(minor, c.decimals),
			schedule.FormatMinorUnits(approved, c.decimals))
	}
	return nil
}

// Claim withdraws the claimable balance of any stream on the current vault
func (c *Coordinator) Claim(ctx context.Context, streamId string) (models.TransactionAttempt, error) {
	tracker := c.trackers[models.ActionClaim]

	vault := c.State().Vault
	if !address.IsEVMAddress(vault) {
		return tracker.Snapshot(), ErrInvalidVault
	}
	id, err := ParseStreamId(streamId)
	if err != nil {
		return tracker.Snapshot(), err
	}

	call, err := chain.ClaimRequest{Vault: vault, StreamId: id}.Encode()
	if err != nil {
		return tracker.Snapshot(), err
	}

	c.log.Info("Claiming", fmt.Sprintf("stream %s", id))
	return c.submit(ctx, tracker, call, nil)
}

// ParseStreamId parses a positive decimal stream id
func ParseStreamId(s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStreamId, s)
	}
	return id, nil
}

func (c *Coordinator) submit(ctx context.Context, tracker *txn.Tracker, call chain.ContractCall, accepted func()) (models.TransactionAttempt, error) {
	return c.submitChecked(ctx, tracker, call, nil, accepted)
}

// submitChecked resets a finished attempt and sends call as a fresh one.
// check, the reset, the move to submitting and accepted all happen under the
// write gate, so no two writes can interleave their admission. The gate is
// released before the broadcast.
func (c *Coordinator) submitChecked(ctx context.Context, tracker *txn.Tracker, call chain.ContractCall, check func() error, accepted func()) (models.TransactionAttempt, error) {
	c.gate.Lock()
	var once sync.Once
	unlock := func() { once.Do(c.gate.Unlock) }
	defer unlock()

	if check != nil {
		if err := check(); err != nil {
			return tracker.Snapshot(), err
		}
	}

	if tracker.Snapshot().Phase.Terminal() {
		if err := tracker.Reset(); err != nil {
			return tracker.Snapshot(), err
		}
	}

	return tracker.Submit(ctx, func(ctx context.Context) (common.Hash, error) {
		if accepted != nil {
			accepted()
		}
		unlock()
		return c.writer.Submit(ctx, call)
	})
}

// onAttempt records the outcome of every attempt in the activity log and
// applies the per-action effects of a confirmation.
func (c *Coordinator) onAttempt(a models.TransactionAttempt) {
	title := actionTitle(a.Action)

	switch a.Phase {
	case models.PhaseAwaitingConfirmation:
		c.log.Tx(fmt.Sprintf("%s submitted", title), "", a.Handle.Hex())

	case models.PhaseFailed:
		c.mu.Lock()
		switch a.Action {
		case models.ActionApprove:
			c.pendingApprove = nil
		case models.ActionFund:
			c.pendingFund = nil
		}
		c.mu.Unlock()

		hash := ""
		if a.HasHandle {
			hash = a.Handle.Hex()
		}
		c.log.Push(models.ActivityWarn, fmt.Sprintf("%s failed", title), a.ErrorMessage(), hash)

	case models.PhaseConfirmed:
		switch a.Action {
		case models.ActionCreate:
			c.onCreateConfirmed(a)
			return
		case models.ActionApprove:
			c.mu.Lock()
			if c.pendingApprove != nil {
				c.approved = c.pendingApprove
				c.pendingApprove = nil
			}
			c.mu.Unlock()
		case models.ActionFund:
			c.mu.Lock()
			if c.pendingFund != nil {
				c.approved = new(big.Int).Sub(c.approved, c.pendingFund)
				if c.approved.Sign() < 0 {
					c.approved.SetInt64(0)
				}
				c.pendingFund = nil
			}
			c.mu.Unlock()
		}
		c.log.Push(models.ActivityOk, fmt.Sprintf("%s confirmed", title), "", a.Handle.Hex())
	}
}

func (c *Coordinator) onCreateConfirmed(a models.TransactionAttempt) {
	c.mu.Lock()
	vault := common.HexToAddress(c.createVault)
	c.mu.Unlock()

	id, ok := chain.ParseStreamCreated(a.Receipt, vault)
	if !ok {
		zap.L().Warn("StreamCreated event not found in receipt", zap.String("tx_hash", a.Handle.Hex()))
		c.log.Push(models.ActivityWarn, "Stream created", "stream id not found in receipt", a.Handle.Hex())
		return
	}

	c.mu.Lock()
	c.state.StreamId = id
	c.state.HasStreamId = true
	c.mu.Unlock()

	zap.L().Info("Stream created", zap.String("stream_id", id), zap.String("tx_hash", a.Handle.Hex()))
	c.log.Push(models.ActivityOk, "Stream created", "stream id "+id, a.Handle.Hex())
}

func actionTitle(a models.Action) string {
	switch a {
	case models.ActionCreate:
		return "Create stream"
	case models.ActionApprove:
		return "Approve"
	case models.ActionFund:
		return "Fund"
	case models.ActionClaim:
		return "Claim"
	}
	return string(a)
}
