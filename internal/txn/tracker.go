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

package txn

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"streamvault-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

var (
	ErrAttemptInFlight = errors.New("transaction already in flight")
	ErrResetRequired   = errors.New("previous attempt must be reset before resubmitting")
	ErrResetNotAllowed = errors.New("only a confirmed or failed attempt can be reset")
	ErrReverted        = errors.New("transaction reverted")
	ErrNotSubmitted    = errors.New("no attempt has been submitted")
)

const (
	eventSubmit    = "submit"
	eventBroadcast = "broadcast"
	eventConfirm   = "confirm"
	eventFail      = "fail"
	eventReset     = "reset"
)

// Sender broadcasts one write and returns its transaction handle
type Sender func(ctx context.Context) (common.Hash, error)

// ConfirmationWaiter blocks until a broadcast transaction has a receipt
type ConfirmationWaiter interface {
	WaitForConfirmation(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Tracker follows a single logical write through
// idle -> submitting -> awaiting_confirmation -> confirmed | failed.
// A tracker admits at most one in-flight attempt at a time.
type Tracker struct {
	action models.Action
	waiter ConfirmationWaiter
	ctx    context.Context

	mu        sync.Mutex
	machine   *fsm.FSM
	attempt   models.TransactionAttempt
	done      chan struct{}
	listeners []func(models.TransactionAttempt)
}

// NewTracker creates a tracker in the idle phase. Confirmation watches run
// under ctx; cancelling it abandons them and leaves the attempt pending.
func NewTracker(ctx context.Context, action models.Action, waiter ConfirmationWaiter) *Tracker {
	t := &Tracker{
		action:  action,
		waiter:  waiter,
		ctx:     ctx,
		attempt: models.TransactionAttempt{Action: action, Phase: models.PhaseIdle},
	}

	t.machine = fsm.NewFSM(
		string(models.PhaseIdle),
		fsm.Events{
			{Name: eventSubmit, Src: []string{string(models.PhaseIdle)}, Dst: string(models.PhaseSubmitting)},
			{Name: eventBroadcast, Src: []string{string(models.PhaseSubmitting)}, Dst: string(models.PhaseAwaitingConfirmation)},
			{Name: eventConfirm, Src: []string{string(models.PhaseAwaitingConfirmation)}, Dst: string(models.PhaseConfirmed)},
			{Name: eventFail, Src: []string{string(models.PhaseSubmitting), string(models.PhaseAwaitingConfirmation)}, Dst: string(models.PhaseFailed)},
			{Name: eventReset, Src: []string{string(models.PhaseConfirmed), string(models.PhaseFailed)}, Dst: string(models.PhaseIdle)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				zap.L().Debug("Transaction phase changed",
					zap.String("action", string(action)),
					zap.String("from", e.Src),
					zap.String("to", e.Dst))
			},
		},
	)

	return t
}

// Snapshot returns the current attempt
func (t *Tracker) Snapshot() models.TransactionAttempt {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempt
}

// OnChange registers fn to be called with the attempt after every transition
func (t *Tracker) OnChange(fn func(models.TransactionAttempt)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Submit sends one write. It is rejected without side effects while another
// attempt is in flight, and from a terminal phase until Reset is called. A
// broadcast error moves the attempt to failed and is returned as is.
func (t *Tracker) Submit(ctx context.Context, send Sender) (models.TransactionAttempt, error) {
	t.mu.Lock()
	switch phase := t.attempt.Phase; {
	case phase.InFlight():
		t.mu.Unlock()
		return t.Snapshot(), fmt.Errorf("%s: %w", t.action, ErrAttemptInFlight)
	case phase.Terminal():
		t.mu.Unlock()
		return t.Snapshot(), fmt.Errorf("%s: %w", t.action, ErrResetRequired)
	}

	if err := t.fire(eventSubmit); err != nil {
		t.mu.Unlock()
		return t.Snapshot(), err
	}
	generation := t.attempt.Generation
	t.done = make(chan struct{})
	submitting := t.attempt
	t.mu.Unlock()
	t.notify(submitting)

	hash, sendErr := send(ctx)

	t.mu.Lock()
	if t.attempt.Generation != generation {
		t.mu.Unlock()
		return t.Snapshot(), nil
	}
	var done chan struct{}
	if sendErr != nil {
		t.attempt.Error = sendErr
		done = t.finish(eventFail)
	} else {
		t.attempt.Handle = hash
		t.attempt.HasHandle = true
		if err := t.fire(eventBroadcast); err != nil {
			zap.L().Error("Unable to record broadcast", zap.String("action", string(t.action)), zap.Error(err))
		}
	}
	snapshot := t.attempt
	t.mu.Unlock()
	t.notify(snapshot)
	release(done)

	if snapshot.Phase == models.PhaseAwaitingConfirmation {
		go t.watch(generation, hash)
	}

	if sendErr != nil {
		zap.L().Warn("Transaction broadcast failed",
			zap.String("action", string(t.action)),
			zap.Error(sendErr))
		return snapshot, sendErr
	}
	return snapshot, nil
}

func (t *Tracker) watch(generation uint64, hash common.Hash) {
	receipt, err := t.waiter.WaitForConfirmation(t.ctx, hash)
	if t.ctx.Err() != nil {
		zap.L().Info("Confirmation watch abandoned",
			zap.String("action", string(t.action)),
			zap.String("tx_hash", hash.Hex()))
		return
	}

	t.mu.Lock()
	if t.attempt.Generation != generation || t.attempt.Phase != models.PhaseAwaitingConfirmation {
		t.mu.Unlock()
		zap.L().Debug("Discarding stale confirmation",
			zap.String("action", string(t.action)),
			zap.String("tx_hash", hash.Hex()))
		return
	}

	var done chan struct{}
	switch {
	case err != nil:
		t.attempt.Error = err
		done = t.finish(eventFail)
	case receipt == nil || receipt.Status != types.ReceiptStatusSuccessful:
		t.attempt.Receipt = receipt
		t.attempt.Error = fmt.Errorf("%w: %s", ErrReverted, hash.Hex())
		done = t.finish(eventFail)
	default:
		t.attempt.Receipt = receipt
		done = t.finish(eventConfirm)
	}
	snapshot := t.attempt
	t.mu.Unlock()
	t.notify(snapshot)
	release(done)

	if snapshot.Phase == models.PhaseConfirmed {
		zap.L().Info("Transaction confirmed",
			zap.String("action", string(t.action)),
			zap.String("tx_hash", hash.Hex()))
	} else {
		zap.L().Warn("Transaction failed",
			zap.String("action", string(t.action)),
			zap.String("tx_hash", hash.Hex()),
			zap.Error(snapshot.Error))
	}
}

// Reset returns a terminal attempt to idle and starts a new generation so any
// late result from the previous attempt is ignored.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	if !t.attempt.Phase.Terminal() {
		t.mu.Unlock()
		return fmt.Errorf("%s: %w", t.action, ErrResetNotAllowed)
	}
	if err := t.fire(eventReset); err != nil {
		t.mu.Unlock()
		return err
	}
	t.attempt = models.TransactionAttempt{
		Action:     t.action,
		Phase:      models.PhaseIdle,
		Generation: t.attempt.Generation + 1,
	}
	t.done = nil
	snapshot := t.attempt
	t.mu.Unlock()
	t.notify(snapshot)
	return nil
}

// Wait blocks until the current attempt is terminal or ctx is done
func (t *Tracker) Wait(ctx context.Context) (models.TransactionAttempt, error) {
	t.mu.Lock()
	done := t.done
	phase := t.attempt.Phase
	t.mu.Unlock()

	if phase == models.PhaseIdle || done == nil {
		return t.Snapshot(), fmt.Errorf("%s: %w", t.action, ErrNotSubmitted)
	}

	select {
	case <-done:
		return t.Snapshot(), nil
	case <-ctx.Done():
		return t.Snapshot(), ctx.Err()
	}
}

// fire applies an event and mirrors the machine state onto the attempt.
// Callers hold t.mu.
func (t *Tracker) fire(event string) error {
	if err := t.machine.Event(context.Background(), event); err != nil {
		return fmt.Errorf("%s: %s transition from %s: %w", t.action, event, t.machine.Current(), err)
	}
	t.attempt.Phase = models.Phase(t.machine.Current())
	return nil
}

// finish moves to a terminal phase. Callers hold t.mu and must call release
// with the returned channel once listeners have been notified.
func (t *Tracker) finish(event string) chan struct{} {
	if err := t.fire(event); err != nil {
		zap.L().Error("Unable to record outcome", zap.String("action", string(t.action)), zap.Error(err))
	}
	return t.done
}

func release(done chan struct{}) {
	if done != nil {
		close(done)
	}
}

func (t *Tracker) notify(attempt models.TransactionAttempt) {
	t.mu.Lock()
	listeners := make([]func(models.TransactionAttempt), len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(attempt)
	}
}
