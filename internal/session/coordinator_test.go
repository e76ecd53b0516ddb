package session

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"streamvault-go/internal/activity"
	"streamvault-go/internal/chain"
	"streamvault-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testVault = "0x27d3A90FFc2beb44F6641bB1489b13F4069897Ae"
	testToken = "0x3600000000000000000000000000000000000000"
	testPayee = "0x9fdF14c5B14173D74C08Af27AebFf39240dC105A"
)

type fakeWriter struct {
	mu        sync.Mutex
	calls     []chain.ContractCall
	submitErr error
	hold      chan struct{}
	confirm   chan struct{}
	status    uint64
	logs      func(call chain.ContractCall) []*types.Log
	byHash    map[common.Hash]chain.ContractCall
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{status: types.ReceiptStatusSuccessful, byHash: make(map[common.Hash]chain.ContractCall)}
}

func (f *fakeWriter) Submit(ctx context.Context, call chain.ContractCall) (common.Hash, error) {
	f.mu.Lock()
	hold := f.hold
	f.mu.Unlock()
	if hold != nil {
		<-hold
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.submitErr != nil {
		return common.Hash{}, f.submitErr
	}
	hash := common.BigToHash(big.NewInt(int64(len(f.calls))))
	f.byHash[hash] = call
	return hash, nil
}

func (f *fakeWriter) WaitForConfirmation(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	gate := f.confirm
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	receipt := &types.Receipt{Status: f.status, TxHash: hash, BlockNumber: big.NewInt(1)}
	if f.logs != nil {
		receipt.Logs = f.logs(f.byHash[hash])
	}
	return receipt, nil
}

func (f *fakeWriter) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.Method)
	}
	return out
}

func newTestCoordinator(t *testing.T, w *fakeWriter) *Coordinator {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewCoordinator(ctx, Params{
		Writer:    w,
		Log:       activity.NewLog(),
		Vault:     testVault,
		Token:     testToken,
		Decimals:  6,
		ChainName: "Arc Testnet",
	})
}

func wait(t *testing.T, c *Coordinator, action models.Action) models.TransactionAttempt {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	a, err := c.Wait(ctx, action)
	require.NoError(t, err)
	return a
}

func validPayee() models.AddressResolution {
	return models.AddressResolution{Kind: models.ResolutionLiteral, Input: testPayee, Address: testPayee, Family: models.FamilyEVM}
}

func validSchedule() models.DerivedSchedule {
	return models.DerivedSchedule{Start: 1700000000, Stop: 1700003600, RatePerSecond: big.NewInt(27)}
}

func streamCreatedLogs(id int64) func(chain.ContractCall) []*types.Log {
	return func(call chain.ContractCall) []*types.Log {
		if call.Method != "createStream" {
			return nil
		}
		event := chain.StreamVaultABI.Events["StreamCreated"]
		data, _ := event.Inputs.NonIndexed().Pack(big.NewInt(27), big.NewInt(1), big.NewInt(2))
		return []*types.Log{{
			Address: call.To,
			Topics: []common.Hash{
				event.ID,
				common.BigToHash(big.NewInt(id)),
				common.BytesToHash(common.HexToAddress(testToken).Bytes()),
				common.BytesToHash(common.HexToAddress(testPayee).Bytes()),
			},
			Data: data,
		}}
	}
}

func titles(entries []models.ActivityEntry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Title)
	}
	return out
}

func TestFund_RejectedUntilApproveConfirmed(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		w := newFakeWriter()
		c := newTestCoordinator(t, w)

		_, err := c.Fund(context.Background(), "1", "1")
		assert.ErrorIs(t, err, ErrApproveNotConfirmed)
		assert.Empty(t, w.methods())
	})

	t.Run("submitting", func(t *testing.T) {
		w := newFakeWriter()
		w.hold = make(chan struct{})
		c := newTestCoordinator(t, w)

		go func() { _, _ = c.Approve(context.Background(), "5") }()
		require.Eventually(t, func() bool {
			return c.Attempt(models.ActionApprove).Phase == models.PhaseSubmitting
		}, time.Second, 5*time.Millisecond)

		_, err := c.Fund(context.Background(), "1", "1")
		assert.ErrorIs(t, err, ErrApproveNotConfirmed)

		close(w.hold)
		require.Eventually(t, func() bool {
			return c.Attempt(models.ActionApprove).Phase.Terminal()
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, []string{"approve"}, w.methods())
	})

	t.Run("awaiting confirmation", func(t *testing.T) {
		w := newFakeWriter()
		w.confirm = make(chan struct{})
		c := newTestCoordinator(t, w)

		attempt, err := c.Approve(context.Background(), "5")
		require.NoError(t, err)
		require.Equal(t, models.PhaseAwaitingConfirmation, attempt.Phase)

		_, err = c.Fund(context.Background(), "1", "1")
		assert.ErrorIs(t, err, ErrApproveNotConfirmed)
		assert.Equal(t, []string{"approve"}, w.methods())
		close(w.confirm)
	})

	t.Run("failed", func(t *testing.T) {
		w := newFakeWriter()
		w.status = types.ReceiptStatusFailed
		c := newTestCoordinator(t, w)

		_, err := c.Approve(context.Background(), "5")
		require.NoError(t, err)
		require.Equal(t, models.PhaseFailed, wait(t, c, models.ActionApprove).Phase)

		_, err = c.Fund(context.Background(), "1", "1")
		assert.ErrorIs(t, err, ErrApproveNotConfirmed)
		assert.Equal(t, []string{"approve"}, w.methods())
	})
}

func TestApproveThenFund(t *testing.T) {
	w := newFakeWriter()
	c := newTestCoordinator(t, w)

	_, err := c.Approve(context.Background(), "5")
	require.NoError(t, err)
	require.Equal(t, models.PhaseConfirmed, wait(t, c, models.ActionApprove).Phase)
	assert.Equal(t, "5000000", c.ApprovedAmount().String())

	_, err = c.Fund(context.Background(), "3", "6")
	assert.ErrorIs(t, err, ErrFundExceedsApproval)

	_, err = c.Fund(context.Background(), "0", "1")
	assert.ErrorIs(t, err, ErrInvalidStreamId)

	attempt, err := c.Fund(context.Background(), "3", "2")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseAwaitingConfirmation, attempt.Phase)
	require.Equal(t, models.PhaseConfirmed, wait(t, c, models.ActionFund).Phase)

	assert.Equal(t, "3000000", c.ApprovedAmount().String())
	assert.Equal(t, []string{"approve", "fund"}, w.methods())

	_, err = c.Fund(context.Background(), "3", "3.5")
	assert.ErrorIs(t, err, ErrFundExceedsApproval)
}

func TestFund_ApprovalIsPerVault(t *testing.T) {
	w := newFakeWriter()
	c := newTestCoordinator(t, w)

	_, err := c.Approve(context.Background(), "5")
	require.NoError(t, err)
	wait(t, c, models.ActionApprove)

	c.SetVault(testPayee)
	_, err = c.Fund(context.Background(), "1", "1")
	assert.ErrorIs(t, err, ErrApproveNotConfirmed)
}

func TestCanCreate(t *testing.T) {
	tests := []struct {
		name      string
		vault     string
		payee     models.AddressResolution
		schedule  models.DerivedSchedule
		predicate string
	}{
		{"ok", testVault, validPayee(), validSchedule(), ""},
		{"bad vault", "0x1234", validPayee(), validSchedule(), PredicateVault},
		{"invalid payee", testVault, models.AddressResolution{Kind: models.ResolutionInvalid, Reason: "address required"}, validSchedule(), PredicatePayee},
		{"non evm payee", testVault, models.AddressResolution{Kind: models.ResolutionLiteral, Address: "So11111111111111111111111111111111111111112", Family: models.FamilySVM}, validSchedule(), PredicatePayee},
		{"empty window", testVault, validPayee(), models.DerivedSchedule{Start: 10, Stop: 10, RatePerSecond: big.NewInt(1)}, PredicateWindow},
		{"zero rate", testVault, validPayee(), models.DerivedSchedule{Start: 10, Stop: 20, RatePerSecond: big.NewInt(0)}, PredicateRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCoordinator(t, newFakeWriter())
			c.SetVault(tt.vault)

			err := c.CanCreate(tt.payee, tt.schedule)
			if tt.predicate == "" {
				assert.NoError(t, err)
				return
			}
			var ineligible *IneligibleError
			require.ErrorAs(t, err, &ineligible)
			assert.Equal(t, tt.predicate, ineligible.Predicate)
			assert.ErrorIs(t, err, ErrIneligible)
		})
	}
}

func TestCreate_ExtractsStreamId(t *testing.T) {
	w := newFakeWriter()
	w.logs = streamCreatedLogs(42)
	c := newTestCoordinator(t, w)

	attempt, err := c.Create(context.Background(), validPayee(), validSchedule())
	require.NoError(t, err)
	assert.True(t, attempt.HasHandle)

	final := wait(t, c, models.ActionCreate)
	assert.Equal(t, models.PhaseConfirmed, final.Phase)

	s := c.Session()
	assert.True(t, s.HasStreamId)
	assert.Equal(t, "42", s.StreamId)
	assert.Equal(t, testPayee, s.Payee.Address)
	assert.Equal(t, uint64(1700003600), s.Schedule.Stop)
	assert.Contains(t, titles(c.Log().Items()), "Stream created")
}

func TestCreate_MissingEventIsNotFatal(t *testing.T) {
	w := newFakeWriter()
	c := newTestCoordinator(t, w)

	_, err := c.Create(context.Background(), validPayee(), validSchedule())
	require.NoError(t, err)

	final := wait(t, c, models.ActionCreate)
	assert.Equal(t, models.PhaseConfirmed, final.Phase)

	s := c.Session()
	assert.False(t, s.HasStreamId)
	assert.Empty(t, s.StreamId)

	items := c.Log().Items()
	require.NotEmpty(t, items)
	assert.Equal(t, models.ActivityWarn, items[0].Kind)
	assert.Equal(t, "stream id not found in receipt", items[0].Detail)
}

func TestCreate_ResubmitAfterFailure(t *testing.T) {
	w := newFakeWriter()
	w.submitErr = errors.New("user rejected request")
	c := newTestCoordinator(t, w)

	attempt, err := c.Create(context.Background(), validPayee(), validSchedule())
	require.Error(t, err)
	assert.Equal(t, models.PhaseFailed, attempt.Phase)
	assert.Equal(t, models.ActivityWarn, c.Log().Items()[0].Kind)

	w.mu.Lock()
	w.submitErr = nil
	w.mu.Unlock()
	w.logs = streamCreatedLogs(7)

	attempt, err = c.Create(context.Background(), validPayee(), validSchedule())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), attempt.Generation)
	wait(t, c, models.ActionCreate)
	assert.Equal(t, "7", c.Session().StreamId)
}

func TestCreate_RejectedWhileInFlight(t *testing.T) {
	w := newFakeWriter()
	w.confirm = make(chan struct{})
	c := newTestCoordinator(t, w)

	_, err := c.Create(context.Background(), validPayee(), validSchedule())
	require.NoError(t, err)

	_, err = c.Create(context.Background(), validPayee(), validSchedule())
	var ineligible *IneligibleError
	require.ErrorAs(t, err, &ineligible)
	assert.Equal(t, PredicateInFlight, ineligible.Predicate)
	assert.Equal(t, []string{"createStream"}, w.methods())
	close(w.confirm)
}

func TestClaim_IndependentOfCreateAndFund(t *testing.T) {
	w := newFakeWriter()
	c := newTestCoordinator(t, w)

	for _, bad := range []string{"", "0", "-2", "abc", "1.5"} {
		_, err := c.Claim(context.Background(), bad)
		assert.ErrorIs(t, err, ErrInvalidStreamId, bad)
	}

	attempt, err := c.Claim(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseAwaitingConfirmation, attempt.Phase)
	assert.Equal(t, models.PhaseConfirmed, wait(t, c, models.ActionClaim).Phase)
	assert.Equal(t, []string{"claim"}, w.methods())
	assert.Equal(t, models.PhaseIdle, c.Attempt(models.ActionCreate).Phase)

	c.SetVault("")
	_, err = c.Claim(context.Background(), "2")
	assert.ErrorIs(t, err, ErrInvalidVault)
}

type scriptedValidator struct {
	delays map[string]time.Duration
}

func (s scriptedValidator) Validate(ctx context.Context, value string, expected models.ChainFamily, chainName string) models.AddressResolution {
	time.Sleep(s.delays[value])
	return models.AddressResolution{Kind: models.ResolutionNameService, Input: value, Address: testPayee, Family: models.FamilyEVM}
}

func TestValidatePayee_LastWriteWins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := NewCoordinator(ctx, Params{
		Writer:    newFakeWriter(),
		Validator: scriptedValidator{delays: map[string]time.Duration{"slow.eth": 100 * time.Millisecond}},
		Vault:     testVault,
	})

	slowDone := make(chan bool)
	go func() {
		_, accepted := c.ValidatePayee(context.Background(), "slow.eth")
		slowDone <- accepted
	}()
	time.Sleep(20 * time.Millisecond)

	_, accepted := c.ValidatePayee(context.Background(), "fast.eth")
	assert.True(t, accepted)
	assert.False(t, <-slowDone, "an overtaken validation must not overwrite the newer one")
	assert.Equal(t, "fast.eth", c.State().Payee.Input)
}

// sinkFunc adapts a function to activity.Sink
type sinkFunc func(models.ActivityEntry) error

func (f sinkFunc) Record(e models.ActivityEntry) error { return f(e) }

func TestFund_RejectedWhenApproveRestartsBeforeBroadcast(t *testing.T) {
	w := newFakeWriter()
	c := newTestCoordinator(t, w)

	_, err := c.Approve(context.Background(), "5")
	require.NoError(t, err)
	require.Equal(t, models.PhaseConfirmed, wait(t, c, models.ActionApprove).Phase)

	hold := make(chan struct{})
	w.mu.Lock()
	w.hold = hold
	w.mu.Unlock()

	// A second approval starts between Fund's precheck and its submission.
	var once sync.Once
	c.Log().AddSink(sinkFunc(func(e models.ActivityEntry) error {
		if e.Title != "Funding stream" {
			return nil
		}
		once.Do(func() {
			go func() { _, _ = c.Approve(context.Background(), "5") }()
			deadline := time.Now().Add(time.Second)
			for time.Now().Before(deadline) {
				if c.Attempt(models.ActionApprove).Phase == models.PhaseSubmitting {
					return
				}
				time.Sleep(5 * time.Millisecond)
			}
		})
		return nil
	}))

	_, err = c.Fund(context.Background(), "1", "1")
	assert.ErrorIs(t, err, ErrApproveNotConfirmed)
	assert.Equal(t, models.PhaseSubmitting, c.Attempt(models.ActionApprove).Phase)
	assert.Equal(t, models.PhaseIdle, c.Attempt(models.ActionFund).Phase)

	close(hold)
	require.Eventually(t, func() bool {
		return c.Attempt(models.ActionApprove).Phase.Terminal()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"approve", "approve"}, w.methods())
}
