package chain

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest wraps every request validation failure
var ErrInvalidRequest = errors.New("invalid contract request")

// Largest value representable by the contract's uint40 timestamps.
var maxUint40 = new(big.Int).SetUint64(1<<40 - 1)

// ContractCall is an encoded write ready to be broadcast
type ContractCall struct {
	To     common.Address
	Data   []byte
	Method string
}

type CreateStreamRequest struct {
	Vault string `validate:"required,eth_addr"`
	Payee string `validate:"required,eth_addr"`
	Rate  *big.Int
	Start uint64
	End   uint64 `validate:"gtfield=Start"`
}

type ApproveRequest struct {
	Token   string `validate:"required,eth_addr"`
	Spender string `validate:"required,eth_addr"`
	Amount  *big.Int
}

type FundRequest struct {
	Vault    string `validate:"required,eth_addr"`
	StreamId *big.Int
	Amount   *big.Int
}

type ClaimRequest struct {
	Vault    string `validate:"required,eth_addr"`
	StreamId *big.Int
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterStructValidation(validateCreateStream, CreateStreamRequest{})
		v.RegisterStructValidation(validateApprove, ApproveRequest{})
		v.RegisterStructValidation(validateFund, FundRequest{})
		v.RegisterStructValidation(validateClaim, ClaimRequest{})
		validate = v
	})
	return validate
}

func validateCreateStream(sl validator.StructLevel) {
	rq := sl.Current().Interface().(CreateStreamRequest)
	if !positive(rq.Rate) {
		sl.ReportError(rq.Rate, "Rate", "Rate", "gt", "0")
	}
	if new(big.Int).SetUint64(rq.Start).Cmp(maxUint40) > 0 {
		sl.ReportError(rq.Start, "Start", "Start", "max", "uint40")
	}
	if new(big.Int).SetUint64(rq.End).Cmp(maxUint40) > 0 {
		sl.ReportError(rq.End, "End", "End", "max", "uint40")
	}
}

func validateApprove(sl validator.StructLevel) {
	rq := sl.Current().Interface().(ApproveRequest)
	if !positive(rq.Amount) {
		sl.ReportError(rq.Amount, "Amount", "Amount", "gt", "0")
	}
}

func validateFund(sl validator.StructLevel) {
	rq := sl.Current().Interface().(FundRequest)
	if !positive(rq.StreamId) {
		sl.ReportError(rq.StreamId, "StreamId", "StreamId", "gt", "0")
	}
	if !positive(rq.Amount) {
		sl.ReportError(rq.Amount, "Amount", "Amount", "gt", "0")
	}
}

func validateClaim(sl validator.StructLevel) {
	rq := sl.Current().Interface().(ClaimRequest)
	if !positive(rq.StreamId) {
		sl.ReportError(rq.StreamId, "StreamId", "StreamId", "gt", "0")
	}
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

func check(rq interface{}) error {
	if err := requestValidator().Struct(rq); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Encode validates the request and packs createStream(payee, rate, start, end)
func (rq CreateStreamRequest) Encode() (ContractCall, error) {
	if err := check(rq); err != nil {
		return ContractCall{}, err
	}
	data, err := StreamVaultABI.Pack("createStream",
		common.HexToAddress(rq.Payee),
		rq.Rate,
		new(big.Int).SetUint64(rq.Start),
		new(big.Int).SetUint64(rq.End))
	if err != nil {
		return ContractCall{}, fmt.Errorf("unable to encode createStream: %w", err)
	}
	return ContractCall{To: common.HexToAddress(rq.Vault), Data: data, Method: "createStream"}, nil
}

// Encode validates the request and packs approve(spender, amount) for the token
func (rq ApproveRequest) Encode() (ContractCall, error) {
	if err := check(rq); err != nil {
		return ContractCall{}, err
	}
	data, err := ERC20ABI.Pack("approve", common.HexToAddress(rq.Spender), rq.Amount)
	if err != nil {
		return ContractCall{}, fmt.Errorf("unable to encode approve: %w", err)
	}
	return ContractCall{To: common.HexToAddress(rq.Token), Data: data, Method: "approve"}, nil
}

func (rq FundRequest) Encode() (ContractCall, error) {
	if err := check(rq); err != nil {
		return ContractCall{}, err
	}
	data, err := StreamVaultABI.Pack("fund", rq.StreamId, rq.Amount)
	if err != nil {
		return ContractCall{}, fmt.Errorf("unable to encode fund: %w", err)
	}
	return ContractCall{To: common.HexToAddress(rq.Vault), Data: data, Method: "fund"}, nil
}

func (rq ClaimRequest) Encode() (ContractCall, error) {
	if err := check(rq); err != nil {
		return ContractCall{}, err
	}
	data, err := StreamVaultABI.Pack("claim", rq.StreamId)
	if err != nil {
		return ContractCall{}, fmt.Errorf("unable to encode claim: %w", err)
	}
	return ContractCall{To: common.HexToAddress(rq.Vault), Data: data, Method: "claim"}, nil
}
