package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

func (s *Service) Buffer(ctx context.Context, vault common.Address) (*big.Int, error) {
	return s.callUint(ctx, vault, StreamVaultABI, "buffer")
}

func (s *Service) BufferTarget(ctx context.Context, vault common.Address) (*big.Int, error) {
	return s.callUint(ctx, vault, StreamVaultABI, "bufferTarget")
}

func (s *Service) TotalRate(ctx context.Context, vault common.Address) (*big.Int, error) {
	return s.callUint(ctx, vault, StreamVaultABI, "totalRate")
}

func (s *Service) NextId(ctx context.Context, vault common.Address) (*big.Int, error) {
	return s.callUint(ctx, vault, StreamVaultABI, "nextId")
}

func (s *Service) Claimable(ctx context.Context, vault common.Address, streamId *big.Int) (*big.Int, error) {
	return s.callUint(ctx, vault, StreamVaultABI, "claimable", streamId)
}

func (s *Service) Accrued(ctx context.Context, vault common.Address, streamId *big.Int) (*big.Int, error) {
	return s.callUint(ctx, vault, StreamVaultABI, "accrued", streamId)
}

func (s *Service) YieldEnabled(ctx context.Context, vault common.Address) (bool, error) {
	out, err := s.call(ctx, vault, StreamVaultABI, "yieldEnabled")
	if err != nil {
		return false, err
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected yieldEnabled result %T", out[0])
	}
	return v, nil
}

// Teller returns the yield teller the vault deposits idle buffer into
func (s *Service) Teller(ctx context.Context, vault common.Address) (common.Address, error) {
	return s.callAddress(ctx, vault, StreamVaultABI, "teller")
}

func (s *Service) Usyc(ctx context.Context, vault common.Address) (common.Address, error) {
	return s.callAddress(ctx, vault, StreamVaultABI, "usyc")
}

func (s *Service) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return s.callUint(ctx, token, ERC20ABI, "allowance", owner, spender)
}

func (s *Service) Decimals(ctx context.Context, token common.Address) (int32, error) {
	out, err := s.call(ctx, token, ERC20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	v, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals result %T", out[0])
	}
	return int32(v), nil
}

func (s *Service) callUint(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) (*big.Int, error) {
	out, err := s.call(ctx, to, parsed, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result %T", method, out[0])
	}
	return v, nil
}

func (s *Service) callAddress(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) (common.Address, error) {
	out, err := s.call(ctx, to, parsed, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	v, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected %s result %T", method, out[0])
	}
	return v, nil
}

// call performs a rate-limited eth_call and unpacks the single-output result
func (s *Service) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait for %s: %w", method, err)
	}

	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to encode %s: %w", method, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := s.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to call %s on %s: %w", method, to.Hex(), err)
	}

	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty %s result", method)
	}
	return out, nil
}
