package address

import (
	"context"
	"fmt"
	"strings"
	"time"

	"streamvault-go/internal/models"

	"go.uber.org/zap"
)

const (
	reasonRequired = "address required"
	reasonInvalid  = "invalid wallet address"
)

// NameResolver turns a name-service handle into a literal address for a family.
// An empty result with a nil error means the name is not registered.
type NameResolver interface {
	ResolveName(ctx context.Context, name string, family models.ChainFamily) (string, error)
}

type Validator struct {
	resolver NameResolver
	timeout  time.Duration
}

// NewValidator creates a validator. A nil resolver disables name-service
// lookups; a zero timeout leaves the caller's context deadline in charge.
func NewValidator(resolver NameResolver, timeout time.Duration) *Validator {
	return &Validator{resolver: resolver, timeout: timeout}
}

// Validate classifies a recipient value. Literal addresses are accepted without
// I/O; dotted handles are resolved with a single name-service call.
func (v *Validator) Validate(ctx context.Context, value string, expected models.ChainFamily, chainName string) models.AddressResolution {
	input := strings.TrimSpace(value)
	if input == "" {
		return models.AddressResolution{Kind: models.ResolutionInvalid, Input: value, Reason: reasonRequired}
	}

	if addr, family, ok := Classify(input); ok {
		return models.AddressResolution{
			Kind:    models.ResolutionLiteral,
			Input:   value,
			Address: addr,
			Family:  family,
		}
	}

	if v.resolver == nil || !LooksLikeName(input) {
		return invalid(value, chainName)
	}

	resolved, err := v.resolve(ctx, input, expected)
	if err != nil {
		zap.L().Debug("Name resolution failed",
			zap.String("name", input),
			zap.String("family", string(expected)),
			zap.Error(err))
		return invalid(value, chainName)
	}

	addr, family, ok := Classify(resolved)
	if !ok {
		zap.L().Debug("Name resolved to unusable address",
			zap.String("name", input),
			zap.String("resolved", resolved))
		return invalid(value, chainName)
	}

	return models.AddressResolution{
		Kind:    models.ResolutionNameService,
		Input:   value,
		Address: addr,
		Family:  family,
	}
}

func (v *Validator) resolve(ctx context.Context, name string, family models.ChainFamily) (addr string, err error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resolver panic: %v", r)
		}
	}()

	addr, err = v.resolver.ResolveName(ctx, name, family)
	if err != nil {
		return "", err
	}
	if addr == "" {
		return "", fmt.Errorf("name %q is not registered", name)
	}
	return addr, nil
}

func invalid(input, chainName string) models.AddressResolution {
	reason := reasonInvalid
	if chainName != "" {
		reason = fmt.Sprintf("%s for chain %s", reasonInvalid, chainName)
	}
	return models.AddressResolution{Kind: models.ResolutionInvalid, Input: input, Reason: reason}
}
