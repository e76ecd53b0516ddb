package chain

import (
	"context"
	"strings"

	"streamvault-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// ResolveName looks a name up in the configured ENS-style registry. Only EVM
// names are resolvable here; other families and unregistered names return an
// empty address with no error.
func (s *Service) ResolveName(ctx context.Context, name string, family models.ChainFamily) (string, error) {
	if family != "" && family != models.FamilyEVM {
		return "", nil
	}
	if s.config.EnsRegistryAddress == "" {
		return "", nil
	}

	node := Namehash(name)
	registry := common.HexToAddress(s.config.EnsRegistryAddress)

	resolver, err := s.callAddress(ctx, registry, ensABI, "resolver", node)
	if err != nil {
		return "", err
	}
	if resolver == (common.Address{}) {
		zap.L().Debug("No resolver for name", zap.String("name", name))
		return "", nil
	}

	addr, err := s.callAddress(ctx, resolver, ensABI, "addr", node)
	if err != nil {
		return "", err
	}
	if addr == (common.Address{}) {
		return "", nil
	}
	return addr.Hex(), nil
}

// Namehash computes the recursive ENS node hash of a dotted name
func Namehash(name string) [32]byte {
	var node [32]byte
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return node
	}

	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		copy(node[:], crypto.Keccak256(node[:], labelHash))
	}
	return node
}
