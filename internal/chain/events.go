package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// ParseStreamCreated scans receipt logs for the first StreamCreated event
// emitted by vault and returns its stream id in decimal. A zero vault matches
// any emitter.
func ParseStreamCreated(receipt *types.Receipt, vault common.Address) (string, bool) {
	if receipt == nil {
		return "", false
	}

	event, ok := StreamVaultABI.Events["StreamCreated"]
	if !ok || len(event.Inputs) == 0 {
		return "", false
	}
	idArg := event.Inputs[0]

	for _, log := range receipt.Logs {
		if log == nil || len(log.Topics) == 0 || log.Topics[0] != event.ID {
			continue
		}
		if vault != (common.Address{}) && log.Address != vault {
			continue
		}

		if idArg.Indexed {
			if len(log.Topics) < 2 {
				zap.L().Warn("StreamCreated log missing id topic", zap.String("tx_hash", log.TxHash.Hex()))
				continue
			}
			return new(big.Int).SetBytes(log.Topics[1].Bytes()).String(), true
		}

		values, err := event.Inputs.NonIndexed().Unpack(log.Data)
		if err != nil || len(values) == 0 {
			zap.L().Warn("Unable to decode StreamCreated data",
				zap.String("tx_hash", log.TxHash.Hex()),
				zap.Error(err))
			continue
		}
		if id, ok := values[0].(*big.Int); ok {
			return id.String(), true
		}
	}

	return "", false
}
