package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"streamvault-go/internal/models"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	Id     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type callArgs struct {
	To    common.Address `json:"to"`
	Input hexutil.Bytes  `json:"input"`
	Data  hexutil.Bytes  `json:"data"`
}

func (c callArgs) payload() []byte {
	if len(c.Input) > 0 {
		return c.Input
	}
	return c.Data
}

type rpcHandler func(method string, params []json.RawMessage) (interface{}, *rpcError)

func newRPCServer(t *testing.T, handler rpcHandler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, rpcErr := handler(req.Method, req.Params)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.Id}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(t *testing.T, url string, mutate func(cfg *models.ChainConfig)) *Service {
	t.Helper()
	cfg := models.ChainConfig{
		RpcUrl:              url,
		ChainId:             5042002,
		ExplorerUrl:         "https://testnet.arcscan.app",
		WalletAddress:       testPayee,
		RequestTimeout:      2 * time.Second,
		ReceiptPollInterval: 10 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	svc, err := NewService(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func packOutput(t *testing.T, parsed abi.ABI, method string, values ...interface{}) string {
	t.Helper()
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return hexutil.Encode(out)
}

func methodFor(parsed abi.ABI, data []byte) string {
	if len(data) < 4 {
		return ""
	}
	m, err := parsed.MethodById(data[:4])
	if err != nil {
		return ""
	}
	return m.Name
}

func TestReads(t *testing.T) {
	srv := newRPCServer(t, func(method string, params []json.RawMessage) (interface{}, *rpcError) {
		if method != "eth_call" {
			return nil, &rpcError{Code: -32601, Message: "unexpected " + method}
		}
		var args callArgs
		if err := json.Unmarshal(params[0], &args); err != nil {
			return nil, &rpcError{Code: -32602, Message: err.Error()}
		}

		switch methodFor(StreamVaultABI, args.payload()) {
		case "buffer":
			return packOutput(t, StreamVaultABI, "buffer", big.NewInt(1_500_000)), nil
		case "yieldEnabled":
			return packOutput(t, StreamVaultABI, "yieldEnabled", true), nil
		case "claimable":
			in, _ := StreamVaultABI.Methods["claimable"].Inputs.Unpack(args.payload()[4:])
			id := in[0].(*big.Int)
			return packOutput(t, StreamVaultABI, "claimable", new(big.Int).Mul(id, big.NewInt(100))), nil
		case "teller":
			return packOutput(t, StreamVaultABI, "teller", common.HexToAddress(testToken)), nil
		}

		switch methodFor(ERC20ABI, args.payload()) {
		case "decimals":
			return packOutput(t, ERC20ABI, "decimals", uint8(6)), nil
		case "allowance":
			return packOutput(t, ERC20ABI, "allowance", big.NewInt(77)), nil
		}
		return nil, &rpcError{Code: 3, Message: "execution reverted"}
	})
	svc := newTestService(t, srv.URL, nil)
	ctx := context.Background()
	vault := common.HexToAddress(testVault)

	buffer, err := svc.Buffer(ctx, vault)
	require.NoError(t, err)
	assert.Equal(t, "1500000", buffer.String())

	yield, err := svc.YieldEnabled(ctx, vault)
	require.NoError(t, err)
	assert.True(t, yield)

	claimable, err := svc.Claimable(ctx, vault, big.NewInt(4))
	require.NoError(t, err)
	assert.Equal(t, "400", claimable.String())

	teller, err := svc.Teller(ctx, vault)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testToken), teller)

	decimals, err := svc.Decimals(ctx, common.HexToAddress(testToken))
	require.NoError(t, err)
	assert.Equal(t, int32(6), decimals)

	allowance, err := svc.Allowance(ctx, common.HexToAddress(testToken), common.HexToAddress(testPayee), vault)
	require.NoError(t, err)
	assert.Equal(t, "77", allowance.String())

	_, err = svc.TotalRate(ctx, vault)
	assert.Error(t, err)
}

func TestSubmit(t *testing.T) {
	var sent sendTxArgs
	txHash := common.HexToHash("0xabc123")

	srv := newRPCServer(t, func(method string, params []json.RawMessage) (interface{}, *rpcError) {
		if method != "eth_sendTransaction" {
			return nil, &rpcError{Code: -32601, Message: "unexpected " + method}
		}
		if err := json.Unmarshal(params[0], &sent); err != nil {
			return nil, &rpcError{Code: -32602, Message: err.Error()}
		}
		return txHash.Hex(), nil
	})
	svc := newTestService(t, srv.URL, nil)

	call, err := ClaimRequest{Vault: testVault, StreamId: big.NewInt(2)}.Encode()
	require.NoError(t, err)

	hash, err := svc.Submit(context.Background(), call)
	require.NoError(t, err)

	assert.Equal(t, txHash, hash)
	assert.Equal(t, common.HexToAddress(testPayee), sent.From)
	assert.Equal(t, common.HexToAddress(testVault), sent.To)
	assert.Equal(t, call.Data, []byte(sent.Data))
	assert.Equal(t, "https://testnet.arcscan.app/tx/"+txHash.Hex(), svc.ExplorerTxUrl(hash))
}

func TestSubmit_Rejected(t *testing.T) {
	srv := newRPCServer(t, func(method string, params []json.RawMessage) (interface{}, *rpcError) {
		return nil, &rpcError{Code: 4001, Message: "user rejected"}
	})
	svc := newTestService(t, srv.URL, nil)

	call, err := ClaimRequest{Vault: testVault, StreamId: big.NewInt(2)}.Encode()
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), call)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user rejected")
}

func TestAccount_FromNode(t *testing.T) {
	srv := newRPCServer(t, func(method string, params []json.RawMessage) (interface{}, *rpcError) {
		switch method {
		case "eth_accounts":
			return []string{strings.ToLower(testToken)}, nil
		case "eth_chainId":
			return "0x4cef52", nil
		}
		return nil, &rpcError{Code: -32601, Message: "unexpected " + method}
	})
	svc := newTestService(t, srv.URL, func(cfg *models.ChainConfig) { cfg.WalletAddress = "" })

	account, err := svc.Account(context.Background())
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testToken), account)

	id, err := svc.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5042002), id)
}

func receiptJSON(hash common.Hash, status string) map[string]interface{} {
	return map[string]interface{}{
		"type":              "0x2",
		"status":            status,
		"cumulativeGasUsed": "0x5208",
		"gasUsed":           "0x5208",
		"logsBloom":         hexutil.Encode(make([]byte, types.BloomByteLength)),
		"logs":              []interface{}{},
		"transactionHash":   hash.Hex(),
		"transactionIndex":  "0x0",
		"blockHash":         common.HexToHash("0x01").Hex(),
		"blockNumber":       "0x10",
	}
}

func TestWaitForConfirmation(t *testing.T) {
	txHash := common.HexToHash("0xfeed")
	var lookups atomic.Int32

	srv := newRPCServer(t, func(method string, params []json.RawMessage) (interface{}, *rpcError) {
		if method != "eth_getTransactionReceipt" {
			return nil, &rpcError{Code: -32601, Message: "unexpected " + method}
		}
		if lookups.Add(1) < 3 {
			return nil, nil
		}
		return receiptJSON(txHash, "0x1"), nil
	})
	svc := newTestService(t, srv.URL, nil)

	receipt, err := svc.WaitForConfirmation(context.Background(), txHash)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, txHash, receipt.TxHash)
	assert.Equal(t, int32(3), lookups.Load())
}

func TestWaitForConfirmation_ContextDone(t *testing.T) {
	srv := newRPCServer(t, func(method string, params []json.RawMessage) (interface{}, *rpcError) {
		return nil, nil
	})
	svc := newTestService(t, srv.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := svc.WaitForConfirmation(ctx, common.HexToHash("0xbeef"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForConfirmation_PersistentErrors(t *testing.T) {
	srv := newRPCServer(t, func(method string, params []json.RawMessage) (interface{}, *rpcError) {
		return nil, &rpcError{Code: -32000, Message: "backend unavailable"}
	})
	svc := newTestService(t, srv.URL, nil)

	_, err := svc.WaitForConfirmation(context.Background(), common.HexToHash("0xbeef"))
	assert.ErrorIs(t, err, ErrReceiptUnavailable)
}

func TestResolveName(t *testing.T) {
	registry := common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")
	resolver := common.HexToAddress("0x4976fb03C32e5B8cfe2b6cCB31c09Ba78EBaBa41")
	target := common.HexToAddress(testPayee)
	node := Namehash("alice.eth")

	var mu sync.Mutex
	var calledNodes [][32]byte

	srv := newRPCServer(t, func(method string, params []json.RawMessage) (interface{}, *rpcError) {
		var args callArgs
		if err := json.Unmarshal(params[0], &args); err != nil {
			return nil, &rpcError{Code: -32602, Message: err.Error()}
		}
		name := methodFor(ensABI, args.payload())
		in, _ := ensABI.Methods[name].Inputs.Unpack(args.payload()[4:])
		mu.Lock()
		calledNodes = append(calledNodes, in[0].([32]byte))
		mu.Unlock()

		switch {
		case args.To == registry && name == "resolver":
			return packOutput(t, ensABI, "resolver", resolver), nil
		case args.To == resolver && name == "addr":
			if in[0].([32]byte) == node {
				return packOutput(t, ensABI, "addr", target), nil
			}
			return packOutput(t, ensABI, "addr", common.Address{}), nil
		}
		return nil, &rpcError{Code: 3, Message: "execution reverted"}
	})
	svc := newTestService(t, srv.URL, func(cfg *models.ChainConfig) { cfg.EnsRegistryAddress = registry.Hex() })

	addr, err := svc.ResolveName(context.Background(), "alice.eth", models.FamilyEVM)
	require.NoError(t, err)
	assert.Equal(t, target.Hex(), addr)

	addr, err = svc.ResolveName(context.Background(), "nobody.eth", models.FamilyEVM)
	require.NoError(t, err)
	assert.Empty(t, addr)

	addr, err = svc.ResolveName(context.Background(), "alice.sol", models.FamilySVM)
	require.NoError(t, err)
	assert.Empty(t, addr)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, calledNodes, 4, "svm lookups never reach the registry")
}
