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

package chain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"streamvault-go/internal/models"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
)

var (
	ErrNoAccount          = errors.New("no wallet account available")
	ErrReceiptUnavailable = errors.New("receipt lookup failed repeatedly")
)

// Consecutive receipt lookup errors tolerated before giving up on a handle.
const maxReceiptErrors = 5

// Service is the JSON-RPC adapter for the StreamVault contract, its funding
// token and the chain's name service.
type Service struct {
	rpcClient *rpc.Client
	client    *ethclient.Client
	limiter   *rate.Limiter
	config    models.ChainConfig
}

func NewService(ctx context.Context, cfg models.ChainConfig) (*Service, error) {
	httpClient, err := createCustomHttpClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	rpcClient, err := rpc.DialOptions(ctx, cfg.RpcUrl, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to dial rpc %s: %w", cfg.RpcUrl, err)
	}

	limit := rate.Inf
	if cfg.ReadRate > 0 {
		limit = rate.Limit(cfg.ReadRate)
	}
	burst := cfg.ReadBurst
	if burst < 1 {
		burst = 1
	}

	zap.L().Info("Chain service initialized",
		zap.String("rpc_url", cfg.RpcUrl),
		zap.Int64("chain_id", cfg.ChainId),
		zap.Float64("read_rate", cfg.ReadRate))

	return &Service{
		rpcClient: rpcClient,
		client:    ethclient.NewClient(rpcClient),
		limiter:   rate.NewLimiter(limit, burst),
		config:    cfg,
	}, nil
}

func createCustomHttpClient() (*http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: tr,
		Timeout:   60 * time.Second,
	}, nil
}

func (s *Service) Close() {
	s.rpcClient.Close()
}

func (s *Service) ExplorerTxUrl(hash common.Hash) string {
	if s.config.ExplorerUrl == "" {
		return ""
	}
	return s.config.ExplorerUrl + "/tx/" + hash.Hex()
}

// ChainID returns the chain id reported by the node
func (s *Service) ChainID(ctx context.Context) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id, err := s.client.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("unable to get chain id: %w", err)
	}
	return id.Int64(), nil
}

// Account returns the configured wallet address, or the node's first unlocked
// account when none is configured.
func (s *Service) Account(ctx context.Context) (common.Address, error) {
	if s.config.WalletAddress != "" {
		return common.HexToAddress(s.config.WalletAddress), nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var accounts []common.Address
	if err := s.rpcClient.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return common.Address{}, fmt.Errorf("unable to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, ErrNoAccount
	}
	return accounts[0], nil
}

type sendTxArgs struct {
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

// Submit broadcasts an encoded call through eth_sendTransaction. Signing is done
// by the wallet or node behind the RPC endpoint.
func (s *Service) Submit(ctx context.Context, call ContractCall) (common.Hash, error) {
	from, err := s.Account(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var hash common.Hash
	args := sendTxArgs{From: from, To: call.To, Data: call.Data}
	if err := s.rpcClient.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, fmt.Errorf("unable to send %s transaction: %w", call.Method, err)
	}

	zap.L().Info("Transaction broadcast",
		zap.String("method", call.Method),
		zap.String("to", call.To.Hex()),
		zap.String("tx_hash", hash.Hex()))

	return hash, nil
}

// WaitForConfirmation polls for the receipt of hash until it is mined or ctx
// is done. A reverted transaction is returned with its receipt; interpreting
// the status is left to the caller.
func (s *Service) WaitForConfirmation(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	interval := s.config.ReceiptPollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		receipt, err := s.receipt(ctx, hash)
		switch {
		case err == nil:
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
			failures = 0
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			failures++
			zap.L().Warn("Receipt lookup failed",
				zap.String("tx_hash", hash.Hex()),
				zap.Int("failures", failures),
				zap.Error(err))
			if failures >= maxReceiptErrors {
				return nil, fmt.Errorf("%w: %s: %v", ErrReceiptUnavailable, hash.Hex(), err)
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.client.TransactionReceipt(ctx, hash)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.RequestTimeout)
}
