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

package main

import (
	"context"
	"flag"
	"fmt"

	"streamvault-go/internal/common"
	"streamvault-go/internal/config"
	"streamvault-go/internal/models"
	"streamvault-go/internal/schedule"
	"streamvault-go/internal/session"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fundRequest struct {
	streamId string
	amount   decimal.Decimal
	vault    string
	token    string
}

func parseAndValidateFlags() (*fundRequest, error) {
	streamFlag := flag.String("stream", "", "Stream id to fund (required)")
	amountFlag := flag.String("amount", "", "Amount to deposit, in tokens (required)")
	vaultFlag := flag.String("vault", "", "Vault address (default: STREAM_VAULT_ADDRESS)")
	tokenFlag := flag.String("token", "", "Funding token address (default: TOKEN_ADDRESS)")
	flag.Parse()

	if *streamFlag == "" || *amountFlag == "" {
		return nil, fmt.Errorf("all flags are required: --stream, --amount")
	}

	if _, err := session.ParseStreamId(*streamFlag); err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	return &fundRequest{streamId: *streamFlag, amount: amount, vault: *vaultFlag, token: *tokenFlag}, nil
}

// logCurrentAllowance is informational; approval is always re-submitted so the
// session knows the amount it may fund.
func logCurrentAllowance(ctx context.Context, services *common.Services, cfg *models.Config) {
	owner, err := services.Chain.Account(ctx)
	if err != nil {
		zap.L().Warn("Unable to determine sending account", zap.Error(err))
		return
	}
	allowance, err := services.Chain.Allowance(ctx,
		ethcommon.HexToAddress(cfg.Vault.TokenAddress), owner, ethcommon.HexToAddress(cfg.Vault.Address))
	if err != nil {
		zap.L().Warn("Unable to read current allowance", zap.Error(err))
		return
	}
	zap.L().Info("Current allowance",
		zap.String("owner", owner.Hex()),
		zap.String("allowance", schedule.FormatMinorUnits(allowance, cfg.Vault.TokenDecimals)))
}

func waitFor(ctx context.Context, coordinator *session.Coordinator, action models.Action) models.TransactionAttempt {
	attempt, err := coordinator.Wait(ctx, action)
	if err != nil {
		zap.L().Fatal("Failed waiting for transaction", zap.String("action", string(action)), zap.Error(err))
	}
	fmt.Println(common.FormatAttempt(attempt))
	return attempt
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	req, err := parseAndValidateFlags()
	if err != nil {
		zap.L().Fatal("Invalid flags", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	zap.L().Info("Initializing services")
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	coordinator := services.Coordinator
	if req.vault != "" {
		coordinator.SetVault(req.vault)
		cfg.Vault.Address = req.vault
	}
	if req.token != "" {
		coordinator.SetToken(req.token)
		cfg.Vault.TokenAddress = req.token
	}

	common.PrintHeader("FUND STREAM", common.DefaultWidth)
	fmt.Printf("Vault:   %s\n", cfg.Vault.Address)
	fmt.Printf("Token:   %s\n", cfg.Vault.TokenAddress)
	fmt.Printf("Stream:  #%s\n", req.streamId)
	fmt.Printf("Amount:  %s\n", req.amount.String())
	common.PrintSeparator("=", common.DefaultWidth)

	logCurrentAllowance(ctx, services, cfg)

	amount := req.amount.String()

	fmt.Println("\n🔄 Approving vault to pull funds...")
	if _, err := coordinator.Approve(ctx, amount); err != nil {
		zap.L().Fatal("Approve failed", zap.Error(err))
	}
	if attempt := waitFor(ctx, coordinator, models.ActionApprove); attempt.Phase != models.PhaseConfirmed {
		common.PrintActivity(services.Activity.Recent(5), cfg.Chain.ExplorerUrl)
		common.PrintFooter("❌ Approval did not confirm, not funding", common.DefaultWidth)
		return
	}

	fmt.Println("\n🔄 Funding stream...")
	if _, err := coordinator.Fund(ctx, req.streamId, amount); err != nil {
		zap.L().Fatal("Fund failed", zap.Error(err))
	}
	attempt := waitFor(ctx, coordinator, models.ActionFund)

	fmt.Println()
	common.PrintActivity(services.Activity.Recent(5), cfg.Chain.ExplorerUrl)

	if attempt.Phase != models.PhaseConfirmed {
		common.PrintFooter("❌ "+common.FormatAttempt(attempt), common.DefaultWidth)
		return
	}
	common.PrintFooter(fmt.Sprintf("✅ Stream #%s funded with %s", req.streamId, amount), common.DefaultWidth)
}
