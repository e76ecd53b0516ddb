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
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	streamFlag := flag.String("stream", "", "Stream id to claim from (required)")
	flag.Parse()

	streamId, err := session.ParseStreamId(*streamFlag)
	if err != nil {
		zap.L().Fatal("Invalid flags", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	vault := ethcommon.HexToAddress(cfg.Vault.Address)
	claimable, err := services.Chain.Claimable(ctx, vault, streamId)
	if err != nil {
		zap.L().Warn("Unable to read claimable amount", zap.Error(err))
	} else {
		fmt.Printf("Claimable on stream #%s: %s\n", streamId.String(),
			schedule.FormatMinorUnits(claimable, cfg.Vault.TokenDecimals))
	}

	if _, err := services.Coordinator.Claim(ctx, *streamFlag); err != nil {
		zap.L().Fatal("Claim failed", zap.Error(err))
	}

	attempt, err := services.Coordinator.Wait(ctx, models.ActionClaim)
	if err != nil {
		zap.L().Fatal("Failed waiting for claim", zap.Error(err))
	}

	fmt.Println()
	common.PrintActivity(services.Activity.Recent(5), cfg.Chain.ExplorerUrl)

	if attempt.Phase != models.PhaseConfirmed {
		common.PrintFooter("❌ "+common.FormatAttempt(attempt), common.DefaultWidth)
		return
	}
	common.PrintFooter(fmt.Sprintf("✅ Claimed from stream #%s", streamId.String()), common.DefaultWidth)
}
