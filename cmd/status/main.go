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
	"math/big"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"streamvault-go/internal/activity"
	"streamvault-go/internal/address"
	"streamvault-go/internal/common"
	"streamvault-go/internal/config"
	"streamvault-go/internal/models"
	"streamvault-go/internal/schedule"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

func printVaultOverview(ctx context.Context, services *common.Services, cfg *models.Config, streamId string) {
	vault := ethcommon.HexToAddress(cfg.Vault.Address)
	decimals := cfg.Vault.TokenDecimals

	common.PrintHeader("STREAMVAULT STATUS", common.DefaultWidth)
	if chainId, err := services.Chain.ChainID(ctx); err == nil {
		fmt.Printf("Chain:          %s (%d)\n", cfg.Chain.ChainName, chainId)
	} else {
		fmt.Printf("Chain:          %s (unreachable: %v)\n", cfg.Chain.ChainName, err)
	}
	if account, err := services.Chain.Account(ctx); err == nil {
		fmt.Printf("Account:        %s\n", account.Hex())
	} else {
		fmt.Printf("Account:        (none: %v)\n", err)
	}
	fmt.Printf("Vault:          %s\n", vault.Hex())

	if target, err := services.Chain.BufferTarget(ctx, vault); err == nil {
		fmt.Printf("Buffer target:  %s\n", schedule.FormatMinorUnits(target, decimals))
	} else {
		zap.L().Warn("Unable to read buffer target", zap.Error(err))
	}
	if rate, err := services.Chain.TotalRate(ctx, vault); err == nil {
		fmt.Printf("Total rate:     %s /sec\n", schedule.FormatMinorUnits(rate, decimals))
	} else {
		zap.L().Warn("Unable to read total rate", zap.Error(err))
	}
	if next, err := services.Chain.NextId(ctx, vault); err == nil {
		fmt.Printf("Streams:        %s\n", new(big.Int).Sub(next, big.NewInt(1)).String())
	} else {
		zap.L().Warn("Unable to read next stream id", zap.Error(err))
	}
	if teller, err := services.Chain.Teller(ctx, vault); err == nil {
		fmt.Printf("Yield teller:   %s\n", address.ShortAddress(teller.Hex()))
	}
	if usyc, err := services.Chain.Usyc(ctx, vault); err == nil {
		fmt.Printf("Yield token:    %s\n", address.ShortAddress(usyc.Hex()))
	}

	if id, ok := new(big.Int).SetString(streamId, 10); ok && id.Sign() > 0 {
		if accrued, err := services.Chain.Accrued(ctx, vault, id); err == nil {
			fmt.Printf("Accrued #%s:    %s\n", id.String(), schedule.FormatMinorUnits(accrued, decimals))
		}
	}
	common.PrintSeparator("=", common.DefaultWidth)
}

func printReading(r models.StatusReading, decimals int32) {
	line := fmt.Sprintf("[%s] #%d", r.At.Format("15:04:05"), r.Seq)
	if r.Buffer != nil {
		line += fmt.Sprintf("  buffer %s%s%s", colorGreen, schedule.FormatMinorUnits(r.Buffer, decimals), colorReset)
	}
	if r.YieldEnabled != nil {
		if *r.YieldEnabled {
			line += "  yield " + colorGreen + "on" + colorReset
		} else {
			line += "  yield " + colorYellow + "off" + colorReset
		}
	}
	if r.Claimable != nil {
		line += fmt.Sprintf("  claimable(#%s) %s", r.StreamId, schedule.FormatMinorUnits(r.Claimable, decimals))
	}
	fmt.Println(line)

	reads := make([]string, 0, len(r.Errors))
	for read := range r.Errors {
		reads = append(reads, read)
	}
	sort.Strings(reads)
	for _, read := range reads {
		fmt.Printf("    %s%s: %s%s\n", colorRed, read, r.Errors[read], colorReset)
	}
}

func main() {
	streamFlag := flag.String("stream", "", "Optional stream id whose claimable amount is polled")
	vaultFlag := flag.String("vault", "", "Vault address (default: STREAM_VAULT_ADDRESS)")
	feedFlag := flag.Bool("feed", false, "Print the recent activity feed on exit")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}
	if *vaultFlag != "" {
		cfg.Vault.Address = *vaultFlag
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting StreamVault status monitor")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	printVaultOverview(ctx, services, cfg, *streamFlag)

	status := services.Status
	status.Subscribe(func(r models.StatusReading) {
		printReading(r, cfg.Vault.TokenDecimals)
	})
	status.SetStreamId(*streamFlag)
	status.SetVault(cfg.Vault.Address)
	if !status.Running() {
		zap.L().Fatal("Vault address is not valid, nothing to poll", zap.String("vault", cfg.Vault.Address))
	}
	services.Activity.Info("Status polling", address.ShortAddress(cfg.Vault.Address))

	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping status polling...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		status.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Status polling stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}

	if *feedFlag {
		fmt.Println()
		common.PrintActivity(services.Activity.Recent(activity.FeedSize), cfg.Chain.ExplorerUrl)
	}
}
