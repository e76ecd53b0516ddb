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
	"errors"
	"flag"
	"fmt"
	"time"

	"streamvault-go/internal/address"
	"streamvault-go/internal/common"
	"streamvault-go/internal/config"
	"streamvault-go/internal/models"
	"streamvault-go/internal/schedule"
	"streamvault-go/internal/session"

	"go.uber.org/zap"
)

type createRequest struct {
	payee string
	input models.ScheduleInput
}

func parseAndValidateFlags() (*createRequest, error) {
	payeeFlag := flag.String("payee", "", "Payee address or name (required)")
	amountFlag := flag.String("amount", "", "Amount streamed per rate unit, in tokens (required)")
	rateUnitFlag := flag.String("rate-unit", "hour", "Rate unit: sec, min, hour, day")
	startAtFlag := flag.String("start-at", "", "Scheduled local start (2006-01-02T15:04), or \"next\" for the next minute; default starts now")
	durationFlag := flag.String("duration", "1", "Stream duration count")
	durationUnitFlag := flag.String("duration-unit", "day", "Duration unit: sec, min, hour, day")
	endAtFlag := flag.String("end-at", "", "Fixed local end (2006-01-02T15:04); overrides --duration")
	flag.Parse()

	if *payeeFlag == "" || *amountFlag == "" {
		return nil, fmt.Errorf("flags are required: --payee, --amount")
	}

	rateUnit, err := schedule.ParseUnit(*rateUnitFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid --rate-unit: %w", err)
	}
	durationUnit, err := schedule.ParseUnit(*durationUnitFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid --duration-unit: %w", err)
	}

	input := models.ScheduleInput{
		Amount:        *amountFlag,
		RateUnit:      rateUnit,
		StartMode:     models.StartNow,
		EndMode:       models.EndDuration,
		DurationCount: *durationFlag,
		DurationUnit:  durationUnit,
	}
	if *startAtFlag != "" {
		input.StartMode = models.StartSchedule
		input.StartLocal = *startAtFlag
	}
	if *endAtFlag != "" {
		input.EndMode = models.EndFixed
		input.EndLocal = *endAtFlag
	}

	return &createRequest{payee: *payeeFlag, input: input}, nil
}

func printCreateSummary(cfg *models.Config, payee models.AddressResolution, derived models.DerivedSchedule, loc *time.Location) {
	decimals := cfg.Vault.TokenDecimals
	common.PrintHeader("CREATE STREAM", common.DefaultWidth)
	fmt.Printf("Chain:           %s\n", cfg.Chain.ChainName)
	fmt.Printf("Vault:           %s\n", cfg.Vault.Address)
	if payee.Kind == models.ResolutionNameService {
		fmt.Printf("Payee:           %s (%s)\n", payee.Address, payee.Input)
	} else {
		fmt.Printf("Payee:           %s\n", payee.Address)
	}
	fmt.Printf("Rate:            %s tokens/sec (%s minor units)\n",
		schedule.FormatMinorUnits(derived.RatePerSecond, decimals), derived.RatePerSecond.String())
	fmt.Printf("Start:           %s (%d)\n", schedule.FormatLocal(derived.Start, loc), derived.Start)
	fmt.Printf("Stop:            %s (%d)\n", schedule.FormatLocal(derived.Stop, loc), derived.Stop)
	common.PrintSeparator("=", common.DefaultWidth)
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

	payee, _ := coordinator.ValidatePayee(ctx, req.payee)
	if !payee.Valid() {
		common.PrintHeader("CREATE FAILED", common.DefaultWidth)
		fmt.Printf("Error: %s\n", payee.Reason)
		common.PrintSeparator("=", common.DefaultWidth)
		zap.L().Fatal("Payee rejected", zap.String("input", req.payee), zap.String("reason", payee.Reason))
	}
	if payee.Kind == models.ResolutionNameService {
		services.Activity.Info("Payee resolved", fmt.Sprintf("%s → %s", payee.Input, address.ShortAddress(payee.Address)))
	}

	if req.input.StartLocal == "next" {
		req.input.StartLocal = schedule.DefaultLocalStart(time.Now(), services.Location)
	}

	derived := schedule.Derive(req.input, time.Now(), services.Location, cfg.Vault.TokenDecimals)
	printCreateSummary(cfg, payee, derived, services.Location)

	if _, err := coordinator.Create(ctx, payee, derived); err != nil {
		var ineligible *session.IneligibleError
		if errors.As(err, &ineligible) {
			fmt.Printf("\n❌ Cannot create stream (%s): %s\n\n", ineligible.Predicate, ineligible.Detail)
			zap.L().Fatal("Create not eligible", zap.String("predicate", ineligible.Predicate), zap.String("detail", ineligible.Detail))
		}
		fmt.Printf("\n❌ Create failed: %v\n\n", err)
		zap.L().Fatal("Create failed", zap.Error(err))
	}

	attempt, err := coordinator.Wait(ctx, models.ActionCreate)
	if err != nil {
		zap.L().Fatal("Failed waiting for create", zap.Error(err))
	}

	fmt.Println()
	common.PrintActivity(services.Activity.Recent(5), cfg.Chain.ExplorerUrl)

	if attempt.Phase != models.PhaseConfirmed {
		common.PrintFooter("❌ "+common.FormatAttempt(attempt), common.DefaultWidth)
		return
	}

	fmt.Printf("\nTransaction: %s\n", services.Chain.ExplorerTxUrl(attempt.Handle))

	sess := coordinator.Session()
	if sess.HasStreamId {
		common.PrintFooter(fmt.Sprintf("✅ Stream #%s created", sess.StreamId), common.DefaultWidth)
	} else {
		common.PrintFooter("✅ Stream created (id not found in receipt)", common.DefaultWidth)
	}
}
