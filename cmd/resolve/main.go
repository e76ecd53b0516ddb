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
	"strings"

	"streamvault-go/internal/address"
	"streamvault-go/internal/common"
	"streamvault-go/internal/config"
	"streamvault-go/internal/models"

	"go.uber.org/zap"
)

type resolveStats struct {
	literal int
	named   int
	invalid int
}

func parseFamily(s string) (models.ChainFamily, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "EVM":
		return models.FamilyEVM, nil
	case "SVM":
		return models.FamilySVM, nil
	case "UTXO":
		return models.FamilyUTXO, nil
	case "MVM":
		return models.FamilyMVM, nil
	}
	return "", fmt.Errorf("unknown chain family %q (expected EVM, SVM, UTXO, MVM)", s)
}

func printResolution(res models.AddressResolution, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	detail := common.BoxDetailPrefix(isLast)

	switch res.Kind {
	case models.ResolutionLiteral:
		fmt.Printf("%s ✅ %-40s → %s (%s)\n", symbol, res.Input, res.Address, res.Family)
	case models.ResolutionNameService:
		fmt.Printf("%s 🔗 %-40s → %s (%s)\n", symbol, res.Input, res.Address, res.Family)
		fmt.Printf("%s   Short: %s\n", detail, address.ShortAddress(res.Address))
	default:
		fmt.Printf("%s ❌ %-40s\n", symbol, res.Input)
		fmt.Printf("%s   %s\n", detail, res.Reason)
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	familyFlag := flag.String("family", "EVM", "Expected chain family: EVM, SVM, UTXO, MVM")
	flag.Parse()

	inputs := flag.Args()
	if len(inputs) == 0 {
		logger.Fatal("Usage: resolve [--family EVM] <address-or-name>...")
	}

	family, err := parseFamily(*familyFlag)
	if err != nil {
		logger.Fatal("Invalid flags", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	common.PrintHeader(fmt.Sprintf("ADDRESS RESOLUTION (%s on %s)", family, cfg.Chain.ChainName), common.WideWidth)

	stats := resolveStats{}
	for i, input := range inputs {
		res := services.Validator.Validate(ctx, input, family, cfg.Chain.ChainName)
		switch res.Kind {
		case models.ResolutionLiteral:
			stats.literal++
		case models.ResolutionNameService:
			stats.named++
		default:
			stats.invalid++
		}
		printResolution(res, i == len(inputs)-1)
	}

	common.PrintFooter(fmt.Sprintf("Literal: %d | Resolved: %d | Invalid: %d",
		stats.literal, stats.named, stats.invalid), common.WideWidth)
}
