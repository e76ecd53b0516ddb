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
	"time"

	"streamvault-go/internal/common"
	"streamvault-go/internal/config"
	"streamvault-go/internal/models"
	"streamvault-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	kindFlag := flag.String("kind", "", "Filter by kind: info, ok, warn, tx (optional)")
	txFlag := flag.String("tx", "", "Filter by transaction hash (optional)")
	sinceFlag := flag.Duration("since", 0, "Only entries newer than this, e.g. 24h (optional)")
	limitFlag := flag.Int("limit", 20, "Maximum number of entries")
	offsetFlag := flag.Int("offset", 0, "Number of entries to skip")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if cfg.Journal.Path == "" {
		logger.Fatal("JOURNAL_PATH is not set, no activity history to show")
	}

	journal, err := common.InitializeJournalOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open activity journal", zap.Error(err))
	}
	defer journal.Close()

	params := store.ListActivityParams{
		Kind:   models.ActivityKind(*kindFlag),
		TxHash: *txFlag,
		Limit:  *limitFlag,
		Offset: *offsetFlag,
	}
	if *sinceFlag > 0 {
		params.Since = time.Now().Add(-*sinceFlag)
	}

	entries, err := journal.ListActivity(ctx, params)
	if err != nil {
		logger.Fatal("Failed to list activity", zap.Error(err))
	}

	total, err := journal.CountActivity(ctx)
	if err != nil {
		logger.Warn("Failed to count activity", zap.Error(err))
	}

	common.PrintHeader("ACTIVITY HISTORY", common.WideWidth)
	common.PrintActivity(entries, cfg.Chain.ExplorerUrl)
	common.PrintFooter(fmt.Sprintf("Showing %d of %d entries", len(entries), total), common.WideWidth)
}
