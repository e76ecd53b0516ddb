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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"streamvault-go/internal/models"
)

// Arc testnet defaults.
const (
	DefaultRpcUrl            = "https://rpc.testnet.arc.network"
	DefaultChainId           = 5042002
	DefaultChainName         = "Arc Testnet"
	DefaultExplorerUrl       = "https://testnet.arcscan.app"
	DefaultVaultAddress      = "0x27d3A90FFc2beb44F6641bB1489b13F4069897Ae"
	DefaultTokenAddress      = "0x3600000000000000000000000000000000000000"
	DefaultYieldTokenAddress = "0xe9185F0c5F296Ed1797AaE4238D26CCaBEadb86C"
	DefaultTokenDecimals     = 6
	DefaultEnsRegistry       = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"
)

func Load() (*models.Config, error) {
	requestTimeout, err := getEnvDuration("RPC_REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	receiptPollInterval, err := getEnvDuration("RECEIPT_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return nil, err
	}

	// Polling runs at whole-second resolution; fractions round up.
	pollInterval, err := getEnvDuration("STATUS_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return nil, err
	}

	tickTimeout, err := getEnvDuration("STATUS_TICK_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}
	if tickTimeout == 0 {
		tickTimeout = pollInterval
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	readRate, err := getEnvFloat("RPC_READ_RATE", 10)
	if err != nil {
		return nil, err
	}

	decimals := getEnvInt("TOKEN_DECIMALS", DefaultTokenDecimals)
	if decimals < 0 || decimals > 36 {
		return nil, fmt.Errorf("invalid TOKEN_DECIMALS: %d (expected 0-36)", decimals)
	}

	return &models.Config{
		Chain: models.ChainConfig{
			RpcUrl:              getEnvString("ARC_RPC_URL", DefaultRpcUrl),
			ChainId:             int64(getEnvInt("CHAIN_ID", DefaultChainId)),
			ChainName:           getEnvString("CHAIN_NAME", DefaultChainName),
			ExplorerUrl:         getEnvString("EXPLORER_URL", DefaultExplorerUrl),
			WalletAddress:       getEnvString("WALLET_ADDRESS", ""),
			RequestTimeout:      requestTimeout,
			ReadRate:            readRate,
			ReadBurst:           getEnvInt("RPC_READ_BURST", 5),
			ReceiptPollInterval: receiptPollInterval,
			EnsRegistryAddress:  getEnvString("ENS_REGISTRY_ADDRESS", DefaultEnsRegistry),
		},
		Vault: models.VaultConfig{
			Address:           getEnvString("STREAM_VAULT_ADDRESS", DefaultVaultAddress),
			TokenAddress:      getEnvString("TOKEN_ADDRESS", DefaultTokenAddress),
			YieldTokenAddress: getEnvString("YIELD_TOKEN_ADDRESS", DefaultYieldTokenAddress),
			TokenDecimals:     int32(decimals),
			PresetsFile:       getEnvString("VAULT_PRESETS_FILE", ""),
		},
		Status: models.StatusConfig{
			PollInterval: pollInterval,
			TickTimeout:  tickTimeout,
		},
		Schedule: models.ScheduleConfig{
			TimeZone: getEnvString("SCHEDULE_TIMEZONE", "Local"),
		},
		Journal: models.JournalConfig{
			Path:            getEnvString("JOURNAL_PATH", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 4),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
	}, nil
}

// Location returns the time zone used to interpret local schedule inputs.
func Location(cfg models.ScheduleConfig) (*time.Location, error) {
	if cfg.TimeZone == "" || cfg.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_TIMEZONE %q: %w", cfg.TimeZone, err)
	}
	return loc, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %q (%w)", key, value, err)
		}
		return f, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
