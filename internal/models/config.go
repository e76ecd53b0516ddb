package models

import "time"

// Config represents the application configuration
type Config struct {
	Chain    ChainConfig
	Vault    VaultConfig
	Status   StatusConfig
	Schedule ScheduleConfig
	Journal  JournalConfig
}

// ChainConfig holds RPC connection and wallet settings
type ChainConfig struct {
	RpcUrl              string
	ChainId             int64
	ChainName           string
	ExplorerUrl         string
	WalletAddress       string
	RequestTimeout      time.Duration
	ReadRate            float64
	ReadBurst           int
	ReceiptPollInterval time.Duration
	EnsRegistryAddress  string
}

// VaultConfig holds the StreamVault and token addresses used by the tools
type VaultConfig struct {
	Address           string
	TokenAddress      string
	YieldTokenAddress string
	TokenDecimals     int32
	PresetsFile       string
}

// StatusConfig holds live status polling settings
type StatusConfig struct {
	PollInterval time.Duration
	TickTimeout  time.Duration
}

// ScheduleConfig holds settings for interpreting user-entered local times
type ScheduleConfig struct {
	TimeZone string
}

// JournalConfig holds activity journal database settings. An empty Path
// disables the journal.
type JournalConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}
