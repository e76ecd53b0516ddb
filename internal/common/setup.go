package common

import (
	"context"
	"log"
	"strings"
	"time"

	"streamvault-go/internal/activity"
	"streamvault-go/internal/address"
	"streamvault-go/internal/chain"
	"streamvault-go/internal/config"
	"streamvault-go/internal/database"
	"streamvault-go/internal/listener"
	"streamvault-go/internal/models"
	"streamvault-go/internal/session"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	Chain       *chain.Service
	Journal     *database.Service
	Activity    *activity.Log
	Validator   *address.Validator
	Coordinator *session.Coordinator
	Status      *listener.StatusListener
	Location    *time.Location
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices connects to the chain and wires the stream session on
// top of it. The journal is attached as an activity sink when configured.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	if cfg.Vault.PresetsFile != "" {
		if err := ApplyPresetFromEnv(cfg); err != nil {
			return nil, err
		}
	}

	loc, err := config.Location(cfg.Schedule)
	if err != nil {
		return nil, err
	}

	chainService, err := chain.NewService(ctx, cfg.Chain)
	if err != nil {
		return nil, err
	}

	verifyChain(ctx, chainService, cfg)

	activityLog := activity.NewLog()

	var journal *database.Service
	if cfg.Journal.Path != "" {
		journal, err = database.NewService(ctx, cfg.Journal)
		if err != nil {
			chainService.Close()
			return nil, err
		}
		activityLog.AddSink(journal)
	} else {
		zap.L().Info("Activity journal disabled (JOURNAL_PATH not set)")
	}

	validator := address.NewValidator(chainService, cfg.Chain.RequestTimeout)

	coordinator := session.NewCoordinator(ctx, session.Params{
		Writer:    chainService,
		Validator: validator,
		Log:       activityLog,
		Vault:     cfg.Vault.Address,
		Token:     cfg.Vault.TokenAddress,
		Decimals:  cfg.Vault.TokenDecimals,
		ChainName: cfg.Chain.ChainName,
	})

	zap.L().Info("Stream session ready",
		zap.String("chain", cfg.Chain.ChainName),
		zap.String("vault", cfg.Vault.Address),
		zap.String("token", cfg.Vault.TokenAddress),
		zap.Bool("journal", journal != nil))

	return &Services{
		Chain:       chainService,
		Journal:     journal,
		Activity:    activityLog,
		Validator:   validator,
		Coordinator: coordinator,
		Status:      listener.NewStatusListener(chainService, cfg.Status),
		Location:    loc,
	}, nil
}

// verifyChain warns when the node or token disagree with the configuration.
// A node that cannot answer is not fatal here; writes will surface the error.
func verifyChain(ctx context.Context, chainService *chain.Service, cfg *models.Config) {
	chainId, err := chainService.ChainID(ctx)
	if err != nil {
		zap.L().Warn("Unable to verify chain id", zap.Error(err))
	} else if chainId != cfg.Chain.ChainId {
		zap.L().Warn("Connected chain differs from configuration",
			zap.Int64("configured", cfg.Chain.ChainId),
			zap.Int64("connected", chainId))
	}

	if !address.IsEVMAddress(cfg.Vault.TokenAddress) {
		return
	}
	decimals, err := chainService.Decimals(ctx, ethcommon.HexToAddress(cfg.Vault.TokenAddress))
	if err != nil {
		zap.L().Warn("Unable to read token decimals", zap.Error(err))
		return
	}
	if decimals != cfg.Vault.TokenDecimals {
		zap.L().Warn("Token decimals differ from configuration, using on-chain value",
			zap.Int32("configured", cfg.Vault.TokenDecimals),
			zap.Int32("on_chain", decimals))
		cfg.Vault.TokenDecimals = decimals
	}
}

// InitializeJournalOnly opens just the activity journal without an RPC
// connection. Useful for read-only operations like listing history.
func InitializeJournalOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	return database.NewService(ctx, cfg.Journal)
}

func (s *Services) Close() {
	if s.Status != nil {
		s.Status.Stop()
	}
	if s.Chain != nil {
		s.Chain.Close()
	}
	if s.Journal != nil {
		s.Journal.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
