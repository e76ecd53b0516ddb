package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"streamvault-go/internal/address"
	"streamvault-go/internal/models"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type VaultPresetsConfig struct {
	Default string               `yaml:"default"`
	Vaults  []models.VaultPreset `yaml:"vaults"`
}

func LoadVaultPresets(presetsFile string) (*VaultPresetsConfig, error) {
	var presetsPath string
	if filepath.IsAbs(presetsFile) {
		presetsPath = presetsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		presetsPath = filepath.Join(wd, presetsFile)
	}

	data, err := os.ReadFile(presetsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", presetsFile, err)
	}

	return ParseVaultPresets(data)
}

func ParseVaultPresets(data []byte) (*VaultPresetsConfig, error) {
	var config VaultPresetsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse vault presets: %w", err)
	}

	seen := make(map[string]bool)
	for i, preset := range config.Vaults {
		if preset.Name == "" {
			return nil, fmt.Errorf("vault at index %d missing name", i)
		}
		key := strings.ToLower(preset.Name)
		if seen[key] {
			return nil, fmt.Errorf("duplicate vault preset %q", preset.Name)
		}
		seen[key] = true
		if !address.IsEVMAddress(preset.Address) {
			return nil, fmt.Errorf("vault %q has invalid address %q", preset.Name, preset.Address)
		}
		if preset.TokenAddress != "" && !address.IsEVMAddress(preset.TokenAddress) {
			return nil, fmt.Errorf("vault %q has invalid token address %q", preset.Name, preset.TokenAddress)
		}
		if preset.TokenDecimals < 0 || preset.TokenDecimals > 36 {
			return nil, fmt.Errorf("vault %q has invalid decimals %d", preset.Name, preset.TokenDecimals)
		}
	}

	if config.Default != "" {
		if _, ok := config.Find(config.Default); !ok {
			return nil, fmt.Errorf("default vault %q is not defined", config.Default)
		}
	}

	return &config, nil
}

// Find looks a preset up by case-insensitive name
func (c *VaultPresetsConfig) Find(name string) (models.VaultPreset, bool) {
	for _, preset := range c.Vaults {
		if strings.EqualFold(preset.Name, strings.TrimSpace(name)) {
			return preset, true
		}
	}
	return models.VaultPreset{}, false
}

// ApplyPreset overrides the vault settings with the preset's non-empty fields
func ApplyPreset(cfg *models.Config, preset models.VaultPreset) {
	cfg.Vault.Address = preset.Address
	if preset.TokenAddress != "" {
		cfg.Vault.TokenAddress = preset.TokenAddress
	}
	if preset.YieldTokenAddress != "" {
		cfg.Vault.YieldTokenAddress = preset.YieldTokenAddress
	}
	if preset.TokenDecimals > 0 {
		cfg.Vault.TokenDecimals = preset.TokenDecimals
	}
}

// ApplyPresetFromEnv loads the presets file and applies VAULT_PRESET, or the
// file's default when unset.
func ApplyPresetFromEnv(cfg *models.Config) error {
	presets, err := LoadVaultPresets(cfg.Vault.PresetsFile)
	if err != nil {
		return err
	}

	name := os.Getenv("VAULT_PRESET")
	if name == "" {
		name = presets.Default
	}
	if name == "" {
		return nil
	}

	preset, ok := presets.Find(name)
	if !ok {
		return fmt.Errorf("vault preset %q not found in %s", name, cfg.Vault.PresetsFile)
	}

	zap.L().Info("Using vault preset",
		zap.String("name", preset.Name),
		zap.String("vault", preset.Address))
	ApplyPreset(cfg, preset)
	return nil
}
