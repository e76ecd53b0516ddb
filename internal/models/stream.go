package models

import (
	"math/big"
	"time"
)

// StreamSession is one attempted or confirmed stream creation
type StreamSession struct {
	Schedule    DerivedSchedule    `json:"schedule"`
	Payee       AddressResolution  `json:"payee"`
	Attempt     TransactionAttempt `json:"attempt"`
	StreamId    string             `json:"stream_id,omitempty"`
	HasStreamId bool               `json:"has_stream_id"`
}

// StatusReading is the result of one live status poll of a vault
type StatusReading struct {
	Seq          uint64            `json:"seq"`
	At           time.Time         `json:"at"`
	Vault        string            `json:"vault"`
	Buffer       *big.Int          `json:"buffer,omitempty"`
	YieldEnabled *bool             `json:"yield_enabled,omitempty"`
	StreamId     string            `json:"stream_id,omitempty"`
	Claimable    *big.Int          `json:"claimable,omitempty"`
	Errors       map[string]string `json:"errors,omitempty"`
}

// VaultPreset is a named vault deployment with its funding token
type VaultPreset struct {
	Name              string `yaml:"name"`
	Address           string `yaml:"address"`
	TokenAddress      string `yaml:"token"`
	YieldTokenAddress string `yaml:"yield_token"`
	TokenDecimals     int32  `yaml:"decimals"`
}
