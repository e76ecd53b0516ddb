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

package address

import (
	"bytes"
	"crypto/sha256"
	"regexp"
	"strings"

	"streamvault-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

var (
	evmPattern    = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	mvmPattern    = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	bech32Pattern = regexp.MustCompile(`^(bc1|tb1|bcrt1)[02-9ac-hj-np-z]{8,87}$`)
	namePattern   = regexp.MustCompile(`(?i)^([a-z0-9_-]+\.)+[a-z0-9-]{2,}$`)
)

// P2PKH and P2SH version bytes for mainnet and testnet.
var utxoVersions = []byte{0x00, 0x05, 0x6f, 0xc4}

// Classify inspects value for a literal address of a known network family.
// It performs no I/O. EVM addresses are returned in EIP-55 checksum form.
func Classify(value string) (string, models.ChainFamily, bool) {
	v := strings.TrimSpace(value)
	switch {
	case evmPattern.MatchString(v):
		return common.HexToAddress(v).Hex(), models.FamilyEVM, true
	case mvmPattern.MatchString(v):
		return strings.ToLower(v), models.FamilyMVM, true
	}

	if isBech32(v) {
		return strings.ToLower(v), models.FamilyUTXO, true
	}
	if isBase58Check(v) {
		return v, models.FamilyUTXO, true
	}
	if isSolana(v) {
		return v, models.FamilySVM, true
	}
	return "", "", false
}

// IsEVMAddress reports whether value is a 0x-prefixed 20-byte hex address
func IsEVMAddress(value string) bool {
	return evmPattern.MatchString(strings.TrimSpace(value))
}

// LooksLikeName reports whether value has the dotted shape of a name-service
// handle such as "alice.eth". Hex-prefixed values never qualify.
func LooksLikeName(value string) bool {
	v := strings.TrimSpace(value)
	if strings.HasPrefix(strings.ToLower(v), "0x") {
		return false
	}
	return namePattern.MatchString(v)
}

// ShortAddress renders an address as 0x1234…abcd
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func isBech32(v string) bool {
	// mixed case is not allowed
	if v != strings.ToLower(v) && v != strings.ToUpper(v) {
		return false
	}
	return bech32Pattern.MatchString(strings.ToLower(v))
}

func isBase58Check(v string) bool {
	if len(v) < 26 || len(v) > 35 {
		return false
	}
	raw, err := base58.Decode(v)
	if err != nil || len(raw) != 25 {
		return false
	}
	if bytes.IndexByte(utxoVersions, raw[0]) < 0 {
		return false
	}
	first := sha256.Sum256(raw[:21])
	second := sha256.Sum256(first[:])
	return bytes.Equal(second[:4], raw[21:])
}

func isSolana(v string) bool {
	if len(v) < 32 || len(v) > 44 {
		return false
	}
	raw, err := base58.Decode(v)
	return err == nil && len(raw) == 32
}
