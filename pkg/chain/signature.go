package chain

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// VerifySignature checks an EIP-191 personal message signature against the
// claimed address. Malformed input of any kind yields false.
func VerifySignature(message, signature, address string) bool {
	if !common.IsHexAddress(address) {
		return false
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "0x"))
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return false
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return false
	}
	return strings.EqualFold(crypto.PubkeyToAddress(*pub).Hex(), address)
}

// SameAddress compares two hex addresses case-insensitively.
func SameAddress(a, b string) bool {
	return common.IsHexAddress(a) && common.IsHexAddress(b) &&
		common.HexToAddress(a) == common.HexToAddress(b)
}
