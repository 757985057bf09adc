package wallet

import "github.com/ethereum/go-ethereum/common"

// ShortAddress renders 0x1234...abcd for a full hex address. Anything else,
// including an already shortened address, is returned unchanged.
func ShortAddress(addr string) string {
	if len(addr) != 42 || !common.IsHexAddress(addr) {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
