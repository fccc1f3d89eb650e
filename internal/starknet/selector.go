package starknet

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// selectorMask keeps the low 250 bits of a keccak digest.
var selectorMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

// Selector returns the entry point selector for name: keccak256(name)
// truncated to 250 bits, as 0x-prefixed hex.
func Selector(name string) string {
	digest := new(big.Int).SetBytes(crypto.Keccak256([]byte(name)))
	return hexutil.EncodeBig(digest.And(digest, selectorMask))
}
