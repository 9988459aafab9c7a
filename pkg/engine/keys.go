package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema. Ids are zero-padded to 20 digits so lexicographic key
// order matches numeric id order and prefix scans walk the arena in
// assignment order.
const (
	prefixOrder     = "ord:"
	prefixTrade     = "trd:"
	prefixWhitelist = "wl:"
	keyAdmin        = "admin"
)

// orderKey returns "ord:{id}" with the id zero-padded.
func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

// tradeKey returns "trd:{id}" with the id zero-padded.
func tradeKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixTrade, id))
}

// whitelistKey returns "wl:{asset}".
func whitelistKey(asset common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixWhitelist, asset.Hex()))
}

func adminKey() []byte { return []byte(keyAdmin) }

// keyUpperBound returns the exclusive upper bound for a prefix scan: the
// prefix with its last byte incremented.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
