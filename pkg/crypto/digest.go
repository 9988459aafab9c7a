package crypto

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Canonical request digests. Each message is a fixed, human-readable string
// keccak-hashed before signing, so any wallet capable of raw-hash signing
// can produce a valid request. The nonce is chosen by the client (typically
// unix milliseconds) and folded into the digest to keep otherwise identical
// requests from sharing a signature.

// OrderDigest is the digest a maker signs to create an order.
func OrderDigest(asset common.Address, amount, price int64, isBuy bool, nonce int64) []byte {
	side := "sell"
	if isBuy {
		side = "buy"
	}
	msg := fmt.Sprintf("tokendex/create:%s:%d:%d:%s:%d", asset.Hex(), amount, price, side, nonce)
	return crypto.Keccak256([]byte(msg))
}

// CancelDigest is the digest a maker signs to cancel an order.
func CancelDigest(orderID uint64, nonce int64) []byte {
	msg := fmt.Sprintf("tokendex/cancel:%d:%d", orderID, nonce)
	return crypto.Keccak256([]byte(msg))
}

// AdminDigest is the digest the owner signs for an admin operation. op is
// the operation name and value its string-encoded argument.
func AdminDigest(op, value string, nonce int64) []byte {
	msg := fmt.Sprintf("tokendex/admin:%s:%s:%d", op, value, nonce)
	return crypto.Keccak256([]byte(msg))
}
