package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// HashCredential computes the Keccak-256 digest of a raw credential value.
// It is used identically for the identity token (producing the idHash lookup
// key, safe to log) and for the PIN (producing the secret digest, which is
// the only form of the PIN that crosses any boundary). The digest matches
// what a Solidity registry computes with keccak256(abi.encodePacked(value)),
// so it doubles as the on-chain lookup key.
func HashCredential(raw string) common.Hash {
	return crypto.Keccak256Hash([]byte(raw))
}
