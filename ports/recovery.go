package ports

import "github.com/ethereum/go-ethereum/common"

// SignatureRecovery recovers the address that signed a message. The engine
// never implements the cryptography itself; it only asserts that the
// recovered address equals the claimed one.
type SignatureRecovery interface {
	RecoverSigner(message, signature []byte) (common.Address, error)
}
