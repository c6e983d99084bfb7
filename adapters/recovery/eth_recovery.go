package recovery

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/layer-3/warden/ports"
)

// EthRecovery recovers the signer of an EIP-191 personal-sign message. This
// matches what browser wallets produce for personal_sign: the message is
// prefixed with "\x19Ethereum Signed Message:\n" and its length before
// hashing.
type EthRecovery struct{}

var _ ports.SignatureRecovery = (*EthRecovery)(nil)

// NewEthRecovery creates a new personal-sign recoverer.
func NewEthRecovery() *EthRecovery {
	return &EthRecovery{}
}

// RecoverSigner returns the address that signed message.
func (r *EthRecovery) RecoverSigner(message, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(signature))
	}

	// Wallets encode the recovery id as 27/28; secp256k1 wants 0/1.
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}
