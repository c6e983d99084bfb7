package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// registryABI is the interface of the identity registry contract. The
// contract stores per-identity registration, the secret digest, and the
// bound wallet; setSecretFirstTime and bindWallet revert when their
// write-once guards fail.
const registryABI = `[
	{"name":"getUser","type":"function","stateMutability":"view",
	 "inputs":[{"name":"idHash","type":"bytes32"}],
	 "outputs":[{"name":"exists","type":"bool"},{"name":"hasSecret","type":"bool"},{"name":"boundWallet","type":"address"}]},
	{"name":"setSecretFirstTime","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"idHash","type":"bytes32"},{"name":"secretHash","type":"bytes32"}],
	 "outputs":[]},
	{"name":"verifySecret","type":"function","stateMutability":"view",
	 "inputs":[{"name":"idHash","type":"bytes32"},{"name":"secretHash","type":"bytes32"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"name":"bindWallet","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"idHash","type":"bytes32"},{"name":"wallet","type":"address"}],
	 "outputs":[]}
]`

// EthLedger talks to the identity registry contract. Writes are submitted
// with the operator key and awaited to a mined receipt before they are
// reported as confirmed; a reverted receipt is a failed write. The adapter
// never retries — a transaction that appears to fail may still land, so
// retrying here could double-submit.
type EthLedger struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	opts     *bind.TransactOpts
	logger   *zap.Logger
}

var _ ports.IdentityLedger = (*EthLedger)(nil)

// NewEthLedger creates a ledger client for the registry at addr.
func NewEthLedger(client *ethclient.Client, addr common.Address, opts *bind.TransactOpts, logger *zap.Logger) (*EthLedger, error) {
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}

	return &EthLedger{
		client:   client,
		contract: bind.NewBoundContract(addr, parsed, client, client, client),
		opts:     opts,
		logger:   logger,
	}, nil
}

// GetUser looks up the registration state for an identity hash.
func (l *EthLedger) GetUser(ctx context.Context, idHash common.Hash) (core.UserRecord, error) {
	var out []interface{}
	callOpts := &bind.CallOpts{Context: ctx}
	if err := l.contract.Call(callOpts, &out, "getUser", idHash); err != nil {
		return core.UserRecord{}, fmt.Errorf("getUser call failed: %w", err)
	}

	return core.UserRecord{
		Exists:      out[0].(bool),
		HasSecret:   out[1].(bool),
		BoundWallet: out[2].(common.Address),
	}, nil
}

// SetSecretFirstTime establishes the secret digest for an identity.
func (l *EthLedger) SetSecretFirstTime(ctx context.Context, idHash, secretHash common.Hash) error {
	if err := l.transact(ctx, "setSecretFirstTime", idHash, secretHash); err != nil {
		return err
	}

	l.logger.Info("secret established on ledger", zap.String("id_hash", idHash.Hex()))
	return nil
}

// VerifySecret checks a secret digest against the stored one.
func (l *EthLedger) VerifySecret(ctx context.Context, idHash, secretHash common.Hash) (bool, error) {
	var out []interface{}
	callOpts := &bind.CallOpts{Context: ctx}
	if err := l.contract.Call(callOpts, &out, "verifySecret", idHash, secretHash); err != nil {
		return false, fmt.Errorf("verifySecret call failed: %w", err)
	}

	return out[0].(bool), nil
}

// BindWallet records the identity-to-wallet binding on the ledger.
func (l *EthLedger) BindWallet(ctx context.Context, idHash common.Hash, wallet common.Address) error {
	if err := l.transact(ctx, "bindWallet", idHash, wallet); err != nil {
		return err
	}

	l.logger.Info("wallet bound on ledger",
		zap.String("id_hash", idHash.Hex()),
		zap.String("wallet", wallet.Hex()),
	)
	return nil
}

// transact submits a state-changing call and waits for its receipt.
func (l *EthLedger) transact(ctx context.Context, method string, params ...interface{}) error {
	opts := *l.opts
	opts.Context = ctx

	tx, err := l.contract.Transact(&opts, method, params...)
	if err != nil {
		return fmt.Errorf("failed to submit %s: %w", method, err)
	}

	receipt, err := bind.WaitMined(ctx, l.client, tx)
	if err != nil {
		return fmt.Errorf("failed to confirm %s (tx %s): %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%s reverted (tx %s)", method, tx.Hash().Hex())
	}

	return nil
}
