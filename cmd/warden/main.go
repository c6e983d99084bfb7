package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/layer-3/warden/adapters/events"
	"github.com/layer-3/warden/adapters/ledger"
	"github.com/layer-3/warden/adapters/recovery"
	"github.com/layer-3/warden/adapters/store"
	"github.com/layer-3/warden/adapters/tokenizer"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/internal/config"
	"github.com/layer-3/warden/service"
	httptransport "github.com/layer-3/warden/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Server.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis backs sessions, binding mirror and challenge nonces. Without it
	// nothing works, so fail fast.
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach Redis: %w", err)
	}

	// Connect to the chain carrying the identity registry.
	ethClient, err := ethclient.DialContext(ctx, cfg.Ledger.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to dial ledger RPC: %w", err)
	}
	chainID, err := ethClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to query chain ID: %w", err)
	}
	if !common.IsHexAddress(cfg.Ledger.ContractAddress) {
		return fmt.Errorf("invalid registry contract address %q", cfg.Ledger.ContractAddress)
	}

	operatorKey, err := crypto.HexToECDSA(cfg.Ledger.OperatorPrivateKey)
	if err != nil {
		return fmt.Errorf("failed to parse operator key: %w", err)
	}
	txOpts, err := bind.NewKeyedTransactorWithChainID(operatorKey, chainID)
	if err != nil {
		return fmt.Errorf("failed to build transactor: %w", err)
	}

	identityLedger, err := ledger.NewEthLedger(ethClient, common.HexToAddress(cfg.Ledger.ContractAddress), txOpts, logger)
	if err != nil {
		return fmt.Errorf("failed to build ledger adapter: %w", err)
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: redisClient},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return fmt.Errorf("failed to create event publisher: %w", err)
	}

	signKey, err := loadSigningKey(cfg.Auth.SigningKey, logger)
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}

	windows := core.Windows{
		WalletOnly:  cfg.Auth.WalletOnlyWindow,
		FullRelogin: cfg.Auth.FullReloginWindow,
	}
	if windows.WalletOnly >= windows.FullRelogin {
		// Tier computation stays deterministic either way; the wallet-only
		// tier just never occurs with windows like these.
		logger.Warn("wallet-only window is not shorter than the full-relogin window",
			zap.Duration("wallet_only", windows.WalletOnly),
			zap.Duration("full_relogin", windows.FullRelogin))
	}

	redisStore := store.NewRedisStore(redisClient)
	authService := service.NewAuthService(
		identityLedger,
		redisStore,
		service.NewBindingResolver(redisStore, identityLedger, logger),
		service.NewChallengeIssuer(redisStore, cfg.Auth.ChallengeTTL),
		recovery.NewEthRecovery(),
		tokenizer.NewJWTTokenizer(signKey, cfg.Auth.SessionTokenTTL),
		events.NewWatermillPublisher(publisher),
		windows,
		logger,
	)

	secureCookies := cfg.Server.Environment == "production"
	router := httptransport.SetupRouter(authService, secureCookies, logger)
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", cfg.Server.Addr()),
			zap.String("chain_id", chainID.String()),
			zap.String("registry", cfg.Ledger.ContractAddress))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// loadSigningKey parses the hex-encoded DER session signing key, or generates
// an ephemeral one when none is configured. Ephemeral keys invalidate every
// outstanding token on restart, so that mode is only good for development.
func loadSigningKey(hexKey string, logger *zap.Logger) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		logger.Warn("AUTH_SIGNING_KEY not set, generating an ephemeral session signing key")
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}
	der, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("signing key is not valid hex: %w", err)
	}
	key, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("signing key is not a valid EC private key: %w", err)
	}
	return key, nil
}
