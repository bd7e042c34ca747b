package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/helios-labs/walletgate/adapters/events"
	"github.com/helios-labs/walletgate/adapters/nftgate"
	"github.com/helios-labs/walletgate/adapters/siwe"
	"github.com/helios-labs/walletgate/adapters/store"
	"github.com/helios-labs/walletgate/adapters/tokenizer"
	"github.com/helios-labs/walletgate/core"
	"github.com/helios-labs/walletgate/internal/config"
	"github.com/helios-labs/walletgate/internal/logging"
	"github.com/helios-labs/walletgate/internal/metrics"
	"github.com/helios-labs/walletgate/service"
	transport "github.com/helios-labs/walletgate/transport/http"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	signKey, err := loadSigningKey(cfg.SigningKeyPEM)
	if err != nil {
		logger.Fatal("failed to load signing key", zap.Error(err))
	}
	if cfg.SigningKeyPEM == "" {
		logger.Warn("JWT_SIGNING_KEY_PEM not set, using an ephemeral key; tokens will not survive a restart")
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to parse redis URL", zap.Error(err))
	}
	redisClient := redis.NewClient(opts)

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: redisClient},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		logger.Fatal("failed to create redis publisher", zap.Error(err))
	}

	sqliteStore, err := store.NewSQLiteStore(cfg.SQLitePath)
	if err != nil {
		logger.Fatal("failed to open sqlite store", zap.Error(err))
	}
	defer sqliteStore.Close()

	// Seed the default team so the apex host resolves on a fresh database.
	team, err := sqliteStore.EnsureTeam(context.Background(), &core.Team{
		Subdomain: cfg.DefaultTeamSubdomain,
		Name:      cfg.DefaultTeamName,
	})
	if err != nil {
		logger.Fatal("failed to ensure default team", zap.Error(err))
	}
	logger.Info("default team ready",
		zap.String("team", team.ID),
		zap.String("subdomain", team.Subdomain))

	gate := nftgate.NewAlchemyGate(nftgate.Config{
		Endpoint:        cfg.NFTEndpoint,
		APIKey:          cfg.NFTAPIKey,
		ContractAddress: cfg.NFTContractAddress,
		Timeout:         cfg.NFTTimeout,
	}, logger)
	if gate.Enabled() {
		logger.Info("nft gate enabled", zap.String("contract", cfg.NFTContractAddress))
	} else {
		logger.Info("nft gate disabled, all verified wallets are authorized")
	}

	authService := service.NewAuthService(
		service.Config{
			AppURL:               cfg.AppURL,
			Binding:              cfg.Binding,
			AllowedDomains:       cfg.AllowedDomains,
			DefaultTeamSubdomain: cfg.DefaultTeamSubdomain,
			ChallengeTTL:         cfg.ChallengeTTL,
			AccessTTL:            cfg.AccessTTL,
			RefreshTTL:           cfg.RefreshTTL,
		},
		tokenizer.NewJWTTokenizer(signKey),
		siwe.NewCodec(cfg.SiweStatement),
		store.NewRedisKeyStore(redisClient, "walletgate:nonce:"),
		store.NewRedisKeyStore(redisClient, "walletgate:revoked:"),
		sqliteStore,
		sqliteStore,
		gate,
		events.NewWatermillPublisher(publisher),
		logger,
	)

	m := metrics.New()
	router := transport.SetupRouter(authService, m, logger)

	logger.Info("walletgate listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("binding", string(cfg.Binding)))

	if err := router.Run(cfg.ListenAddr); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// loadSigningKey parses a PEM-encoded EC private key, or generates an
// ephemeral P-256 key when none is configured.
func loadSigningKey(keyPEM string) (*ecdsa.PrivateKey, error) {
	if keyPEM == "" {
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	block, _ := pem.Decode([]byte(keyPEM))
	if block == nil {
		return nil, errors.New("no PEM block in JWT_SIGNING_KEY_PEM")
	}

	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse EC private key: %w", err)
	}

	return key, nil
}
