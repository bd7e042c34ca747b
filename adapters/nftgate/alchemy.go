// Package nftgate implements the holdings gate against an Alchemy-style NFT
// indexing API.
package nftgate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/helios-labs/walletgate/core"
	"github.com/helios-labs/walletgate/ports"
	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Second

// Config holds the gate configuration. An empty ContractAddress disables the
// gate entirely; this is an operator toggle, not a failure mode.
type Config struct {
	Endpoint        string // e.g. https://eth-mainnet.g.alchemy.com/nft/v2
	APIKey          string
	ContractAddress string
	Timeout         time.Duration
}

// AlchemyGate queries the getNFTs endpoint for token holdings. A single
// best-effort request per verification, no retry, fail closed.
type AlchemyGate struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewAlchemyGate creates a new gate
func NewAlchemyGate(cfg Config, logger *zap.Logger) ports.HoldingsGate {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &AlchemyGate{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Enabled reports whether a gate contract is configured.
func (g *AlchemyGate) Enabled() bool {
	return g.cfg.ContractAddress != ""
}

type getNFTsResponse struct {
	TotalCount int `json:"totalCount"`
}

// HoldsToken reports whether the address owns at least one token of the
// configured contract. Transport errors, non-200 responses and undecodable
// bodies all return core.ErrGateUnavailable so callers cannot fail open.
func (g *AlchemyGate) HoldsToken(ctx context.Context, address string) (bool, error) {
	if !g.Enabled() {
		return true, nil
	}

	endpoint := strings.TrimSuffix(g.cfg.Endpoint, "/") + "/" + g.cfg.APIKey + "/getNFTs"

	params := url.Values{}
	params.Set("owner", address)
	params.Set("withMetadata", "false")
	params.Set("pageSize", "100")
	params.Add("contractAddresses[]", g.cfg.ContractAddress)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("failed to build holdings request: %w", core.ErrGateUnavailable)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("nft holdings lookup failed", zap.Error(err))
		return false, fmt.Errorf("holdings lookup failed: %w", core.ErrGateUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.logger.Warn("nft holdings lookup returned non-200",
			zap.Int("status", resp.StatusCode))
		return false, fmt.Errorf("holdings lookup returned %d: %w", resp.StatusCode, core.ErrGateUnavailable)
	}

	var body getNFTsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("failed to decode holdings response: %w", core.ErrGateUnavailable)
	}

	return body.TotalCount > 0, nil
}
