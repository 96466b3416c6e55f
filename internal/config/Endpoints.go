package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Network is a preset of RPC endpoint and contract accounts for one NEAR network.
type Network struct {
	Name             string
	NodeURL          string
	RefContractID    string // Exchange
	OracleContractID string // Price oracle
	BurrowContractID string // Lending ledger
	WrapNearID       string // Wrapped NEAR token, the agent's base asset
}

// Networks are the presets selectable with NEAR_ENV.
var Networks = map[string]Network{
	"mainnet": {
		Name:             "mainnet",
		NodeURL:          "https://rpc.mainnet.near.org",
		RefContractID:    "v2.ref-finance.near",
		OracleContractID: "priceoracle.near",
		BurrowContractID: "contract.main.burrow.near",
		WrapNearID:       "wrap.near",
	},
	"testnet": {
		Name:             "testnet",
		NodeURL:          "https://rpc.testnet.near.org",
		RefContractID:    "ref-finance-101.testnet",
		OracleContractID: "priceoracle.testnet",
		BurrowContractID: "contract.1638481328.burrow.testnet",
		WrapNearID:       "wrap.testnet",
	},
}

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// NearEnv is the selected network preset.
	NearEnv string
	// NodeURL is the NEAR JSON-RPC endpoint.
	NodeURL string

	RefContractID    string
	OracleContractID string
	BurrowContractID string
	WrapNearID       string

	// RedisAddr is the snapshot cache. Empty disables caching.
	RedisAddr string
	// RPCRequestsPerSecond limits calls to the node.
	RPCRequestsPerSecond int
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	NearEnv = strings.ToLower(getEnvOrDefault("NEAR_ENV", "mainnet"))
	network, ok := Networks[NearEnv]
	if !ok {
		return fmt.Errorf("environment variable NEAR_ENV must be one of mainnet, testnet, got: %s", NearEnv)
	}

	NodeURL = getEnvOrDefault("NODE_URL", network.NodeURL)
	RefContractID = getEnvOrDefault("REF_CONTRACT_ID", network.RefContractID)
	OracleContractID = getEnvOrDefault("ORACLE_CONTRACT_ID", network.OracleContractID)
	BurrowContractID = getEnvOrDefault("BURROW_CONTRACT_ID", network.BurrowContractID)
	WrapNearID = getEnvOrDefault("WRAP_NEAR_ID", network.WrapNearID)
	RedisAddr = getEnvOrDefault("REDIS_ADDR", "")

	var err error
	RPCRequestsPerSecond, err = getEnvAsInt("RPC_REQUESTS_PER_SECOND", 20)
	if err != nil {
		return err
	}

	log.Debug().
		Str("NodeURL", NodeURL).
		Str("Burrow", BurrowContractID).
		Str("Ref", RefContractID).
		Str("Oracle", OracleContractID).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
