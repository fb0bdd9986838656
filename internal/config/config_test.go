package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveNetworksAll(t *testing.T) {
	names, err := ResolveNetworks([]string{"all"})
	require.NoError(t, err)
	require.ElementsMatch(t, AvailableNetworks(), names)
}

func TestResolveNetworksAuto(t *testing.T) {
	names, err := ResolveNetworks([]string{"auto"})
	require.NoError(t, err)
	require.Equal(t, []string{"polygon_mainnet", "bloxberg_mainnet"}, names)

	names, err = ResolveNetworks([]string{"openbeta"})
	require.NoError(t, err)
	require.Equal(t, []string{"polygon_mainnet", "bloxberg_mainnet"}, names)
}

func TestResolveNetworksLegacySingle(t *testing.T) {
	names, err := ResolveNetworks([]string{"bloxberg"})
	require.NoError(t, err)
	require.Equal(t, []string{"bloxberg_mainnet"}, names)

	names, err = ResolveNetworks([]string{"testnet"})
	require.NoError(t, err)
	require.Equal(t, []string{"bloxberg_testnet"}, names)
}

func TestResolveNetworksExplicitList(t *testing.T) {
	names, err := ResolveNetworks([]string{"polygon_mainnet", "iotex_testnet"})
	require.NoError(t, err)
	require.Equal(t, []string{"polygon_mainnet", "iotex_testnet"}, names)
}

func TestResolveNetworksRejectsUnknown(t *testing.T) {
	_, err := ResolveNetworks([]string{"not_a_network"})
	require.Error(t, err)
}

func TestSplitNetworkName(t *testing.T) {
	family, variant, err := SplitNetworkName("polygon_mainnet")
	require.NoError(t, err)
	require.Equal(t, "POLYGON", family)
	require.Equal(t, "MAINNET", variant)
}

func TestLoadNetworkConfigFromEnv(t *testing.T) {
	const prefix = "POLYGON_MAINNET_"
	env := map[string]string{
		"NETWORK_TYPE":                     "MAINNET",
		"RPC_URL":                          "https://rpc.example/polygon",
		"RPC_DELAY":                        "0",
		"CHAIN_ID":                         "137",
		"BLOCK_TIME":                       "2",
		"CONTRACT_ADDRESS":                 "0xabc",
		"HEARTBEAT_CONTRACT_ADDRESS":       "0xdef",
		"IMAGE_REGISTRY_CONTRACT_ADDRESS":  "0x123",
		"TOKEN_NAME":                       "ETNY",
		"GAS_PRICE_MEASURE":                "gwei",
		"MINIMUM_GAS_AT_START":             "100",
		"TASK_EXECUTION_PRICE_DEFAULT":     "3",
		"INTEGRATION_TEST_IMAGE":           "etny/integration-test",
		"TRUSTEDZONE_IMAGES":               "img-a,img-b",
		"EIP1559":                          "true",
		"MIDDLEWARE":                       "poa",
		"GAS_PRICE":                        "0",
		"GAS_LIMIT":                        "3000000",
		"MAX_PRIORITY_FEE_PER_GAS":         "30",
		"MAX_FEE_PER_GAS":                  "300",
		"REWARD_TYPE":                      "1",
		"NETWORK_FEE":                      "5",
		"ENCLAVE_FEE":                      "10",
	}
	for k, v := range env {
		t.Setenv(prefix+k, v)
	}

	cfg, err := LoadNetworkConfig("polygon_mainnet", nil)
	require.NoError(t, err)
	require.Equal(t, "polygon_mainnet", cfg.Name)
	require.EqualValues(t, 137, cfg.ChainID)
	require.True(t, cfg.EIP1559)
	require.Equal(t, []string{"img-a", "img-b"}, cfg.TrustedzoneImageList())
	require.False(t, cfg.IsTestnet())
}

func TestLoadNetworkConfigMissingVarsReportsAll(t *testing.T) {
	_, err := LoadNetworkConfig("iotex_testnet", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "IOTEX_TESTNET_RPC_URL")
}

func TestLoadNetworkConfigCLIOverrideWins(t *testing.T) {
	t.Setenv("IOTEX_TESTNET_CHAIN_ID", "4690")
	overrides := map[string]string{"chain_id": "9999"}

	_, err := LoadNetworkConfig("iotex_testnet", overrides)
	// Still missing every other required var, but the override must have
	// been consulted before falling back to the environment for chain_id.
	require.Error(t, err)
	require.NotContains(t, err.Error(), "IOTEX_TESTNET_CHAIN_ID")
}

func TestParsePrice(t *testing.T) {
	v, err := ParsePrice("3")
	require.NoError(t, err)
	require.Equal(t, "3", v.String())
}
