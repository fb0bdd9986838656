package config

import (
	"fmt"
	"strings"
)

// families maps each network family to its known variants, mirroring
// config.py's NETWORKS dict.
var families = map[string][]string{
	"POLYGON":  {"MAINNET", "AMOY"},
	"BLOXBERG": {"MAINNET", "TESTNET"},
	"IOTEX":    {"TESTNET"},
}

// AvailableNetworks returns every "<family>_<variant>" name, lowercased,
// e.g. "polygon_mainnet".
func AvailableNetworks() []string {
	var out []string
	for family, variants := range families {
		for _, variant := range variants {
			out = append(out, strings.ToLower(family+"_"+variant))
		}
	}
	return out
}

// autoNetworks is the fixed set selected by the "auto"/"openbeta"
// keywords, carried over from config.py's CURRENT_NETWORKS handling
//.
var autoNetworks = []string{"polygon_mainnet", "bloxberg_mainnet"}

// legacyNetworks maps a single bare legacy name to the modern
// "<family>_<variant>" name it now means.
var legacyNetworks = map[string]string{
	"bloxberg": "bloxberg_mainnet",
	"testnet":  "bloxberg_testnet",
	"polygon":  "polygon_mainnet",
}

// ResolveNetworks expands the --network CLI values into the concrete list
// of "<family>_<variant>" names to load, applying the alias rules from
// network selection rules:
//   - "all" (case-insensitive, anywhere in the list) selects every known
//     network.
//   - "auto" or "openbeta" selects the fixed auto set.
//   - a single legacy bare name ("bloxberg", "testnet", "polygon") maps to
//     its mainnet/testnet variant.
//   - otherwise the explicit list is validated against the known set.
func ResolveNetworks(selected []string) ([]string, error) {
	lower := make([]string, len(selected))
	for i, n := range selected {
		lower[i] = strings.ToLower(n)
	}

	for _, n := range lower {
		if n == "all" {
			return AvailableNetworks(), nil
		}
	}
	for _, n := range lower {
		if n == "auto" || n == "openbeta" {
			return append([]string(nil), autoNetworks...), nil
		}
	}
	if len(lower) == 1 {
		if mapped, ok := legacyNetworks[lower[0]]; ok {
			return []string{mapped}, nil
		}
	}

	available := make(map[string]struct{})
	for _, n := range AvailableNetworks() {
		available[n] = struct{}{}
	}
	var invalid []string
	for _, n := range lower {
		if _, ok := available[n]; !ok {
			invalid = append(invalid, n)
		}
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid network(s) specified: %s (available: %s)",
			strings.Join(invalid, ", "), strings.Join(AvailableNetworks(), ", "))
	}
	return lower, nil
}

// SplitNetworkName splits "polygon_mainnet" into ("POLYGON", "MAINNET").
func SplitNetworkName(name string) (family, variant string, err error) {
	idx := strings.LastIndexByte(name, '_')
	if idx < 0 {
		return "", "", fmt.Errorf("network name %q: expected \"<family>_<variant>\"", name)
	}
	return strings.ToUpper(name[:idx]), strings.ToUpper(name[idx+1:]), nil
}
