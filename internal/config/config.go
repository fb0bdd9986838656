// Package config builds the node's CLI/env surface: the global Options
//, the network registry and alias resolution (registry.go), and
// the per-network override flags reflected off types.NetworkConfig
// (flags.go).
package config

import (
	"fmt"
	"math/big"
	"os"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ethernity-cloud/mvp-pox-node/internal/types"
)

// Options holds the global CLI flags, independent of any
// single network.
type Options struct {
	PrivateKey string
	CPU        int
	Memory     int
	Storage    int
	Bandwidth  int
	Duration   int
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Price      *big.Int
	Networks   []string
	IPFSHost   string
	IPFSLocal  string
}

// HardwareDefaults supplies the live-probed fallbacks for --cpu/--memory/
// --storage, so this package doesn't need to import internal/hwinfo
// directly.
type HardwareDefaults struct {
	CPU     int
	Memory  int
	Storage int
}

// LoadDotEnv loads .env into the process environment if present, matching
// config.py's unconditional `if os.path.exists('.env'): load_dotenv('.env')`.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// RegisterGlobalFlags attaches the global flags to cmd, with
// hardware-probed defaults for the resource flags.
func RegisterGlobalFlags(cmd *cobra.Command, hw HardwareDefaults) {
	fs := cmd.Flags()
	fs.StringP("privatekey", "k", "", "Ethereum DP private key")
	fs.IntP("cpu", "c", hw.CPU, "number of CPUs to advertise")
	fs.IntP("memory", "m", hw.Memory, "amount of memory to advertise (GB)")
	fs.IntP("storage", "s", hw.Storage, "amount of storage to advertise (GB)")
	fs.IntP("bandwidth", "b", 1, "amount of bandwidth to advertise (GB)")
	fs.IntP("duration", "t", 60, "task duration allocation (minutes)")
	fs.StringP("endpoint", "e", "localhost:9000", "S3-compatible object store endpoint")
	fs.StringP("access_key", "u", "swiftstreamadmin", "object store access key")
	fs.StringP("secret_key", "p", "swiftstreamadmin", "object store secret key")
	fs.StringP("price", "v", "3", "task price per hour")
	fs.StringSliceP("network", "n", []string{"all"}, "networks to run on")
	fs.StringP("ipfshost", "i", os.Getenv("IPFS_HOST"), "default IPFS gateway")
	fs.StringP("ipfslocal", "l", os.Getenv("CLIENT_CONNECT_URL"), "local IPFS daemon connect URL")

	cmd.MarkFlagRequired("privatekey")
}

// LoadOptions reads the global flags registered by RegisterGlobalFlags back
// out of cmd into an Options value.
func LoadOptions(cmd *cobra.Command) (*Options, error) {
	fs := cmd.Flags()
	opt := &Options{}
	var err error

	if opt.PrivateKey, err = fs.GetString("privatekey"); err != nil {
		return nil, err
	}
	if opt.CPU, err = fs.GetInt("cpu"); err != nil {
		return nil, err
	}
	if opt.Memory, err = fs.GetInt("memory"); err != nil {
		return nil, err
	}
	if opt.Storage, err = fs.GetInt("storage"); err != nil {
		return nil, err
	}
	if opt.Bandwidth, err = fs.GetInt("bandwidth"); err != nil {
		return nil, err
	}
	if opt.Duration, err = fs.GetInt("duration"); err != nil {
		return nil, err
	}
	if opt.Endpoint, err = fs.GetString("endpoint"); err != nil {
		return nil, err
	}
	if opt.AccessKey, err = fs.GetString("access_key"); err != nil {
		return nil, err
	}
	if opt.SecretKey, err = fs.GetString("secret_key"); err != nil {
		return nil, err
	}
	priceStr, err := fs.GetString("price")
	if err != nil {
		return nil, err
	}
	price, ok := new(big.Float).SetString(priceStr)
	if !ok {
		return nil, fmt.Errorf("--price %q is not a number", priceStr)
	}
	priceInt, _ := price.Int(nil)
	opt.Price = priceInt
	if opt.Networks, err = fs.GetStringSlice("network"); err != nil {
		return nil, err
	}
	if opt.IPFSHost, err = fs.GetString("ipfshost"); err != nil {
		return nil, err
	}
	if opt.IPFSLocal, err = fs.GetString("ipfslocal"); err != nil {
		return nil, err
	}
	return opt, nil
}

// RegisterNetworkFlags registers the per-network override flags
// ("--<network>-<field>") for every "<family>_<variant>" name available.
// It returns the flag-destination pointers keyed by network name, for
// LoadNetworkConfig to read back.
func RegisterNetworkFlags(fs *pflag.FlagSet) map[string]map[string]*string {
	dest := make(map[string]map[string]*string)
	for _, name := range AvailableNetworks() {
		dest[name] = registerNetworkFlags(fs, name)
	}
	return dest
}

// LoadNetworkConfig builds the NetworkConfig for one "<family>_<variant>"
// network name, reading each field from its "<PREFIX>_<FIELD>" environment
// variable unless a non-empty CLI override was supplied, per config.py's
// parse_networks. Returns an error naming every missing, un-overridden
// environment variable at once.
func LoadNetworkConfig(name string, overrides map[string]string) (types.NetworkConfig, error) {
	prefix := strings.ToUpper(name)
	cfg := types.NetworkConfig{Name: name}

	v := reflect.ValueOf(&cfg).Elem()
	t := v.Type()
	var missing []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("cfg")
		if tag == "" || tag == "-" {
			continue
		}
		if raw, ok := overrides[tag]; ok && raw != "" {
			if err := setFieldFromString(v.Field(i), raw); err != nil {
				return types.NetworkConfig{}, fmt.Errorf("network %q field %q: %w", name, tag, err)
			}
			continue
		}
		envVar := prefix + "_" + strings.ToUpper(tag)
		raw, ok := os.LookupEnv(envVar)
		if !ok {
			missing = append(missing, envVar)
			continue
		}
		if err := setFieldFromString(v.Field(i), raw); err != nil {
			return types.NetworkConfig{}, fmt.Errorf("env %s: %w", envVar, err)
		}
	}
	if len(missing) > 0 {
		return types.NetworkConfig{}, fmt.Errorf("network %q: missing required environment variables: %s",
			name, strings.Join(missing, ", "))
	}
	return cfg, nil
}

// flattenOverrides reads back the flag destinations RegisterNetworkFlags
// populated for one network into a plain map for LoadNetworkConfig.
func flattenOverrides(dest map[string]*string) map[string]string {
	out := make(map[string]string, len(dest))
	for field, ptr := range dest {
		if ptr != nil {
			out[field] = *ptr
		}
	}
	return out
}

// LoadNetworkConfigs resolves the --network selection and loads a
// NetworkConfig for each, applying any CLI overrides registered by
// RegisterNetworkFlags.
func LoadNetworkConfigs(selected []string, overridesByNetwork map[string]map[string]*string) ([]types.NetworkConfig, error) {
	names, err := ResolveNetworks(selected)
	if err != nil {
		return nil, err
	}
	var out []types.NetworkConfig
	for _, name := range names {
		overrides := flattenOverrides(overridesByNetwork[name])
		cfg, err := LoadNetworkConfig(name, overrides)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

// ParsePrice converts a human price string ("3" or "3.5") to its integer
// on-chain representation. Exposed for callers that parse --price outside
// LoadOptions (e.g. tests).
func ParsePrice(raw string) (*big.Int, error) {
	f, ok := new(big.Float).SetString(raw)
	if !ok {
		return nil, fmt.Errorf("%q is not a number", raw)
	}
	i, _ := f.Int(nil)
	return i, nil
}

// parseBoolLoose accepts the same truthy/falsy spellings as Python's
// distutils.strtobool, since environment variables in deployed .env files
// were authored against the original node.
func parseBoolLoose(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "1", "y", "yes", "t", "true", "on":
		return true, nil
	case "0", "n", "no", "f", "false", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value %q", raw)
	}
}
