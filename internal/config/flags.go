package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ethernity-cloud/mvp-pox-node/internal/types"
)

// registerNetworkFlags walks types.NetworkConfig's fields via reflection and
// registers one "--<network>-<field>" flag per field, mirroring config.py's
// add_network_override_arguments, which iterates dataclasses.fields(NetworkConfig)
// to build its argparse group instead of hand-listing every flag.
func registerNetworkFlags(fs *pflag.FlagSet, network string) map[string]*string {
	values := make(map[string]*string)
	t := reflect.TypeOf(types.NetworkConfig{})
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("cfg")
		if tag == "" || tag == "-" {
			continue
		}
		flagName := fmt.Sprintf("%s-%s", network, strings.ReplaceAll(tag, "_", "-"))
		usage := fmt.Sprintf("override %s.%s for network %q", "NetworkConfig", tag, network)
		values[tag] = fs.String(flagName, "", usage)
	}
	return values
}

// applyNetworkOverrides copies non-empty flag-sourced values onto cfg,
// converting each field to its declared type. Unset flags (empty string)
// leave the defaulted field untouched, matching config.py's "only override
// what was explicitly passed" behavior.
func applyNetworkOverrides(cfg *types.NetworkConfig, overrides map[string]string) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("cfg")
		if tag == "" || tag == "-" {
			continue
		}
		raw, ok := overrides[tag]
		if !ok || raw == "" {
			continue
		}
		fv := v.Field(i)
		if err := setFieldFromString(fv, raw); err != nil {
			return fmt.Errorf("network %q field %q: %w", cfg.Name, tag, err)
		}
	}
	return nil
}

func setFieldFromString(fv reflect.Value, raw string) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := parseBoolLoose(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Uint8:
		// RewardType and similar small enums stored as uint8.
		n, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			return err
		}
		fv.SetUint(n)
	default:
		// NetworkType is a defined string type; reflect.String above already
		// catches it since its Kind() is still String.
		return fmt.Errorf("unsupported field kind %s", fv.Kind())
	}
	return nil
}
