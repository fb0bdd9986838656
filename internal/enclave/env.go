package enclave

import (
	"fmt"
	"os"
	"strings"
)

// EnvVars is the content of the .env file uploaded alongside the payload
// and input, naming the chain id, contract, provider and challenge the
// enclave needs to build and submit its own transaction.
type EnvVars struct {
	ChainID          int64
	ContractAddress  string
	ProviderAddress  string
	ChallengeCID     string
	OrderID          string
}

// Render produces the KEY=VALUE lines docker-compose's env_file expects.
func (e EnvVars) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CHAIN_ID=%d\n", e.ChainID)
	fmt.Fprintf(&b, "CONTRACT_ADDRESS=%s\n", e.ContractAddress)
	fmt.Fprintf(&b, "PROVIDER_ADDRESS=%s\n", e.ProviderAddress)
	fmt.Fprintf(&b, "CHALLENGE_CID=%s\n", e.ChallengeCID)
	fmt.Fprintf(&b, "ORDER_ID=%s\n", e.OrderID)
	return b.String()
}

// WriteFile renders e and writes it to path.
func (e EnvVars) WriteFile(path string) error {
	return os.WriteFile(path, []byte(e.Render()), 0o600)
}
