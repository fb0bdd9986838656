package enclave

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// composeService mirrors the subset of the compose schema the node's
// single service definition needs.
type composeService struct {
	Image       string            `yaml:"image"`
	Restart     string            `yaml:"restart"`
	Command     []string          `yaml:"command,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
}

type composeFile struct {
	Version  string                     `yaml:"version"`
	Services map[string]composeService `yaml:"services"`
}

// restartPolicy is required compose restart policy.
const restartPolicy = "on-failure:20"

// writeComposeFile renders the docker-compose definition for job's
// etny-pynithy service and writes it to path.
func writeComposeFile(path string, job Job) error {
	cf := composeFile{
		Version: "3.8",
		Services: map[string]composeService{
			"etny-pynithy": {
				Image:   "localhost:5000/etny-pynithy",
				Restart: restartPolicy,
				Command: []string{job.OrderID, job.ComposeCID, job.ChallengeCID, job.ResultAddress, job.ResultPrivateKey},
			},
		},
	}
	data, err := yaml.Marshal(cf)
	if err != nil {
		return fmt.Errorf("render compose file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
