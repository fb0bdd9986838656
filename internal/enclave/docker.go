package enclave

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"
)

// registryContainer and registryPort match the original node's fixed local
// registry setup (_examples/original_source/node/etny-node.py's
// process_order).
const (
	registryContainer = "registry"
	registryPort      = "5000:5000"
	composeFileName   = "docker-compose-etny-pynithy.yml"
)

// DockerExecutor is the subprocess-based Executor: docker, docker-compose
// and the local image registry, all invoked as external commands,
// fire-and-forget from the core's viewpoint.
type DockerExecutor struct {
	composeDir string // directory holding docker-compose-etny-pynithy.yml
	log        zerolog.Logger
}

// NewDockerExecutor builds a DockerExecutor that writes/reads its compose
// file under composeDir (mirrors the original's "docker/" directory).
func NewDockerExecutor(composeDir string, log zerolog.Logger) *DockerExecutor {
	return &DockerExecutor{composeDir: composeDir, log: log.With().Str("component", "enclave.docker").Logger()}
}

func (d *DockerExecutor) containerName(job Job) string {
	return "etny-pynithy-" + job.OrderID
}

func (d *DockerExecutor) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%v: %w: %s", args, err, stderr.String())
	}
	return nil
}

// ResetRegistry stops and removes the previous registry container, prunes
// all unused images (docker system prune -a), then starts a fresh registry
// bound to job.RegistryDir.
func (d *DockerExecutor) ResetRegistry(ctx context.Context, job Job) error {
	d.log.Info().Msg("stopping previous docker registry")
	_ = d.run(ctx, "docker", "stop", registryContainer)
	_ = d.run(ctx, "docker", "rm", registryContainer)

	d.log.Info().Msg("pruning docker images")
	if err := d.run(ctx, "docker", "system", "prune", "-a", "-f"); err != nil {
		d.log.Warn().Err(err).Msg("docker prune failed, continuing")
	}

	d.log.Info().Str("dir", job.RegistryDir).Msg("starting fresh docker registry")
	return d.run(ctx, "docker", "run", "-d", "--restart=always", "-p", registryPort,
		"--name", registryContainer, "-v", job.RegistryDir+":/var/lib/registry", "registry:2")
}

// Run removes any stale container for this order, renders the compose
// file, and launches the stack detached.
func (d *DockerExecutor) Run(ctx context.Context, job Job) error {
	name := d.containerName(job)

	d.log.Info().Str("container", name).Msg("removing stale container")
	_ = d.run(ctx, "docker", "rm", "-f", name)

	composePath := filepath.Join(d.composeDir, composeFileName)
	if err := writeComposeFile(composePath, job); err != nil {
		return err
	}

	d.log.Info().Str("container", name).Msg("starting docker-compose stack")
	return d.run(ctx, "docker-compose", "-f", composePath, "run", "--rm", "-d",
		"--name", name, "etny-pynithy",
		job.OrderID, job.ComposeCID, job.ChallengeCID, job.ResultAddress, job.ResultPrivateKey)
}

// Stop tears down the order's container.
func (d *DockerExecutor) Stop(ctx context.Context, job Job) error {
	return d.run(ctx, "docker", "rm", "-f", d.containerName(job))
}
