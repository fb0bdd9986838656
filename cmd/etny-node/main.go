// Command etny-node is the PoX compute-provider agent: it boots one
// internal/worker.Worker per selected network, wires each to its own chain
// connection, content store and object store, and runs them under a
// internal/supervisor.Supervisor until asked to stop.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ethernity-cloud/mvp-pox-node/internal/cache"
	"github.com/ethernity-cloud/mvp-pox-node/internal/chain"
	"github.com/ethernity-cloud/mvp-pox-node/internal/config"
	"github.com/ethernity-cloud/mvp-pox-node/internal/content"
	"github.com/ethernity-cloud/mvp-pox-node/internal/enclave"
	"github.com/ethernity-cloud/mvp-pox-node/internal/events"
	"github.com/ethernity-cloud/mvp-pox-node/internal/hwinfo"
	"github.com/ethernity-cloud/mvp-pox-node/internal/log"
	"github.com/ethernity-cloud/mvp-pox-node/internal/metrics"
	"github.com/ethernity-cloud/mvp-pox-node/internal/objectstore"
	"github.com/ethernity-cloud/mvp-pox-node/internal/supervisor"
	"github.com/ethernity-cloud/mvp-pox-node/internal/types"
	"github.com/ethernity-cloud/mvp-pox-node/internal/worker"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "etny-node",
	Short:   "Ethernity Cloud PoX compute-provider node",
	Version: Version,
	RunE:    run,
}

var networkOverrides map[string]map[string]*string

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "output logs in JSON format")
	rootCmd.PersistentFlags().String("log-file", "", "optional rotating log file path, alongside stdout")
	rootCmd.PersistentFlags().String("data-dir", "./data", "base directory for on-disk caches, registry and work trees")
	rootCmd.PersistentFlags().String("abi-path", "./contracts/PoX.abi.json", "path to the PoX contract ABI JSON")
	rootCmd.PersistentFlags().String("metrics-addr", "127.0.0.1:9090", "Prometheus metrics listen address")

	hw := hwinfo.Probe("./data")
	config.RegisterGlobalFlags(rootCmd, config.HardwareDefaults{CPU: hw.CPU, Memory: hw.Memory, Storage: hw.Storage})
	networkOverrides = config.RegisterNetworkFlags(rootCmd.Flags())
}

func run(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	logFile, _ := cmd.Flags().GetString("log-file")
	var fileCfg *log.FileConfig
	if logFile != "" {
		fileCfg = &log.FileConfig{Path: logFile}
	}
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON, File: fileCfg})

	opt, err := config.LoadOptions(cmd)
	if err != nil {
		return fmt.Errorf("load options: %w", err)
	}
	networkCfgs, err := config.LoadNetworkConfigs(opt.Networks, networkOverrides)
	if err != nil {
		return fmt.Errorf("load networks: %w", err)
	}
	if len(networkCfgs) == 0 {
		return fmt.Errorf("no networks resolved from --network %v", opt.Networks)
	}

	abiPath, _ := cmd.Flags().GetString("abi-path")
	abiJSON, err := os.ReadFile(abiPath)
	if err != nil {
		return fmt.Errorf("read contract abi %s: %w", abiPath, err)
	}

	dataDir, _ := cmd.Flags().GetString("data-dir")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	nodeUUID, err := loadOrCreateUUID(filepath.Join(dataDir, "uuid.etny"))
	if err != nil {
		return fmt.Errorf("load node uuid: %w", err)
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	go serveMetrics(metricsAddr, log.Logger)

	sup := supervisor.New(log.Logger)

	names := make([]string, 0, len(networkCfgs))
	workers := make(map[string]*worker.Worker, len(networkCfgs))
	var sources []metrics.Source

	for _, netCfg := range networkCfgs {
		w, err := buildWorker(ctx, netCfg, *opt, string(abiJSON), nodeUUID, dataDir, broker, sup, log.Logger)
		if err != nil {
			return fmt.Errorf("build worker for %s: %w", netCfg.Name, err)
		}
		names = append(names, netCfg.Name)
		workers[netCfg.Name] = w
		sources = append(sources, w.Pipeline())
	}

	collector := metrics.NewCollector(sources...)
	collector.Start()
	defer collector.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	log.Logger.Info().Strs("networks", names).Msg("starting etny-node")
	sup.Run(ctx, supervisor.RestartInterval, names, func(ctx context.Context, network string) {
		if err := workers[network].Run(ctx); err != nil {
			log.Logger.Error().Err(err).Str("network", network).Msg("worker exited")
		}
	})
	log.Logger.Info().Msg("etny-node stopped")
	return nil
}

// buildWorker wires one network's chain connection, content store, object
// store and docker executor into a worker.Worker.
func buildWorker(ctx context.Context, netCfg types.NetworkConfig, opt config.Options, abiJSON, nodeUUID, dataDir string, broker *events.Broker, sup *supervisor.Supervisor, logger zerolog.Logger) (*worker.Worker, error) {
	netLog := log.WithNetwork(netCfg.Name)

	chainClient, err := chain.Dial(ctx, netCfg.Name, netCfg, abiJSON, opt.PrivateKey, logger)
	if err != nil {
		return nil, fmt.Errorf("dial chain: %w", err)
	}

	paths := cache.NewPaths(dataDir, netCfg.Name)
	if err := os.MkdirAll(paths.ContentDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}

	contentClient, err := content.NewClient(content.Config{
		Network:     netCfg.Name,
		DaemonURL:   opt.IPFSLocal,
		GatewayURL:  opt.IPFSHost,
		ContentDir:  paths.ContentDir(),
		LedgerPath:  paths.IPFSCacheFile(),
		PinnedPath:  filepath.Join(dataDir, "cache", netCfg.Name, "pinned_cache.txt"),
		LedgerLimit: 0,
	}, netLog)
	if err != nil {
		return nil, fmt.Errorf("open content client: %w", err)
	}

	store, err := objectstore.New(ctx, objectstore.Config{
		Endpoint:  opt.Endpoint,
		AccessKey: opt.AccessKey,
		SecretKey: opt.SecretKey,
	}, netLog)
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}

	registryDir := filepath.Join(dataDir, "registry", netCfg.Name)
	workDir := filepath.Join(dataDir, "work", netCfg.Name)
	executor := enclave.NewDockerExecutor(registryDir, netLog)

	return worker.New(worker.Config{
		Network:         netCfg.Name,
		NetworkConfig:   netCfg,
		Chain:           chainClient,
		Gate:            sup,
		IntegrationTest: sup,
		Store:           store,
		Content:         contentClient,
		Executor:        executor,
		Paths:           paths,
		RegistryDir:     registryDir,
		WorkDir:         workDir,
		ResultAddress:   chainClient.Address().Hex(),
		ResultPrivateKey: opt.PrivateKey,
		IntegrationTestJob: enclave.IntegrationTestJob{
			RegistryDir: registryDir,
			ImageCID:    netCfg.IntegrationTestImage,
			Bucket:      "etny-integration-test-" + netCfg.Name,
		},
		Advertisement: worker.Advertisement{
			CPU:       uint64(opt.CPU),
			Memory:    uint64(opt.Memory),
			Storage:   uint64(opt.Storage),
			Bandwidth: uint64(opt.Bandwidth),
			Duration:  uint64(opt.Duration),
			Price:     opt.Price,
			UUID:      nodeUUID,
		},
		Broker: broker,
		Log:    logger,
	})
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

// loadOrCreateUUID reads the node's persisted install UUID, generating and
// persisting a new one on first run, so restarts keep advertising under
// the same identity.
func loadOrCreateUUID(path string) (string, error) {
	if body, err := os.ReadFile(path); err == nil {
		if id := string(body); id != "" {
			return id, nil
		}
	}
	id := uuid.New().String()
	if err := os.WriteFile(path, []byte(id), 0o644); err != nil {
		return "", err
	}
	return id, nil
}
