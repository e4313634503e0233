package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cwloscar "github.com/grycap/cwl-oscar-go"
	"github.com/grycap/cwl-oscar-go/internal/blobstore"
	"github.com/grycap/cwl-oscar-go/pkg/cwlhost"
	"github.com/grycap/cwl-oscar-go/pkg/log"
	"github.com/grycap/cwl-oscar-go/pkg/metrics"
	"github.com/grycap/cwl-oscar-go/pkg/orchestrator"
	"github.com/grycap/cwl-oscar-go/pkg/registry"
	"github.com/grycap/cwl-oscar-go/pkg/servicemgr"
	"github.com/grycap/cwl-oscar-go/pkg/types"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "cwl-oscar-runner",
	Short:   "Execution backend for dispatching CWL CommandLineTool steps to OSCAR clusters",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("cwl-oscar-runner version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(level),
		JSONOutput: jsonOutput,
	})
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cwl-oscar-runner version %s (commit %s)\n", Version, Commit)
	},
}

// rawToolSpec is the on-disk JSON shape for a single CommandLineTool step,
// since types.ToolSpec.Requirements/Hints hold concrete requirement structs
// behind an interface that cannot be unmarshaled directly.
type rawToolSpec struct {
	Class       string   `json:"class"`
	BaseCommand []string `json:"baseCommand"`
	Requirements []rawRequirement `json:"requirements"`
	Hints        []rawRequirement `json:"hints"`
}

type rawRequirement struct {
	Class      string            `json:"class"`
	DockerPull string            `json:"dockerPull,omitempty"`
	RAMMin     int64             `json:"ramMin,omitempty"`
	CoresMin   float64           `json:"coresMin,omitempty"`
	EnvDef     map[string]string `json:"envDef,omitempty"`
}

func (r rawToolSpec) toToolSpec() *types.ToolSpec {
	spec := &types.ToolSpec{
		Class:       r.Class,
		BaseCommand: r.BaseCommand,
	}
	spec.Requirements = convertRequirements(r.Requirements)
	spec.Hints = convertRequirements(r.Hints)
	return spec
}

func convertRequirements(raw []rawRequirement) []any {
	out := make([]any, 0, len(raw))
	for _, r := range raw {
		switch r.Class {
		case "DockerRequirement":
			out = append(out, &types.DockerRequirement{DockerPull: r.DockerPull})
		case "ResourceRequirement":
			out = append(out, &types.ResourceRequirement{RAMMin: r.RAMMin, CoresMin: r.CoresMin})
		case "EnvVarRequirement":
			out = append(out, &types.EnvVarRequirement{EnvDef: r.EnvDef})
		}
	}
	return out
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Dispatch a single CommandLineTool step to an OSCAR cluster",
	Long: `Loads a cluster configuration file and a tool specification, then runs
one CWL step end to end through the Cluster Registry, Service Manager, Job
Dispatcher and Task Orchestrator.

This is deliberately thin: it does not parse CWL documents or evaluate
workflow graphs, since that is the embedding CWL runtime host's job. It
exists to wire the core components together and exercise them standalone.`,
	RunE: runStep,
}

func init() {
	runCmd.Flags().String("config", "", "Path to the cluster configuration YAML file (required)")
	runCmd.Flags().String("tool", "", "Path to a tool specification JSON file (required)")
	runCmd.Flags().String("job-name", "", "Job name (required)")
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics/health HTTP server")
	runCmd.Flags().Bool("no-metrics-server", false, "Disable the metrics/health HTTP server")
	_ = runCmd.MarkFlagRequired("config")
	_ = runCmd.MarkFlagRequired("tool")
	_ = runCmd.MarkFlagRequired("job-name")
}

func runStep(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	toolPath, _ := cmd.Flags().GetString("tool")
	jobName, _ := cmd.Flags().GetString("job-name")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	noMetricsServer, _ := cmd.Flags().GetBool("no-metrics-server")

	if len(args) == 0 {
		return fmt.Errorf("a command to run is required, e.g.: cwl-oscar-runner run --config ... --tool ... --job-name ... -- echo hi")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	tool, err := loadToolSpec(toolPath)
	if err != nil {
		return fmt.Errorf("load tool spec: %w", err)
	}

	reg := registry.New()
	storeFactories := make(map[string]blobstore.Store, len(cfg.Clusters))
	for _, entry := range cfg.Clusters {
		cc := entry.ToClusterConfig()
		if err := reg.Add(cc); err != nil {
			return fmt.Errorf("register cluster %q: %w", entry.Endpoint, err)
		}
		storeFactories[cc.Name] = blobstore.NewMinIOStore(map[string]blobstore.ProviderConfig{
			"minio.default": {
				Endpoint:  entry.MinIO.Endpoint,
				AccessKey: entry.MinIO.AccessKey,
				SecretKey: entry.MinIO.SecretKey,
				Region:    entry.MinIO.Region,
				Verify:    entry.MinIO.Verify,
				Bucket:    entry.MinIO.Bucket,
			},
		})
	}

	mountPath := cfg.MountPath
	if mountPath == "" {
		mountPath = cwloscar.DefaultMountPath(servicemgr.ServiceNamePrefix)
	}

	sharedMinIO := cfg.SharedMinIO.ToMinIOCredentials()

	if !noMetricsServer {
		startMetricsServer(metricsAddr)
	}
	metrics.ClustersRegistered.Set(float64(reg.Count()))
	metrics.RegisterComponent("registry", true, fmt.Sprintf("%d clusters", reg.Count()))
	metrics.RegisterComponent("dispatcher", true, "ready")

	orch := orchestrator.New(reg, func(cluster *types.ClusterConfig) blobstore.Store {
		return storeFactories[cluster.Name]
	}, sharedMinIO, time.Now().Unix)
	orch.SetTunables(cfg.OrchestratorTunables())

	correlationID := uuid.NewString()
	logger := log.WithCorrelationID(correlationID).With().Str("component", "cmd").Logger()
	logger.Info().Str("job_name", jobName).Msg("dispatching step")

	var wg sync.WaitGroup
	wg.Add(1)

	req := orchestrator.StepRequest{
		Name:        jobName,
		Command:     args,
		Env:         map[string]string{},
		Tool:        tool,
		MountPath:   mountPath,
		TempDirBase: os.TempDir(),
		Collect:     collectOutputFiles,
		RuntimeCtx: &cwlhost.RuntimeContext{
			WorkflowEvalLock: &sync.Mutex{},
			BaseDir:          ".",
			OutDir:           mountPath,
		},
		Callback: func(outputs map[string]any, status cwlhost.Status) {
			defer wg.Done()
			reportResult(jobName, outputs, status)
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	orch.RunStep(ctx, req)
	wg.Wait()

	return nil
}

func loadConfig(path string) (*cwloscar.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg cwloscar.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadToolSpec(path string) (*types.ToolSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw rawToolSpec
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return raw.toToolSpec(), nil
}

// collectOutputFiles is a minimal OutputCollector standing in for a real
// CWL runtime host's schema-aware collection: it just lists what landed on
// the shared mount.
func collectOutputFiles(outputDir string) (map[string]any, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		files = append(files, filepath.Join(outputDir, e.Name()))
	}
	return map[string]any{"files": files}, nil
}

func reportResult(jobName string, outputs map[string]any, status cwlhost.Status) {
	fmt.Printf("step %q finished: status=%s\n", jobName, status)
	if status == cwlhost.StatusSuccess {
		encoded, _ := json.MarshalIndent(outputs, "", "  ")
		fmt.Println(string(encoded))
	}
}

func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil { //nolint:gosec // operator-local metrics endpoint
			fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
		}
	}()
	fmt.Printf("metrics endpoint: http://%s/metrics\n", addr)
}
