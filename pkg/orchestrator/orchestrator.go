/*
Package orchestrator implements the Task Orchestrator (spec §4.5): it
bridges the CWL runtime host's per-step callback protocol to the Cluster
Registry, Service Manager and Job Dispatcher, and reports a verdict back to
the host.
*/
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/grycap/cwl-oscar-go/internal/blobstore"
	"github.com/grycap/cwl-oscar-go/internal/oscarerr"
	"github.com/grycap/cwl-oscar-go/pkg/cwlhost"
	"github.com/grycap/cwl-oscar-go/pkg/dispatcher"
	"github.com/grycap/cwl-oscar-go/pkg/log"
	"github.com/grycap/cwl-oscar-go/pkg/metrics"
	"github.com/grycap/cwl-oscar-go/pkg/registry"
	"github.com/grycap/cwl-oscar-go/pkg/servicemgr"
	"github.com/grycap/cwl-oscar-go/pkg/types"
)

// StoreFactory builds a blob-store client bound to a specific cluster. The
// orchestrator does not own cluster-to-store wiring itself — clusters may
// use distinct storage-provider credentials — so callers inject this.
type StoreFactory func(cluster *types.ClusterConfig) blobstore.Store

// StepRequest is everything the host supplies for one CWL step invocation
// (spec §4.5 steps 1-2: the host has already materialized the command line
// and the tool's own env/hints).
type StepRequest struct {
	Name          string
	Command       []string
	Env           map[string]string
	Tool          *types.ToolSpec
	MountPath     string
	TempDirBase   string
	StdoutRedirect string
	Collect       cwlhost.OutputCollector
	RuntimeCtx    *cwlhost.RuntimeContext
	Callback      cwlhost.OutputCallback
}

// Tunables overrides the Service Manager's and Job Dispatcher's spec.md
// §6 defaults (post-create grace, retry base delay, max create attempts,
// poll interval, poll deadline). A zero Tunables changes nothing — every
// field is applied only when non-zero, so operators can override a
// subset via a loaded Config.
type Tunables struct {
	PostCreateGrace   time.Duration
	RetryBaseDelay    time.Duration
	MaxCreateAttempts int
	PollInterval      time.Duration
	PollDeadline      time.Duration
}

// Orchestrator drives one CWL step end to end.
type Orchestrator struct {
	registry     *registry.Registry
	storeFactory StoreFactory
	sharedMinIO  *types.MinIOCredentials
	tunables     Tunables

	nowUnixSeconds func() int64

	logger zerolog.Logger
}

// New builds an Orchestrator over a shared Cluster Registry. nowUnixSeconds
// defaults to time.Now().Unix and is only overridable for tests.
func New(reg *registry.Registry, storeFactory StoreFactory, sharedMinIO *types.MinIOCredentials, nowUnixSeconds func() int64) *Orchestrator {
	if nowUnixSeconds == nil {
		nowUnixSeconds = func() int64 { return time.Now().Unix() }
	}
	return &Orchestrator{
		registry:       reg,
		storeFactory:   storeFactory,
		sharedMinIO:    sharedMinIO,
		nowUnixSeconds: nowUnixSeconds,
		logger:         log.WithComponent("orchestrator"),
	}
}

// SetTunables installs retry/backoff/poll overrides applied to every
// Service Manager and Job Dispatcher this Orchestrator constructs.
func (o *Orchestrator) SetTunables(t Tunables) {
	o.tunables = t
}

// RunStep executes the per-step flow (spec §4.5) and invokes req.Callback
// exactly once, under req.RuntimeCtx.WorkflowEvalLock.
func (o *Orchestrator) RunStep(ctx context.Context, req StepRequest) {
	jobID := fmt.Sprintf("%s_%d", req.Name, o.nowUnixSeconds())
	logger := log.WithJobID(jobID).With().Str("step", req.Name).Logger()

	timer := metrics.NewTimer()
	outputs, status := o.runStep(ctx, jobID, logger, req)
	timer.ObserveDurationVec(metrics.StepDuration, string(status))
	metrics.StepsCompletedTotal.WithLabelValues(string(status)).Inc()

	logger.Info().Str("status", string(status)).Msg("step completed")

	req.RuntimeCtx.WorkflowEvalLock.Lock()
	defer req.RuntimeCtx.WorkflowEvalLock.Unlock()
	req.Callback(outputs, status)
}

func (o *Orchestrator) runStep(ctx context.Context, jobID string, logger zerolog.Logger, req StepRequest) (map[string]any, cwlhost.Status) {
	env := mergedEnv(req.Env, req.Tool, req.Name, req.MountPath)

	cluster, err := o.registry.NextOrErr()
	if err != nil {
		logger.Error().Err(err).Msg("no cluster available")
		return map[string]any{}, cwlhost.StatusPermanentFail
	}
	clusterLogger := logger.With().Str("cluster", cluster.Name).Logger()

	store := o.storeFactory(cluster)
	mgr := servicemgr.New(cluster, req.MountPath, o.sharedMinIO)
	mgr.SetRetryTunables(o.tunables.PostCreateGrace, o.tunables.RetryBaseDelay, o.tunables.MaxCreateAttempts)

	serviceName, err := mgr.GetOrCreateService(ctx, req.Tool, req.Name)
	if err != nil {
		clusterLogger.Error().Err(err).Msg("failed to get or create service")
		return map[string]any{}, cwlhost.StatusPermanentFail
	}

	tempDirBase := req.TempDirBase
	if tempDirBase == "" {
		tempDirBase = os.TempDir()
	}
	disp := dispatcher.New(store, serviceName, tempDirBase)
	disp.SetPollTunables(o.tunables.PollInterval, o.tunables.PollDeadline)

	exitCode := disp.Execute(ctx, dispatcher.ExecuteRequest{
		JobID:          jobID,
		Command:        req.Command,
		Env:            env,
		MountPath:      req.MountPath,
		StdoutRedirect: req.StdoutRedirect,
	})

	if exitCode != 0 {
		clusterLogger.Error().Int("exit_code", exitCode).Msg("job failed")
		return map[string]any{}, cwlhost.StatusPermanentFail
	}

	outputDir := filepath.Join(req.MountPath, jobID)
	if _, statErr := os.Stat(outputDir); statErr != nil {
		clusterLogger.Error().Err(oscarerr.OutputDirMissing).Str("output_dir", outputDir).Msg("output directory missing after successful job")
		return map[string]any{}, cwlhost.StatusPermanentFail
	}

	outputs, collectErr := req.Collect(outputDir)
	if collectErr != nil {
		clusterLogger.Error().Err(collectErr).Msg("output collection failed")
		return map[string]any{}, cwlhost.StatusPermanentFail
	}

	return outputs, cwlhost.StatusSuccess
}

// mergedEnv adds the orchestrator's required env additions (spec §4.5 step
// 2) on top of whatever the host already prepared: CWL_JOB_NAME,
// CWL_MOUNT_PATH, plus every env var the tool's own EnvVarRequirement/hints
// declare. Tool-declared vars take precedence over whatever the host
// prepared in toolEnv, since they are the step's explicit requirement; the
// two CWL_* additions take precedence over both, since every dispatched job
// depends on them resolving to the orchestrator's own values.
func mergedEnv(toolEnv map[string]string, tool *types.ToolSpec, jobName, mountPath string) map[string]string {
	derived := servicemgr.DeriveRequirements(tool).EnvVars

	env := make(map[string]string, len(toolEnv)+len(derived)+2)
	for k, v := range toolEnv {
		env[k] = v
	}
	for k, v := range derived {
		env[k] = v
	}
	env["CWL_JOB_NAME"] = jobName
	env["CWL_MOUNT_PATH"] = mountPath
	return env
}
