/*
Package dispatcher implements the Job Dispatcher (spec §4.3): synthesizes a
self-contained POSIX shell script for a command invocation, uploads it to a
service's input bucket, polls the output bucket for an exit-code artifact,
downloads and parses it.
*/
package dispatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/grycap/cwl-oscar-go/internal/blobstore"
	"github.com/grycap/cwl-oscar-go/internal/oscarerr"
	"github.com/grycap/cwl-oscar-go/internal/shellquote"
	"github.com/grycap/cwl-oscar-go/pkg/log"
	"github.com/grycap/cwl-oscar-go/pkg/metrics"
	"github.com/grycap/cwl-oscar-go/pkg/types"
)

const (
	storageProvider = "minio.default"

	pollInterval = 5 * time.Second
	pollDeadline = 300 * time.Second

	// dispatcherFailureExitCode is returned for any dispatcher-level failure
	// (upload timeout, missing artifact, parse failure beyond tolerance) —
	// distinct from the command's own native exit status (spec §4.3).
	dispatcherFailureExitCode = 1
)

// Dispatcher executes one command on one cluster-service pair.
type Dispatcher struct {
	store       blobstore.Store
	serviceName string
	tempDirBase string

	// pollInterval and pollDeadline default to the spec's constants but are
	// overridable per-Dispatcher so tests don't have to wait out the real
	// 5s/300s poll timings.
	pollInterval time.Duration
	pollDeadline time.Duration

	logger zerolog.Logger
}

// New builds a Dispatcher bound to a service's input/output buckets on a
// cluster's blob store. tempDirBase is the parent directory script/artifact
// staging directories are created under (os.TempDir() in production).
func New(store blobstore.Store, serviceName, tempDirBase string) *Dispatcher {
	return &Dispatcher{
		store:        store,
		serviceName:  serviceName,
		tempDirBase:  tempDirBase,
		pollInterval: pollInterval,
		pollDeadline: pollDeadline,
		logger:       log.WithServiceName(serviceName).With().Str("component", "dispatcher").Logger(),
	}
}

// SetPollTunables overrides the artifact-poll interval and deadline
// (spec.md §6 defaults: 5s / 300s). Zero values are ignored, so operators
// may override just one of the two via a loaded Config.
func (d *Dispatcher) SetPollTunables(interval, deadline time.Duration) {
	if interval > 0 {
		d.pollInterval = interval
	}
	if deadline > 0 {
		d.pollDeadline = deadline
	}
}

// ExecuteRequest carries everything the dispatcher needs to run one job
// (spec §4.3 "execute(command, env, jobName, toolSpec, stdoutRedirect?,
// jobId)"). ToolSpec itself is not consulted by the dispatcher — script
// synthesis only needs the already-resolved command and environment — so
// it is not a field here; the tool spec goes to the Service Manager only.
type ExecuteRequest struct {
	JobID         string
	Command       []string
	Env           map[string]string
	MountPath     string
	StdoutRedirect string // optional; empty means no redirect
}

// Execute runs ExecuteRequest against the dispatcher's bound service and
// returns the command's exit code, or dispatcherFailureExitCode on any
// dispatcher-level failure. Resource cleanup happens on every exit path.
func (d *Dispatcher) Execute(ctx context.Context, req ExecuteRequest) int {
	timer := metrics.NewTimer()
	code := d.execute(ctx, req)
	timer.ObserveDuration(metrics.DispatchDuration)

	// Note: a dispatcher-level failure and a genuine command exit status of
	// 1 are indistinguishable here by design (spec §4.3) — both count as
	// "exit_nonzero".
	outcome := "exit_nonzero"
	if code == 0 {
		outcome = "exit_zero"
	}
	metrics.DispatchesTotal.WithLabelValues(outcome).Inc()

	return code
}

func (d *Dispatcher) execute(ctx context.Context, req ExecuteRequest) int {
	logger := d.logger.With().Str("job_id", req.JobID).Logger()

	tempDir, err := os.MkdirTemp(d.tempDirBase, "cwloscar-job-*")
	if err != nil {
		logger.Error().Err(err).Msg("failed to create temp directory")
		return dispatcherFailureExitCode
	}
	defer func() {
		if rmErr := os.RemoveAll(tempDir); rmErr != nil {
			logger.Warn().Err(rmErr).Str("temp_dir", tempDir).Msg("failed to clean up temp directory")
		}
	}()

	scriptName := fmt.Sprintf("%s.sh", req.JobID)
	record := types.JobRecord{
		JobID: req.JobID,
		// Cluster identifies the cluster-scoped service this dispatch runs
		// against; a Dispatcher is constructed per cluster-service pair, so
		// its bound service name doubles as that identity here.
		Cluster:          d.serviceName,
		ScriptPath:       filepath.Join(tempDir, scriptName),
		ExitCodeArtifact: scriptName + ".exit_code",
		TempDir:          tempDir,
		CreatedAt:        time.Now(),
	}

	script := synthesizeScript(req)
	if err := os.WriteFile(record.ScriptPath, []byte(script), 0o755); err != nil { //nolint:gosec // launcher must exec this
		logger.Error().Err(err).Msg("failed to write job script")
		return dispatcherFailureExitCode
	}

	inputDir := d.serviceName + "/in"
	if err := d.store.UploadFile(ctx, storageProvider, record.ScriptPath, inputDir); err != nil {
		logger.Error().Err(oscarerr.New(oscarerr.KindUploadError, "upload job script", err)).Msg("upload failed")
		return dispatcherFailureExitCode
	}

	artifactPath, err := d.pollForArtifact(ctx, logger, record.ExitCodeArtifact)
	if err != nil {
		logger.Error().Err(err).Msg("polling for exit-code artifact failed")
		return dispatcherFailureExitCode
	}

	localArtifact, err := d.store.DownloadFile(ctx, storageProvider, record.TempDir, artifactPath)
	if err != nil {
		logger.Error().Err(oscarerr.New(oscarerr.KindDownloadError, "download exit-code artifact", err)).Msg("download failed")
		return dispatcherFailureExitCode
	}
	defer os.Remove(localArtifact) //nolint:errcheck // best-effort, tempDir removal covers it too

	code := parseExitCode(logger, localArtifact)
	status := types.JobStatusSuccess
	if code != 0 {
		status = types.JobStatusPermanentFail
	}
	logger.Debug().Str("status", string(status)).Dur("age", time.Since(record.CreatedAt)).Msg("job record closed")

	return code
}

// pollForArtifact polls the output bucket every pollInterval until the
// named artifact appears or pollDeadline elapses (spec §4.3 step 3).
// Polling errors are logged and retried until the deadline, not returned
// immediately — a transient listing failure should not abort the job.
func (d *Dispatcher) pollForArtifact(ctx context.Context, logger zerolog.Logger, artifactName string) (string, error) {
	outputPrefix := d.serviceName + "/out"
	deadline := time.Now().Add(d.pollDeadline)
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		metrics.PollAttemptsTotal.Inc()
		entries, err := d.store.ListFilesFromPath(ctx, storageProvider, outputPrefix)
		if err != nil {
			logger.Warn().Err(err).Msg("list output bucket failed, will retry")
		} else if key, ok := findArtifact(entries, artifactName); ok {
			return key, nil
		}

		if time.Now().After(deadline) {
			return "", oscarerr.New(oscarerr.KindPollTimeout,
				fmt.Sprintf("exit-code artifact %q not found within %s", artifactName, d.pollDeadline), nil)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// findArtifact locates the expected artifact by basename among listed
// entries. Extraction may land the key at "out/<name>" or "<name>" (spec
// §4.3 step 4), so both suffix shapes are probed.
func findArtifact(entries []blobstore.Entry, artifactName string) (string, bool) {
	for _, e := range entries {
		base := filepath.Base(e.Key)
		if base == artifactName {
			return e.Key, true
		}
	}
	return "", false
}

// parseExitCode reads and interprets the downloaded exit-code artifact
// (spec §4.3 step 5 / §6 "File formats"). Non-numeric content is a
// deliberate tolerance: it is logged and coerced to 0, the only place a
// parse failure does not fail the dispatch.
func parseExitCode(logger zerolog.Logger, path string) int {
	raw, err := os.ReadFile(path) //nolint:gosec // path is derived from our own temp dir
	if err != nil {
		logger.Error().Err(err).Msg("failed to read exit-code artifact")
		return dispatcherFailureExitCode
	}

	content := strings.TrimSpace(string(raw))
	if content == "" || !isAllDigits(content) {
		logger.Warn().Str("content", content).Msg("exit-code artifact content is non-numeric, coercing to 0")
		metrics.ExitCodeCoercedTotal.Inc()
		return 0
	}

	code, err := strconv.Atoi(content)
	if err != nil {
		logger.Warn().Str("content", content).Err(err).Msg("failed to parse exit-code artifact, coercing to 0")
		return 0
	}
	return code
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// synthesizeScript generates the POSIX shell script uploaded to the
// service's input bucket (spec §4.3 "Script synthesis").
func synthesizeScript(req ExecuteRequest) string {
	var b strings.Builder

	b.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&b, "export CWL_JOB_ID=%s\n", shellquote.Quote(req.JobID))

	for _, name := range sortedKeys(req.Env) {
		fmt.Fprintf(&b, "export %s=\"%s\"\n", name, shellquote.DoubleQuote(req.Env[name]))
	}

	b.WriteString("cd \"$TMP_OUTPUT_DIR\"\n")

	b.WriteString(shellquote.QuoteArgs(req.Command))
	if req.StdoutRedirect != "" {
		fmt.Fprintf(&b, " > %s 2>&1", shellquote.Quote(req.StdoutRedirect))
	}
	b.WriteString("\n")

	b.WriteString("exit_code=$?\n")
	fmt.Fprintf(&b, "mkdir -p \"$CWL_MOUNT_PATH/$CWL_JOB_ID\" 2>/dev/null\n")
	b.WriteString("cp -r \"$TMP_OUTPUT_DIR\"/* \"$CWL_MOUNT_PATH/$CWL_JOB_ID\" 2>/dev/null\n")
	b.WriteString("exit $exit_code\n")

	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
