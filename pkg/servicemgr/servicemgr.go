/*
Package servicemgr implements the Service Manager (spec §4.2): derives a
deterministic service identity from a tool specification, and ensures the
corresponding remote service exists on a cluster, creating it on demand
with a create-or-reuse protocol tolerant of the remote API's ambiguous
create-service responses.
*/
package servicemgr

import (
	"context"
	"crypto/md5" //nolint:gosec // used only as a stable content hash, not for security
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/grycap/cwl-oscar-go/internal/clusterclient"
	"github.com/grycap/cwl-oscar-go/internal/oscarerr"
	"github.com/grycap/cwl-oscar-go/pkg/log"
	"github.com/grycap/cwl-oscar-go/pkg/metrics"
	"github.com/grycap/cwl-oscar-go/pkg/types"
)

const (
	// ServiceNamePrefix is the fixed constant prepended to every derived
	// service identity.
	ServiceNamePrefix = "cwloscar"

	hashLength        = 8
	maxCreateAttempts = 3
	retryBaseDelay    = 2 * time.Second
	retryMultiplier   = 2.0
	postCreateGrace   = 3 * time.Second

	defaultImage           = "ghcr.io/grycap/oscar-runner:latest"
	defaultMemoryMiB int64 = 1024
	defaultCores           = 1.0
	defaultRegion          = "us-east-1"
)

var sanitizePattern = regexp.MustCompile(`[^a-z0-9-]+`)

// Manager ensures remote services exist for tool specs on one cluster. Its
// cache is private; construct one Manager per step, per cluster (spec §5).
// Cache reads and writes hold mu, so the cache itself is safe to share
// across goroutines.
type Manager struct {
	cluster    *types.ClusterConfig
	client     *clusterclient.Client
	mountPath  string
	sharedMinIO *types.MinIOCredentials

	mu    sync.Mutex
	cache map[string]bool

	// postCreateGrace, retryBaseDelay and maxAttempts default to the spec's
	// constants but are overridable per-Manager so tests don't have to pay
	// for the real multi-second grace/backoff delays.
	postCreateGrace time.Duration
	retryBaseDelay  time.Duration
	maxAttempts     int

	logger zerolog.Logger
}

// New builds a Manager bound to a single cluster. mountPath is the shared
// mount root (default "/mnt/<prefix>/mount"); sharedMinIO is non-nil only
// when a distinct MinIO backs that mount.
func New(cluster *types.ClusterConfig, mountPath string, sharedMinIO *types.MinIOCredentials) *Manager {
	return &Manager{
		cluster:         cluster,
		client:          clusterclient.New(cluster),
		mountPath:       mountPath,
		sharedMinIO:     sharedMinIO,
		cache:           make(map[string]bool),
		postCreateGrace: postCreateGrace,
		retryBaseDelay:  retryBaseDelay,
		maxAttempts:     maxCreateAttempts,
		logger:          log.WithClusterName(cluster.Name).With().Str("component", "servicemgr").Logger(),
	}
}

// SetRetryTunables overrides the post-create grace period, retry base
// delay and maximum create attempts (spec.md §6 defaults: 3s / 2s / 3).
// Zero values are ignored, so operators may override a subset via a
// loaded Config.
func (m *Manager) SetRetryTunables(postCreateGrace, retryBaseDelay time.Duration, maxAttempts int) {
	if postCreateGrace > 0 {
		m.postCreateGrace = postCreateGrace
	}
	if retryBaseDelay > 0 {
		m.retryBaseDelay = retryBaseDelay
	}
	if maxAttempts > 0 {
		m.maxAttempts = maxAttempts
	}
}

// DeriveRequirements normalizes a ToolSpec into a ServiceRequirements
// tuple (spec §3). requirements entries are applied before hints; within a
// list, later entries override earlier ones for the same field.
func DeriveRequirements(tool *types.ToolSpec) types.ServiceRequirements {
	req := types.ServiceRequirements{
		Image:           defaultImage,
		MemoryMiB:       defaultMemoryMiB,
		CoresFractional: defaultCores,
		EnvVars:         make(map[string]string),
	}

	apply := func(entries []any) {
		for _, entry := range entries {
			switch v := entry.(type) {
			case *types.DockerRequirement:
				if v.DockerPull != "" {
					req.Image = v.DockerPull
				}
			case *types.ResourceRequirement:
				if v.RAMMin > 0 {
					req.MemoryMiB = v.RAMMin
				}
				if v.CoresMin > 0 {
					req.CoresFractional = v.CoresMin
				}
			case *types.EnvVarRequirement:
				for k, val := range v.EnvDef {
					req.EnvVars[k] = val
				}
			}
		}
	}

	apply(tool.Requirements)
	apply(tool.Hints)
	return req
}

// canonicalPayload is the exact shape hashed into the service identity
// (spec §3): baseCommand, class, requirements — in that field order, with
// requirements serialized as given (no hints).
type canonicalPayload struct {
	BaseCommand  []string `json:"baseCommand"`
	Class        string   `json:"class"`
	Requirements []any    `json:"requirements"`
}

// ServiceIdentity computes the stable identity string for a tool spec and
// job name (spec §3): "<prefix>-<sanitized-name>-<hash8>".
func ServiceIdentity(tool *types.ToolSpec, jobName string) (string, error) {
	payload := canonicalPayload{
		BaseCommand:  tool.BaseCommand,
		Class:        tool.Class,
		Requirements: tool.Requirements,
	}
	canonical, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("servicemgr: canonicalize tool spec: %w", err)
	}

	sum := md5.Sum(canonical) //nolint:gosec
	hash8 := hex.EncodeToString(sum[:])[:hashLength]

	return fmt.Sprintf("%s-%s-%s", ServiceNamePrefix, sanitizeName(jobName), hash8), nil
}

// sanitizeName lowercases, replaces underscores with hyphens, strips any
// character outside [a-z0-9-], and trims leading/trailing hyphens. An
// empty name (or one that sanitizes to empty) becomes "tool".
func sanitizeName(name string) string {
	if name == "" {
		return "tool"
	}
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, "_", "-")
	s = sanitizePattern.ReplaceAllString(s, "")
	s = strings.Trim(s, "-")
	if s == "" {
		return "tool"
	}
	return s
}

// GetOrCreateService implements the Service Manager's contract (spec
// §4.2): returns the identity of a remote service guaranteed to exist,
// creating it if necessary. Idempotent with respect to (toolSpec, jobName)
// modulo remote side effects.
func (m *Manager) GetOrCreateService(ctx context.Context, tool *types.ToolSpec, jobName string) (string, error) {
	identity, err := ServiceIdentity(tool, jobName)
	if err != nil {
		return "", err
	}

	if m.knownToExist(identity) {
		metrics.ServiceCacheHitsTotal.Inc()
		return identity, nil
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ServiceCreateDuration)

	exists, err := m.existsRemotely(ctx, identity)
	if err != nil {
		m.logger.Warn().Err(err).Str("service", identity).Msg("listing services failed, proceeding to create")
	} else if exists {
		m.remember(identity)
		return identity, nil
	}

	req := DeriveRequirements(tool)
	def := m.buildServiceDefinition(identity, req)

	if err := m.createWithRetry(ctx, identity, def); err != nil {
		metrics.ServiceCreationsTotal.WithLabelValues("exhausted").Inc()
		return "", err
	}
	metrics.ServiceCreationsTotal.WithLabelValues("created").Inc()

	m.remember(identity)
	return identity, nil
}

func (m *Manager) knownToExist(identity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache[identity]
}

func (m *Manager) remember(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[identity] = true
}

func (m *Manager) existsRemotely(ctx context.Context, identity string) (bool, error) {
	services, err := m.client.ListServices(ctx)
	if err != nil {
		return false, oscarerr.New(oscarerr.KindServiceListError, "list services", err)
	}
	for _, svc := range services {
		if svc.Name == identity {
			return true, nil
		}
	}
	return false, nil
}

// toRemoteServiceDefinition normalizes a derived requirement set into the
// domain-level deployment record (spec.md §3 / §6), ahead of translating it
// into the wire shape the cluster API actually expects. Keeping this step
// separate lets buildServiceDefinition's wire-shape concerns (field names,
// string formatting) stay independent of what the service logically is.
func (m *Manager) toRemoteServiceDefinition(identity string, req types.ServiceRequirements) types.RemoteServiceDefinition {
	return types.RemoteServiceDefinition{
		Name:            identity,
		MemoryMiB:       req.MemoryMiB,
		CoresFractional: req.CoresFractional,
		Image:           req.Image,
		Script:          launcherScript,
		EnvVars:         mergedEnv(req.EnvVars, m.mountPath),
		InputPath:       identity + "/in",
		OutputPath:      identity + "/out",
		MountPath:       m.mountPath,
		SharedMinIO:     m.sharedMinIO,
	}
}

func (m *Manager) buildServiceDefinition(identity string, req types.ServiceRequirements) clusterclient.ServiceDef {
	record := m.toRemoteServiceDefinition(identity, req)
	m.logger.Debug().Str("service", identity).Int64("memory_mib", record.MemoryMiB).
		Float64("cores", record.CoresFractional).Str("image", record.Image).Msg("built remote service definition")

	def := clusterclient.ServiceDef{
		Name:   record.Name,
		Memory: fmt.Sprintf("%dMi", record.MemoryMiB),
		CPU:    fmt.Sprintf("%.2f", record.CoresFractional),
		Image:  record.Image,
		Script: record.Script,
		Environment: clusterclient.EnvironmentBlock{
			Variables: record.EnvVars,
		},
		Input:  []clusterclient.StorageIOEntry{{StorageProvider: "minio.default", Path: record.InputPath}},
		Output: []clusterclient.StorageIOEntry{{StorageProvider: "minio.default", Path: record.OutputPath}},
		Mount:  clusterclient.MountBlock{StorageProvider: "minio.default", Path: record.MountPath},
	}

	if record.SharedMinIO != nil {
		region := record.SharedMinIO.Region
		if region == "" {
			region = defaultRegion
		}
		def.Mount.StorageProvider = "minio.shared"
		def.StorageProviders = &clusterclient.StorageProviders{
			MinIO: map[string]clusterclient.MinIOProvider{
				"shared": {
					Endpoint:  record.SharedMinIO.Endpoint,
					Verify:    fmt.Sprintf("%t", record.SharedMinIO.Verify),
					AccessKey: record.SharedMinIO.AccessKey,
					SecretKey: record.SharedMinIO.SecretKey,
					Region:    region,
				},
			},
		}
	}

	return def
}

func mergedEnv(toolEnv map[string]string, mountPath string) map[string]string {
	env := map[string]string{"MOUNT_PATH": mountPath}
	for k, v := range toolEnv {
		env[k] = v
	}
	return env
}

// createWithRetry submits the create request and verifies existence by
// re-listing, retrying transient failures with exponential backoff up to
// maxCreateAttempts (spec §4.2 steps 5-9). The remote API has been observed
// to return a non-2xx status while nevertheless creating the service, so
// listing after the post-create grace period is the only authoritative
// check; the HTTP status is advisory at best.
func (m *Manager) createWithRetry(ctx context.Context, identity string, def clusterclient.ServiceDef) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.retryBaseDelay
	bo.Multiplier = retryMultiplier
	bo.MaxElapsedTime = 0 // bounded by WithMaxRetries below, not by elapsed wall time

	var lastErr error
	attempt := 0

	operation := func() error {
		attempt++
		status, err := m.client.CreateService(ctx, def)
		if err != nil {
			lastErr = err
			m.logger.Warn().Err(err).Str("service", identity).Int("attempt", attempt).Msg("create service request failed")
			metrics.ServiceCreationsTotal.WithLabelValues("transient_retry").Inc()
			return oscarerr.New(oscarerr.KindServiceCreateTransient, "create service request", err)
		}

		select {
		case <-time.After(m.postCreateGrace):
		case <-ctx.Done():
			lastErr = ctx.Err()
			return backoff.Permanent(ctx.Err())
		}

		exists, err := m.existsRemotely(ctx, identity)
		if err != nil {
			lastErr = err
			return oscarerr.New(oscarerr.KindServiceCreateTransient, "verify service after create", err)
		}
		if !exists {
			lastErr = fmt.Errorf("service %q not found after create (http status %d)", identity, status)
			m.logger.Warn().Str("service", identity).Int("status", status).Int("attempt", attempt).
				Msg("service not visible after grace period, treating as transient")
			return oscarerr.New(oscarerr.KindServiceCreateTransient, "service not visible after create", lastErr)
		}
		return nil
	}

	err := backoff.Retry(operation, backoff.WithMaxRetries(bo, uint64(m.maxAttempts-1)))
	if err != nil {
		return oscarerr.New(oscarerr.KindServiceCreationError,
			fmt.Sprintf("service %q not created after %d attempts", identity, attempt), lastErr)
	}
	return nil
}
