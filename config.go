// Package cwloscar holds the top-level configuration type for the OSCAR
// execution backend. Loading a Config from disk is a concern of the CLI
// layer (cmd/cwl-oscar-runner); this package only defines the shape and its
// validation, since the Cluster Registry validates descriptors at Add time.
package cwloscar

import (
	"fmt"
	"time"

	"github.com/grycap/cwl-oscar-go/pkg/orchestrator"
	"github.com/grycap/cwl-oscar-go/pkg/types"
)

// ClusterEntry is one cluster descriptor as it appears in a config file,
// prior to being turned into a types.ClusterConfig and handed to the
// Cluster Registry.
type ClusterEntry struct {
	Name      string `yaml:"name"`
	Endpoint  string `yaml:"endpoint"`
	Token     string `yaml:"token"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	SSLVerify bool   `yaml:"sslVerify"`

	// MinIO describes the cluster's own default storage provider
	// ("minio.default"), backing the per-service input/output buckets
	// (spec.md §6). The OSCAR cluster API does not expose these
	// credentials over the control-plane endpoints this backend talks
	// to, so they are supplied out of band, here.
	MinIO MinIOEntry `yaml:"minio"`
}

// MinIOEntry is a named storage provider's connection details, used both
// for a cluster's own default bucket and for the optional shared mount.
type MinIOEntry struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Region    string `yaml:"region"`
	Verify    bool   `yaml:"verify"`
	Bucket    string `yaml:"bucket"`
}

// ToClusterConfig converts a config-file entry into the type the Cluster
// Registry consumes.
func (e ClusterEntry) ToClusterConfig() *types.ClusterConfig {
	return &types.ClusterConfig{
		Name:      e.Name,
		Endpoint:  e.Endpoint,
		Token:     e.Token,
		Username:  e.Username,
		Password:  e.Password,
		SSLVerify: e.SSLVerify,
	}
}

// ToMinIOCredentials converts a config-file entry into the type the
// Service Manager consumes. Used for the optional shared-mount provider,
// which is nil whenever Config.SharedMinIO is unset.
func (e *MinIOEntry) ToMinIOCredentials() *types.MinIOCredentials {
	if e == nil {
		return nil
	}
	return &types.MinIOCredentials{
		Endpoint:  e.Endpoint,
		Verify:    e.Verify,
		AccessKey: e.AccessKey,
		SecretKey: e.SecretKey,
		Region:    e.Region,
	}
}

// Config is the execution backend's full set of operator-supplied
// settings (spec.md §6 "Default constants" plus the cluster list the
// original implementation reads from its own config file).
type Config struct {
	Clusters []ClusterEntry `yaml:"clusters"`

	// MountPath is the shared mount root every cluster exposes at the
	// same absolute path. When empty, cmd/cwl-oscar-runner uses
	// DefaultMountPath(servicemgr.ServiceNamePrefix), "/mnt/cwloscar/mount".
	MountPath string `yaml:"mountPath"`

	// ServicePrefix is parsed from the config file but not read anywhere:
	// service identities are always prefixed with
	// servicemgr.ServiceNamePrefix, and the default mount path is derived
	// from that constant as well.
	ServicePrefix string `yaml:"servicePrefix"`

	// SharedMinIO is non-nil only when a distinct MinIO backs the mount.
	SharedMinIO *MinIOEntry `yaml:"sharedMinIO,omitempty"`

	// Retry/backoff/poll tunables. Zero means "use the built-in spec
	// defaults" (servicemgr's 3s/2s/3, dispatcher's 5s/300s) — these exist
	// to let an operator widen the poll deadline for long-running tools,
	// not to change the defaults in the common case.
	PostCreateGrace   time.Duration `yaml:"postCreateGrace"`
	RetryBaseDelay    time.Duration `yaml:"retryBaseDelay"`
	MaxCreateAttempts int           `yaml:"maxCreateAttempts"`
	PollInterval      time.Duration `yaml:"pollInterval"`
	PollDeadline      time.Duration `yaml:"pollDeadline"`

	LogLevel string `yaml:"logLevel"`
	LogJSON  bool   `yaml:"logJSON"`
}

// OrchestratorTunables converts the config's retry/backoff/poll overrides
// into the shape orchestrator.Orchestrator.SetTunables consumes.
func (c *Config) OrchestratorTunables() orchestrator.Tunables {
	return orchestrator.Tunables{
		PostCreateGrace:   c.PostCreateGrace,
		RetryBaseDelay:    c.RetryBaseDelay,
		MaxCreateAttempts: c.MaxCreateAttempts,
		PollInterval:      c.PollInterval,
		PollDeadline:      c.PollDeadline,
	}
}

// DefaultMountPath returns the spec's default mount root for a given
// service prefix, used when Config.MountPath is left empty.
func DefaultMountPath(servicePrefix string) string {
	return fmt.Sprintf("/mnt/%s/mount", servicePrefix)
}

// Validate checks structural requirements that are cheap and config-local;
// per-cluster credential validation is the Cluster Registry's job at
// Add time, not duplicated here.
func (c *Config) Validate() error {
	if len(c.Clusters) == 0 {
		return fmt.Errorf("cwloscar: config must declare at least one cluster")
	}
	for i, cl := range c.Clusters {
		if cl.Endpoint == "" {
			return fmt.Errorf("cwloscar: clusters[%d]: endpoint is required", i)
		}
	}
	return nil
}
