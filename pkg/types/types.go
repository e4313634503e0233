package types

import "time"

// ClusterAuth selects which credential form a cluster was configured with.
type ClusterAuth string

const (
	ClusterAuthToken ClusterAuth = "token"
	ClusterAuthBasic ClusterAuth = "basic"
)

// ClusterConfig describes one OSCAR cluster endpoint. Immutable once the
// Cluster Registry has validated it in Registry.Add: exactly one credential
// form (bearer token, or username+password) must be present.
type ClusterConfig struct {
	Name     string
	Endpoint string
	Token    string
	Username string
	Password string
	SSLVerify bool
}

// AuthKind reports which credential form this cluster is configured with.
// Registry.Add's validation must have succeeded before calling this.
func (c *ClusterConfig) AuthKind() ClusterAuth {
	if c.Token != "" {
		return ClusterAuthToken
	}
	return ClusterAuthBasic
}

// ClusterInfo is the secret-free projection of a ClusterConfig returned by
// Registry.ListInfo.
type ClusterInfo struct {
	Index    int
	Name     string
	Endpoint string
	AuthKind ClusterAuth
	SSL      bool
}

// DockerRequirement mirrors the CWL requirement of the same name.
type DockerRequirement struct {
	DockerPull string
}

// ResourceRequirement mirrors the CWL requirement of the same name. Zero
// values mean "not specified" and fall back to ServiceRequirements defaults.
type ResourceRequirement struct {
	RAMMin    int64 // MiB
	CoresMin  float64
}

// EnvVarRequirement mirrors the CWL EnvVarRequirement.
type EnvVarRequirement struct {
	EnvDef map[string]string
}

// ToolSpec is the subset of a CWL CommandLineTool description this backend
// consumes. The full tool spec is an opaque mapping owned by the CWL
// runtime host; only these fields are read here.
type ToolSpec struct {
	Class        string
	BaseCommand  []string
	Requirements []any // elements are *DockerRequirement, *ResourceRequirement, *EnvVarRequirement, or unrecognized (ignored)
	Hints        []any
}

// ServiceRequirements is the normalized resource envelope derived from a
// ToolSpec (spec.md §3 "Service requirements (derived)").
type ServiceRequirements struct {
	Image           string
	MemoryMiB       int64
	CoresFractional float64
	EnvVars         map[string]string
}

// RemoteServiceDefinition is the deployment record submitted to a cluster
// to create or describe a remote service (spec.md §3 / §6).
type RemoteServiceDefinition struct {
	Name           string
	MemoryMiB      int64
	CoresFractional float64
	Image          string
	Script         string
	EnvVars        map[string]string
	InputPath      string // "<identity>/in"
	OutputPath     string // "<identity>/out"
	MountPath      string // "/<mount-relative>"
	SharedMinIO    *MinIOCredentials // non-nil only when a distinct MinIO backs the mount
}

// MinIOCredentials describes an alternate storage-provider backing the
// shared mount, when distinct from the cluster's default MinIO.
type MinIOCredentials struct {
	Endpoint  string
	Verify    bool
	AccessKey string
	SecretKey string
	Region    string
}

// JobRecord is a single dispatch of one CWL step to one cluster-service
// pair (spec.md §3 "Job record").
type JobRecord struct {
	JobID           string
	JobName         string
	Cluster         string
	ScriptPath      string
	ExitCodeArtifact string
	TempDir         string
	CreatedAt       time.Time
}

// JobStatus is the verdict the Task Orchestrator reports to the host.
type JobStatus string

const (
	JobStatusSuccess      JobStatus = "success"
	JobStatusPermanentFail JobStatus = "permanentFail"
)
