/*
Package types defines the core data structures shared by the OSCAR
execution backend: cluster descriptors, the normalized tool/service
resource model, the remote service definition submitted to a cluster, and
the bookkeeping record for a single job dispatch.

# Architecture

	┌──────────────────────── DATA MODEL ───────────────────────┐
	│                                                             │
	│  ClusterConfig ──validate──> ClusterInfo (secret-free)     │
	│                                                             │
	│  ToolSpec ──derive──> ServiceRequirements ──build──>        │
	│      RemoteServiceDefinition (submitted to a cluster)       │
	│                                                             │
	│  JobRecord: one dispatch of one step to one cluster-service │
	└─────────────────────────────────────────────────────────────┘

# Core Types

Cluster:
  - ClusterConfig: endpoint, credentials (token XOR username+password), name
  - ClusterAuth: which credential form a cluster uses
  - ClusterInfo: read-only, secret-free projection for listing

Tool / Service:
  - ToolSpec: the subset of a CWL CommandLineTool this backend reads
  - DockerRequirement / ResourceRequirement / EnvVarRequirement: recognized
    requirement/hint entries; anything else is ignored
  - ServiceRequirements: the normalized {image, memory, cores, env} tuple
  - RemoteServiceDefinition: what gets submitted to create a service

Job:
  - JobRecord: job_id, chosen cluster, script path, expected artifact name,
    temp dir (removed on every exit path)
  - JobStatus: "success" or "permanentFail" — the two values the host's
    output_callback understands

# Usage

Deriving service requirements from a tool spec and building the
deployment record is the Service Manager's job (pkg/servicemgr); this
package only carries the data it passes around.

# Thread Safety

All types here are plain data. None are safe for concurrent mutation;
callers (pkg/registry, pkg/servicemgr, pkg/dispatcher) own their own
locking around any shared instance.
*/
package types
