/*
Package registry implements the Cluster Registry (spec §4.1): an ordered
sequence of validated OSCAR cluster descriptors plus a mutex-guarded
round-robin rotation cursor. It is the only piece of shared mutable state
in the execution backend (spec §5); every other component is constructed
fresh per job and per cluster, so its cache never needs to be shared across
goroutines.
*/
package registry

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/grycap/cwl-oscar-go/internal/oscarerr"
	"github.com/grycap/cwl-oscar-go/pkg/log"
	"github.com/grycap/cwl-oscar-go/pkg/metrics"
	"github.com/grycap/cwl-oscar-go/pkg/types"
)

// Registry holds validated cluster descriptors and hands out the next one
// under a strict round-robin policy.
type Registry struct {
	mu       sync.Mutex
	clusters []*types.ClusterConfig
	cursor   int
	logger   zerolog.Logger
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{logger: log.WithComponent("registry")}
}

// Add validates and appends a cluster descriptor. It fills in a derived
// name when one was not supplied.
func (r *Registry) Add(cluster *types.ClusterConfig) error {
	if err := validate(cluster); err != nil {
		return err
	}
	if cluster.Name == "" {
		cluster.Name = deriveClusterName(cluster.Endpoint)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.clusters = append(r.clusters, cluster)
	metrics.ClustersRegistered.Set(float64(len(r.clusters)))
	r.logger.Info().Str("cluster", cluster.Name).Msg("cluster registered")
	return nil
}

// Next returns the next cluster under strict round-robin: index <-
// (index+1) mod N. Returns (nil, false) when the registry is empty — the
// sentinel spec §4.1 requires, never an error.
func (r *Registry) Next() (*types.ClusterConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.clusters) == 0 {
		return nil, false
	}
	cluster := r.clusters[r.cursor]
	r.cursor = (r.cursor + 1) % len(r.clusters)
	r.logger.Debug().Str("cluster", cluster.Name).Int("cursor", r.cursor).Msg("selected cluster")
	metrics.ClusterSelectionsTotal.WithLabelValues(cluster.Name).Inc()
	return cluster, true
}

// NextOrErr wraps Next, returning oscarerr.NoCluster on an empty registry —
// convenient for callers (the Task Orchestrator) that want an error value.
func (r *Registry) NextOrErr() (*types.ClusterConfig, error) {
	cluster, ok := r.Next()
	if !ok {
		return nil, oscarerr.NoCluster
	}
	return cluster, nil
}

// FindByName returns the cluster with the given name, if any.
func (r *Registry) FindByName(name string) (*types.ClusterConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clusters {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Count returns the number of registered clusters.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clusters)
}

// ListInfo returns a secret-free projection of every registered cluster.
func (r *Registry) ListInfo() []types.ClusterInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := make([]types.ClusterInfo, len(r.clusters))
	for i, c := range r.clusters {
		info[i] = types.ClusterInfo{
			Index:    i,
			Name:     c.Name,
			Endpoint: c.Endpoint,
			AuthKind: c.AuthKind(),
			SSL:      c.SSLVerify,
		}
	}
	return info
}

// Clear resets the registry to empty, atomically.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clusters = nil
	r.cursor = 0
	metrics.ClustersRegistered.Set(0)
}

func validate(c *types.ClusterConfig) error {
	if c.Endpoint == "" {
		return oscarerr.New(oscarerr.KindInvalidClusterConfig, "endpoint is required", nil)
	}
	hasToken := c.Token != ""
	hasBasic := c.Username != "" || c.Password != ""
	if !hasToken && !hasBasic {
		return oscarerr.New(oscarerr.KindInvalidClusterConfig,
			fmt.Sprintf("cluster %q: either a token or username/password must be provided", c.Endpoint), nil)
	}
	if hasToken && hasBasic {
		return oscarerr.New(oscarerr.KindInvalidClusterConfig,
			fmt.Sprintf("cluster %q: provide either a token or username/password, not both", c.Endpoint), nil)
	}
	if c.Username != "" && c.Password == "" {
		return oscarerr.New(oscarerr.KindInvalidClusterConfig,
			fmt.Sprintf("cluster %q: password is required when username is set", c.Endpoint), nil)
	}
	return nil
}

// deriveClusterName derives a human name from the endpoint host, mirroring
// the Python original's f"cluster-{host}" convention.
func deriveClusterName(endpoint string) string {
	host := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		host = u.Host
	} else if idx := strings.Index(endpoint, "://"); idx >= 0 {
		host = endpoint[idx+3:]
		if slash := strings.Index(host, "/"); slash >= 0 {
			host = host[:slash]
		}
	}
	return fmt.Sprintf("cluster-%s", host)
}
