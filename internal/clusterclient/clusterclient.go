// Package clusterclient is the REST client for the OSCAR cluster control
// plane (spec §6, "Remote cluster API (consumed)"): listServices and
// createService, authenticated via Bearer token or HTTP Basic.
package clusterclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/grycap/cwl-oscar-go/pkg/types"
)

// ServiceDef mirrors the remote service definition JSON (spec §6).
type ServiceDef struct {
	Name        string            `json:"name"`
	Memory      string            `json:"memory"`
	CPU         string            `json:"cpu"`
	Image       string            `json:"image"`
	Script      string            `json:"script"`
	Environment EnvironmentBlock  `json:"environment"`
	Input       []StorageIOEntry  `json:"input"`
	Output      []StorageIOEntry  `json:"output"`
	Mount       MountBlock        `json:"mount"`
	StorageProviders *StorageProviders `json:"storage_providers,omitempty"`
}

type EnvironmentBlock struct {
	Variables map[string]string `json:"variables"`
}

type StorageIOEntry struct {
	StorageProvider string `json:"storage_provider"`
	Path            string `json:"path"`
}

type MountBlock struct {
	StorageProvider string `json:"storage_provider"`
	Path            string `json:"path"`
}

type StorageProviders struct {
	MinIO map[string]MinIOProvider `json:"minio,omitempty"`
}

type MinIOProvider struct {
	Endpoint  string `json:"endpoint"`
	Verify    string `json:"verify"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Region    string `json:"region"`
}

// Client talks to a single OSCAR cluster's control-plane API.
type Client struct {
	rc *resty.Client
}

// New builds a Client for the given cluster descriptor.
func New(cluster *types.ClusterConfig) *Client {
	rc := resty.New().
		SetBaseURL(cluster.Endpoint).
		SetTimeout(30 * time.Second)

	switch cluster.AuthKind() {
	case types.ClusterAuthToken:
		rc.SetAuthToken(cluster.Token)
	case types.ClusterAuthBasic:
		rc.SetBasicAuth(cluster.Username, cluster.Password)
	}

	if !cluster.SSLVerify {
		rc.SetTLSClientConfig(&insecureTLSConfig)
	}

	return &Client{rc: rc}
}

// ListServices enumerates the services deployed on the cluster.
func (c *Client) ListServices(ctx context.Context) ([]ServiceDef, error) {
	var services []ServiceDef
	resp, err := c.rc.R().
		SetContext(ctx).
		SetResult(&services).
		Get("/system/services")
	if err != nil {
		return nil, fmt.Errorf("clusterclient: list services: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("clusterclient: list services: status %d: %s", resp.StatusCode(), resp.String())
	}
	return services, nil
}

// CreateService submits a service definition for creation. The returned
// status code is surfaced to the caller because the cluster's create-service
// response is not reliably idempotent-by-status (spec §4.2): callers must
// verify by re-listing regardless of the status observed here.
func (c *Client) CreateService(ctx context.Context, def ServiceDef) (int, error) {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(def).
		Post("/system/services")
	if err != nil {
		return 0, fmt.Errorf("clusterclient: create service %s: %w", def.Name, err)
	}
	return resp.StatusCode(), nil
}
