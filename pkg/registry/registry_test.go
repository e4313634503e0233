package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grycap/cwl-oscar-go/internal/oscarerr"
	"github.com/grycap/cwl-oscar-go/pkg/types"
)

func TestNextVisitsEachClusterExactlyOnce(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(&types.ClusterConfig{Name: "a", Endpoint: "https://a.example.org", Token: "tok-a"}))
	require.NoError(t, r.Add(&types.ClusterConfig{Name: "b", Endpoint: "https://b.example.org", Token: "tok-b"}))
	require.NoError(t, r.Add(&types.ClusterConfig{Name: "c", Endpoint: "https://c.example.org", Token: "tok-c"}))

	seen := make(map[string]int)
	for i := 0; i < 9; i++ {
		c, err := r.NextOrErr()
		require.NoError(t, err)
		seen[c.Name]++
	}

	assert.Equal(t, 3, seen["a"])
	assert.Equal(t, 3, seen["b"])
	assert.Equal(t, 3, seen["c"])
}

func TestNextIsStrictRoundRobin(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(&types.ClusterConfig{Name: "a", Endpoint: "https://a.example.org", Token: "tok"}))
	require.NoError(t, r.Add(&types.ClusterConfig{Name: "b", Endpoint: "https://b.example.org", Token: "tok"}))

	var order []string
	for i := 0; i < 4; i++ {
		c, _ := r.Next()
		order = append(order, c.Name)
	}
	assert.Equal(t, []string{"a", "b", "a", "b"}, order)
}

func TestNextOnEmptyRegistryReturnsSentinel(t *testing.T) {
	r := New()

	c, ok := r.Next()
	assert.False(t, ok)
	assert.Nil(t, c)

	_, err := r.NextOrErr()
	assert.ErrorIs(t, err, oscarerr.NoCluster)
}

func TestAddValidation(t *testing.T) {
	tests := []struct {
		name    string
		cluster *types.ClusterConfig
		wantErr bool
	}{
		{
			name:    "missing endpoint",
			cluster: &types.ClusterConfig{Token: "tok"},
			wantErr: true,
		},
		{
			name:    "missing all credentials",
			cluster: &types.ClusterConfig{Endpoint: "https://oscar.example.org"},
			wantErr: true,
		},
		{
			name:    "username without password",
			cluster: &types.ClusterConfig{Endpoint: "https://oscar.example.org", Username: "oscar"},
			wantErr: true,
		},
		{
			name:    "token and basic both set",
			cluster: &types.ClusterConfig{Endpoint: "https://oscar.example.org", Token: "tok", Username: "oscar", Password: "pw"},
			wantErr: true,
		},
		{
			name:    "valid token cluster",
			cluster: &types.ClusterConfig{Endpoint: "https://oscar.example.org", Token: "tok"},
			wantErr: false,
		},
		{
			name:    "valid basic-auth cluster",
			cluster: &types.ClusterConfig{Endpoint: "https://oscar.example.org", Username: "oscar", Password: "pw"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			err := r.Add(tt.cluster)
			if tt.wantErr {
				assert.Error(t, err)
				assert.ErrorIs(t, err, oscarerr.New(oscarerr.KindInvalidClusterConfig, "", nil))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAddDerivesNameFromEndpoint(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(&types.ClusterConfig{Endpoint: "https://oscar.cluster1.example.org", Token: "tok"}))

	info := r.ListInfo()
	require.Len(t, info, 1)
	assert.Equal(t, "cluster-oscar.cluster1.example.org", info[0].Name)
}

func TestListInfoOmitsSecrets(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(&types.ClusterConfig{Name: "a", Endpoint: "https://a.example.org", Token: "super-secret"}))

	info := r.ListInfo()
	require.Len(t, info, 1)
	assert.Equal(t, types.ClusterAuthToken, info[0].AuthKind)
	assert.Equal(t, "a", info[0].Name)
}

func TestFindByNameAndCount(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(&types.ClusterConfig{Name: "a", Endpoint: "https://a.example.org", Token: "tok"}))
	require.NoError(t, r.Add(&types.ClusterConfig{Name: "b", Endpoint: "https://b.example.org", Token: "tok"}))

	assert.Equal(t, 2, r.Count())

	found, ok := r.FindByName("b")
	require.True(t, ok)
	assert.Equal(t, "https://b.example.org", found.Endpoint)

	_, ok = r.FindByName("missing")
	assert.False(t, ok)
}

func TestClearResetsRegistry(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(&types.ClusterConfig{Name: "a", Endpoint: "https://a.example.org", Token: "tok"}))
	r.Clear()

	assert.Equal(t, 0, r.Count())
	_, ok := r.Next()
	assert.False(t, ok)
}
