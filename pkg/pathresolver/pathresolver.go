/*
Package pathresolver implements the Path Resolver (spec §4.4): it decorates
the host CWL runtime's generic path mapping so that files already visible
on the shared mount skip staging entirely, eliminating a redundant copy for
inputs every cluster can already see.
*/
package pathresolver

import (
	"strings"

	"github.com/grycap/cwl-oscar-go/pkg/cwlhost"
)

// Resolver decorates a host-supplied path mapping against a shared mount
// prefix.
type Resolver struct {
	mountPath string
}

// New builds a Resolver for the given shared mount root.
func New(mountPath string) *Resolver {
	return &Resolver{mountPath: mountPath}
}

// Resolve returns the entry the host should use for a given path, already
// mapped by the host's generic logic as (resolved, target, staged). When
// resolved already lives under the shared mount, staging is redundant: the
// entry is replaced with {resolved=resolved, target=resolved, staged=false}
// (spec §4.4).
func (r *Resolver) Resolve(resolved, target string, staged bool) cwlhost.MapperEntry {
	if r.onSharedMount(resolved) {
		return cwlhost.MapperEntry{Resolved: resolved, Target: resolved, Staged: false}
	}
	return cwlhost.MapperEntry{Resolved: resolved, Target: target, Staged: staged}
}

// Decorate applies Resolve across a full mapping table built by the host.
func (r *Resolver) Decorate(entries map[string]cwlhost.MapperEntry) map[string]cwlhost.MapperEntry {
	decorated := make(map[string]cwlhost.MapperEntry, len(entries))
	for key, e := range entries {
		decorated[key] = r.Resolve(e.Resolved, e.Target, e.Staged)
	}
	return decorated
}

func (r *Resolver) onSharedMount(path string) bool {
	if r.mountPath == "" {
		return false
	}
	return path == r.mountPath || strings.HasPrefix(path, r.mountPath+"/")
}
