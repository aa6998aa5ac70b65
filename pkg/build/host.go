package build

import (
	"sync"

	"mercator-hq/twigpack/pkg/keys"
)

// Host is the bundler side of a compilation: it names the resource being
// compiled and collects the files whose changes must trigger a rebuild.
type Host interface {
	// ResourcePath returns the path of the entry template.
	ResourcePath() string

	// AddDependency registers path as a build dependency.
	AddDependency(path string)
}

// RecordingHost is a Host that records dependencies in order, without
// duplicates. It is safe for concurrent use.
type RecordingHost struct {
	mu           sync.Mutex
	resourcePath string
	dependencies []string
	seen         map[string]struct{}
}

// NewRecordingHost creates a host for the entry at resourcePath.
func NewRecordingHost(resourcePath string) *RecordingHost {
	return &RecordingHost{
		resourcePath: resourcePath,
		seen:         make(map[string]struct{}),
	}
}

// ResourcePath implements Host.
func (h *RecordingHost) ResourcePath() string {
	return h.resourcePath
}

// AddDependency implements Host.
func (h *RecordingHost) AddDependency(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.seen[path]; ok {
		return
	}
	h.seen[path] = struct{}{}
	h.dependencies = append(h.dependencies, path)
}

// Dependencies returns the recorded dependencies in registration order.
func (h *RecordingHost) Dependencies() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.dependencies...)
}

// trackingHost forwards to the caller's host and keeps its own record for
// the Result.
type trackingHost struct {
	Host
	record *RecordingHost
}

func newTrackingHost(h Host) *trackingHost {
	return &trackingHost{
		Host:   h,
		record: NewRecordingHost(h.ResourcePath()),
	}
}

func (h *trackingHost) AddDependency(path string) {
	path = keys.Normalize(path)
	h.record.AddDependency(path)
	h.Host.AddDependency(path)
}
