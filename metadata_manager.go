package courier

import (
	"runtime"
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Context property keys attached to every event.
const (
	PropLib          = "$lib"
	PropLibVersion   = "$lib_version"
	PropOS           = "$os"
	PropArch         = "$arch"
	PropAppNamespace = "$app_namespace"
	libName          = "courier-go"
)

// MetadataManager manages the properties merged into every event: the library
// context plus registered super-properties.
type MetadataManager struct {
	context ldvalue.ValueMap
	super   map[string]ldvalue.Value
	mu      sync.RWMutex
}

// NewMetadataManager creates a new metadata manager for the given application namespace.
func NewMetadataManager(namespace string) *MetadataManager {
	return &MetadataManager{
		context: ldvalue.ValueMapBuild().
			Set(PropLib, ldvalue.String(libName)).
			Set(PropLibVersion, ldvalue.String(Version)).
			Set(PropOS, ldvalue.String(runtime.GOOS)).
			Set(PropArch, ldvalue.String(runtime.GOARCH)).
			Set(PropAppNamespace, ldvalue.String(namespace)).
			Build(),
		super: make(map[string]ldvalue.Value),
	}
}

// Set registers a super-property
func (m *MetadataManager) Set(key string, value ldvalue.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.super[key] = value
}

// Get gets a super-property value
func (m *MetadataManager) Get(key string) ldvalue.Value {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.super[key]
}

// Unset removes a super-property
func (m *MetadataManager) Unset(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.super, key)
}

// GetAll returns the super-properties as a copy
func (m *MetadataManager) GetAll() ldvalue.ValueMap {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b := ldvalue.ValueMapBuildWithCapacity(len(m.super))
	for k, v := range m.super {
		b.Set(k, v)
	}
	return b.Build()
}

// Clear removes all super-properties
func (m *MetadataManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.super = make(map[string]ldvalue.Value)
}

// Enrich merges the library context, then super-properties, then props. Later
// layers win on key conflicts.
func (m *MetadataManager) Enrich(props ldvalue.ValueMap) ldvalue.ValueMap {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b := ldvalue.ValueMapBuildFromMap(m.context)
	for k, v := range m.super {
		b.Set(k, v)
	}
	for _, k := range props.Keys(nil) {
		b.Set(k, props.Get(k))
	}
	return b.Build()
}
