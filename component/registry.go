package component

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360/probestream/errors"
)

// Registry tracks running component instances and the exclusive resources
// they hold. cmd registers each component at assembly; two components
// claiming the same serial device or listen address fail registration
// instead of fighting at runtime.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]Discoverable
	resources map[string]string // resource ID -> owning instance name
}

// NewRegistry creates an empty instance registry.
func NewRegistry() *Registry {
	return &Registry{
		instances: make(map[string]Discoverable),
		resources: make(map[string]string),
	}
}

// Register adds a component instance under a unique name after checking
// its exclusive ports for conflicts.
func (r *Registry) Register(name string, comp Discoverable) error {
	if err := ValidateComponentName(name); err != nil {
		return err
	}
	if comp == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Registry", "Register", "component validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("instance '%s' is already registered", name),
			"Registry", "Register", "duplicate instance check")
	}

	for _, port := range exclusivePorts(comp) {
		id := port.Config.ResourceID()
		if owner, taken := r.resources[id]; taken {
			return errors.WrapInvalid(
				fmt.Errorf("resource %s already held by '%s'", id, owner),
				"Registry", "Register", "resource conflict check")
		}
	}

	r.instances[name] = comp
	for _, port := range exclusivePorts(comp) {
		r.resources[port.Config.ResourceID()] = name
	}
	return nil
}

// Unregister removes an instance and releases its resources. Unknown names
// are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	comp, exists := r.instances[name]
	if !exists {
		return
	}
	delete(r.instances, name)
	for _, port := range exclusivePorts(comp) {
		id := port.Config.ResourceID()
		if r.resources[id] == name {
			delete(r.resources, id)
		}
	}
}

// Get returns a registered instance.
func (r *Registry) Get(name string) (Discoverable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	comp, ok := r.instances[name]
	return comp, ok
}

// List returns a copy of the instance map.
func (r *Registry) List() map[string]Discoverable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Discoverable, len(r.instances))
	for name, comp := range r.instances {
		out[name] = comp
	}
	return out
}

// Names returns registered instance names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// exclusivePorts lists the component's ports whose resources admit one
// owner.
func exclusivePorts(comp Discoverable) []Port {
	var out []Port
	for _, port := range comp.InputPorts() {
		if port.Config != nil && port.Config.IsExclusive() {
			out = append(out, port)
		}
	}
	for _, port := range comp.OutputPorts() {
		if port.Config != nil && port.Config.IsExclusive() {
			out = append(out, port)
		}
	}
	return out
}
