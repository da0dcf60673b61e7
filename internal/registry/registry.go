package registry

import (
	"strings"
	"sync"
	"time"
)

// ServiceRecord describes one discovered backend service. Name is the unique
// registry key; at most one record occupies a given port at any time.
type ServiceRecord struct {
	Name         string        `json:"name"`
	URL          string        `json:"url"`
	Port         int           `json:"port"`
	Healthy      bool          `json:"healthy"`
	LastCheck    time.Time     `json:"last_check"`
	ResponseTime time.Duration `json:"response_time"`
}

// Registry is a name-keyed store of service records safe for concurrent use.
// Records are copied on the way in and out, so callers never share memory
// with the store.
type Registry struct {
	mutex    sync.RWMutex
	services map[string]ServiceRecord
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		services: make(map[string]ServiceRecord),
	}
}

// Upsert inserts or overwrites the record keyed by its name. Calling it twice
// with identical data leaves the registry unchanged. If another record already
// occupies the same port under a different name, that record is evicted first.
func (r *Registry) Upsert(record ServiceRecord) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for name, existing := range r.services {
		if existing.Port == record.Port && name != record.Name {
			delete(r.services, name)
		}
	}

	r.services[record.Name] = record
}

// RemoveByPort deletes the record whose port matches, if any.
// Returns the removed record's name and true when something was removed.
func (r *Registry) RemoveByPort(port int) (string, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for name, record := range r.services {
		if record.Port == port {
			delete(r.services, name)
			return name, true
		}
	}

	return "", false
}

// Get returns the record registered under name.
func (r *Registry) Get(name string) (ServiceRecord, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	record, ok := r.services[name]
	return record, ok
}

// FindBestService resolves a target name to the most suitable record:
// an exact healthy match wins; otherwise any healthy record whose name is a
// substring of the target (or vice versa); otherwise the exact match even if
// unhealthy, so callers can forward in degraded mode; otherwise nothing.
func (r *Registry) FindBestService(targetName string) (ServiceRecord, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	exact, hasExact := r.services[targetName]
	if hasExact && exact.Healthy {
		return exact, true
	}

	for _, record := range r.services {
		if !record.Healthy {
			continue
		}
		if strings.Contains(record.Name, targetName) || strings.Contains(targetName, record.Name) {
			return record, true
		}
	}

	if hasExact {
		return exact, true
	}

	return ServiceRecord{}, false
}

// HealthySnapshot returns a point-in-time copy of all healthy records.
func (r *Registry) HealthySnapshot() []ServiceRecord {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	snapshot := make([]ServiceRecord, 0, len(r.services))
	for _, record := range r.services {
		if record.Healthy {
			snapshot = append(snapshot, record)
		}
	}

	return snapshot
}

// AllSnapshot returns a point-in-time copy of every record.
func (r *Registry) AllSnapshot() []ServiceRecord {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	snapshot := make([]ServiceRecord, 0, len(r.services))
	for _, record := range r.services {
		snapshot = append(snapshot, record)
	}

	return snapshot
}

// Names returns the registered service names, for diagnostics.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}

	return names
}

// Len returns the number of registered services.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.services)
}
