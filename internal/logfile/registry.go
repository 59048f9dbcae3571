package logfile

import (
	"sync"
)

// Registry keeps track of the read-only channels readers outside the commit path hold on segment files. A segment with
// a registered channel is never pruned.
//
// Registry is safe to use from multiple Go routines concurrently. It outlives all channels registered with it.
type Registry struct {
	mutex   sync.Mutex
	readers map[uint64]map[*ReadOnlyChannel]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		readers: make(map[uint64]map[*ReadOnlyChannel]struct{}),
	}
}

// Register adds the channels keyed by their log version.
func (r *Registry) Register(channels map[uint64]*ReadOnlyChannel) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for logVersion, channel := range channels {
		readers, ok := r.readers[logVersion]
		if !ok {
			readers = make(map[*ReadOnlyChannel]struct{})
			r.readers[logVersion] = readers
		}
		if _, ok := readers[channel]; ok {
			continue
		}
		readers[channel] = struct{}{}
		ExternalReaders.Inc()
	}
}

// Unregister removes the channel. Removing a channel which is not registered does nothing.
func (r *Registry) Unregister(logVersion uint64, channel *ReadOnlyChannel) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	readers, ok := r.readers[logVersion]
	if !ok {
		return
	}
	if _, ok := readers[channel]; !ok {
		return
	}
	delete(readers, channel)
	ExternalReaders.Dec()
	if len(readers) == 0 {
		delete(r.readers, logVersion)
	}
}

// HasReaders reports if at least one channel is registered for the log version.
func (r *Registry) HasReaders(logVersion uint64) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return len(r.readers[logVersion]) > 0
}

// Count returns the number of registered channels over all log versions.
func (r *Registry) Count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	count := 0
	for _, readers := range r.readers {
		count += len(readers)
	}
	return count
}
