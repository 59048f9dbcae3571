// Package availability tracks whether the database is available for regular transaction traffic. Bulk operations on
// the transaction log are only allowed while it is not.
package availability

import (
	"slices"
	"sync"

	"github.com/go-logr/logr"
)

// Guard makes the database available once no requirement is pending anymore. A requirement is identified by its name,
// requiring the same name twice only needs it to be fulfilled once.
//
// Guard is safe to use from multiple Go routines concurrently.
type Guard struct {
	mutex        sync.Mutex
	requirements map[string]struct{}
	logger       logr.Logger
}

// NewGuard creates a Guard without any pending requirement. The database is available until something is required.
func NewGuard(logger logr.Logger) *Guard {
	return &Guard{
		requirements: make(map[string]struct{}),
		logger:       logger,
	}
}

// Require adds a requirement which makes the database unavailable until it is fulfilled.
func (g *Guard) Require(name string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.requirements[name]; ok {
		return
	}
	g.requirements[name] = struct{}{}
	if len(g.requirements) == 1 {
		g.logger.Info("Database is unavailable", "requirement", name)
	}
}

// Fulfill removes a requirement. Fulfilling a requirement which is not pending does nothing.
func (g *Guard) Fulfill(name string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.requirements[name]; !ok {
		return
	}
	delete(g.requirements, name)
	if len(g.requirements) == 0 {
		g.logger.Info("Database is available", "requirement", name)
	}
}

// IsAvailable reports if no requirement is pending.
func (g *Guard) IsAvailable() bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return len(g.requirements) == 0
}

// Requirements returns the names of the pending requirements in sorted order.
func (g *Guard) Requirements() []string {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	result := make([]string, 0, len(g.requirements))
	for name := range g.requirements {
		result = append(result, name)
	}
	slices.Sort(result)
	return result
}
