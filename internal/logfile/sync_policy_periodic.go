package logfile

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// SyncPolicyPeriodic is flushing segments to disk after having appended some number of times, or after some time
// interval has passed. A background go routine takes care of the time interval.
type SyncPolicyPeriodic struct {
	mutex sync.Mutex

	syncAfterAppendCount int
	syncEvery            time.Duration
	logger               logr.Logger

	syncer            Syncer
	syncTicker        *time.Ticker
	shutdown          chan struct{}
	shutdownWaitGroup sync.WaitGroup

	unsyncedAppendCount int
}

// SyncPolicyPeriodic implements SyncPolicy.
var _ SyncPolicy = (*SyncPolicyPeriodic)(nil)

// NewSyncPolicyPeriodic creates a new SyncPolicyPeriodic.
func NewSyncPolicyPeriodic(syncAfterAppendCount int, syncEvery time.Duration, logger logr.Logger) *SyncPolicyPeriodic {
	return &SyncPolicyPeriodic{
		syncAfterAppendCount: max(syncAfterAppendCount, 1),
		syncEvery:            max(syncEvery, 100*time.Microsecond),
		logger:               logger,
	}
}

func (s *SyncPolicyPeriodic) Startup(syncer Syncer) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.syncer = syncer
	s.syncTicker = time.NewTicker(s.syncEvery)
	s.shutdown = make(chan struct{})
	s.shutdownWaitGroup.Add(1)
	go s.backgroundTask(s.syncTicker, s.shutdown)
	return nil
}

func (s *SyncPolicyPeriodic) DataAppended() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.unsyncedAppendCount++
	if s.unsyncedAppendCount < s.syncAfterAppendCount {
		return nil
	}
	return s.syncNow()
}

func (s *SyncPolicyPeriodic) Shutdown() error {
	s.mutex.Lock()
	if s.syncTicker == nil {
		s.mutex.Unlock()
		return nil
	}
	s.syncTicker.Stop()
	s.syncTicker = nil
	close(s.shutdown)

	// We need to unlock the mutex while waiting for the shutdown, otherwise we run the risk of a deadlock.
	s.mutex.Unlock()
	s.shutdownWaitGroup.Wait()
	s.mutex.Lock()
	defer s.mutex.Unlock()

	err := s.syncNow()
	s.syncer = nil
	return err
}

func (s *SyncPolicyPeriodic) backgroundTask(syncTicker *time.Ticker, shutdown <-chan struct{}) {
	defer s.shutdownWaitGroup.Done()
	for {
		select {
		case <-syncTicker.C:
			s.periodicSync()
		case <-shutdown:
			return
		}
	}
}

func (s *SyncPolicyPeriodic) periodicSync() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.syncNow(); err != nil {
		s.logger.Error(err, "Periodic sync failed")
	}
}

func (s *SyncPolicyPeriodic) syncNow() error {
	if s.unsyncedAppendCount == 0 || s.syncer == nil {
		return nil
	}

	if err := s.syncer.Sync(); err != nil {
		return fmt.Errorf("syncing the segment file: %w", err)
	}
	s.unsyncedAppendCount = 0
	return nil
}
