package logfile

import (
	"fmt"
)

// SyncPolicyImmediate is flushing the content of the segment to disk after every append. This reduces the chances of
// data loss because of hardware failure, but it has a negative impact on performance.
type SyncPolicyImmediate struct {
	syncer Syncer
}

// SyncPolicyImmediate implements SyncPolicy.
var _ SyncPolicy = (*SyncPolicyImmediate)(nil)

// NewSyncPolicyImmediate creates a new SyncPolicyImmediate.
func NewSyncPolicyImmediate() *SyncPolicyImmediate {
	return &SyncPolicyImmediate{}
}

func (s *SyncPolicyImmediate) Startup(syncer Syncer) error {
	s.syncer = syncer
	return nil
}

func (s *SyncPolicyImmediate) DataAppended() error {
	if err := s.syncer.Sync(); err != nil {
		return fmt.Errorf("syncing the segment file: %w", err)
	}
	return nil
}

func (s *SyncPolicyImmediate) Shutdown() error {
	s.syncer = nil
	return nil
}
