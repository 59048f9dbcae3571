package logfile

// SyncPolicyNone is never flushing the content of the segment to disk. This might improve performance but increases
// the risk of data loss in case of a hardware failure.
type SyncPolicyNone struct{}

// SyncPolicyNone implements SyncPolicy.
var _ SyncPolicy = (*SyncPolicyNone)(nil)

// NewSyncPolicyNone creates a new SyncPolicyNone.
func NewSyncPolicyNone() *SyncPolicyNone {
	return &SyncPolicyNone{}
}

func (s *SyncPolicyNone) Startup(syncer Syncer) error {
	return nil
}

func (s *SyncPolicyNone) DataAppended() error {
	return nil
}

func (s *SyncPolicyNone) Shutdown() error {
	return nil
}
