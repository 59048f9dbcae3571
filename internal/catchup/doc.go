// Package catchup provides bulk access to the transaction log for processes outside the commit path. A catching up
// store streams raw log content through read-only channels, appends log content shipped from elsewhere, restores the
// log after a failed append and marks consistent recovery points with detached checkpoints.
//
// All operations which modify the log require the database to be unavailable for regular transaction traffic.
package catchup
