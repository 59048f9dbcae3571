// Package txlog provides the transaction log of a graph store together with bulk access for catching up stores.
//
//   - The transaction log is made up of entries. A transaction consists of a start entry, its commands and a commit or
//     rollback entry. Large transactions are written in chunks. Every entry carries the kernel version it was encoded
//     with, and every transaction is protected by a checksum which is chained to the checksum of the transaction
//     before it.
//   - Entries are stored in segment files. Each segment file starts with a header recording the log version of the
//     segment together with the last committed transaction, the last append index and the checksum written before
//     the segment was started. All segment files are located in the same directory and are named after their log
//     version, padded with leading zeros to be 20 characters in length with a `.txlog` file extension.
//   - Append indexes uniquely identify batches in the log. They are unsigned 64-bit integers which are strictly
//     increasing.
//   - The catch up service hands out read-only channels on the raw log content, appends raw log content received
//     from elsewhere, restores the log after a failed append and writes detached checkpoints. Modifications are only
//     allowed while the database is unavailable for regular transaction traffic.
package txlog
