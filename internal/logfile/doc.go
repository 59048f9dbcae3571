// Package logfile manages the segment files of a transaction log as one logical log. It owns the active segment
// writer, rotates into new segments on transaction boundaries, truncates for restores and prunes old segments.
//
// Readers outside the commit path get read-only channels onto segment files. Channels registered as external readers
// keep their segment from being pruned until they are closed.
package logfile
