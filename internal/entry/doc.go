// Package entry provides the typed entries of the transaction log and their binary codec.
//
// Every entry starts with a two byte header: the kernel version the entry was written with, followed by the entry
// type code. The pair selects the serializer which knows the field layout of the entry body. A single segment file can
// hold entries of several kernel versions, so every entry is dispatched individually.
//
// Entries are grouped into checksum scopes. Start, ChunkStart, Rollback and DetachedCheckpoint entries open a new
// scope including their own header. Commit, Rollback, ChunkEnd and DetachedCheckpoint entries close the scope by
// appending the checksum over every byte of the scope. Start entries reference the checksum of the last closed scope
// through their previous checksum field, which chains all transactions of the log together.
package entry
