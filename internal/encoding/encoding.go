// Package encoding provides the low level building blocks of the transaction log format: the byte order, log
// positions, kernel versions, store identities, the segment file header and checksummed channels for writing and
// reading fixed width fields.
package encoding

import "encoding/binary"

// Endian is the endianness the transaction log uses for serializing/deserializing integers to file. It is fixed at
// compile time and never depends on the platform the log is written on.
var Endian = binary.LittleEndian
