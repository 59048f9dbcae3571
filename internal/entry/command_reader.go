package entry

import (
	"github.com/backbone81/graph-txlog/internal/encoding"
)

// CommandReader reads the payload of a single command entry. The transaction log never interprets the payload, the
// storage engine provides readers which understand the commands of a kernel version.
type CommandReader interface {
	Read(channel *encoding.ReadableChannel) ([]byte, error)
}

// CommandReaderFactory provides the command reader for a kernel version.
type CommandReaderFactory interface {
	Get(version encoding.KernelVersion) (CommandReader, error)
}

// OpaqueCommandReader reads commands as length-prefixed byte blobs.
type OpaqueCommandReader struct{}

// OpaqueCommandReader implements CommandReader.
var _ CommandReader = OpaqueCommandReader{}

func (OpaqueCommandReader) Read(channel *encoding.ReadableChannel) ([]byte, error) {
	length := channel.Int32()
	payload := channel.Bytes(int(length))
	if err := channel.Err(); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, nil
	}
	return payload, nil
}

type opaqueCommandReaderFactory struct{}

func (opaqueCommandReaderFactory) Get(encoding.KernelVersion) (CommandReader, error) {
	return OpaqueCommandReader{}, nil
}

// DefaultCommandReaderFactory returns the opaque command reader for every kernel version.
var DefaultCommandReaderFactory CommandReaderFactory = opaqueCommandReaderFactory{}
