// Package txindex locates entries in the transaction log by append index and by transaction id. It scans segment
// files on demand and keeps no state of its own.
package txindex

import (
	"errors"
	"fmt"

	"github.com/backbone81/graph-txlog/internal/encoding"
	"github.com/backbone81/graph-txlog/internal/entry"
	"github.com/backbone81/graph-txlog/internal/logfile"
	"github.com/backbone81/graph-txlog/internal/segment"
)

var (
	ErrNoSuchAppendIndex = errors.New("append index not found in transaction log")
	ErrNoSuchTransaction = errors.New("transaction not found in transaction log")
)

// LogFile is the part of the log file the index reads segments through.
type LogFile interface {
	LowestLogVersion() (uint64, error)
	HighestLogVersion() uint64
	ExtractHeader(logVersion uint64) (encoding.Header, error)
	OpenForVersion(logVersion uint64) (*logfile.ReadOnlyChannel, error)
}

// Index resolves append indexes and transaction ids into log positions.
//
// Index is safe to use from multiple Go routines concurrently as long as the log file is.
type Index struct {
	logFile              LogFile
	commandReaderFactory entry.CommandReaderFactory
}

// Option describes the function signature which all index options need to implement.
type Option func(i *Index)

// WithCommandReaderFactory overwrites the default command reader factory used for scanning.
func WithCommandReaderFactory(commandReaderFactory entry.CommandReaderFactory) Option {
	return func(i *Index) {
		i.commandReaderFactory = commandReaderFactory
	}
}

// New creates a new Index on top of the log file.
func New(logFile LogFile, options ...Option) *Index {
	newIndex := Index{
		logFile:              logFile,
		commandReaderFactory: entry.DefaultCommandReaderFactory,
	}
	for _, option := range options {
		option(&newIndex)
	}
	return &newIndex
}

// PositionFor returns the position of the entry carrying the given append index. The segment is selected by the last
// append index recorded in the segment headers, then scanned entry by entry.
func (i *Index) PositionFor(appendIndex uint64) (encoding.LogPosition, error) {
	logVersion, header, err := i.segmentFor(appendIndex)
	if err != nil {
		return encoding.LogPosition{}, err
	}

	var result encoding.LogPosition
	found := false
	err = i.scan(logVersion, header, func(e entry.Entry, position encoding.LogPosition) bool {
		entryAppendIndex, ok := entry.AppendIndexOf(e)
		if !ok {
			return true
		}
		if entryAppendIndex == appendIndex {
			result = position
			found = true
		}
		return entryAppendIndex < appendIndex
	})
	if err != nil {
		return encoding.LogPosition{}, err
	}
	if !found {
		return encoding.LogPosition{}, fmt.Errorf("%w: %d", ErrNoSuchAppendIndex, appendIndex)
	}
	return result, nil
}

// segmentFor returns the highest segment which starts before the append index.
func (i *Index) segmentFor(appendIndex uint64) (uint64, encoding.Header, error) {
	lowest, err := i.logFile.LowestLogVersion()
	if err != nil {
		return 0, encoding.Header{}, err
	}
	for logVersion := i.logFile.HighestLogVersion(); ; logVersion-- {
		header, err := i.logFile.ExtractHeader(logVersion)
		if err != nil {
			return 0, encoding.Header{}, err
		}
		if header.LastAppendIndex < appendIndex {
			return logVersion, header, nil
		}
		if logVersion == lowest {
			return 0, encoding.Header{}, fmt.Errorf("%w: %d was pruned", ErrNoSuchAppendIndex, appendIndex)
		}
	}
}

// AdvanceToEnd scans the highest segment and returns the position just past its last closed checksum scope together
// with the highest append index of a closed checksum scope. A transaction which is still being written is not part
// of the result.
func (i *Index) AdvanceToEnd() (encoding.LogPosition, uint64, error) {
	logVersion := i.logFile.HighestLogVersion()
	header, err := i.logFile.ExtractHeader(logVersion)
	if err != nil {
		return encoding.LogPosition{}, 0, err
	}

	tail, err := i.scanEnd(logVersion, header, nil)
	if err != nil {
		return encoding.LogPosition{}, 0, err
	}
	return tail.End, tail.LastAppendIndex, nil
}

// VersionFor returns the log version of the segment the transaction with the given id was written to. This is the
// highest segment whose header records a lower last committed transaction id.
func (i *Index) VersionFor(transactionID uint64) (uint64, error) {
	lowest, err := i.logFile.LowestLogVersion()
	if err != nil {
		return 0, err
	}
	for logVersion := i.logFile.HighestLogVersion(); ; logVersion-- {
		header, err := i.logFile.ExtractHeader(logVersion)
		if err != nil {
			return 0, err
		}
		if header.LastCommittedTxID < transactionID {
			return logVersion, nil
		}
		if logVersion == lowest {
			return 0, fmt.Errorf("%w: %d", ErrNoSuchTransaction, transactionID)
		}
	}
}

// PositionOf returns the position of the start entry of the transaction with the given id in the segment. When the
// segment ends with the transaction directly before it, the position just past the end of the segment is returned, as
// this is where the transaction will start.
func (i *Index) PositionOf(logVersion uint64, transactionID uint64) (encoding.LogPosition, error) {
	header, err := i.logFile.ExtractHeader(logVersion)
	if err != nil {
		return encoding.LogPosition{}, err
	}

	var result, transactionStart encoding.LogPosition
	found := false
	lastTransactionID := header.LastCommittedTxID
	tail, err := i.scanEnd(logVersion, header, func(e entry.Entry, position encoding.LogPosition) bool {
		switch typed := e.(type) {
		case entry.Start:
			transactionStart = position
			return true
		case entry.Commit:
			lastTransactionID = typed.TransactionID
		case entry.Rollback:
			lastTransactionID = typed.TransactionID
		default:
			return true
		}
		if lastTransactionID == transactionID {
			result = transactionStart
			found = true
			return false
		}
		return true
	})
	if err != nil {
		return encoding.LogPosition{}, err
	}
	if found {
		return result, nil
	}
	if lastTransactionID+1 == transactionID {
		return tail.End, nil
	}
	return encoding.LogPosition{}, fmt.Errorf("%w: %d in log version %d", ErrNoSuchTransaction, transactionID, logVersion)
}

// scan reads the entries of the segment and passes each one to the visitor until the visitor returns false.
func (i *Index) scan(logVersion uint64, header encoding.Header, visit segment.VisitFunc) error {
	_, err := i.scanEnd(logVersion, header, visit)
	return err
}

// scanEnd works like scan, and additionally describes where the last closed checksum scope ends. An unfinished
// transaction at the end of the segment is not an error.
func (i *Index) scanEnd(logVersion uint64, header encoding.Header, visit segment.VisitFunc) (segment.Tail, error) {
	channel, err := i.logFile.OpenForVersion(logVersion)
	if err != nil {
		return segment.Tail{}, err
	}
	defer channel.Close() //nolint:errcheck // The channel was only read from.

	size, err := channel.Size()
	if err != nil {
		return segment.Tail{}, err
	}
	return segment.Scan(channel, size, header, visit, entry.WithCommandReaderFactory(i.commandReaderFactory))
}
