package catchup_test

import (
	"bytes"
	"io"
	"os"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/backbone81/graph-txlog/internal/availability"
	"github.com/backbone81/graph-txlog/internal/catchup"
	"github.com/backbone81/graph-txlog/internal/checkpoint"
	"github.com/backbone81/graph-txlog/internal/encoding"
	"github.com/backbone81/graph-txlog/internal/entry"
	"github.com/backbone81/graph-txlog/internal/logfile"
	"github.com/backbone81/graph-txlog/internal/segment"
	"github.com/backbone81/graph-txlog/internal/txindex"
)

var _ = Describe("Service", func() {
	var dir string
	var logFile *logfile.LogFile
	var checkpoints *checkpoint.File
	var guard *availability.Guard
	var service *catchup.Service

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "test-catchup-*")
		Expect(err).ToNot(HaveOccurred())

		Expect(logfile.Init(dir)).To(Succeed())
		logFile, err = logfile.Open(dir, logfile.WithMaxSegmentSize(encoding.HeaderSize+transactionSize))
		Expect(err).ToNot(HaveOccurred())

		checkpoints = checkpoint.New(dir, logFile.StoreID())
		guard = availability.NewGuard(logr.Discard())
		guard.Require("catch-up")
		service = catchup.NewService(logFile, txindex.New(logFile), checkpoints, guard)
	})

	AfterEach(func() {
		Expect(logFile.Close()).To(Succeed())
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	// appendTransactions bulk appends committed transactions with the ids and append indexes 1 to count and returns
	// their bytes. With rotate set, every transaction ends on a boundary and ends up in its own segment.
	appendTransactions := func(count int, rotate bool) [][]byte {
		var result [][]byte
		checksum := uint32(0)
		for i := 1; i <= count; i++ {
			data, nextChecksum := transaction(checksum, uint64(i), uint64(i))
			var options []catchup.AppendOption
			if rotate {
				options = append(options, catchup.WithTransaction(catchup.TransactionID{ID: uint64(i), Checksum: nextChecksum}, uint64(i)))
			}
			Expect(service.Append(data, options...)).WithOffset(1).Error().ToNot(HaveOccurred())
			result = append(result, data)
			checksum = nextChecksum
		}
		return result
	}

	readChannels := func(channels *catchup.TransactionLogChannels) []byte {
		var result []byte
		for _, channel := range channels.Channels() {
			data, err := io.ReadAll(channel.Reader())
			ExpectWithOffset(1, err).ToNot(HaveOccurred())
			ExpectWithOffset(1, data).To(HaveLen(int(channel.Size())))
			result = append(result, data...)
		}
		return result
	}

	Context("Channels", func() {
		It("should reject invalid start append indexes", func() {
			appendTransactions(1, false)

			Expect(service.LogFilesChannels(0)).Error().To(MatchError(catchup.ErrInvalidArgument))
			Expect(service.LogFilesChannels(2)).Error().To(MatchError(catchup.ErrInvalidArgument))
			Expect(service.LogFilesChannels(2)).Error().To(MatchError(txindex.ErrNoSuchAppendIndex))
			Expect(logFile.Registry().Count()).To(BeZero())
		})

		It("should reject a start append index whose segment was pruned in the meantime", func() {
			appendTransactions(3, true)
			service = catchup.NewService(logFile, pruningIndex{Index: txindex.New(logFile), logFile: logFile, upToLogVersion: 1}, checkpoints, guard)

			_, err := service.LogFilesChannels(1)
			Expect(err).To(MatchError(catchup.ErrInvalidArgument))
			Expect(err).To(MatchError(ContainSubstring("append index 1 not found in log")))
			Expect(logFile.Registry().Count()).To(BeZero())
			Expect(segment.GetSegments(dir)).To(Equal([]uint64{2, 3}))
		})

		It("should leave out a transaction which is still being written", func() {
			data := appendTransactions(1, false)
			next, _ := transaction(0, 2, 2)
			Expect(service.Append(next[:10])).Error().ToNot(HaveOccurred())

			channels, err := service.LogFilesChannels(1)
			Expect(err).ToNot(HaveOccurred())
			defer func() {
				Expect(channels.Close()).To(Succeed())
			}()

			Expect(channels.Len()).To(Equal(1))
			channel := channels.Channels()[0]
			Expect(channel.EndOffset).To(Equal(int64(encoding.HeaderSize + transactionSize)))
			Expect(channel.LastAppendIndex).To(Equal(uint64(1)))
			Expect(readChannels(channels)).To(Equal(data[0]))
		})

		It("should cover a rolled back transaction with a single channel", func() {
			data, _ := writeEntries(0,
				entry.Start{Version: encoding.LatestKernelVersion, AppendIndex: 5},
				entry.Command{Version: encoding.LatestKernelVersion, Payload: bytes.Repeat([]byte{0xaa}, 40)},
				entry.Rollback{Version: encoding.LatestKernelVersion, TransactionID: 5, AppendIndex: 6},
			)
			Expect(service.Append(data)).To(Equal(encoding.LogPosition{LogVersion: 0, ByteOffset: encoding.HeaderSize}))

			channels, err := service.LogFilesChannels(5)
			Expect(err).ToNot(HaveOccurred())
			defer func() {
				Expect(channels.Close()).To(Succeed())
			}()

			Expect(channels.Len()).To(Equal(1))
			channel := channels.Channels()[0]
			Expect(channel.LogVersion).To(BeZero())
			Expect(channel.StartOffset).To(Equal(int64(encoding.HeaderSize)))
			Expect(channel.EndOffset).To(Equal(int64(encoding.HeaderSize + startEntrySize + commandEntrySize + rollbackEntrySize)))
			Expect(channel.StartAppendIndex).To(Equal(uint64(5)))
			Expect(channel.LastAppendIndex).To(Equal(uint64(6)))
			Expect(channel.KernelVersion).To(Equal(encoding.LatestKernelVersion))
			Expect(readChannels(channels)).To(Equal(data))
		})

		It("should return ordered and contiguous channels across segments", func() {
			data := appendTransactions(3, true)
			Expect(logFile.HighestLogVersion()).To(Equal(uint64(3)))

			channels, err := service.LogFilesChannels(1)
			Expect(err).ToNot(HaveOccurred())
			defer func() {
				Expect(channels.Close()).To(Succeed())
			}()

			Expect(channels.Len()).To(Equal(4))
			for i, channel := range channels.Channels() {
				Expect(channel.LogVersion).To(Equal(uint64(i)))
				Expect(channel.StartOffset).To(Equal(int64(encoding.HeaderSize)))
				if i > 0 {
					previous := channels.Channels()[i-1]
					Expect(channel.StartAppendIndex).To(Equal(previous.LastAppendIndex + 1))
				}
			}
			last := channels.Channels()[3]
			Expect(last.Size()).To(BeZero())
			Expect(last.LastAppendIndex).To(Equal(uint64(3)))
			Expect(readChannels(channels)).To(Equal(bytes.Join(data, nil)))
		})

		It("should start in the middle of the log", func() {
			data := appendTransactions(3, false)

			channels, err := service.LogFilesChannels(2)
			Expect(err).ToNot(HaveOccurred())
			defer func() {
				Expect(channels.Close()).To(Succeed())
			}()

			Expect(channels.Len()).To(Equal(1))
			channel := channels.Channels()[0]
			Expect(channel.StartPosition()).To(Equal(encoding.LogPosition{LogVersion: 0, ByteOffset: encoding.HeaderSize + transactionSize}))
			Expect(channel.StartAppendIndex).To(Equal(uint64(2)))
			Expect(channel.LastAppendIndex).To(Equal(uint64(3)))
			Expect(readChannels(channels)).To(Equal(bytes.Join(data[1:], nil)))

			// The channel is positioned at the start of its range.
			buffer := make([]byte, startEntrySize)
			Expect(io.ReadFull(channel.Channel(), buffer)).To(Equal(startEntrySize))
			Expect(buffer).To(Equal(data[1][:startEntrySize]))
		})

		It("should only hand out read-only channels", func() {
			appendTransactions(2, true)

			channels, err := service.LogFilesChannels(1)
			Expect(err).ToNot(HaveOccurred())
			defer func() {
				Expect(channels.Close()).To(Succeed())
			}()

			for _, channel := range channels.Channels() {
				Expect(channel.Channel().Write([]byte{1})).Error().To(MatchError(logfile.ErrUnsupportedOperation))
				Expect(channel.Channel().WriteAll([]byte{1})).To(MatchError(logfile.ErrUnsupportedOperation))
				Expect(channel.Channel().Truncate(0)).To(MatchError(logfile.ErrUnsupportedOperation))
			}
		})

		It("should keep segments with open channels from being pruned", func() {
			data := appendTransactions(3, true)
			before := testutil.ToFloat64(catchup.ChannelRequestsTotal)

			channels, err := service.LogFilesChannels(1)
			Expect(err).ToNot(HaveOccurred())
			Expect(testutil.ToFloat64(catchup.ChannelRequestsTotal)).To(Equal(before + 1))
			Expect(logFile.Registry().Count()).To(Equal(4))

			Expect(logFile.Prune(2)).To(BeZero())
			Expect(readChannels(channels)).To(Equal(bytes.Join(data, nil)))

			Expect(channels.Close()).To(Succeed())
			Expect(channels.Close()).To(Succeed())
			Expect(logFile.Registry().Count()).To(BeZero())
			Expect(logFile.Prune(2)).To(Equal(3))
		})

		It("should only protect the segments in range", func() {
			appendTransactions(3, true)

			channels, err := service.LogFilesChannels(2)
			Expect(err).ToNot(HaveOccurred())
			defer func() {
				Expect(channels.Close()).To(Succeed())
			}()

			Expect(channels.Len()).To(Equal(3))
			Expect(logFile.Prune(2)).To(Equal(1))
			Expect(segment.GetSegments(dir)).To(Equal([]uint64{1, 2, 3}))
		})
	})

	Context("Append and restore", func() {
		It("should restore the log to the state before an append", func() {
			data := appendTransactions(2, false)
			before := testutil.ToFloat64(catchup.RestoresTotal)

			next, _ := transaction(0, 3, 3)
			position, err := service.Append(next)
			Expect(err).ToNot(HaveOccurred())
			Expect(position).To(Equal(encoding.LogPosition{LogVersion: 0, ByteOffset: encoding.HeaderSize + 2*transactionSize}))

			Expect(service.Restore(position)).To(Succeed())
			Expect(logFile.Position()).To(Equal(position))
			Expect(testutil.ToFloat64(catchup.RestoresTotal)).To(Equal(before + 1))

			channels, err := service.LogFilesChannels(1)
			Expect(err).ToNot(HaveOccurred())
			defer func() {
				Expect(channels.Close()).To(Succeed())
			}()
			Expect(readChannels(channels)).To(Equal(bytes.Join(data, nil)))
		})

		It("should restore across rotated segments", func() {
			appendTransactions(2, true)
			Expect(logFile.HighestLogVersion()).To(Equal(uint64(2)))

			next, checksum := transaction(0, 3, 3)
			position, err := service.Append(next, catchup.WithTransaction(catchup.TransactionID{ID: 3, Checksum: checksum}, 3))
			Expect(err).ToNot(HaveOccurred())
			Expect(position).To(Equal(encoding.LogPosition{LogVersion: 2, ByteOffset: encoding.HeaderSize}))
			Expect(logFile.HighestLogVersion()).To(Equal(uint64(3)))

			Expect(service.Restore(position)).To(Succeed())
			Expect(logFile.HighestLogVersion()).To(Equal(uint64(2)))
			Expect(logFile.Position()).To(Equal(position))
			Expect(segment.GetSegments(dir)).To(Equal([]uint64{0, 1, 2}))
		})

		It("should not rotate without a transaction boundary", func() {
			appendTransactions(3, false)
			Expect(logFile.HighestLogVersion()).To(BeZero())
		})

		It("should reject restore positions outside of the log", func() {
			appendTransactions(2, true)

			Expect(service.Restore(encoding.LogPosition{LogVersion: 1, ByteOffset: 10})).To(MatchError(catchup.ErrInvalidArgument))
			Expect(service.Restore(encoding.LogPosition{LogVersion: 2, ByteOffset: encoding.HeaderSize + 1})).To(MatchError(catchup.ErrInvalidArgument))
			Expect(service.Restore(encoding.LogPosition{LogVersion: 3, ByteOffset: encoding.HeaderSize})).To(MatchError(catchup.ErrInvalidArgument))

			Expect(logFile.Prune(0)).To(Equal(1))
			Expect(service.Restore(encoding.LogPosition{LogVersion: 0, ByteOffset: encoding.HeaderSize})).To(MatchError(catchup.ErrInvalidArgument))
			Expect(logFile.Position()).To(Equal(encoding.LogPosition{LogVersion: 2, ByteOffset: encoding.HeaderSize}))
		})

		It("should reject restore positions before the latest checkpoint", func() {
			appendTransactions(2, false)
			Expect(service.AppendCheckpoint(catchup.TransactionID{ID: 2}, 2, "catch-up")).To(Succeed())

			err := service.Restore(encoding.LogPosition{LogVersion: 0, ByteOffset: encoding.HeaderSize + transactionSize})
			Expect(err).To(MatchError(catchup.ErrRestoreBeforeCheckpoint))
			Expect(err).To(MatchError(catchup.ErrInvalidArgument))

			Expect(service.Restore(encoding.LogPosition{LogVersion: 0, ByteOffset: encoding.HeaderSize + 2*transactionSize})).To(Succeed())
		})
	})

	Context("Checkpoints", func() {
		It("should point the checkpoint to the transaction following the given one", func() {
			appendTransactions(3, false)
			before := testutil.ToFloat64(catchup.CheckpointsTotal)

			Expect(service.AppendCheckpoint(catchup.TransactionID{ID: 1}, 1, "first")).To(Succeed())
			latest, err := checkpoints.Latest()
			Expect(err).ToNot(HaveOccurred())
			Expect(latest.TransactionID).To(Equal(uint64(1)))
			Expect(latest.LastAppendIndex).To(Equal(uint64(1)))
			Expect(latest.LogPosition).To(Equal(encoding.LogPosition{LogVersion: 0, ByteOffset: encoding.HeaderSize + transactionSize}))
			Expect(latest.Reason).To(Equal("first"))
			Expect(latest.StoreID).To(Equal(logFile.StoreID()))

			Expect(service.AppendCheckpoint(catchup.TransactionID{ID: 3}, 3, "last")).To(Succeed())
			latest, err = checkpoints.Latest()
			Expect(err).ToNot(HaveOccurred())
			Expect(latest.LogPosition).To(Equal(encoding.LogPosition{LogVersion: 0, ByteOffset: encoding.HeaderSize + 3*transactionSize}))
			Expect(testutil.ToFloat64(catchup.CheckpointsTotal)).To(Equal(before + 2))
		})

		It("should locate transactions in rotated segments", func() {
			appendTransactions(3, true)

			Expect(service.AppendCheckpoint(catchup.TransactionID{ID: 1}, 1, "middle")).To(Succeed())
			latest, err := checkpoints.Latest()
			Expect(err).ToNot(HaveOccurred())
			Expect(latest.LogPosition).To(Equal(encoding.LogPosition{LogVersion: 1, ByteOffset: encoding.HeaderSize}))

			Expect(service.AppendCheckpoint(catchup.TransactionID{ID: 3}, 3, "end")).To(Succeed())
			latest, err = checkpoints.Latest()
			Expect(err).ToNot(HaveOccurred())
			Expect(latest.LogPosition).To(Equal(encoding.LogPosition{LogVersion: 3, ByteOffset: encoding.HeaderSize}))
		})

		It("should reject unknown transactions", func() {
			appendTransactions(3, false)

			Expect(service.AppendCheckpoint(catchup.TransactionID{ID: 9}, 9, "unknown")).To(MatchError(catchup.ErrInvalidArgument))
			Expect(checkpoints.Latest()).Error().To(MatchError(checkpoint.ErrNoCheckpoint))
		})
	})

	Context("Availability", func() {
		It("should reject modifications while the database is available", func() {
			appendTransactions(2, false)
			guard.Fulfill("catch-up")
			position := logFile.Position()
			before := testutil.ToFloat64(catchup.RejectedRequestsTotal)

			next, _ := transaction(0, 3, 3)
			Expect(service.Append(next)).Error().To(MatchError(catchup.ErrDatabaseAvailable))
			Expect(service.Restore(encoding.LogPosition{LogVersion: 0, ByteOffset: encoding.HeaderSize})).To(MatchError(catchup.ErrDatabaseAvailable))
			Expect(service.AppendCheckpoint(catchup.TransactionID{ID: 2}, 2, "available")).To(MatchError(catchup.ErrDatabaseAvailable))

			Expect(testutil.ToFloat64(catchup.RejectedRequestsTotal)).To(Equal(before + 3))
			Expect(logFile.Position()).To(Equal(position))
			Expect(checkpoints.Latest()).Error().To(MatchError(checkpoint.ErrNoCheckpoint))
		})

		It("should hand out channels while the database is available", func() {
			data := appendTransactions(1, false)
			guard.Fulfill("catch-up")

			channels, err := service.LogFilesChannels(1)
			Expect(err).ToNot(HaveOccurred())
			defer func() {
				Expect(channels.Close()).To(Succeed())
			}()
			Expect(readChannels(channels)).To(Equal(data[0]))
		})
	})
})

// pruningIndex prunes the log right after resolving a position, before the service takes the prune lock.
type pruningIndex struct {
	*txindex.Index

	logFile        *logfile.LogFile
	upToLogVersion uint64
}

func (i pruningIndex) PositionFor(appendIndex uint64) (encoding.LogPosition, error) {
	position, err := i.Index.PositionFor(appendIndex)
	if err != nil {
		return position, err
	}
	if _, err := i.logFile.Prune(i.upToLogVersion); err != nil {
		return position, err
	}
	return position, nil
}
