package txlog_test

import (
	"bytes"
	"os"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/backbone81/graph-txlog/pkg/txlog"
)

var _ = Describe("TxLog", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "test-txlog-*")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("should register all metrics", func() {
		registry := prometheus.NewRegistry()
		Expect(txlog.RegisterMetrics(registry)).To(Succeed())
		Expect(txlog.RegisterMetrics(registry)).ToNot(Succeed())
	})

	It("should catch up through the public interface", func() {
		Expect(txlog.Init(dir)).To(Succeed())
		logFile, err := txlog.Open(dir, txlog.WithSyncPolicyNone())
		Expect(err).ToNot(HaveOccurred())
		defer func() {
			Expect(logFile.Close()).To(Succeed())
		}()

		guard := txlog.NewAvailabilityGuard(logr.Discard())
		guard.Require("catch-up")
		service, checkpoints := txlog.NewCatchUpService(logFile, guard, logr.Discard())

		var buffer bytes.Buffer
		writer := txlog.NewEntryWriter(&buffer, 0)
		Expect(writer.Write(txlog.StartEntry{Version: txlog.LatestKernelVersion, AppendIndex: 1})).Error().ToNot(HaveOccurred())
		Expect(writer.Write(txlog.CommandEntry{Version: txlog.LatestKernelVersion, Payload: []byte("node")})).Error().ToNot(HaveOccurred())
		Expect(writer.Write(txlog.CommitEntry{Version: txlog.LatestKernelVersion, TransactionID: 1})).Error().ToNot(HaveOccurred())

		transactionID := txlog.TransactionID{ID: 1, Checksum: writer.LastChecksum()}
		Expect(service.Append(buffer.Bytes(), txlog.WithTransaction(transactionID, 1))).To(Equal(txlog.LogPosition{LogVersion: 0, ByteOffset: txlog.SegmentHeaderSize}))
		Expect(service.AppendCheckpoint(transactionID, 1, "caught up")).To(Succeed())

		latest, err := checkpoints.Latest()
		Expect(err).ToNot(HaveOccurred())
		Expect(latest.LogPosition).To(Equal(logFile.Position()))

		channels, err := service.LogFilesChannels(1)
		Expect(err).ToNot(HaveOccurred())
		Expect(channels.Len()).To(Equal(1))
		Expect(channels.Channels()[0].Size()).To(Equal(int64(buffer.Len())))
		Expect(channels.Close()).To(Succeed())

		guard.Fulfill("catch-up")
		Expect(service.Restore(txlog.LogPosition{LogVersion: 0, ByteOffset: txlog.SegmentHeaderSize})).To(MatchError(txlog.ErrDatabaseAvailable))
	})
})
