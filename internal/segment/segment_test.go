package segment_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/backbone81/graph-txlog/internal/encoding"
	"github.com/backbone81/graph-txlog/internal/segment"
)

var _ = Describe("Segment", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "test-segment-*")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("should name segment files by their log version", func() {
		Expect(segment.FileName(0)).To(Equal("00000000000000000000.txlog"))
		Expect(segment.FileName(42)).To(Equal("00000000000000000042.txlog"))
		Expect(segment.FilePath(dir, 1)).To(Equal(filepath.Join(dir, "00000000000000000001.txlog")))
	})

	It("should list segments in ascending order and ignore other files", func() {
		for _, name := range []string{
			segment.FileName(3),
			segment.FileName(1),
			segment.FileName(2) + ".new",
			"checkpoint.log",
			"00000000000000000002.wal",
		} {
			Expect(os.WriteFile(filepath.Join(dir, name), nil, 0o600)).To(Succeed())
		}
		Expect(os.Mkdir(filepath.Join(dir, segment.FileName(7)), 0o700)).To(Succeed())

		Expect(segment.GetSegments(dir)).To(Equal([]uint64{1, 3}))
	})

	It("should fail listing a missing directory", func() {
		Expect(segment.GetSegments(filepath.Join(dir, "missing"))).Error().To(HaveOccurred())
	})

	It("should create a segment with header and pre-allocation", func() {
		header := encoding.NewHeader(5, encoding.LatestKernelVersion, encoding.NewStoreID())
		header.LastCommittedTxID = 10
		header.LastAppendIndex = 11
		header.PreviousChecksum = 0xdeadbeef

		writer, err := segment.CreateSegment(dir, header, 1024)
		Expect(err).ToNot(HaveOccurred())
		Expect(writer.FilePath()).To(Equal(segment.FilePath(dir, 5)))
		Expect(writer.Offset()).To(Equal(int64(encoding.HeaderSize)))
		Expect(writer.Position()).To(Equal(encoding.LogPosition{LogVersion: 5, ByteOffset: encoding.HeaderSize}))
		Expect(writer.Header()).To(Equal(header))
		Expect(writer.Close()).To(Succeed())

		fileInfo, err := os.Stat(segment.FilePath(dir, 5))
		Expect(err).ToNot(HaveOccurred())
		Expect(fileInfo.Size()).To(Equal(int64(1024)))
		Expect(segment.FilePath(dir, 5) + ".new").ToNot(BeAnExistingFile())

		Expect(segment.ReadHeaderFromFile(dir, 5)).To(Equal(header))
	})

	It("should never pre-allocate less than the header", func() {
		writer, err := segment.CreateSegment(dir, encoding.NewHeader(0, encoding.LatestKernelVersion, encoding.StoreID{}), 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		fileInfo, err := os.Stat(segment.FilePath(dir, 0))
		Expect(err).ToNot(HaveOccurred())
		Expect(fileInfo.Size()).To(Equal(int64(encoding.HeaderSize)))
	})

	It("should refuse to overwrite an existing segment", func() {
		header := encoding.NewHeader(0, encoding.LatestKernelVersion, encoding.StoreID{})
		writer, err := segment.CreateSegment(dir, header, 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		Expect(segment.CreateSegment(dir, header, 0)).Error().To(MatchError(os.ErrExist))
	})

	It("should replace a left-over temporary segment file", func() {
		Expect(os.WriteFile(segment.FilePath(dir, 0)+".new", []byte("garbage"), 0o600)).To(Succeed())

		writer, err := segment.CreateSegment(dir, encoding.NewHeader(0, encoding.LatestKernelVersion, encoding.StoreID{}), 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(writer.Close()).To(Succeed())
		Expect(segment.GetSegments(dir)).To(Equal([]uint64{0}))
	})

	It("should append, truncate and re-open a segment", func() {
		writer, err := segment.CreateSegment(dir, encoding.NewHeader(0, encoding.LatestKernelVersion, encoding.StoreID{}), 4096)
		Expect(err).ToNot(HaveOccurred())

		Expect(writer.Write([]byte("foo"))).To(Equal(3))
		Expect(writer.Write([]byte("bar"))).To(Equal(3))
		Expect(writer.Sync()).To(Succeed())
		Expect(writer.Offset()).To(Equal(int64(encoding.HeaderSize + 6)))

		Expect(writer.Truncate(encoding.HeaderSize + 3)).To(Succeed())
		Expect(writer.Offset()).To(Equal(int64(encoding.HeaderSize + 3)))
		Expect(writer.Truncate(encoding.HeaderSize - 1)).ToNot(Succeed())
		Expect(writer.Close()).To(Succeed())

		data, err := os.ReadFile(segment.FilePath(dir, 0))
		Expect(err).ToNot(HaveOccurred())
		Expect(data[encoding.HeaderSize:]).To(Equal([]byte("foo")))

		writer, err = segment.OpenSegmentForAppend(dir, 0, encoding.HeaderSize+3)
		Expect(err).ToNot(HaveOccurred())
		Expect(writer.Write([]byte("baz"))).To(Equal(3))
		Expect(writer.Close()).To(Succeed())

		data, err = os.ReadFile(segment.FilePath(dir, 0))
		Expect(err).ToNot(HaveOccurred())
		Expect(data[encoding.HeaderSize:]).To(Equal([]byte("foobaz")))
	})

	It("should detect renamed segment files", func() {
		writer, err := segment.CreateSegment(dir, encoding.NewHeader(0, encoding.LatestKernelVersion, encoding.StoreID{}), 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(writer.Close()).To(Succeed())
		Expect(os.Rename(segment.FilePath(dir, 0), segment.FilePath(dir, 1))).To(Succeed())

		Expect(segment.ReadHeaderFromFile(dir, 1)).Error().To(MatchError(segment.ErrLogVersionMismatch))
		Expect(segment.OpenSegmentForAppend(dir, 1, encoding.HeaderSize)).Error().To(MatchError(segment.ErrLogVersionMismatch))
	})

	It("should remove segments", func() {
		writer, err := segment.CreateSegment(dir, encoding.NewHeader(0, encoding.LatestKernelVersion, encoding.StoreID{}), 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		Expect(segment.RemoveSegment(dir, 0)).To(Succeed())
		Expect(segment.GetSegments(dir)).To(BeEmpty())
		Expect(segment.RemoveSegment(dir, 0)).ToNot(Succeed())
	})
})
