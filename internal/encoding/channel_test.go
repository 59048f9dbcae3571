package encoding_test

import (
	"bytes"
	"io"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/backbone81/graph-txlog/internal/encoding"
)

var _ = Describe("Channel", func() {
	It("should read back what was written", func() {
		var output bytes.Buffer
		writer := encoding.NewWritableChannel(&output)
		writer.PutByte(7)
		writer.PutUint16(math.MaxUint16)
		writer.PutInt32(-3)
		writer.PutInt64(math.MinInt64)
		writer.PutUint64(math.MaxUint64)
		writer.Put([]byte("foo"))
		Expect(writer.Err()).ToNot(HaveOccurred())
		Expect(writer.Written()).To(Equal(int64(1 + 2 + 4 + 8 + 8 + 3)))

		reader := encoding.NewReadableChannel(&output, encoding.LogPosition{LogVersion: 3, ByteOffset: 100})
		Expect(reader.Byte()).To(Equal(byte(7)))
		Expect(reader.Uint16()).To(Equal(uint16(math.MaxUint16)))
		Expect(reader.Int32()).To(Equal(int32(-3)))
		Expect(reader.Int64()).To(Equal(int64(math.MinInt64)))
		Expect(reader.Uint64()).To(Equal(uint64(math.MaxUint64)))
		Expect(reader.Bytes(3)).To(Equal([]byte("foo")))
		Expect(reader.Err()).ToNot(HaveOccurred())
		Expect(reader.Position()).To(Equal(encoding.LogPosition{LogVersion: 3, ByteOffset: 126}))
	})

	It("should validate a checksum scope", func() {
		var output bytes.Buffer
		writer := encoding.NewWritableChannel(&output)
		writer.PutByte(1)
		writer.BeginChecksum()
		writer.PutInt64(42)
		checksum := writer.PutChecksum()
		Expect(writer.Err()).ToNot(HaveOccurred())

		reader := encoding.NewReadableChannel(&output, encoding.LogPosition{})
		reader.Byte()
		reader.BeginChecksum()
		Expect(reader.Int64()).To(Equal(int64(42)))
		Expect(reader.EndChecksumAndValidate()).To(Equal(checksum))
		Expect(reader.Err()).ToNot(HaveOccurred())
	})

	It("should include seed bytes in the checksum scope", func() {
		var output bytes.Buffer
		writer := encoding.NewWritableChannel(&output)
		writer.BeginChecksum()
		writer.PutByte(1)
		writer.PutByte(2)
		writer.PutInt64(42)
		writer.PutChecksum()

		reader := encoding.NewReadableChannel(&output, encoding.LogPosition{})
		first, second := reader.Byte(), reader.Byte()
		reader.BeginChecksum(first, second)
		reader.Int64()
		reader.EndChecksumAndValidate()
		Expect(reader.Err()).ToNot(HaveOccurred())
	})

	It("should detect a checksum mismatch", func() {
		var output bytes.Buffer
		writer := encoding.NewWritableChannel(&output)
		writer.BeginChecksum()
		writer.PutInt64(42)
		writer.PutChecksum()
		output.Bytes()[3] ^= 0x01

		reader := encoding.NewReadableChannel(&output, encoding.LogPosition{})
		reader.BeginChecksum()
		reader.Int64()
		reader.EndChecksumAndValidate()
		Expect(reader.Err()).To(MatchError(encoding.ErrChecksumMismatch))
	})

	It("should report truncated data", func() {
		reader := encoding.NewReadableChannel(bytes.NewReader([]byte{1, 2, 3}), encoding.LogPosition{})
		reader.Int64()
		Expect(reader.Err()).To(MatchError(encoding.ErrTruncated))
		Expect(reader.Err()).To(MatchError(io.ErrUnexpectedEOF))
	})

	It("should keep errors sticky", func() {
		reader := encoding.NewReadableChannel(bytes.NewReader(nil), encoding.LogPosition{})
		Expect(reader.Byte()).To(Equal(byte(0)))
		Expect(reader.Err()).To(MatchError(io.EOF))
		Expect(reader.Bytes(0)).To(BeNil())
		Expect(reader.Err()).To(MatchError(io.EOF))
	})

	It("should reject negative and oversized lengths", func() {
		reader := encoding.NewReadableChannel(bytes.NewReader(make([]byte, 16)), encoding.LogPosition{})
		reader.Bytes(-1)
		Expect(reader.Err()).To(MatchError(encoding.ErrTruncated))

		reader = encoding.NewReadableChannel(bytes.NewReader(make([]byte, 16)), encoding.LogPosition{})
		reader.Bytes(encoding.MaxVariableLength + 1)
		Expect(reader.Err()).To(MatchError(encoding.ErrFieldTooLarge))
	})

	It("should order log positions", func() {
		a := encoding.LogPosition{LogVersion: 1, ByteOffset: 500}
		b := encoding.LogPosition{LogVersion: 2, ByteOffset: 64}
		Expect(a.Before(b)).To(BeTrue())
		Expect(b.Before(a)).To(BeFalse())
		Expect(a.Compare(a)).To(Equal(0))
	})

	It("should round trip store ids", func() {
		storeID := encoding.NewStoreID()
		Expect(storeID.IsZero()).To(BeFalse())
		parsed, err := encoding.ParseStoreID(storeID.String())
		Expect(err).ToNot(HaveOccurred())
		Expect(parsed).To(Equal(storeID))
	})
})
