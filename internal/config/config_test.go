package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/backbone81/graph-txlog/internal/config"
	"github.com/backbone81/graph-txlog/internal/encoding"
	"github.com/backbone81/graph-txlog/internal/logfile"
)

var _ = Describe("Config", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "test-config-*")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	writeConfig := func(content string) string {
		path := filepath.Join(dir, "txlog.yaml")
		ExpectWithOffset(1, os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	It("should provide valid defaults", func() {
		Expect(config.Default().Validate()).To(Succeed())
	})

	It("should load values on top of the defaults", func() {
		path := writeConfig(`
directory: /var/lib/txlog
maxSegmentSize: 1048576
syncPolicy: periodic
syncEvery: 250ms
`)
		loaded, err := config.Load(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(loaded.Directory).To(Equal("/var/lib/txlog"))
		Expect(loaded.MaxSegmentSize).To(Equal(int64(1048576)))
		Expect(loaded.SyncPolicy).To(Equal("periodic"))
		Expect(loaded.SyncEvery).To(Equal(250 * time.Millisecond))
		Expect(loaded.SyncAfterAppendCount).To(Equal(config.Default().SyncAfterAppendCount))
		Expect(loaded.KernelVersion).To(Equal(uint8(encoding.LatestKernelVersion)))
	})

	It("should reject unknown keys", func() {
		path := writeConfig("maxSegmentSzie: 10\n")
		Expect(config.Load(path)).Error().To(HaveOccurred())
	})

	It("should report a missing file", func() {
		Expect(config.Load(filepath.Join(dir, "missing.yaml"))).Error().To(MatchError(os.ErrNotExist))
	})

	DescribeTable("should reject invalid values",
		func(content string) {
			Expect(config.Load(writeConfig(content))).Error().To(MatchError(config.ErrInvalidConfig))
		},
		Entry("empty directory", "directory: \"\"\n"),
		Entry("unsupported kernel version", "kernelVersion: 9\n"),
		Entry("segment size below the header", "maxSegmentSize: 64\n"),
		Entry("negative pre-allocation", "preAllocationSize: -1\n"),
		Entry("unknown sync policy", "syncPolicy: grouped\n"),
		Entry("periodic sync without interval", "syncPolicy: periodic\nsyncEvery: 0s\n"),
	)

	It("should open a log file with the converted options", func() {
		configuration := config.Default()
		configuration.Directory = dir
		configuration.KernelVersion = uint8(encoding.KernelVersionV1)
		configuration.PreAllocationSize = 0
		options, err := configuration.LogFileOptions()
		Expect(err).ToNot(HaveOccurred())

		Expect(logfile.Init(dir, options...)).To(Succeed())
		logFile, err := logfile.Open(dir, options...)
		Expect(err).ToNot(HaveOccurred())
		Expect(logFile.ExtractHeader(0)).To(HaveField("KernelVersion", encoding.KernelVersionV1))
		Expect(logFile.Close()).To(Succeed())
	})
})
