package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("Config", func() {
	Describe("DefaultConfig", func() {
		It("returns sane defaults", func() {
			c := DefaultConfig()
			Expect(c.Database.Host).To(Equal("localhost"))
			Expect(c.Database.Port).To(Equal(5432))
			Expect(c.Database.SSLMode).To(Equal("disable"))
			Expect(c.Database.MaxOpenConns).To(Equal(25))
			Expect(c.Database.ConnMaxLifetime).To(Equal(5 * time.Minute))
			Expect(c.Server.HTTPPort).To(Equal(8080))
		})
	})

	Describe("Load", func() {
		var tempDir, configFile string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "odb-config-test")
			Expect(err).NotTo(HaveOccurred())
			configFile = filepath.Join(tempDir, "config.yaml")
		})

		AfterEach(func() {
			os.RemoveAll(tempDir)
		})

		It("returns defaults when the file does not exist", func() {
			c, err := Load(filepath.Join(tempDir, "missing.yaml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Database.Port).To(Equal(5432))
		})

		It("parses a YAML file into the config", func() {
			yaml := `
database:
  host: dbhost
  port: 6543
server:
  http_port: 9999
commit_hash: abc123
`
			Expect(os.WriteFile(configFile, []byte(yaml), 0o600)).To(Succeed())

			c, err := Load(configFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Database.Host).To(Equal("dbhost"))
			Expect(c.Database.Port).To(Equal(6543))
			Expect(c.Server.HTTPPort).To(Equal(9999))
			Expect(c.CommitHash).To(Equal("abc123"))
		})
	})

	Describe("LoadFromEnv", func() {
		var c *Config

		BeforeEach(func() {
			c = DefaultConfig()
			os.Unsetenv("DB_HOST")
			os.Unsetenv("DB_PORT")
		})

		It("overrides fields present in the environment", func() {
			os.Setenv("DB_HOST", "envhost")
			os.Setenv("DB_PORT", "3306")
			defer os.Unsetenv("DB_HOST")
			defer os.Unsetenv("DB_PORT")

			c.LoadFromEnv()
			Expect(c.Database.Host).To(Equal("envhost"))
			Expect(c.Database.Port).To(Equal(3306))
		})

		It("keeps the default when DB_PORT is not a valid integer", func() {
			os.Setenv("DB_PORT", "not-a-port")
			defer os.Unsetenv("DB_PORT")

			originalPort := c.Database.Port
			c.LoadFromEnv()
			Expect(c.Database.Port).To(Equal(originalPort))
		})
	})

	Describe("Validate", func() {
		var c *Config

		BeforeEach(func() {
			c = DefaultConfig()
			c.CommitHash = "abc123"
		})

		It("passes for a well-formed config", func() {
			Expect(c.Validate()).NotTo(HaveOccurred())
		})

		It("rejects an empty database host", func() {
			c.Database.Host = ""
			Expect(c.Validate()).To(HaveOccurred())
		})

		It("rejects a missing commit hash", func() {
			c.CommitHash = ""
			err := c.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("commit hash"))
		})

		It("rejects an out-of-range HTTP port", func() {
			c.Server.HTTPPort = 70000
			Expect(c.Validate()).To(HaveOccurred())
		})
	})
})
