package servecmder

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/config"
)

var _ = Describe("Serve Command", func() {
	var (
		dir        string
		configPath string
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		configPath = filepath.Join(dir, "config.toml")
		Expect(os.WriteFile(configPath, []byte(`
listen = ":7070"
models = ["echo-small", "echo-large"]

[backend]
kind = "echo"
`), 0o600)).To(Succeed())
	})

	Describe("config", func() {
		It("reads the config file", func() {
			cmder := &serveCommander{}
			cmd := newServeCmd(cmder)
			Expect(cmd.ParseFlags([]string{"--config", configPath})).To(Succeed())

			cfg, err := cmder.config(cmd)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Listen).To(Equal(":7070"))
			Expect(cfg.Backend.Kind).To(Equal(config.KindEcho))
			Expect(cfg.Models).To(Equal([]string{"echo-small", "echo-large"}))
		})

		It("lets flags override the file", func() {
			cmder := &serveCommander{}
			cmd := newServeCmd(cmder)
			Expect(cmd.ParseFlags([]string{
				"--config", configPath,
				"--listen", ":9191",
				"--sqlite", ":memory:",
				"--debug",
			})).To(Succeed())

			cfg, err := cmder.config(cmd)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Listen).To(Equal(":9191"))
			Expect(cfg.Database).To(Equal(":memory:"))
			Expect(cfg.Debug).To(BeTrue())
		})

		It("fails on a missing explicit config file", func() {
			cmder := &serveCommander{}
			cmd := newServeCmd(cmder)
			Expect(cmd.ParseFlags([]string{"--config", filepath.Join(dir, "nope.toml")})).To(Succeed())

			_, err := cmder.config(cmd)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("run", func() {
		It("serves until the context is cancelled", func() {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			addr := ln.Addr().String()
			Expect(ln.Close()).To(Succeed())

			cfg := config.Default()
			cfg.Listen = addr
			cfg.Database = filepath.Join(dir, "parley.db")
			cfg.Backend = config.Backend{Kind: config.KindEcho}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- (&serveCommander{}).run(ctx, cfg)
			}()

			Eventually(func() int {
				resp, err := http.Get("http://" + addr + "/health")
				if err != nil {
					return 0
				}
				defer resp.Body.Close()
				return resp.StatusCode
			}).Should(Equal(http.StatusOK))

			cancel()
			Eventually(done).Should(Receive(BeNil()))
			Expect(filepath.Join(dir, "parley.db")).To(BeAnExistingFile())
		})
	})
})
