// Package remote holds the flags shared by commands that talk to a parley
// server.
package remote

import (
	"os"
	"os/user"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/client"
	"github.com/papercomputeco/parley/pkg/logger"
)

// DefaultServer is the address `parley serve` listens on by default.
const DefaultServer = "http://localhost:8080"

// Flags selects the server and the owner to act as.
type Flags struct {
	Server string
	Owner  string
	Debug  bool
}

// Register adds --server and --owner to cmd.
func (f *Flags) Register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Server, "server", envOr("PARLEY_SERVER", DefaultServer), "parley server URL")
	cmd.Flags().StringVar(&f.Owner, "owner", DefaultOwner(), "owner id sent with every request")
	cmd.Flags().BoolVar(&f.Debug, "debug", false, "Enable debug logging on stderr")
}

// Client builds a client for the selected server and owner.
func (f *Flags) Client() *client.Client {
	return client.New(strings.TrimRight(f.Server, "/"), f.Owner, nil)
}

// Logger returns a stderr logger with --debug and a no-op logger otherwise,
// so log lines never interleave with a streamed answer by default.
func (f *Flags) Logger() *zap.Logger {
	if !f.Debug {
		return zap.NewNop()
	}
	return logger.NewLogger(true)
}

// DefaultOwner is $PARLEY_OWNER, else the login name.
func DefaultOwner() string {
	return envOr("PARLEY_OWNER", currentUser())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "local"
}
