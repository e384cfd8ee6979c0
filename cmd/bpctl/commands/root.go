package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	app "github.com/kode4food/buildprops"
	"github.com/kode4food/buildprops/pkg/client"
)

type options struct {
	server  string
	timeout time.Duration
}

const (
	DefaultServer = "http://localhost:8080"
	ServerEnv     = "BUILDPROPS_URL"
)

// Execute runs the CLI against os.Args
func Execute() error {
	root := NewRootCommand()
	err := root.Execute()
	if err != nil {
		printError(root.ErrOrStderr(), err)
	}
	return err
}

// NewRootCommand builds the bpctl command tree
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "bpctl",
		Short: "Read and write build properties",
		Long: `bpctl talks to a build properties server. It records typed
properties against build runs, waits for properties to appear, and renders
a run's properties as tables.

The server address comes from --server or the BUILDPROPS_URL environment
variable.`,
		Version: app.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	server := os.Getenv(ServerEnv)
	if server == "" {
		server = DefaultServer
	}
	root.PersistentFlags().StringVarP(&opts.server, "server", "s", server,
		"Build properties server URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "request-timeout",
		client.DefaultTimeout, "Timeout for each HTTP request")

	root.AddCommand(
		newRunCommand(opts),
		newSetCommand(opts),
		newGetCommand(opts),
		newAncestorCommand(opts),
		newPropsCommand(opts),
		newTablesCommand(opts),
		newCountsCommand(opts),
		newWaitCommand(opts),
		newWatchCommand(opts),
	)
	return root
}

func (o *options) client() *client.Client {
	return client.NewClient(o.server, o.timeout)
}

func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("expected %s", usage)
		}
		return nil
	}
}
