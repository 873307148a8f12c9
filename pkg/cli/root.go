package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CAcquaviva/mcp-konnect/pkg/config"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootOptions is shared by the root command and its subcommands.
type rootOptions struct {
	configFile string
	v          *viper.Viper
}

// NewRootCommand builds the command tree. Running it without a subcommand
// starts the server.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{v: config.NewViper()}

	cmd := &cobra.Command{
		Use:   "konnect-mcp",
		Short: "MCP server exposing the Kong Konnect API as tools",
		Long: `konnect-mcp serves Kong Konnect analytics, configuration and control plane
APIs as Model Context Protocol tools over the Streamable HTTP transport.

Configuration can be provided via flags, environment variables
(KONNECT_ACCESS_TOKEN, KONNECT_REGION, MCP_PORT, ...) or a YAML file
passed with --config. Flags take precedence over the environment, which
takes precedence over the file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true, // main prints the error
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runServe(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "Path to a YAML configuration file")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")
	// BindPFlag only fails for a nil flag.
	_ = opts.v.BindPFlag(config.KeyLogLevel, pf.Lookup("log-level"))
	_ = opts.v.BindPFlag(config.KeyLogFormat, pf.Lookup("log-format"))

	addServeFlags(cmd)

	cmd.AddCommand(
		newServeCommand(opts),
		newToolsCommand(),
		newVersionCommand(),
	)
	return cmd
}

// Execute runs the command tree against os.Args.
// This is called by main.main().
func Execute() error {
	return NewRootCommand().Execute()
}
