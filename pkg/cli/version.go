package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/CAcquaviva/mcp-konnect/pkg/cli/internal/output"
	"github.com/CAcquaviva/mcp-konnect/pkg/mcp"
)

// VersionOutput represents JSON output format
type VersionOutput struct {
	Version         string `json:"version" yaml:"version"`
	Commit          string `json:"commit" yaml:"commit"`
	Date            string `json:"date" yaml:"date"`
	ProtocolVersion string `json:"protocolVersion" yaml:"protocolVersion"`
	Go              string `json:"go" yaml:"go"`
	OS              string `json:"os" yaml:"os"`
	Arch            string `json:"arch" yaml:"arch"`
}

func newVersionCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show konnect-mcp version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := output.CheckFormat(format); err != nil {
				return err
			}
			out := buildVersion()
			w := cmd.OutOrStdout()

			switch format {
			case output.FormatJSON:
				return output.JSON(w, out)
			case output.FormatYAML:
				return output.YAML(w, out)
			}

			v := out.Version
			if len(v) > 0 && v[0] != 'v' && v != "dev" && v != "(devel)" {
				v = "v" + v
			}
			fmt.Fprintf(w, "konnect-mcp %s (%s, %s)\n", v, out.Commit, out.Date)
			fmt.Fprintf(w, "MCP protocol %s\n", out.ProtocolVersion)
			fmt.Fprintf(w, "%s %s/%s\n", out.Go, out.OS, out.Arch)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", output.FormatTable, "Output format: table, json or yaml")
	return cmd
}

func buildVersion() VersionOutput {
	version := Version
	commit := Commit
	date := BuildDate

	if info, ok := debug.ReadBuildInfo(); ok {
		if version == "dev" && info.Main.Version != "" {
			version = info.Main.Version
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if commit == "none" {
					commit = setting.Value
				}
			case "vcs.time":
				if date == "unknown" {
					date = setting.Value
				}
			case "vcs.modified":
				if setting.Value == "true" {
					commit += "-dirty"
				}
			}
		}
	}

	return VersionOutput{
		Version:         version,
		Commit:          commit,
		Date:            date,
		ProtocolVersion: mcp.ProtocolVersion,
		Go:              runtime.Version(),
		OS:              runtime.GOOS,
		Arch:            runtime.GOARCH,
	}
}
