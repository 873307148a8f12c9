package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CAcquaviva/mcp-konnect/pkg/cli/internal/output"
	"github.com/CAcquaviva/mcp-konnect/pkg/mcp"
)

func newToolsCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the MCP tools and their input schemas",
		Example: `  # Names and summaries
  konnect-mcp tools

  # Full definitions as served by tools/list
  konnect-mcp tools --output yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := output.CheckFormat(format); err != nil {
				return err
			}
			registry, err := mcp.DefaultToolRegistry()
			if err != nil {
				return err
			}
			return printTools(cmd.OutOrStdout(), registry.List(), format)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", output.FormatTable, "Output format: table, json or yaml")
	return cmd
}

func printTools(w io.Writer, tools []mcp.ToolDefinition, format string) error {
	switch format {
	case output.FormatJSON:
		return output.JSON(w, tools)
	case output.FormatYAML:
		return output.YAML(w, tools)
	}

	tw := output.Table(w)
	fmt.Fprintln(tw, "NAME\tDESCRIPTION")
	for _, t := range tools {
		fmt.Fprintf(tw, "%s\t%s\n", t.Name, summary(t.Description))
	}
	return tw.Flush()
}

// summary is the first line of a tool description.
func summary(desc string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(desc), "\n")
	return strings.TrimSpace(line)
}
