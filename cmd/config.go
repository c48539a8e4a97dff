package cmd

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ollama/enforcer/envconfig"
)

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the environment configuration",
		RunE:  configHandler,
	}

	cmd.Flags().Bool("example", false, "Print an example configuration file instead")

	return cmd
}

func configHandler(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if example, _ := cmd.Flags().GetBool("example"); example {
		fmt.Fprint(out, envconfig.GenerateExampleConfig())
		return nil
	}

	vars := envconfig.AsMap()
	var data [][]string
	for _, name := range slices.Sorted(maps.Keys(vars)) {
		v := vars[name]
		data = append(data, []string{name, fmt.Sprint(v.Value), v.Description})
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"NAME", "VALUE", "DESCRIPTION"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetAutoWrapText(false)
	table.AppendBulk(data)
	table.Render()

	fmt.Fprintf(out, "\nconfig files: %s\n", strings.Join(envconfig.GetConfigPaths(), ", "))
	return nil
}
