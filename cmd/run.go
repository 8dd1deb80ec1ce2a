package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/grantvest/core/report"
)

var hybridCmd = &cobra.Command{
	Use:   "hybrid",
	Short: "Allocate tokens with cliff + milestone + linear vesting",
	RunE:  runPolicy(report.PolicyHybrid),
}

var flatCmd = &cobra.Command{
	Use:   "flat",
	Short: "Allocate tokens released in steps at each milestone",
	RunE:  runPolicy(report.PolicyFlat),
}

var exampleCmd = &cobra.Command{
	Use:   "example [project]",
	Short: "Print the hybrid vesting timeline of one project",
	Long: "Prints the month by month hybrid timeline of the first project whose name\n" +
		"contains the argument, falling back to example_project from the configuration.\n" +
		"Nothing is written to the sinks.",
	Args: cobra.MaximumNArgs(1),
	RunE: runExample,
}

func init() {
	rootCmd.AddCommand(hybridCmd, flatCmd, exampleCmd)
}

func runExample(cmd *cobra.Command, args []string) error {
	svc, err := newService(cmd)
	if err != nil {
		return err
	}
	defer closeService(svc)
	recs, err := svc.Load(inputPath)
	if err != nil {
		return err
	}
	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	_, err = svc.Example(context.Background(), recs, name)
	return err
}
