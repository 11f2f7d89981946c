package main

import (
	"fmt"
	"io"

	"github.com/dennisdiepolder/monti/callrouter/internal/rules"
	"github.com/spf13/cobra"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect routing configuration files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <file>",
		Short: "Validate a routing file without starting the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkRules(cmd.OutOrStdout(), args[0])
		},
	})
	return cmd
}

// checkRules prints a summary of the routing file and every problem found
func checkRules(out io.Writer, path string) error {
	f, err := rules.LoadFile(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: %d agents, %d queues, %d rules\n", path, len(f.Agents), len(f.Queues), len(f.Rules))

	problems := f.Check()
	for _, p := range problems {
		fmt.Fprintf(out, "  invalid: %v\n", p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d problems found", len(problems))
	}
	fmt.Fprintln(out, "ok")
	return nil
}
