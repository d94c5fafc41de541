package main

import (
	"fmt"

	"github.com/aretw0/palaver/internal/cli"
	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect persisted conversation and user state",
	Long:  `List, show and delete the state records of the configured storage driver.`,
}

var stateLsCmd = &cobra.Command{
	Use:   "ls [prefix]",
	Short: "List stored keys",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		n, err := cli.ListState(cmd.Context(), cmd.OutOrStdout(), rt.StateStorage(), prefix)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No state records found.")
		}
		return nil
	},
}

var stateShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print a state record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()
		return cli.ShowState(cmd.Context(), cmd.OutOrStdout(), rt.StateStorage(), args[0])
	},
}

var stateRmCmd = &cobra.Command{
	Use:   "rm <key>...",
	Short: "Remove one or more state records",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := cli.DeleteState(cmd.Context(), rt.StateStorage(), args...); err != nil {
			return err
		}
		for _, key := range args {
			fmt.Fprintf(cmd.OutOrStdout(), "Removed '%s'\n", key)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateLsCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateRmCmd)
}
