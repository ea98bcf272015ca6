package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrscan/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the qrscan configuration file",
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigShowCommand(a))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write a configuration file holding every default",
		Long: `Write a configuration file holding every default value. The file
defaults to qrscan.yaml in the current directory.

Examples:
  qrscan config init
  qrscan config init ~/.config/qrscan/qrscan.yaml --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := config.ConfigFileName + ".yaml"
			if len(args) == 1 {
				filename = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(filename); err == nil && !force {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", filename)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			if err := config.GenerateDefaultConfigFile(filename); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", filename)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Long: `Print the configuration after merging defaults, the config file,
QRSCAN_* environment variables and flags. Text output is YAML preceded by
where the configuration came from.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeReport(cmd, a.cfg.Output, a.cfg, func(w io.Writer) error {
				a.loader.PrintConfigInfo(w)
				return encode(w, FormatYAML, a.cfg, nil)
			})
		},
	}
}
