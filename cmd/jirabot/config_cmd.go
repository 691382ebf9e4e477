package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jirabot/jirabot/internal/config"
	"github.com/jirabot/jirabot/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit jirabot settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print effective settings (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := config.Effective()
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), map[string]interface{}{
				"config_file": config.ConfigFileUsed(),
				"settings":    settings,
			})
		}

		out := cmd.OutOrStdout()
		if used := config.ConfigFileUsed(); used != "" {
			fmt.Fprintf(out, "Config file: %s\n\n", used)
		} else {
			fmt.Fprintf(out, "Config file: none (defaults and environment only)\n\n")
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, s := range settings {
			val := s.Value
			if val == "" {
				val = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Key, val, s.Description)
		}
		return tw.Flush()
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a setting to config.yaml",
	Long: `Writes a setting to the loaded config file, or to .jirabot/config.yaml
in the current directory when none was loaded. Comments in the file are kept.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ConfigFileUsed()
		if path == "" {
			path = config.ProjectConfigPath()
		}
		if err := config.SetInFile(path, args[0], args[1]); err != nil {
			return err
		}
		shown := args[1]
		if k := config.LookupKey(args[0]); k != nil && k.Secret {
			shown = config.Mask(shown)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Set %s = %s in %s\n", ui.RenderPass(ui.IconPass), args[0], shown, path)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Validate(); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %v\n", ui.RenderFail(ui.IconFail), err)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s configuration is valid\n", ui.RenderPass(ui.IconPass))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configValidateCmd)
}
