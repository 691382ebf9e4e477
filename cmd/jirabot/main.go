// Command jirabot answers "jira ..." commands in Slack channels.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jirabot/jirabot/internal/config"
	"github.com/jirabot/jirabot/internal/debug"
)

var (
	configPath string
	verbose    bool
	quiet      bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "jirabot",
	Short: "jirabot - create and look up Jira tickets from Slack",
	Long: `jirabot listens to Slack channels for "jira create", "jira get", "jira help"
and "jira_test" messages and answers them against a Jira backend.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug.SetVerbose(verbose)
		debug.SetQuiet(quiet)
		if configPath != "" {
			if err := os.Setenv(config.EnvConfigPath, configPath); err != nil {
				return err
			}
		}
		if err := config.Initialize(); err != nil {
			return err
		}
		if used := config.ConfigFileUsed(); used != "" {
			debug.Logf("using config file %s", used)
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Fprintf(cmd.OutOrStdout(), "jirabot version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (or JIRABOT_CONFIG env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.Flags().Bool("version", false, "Print version information")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
