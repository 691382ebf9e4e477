package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jirabot/jirabot/internal/command"
)

var parseCmd = &cobra.Command{
	Use:   "parse <message...>",
	Short: "Show how a chat message is parsed",
	Long: `Prints the command a chat message parses to, without contacting any
backend. Output is JSON by default, or YAML with --yaml.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

var parseYAML bool

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().BoolVar(&parseYAML, "yaml", false, "Output YAML instead of JSON")
}

// parseResult is the printable form of command.Parse's result.
type parseResult struct {
	Input   string          `json:"input" yaml:"input"`
	Kind    command.Kind    `json:"kind" yaml:"kind"`
	Command command.Command `json:"command,omitempty" yaml:"command,omitempty"`
	Error   *parseFailure   `json:"error,omitempty" yaml:"error,omitempty"`
}

type parseFailure struct {
	Kind   command.ErrorKind `json:"kind" yaml:"kind"`
	Reason string            `json:"reason" yaml:"reason"`
	Usage  string            `json:"usage" yaml:"usage"`
}

func describeParse(text string) (parseResult, error) {
	res := parseResult{Input: text}
	cmd, err := command.Parse(text)
	if err != nil {
		var perr *command.ParseError
		if !errors.As(err, &perr) {
			return res, err
		}
		res.Kind = perr.Command
		res.Error = &parseFailure{Kind: perr.Kind, Reason: perr.Reason, Usage: perr.UsageHint}
		return res, nil
	}
	res.Kind = cmd.Kind()
	switch cmd.(type) {
	case command.CreateTicket, command.GetTicket:
		res.Command = cmd
	}
	return res, nil
}

func runParse(cmd *cobra.Command, args []string) error {
	res, err := describeParse(strings.Join(args, " "))
	if err != nil {
		return err
	}
	if parseYAML {
		return outputYAML(cmd.OutOrStdout(), res)
	}
	return outputJSON(cmd.OutOrStdout(), res)
}
