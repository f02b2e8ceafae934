package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"ai-tutoring-be/pkg/ai/diagnostic"
	"ai-tutoring-be/pkg/ai/generation"
	"ai-tutoring-be/pkg/ai/parser"
	"ai-tutoring-be/pkg/ai/tutor"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var shapes = map[string]parser.Shape{
	"exercise": generation.DraftShape,
	"report":   diagnostic.ReportShape,
	"reply":    tutor.ReplyShape,
}

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Run the tiered parser over a saved model answer",
	Long:  "Reads a raw model answer (a file, or stdin when omitted or \"-\") and reports which tier recovered it and which required fields are missing.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("shape")
		shape, ok := shapes[name]
		if !ok {
			return fmt.Errorf("unknown shape %q (want one of %v)", name, shapeNames())
		}

		raw, err := readInput(cmd, args)
		if err != nil {
			return err
		}

		res := parser.Parse(string(raw), shape)
		printResult(cmd.OutOrStdout(), res)
		if !res.Complete() {
			return fmt.Errorf("%s: %s", name, res.MissingSummary())
		}
		return nil
	},
}

func init() {
	parseCmd.Flags().StringP("shape", "s", "exercise", "Expected shape: exercise, report or reply")
}

func shapeNames() []string {
	names := make([]string, 0, len(shapes))
	for k := range shapes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func printResult(w io.Writer, res parser.Result) {
	tierColor := color.New(color.FgGreen, color.Bold)
	switch res.Tier {
	case parser.TierSanitized:
		tierColor = color.New(color.FgYellow, color.Bold)
	case parser.TierRegex:
		tierColor = color.New(color.FgRed, color.Bold)
	}
	fmt.Fprintf(w, "tier:    %s\n", tierColor.Sprint(res.Tier.String()))

	if res.Complete() {
		fmt.Fprintf(w, "missing: %s\n", color.GreenString("none"))
	} else {
		fmt.Fprintf(w, "missing: %s\n", color.RedString("%v", res.Missing))
	}

	var value any = res.Value
	if res.Items != nil {
		value = res.Items
	}
	b, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintln(w, string(b))
}
