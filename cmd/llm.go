package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/abhisek/dsatutor/internal/llm"
	"github.com/abhisek/dsatutor/internal/store"
)

const rule = "─"

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Audit the model calls made while tutoring",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent model calls, newest first",
	RunE:  runLLMList,
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show the prompt and reply captured for one call",
	Args:  cobra.ExactArgs(1),
	RunE:  runLLMView,
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Token usage per pipeline stage and estimated cost per model",
	RunE:  runLLMStats,
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of calls to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Only this stage (e.g. classify-language, answer-tailored, proficiency)")
	llmListCmd.Flags().Bool("mine", false, "Only calls made during the --user learner's turns")
	llmListCmd.Flags().Bool("failed", false, "Only failed calls")

	llmCmd.AddCommand(llmListCmd, llmViewCmd, llmStatsCmd)
}

func runLLMList(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	purpose, _ := cmd.Flags().GetString("purpose")
	mine, _ := cmd.Flags().GetBool("mine")
	failed, _ := cmd.Flags().GetBool("failed")

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := cmd.Context()

	opts := store.QueryOpts{Limit: limit, Purpose: purpose}
	if mine {
		u, err := resolveUser(ctx, cmd, s, false)
		if err != nil {
			return fmt.Errorf("resolve learner: %w", err)
		}
		opts.UserID = u.UserID
	}
	events, err := s.QueryLLMEvents(ctx, opts)
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	if failed {
		kept := events[:0]
		for _, e := range events {
			if !e.Success {
				kept = append(kept, e)
			}
		}
		events = kept
	}
	if len(events) == 0 {
		fmt.Println("No model calls recorded.")
		return nil
	}

	row := "%-6s %-14s %-24s %-26s %8s %8s %7s  %s\n"
	fmt.Printf(row, "ID", "When", "Purpose", "Model", "In", "Out", "Ms", "")
	fmt.Println(strings.Repeat(rule, 104))
	for _, e := range events {
		status := "✓"
		if !e.Success {
			status = "✗ " + truncate(e.ErrorMessage, 40)
		}
		fmt.Printf(row,
			strconv.FormatInt(e.ID, 10),
			humanize.Time(e.Timestamp),
			truncate(e.Purpose, 24),
			truncate(e.Model, 26),
			humanize.Comma(int64(e.InputTokens)),
			humanize.Comma(int64(e.OutputTokens)),
			strconv.FormatInt(e.LatencyMs, 10),
			status,
		)
	}
	return nil
}

func runLLMView(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid ID %q", args[0])
	}

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	e, err := s.GetLLMEvent(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	if e == nil {
		return fmt.Errorf("no model call with ID %d", id)
	}

	fields := [][2]string{
		{"Call", fmt.Sprintf("#%d (sequence %d)", e.ID, e.Sequence)},
		{"When", e.Timestamp.Local().Format("2006-01-02 15:04:05")},
		{"Learner", orNone(e.UserID)},
		{"Purpose", e.Purpose},
		{"Model", e.Model},
		{"Schema", orNone(e.SchemaName)},
		{"Tokens", fmt.Sprintf("%s in, %s out", humanize.Comma(int64(e.InputTokens)), humanize.Comma(int64(e.OutputTokens)))},
		{"Latency", fmt.Sprintf("%dms", e.LatencyMs)},
	}
	if e.StopReason != "" {
		fields = append(fields, [2]string{"Stopped", e.StopReason})
	}
	if !e.Success {
		fields = append(fields, [2]string{"Error", e.ErrorMessage})
	}
	for _, f := range fields {
		fmt.Printf("%-9s %s\n", f[0]+":", f[1])
	}

	printSection("PROMPT", e.RequestBody)
	printSection("REPLY", e.ResponseBody)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func printSection(title, body string) {
	if body == "" {
		body = "(not captured)"
	}
	bar := strings.Repeat(rule, 60)
	fmt.Printf("\n%s\n%s\n%s\n%s\n", bar, title, bar, body)
}

func runLLMStats(cmd *cobra.Command, _ []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := cmd.Context()

	byPurpose, err := s.LLMUsageByPurpose(ctx)
	if err != nil {
		return fmt.Errorf("query usage: %w", err)
	}
	if len(byPurpose) == 0 {
		fmt.Println("No model calls recorded.")
		return nil
	}

	line := strings.Repeat(rule, 76)
	row := "%-24s %6s %12s %12s %8s\n"
	fmt.Println("Tokens by pipeline stage")
	fmt.Println(line)
	fmt.Printf(row, "Purpose", "Calls", "Input", "Output", "Avg ms")
	fmt.Println(line)
	var calls, in, out int
	for _, u := range byPurpose {
		fmt.Printf(row, truncate(u.Purpose, 24), strconv.Itoa(u.Calls),
			humanize.Comma(int64(u.InputTokens)), humanize.Comma(int64(u.OutputTokens)),
			strconv.FormatInt(u.AvgLatencyMs, 10))
		calls += u.Calls
		in += u.InputTokens
		out += u.OutputTokens
	}
	fmt.Println(line)
	fmt.Printf(row, "TOTAL", strconv.Itoa(calls), humanize.Comma(int64(in)), humanize.Comma(int64(out)), "")

	byModel, err := s.LLMUsageByModel(ctx)
	if err != nil {
		return fmt.Errorf("query model usage: %w", err)
	}

	fmt.Println()
	fmt.Println("Estimated cost (USD)")
	fmt.Println(line)
	costRow := "%-32s %6s %12s %12s %10s\n"
	fmt.Printf(costRow, "Model", "Calls", "Input", "Output", "Cost")
	fmt.Println(line)
	var total float64
	var unpriced []string
	for _, u := range byModel {
		cost := "?"
		if p := llm.LookupCost(u.Model); p != nil {
			c := p.Cost(u.InputTokens, u.OutputTokens)
			total += c
			cost = formatCost(c)
		} else {
			unpriced = append(unpriced, u.Model)
		}
		fmt.Printf(costRow, truncate(u.Model, 32), strconv.Itoa(u.Calls),
			humanize.Comma(int64(u.InputTokens)), humanize.Comma(int64(u.OutputTokens)), cost)
	}
	fmt.Println(line)
	label := "TOTAL"
	if len(unpriced) > 0 {
		label = "TOTAL (partial)"
	}
	fmt.Printf(costRow, label, "", "", "", formatCost(total))
	if len(unpriced) > 0 {
		fmt.Printf("\nNo pricing for: %s\n", strings.Join(unpriced, ", "))
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}
