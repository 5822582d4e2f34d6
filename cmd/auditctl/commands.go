package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/transcript-auditor/internal/domain/audits"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/questions"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/reports"
	"github.com/bryanwahyu/transcript-auditor/internal/infra/ai/prompt"
)

// readInput reads a file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// =============================================================================
// prompt
// =============================================================================

var promptCmd = &cobra.Command{
	Use:   "prompt <schema.json> <transcript.txt|->",
	Short: "Print the model prompt for a question schema and a transcript",
	Args:  cobra.ExactArgs(2),
	RunE:  runPrompt,
}

func runPrompt(cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	schema, err := questions.DecodeSchema(raw)
	if err != nil {
		return err
	}
	transcript, err := readInput(cmd, args[1])
	if err != nil {
		return err
	}

	p, err := prompt.BuildPrompt(schema, string(transcript))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), p)
	return err
}

// =============================================================================
// parse
// =============================================================================

var parseCmd = &cobra.Command{
	Use:   "parse <output.json|->",
	Short: "Validate model output and print the answers that would be stored",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

func runParse(cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	answer, err := audits.ParseModelAnswer(string(raw))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(answer.Answers())
}

// =============================================================================
// summarize
// =============================================================================

var (
	summaryQuestion string
	summaryFormat   string
	summaryInterval string
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <rows.json|->",
	Short: "Aggregate exported answer rows for one question",
	Long: `Reads a JSON list of answer rows ({contact_id, call_date, question_title,
answer, sub_demand}) and prints the breakdown of the selected question.
With --interval the per-period trend is printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().StringVarP(&summaryQuestion, "question", "q", "", "question title to aggregate (required)")
	summarizeCmd.Flags().StringVarP(&summaryFormat, "format", "f", "table", "output format: table or csv")
	summarizeCmd.Flags().StringVar(&summaryInterval, "interval", "", "trend bucket: daily, weekly, monthly, quarterly, yearly")
	_ = summarizeCmd.MarkFlagRequired("question")
}

// rowJSON is the exported row shape; call_date stays a plain date string.
type rowJSON struct {
	ContactID     string `json:"contact_id"`
	CallDate      string `json:"call_date"`
	AnalysisType  string `json:"analysis_type"`
	QuestionTitle string `json:"question_title"`
	Answer        string `json:"answer"`
	SubDemand     string `json:"sub_demand"`
}

func loadRows(raw []byte, question string) ([]audits.AnswerRow, error) {
	var in []rowJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	var out []audits.AnswerRow
	for i, r := range in {
		if r.QuestionTitle != question {
			continue
		}
		var d time.Time
		if r.CallDate != "" {
			// accepts "2024-01-05" and timestamps starting with it
			s := r.CallDate
			if len(s) > 10 {
				s = s[:10]
			}
			var err error
			if d, err = time.Parse(audits.CallDateLayout, s); err != nil {
				return nil, fmt.Errorf("row %d: call_date %q: must be YYYY-MM-DD", i+1, r.CallDate)
			}
		}
		out = append(out, audits.AnswerRow{
			ContactID:     r.ContactID,
			CallDate:      d,
			AnalysisType:  r.AnalysisType,
			QuestionTitle: r.QuestionTitle,
			Answer:        r.Answer,
			SubDemand:     r.SubDemand,
		})
	}
	return out, nil
}

func runSummarize(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(summaryQuestion)
	if question == "" {
		return audits.Required("question")
	}
	raw, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	rows, err := loadRows(raw, question)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if summaryInterval != "" {
		iv, err := reports.ParseInterval(summaryInterval)
		if err != nil {
			return err
		}
		return printTrend(out, reports.Trend(rows, iv))
	}

	summary := reports.Aggregate(reports.RowsOf(rows))
	switch summaryFormat {
	case "csv":
		return reports.WriteSummaryCSV(out, question, summary)
	case "table":
		return printSummary(out, question, summary)
	default:
		return fmt.Errorf("unknown format %q (table or csv)", summaryFormat)
	}
}

func printSummary(w io.Writer, question string, s reports.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tCOUNT\tPERCENT\n", strings.ToUpper(question))
	for _, a := range s {
		fmt.Fprintf(tw, "%s\t%d\t%s%%\n", a.Answer, a.Count, a.Percent)
		for _, sub := range a.Sub {
			fmt.Fprintf(tw, "  ↳ %s\t%d\t%s%%\n", sub.Label, sub.Count, sub.Percent)
		}
	}
	return tw.Flush()
}

func printTrend(w io.Writer, points []reports.TrendPoint) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PERIOD\tTOTAL\tTOP ANSWER")
	for _, p := range points {
		top := "-"
		if len(p.Answers) > 0 {
			top = fmt.Sprintf("%s (%s%%)", p.Answers[0].Answer, p.Answers[0].Percent)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", p.Bucket, p.Total, top)
	}
	return tw.Flush()
}
