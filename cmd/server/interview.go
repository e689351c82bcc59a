package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"eyecare-intake/internal/consultation"
)

func newInterviewCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "interview",
		Short: "Run an intake interview in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()
			return runInterview(cmd, a.service)
		},
	}
}

func runInterview(cmd *cobra.Command, svc consultation.Service) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	in := bufio.NewScanner(cmd.InOrStdin())

	readLine := func(prompt string) (string, bool) {
		_, _ = fmt.Fprint(out, prompt)
		if !in.Scan() {
			return "", false
		}
		return strings.TrimSpace(in.Text()), true
	}

	var condition string
	for condition == "" {
		line, ok := readLine("Describe your eye problem: ")
		if !ok {
			return in.Err()
		}
		condition = line
	}

	start, err := svc.Start(ctx, condition)
	if err != nil {
		return err
	}
	sessionID := start.SessionID
	question := start.FirstQuestion

	for {
		printQuestion(out, question)

		line, ok := readLine("> ")
		if !ok {
			return in.Err()
		}
		answer, needsText := resolveAnswer(question, line)
		if needsText {
			if answer, ok = readLine("Please describe: "); !ok {
				return in.Err()
			}
		}
		if answer == "" {
			continue
		}

		res, err := svc.SubmitAnswer(ctx, sessionID, answer)
		if err != nil {
			return err
		}
		if res.IsComplete {
			printOutcome(out, res)
			return nil
		}
		question = *res.Question
	}
}

func printQuestion(w io.Writer, q consultation.Question) {
	_, _ = fmt.Fprintf(w, "\n%s\n", q.Text)
	for i, o := range q.Options {
		_, _ = fmt.Fprintf(w, "  %d. %s\n", i+1, o.Text)
	}
}

// resolveAnswer maps an option number onto its text. Picking the free-text
// option asks the caller to collect the answer separately; anything that is
// not an option number is the answer itself.
func resolveAnswer(q consultation.Question, input string) (answer string, needsText bool) {
	input = strings.TrimSpace(input)
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 || n > len(q.Options) {
		return input, false
	}
	opt := q.Options[n-1]
	if opt.IsOther {
		return "", true
	}
	return opt.Text, false
}

func printOutcome(w io.Writer, res *consultation.TurnResult) {
	_, _ = fmt.Fprintf(w, "\nInterview complete (confidence %.0f%%).\n", res.Confidence.Overall*100)
	if res.Recommendation != nil {
		_, _ = fmt.Fprintf(w, "Recommended specialist: %s\n%s\n", res.Recommendation.Specialist, res.Recommendation.Reasoning)
	}
	if res.Summary != nil {
		_, _ = fmt.Fprintf(w, "\nSummary for the doctor:\n%s\n", *res.Summary)
	}
}
