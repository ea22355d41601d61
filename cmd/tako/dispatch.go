package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tako/internal/dispatch"
	"tako/internal/domain"
	"tako/internal/escalation"
)

func dispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch [file|-]",
		Short: "Run one inbound event through the pipeline",
		Long: `Reads an inbound webhook payload ({"phone": "...", "text": {"message": "..."}})
from a file or stdin and prints the response envelope.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := "-"
			if len(args) == 1 {
				src = args[0]
			}
			data, err := readInput(cmd.InOrStdin(), src)
			if err != nil {
				return err
			}
			var payload domain.InboundPayload
			if err := json.Unmarshal(data, &payload); err != nil {
				return fmt.Errorf("parse payload: %w", err)
			}

			cfg, err := loadConfigOrDefaults()
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.dispatcher.Handle(ctx, payload)
			if err != nil {
				return err
			}
			return printEnvelope(cmd.OutOrStdout(), resp)
		},
	}
}

func readInput(stdin io.Reader, src string) ([]byte, error) {
	if src == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(src)
}

// printEnvelope prints the response with its body expanded as JSON.
func printEnvelope(w io.Writer, resp dispatch.Response) error {
	out := struct {
		StatusCode int               `json:"statusCode"`
		Headers    map[string]string `json:"headers"`
		Body       json.RawMessage   `json:"body"`
	}{resp.StatusCode, resp.Headers, json.RawMessage(resp.Body)}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

func decideCmd() *cobra.Command {
	var (
		confidence float64
		risks      domain.Risks
		tone       string
	)
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Evaluate the escalation rules for a confidence and risk flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := escalation.Evaluate(domain.Tone(tone), risks, confidence)
			fmt.Fprintf(cmd.OutOrStdout(), "%s (rule %d)\n", d.Tier, d.Rule)
			return nil
		},
	}
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "resolver confidence score in [0,1]")
	cmd.Flags().BoolVar(&risks.Legal, "legal", false, "legal risk flag")
	cmd.Flags().BoolVar(&risks.Financial, "financial", false, "financial risk flag")
	cmd.Flags().BoolVar(&risks.Emotional, "emotional", false, "emotional risk flag")
	cmd.Flags().StringVar(&tone, "tone", string(domain.ToneNeutral), "message tone")
	return cmd
}
