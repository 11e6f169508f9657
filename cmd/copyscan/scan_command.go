package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kdimtricp/copyscan/internal/assessment"
	"github.com/kdimtricp/copyscan/internal/models"
	"github.com/kdimtricp/copyscan/internal/patterns"
	"github.com/kdimtricp/copyscan/internal/report"
	"github.com/kdimtricp/copyscan/internal/session"
)

type scanOptions struct {
	variant    string
	references []string
	seed       uint64
	report     bool
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan <filename>",
		Short: "Assess a video filename once, without the progress stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := ctx.ensure()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("seed") {
				opts.seed = cfg.Analysis.Seed
			}
			return runScan(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.variant, "variant", "static", "Detector variant: static or crowdsourced")
	cmd.Flags().StringArrayVarP(&opts.references, "reference", "r", nil, "Reference video filename to learn from (repeatable, crowdsourced only)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Random seed (0 picks a fresh one)")
	cmd.Flags().BoolVar(&opts.report, "report", false, "Print the downloadable text report instead of a table")
	return cmd
}

func runScan(ctx context.Context, out io.Writer, filename string, opts scanOptions) error {
	variant, ok := assessment.ParseVariant(opts.variant)
	if !ok {
		return fmt.Errorf("unknown variant %q", opts.variant)
	}

	contentType := models.DeclaredType(filename, "")
	if !models.IsVideoType(contentType) {
		return fmt.Errorf("candidate %q: %w", filename, patterns.ErrNotVideo)
	}

	engine := assessment.NewSeededEngine(opts.seed)

	var result *assessment.AnalysisResult
	switch variant {
	case assessment.VariantCrowdsourced:
		library := patterns.NewLibrary(patterns.SeedDefaults(), patterns.NewMemoryReferences(), engine)
		for _, ref := range opts.references {
			if _, err := library.AddReferenceVideo(ctx, ref, models.DeclaredType(ref, "")); err != nil {
				return fmt.Errorf("reference %q: %w", ref, err)
			}
		}
		count, err := library.ReferenceCount(ctx)
		if err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: pass at least one --reference", session.ErrNoReferences)
		}
		result = engine.AssessCrowdsourced(filename, library.Store(), count)
	default:
		if len(opts.references) > 0 {
			return fmt.Errorf("--reference: %w", session.ErrUnsupported)
		}
		result = engine.AssessStatic(filename, patterns.StaticCatalog())
	}

	if opts.report {
		_, err := fmt.Fprintln(out, report.Render(variant, filename, result))
		return err
	}
	return printResult(out, filename, result)
}

func printResult(out io.Writer, filename string, result *assessment.AnalysisResult) error {
	fmt.Fprintf(out, "File: %s\n", filename)
	fmt.Fprintf(out, "Risk Level: %s\n", strings.ToUpper(string(result.OverallRisk)))
	if result.PatternsUsed != nil {
		fmt.Fprintf(out, "Patterns Used: %d\n", *result.PatternsUsed)
	}

	if len(result.Issues) == 0 {
		fmt.Fprintln(out, "No issues detected.")
	} else {
		rows := make([][]string, 0, len(result.Issues))
		for _, issue := range result.Issues {
			rows = append(rows, []string{
				string(issue.Type),
				string(issue.Severity),
				issue.Description,
				strconv.Itoa(report.ConfidencePercent(issue.Confidence)) + "%",
				issue.Timestamp,
			})
		}
		fmt.Fprintln(out, renderTable([]string{"Type", "Severity", "Description", "Confidence", "Timestamp"}, rows, 4))
	}

	_, err := fmt.Fprintf(out, "Recommendation: %s\n", result.Recommendation)
	return err
}
