package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/a11yfix/remedy"
)

var fixCmd = &cobra.Command{
	Use:   "fix --report <axe.json> --html <page.html>",
	Short: "Fix the violations of a report in a saved page",
	Long:  "Run one remediation offline and write the corrected page. The fix records go to --records when set.",
	Args:  cobra.NoArgs,
	RunE:  runFix,
}

func init() {
	fixCmd.Flags().String("report", "", "axe-core JSON report (required)")
	fixCmd.Flags().String("html", "", "page markup the report was taken from (required)")
	fixCmd.Flags().String("base-url", "", "page URL; overrides the report url and base_url")
	fixCmd.Flags().StringP("output", "o", "", "corrected page (default: stdout)")
	fixCmd.Flags().String("records", "", "write fix records as JSON to this file")
	fixCmd.MarkFlagRequired("report")
	fixCmd.MarkFlagRequired("html")
}

func runFix(cmd *cobra.Command, _ []string) error {
	reportPath, _ := cmd.Flags().GetString("report")
	htmlPath, _ := cmd.Flags().GetString("html")
	baseURL, _ := cmd.Flags().GetString("base-url")
	outPath, _ := cmd.Flags().GetString("output")
	recordsPath, _ := cmd.Flags().GetString("records")

	report, err := os.ReadFile(reportPath)
	if err != nil {
		return err
	}
	markup, err := os.ReadFile(htmlPath)
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			rt.logger.Warn("close", "error", err)
		}
	}()
	eng, err := rt.engine(nil)
	if err != nil {
		return err
	}

	res, runErr := eng.Run(cmd.Context(), remedy.Request{
		Report:  report,
		HTML:    string(markup),
		BaseURL: baseURL,
	})
	if res == nil {
		return runErr
	}

	if outPath == "" {
		fmt.Fprintln(cmd.OutOrStdout(), res.HTML)
	} else if err := os.WriteFile(outPath, []byte(res.HTML), 0o644); err != nil {
		return err
	}
	if recordsPath != "" {
		data, err := json.MarshalIndent(res.Records, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(recordsPath, data, 0o644); err != nil {
			return err
		}
	}

	printSummary(cmd.ErrOrStderr(), res)
	if runErr != nil {
		return fmt.Errorf("run interrupted, partial result written: %w", runErr)
	}
	if res.Summary.Accepted == 0 && res.Summary.Rejected > 0 {
		return errors.New("no fix was accepted")
	}
	return nil
}
