package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// NewReportCommand creates the report command
func NewReportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report <subject_dir>",
		Short: "Render a combined subject's README audit log to HTML",
		Long: `Render the README audit log of a combined subject directory to
README.html alongside it, for sharing a run's record without shell
access to the output tree.`,
		Args: cobra.ExactArgs(1),
		RunE: runReport,
	}
}

// runReport implements the report command logic
func runReport(cmd *cobra.Command, args []string) error {
	subjectDir := args[0]
	readmePath := filepath.Join(subjectDir, "README")

	source, err := os.ReadFile(readmePath)
	if err != nil {
		return fmt.Errorf("failed to read audit log %s: %w", readmePath, err)
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := md.Convert(source, &body); err != nil {
		return fmt.Errorf("failed to render audit log: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	page.WriteString(fmt.Sprintf("<title>%s audit log</title>\n", filepath.Base(subjectDir)))
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")

	htmlPath := readmePath + ".html"
	if err := os.WriteFile(htmlPath, page.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", htmlPath, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", htmlPath)
	return nil
}
