// File: internal/report/report.go

// Package report writes run reports for consumption outside the process:
// a JSON document for scripting and a JUnit-style XML file so CI systems
// can display verification runs as test results.
package report

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

var jsonx = jsoniter.ConfigCompatibleWithStandardLibrary

// Reporter accumulates run reports and renders them on Close.
type Reporter interface {
	// Write records a single run report.
	Write(report *schemas.RunReport) error
	// Close renders the accumulated reports and releases the output.
	Close() error
}

// nopWriteCloser wraps an io.Writer with a no-op Close so stdout is
// never closed underneath the process.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error { return nil }

// New creates a reporter for the given format writing to outputPath.
// An empty path or "stdout" writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	var writer io.WriteCloser
	isStdout := outputPath == "" || outputPath == "stdout"

	if isStdout {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch format {
	case "json":
		return &jsonReporter{writer: writer}, nil
	case "junit":
		return &junitReporter{writer: writer}, nil
	default:
		if !isStdout {
			writer.Close()
		}
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

// jsonReporter renders the reports as one indented JSON array.
type jsonReporter struct {
	writer  io.WriteCloser
	reports []*schemas.RunReport
}

func (r *jsonReporter) Write(report *schemas.RunReport) error {
	if report == nil {
		return fmt.Errorf("report: nil run report")
	}
	r.reports = append(r.reports, report)
	return nil
}

func (r *jsonReporter) Close() error {
	defer r.writer.Close()
	// An empty run still renders a valid document.
	if r.reports == nil {
		r.reports = []*schemas.RunReport{}
	}
	data, err := jsonx.MarshalIndent(r.reports, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal: %w", err)
	}
	data = append(data, '\n')
	if _, err := r.writer.Write(data); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return nil
}
