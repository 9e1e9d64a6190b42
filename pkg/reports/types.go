package reports

import (
	"context"
	"io"
)

type ReportType string

const (
	ReportTypeRun     ReportType = "run"
	ReportTypeHistory ReportType = "history"
)

type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatJSON ReportFormat = "json"
	ReportFormatText ReportFormat = "text"
)

// Generator produces one report in one format.
type Generator interface {
	Generate(ctx context.Context, format ReportFormat) (io.Reader, error)
}
