package reports

import (
	"fmt"
)

// NewGenerator creates a report generator for the given type. dir is
// the run directory for run reports; store backs history reports.
func NewGenerator(reportType ReportType, dir string, store HistoryStore) (Generator, error) {
	switch reportType {
	case ReportTypeRun:
		return NewRunReport(dir), nil
	case ReportTypeHistory:
		return NewHistoryReport(store, 20), nil
	default:
		return nil, fmt.Errorf("unknown report type: %s", reportType)
	}
}
