// json.go — JSON report output.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dev-console/pagediag/internal/diagnose"
)

// Document is the serialized form of a report: the report plus its derived
// status, so consumers need not recompute it.
type Document struct {
	Status string `json:"status"`
	*diagnose.Report
}

// MarshalReport encodes r as indented JSON terminated by a newline.
func MarshalReport(r *diagnose.Report) ([]byte, error) {
	data, err := json.MarshalIndent(Document{Status: r.Status(), Report: r}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report_marshal_failed: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteJSON writes r to w as indented JSON.
func WriteJSON(w io.Writer, r *diagnose.Report) error {
	data, err := MarshalReport(r)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// DecodeReport parses a report produced by MarshalReport.
func DecodeReport(data []byte) (*diagnose.Report, error) {
	var r diagnose.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("report_decode_failed: %w", err)
	}
	return &r, nil
}
