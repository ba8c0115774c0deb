package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/wippyai/structsight/analyzer"
	"github.com/wippyai/structsight/errors"
	"github.com/wippyai/structsight/layout"
)

// SchemaVersion is the version of the JSON report format written by Write.
const SchemaVersion = "1.0.0"

// compatible is the range of schema versions Read accepts.
const compatible = "^1"

// Report is a saved analysis result.
type Report struct {
	SchemaVersion string    `json:"schemaVersion"`
	Source        string    `json:"source,omitempty"`
	GeneratedAt   time.Time `json:"generatedAt"`
	analyzer.Result
}

// New wraps res in a report for the file at source.
func New(source string, res analyzer.Result) *Report {
	return &Report{
		SchemaVersion: SchemaVersion,
		Source:        source,
		GeneratedAt:   time.Now().UTC(),
		Result:        res,
	}
}

// Write encodes r as indented JSON.
func Write(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return errors.Wrap(errors.PhaseReport, errors.KindInvalidInput, err, "encode report")
	}
	return nil
}

// Read decodes a report and rejects schema versions this build cannot
// interpret.
func Read(rd io.Reader) (*Report, error) {
	var r Report
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, errors.Wrap(errors.PhaseReport, errors.KindInvalidInput, err, "decode report")
	}
	if err := checkSchema(r.SchemaVersion); err != nil {
		return nil, err
	}
	if r.Layouts == nil {
		r.Layouts = []*layout.TypeLayout{}
	}
	return &r, nil
}

func checkSchema(version string) error {
	if version == "" {
		return errors.New(errors.PhaseReport, errors.KindIncompatible).
			Detail("report has no schema version").
			Build()
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return errors.New(errors.PhaseReport, errors.KindIncompatible).
			Value(version).
			Cause(err).
			Detail("invalid schema version %q", version).
			Build()
	}
	c, err := semver.NewConstraint(compatible)
	if err != nil {
		return fmt.Errorf("schema constraint: %w", err)
	}
	if !c.Check(v) {
		return errors.New(errors.PhaseReport, errors.KindIncompatible).
			Value(version).
			Detail("schema version %s not in %s", version, compatible).
			Build()
	}
	return nil
}
