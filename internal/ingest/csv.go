// Package ingest reads match logs into domain records.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// dateLayouts are tried in order. The first is the canonical one.
var dateLayouts = []string{domain.DateLayout, "02/01/2006", "2006/01/02", "2006-01-02 15:04:05"}

// headerAliases maps accepted header names to canonical columns.
var headerAliases = map[string]string{
	"date": "date", "match_date": "date",
	"team": "team",
	"opponent": "opponent", "opp": "opponent",
	"venue": "venue", "h/a": "venue",
	"gf": "gf", "goals_for": "gf",
	"ga": "ga", "goals_against": "ga",
	"sh": "sh", "shots": "sh",
	"sot": "sot", "shots_on_target": "sot",
	"season": "season",
}

// legacyColumns is the layout of header-less scraped logs.
var legacyColumns = []string{"match_id", "date", "time", "team", "opponent", "venue",
	"result", "gf", "ga", "sh", "sot", "poss", "fk", "pk", "pkatt", "dist", "season"}

var requiredColumns = []string{"date", "team", "opponent", "venue", "gf", "ga"}

// LineError is a row that could not be turned into a record.
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e LineError) Unwrap() error { return e.Err }

// Result is the outcome of parsing a log. Records keep file order and carry
// their position in Seq.
type Result struct {
	Records []domain.MatchRecord
	Errors  []LineError
}

// Options control parsing.
type Options struct {
	// Strict stops at the first bad row instead of collecting errors.
	Strict bool
}

// ParseCSV reads a match log. A first row naming the required columns is
// treated as a header; otherwise the legacy scraped layout is assumed.
// Rows that fail validation are reported in Result.Errors and skipped.
func ParseCSV(r io.Reader, opts Options) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		res  Result
		cols map[string]int
		line int
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("ingest: %w", err)
		}
		line, _ = cr.FieldPos(0)
		if cols == nil {
			if h, ok := headerIndex(row); ok {
				cols = h
				continue
			}
			cols = positional(legacyColumns)
		}
		if isBlank(row) {
			continue
		}

		rec, err := parseRow(row, cols)
		if err == nil {
			err = rec.Validate()
		}
		if err != nil {
			le := LineError{Line: line, Err: err}
			if opts.Strict {
				return res, fmt.Errorf("ingest: %w", le)
			}
			res.Errors = append(res.Errors, le)
			continue
		}
		rec.Seq = int64(len(res.Records))
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func headerIndex(row []string) (map[string]int, bool) {
	idx := make(map[string]int, len(row))
	for i, name := range row {
		if canon, ok := headerAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
			if _, dup := idx[canon]; !dup {
				idx[canon] = i
			}
		}
	}
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			return nil, false
		}
	}
	return idx, true
}

func positional(names []string) map[string]int {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[n] = i
	}
	return idx
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseRow(row []string, cols map[string]int) (domain.MatchRecord, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var rec domain.MatchRecord
	date, err := ParseDate(field("date"))
	if err != nil {
		return rec, err
	}
	venue, err := domain.ParseVenue(field("venue"))
	if err != nil {
		return rec, err
	}
	gf, err := parseCount("gf", field("gf"))
	if err != nil {
		return rec, err
	}
	ga, err := parseCount("ga", field("ga"))
	if err != nil {
		return rec, err
	}
	rec = domain.MatchRecord{
		MatchDate:    date,
		Team:         field("team"),
		Opponent:     field("opponent"),
		Venue:        venue,
		GoalsFor:     gf,
		GoalsAgainst: ga,
		Season:       field("season"),
	}
	if rec.Shots, err = parseOptionalCount("sh", field("sh")); err != nil {
		return rec, err
	}
	if rec.ShotsOnTarget, err = parseOptionalCount("sot", field("sot")); err != nil {
		return rec, err
	}
	return rec, nil
}

// ParseDate accepts the supported date layouts and returns midnight UTC.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: missing match date", domain.ErrInvalidRecord)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised date %q", domain.ErrInvalidRecord, s)
}

// parseCount reads a non-negative whole number. Scraped logs write goals as
// "2.0", which is accepted.
func parseCount(name, s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: missing %s", domain.ErrInvalidRecord, name)
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s is not a whole number: %q", domain.ErrInvalidRecord, name, s)
	}
	return int(f), nil
}

func parseOptionalCount(name, s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	n, err := parseCount(name, s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
