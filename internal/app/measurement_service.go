package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"weighttracker/internal/domain"
)

// csvHeader is the column layout written by ExportCSV and preferred by ImportCSV.
var csvHeader = []string{"measurement_date", "weight", "notes"}

// ImportReport summarises a CSV import. An import always completes; rows
// that cannot be parsed or stored are counted as skipped.
type ImportReport struct {
	Status     string `json:"status"`
	Imported   int    `json:"imported"`
	Duplicates int    `json:"duplicates"`
	Skipped    int    `json:"skipped"`
}

// ImportObserver receives the outcome of every import.
type ImportObserver interface {
	ObserveImport(r ImportReport)
}

// MeasurementService encapsulates measurement use cases.
type MeasurementService struct {
	repo     domain.MeasurementRepository
	observer ImportObserver
}

// NewMeasurementService creates a MeasurementService backed by the given
// repository. observer may be nil.
func NewMeasurementService(repo domain.MeasurementRepository, observer ImportObserver) *MeasurementService {
	return &MeasurementService{repo: repo, observer: observer}
}

// Record validates and stores a new measurement.
func (s *MeasurementService) Record(ctx context.Context, userID int64, date string, weight float64, notes string) (*domain.Measurement, error) {
	d, err := domain.ParseDay(date)
	if err != nil {
		return nil, domain.Invalid("measurement_date", err.Error())
	}
	if err := validateWeight("weight", weight); err != nil {
		return nil, err
	}
	return s.repo.InsertMeasurement(ctx, userID, d, weight, notes)
}

// List returns the user's measurements ascending by date, converted to unit.
func (s *MeasurementService) List(ctx context.Context, userID int64, unit string) ([]domain.Measurement, error) {
	unit, err := domain.ParseUnit(unit)
	if err != nil {
		return nil, err
	}
	ms, err := s.repo.ListMeasurements(ctx, userID)
	if err != nil {
		return nil, err
	}
	return domain.InUnit(ms, unit), nil
}

// ImportCSV reads measurements from r and stores every parsable row whose
// date the user has not recorded yet. Rows are independent: a failure on one
// row never undoes or stops the others.
func (s *MeasurementService) ImportCSV(ctx context.Context, userID int64, r io.Reader) ImportReport {
	rep := ImportReport{Status: "completed"}
	defer func() {
		slog.InfoContext(ctx, "measurements imported",
			"user_id", userID, "imported", rep.Imported, "duplicates", rep.Duplicates, "skipped", rep.Skipped)
		if s.observer != nil {
			s.observer.ObserveImport(rep)
		}
	}()

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	cols := columns{date: 0, weight: 1, notes: 2}
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rep
		}
		line++
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				slog.DebugContext(ctx, "import: unparsable csv row", "line", line, "error", err)
				rep.Skipped++
				continue
			}
			slog.WarnContext(ctx, "import: read aborted", "line", line, "error", err)
			return rep
		}
		if line == 1 && isHeader(rec) {
			cols = headerColumns(rec)
			continue
		}
		if blank(rec) {
			continue
		}

		d, weight, notes, err := cols.parse(rec)
		if err != nil {
			slog.DebugContext(ctx, "import: skipping row", "line", line, "error", err)
			rep.Skipped++
			continue
		}
		inserted, err := s.repo.InsertMeasurementIfAbsent(ctx, userID, d, weight, notes)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "import: row not stored", "line", line, "error", err)
			rep.Skipped++
		case inserted:
			rep.Imported++
		default:
			rep.Duplicates++
		}
	}
}

// ExportCSV writes all of the user's measurements to w, oldest first.
func (s *MeasurementService) ExportCSV(ctx context.Context, userID int64, w io.Writer) error {
	ms, err := s.repo.ListMeasurements(ctx, userID)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, m := range ms {
		rec := []string{m.Date.String(), strconv.FormatFloat(m.Weight, 'f', -1, 64), m.Notes}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type columns struct {
	date, weight, notes int
}

func (c columns) parse(rec []string) (domain.Day, float64, string, error) {
	if c.date < 0 || c.weight < 0 || c.date >= len(rec) || c.weight >= len(rec) {
		return domain.Day{}, 0, "", fmt.Errorf("row has %d fields", len(rec))
	}
	d, err := domain.ParseDay(rec[c.date])
	if err != nil {
		return domain.Day{}, 0, "", err
	}
	weight, err := strconv.ParseFloat(strings.TrimSpace(rec[c.weight]), 64)
	if err != nil {
		return domain.Day{}, 0, "", fmt.Errorf("weight %q is not a number", rec[c.weight])
	}
	if err := validateWeight("weight", weight); err != nil {
		return domain.Day{}, 0, "", err
	}
	var notes string
	if c.notes >= 0 && c.notes < len(rec) {
		notes = rec[c.notes]
	}
	return d, weight, notes, nil
}

// isHeader reports whether the first record names columns rather than
// holding data.
func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	_, err := domain.ParseDay(rec[0])
	return err != nil && strings.Contains(strings.ToLower(strings.Join(rec, ",")), "weight")
}

func headerColumns(rec []string) columns {
	c := columns{date: -1, weight: -1, notes: -1}
	for i, name := range rec {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "measurement_date", "date":
			c.date = i
		case "weight":
			c.weight = i
		case "notes", "note":
			c.notes = i
		}
	}
	return c
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func validateWeight(field string, w float64) error {
	if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return domain.Invalid(field, field+" must be > 0")
	}
	return nil
}
