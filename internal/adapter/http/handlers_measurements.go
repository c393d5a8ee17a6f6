package adapthttp

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"

	"weighttracker/internal/domain"
)

const maxImportBytes = 10 << 20

func (s *Server) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	ms, err := s.measurements.List(r.Context(), user.ID, r.URL.Query().Get("unit"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"measurements": ms})
}

func (s *Server) handleAddMeasurement(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MeasurementDate string  `json:"measurement_date"`
		Weight          float64 `json:"weight"`
		Notes           string  `json:"notes"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeServiceError(w, r, err)
		return
	}
	user := userFromContext(r)
	m, err := s.measurements.Record(r.Context(), user.ID, body.MeasurementDate, body.Weight, body.Notes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":     "Measurement added successfully",
		"measurement": m,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.measurements.ExportCSV(r.Context(), userFromContext(r).ID, &buf); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"csv": buf.String()})
}

// handleImport takes the CSV either as the multipart field "file" or as the
// raw request body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var src io.Reader = r.Body
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		f, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("multipart field \"file\" is required"))
			return
		}
		defer f.Close() //nolint:errcheck
		src = f
	}

	rep := s.measurements.ImportCSV(r.Context(), userFromContext(r).ID, src)
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	sum, err := s.trends.Summary(r.Context(), userFromContext(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleChartsDaily(w http.ResponseWriter, r *http.Request) {
	days := intQuery(r, "days", 90)
	unit := r.URL.Query().Get("unit")
	if unit == "" {
		unit = domain.UnitKG
	}
	points, err := s.trends.Daily(r.Context(), userFromContext(r).ID, days, unit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"days":  len(points),
		"unit":  unit,
		"items": points,
	})
}
