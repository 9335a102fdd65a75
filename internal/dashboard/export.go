package dashboard

import (
	"bytes"
	"net/http"

	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/crime-atlas/internal/analysis"
	"github.com/sells-group/crime-atlas/internal/dataset"
)

// handleExportCSV downloads the filtered incidents as CSV.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRequest(r.URL.Query())
	if err != nil {
		s.fail(w, err)
		return
	}
	filtered := analysis.Apply(s.ds.Incidents, req.Filter)

	var buf bytes.Buffer
	if err := dataset.WriteIncidents(&buf, filtered); err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.cfg.ExportName+`.csv"`)
	_, _ = w.Write(buf.Bytes())
	s.log.Debug("dashboard: exported csv", zap.Int("rows", len(filtered)))
}

// handleExportXLSX downloads the filtered incidents as a single-sheet workbook.
func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRequest(r.URL.Query())
	if err != nil {
		s.fail(w, err)
		return
	}
	filtered := analysis.Apply(s.ds.Incidents, req.Filter)

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("incidents")
	if err != nil {
		s.fail(w, err)
		return
	}
	header := dataset.IncidentHeader()
	hr := sheet.AddRow()
	for _, h := range header {
		hr.AddCell().SetString(h)
	}
	for _, inc := range filtered {
		row := sheet.AddRow()
		for i, v := range dataset.IncidentRecord(inc) {
			switch header[i] {
			case "Latitude":
				row.AddCell().SetFloat(inc.Latitude)
			case "Longitude":
				row.AddCell().SetFloat(inc.Longitude)
			default:
				row.AddCell().SetString(v)
			}
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.cfg.ExportName+`.xlsx"`)
	_, _ = w.Write(buf.Bytes())
}
