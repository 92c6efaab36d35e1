package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/pulse.report/internal/db"
)

// heartRateChart renders the readings of a session (default: the newest)
// as an HTML line chart of heart rate, SDNN and RMSSD.
// Query params:
//   - session (optional)
//   - limit (optional; default DefaultReadingsLimit)
func (s *Server) heartRateChart(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	limit, err := parseLimit(r, DefaultReadingsLimit)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.resolveSession(r)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	readings, err := s.db.Readings(id, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve readings: %v", err))
		return
	}

	line := buildHeartRateChart(id, readings)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func buildHeartRateChart(session string, readings []db.Reading) *charts.Line {
	x := make([]string, 0, len(readings))
	bpm := make([]opts.LineData, 0, len(readings))
	sdnn := make([]opts.LineData, 0, len(readings))
	rmssd := make([]opts.LineData, 0, len(readings))

	var t0 int64
	if len(readings) > 0 {
		t0 = readings[0].Timestamp
	}
	for _, rd := range readings {
		x = append(x, strconv.FormatFloat(float64(rd.Timestamp-t0)/1000, 'f', 1, 64))
		bpm = append(bpm, lineValue(rd.HeartRate))
		sdnn = append(sdnn, lineValue(rd.SDNN))
		rmssd = append(rmssd, lineValue(rd.RMSSD))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Heart rate", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Heart rate", Subtitle: fmt.Sprintf("session=%s readings=%d", session, len(readings))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "bpm / ms", NameLocation: "middle", NameGap: 35}),
	)
	line.SetXAxis(x).
		AddSeries("Heart rate (bpm)", bpm).
		AddSeries("SDNN (ms)", sdnn).
		AddSeries("RMSSD (ms)", rmssd)
	return line
}

// lineValue leaves gaps for zero (not yet measured) values.
func lineValue(v int) opts.LineData {
	if v == 0 {
		return opts.LineData{Value: "-"}
	}
	return opts.LineData{Value: v}
}
