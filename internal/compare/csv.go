package compare

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// CSVHeader lists the columns written by WriteCSV.
var CSVHeader = []string{"dates", "date_secs", "in_track_err", "cross_track_err", "radial_err"}

// WriteCSV writes one line per row, errors in kilometers.
func WriteCSV(w io.Writer, r Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, row := range r.Rows {
		rec := []string{
			row.Epoch.UTC().Format(time.RFC3339Nano),
			formatFloat(row.ElapsedSeconds),
			formatFloat(row.InTrackKm),
			formatFloat(row.CrossTrackKm),
			formatFloat(row.RadialKm),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
