package store

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "smc-signals/internal/errors"
	"smc-signals/internal/models"
)

// barRecord is one row of a bar CSV with the header
// timestamp,open,high,low,close,volume.
type barRecord struct {
	Timestamp csvTime `csv:"timestamp"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    float64 `csv:"volume"`
}

// csvTime accepts RFC 3339, "2006-01-02 15:04:05", "2006-01-02" and unix
// seconds or milliseconds.
type csvTime struct {
	time.Time
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (t *csvTime) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			t.Time = time.UnixMilli(n).UTC()
		} else {
			t.Time = time.Unix(n, 0).UTC()
		}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// ReadBarsCSV parses bars from r. Rows are returned sorted by timestamp with
// later duplicates replacing earlier ones. Any row that is not a valid bar
// fails the whole read.
func ReadBarsCSV(r io.Reader, symbol string) ([]models.Bar, error) {
	var records []*barRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, apperrors.NewDataError("csv", symbol, "parse failed", err)
	}

	byTime := make(map[int64]models.Bar, len(records))
	for i, rec := range records {
		b := models.Bar{
			Timestamp: rec.Timestamp.Time,
			Open:      rec.Open,
			High:      rec.High,
			Low:       rec.Low,
			Close:     rec.Close,
			Volume:    rec.Volume,
		}
		if b.Timestamp.IsZero() || !b.Valid() {
			// header is line 1
			return nil, apperrors.NewDataError("csv", symbol,
				fmt.Sprintf("line %d", i+2), apperrors.ErrInvalidBar)
		}
		byTime[b.Timestamp.UnixNano()] = b
	}

	bars := make([]models.Bar, 0, len(byTime))
	for _, b := range byTime {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	return bars, nil
}

// ReadBarsFile opens path and parses it with ReadBarsCSV.
func ReadBarsFile(path, symbol string) ([]models.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewDataError("csv", symbol, "open failed", err)
	}
	defer f.Close()
	return ReadBarsCSV(f, symbol)
}
