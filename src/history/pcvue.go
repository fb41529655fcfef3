package history

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/iso8601"

	"github.com/ryansname/boilersim/src/combustion"
)

// PCVue tags exported by the plant supervisor
const (
	ColZone1Flow     = "Inc_AP3_FT10342N_YOUT"
	ColZone2Flow     = "Inc_AP3_FT10352N_YOUT"
	ColZone3Flow     = "Inc_AP3_FT10362N_YOUT"
	ColO2            = "Inc_Combus_AT12303_YOUT"
	ColSH5           = "Chaud_Vap_TT12115_YOUT" // superheater 5
	ColBoilerOutTemp = "Chaud_Vap_TT12300_YOUT" // boiler outlet, used when SH5 is missing
	ColSteamKgH      = "Chaud_Vap_FT12048C_YOUT"
	ColSteamTH       = "Debit_Vapeur"
	ColTimestamp     = "Timestamp"
)

const (
	defaultO2       = 6.0
	defaultSteam    = 30.6
	defaultSH5      = 625.0
	maxPlausibleSH5 = 1200.0
	kgPerTonne      = 1000.0
)

// ErrNoTimestampColumn is returned when the header has no Timestamp column
var ErrNoTimestampColumn = errors.New("csv has no " + ColTimestamp + " column")

// timestampLayouts are tried after ISO 8601
var timestampLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// CleanValue parses a PCVue cell. Cells may be quoted and use a comma as decimal separator.
// Anything that is not a number reads as 0.
func CleanValue(raw string) float64 {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimPrefix(s, `'`)
	s = strings.TrimSuffix(s, `"`)
	s = strings.TrimSuffix(s, `'`)
	s = strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParseTimestamp reads an ISO 8601 or PCVue timestamp in local plant time
func ParseTimestamp(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if t, err := iso8601.ParseString(s); err == nil {
		return t, true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type pcvueRow map[string]string

func (r pcvueRow) value(col string) float64 {
	return CleanValue(r[col])
}

// ParsePCVue reads a PCVue export into data points, oldest first as written.
// Rows without a timestamp are skipped; implausible temperatures are interpolated from the
// neighbouring rows. Only an unreadable header fails the import.
func ParsePCVue(r io.Reader) ([]DataPoint, error) {
	br := bufio.NewReader(r)
	delim, err := sniffDelimiter(br)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	hasTimestamp := false
	for _, h := range header {
		if h == ColTimestamp {
			hasTimestamp = true
		}
	}
	if !hasTimestamp {
		return nil, ErrNoTimestampColumn
	}

	var rows []pcvueRow
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// a malformed line never aborts the import
			continue
		}
		if isBlank(record) {
			continue
		}
		row := make(pcvueRow, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		rows = append(rows, row)
	}

	now := time.Now()
	points := make([]DataPoint, 0, len(rows))
	for i, row := range rows {
		label := strings.TrimSpace(row[ColTimestamp])
		if label == "" {
			continue
		}

		p := DataPoint{
			Zone1Flow: row.value(ColZone1Flow),
			Zone2Flow: row.value(ColZone2Flow),
			Zone3Flow: row.value(ColZone3Flow),
		}

		base := now
		if ts, ok := ParseTimestamp(label); ok {
			p.Timestamp = ts
			base = ts
		} else {
			p.Label = label
		}
		p.ID = fmt.Sprintf("%d-%d", base.UnixMilli(), i)

		p.SH5Temp = row.value(ColSH5)
		if p.SH5Temp == 0 {
			p.SH5Temp = row.value(ColBoilerOutTemp)
		}
		if p.SH5Temp < 0 || p.SH5Temp > maxPlausibleSH5 {
			p.SH5Temp = interpolateSH5(rows, i)
		}

		p.O2Level = row.value(ColO2)
		if p.O2Level == 0 {
			p.O2Level = defaultO2
		}

		if kgh := row.value(ColSteamKgH); kgh > 0 {
			// magnitude decides the unit: large values are kg/h
			if kgh > kgPerTonne {
				p.SteamFlow = kgh / kgPerTonne
			} else {
				p.SteamFlow = kgh
			}
		}
		if p.SteamFlow == 0 {
			p.SteamFlow = row.value(ColSteamTH)
			if p.SteamFlow == 0 {
				p.SteamFlow = defaultSteam
			}
		}

		p.Barycenter = combustion.ZoneBarycenter(p.Zone1Flow, p.Zone2Flow, p.Zone3Flow)
		p.IsTechnicalStop = p.SH5Temp < TechnicalStopSH5

		points = append(points, p)
	}

	return points, nil
}

// interpolateSH5 averages the neighbours' SH5 readings, or uses whichever one is valid
func interpolateSH5(rows []pcvueRow, i int) float64 {
	var prev, next float64
	if i > 0 {
		prev = rows[i-1].value(ColSH5)
	}
	if i < len(rows)-1 {
		next = rows[i+1].value(ColSH5)
	}
	if prev > maxPlausibleSH5 {
		prev = 0
	}
	if next > maxPlausibleSH5 {
		next = 0
	}

	switch {
	case prev > 0 && next > 0:
		return (prev + next) / 2
	case prev > 0:
		return prev
	case next > 0:
		return next
	default:
		return defaultSH5
	}
}

// sniffDelimiter peeks at the header line: PCVue writes ';' when the locale uses ',' for decimals
func sniffDelimiter(br *bufio.Reader) (rune, error) {
	line, err := br.Peek(br.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return 0, fmt.Errorf("reading csv: %w", err)
	}
	if len(line) == 0 {
		return 0, fmt.Errorf("reading csv header: %w", io.EOF)
	}
	if idx := strings.IndexByte(string(line), '\n'); idx >= 0 {
		line = line[:idx]
	}
	if strings.Count(string(line), ";") > strings.Count(string(line), ",") {
		return ';', nil
	}
	return ',', nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
