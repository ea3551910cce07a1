package telemetry

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bhmob/bhlake/internal/errors"
)

// The PBH real-time feed is a newline-separated stream of bracket records:
//
//	<EV=105;HR=123456;LT=-19.912;LG=-43.940;NV=30123;VL=32;NL=9202;DG=2;SV=1;DT=1042>
//
// A decodable line matches ^<[^<>]*>$ after trimming. Fields are
// ;-separated KEY=VALUE pairs; the first = is the separator. Lines that do
// not match are skipped silently at line granularity.
var recordLine = regexp.MustCompile(`^<[^<>]*>$`)

// keyMap maps wire keys to canonical column names. Unknown keys are
// preserved verbatim in Extra.
var keyMap = map[string]string{
	"EV": "event",
	"HR": "time",
	"LT": "latitude",
	"LG": "longitude",
	"NV": "vehicle_id",
	"VL": "speed",
	"NL": "line_number",
	"DG": "direction",
	"SV": "status",
	"DT": "distance",
}

// Decode parses the raw wire text into an ordered sequence of records.
// Malformed lines are skipped, never an error; a numeric field that fails
// to parse is null on that record only. Empty text with no content at all
// is ErrNoContent, distinct from text that yields zero valid records
// (a legitimate empty result with the full raw schema).
func Decode(text string) ([]RawRecord, error) {
	if text == "" {
		return nil, errors.ErrNoContent
	}

	records := make([]RawRecord, 0)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.Trim(line, `"'`)
		if line == "" || !recordLine.MatchString(line) {
			continue
		}

		rec, ok := decodeLine(line[1 : len(line)-1])
		if ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// DecodeAt is Decode with an explicit ingestion timestamp and source stamped
// on every record.
func DecodeAt(text, source string, ingestedAt time.Time) ([]RawRecord, error) {
	records, err := Decode(text)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].IngestedAt = ingestedAt
		records[i].Source = source
	}
	return records, nil
}

func decodeLine(inner string) (RawRecord, bool) {
	var rec RawRecord
	fields := 0

	for _, field := range strings.Split(inner, ";") {
		key, value, found := strings.Cut(field, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		fields++

		canonical, known := keyMap[key]
		if !known {
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[key] = value
			continue
		}
		rec.set(canonical, value)
	}

	return rec, fields > 0
}

// set assigns a canonical field from its wire value. Numeric columns are
// coerced; a parse failure leaves the field null.
func (r *RawRecord) set(column, value string) {
	switch column {
	case "direction":
		r.Direction = String(value)
	case "status":
		r.Status = String(value)
	default:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return
		}
		switch column {
		case "event":
			r.Event = &f
		case "time":
			r.Time = &f
		case "latitude":
			r.Latitude = &f
		case "longitude":
			r.Longitude = &f
		case "vehicle_id":
			r.VehicleID = &f
		case "speed":
			r.Speed = &f
		case "line_number":
			r.LineNumber = &f
		case "distance":
			r.Distance = &f
		}
	}
}
