package capture

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

// DefaultPattern is the portal endpoint carrying the search payload.
const DefaultPattern = "dishaAPI/bot/editTrains/en"

// Headers that describe the original transfer and must not be replayed.
var droppedHeaders = map[string]bool{
	"content-length":    true,
	"accept-encoding":   true,
	"content-encoding":  true,
	"transfer-encoding": true,
	"host":              true,
	"connection":        true,
}

var listPaths = []string{"trainBtwnStnsList", "data.trainBtwnStnsList", "response.trainBtwnStnsList"}

var runningDayFields = []struct {
	field string
	day   time.Weekday
}{
	{"runningMon", time.Monday},
	{"runningTue", time.Tuesday},
	{"runningWed", time.Wednesday},
	{"runningThu", time.Thursday},
	{"runningFri", time.Friday},
	{"runningSat", time.Saturday},
	{"runningSun", time.Sunday},
}

// DecodeCredentials extracts the portal tokens from the first matching
// transaction that carries a request body.
func DecodeCredentials(txs []Transaction, pattern string) (models.CapturedCredentials, error) {
	for _, tx := range txs {
		if !tx.Matches(pattern) || tx.RequestBody == "" {
			continue
		}
		if !gjson.Valid(tx.RequestBody) {
			return models.CapturedCredentials{}, apperr.New(apperr.CaptureMiss, "capture.credentials",
				"request body of %s is not JSON", tx.URL)
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(tx.RequestBody), &payload); err != nil {
			return models.CapturedCredentials{}, apperr.Wrap(apperr.CaptureMiss, "capture.credentials", err)
		}
		body := gjson.Parse(tx.RequestBody)
		return models.CapturedCredentials{
			UserToken:  body.Get("userToken").String(),
			DSession:   body.Get("dSession").String(),
			SessionID:  body.Get("sessionId").String(),
			Payload:    payload,
			Headers:    SanitizeHeaders(tx.RequestHeaders),
			CapturedAt: time.Now(),
		}, nil
	}
	return models.CapturedCredentials{}, apperr.New(apperr.CaptureMiss, "capture.credentials",
		"no request matching %q with a body was captured", pattern).With("pattern", pattern)
}

// DecodeSearch decodes the train list from the first matching transaction
// that has a response body. Matches still waiting on a response are skipped.
func DecodeSearch(txs []Transaction, pattern string) (*models.TrainSearchResult, error) {
	for _, tx := range txs {
		if !tx.Matches(pattern) || tx.ResponseBody == "" {
			continue
		}
		trains, raw, err := DecodeTrainList(tx.ResponseBody)
		if err != nil {
			return nil, err
		}
		return &models.TrainSearchResult{
			Trains:     trains,
			CapturedAt: time.Now(),
			Raw:        raw,
		}, nil
	}
	return nil, apperr.New(apperr.CaptureMiss, "capture.search",
		"no response matching %q was captured", pattern).With("pattern", pattern)
}

// DecodeTrainList parses a portal search response body.
func DecodeTrainList(body string) ([]models.TrainRecord, json.RawMessage, error) {
	if !gjson.Valid(body) {
		return nil, nil, apperr.New(apperr.CaptureMiss, "capture.search", "response body is not JSON")
	}
	var list gjson.Result
	for _, p := range listPaths {
		if r := gjson.Get(body, p); r.Exists() {
			list = r
			break
		}
	}
	if !list.Exists() {
		return nil, nil, apperr.New(apperr.CaptureMiss, "capture.search", "response has no trainBtwnStnsList")
	}
	if !list.IsArray() {
		return nil, nil, apperr.New(apperr.CaptureMiss, "capture.search", "trainBtwnStnsList is %s, not a list", list.Type)
	}

	items := list.Array()
	trains := make([]models.TrainRecord, 0, len(items))
	for _, item := range items {
		trains = append(trains, decodeTrain(item))
	}
	return trains, json.RawMessage(body), nil
}

func decodeTrain(t gjson.Result) models.TrainRecord {
	rec := models.TrainRecord{
		TrainNumber:   t.Get("trainNumber").String(),
		TrainName:     strings.TrimSpace(t.Get("trainName").String()),
		DepartureTime: t.Get("departureTime").String(),
		ArrivalTime:   t.Get("arrivalTime").String(),
		Duration:      t.Get("duration").String(),
		Distance:      t.Get("distance").String(),
		FromStnCode:   t.Get("fromStnCode").String(),
		ToStnCode:     t.Get("toStnCode").String(),
	}

	tt := t.Get("trainType")
	switch {
	case tt.IsArray():
		for _, v := range tt.Array() {
			if s := strings.TrimSpace(v.String()); s != "" {
				rec.TrainType = append(rec.TrainType, strings.ToUpper(s))
			}
		}
	case tt.String() != "":
		rec.TrainType = []string{strings.ToUpper(tt.String())}
	}

	for _, d := range runningDayFields {
		if strings.EqualFold(t.Get(d.field).String(), "Y") {
			rec.RunningDays = rec.RunningDays.With(d.day)
		}
	}

	for _, avl := range t.Get("availability").Array() {
		rec.Availability = append(rec.Availability, decodeClass(avl))
	}
	return rec
}

func decodeClass(avl gjson.Result) models.ClassAvailability {
	day := avl.Get("details.avlDayList")
	if day.IsArray() {
		day = day.Get("0")
	}
	return models.ClassAvailability{
		ClassCode: avl.Get("className").String(),
		Status:    day.Get("availablityStatus").String(),
		Fare:      parseFare(day.Get("totalFare")),
	}
}

func parseFare(r gjson.Result) *float64 {
	switch r.Type {
	case gjson.Number:
		f := r.Float()
		return &f
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}

// SanitizeHeaders drops transfer-level headers so the rest can be replayed.
func SanitizeHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if droppedHeaders[strings.ToLower(k)] {
			continue
		}
		out[k] = v
	}
	return out
}

func decodeBase64(s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
