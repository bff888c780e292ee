package query

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/internal/cache"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

func fare(f float64) *float64 { return &f }

func class(code, status string, f *float64) models.ClassAvailability {
	return models.ClassAvailability{ClassCode: code, Status: status, Fare: f}
}

// NDLS to BCT, three trains, two with an available 3A.
func fixture() []models.TrainRecord {
	return []models.TrainRecord{
		{
			TrainNumber: "12952", TrainName: "RAJDHANI", DepartureTime: "16:55", Duration: "15:32",
			TrainType: []string{"R"},
			Availability: []models.ClassAvailability{
				class("3A", "AVAILABLE-0010", fare(900)),
				class("2A", "GNWL5/WL3", fare(1500)),
			},
		},
		{
			TrainNumber: "12910", TrainName: "GARIB RATH", DepartureTime: "18:00", Duration: "17:10",
			TrainType: []string{"G", "SF"},
			Availability: []models.ClassAvailability{
				class("3A", "AVAILABLE-0003", fare(750)),
				class("SL", "RAC 12", fare(400)),
			},
		},
		{
			TrainNumber: "12904", TrainName: "GOLDEN TEMPLE", DepartureTime: "17:59", Duration: "bad",
			TrainType: []string{"M"},
			Availability: []models.ClassAvailability{
				class("3A", "REGRET/WL", fare(880)),
				class("SL", "AVAILABLE-0100", nil),
			},
		},
	}
}

func TestAvailableOnlyListsBookableClasses(t *testing.T) {
	got := Available(fixture())
	require.Len(t, got, 3)
	for _, tv := range got {
		require.NotEmpty(t, tv.Classes)
		for _, c := range tv.Classes {
			assert.True(t, c.IsAvailable(), "train %s class %s", tv.TrainNumber, c.ClassCode)
		}
	}
	assert.Equal(t, []models.ClassAvailability{class("SL", "AVAILABLE-0100", nil)}, got[2].Classes)
}

func TestAvailableExcludesTrainsWithoutBookableClass(t *testing.T) {
	trains := []models.TrainRecord{{TrainNumber: "1", Availability: []models.ClassAvailability{class("SL", "WL 4", fare(1))}}}
	assert.Empty(t, Available(trains))
}

func TestCheapestThreeA(t *testing.T) {
	got := Cheapest(fixture(), "3a")
	require.Len(t, got, 2)
	assert.Equal(t, 750.0, *got[0].Fare)
	assert.Equal(t, 900.0, *got[1].Fare)
	for _, o := range got {
		assert.Equal(t, "3A", o.Class)
	}
}

func TestCheapestSortedAndSkipsMissingFares(t *testing.T) {
	got := Cheapest(fixture(), "")
	require.Len(t, got, 2, "the SL entry without a fare is skipped")
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, *got[i-1].Fare, *got[i].Fare)
	}
}

func TestCheapestStableOnTies(t *testing.T) {
	trains := []models.TrainRecord{
		{TrainNumber: "A", Availability: []models.ClassAvailability{class("SL", "AVAILABLE-1", fare(500))}},
		{TrainNumber: "B", Availability: []models.ClassAvailability{class("SL", "AVAILABLE-1", fare(500))}},
		{TrainNumber: "C", Availability: []models.ClassAvailability{class("SL", "AVAILABLE-1", fare(100))}},
	}
	got := Cheapest(trains, "SL")
	assert.Equal(t, []string{"C", "A", "B"}, numbers(got))
}

func TestCheapestTopTen(t *testing.T) {
	var trains []models.TrainRecord
	for i := 0; i < 15; i++ {
		trains = append(trains, models.TrainRecord{
			TrainNumber:  string(rune('a' + i)),
			Availability: []models.ClassAvailability{class("SL", "AVAILABLE", fare(float64(100-i)))},
		})
	}
	assert.Len(t, Cheapest(trains, ""), TopN)
}

func TestFastest(t *testing.T) {
	got := Fastest(fixture())
	require.Len(t, got, 2, "unparseable durations are skipped")
	assert.Equal(t, "12952", got[0].TrainNumber)
	assert.Equal(t, "15:32", got[0].Duration)
	assert.Equal(t, "17:10", got[1].Duration)
}

func TestFastestIgnoresUnavailableTrains(t *testing.T) {
	trains := []models.TrainRecord{
		{TrainNumber: "1", Duration: "01:00", Availability: []models.ClassAvailability{class("SL", "WL 1", nil)}},
		{TrainNumber: "2", Duration: "09:00", Availability: []models.ClassAvailability{class("SL", "AVAILABLE-2", nil)}},
	}
	got := Fastest(trains)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].TrainNumber)
}

func TestByClassIgnoresStatus(t *testing.T) {
	got := ByClass(fixture(), "sl")
	require.Len(t, got, 2)
	assert.Equal(t, "RAC 12", got[0].Status)
	assert.Equal(t, "AVAILABLE-0100", got[1].Status)
}

func TestByType(t *testing.T) {
	got := ByType(fixture(), "sf")
	require.Len(t, got, 1)
	assert.Equal(t, "12910", got[0].TrainNumber)
	assert.Len(t, got[0].Classes, 2)
}

func TestFilterDepartureBoundsInclusive(t *testing.T) {
	got, err := Filter(fixture(), Criteria{DepartureAfter: "18:00", DepartureBefore: "22:00", OnlyAvailable: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"12910"}, viewNumbers(got))

	got, err = Filter(fixture(), Criteria{DepartureBefore: "17:59"})
	require.NoError(t, err)
	assert.Equal(t, []string{"12952", "12904"}, viewNumbers(got))
}

func TestFilterFallsBackToRawClasses(t *testing.T) {
	got, err := Filter(fixture(), Criteria{Classes: []string{"1A"}, OnlyAvailable: false})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Len(t, got[0].Classes, 2)

	got, err = Filter(fixture(), Criteria{Classes: []string{"1A"}, OnlyAvailable: true})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFilterTypesAndClasses(t *testing.T) {
	got, err := Filter(fixture(), Criteria{Types: []string{"m", "r"}, Classes: []string{"sl", "3a"}, OnlyAvailable: true})
	require.NoError(t, err)
	require.Len(t, got, 2)

	want := []TrainView{
		view(fixture()[0], []models.ClassAvailability{class("3A", "AVAILABLE-0010", fare(900))}),
		view(fixture()[2], []models.ClassAvailability{class("SL", "AVAILABLE-0100", nil)}),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("filter mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterRejectsBadTimes(t *testing.T) {
	_, err := Filter(fixture(), Criteria{DepartureAfter: "6pm", DepartureBefore: "25:00"})
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.ErrorContains(t, err, "departureAfter")
	assert.ErrorContains(t, err, "departureBefore")
}

func TestSummarize(t *testing.T) {
	want := Summary{
		TotalTrains: 3,
		Available:   3,
		Waitlist:    2,
		RAC:         1,
		TrainTypes:  map[string]int{"R": 1, "G": 1, "SF": 1, "M": 1},
		Classes:     []string{"2A", "3A", "SL"},
	}
	if diff := cmp.Diff(want, Summarize(fixture())); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestTrainDetails(t *testing.T) {
	d, err := TrainDetails(fixture(), " 12910 ")
	require.NoError(t, err)
	assert.Equal(t, "GARIB RATH", d.TrainName)
	assert.Len(t, d.AvailableClasses, 1)

	_, err = ByTrainNumber(fixture(), "99999")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestDurationParsing(t *testing.T) {
	m, ok := DurationMinutes("26:05")
	assert.True(t, ok)
	assert.Equal(t, 1565, m)

	for _, bad := range []string{"", "15", "ab:cd", "10:75"} {
		_, ok := DurationMinutes(bad)
		assert.False(t, ok, bad)
	}
}

func TestEngineCacheEmpty(t *testing.T) {
	e := NewEngine(cache.New())

	_, err := e.Available()
	assert.True(t, apperr.Is(err, apperr.CacheEmpty))
	_, err = e.Cheapest("3A")
	assert.True(t, apperr.Is(err, apperr.CacheEmpty))
	_, err = e.Fastest()
	assert.True(t, apperr.Is(err, apperr.CacheEmpty))
	_, err = e.ByClass("SL")
	assert.True(t, apperr.Is(err, apperr.CacheEmpty))
	_, err = e.ByType("R")
	assert.True(t, apperr.Is(err, apperr.CacheEmpty))
	_, err = e.Filter(Criteria{})
	assert.True(t, apperr.Is(err, apperr.CacheEmpty))
	_, err = e.Summary()
	assert.True(t, apperr.Is(err, apperr.CacheEmpty))
	_, err = e.TrainDetails("12951")
	assert.True(t, apperr.Is(err, apperr.CacheEmpty))
	_, err = e.ByTrainNumber("12951")
	assert.True(t, apperr.Is(err, apperr.CacheEmpty))
}

func TestEngineQueriesAreIdempotent(t *testing.T) {
	c := cache.New()
	c.SetResult(&models.TrainSearchResult{Trains: fixture()})
	e := NewEngine(c)

	first, err := e.Cheapest("")
	require.NoError(t, err)
	second, err := e.Cheapest("")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	f1, _ := e.Fastest()
	f2, _ := e.Fastest()
	assert.Equal(t, f1, f2)

	s1, _ := e.Summary()
	s2, _ := e.Summary()
	assert.Equal(t, s1, s2)
}

func numbers(opts []ClassOption) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.TrainNumber)
	}
	return out
}

func viewNumbers(views []TrainView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.TrainNumber)
	}
	return out
}
