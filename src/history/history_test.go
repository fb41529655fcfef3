package history

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func makePoints(n int) []DataPoint {
	points := make([]DataPoint, n)
	for i := range points {
		points[i] = DataPoint{
			ID:        fmt.Sprint(i),
			Timestamp: t0.Add(time.Duration(i) * time.Second),
			SH5Temp:   600,
		}
	}
	return points
}

func TestLog_DropsOldest(t *testing.T) {
	l := NewLog(3)
	for i := 1; i <= 5; i++ {
		l.Append(DataPoint{ID: fmt.Sprint(i)})
	}

	points := l.Points()
	require.Len(t, points, 3)
	assert.Equal(t, "3", points[0].ID)
	assert.Equal(t, "5", points[2].ID)
	assert.Equal(t, uint64(5), l.Version())
}

func TestLog_ReplaceKeepsMostRecent(t *testing.T) {
	l := NewLog(2)
	l.Replace(makePoints(5))

	points, version := l.Snapshot()
	require.Len(t, points, 2)
	assert.Equal(t, "3", points[0].ID)
	assert.Equal(t, "4", points[1].ID)
	assert.Equal(t, uint64(1), version)

	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, uint64(2), l.Version())
}

func TestLog_PointsIsACopy(t *testing.T) {
	l := NewLog(0)
	assert.Equal(t, DefaultCapacity, l.Capacity())

	l.Append(DataPoint{ID: "a"})
	points := l.Points()
	points[0].ID = "changed"
	assert.Equal(t, "a", l.Points()[0].ID)
}

func TestSample(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		target int
		want   int
	}{
		{"below target unchanged", 400, 500, 400},
		{"even stride", 1000, 500, 501},
		{"uneven stride", 1001, 500, 335},
		{"default target", 1000, 0, 501},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := makePoints(tt.n)
			sampled := Sample(points, tt.target)
			assert.Len(t, sampled, tt.want)
			assert.Equal(t, points[0].ID, sampled[0].ID)
			assert.Equal(t, points[tt.n-1].ID, sampled[len(sampled)-1].ID)
		})
	}
}

func TestSample_LastPointNotDuplicated(t *testing.T) {
	sampled := Sample(makePoints(7), 3)
	// stride 3 lands on index 6
	ids := make([]string, len(sampled))
	for i, p := range sampled {
		ids[i] = p.ID
	}
	assert.Equal(t, []string{"0", "3", "6"}, ids)
}

func TestFilterTechnicalStops(t *testing.T) {
	points := []DataPoint{
		{ID: "a", SH5Temp: 620},
		{ID: "b", SH5Temp: 300, IsTechnicalStop: true},
		{ID: "c", SH5Temp: 610},
	}
	filtered := FilterTechnicalStops(points)
	require.Len(t, filtered, 2)
	assert.Equal(t, "a", filtered[0].ID)
	assert.Equal(t, "c", filtered[1].ID)
}

func TestAnalyze_Constant(t *testing.T) {
	a := Analyze(makePoints(10))
	assert.Equal(t, 10, a.Points)
	assert.Equal(t, 600.0, a.SH5.Mean)
	assert.Equal(t, 0.0, a.SH5.StdDev)
	assert.Equal(t, 0.0, a.SH5.ZScore)
	assert.False(t, a.SH5.IsAnomaly)
	assert.Equal(t, TrendStable, a.SH5.Trend)
}

func TestAnalyze_UsesTrailingWindow(t *testing.T) {
	points := makePoints(40)
	for i := range points {
		points[i].SH5Temp = float64(i)
		points[i].Barycenter = 4 - 0.5*float64(i)
	}

	a := Analyze(points)
	assert.Equal(t, AnalysisWindow, a.Points)
	assert.InDelta(t, 24.5, a.SH5.Mean, 1e-9)
	assert.InDelta(t, 1.0, a.SH5.Slope, 1e-9)
	assert.Equal(t, TrendIncreasing, a.SH5.Trend)
	assert.InDelta(t, -0.5, a.Barycenter.Slope, 1e-9)
	assert.Equal(t, TrendDecreasing, a.Barycenter.Trend)
}

func TestAnalyze_Outlier(t *testing.T) {
	points := makePoints(30)
	points[29].SH5Temp = 700

	a := Analyze(points)
	assert.Greater(t, a.SH5.ZScore, 2.5)
	assert.True(t, a.SH5.IsAnomaly)
	assert.Equal(t, 700.0, a.SH5.Latest)
}

func TestAnalyze_Empty(t *testing.T) {
	a := Analyze(nil)
	assert.Equal(t, 0, a.Points)
	assert.Equal(t, TrendStable, a.SH5.Trend)
}

func TestCalculateTimeWeightedStats_Empty(t *testing.T) {
	p1, p50, p99 := calculateTimeWeightedStats(Readings{}, time.Minute, t0)
	assert.Equal(t, 0.0, p1)
	assert.Equal(t, 0.0, p50)
	assert.Equal(t, 0.0, p99)
}

func TestCalculateTimeWeightedStats_OldReadingsUseLastKnown(t *testing.T) {
	readings := Readings{
		{Value: 50.0, Timestamp: t0.Add(-5 * time.Minute)},
		{Value: 75.0, Timestamp: t0.Add(-3 * time.Minute)},
	}
	p1, p50, p99 := calculateTimeWeightedStats(readings, time.Minute, t0)

	assert.Equal(t, 75.0, p1)
	assert.Equal(t, 75.0, p50)
	assert.Equal(t, 75.0, p99)
}

func TestCalculateTimeWeightedStats_ShortSpike(t *testing.T) {
	// 100 for 200ms, 500 for 100ms, 100 for 200ms
	readings := Readings{
		{Value: 100.0, Timestamp: t0.Add(-500 * time.Millisecond)},
		{Value: 500.0, Timestamp: t0.Add(-300 * time.Millisecond)},
		{Value: 100.0, Timestamp: t0.Add(-200 * time.Millisecond)},
	}
	p1, p50, p99 := calculateTimeWeightedStats(readings, time.Second, t0)

	assert.Equal(t, 100.0, p1)
	assert.Equal(t, 100.0, p50)
	assert.Equal(t, 500.0, p99)
}

func TestCalculateTimeWeightedStats_ZeroDuration(t *testing.T) {
	readings := Readings{
		{Value: 100.0, Timestamp: t0},
		{Value: 200.0, Timestamp: t0},
	}
	p1, p50, p99 := calculateTimeWeightedStats(readings, time.Minute, t0)

	assert.Equal(t, 200.0, p1)
	assert.Equal(t, 200.0, p50)
	assert.Equal(t, 200.0, p99)
}

func TestTimeWeightedPercentiles(t *testing.T) {
	points := []DataPoint{
		{Timestamp: t0, SH5Temp: 600},
		{Timestamp: t0.Add(30 * time.Second), SH5Temp: 700},
		{Timestamp: t0.Add(60 * time.Second), SH5Temp: 600},
		{Label: "unparsed", SH5Temp: 900},
	}

	p := TimeWeightedPercentiles(points)
	assert.Equal(t, 600.0, p.Current)

	// 5 minute window: 600 held 30s, 700 held 30s, 600 held 0s
	assert.Equal(t, 600.0, p.P1.Min5)
	assert.Equal(t, 600.0, p.P50.Min5)
	assert.Equal(t, 700.0, p.P99.Min5)
	assert.Equal(t, p.P99.Min5, p.P99.Min15)

	assert.Equal(t, Percentiles{}, TimeWeightedPercentiles(nil))
}

func TestDailySummary(t *testing.T) {
	day2 := t0.Add(24 * time.Hour)
	points := []DataPoint{
		{Timestamp: day2, SH5Temp: 700},
		{Timestamp: t0, SH5Temp: 600},
		{Timestamp: t0.Add(time.Hour), SH5Temp: 651},
		{Label: "14/01/2025 23:00:00", SH5Temp: 580},
		{SH5Temp: 999},
	}

	days := DailySummary(points)
	require.Len(t, days, 3)

	assert.Equal(t, DaySummary{Date: "14/01/2025", Count: 1, AvgSH5: 580, MaxSH5: 580}, days[0])
	assert.Equal(t, DaySummary{Date: "2025-01-15", Count: 2, AvgSH5: 626, MaxSH5: 651}, days[1])
	assert.Equal(t, DaySummary{Date: "2025-01-16", Count: 1, AvgSH5: 700, MaxSH5: 700}, days[2])
}

func TestWriteTickCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTickCSV(&buf, []TickRecord{
		{Tick: 1, Mode: 2, SH5: 600.5, O2: 6, WasteDeposit: 50, EfficiencyAS: 0.5, Barycenter: 2.69, ASFlow: 12698, PusherSpeed: 50},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"tick,mode,sh5,o2,waste_deposit,efficiency_as,barycenter,as_flow,pusher_speed\n"+
			"1,2,600.5,6,50,0.5,2.69,12698,50\n",
		buf.String())
}

func TestWriteTickCSV_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTickCSV(&buf, nil))
	assert.Equal(t, "tick,mode,sh5,o2,waste_deposit,efficiency_as,barycenter,as_flow,pusher_speed\n", buf.String())
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "history.json"))
	points, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "history.json")
	s := NewFileStore(path)

	require.NoError(t, s.Save(makePoints(3)))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, "2", loaded[2].ID)
	assert.True(t, loaded[2].Timestamp.Equal(t0.Add(2*time.Second)))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}
