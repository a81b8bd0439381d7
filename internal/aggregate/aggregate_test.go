package aggregate

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/collision.report/internal/collision"
)

func fptr(f float64) *float64 { return &f }

func at(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

// fixture is a small mixed dataset:
//
//	id borough    when            coords        injured killed factor1              vehicle1
//	1  BROOKLYN   2021-01-05 08h  40.69,-73.98  1       0      Driver Inattention   Sedan
//	2  QUEENS     2021-01-05 08h  (0,0)         0       0      Unspecified          Sedan
//	3  BROOKLYN   2021-02-10 20h  nil           2       1      Driver Inattention   Taxi
//	4  (none)     2021-02-11 13h  40.80,-73.90  0       0      ""                   ""
func fixture() []collision.Record {
	return []collision.Record{
		{
			ID: 1, OccurredAt: at(2021, 1, 5, 8), Borough: collision.BoroughBrooklyn,
			Latitude: fptr(40.69), Longitude: fptr(-73.98),
			ContributingFactors: [5]string{"Driver Inattention", "Unspecified"},
			VehicleTypes:        [5]string{"Sedan"},
			Casualties:          collision.Casualties{PersonsInjured: 1, PedestriansInjured: 1},
		},
		{
			ID: 2, OccurredAt: at(2021, 1, 5, 8), Borough: collision.BoroughQueens,
			Latitude: fptr(0), Longitude: fptr(0),
			ContributingFactors: [5]string{"Unspecified"},
			VehicleTypes:        [5]string{"Sedan"},
		},
		{
			ID: 3, OccurredAt: at(2021, 2, 10, 20), Borough: collision.BoroughBrooklyn,
			ContributingFactors: [5]string{"Driver Inattention"},
			VehicleTypes:        [5]string{"Taxi"},
			Casualties: collision.Casualties{
				PersonsInjured: 2, PersonsKilled: 1,
				CyclistsInjured: 1, MotoristsInjured: 1, MotoristsKilled: 1,
			},
		},
		{
			ID: 4, OccurredAt: at(2021, 2, 11, 13),
			Latitude: fptr(40.80), Longitude: fptr(-73.90),
			Blank: collision.FieldSet(0).With(collision.FieldPersonsInjured),
		},
	}
}

func TestNewDatasetCopies(t *testing.T) {
	recs := fixture()
	ds := NewDataset(recs)
	recs[0].ID = 99

	assert.Equal(t, 4, ds.Len())
	assert.Equal(t, int64(1), ds.Record(0).ID)

	out := ds.Records()
	out[1].ID = 77
	assert.Equal(t, int64(2), ds.Record(1).ID)

	var empty *Dataset
	assert.Equal(t, 0, empty.Len())
	assert.Empty(t, empty.Records())
}

func TestDatasetCoordinatesAreDeepCopied(t *testing.T) {
	recs := fixture()
	ds := NewDataset(recs)

	*recs[0].Latitude = 1
	assert.Equal(t, 40.69, *ds.Record(0).Latitude)

	out := ds.Records()
	*out[0].Longitude = 2
	assert.Equal(t, -73.98, *ds.Record(0).Longitude)

	one := ds.Record(0)
	*one.Latitude = 3
	geo := GeoFiltered(ds)
	require.NotEmpty(t, geo)
	assert.Equal(t, 40.69, *geo[0].Latitude)

	*geo[0].Latitude = 4
	assert.Equal(t, 40.69, *GeoFiltered(ds)[0].Latitude)
	assert.InDelta(t, (40.69+40.80)/3, Describe(ds)[0].Mean, 1e-9)
}

func TestDatasetRecordOutOfRange(t *testing.T) {
	var empty *Dataset
	assert.Panics(t, func() { empty.Record(0) })
	assert.Panics(t, func() { NewDataset(fixture()).Record(4) })
	assert.Panics(t, func() { NewDataset(fixture()).Record(-1) })
}

func TestMissingValueReport(t *testing.T) {
	ds := NewDataset(fixture())
	report := MissingValueReport(ds)
	require.Len(t, report, len(collision.Fields))

	byField := make(map[collision.Field]MissingValue)
	for i, mv := range report {
		byField[mv.Field] = mv
		assert.GreaterOrEqual(t, mv.Percent, 0.0)
		assert.LessOrEqual(t, mv.Percent, 100.0)
		if i > 0 {
			assert.GreaterOrEqual(t, report[i-1].Percent, mv.Percent, "not sorted at %d", i)
		}
	}

	assert.Equal(t, 1, byField[collision.FieldBorough].Count)
	assert.InDelta(t, 25.0, byField[collision.FieldBorough].Percent, 1e-9)
	assert.Equal(t, 1, byField[collision.FieldLatitude].Count)
	assert.Equal(t, 1, byField[collision.FieldPersonsInjured].Count)
	assert.Equal(t, 0, byField[collision.FieldPersonsKilled].Count)
	assert.Equal(t, 4, byField[collision.FieldZipCode].Count)
	assert.Equal(t, 100.0, byField[collision.FieldZipCode].Percent)
	assert.Equal(t, "BOROUGH", byField[collision.FieldBorough].Column)
}

func TestMissingValueReportEmpty(t *testing.T) {
	for _, mv := range MissingValueReport(NewDataset(nil)) {
		assert.Equal(t, 0, mv.Count)
		assert.Equal(t, 0.0, mv.Percent)
	}
}

func TestMissingValueReportTiesKeepSchemaOrder(t *testing.T) {
	report := MissingValueReport(NewDataset(fixture()))
	pos := make(map[collision.Field]int)
	for i, mv := range report {
		pos[mv.Field] = i
	}
	// zip code and location are both 100% missing; zip precedes location in the schema
	assert.Less(t, pos[collision.FieldZipCode], pos[collision.FieldLocation])
}

func TestTopCategories(t *testing.T) {
	ds := NewDataset(fixture())

	got, err := TopCategories(ds, collision.FieldContributingFactor1, 10)
	require.NoError(t, err)
	want := []CategoryCount{
		{"Driver Inattention", 2},
		{"Unspecified", 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("TopCategories mismatch (-want +got):\n%s", diff)
	}

	got, err = TopCategories(ds, collision.FieldVehicleType1, 1)
	require.NoError(t, err)
	assert.Equal(t, []CategoryCount{{"Sedan", 2}}, got)

	got, err = TopCategories(ds, collision.FieldVehicleType1, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTopCategoriesTiesFirstSeen(t *testing.T) {
	recs := []collision.Record{
		{VehicleTypes: [5]string{"Taxi"}},
		{VehicleTypes: [5]string{"Bus"}},
		{VehicleTypes: [5]string{"Bike"}},
		{VehicleTypes: [5]string{"Bus"}},
		{VehicleTypes: [5]string{"Taxi"}},
	}
	got, err := TopCategories(NewDataset(recs), collision.FieldVehicleType1, 3)
	require.NoError(t, err)
	assert.Equal(t, []CategoryCount{{"Taxi", 2}, {"Bus", 2}, {"Bike", 1}}, got)
}

func TestTopCategoriesNearDuplicatesStaySeparate(t *testing.T) {
	recs := []collision.Record{
		{ContributingFactors: [5]string{"Illnes"}},
		{ContributingFactors: [5]string{"Illness"}},
	}
	got, err := TopCategories(NewDataset(recs), collision.FieldContributingFactor1, 5)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestTopCategoriesInvalidField(t *testing.T) {
	_, err := TopCategories(NewDataset(fixture()), collision.FieldPersonsKilled, 5)
	var invalid *collision.InvalidFieldError
	require.True(t, errors.As(err, &invalid), "got %v", err)
	assert.Equal(t, "persons_killed", invalid.Field)
}

func TestTopCategoriesBoundsAndOrder(t *testing.T) {
	ds := NewDataset(fixture())
	for _, f := range collision.Fields {
		if !f.IsCategorical() {
			continue
		}
		for _, n := range []int{1, 2, 5} {
			got, err := TopCategories(ds, f, n)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(got), n)
			for i := 1; i < len(got); i++ {
				assert.GreaterOrEqual(t, got[i-1].Count, got[i].Count)
			}
		}
	}
}

func TestRoleTotals(t *testing.T) {
	want := []RoleTotal{
		{LabelPedestrianInjuries, 1},
		{LabelCyclistInjuries, 1},
		{LabelMotoristInjuries, 1},
		{LabelPedestrianDeaths, 0},
		{LabelCyclistDeaths, 0},
		{LabelMotoristDeaths, 1},
	}
	if diff := cmp.Diff(want, RoleTotals(NewDataset(fixture()))); diff != "" {
		t.Errorf("RoleTotals mismatch (-want +got):\n%s", diff)
	}
}

func TestRoleTotalsMatchesColumnSums(t *testing.T) {
	recs := append(fixture(), collision.Record{Casualties: collision.Casualties{
		PedestriansInjured: 2, PedestriansKilled: 1,
		CyclistsInjured: 3, CyclistsKilled: 1,
		MotoristsInjured: 4, MotoristsKilled: 2,
	}})
	var want [6]int
	for _, r := range recs {
		c := r.Casualties
		want[0] += c.PedestriansInjured
		want[1] += c.CyclistsInjured
		want[2] += c.MotoristsInjured
		want[3] += c.PedestriansKilled
		want[4] += c.CyclistsKilled
		want[5] += c.MotoristsKilled
	}

	totals := RoleTotals(NewDataset(recs))
	require.Len(t, totals, 6)
	var sum, wantSum int
	for i, rt := range totals {
		assert.Equal(t, want[i], rt.Total, rt.Label)
		sum += rt.Total
		wantSum += want[i]
	}
	assert.Equal(t, wantSum, sum)
}

func TestHourlyAverage(t *testing.T) {
	recs := []collision.Record{
		{OccurredAt: at(2021, 1, 1, 8)},
		{OccurredAt: at(2021, 1, 2, 8)},
		{OccurredAt: at(2021, 1, 2, 20)},
	}
	got := HourlyAverage(NewDataset(recs))
	require.Len(t, got, 24)
	for h, ha := range got {
		assert.Equal(t, h, ha.Hour)
		switch h {
		case 8:
			assert.Equal(t, 1.0, ha.Average)
			assert.Equal(t, 2, ha.Count)
		case 20:
			// 1 record / 2 distinct hours present (8 and 20), not 1.0
			assert.Equal(t, 0.5, ha.Average)
		default:
			assert.Equal(t, 0.0, ha.Average, "hour %d", h)
		}
	}
}

func TestHourlyAverageUsesRecordedWallClock(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	// 2:30 falls in the 2022-03-13 spring-forward gap
	wall := time.Date(2022, 3, 13, 2, 30, 0, 0, time.UTC)
	recs := []collision.Record{{WallClock: wall, OccurredAt: collision.InLocation(wall, ny)}}
	ds := NewDataset(recs)

	got := HourlyAverage(ds)
	assert.Equal(t, 1, got[2].Count)
	assert.Equal(t, 0, got[1].Count)
	assert.Equal(t, []DayCount{{Date: at(2022, 3, 13, 0), Count: 1}}, DailySeries(ds))
}

func TestHourlyAverageEmpty(t *testing.T) {
	got := HourlyAverage(NewDataset(nil))
	require.Len(t, got, 24)
	for _, ha := range got {
		assert.Equal(t, 0.0, ha.Average)
	}
}

func TestMonthlySeries(t *testing.T) {
	recs := append(fixture(), collision.Record{OccurredAt: at(2020, 12, 31, 23)})
	got := MonthlySeries(NewDataset(recs))
	want := []MonthCount{
		{Year: 2020, Month: time.December, Count: 1},
		{Year: 2021, Month: time.January, Count: 2},
		{Year: 2021, Month: time.February, Count: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MonthlySeries mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "2020-12", got[0].Label())
	assert.Equal(t, at(2021, 1, 1, 0), got[1].Start())
}

func TestMonthlySeriesNoGapFill(t *testing.T) {
	recs := []collision.Record{
		{OccurredAt: at(2021, 1, 1, 0)},
		{OccurredAt: at(2021, 3, 1, 0)},
	}
	assert.Len(t, MonthlySeries(NewDataset(recs)), 2)
}

func TestDailySeries(t *testing.T) {
	got := DailySeries(NewDataset(fixture()))
	want := []DayCount{
		{Date: at(2021, 1, 5, 0), Count: 2},
		{Date: at(2021, 2, 10, 0), Count: 1},
		{Date: at(2021, 2, 11, 0), Count: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DailySeries mismatch (-want +got):\n%s", diff)
	}
}

func TestDailySeriesUsesLocalDate(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	// 23:30 local is already the next day in UTC
	recs := []collision.Record{{OccurredAt: time.Date(2021, 6, 1, 23, 30, 0, 0, ny)}}
	got := DailySeries(NewDataset(recs))
	require.Len(t, got, 1)
	assert.Equal(t, at(2021, 6, 1, 0), got[0].Date)
}

func TestBoroughCounts(t *testing.T) {
	recs := fixture()
	got := BoroughCounts(NewDataset(recs))
	want := []BoroughCount{
		{collision.BoroughBrooklyn, 2},
		{collision.BoroughQueens, 1},
	}
	assert.Equal(t, want, got)

	sum := 0
	for _, bc := range got {
		sum += bc.Count
	}
	withBorough := 0
	for _, r := range recs {
		if r.Borough != collision.BoroughNone {
			withBorough++
		}
	}
	assert.Equal(t, withBorough, sum)
}

func TestBoroughCountsTiesByName(t *testing.T) {
	recs := []collision.Record{
		{Borough: collision.BoroughStatenIsland},
		{Borough: collision.BoroughBronx},
	}
	got := BoroughCounts(NewDataset(recs))
	assert.Equal(t, collision.BoroughBronx, got[0].Borough)
}

func TestGeoFiltered(t *testing.T) {
	got := GeoFiltered(NewDataset(fixture()))
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(4), got[1].ID)
	for _, r := range got {
		assert.False(t, *r.Latitude == 0 && *r.Longitude == 0)
	}
}

func TestGeoFilteredAllSentinel(t *testing.T) {
	recs := []collision.Record{{Latitude: fptr(0), Longitude: fptr(0)}}
	assert.Empty(t, GeoFiltered(NewDataset(recs)))
}

func TestSeverityClass(t *testing.T) {
	recs := fixture()
	assert.Equal(t, collision.SeverityInjury, SeverityClass(&recs[0]))
	assert.Equal(t, collision.SeverityNone, SeverityClass(&recs[1]))
	assert.Equal(t, collision.SeverityFatal, SeverityClass(&recs[2]))
}

func TestSeverityCounts(t *testing.T) {
	got := SeverityCounts(fixture())
	want := []SeverityCount{
		{collision.SeverityFatal, 1},
		{collision.SeverityInjury, 1},
		{collision.SeverityNone, 2},
	}
	assert.Equal(t, want, got)
}

func TestCasualtyInconsistencies(t *testing.T) {
	recs := fixture()
	recs = append(recs, collision.Record{
		ID:         5,
		Casualties: collision.Casualties{PersonsInjured: 1, PedestriansInjured: 1, CyclistsInjured: 1},
	})
	got := CasualtyInconsistencies(NewDataset(recs))
	require.Len(t, got, 1)
	assert.Equal(t, Inconsistency{RecordID: 5, PersonsInjured: 1, RoleInjured: 2}, got[0])
}

func TestDescribe(t *testing.T) {
	got := Describe(NewDataset(fixture()))
	require.Len(t, got, len(describedFields))

	byField := make(map[collision.Field]NumericSummary)
	for _, s := range got {
		byField[s.Field] = s
	}

	lat := byField[collision.FieldLatitude]
	assert.Equal(t, 3, lat.Count)
	assert.InDelta(t, 0.0, lat.Min, 1e-9)
	assert.InDelta(t, 40.80, lat.Max, 1e-9)
	assert.InDelta(t, (40.69+40.80)/3, lat.Mean, 1e-9)
	// sorted {0, 40.69, 40.80}: ranks 0.5, 1 and 1.5
	assert.InDelta(t, 20.345, lat.P25, 1e-9)
	assert.InDelta(t, 40.69, lat.P50, 1e-9)
	assert.InDelta(t, 40.745, lat.P75, 1e-9)

	// blank persons_injured cell on record 4 is not counted
	inj := byField[collision.FieldPersonsInjured]
	assert.Equal(t, 3, inj.Count)
	assert.InDelta(t, 1.0, inj.Mean, 1e-9)
	assert.InDelta(t, 1.0, inj.Std, 1e-9)

	id := byField[collision.FieldCollisionID]
	assert.Equal(t, 4, id.Count)
	assert.Equal(t, 1.0, id.Min)
	assert.Equal(t, 4.0, id.Max)
}

func TestDescribeQuartiles(t *testing.T) {
	recs := []collision.Record{{ID: 4}, {ID: 1}, {ID: 3}, {ID: 2}}
	var id NumericSummary
	for _, s := range Describe(NewDataset(recs)) {
		if s.Field == collision.FieldCollisionID {
			id = s
		}
	}
	assert.Equal(t, 4, id.Count)
	assert.InDelta(t, 1.75, id.P25, 1e-12)
	assert.InDelta(t, 2.5, id.P50, 1e-12)
	assert.InDelta(t, 3.25, id.P75, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), id.Std, 1e-12)
}

func TestLinearQuantile(t *testing.T) {
	tests := []struct {
		xs   []float64
		p    float64
		want float64
	}{
		{[]float64{5}, 0.25, 5},
		{[]float64{1, 2}, 0.5, 1.5},
		{[]float64{1, 2, 3, 4, 5}, 0.25, 2},
		{[]float64{10, 20, 30, 40}, 0.75, 32.5},
		{[]float64{10, 20, 30, 40}, 1, 40},
		{[]float64{10, 20, 30, 40}, 0, 10},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, linearQuantile(tt.xs, tt.p), 1e-12, "%v p=%v", tt.xs, tt.p)
	}
}

func TestDescribeConstantAndEmpty(t *testing.T) {
	recs := []collision.Record{{ID: 7}, {ID: 7}, {ID: 7}}
	for _, s := range Describe(NewDataset(recs)) {
		if s.Field != collision.FieldCollisionID {
			continue
		}
		assert.Equal(t, 7.0, s.P25)
		assert.Equal(t, 7.0, s.P50)
		assert.Equal(t, 7.0, s.P75)
		assert.Equal(t, 0.0, s.Std)
	}

	for _, s := range Describe(NewDataset(nil)) {
		assert.Equal(t, 0, s.Count)
		assert.True(t, math.IsNaN(s.Mean))
	}

	single := Describe(NewDataset([]collision.Record{{ID: 3}}))
	for _, s := range single {
		if s.Field == collision.FieldCollisionID {
			assert.True(t, math.IsNaN(s.Std))
			assert.Equal(t, 3.0, s.P50)
		}
	}
}

func TestNormalize(t *testing.T) {
	recs := []collision.Record{
		{ContributingFactors: [5]string{"Illnes"}},
		{ContributingFactors: [5]string{"Illness"}},
		{ContributingFactors: [5]string{"Drugs (illegal)"}},
		{},
	}
	ds := NewDataset(recs)
	norm, err := Normalize(ds, collision.FieldContributingFactor1, map[string]string{
		" illnes ":        "Illness",
		"DRUGS (ILLEGAL)": "Drugs (Illegal)",
	})
	require.NoError(t, err)

	got, err := TopCategories(norm, collision.FieldContributingFactor1, 5)
	require.NoError(t, err)
	assert.Equal(t, []CategoryCount{{"Illness", 2}, {"Drugs (Illegal)", 1}}, got)

	// input untouched
	assert.Equal(t, "Illnes", ds.Record(0).ContributingFactors[0])
	assert.Equal(t, 4, norm.Len())

	_, err = Normalize(ds, collision.FieldLatitude, nil)
	var invalid *collision.InvalidFieldError
	assert.True(t, errors.As(err, &invalid))
}

func TestSample(t *testing.T) {
	recs := make([]collision.Record, 50)
	for i := range recs {
		recs[i].ID = int64(i)
	}

	a := Sample(recs, 10, 42)
	b := Sample(recs, 10, 42)
	require.Len(t, a, 10)
	assert.Equal(t, a, b, "same seed must give the same sample")
	for i := 1; i < len(a); i++ {
		assert.Less(t, a[i-1].ID, a[i].ID, "sample should keep source order")
	}

	assert.Len(t, Sample(recs, 0, 1), 50)
	assert.Len(t, Sample(recs, 500, 1), 50)
	assert.Empty(t, Sample(nil, 10, 1))
}

func TestSummarize(t *testing.T) {
	s, err := Summarize(NewDataset(fixture()), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 4, s.Records)
	assert.Equal(t, at(2021, 1, 5, 8), s.First)
	assert.Equal(t, at(2021, 2, 11, 13), s.Last)
	assert.Len(t, s.Hourly, 24)
	assert.Len(t, s.Roles, 6)
	assert.Len(t, s.Geo, 2)
	assert.Len(t, s.SeveritySample, 2)
	assert.Equal(t, "Driver Inattention", s.TopFactors[0].Category)
	assert.Equal(t, "Sedan", s.TopVehicles[0].Category)
	assert.Len(t, s.Severity, 3)
	assert.Equal(t, 2, s.Severity[1].Count+s.Severity[2].Count)

	s, err = Summarize(NewDataset(fixture()), Options{TopN: 1, SampleSize: 1, SampleSeed: 1})
	require.NoError(t, err)
	assert.Len(t, s.TopFactors, 1)
	assert.Len(t, s.SeveritySample, 1)
}
