package ingest

import (
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/collision.report/internal/collision"
	"github.com/banshee-data/collision.report/internal/fsutil"
	"github.com/banshee-data/collision.report/internal/monitoring"
)

const header = "CRASH DATE,CRASH TIME,BOROUGH,ZIP CODE,LATITUDE,LONGITUDE,LOCATION," +
	"ON STREET NAME,CROSS STREET NAME,OFF STREET NAME," +
	"NUMBER OF PERSONS INJURED,NUMBER OF PERSONS KILLED," +
	"NUMBER OF PEDESTRIANS INJURED,NUMBER OF PEDESTRIANS KILLED," +
	"NUMBER OF CYCLIST INJURED,NUMBER OF CYCLIST KILLED," +
	"NUMBER OF MOTORIST INJURED,NUMBER OF MOTORIST KILLED," +
	"CONTRIBUTING FACTOR VEHICLE 1,CONTRIBUTING FACTOR VEHICLE 2,CONTRIBUTING FACTOR VEHICLE 3," +
	"CONTRIBUTING FACTOR VEHICLE 4,CONTRIBUTING FACTOR VEHICLE 5," +
	"COLLISION_ID,VEHICLE TYPE CODE 1,VEHICLE TYPE CODE 2,VEHICLE TYPE CODE 3," +
	"VEHICLE TYPE CODE 4,VEHICLE TYPE CODE 5\n"

const sample = header +
	`09/11/2021,2:39,,,,,,WHITESTONE EXPRESSWAY,20 AVENUE,,2,0,0,0,0,0,2,0,Aggressive Driving/Road Rage,Unspecified,,,,4455765,Sedan,Sedan,,,` + "\n" +
	`03/26/2022,11:45,,,,,,QUEENSBORO BRIDGE UPPER,,,1,0,0,0,0,0,1,0,Pavement Slippery,,,,,4513547,Sedan,,,,` + "\n" +
	`12/14/2021,8:17,BROOKLYN,11233,40.68358,-73.97617,"(40.68358, -73.97617)",,,1211      LORING AVENUE,0,0,0,0,0,0,0,0,Unspecified,,,,,4486660,Sedan,,,,` + "\n" +
	`12/14/2021,21:10,Queens,11434,0.0,0.0,"(0.0, 0.0)",,,,,1,0,0,0,0,0,1,Driver Inattention/Distraction,,,,,4487040,Taxi,,,,` + "\n"

func TestRead(t *testing.T) {
	res, err := Read(context.Background(), strings.NewReader(sample), Options{Location: time.UTC})
	require.NoError(t, err)
	require.Len(t, res.Records, 4)
	assert.Equal(t, 4, res.Rows)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, 0, res.UnknownBoroughs)

	first := res.Records[0]
	assert.Equal(t, int64(4455765), first.ID)
	assert.Equal(t, time.Date(2021, 9, 11, 2, 39, 0, 0, time.UTC), first.OccurredAt)
	assert.Equal(t, collision.BoroughNone, first.Borough)
	assert.Nil(t, first.Latitude)
	assert.Equal(t, "WHITESTONE EXPRESSWAY", first.OnStreet)
	assert.Equal(t, 2, first.Casualties.PersonsInjured)
	assert.Equal(t, 2, first.Casualties.MotoristsInjured)
	assert.Equal(t, [5]string{"Aggressive Driving/Road Rage", "Unspecified"}, first.ContributingFactors)
	assert.Equal(t, [5]string{"Sedan", "Sedan"}, first.VehicleTypes)
	assert.Zero(t, first.Blank)

	third := res.Records[2]
	assert.Equal(t, collision.BoroughBrooklyn, third.Borough)
	require.NotNil(t, third.Latitude)
	assert.InDelta(t, 40.68358, *third.Latitude, 1e-9)
	assert.InDelta(t, -73.97617, *third.Longitude, 1e-9)
	assert.True(t, third.HasCoordinates())
	assert.Equal(t, "1211      LORING AVENUE", third.OffStreet)

	fourth := res.Records[3]
	assert.Equal(t, collision.BoroughQueens, fourth.Borough)
	assert.False(t, fourth.HasCoordinates())
	assert.True(t, fourth.Blank.Has(collision.FieldPersonsInjured))
	assert.Equal(t, 0, fourth.Casualties.PersonsInjured)
	assert.Equal(t, 1, fourth.Casualties.PersonsKilled)
	assert.Equal(t, collision.SeverityFatal, fourth.Severity())
}

func TestReadTimezone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	res, err := Read(context.Background(), strings.NewReader(sample), Options{Location: ny})
	require.NoError(t, err)
	assert.Equal(t, ny, res.Records[0].OccurredAt.Location())
	assert.Equal(t, 2, res.Records[0].OccurredAt.Hour())
}

func TestReadKeepsRecordedHourInDSTGap(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	in := "COLLISION_ID,CRASH DATE,CRASH TIME\n1,03/13/2022,2:30\n"
	res, err := Read(context.Background(), strings.NewReader(in), Options{Location: ny})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	r := res.Records[0]
	assert.Equal(t, time.Date(2022, 3, 13, 2, 30, 0, 0, time.UTC), r.WallClock)
	assert.Equal(t, 2, r.Wall().Hour())
	assert.Equal(t, ny, r.OccurredAt.Location())
}

func TestReadColumnOrderAndExtras(t *testing.T) {
	in := "EXTRA,COLLISION_ID,CRASH TIME,CRASH DATE,BOROUGH\n" +
		"x,7,23:59,2022-01-31T00:00:00.000,staten island\n"
	res, err := Read(context.Background(), strings.NewReader(in), Options{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	r := res.Records[0]
	assert.Equal(t, int64(7), r.ID)
	assert.Equal(t, time.Date(2022, 1, 31, 23, 59, 0, 0, time.UTC), r.OccurredAt)
	assert.Equal(t, collision.BoroughStatenIsland, r.Borough)
	// absent count columns read as missing
	assert.True(t, r.Blank.Has(collision.FieldPersonsKilled))
}

func TestReadUnknownBorough(t *testing.T) {
	in := "CRASH DATE,CRASH TIME,BOROUGH\n01/01/2021,1:00,Kings County\n"
	res, err := Read(context.Background(), strings.NewReader(in), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.UnknownBoroughs)
	assert.Equal(t, collision.Borough("KINGS COUNTY"), res.Records[0].Borough)
}

func TestReadUnparseableTimestamp(t *testing.T) {
	in := "CRASH DATE,CRASH TIME,COLLISION_ID\n" +
		"01/01/2021,1:00,1\n" +
		"not a date,1:00,2\n" +
		"01/02/2021,,3\n"

	_, err := Read(context.Background(), strings.NewReader(in), Options{})
	var tpe *collision.TimestampParseError
	require.True(t, errors.As(err, &tpe), "got %v", err)
	assert.Equal(t, 3, tpe.Line)
	assert.Equal(t, int64(2), tpe.RecordID)

	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) { logged = append(logged, format) })
	defer monitoring.SetLogger(log.Printf)

	res, err := Read(context.Background(), strings.NewReader(in), Options{SkipUnparseable: true})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)
	require.Len(t, res.Records, 1)
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, int64(3), res.Skipped[1].RecordID)
	assert.Equal(t, 4, res.Skipped[1].Line)
	assert.NotEmpty(t, logged)
}

func TestReadBadCounts(t *testing.T) {
	in := "CRASH DATE,CRASH TIME,NUMBER OF PERSONS INJURED,NUMBER OF PERSONS KILLED,NUMBER OF CYCLIST INJURED,LATITUDE\n" +
		"01/01/2021,1:00,-1,2.0,abc,north\n"
	res, err := Read(context.Background(), strings.NewReader(in), Options{})
	require.NoError(t, err)
	r := res.Records[0]
	assert.True(t, r.Blank.Has(collision.FieldPersonsInjured))
	assert.Equal(t, 0, r.Casualties.PersonsInjured)
	assert.Equal(t, 2, r.Casualties.PersonsKilled)
	assert.True(t, r.Blank.Has(collision.FieldCyclistsInjured))
	assert.Nil(t, r.Latitude)
}

func TestReadMissingColumn(t *testing.T) {
	_, err := Read(context.Background(), strings.NewReader("CRASH DATE,BOROUGH\n"), Options{})
	assert.True(t, errors.Is(err, ErrMissingColumn), "got %v", err)

	_, err = Read(context.Background(), strings.NewReader(""), Options{})
	assert.True(t, errors.Is(err, ErrMissingColumn), "got %v", err)
}

func TestReadByteOrderMark(t *testing.T) {
	in := "\ufeffCRASH DATE,CRASH TIME\n01/01/2021,1:00\n"
	res, err := Read(context.Background(), strings.NewReader(in), Options{})
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)
}

func TestReadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Read(ctx, strings.NewReader(sample), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadFile(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("/data/collisions.csv", []byte(sample), 0o644))

	res, err := ReadFile(context.Background(), fsys, "/data/collisions.csv", Options{})
	require.NoError(t, err)
	assert.Len(t, res.Records, 4)

	_, err = ReadFile(context.Background(), fsys, "/data/missing.csv", Options{})
	assert.Error(t, err)
}
