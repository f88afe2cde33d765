package enrich

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/road-distance-cli/internal/facility"
	"github.com/sells-group/road-distance-cli/internal/model"
	"github.com/sells-group/road-distance-cli/internal/resilience"
)

// --- Distance client mock ---

type mockDistanceClient struct {
	mock.Mock
}

func (m *mockDistanceClient) RoadDistance(ctx context.Context, origin, destination model.Coordinate) (float64, error) {
	args := m.Called(ctx, origin, destination)
	return args.Get(0).(float64), args.Error(1)
}

// funcClient adapts a function to DistanceClient and records call order.
type funcClient struct {
	mu    sync.Mutex
	calls []model.Coordinate
	fn    func(origin, destination model.Coordinate) (float64, error)
}

func (f *funcClient) RoadDistance(_ context.Context, origin, destination model.Coordinate) (float64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, origin, destination)
	f.mu.Unlock()
	return f.fn(origin, destination)
}

// deterministicDistance derives a stable fake distance from both endpoints.
func deterministicDistance(origin, destination model.Coordinate) (float64, error) {
	return (origin.Lat-destination.Lat)*100 + (origin.Lon - destination.Lon), nil
}

type countingProgress struct {
	n atomic.Int64
}

func (p *countingProgress) Add(n int) error {
	p.n.Add(int64(n))
	return nil
}

var cityOnly = []model.ReferenceLocation{{Name: "city", Latitude: 51.528, Longitude: -0.1025}}

const facilitiesCSV = `code,name,latitude,longitude
RDE,Royal Devon and Exeter,50.7166,-3.5064
RLH,Royal London,51.5187,-0.0597
UHC,University Hospital Coventry,52.4213,-1.4390
JRH,John Radcliffe,51.7639,-1.2197
`

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ane_locations.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func fast(opts ...Option) []Option {
	return append([]Option{WithInterval(0), WithLogger(zap.NewNop())}, opts...)
}

func TestEnrich_SingleRowScenario(t *testing.T) {
	path := writeCSV(t, "latitude,longitude\n50.0,-3.0\n")

	client := &mockDistanceClient{}
	client.On("RoadDistance", mock.Anything,
		model.Coordinate{Lat: 51.528, Lon: -0.1025},
		model.Coordinate{Lat: 50, Lon: -3},
	).Return(42.5, nil).Once()

	tbl, err := New(client, cityOnly, path, fast()...).Enrich(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"latitude", "longitude", "road_distance_city"}, tbl.Header())
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, "42.5", tbl.Row(0)[2])
	client.AssertExpectations(t)
}

func TestEnrich_ShapeAndOrder(t *testing.T) {
	path := writeCSV(t, facilitiesCSV)
	refs := model.DefaultReferenceLocations()
	client := &funcClient{fn: deterministicDistance}

	tbl, err := New(client, refs, path, fast()...).Enrich(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, tbl.Len())
	assert.Equal(t, 4+len(refs), tbl.Width())
	assert.Equal(t, []string{
		"code", "name", "latitude", "longitude",
		"road_distance_city", "road_distance_exeter", "road_distance_warick",
	}, tbl.Header())

	codes := make([]string, 0, tbl.Len())
	for i := 0; i < tbl.Len(); i++ {
		codes = append(codes, tbl.Row(i)[0])
	}
	assert.Equal(t, []string{"RDE", "RLH", "UHC", "JRH"}, codes)

	// Sequential lookups run reference-major, rows in order.
	require.Len(t, client.calls, 2*len(refs)*4)
	assert.Equal(t, refs[0].Coordinate(), client.calls[0])
	assert.Equal(t, model.Coordinate{Lat: 50.7166, Lon: -3.5064}, client.calls[1])
	assert.Equal(t, refs[0].Coordinate(), client.calls[6])
	assert.Equal(t, model.Coordinate{Lat: 51.7639, Lon: -1.2197}, client.calls[7])
	assert.Equal(t, refs[1].Coordinate(), client.calls[8])
	assert.Equal(t, model.Coordinate{Lat: 50.7166, Lon: -3.5064}, client.calls[9])
}

func TestEnrich_Idempotent(t *testing.T) {
	path := writeCSV(t, facilitiesCSV)
	refs := model.DefaultReferenceLocations()

	render := func() string {
		tbl, err := New(&funcClient{fn: deterministicDistance}, refs, path, fast()...).Enrich(context.Background())
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, tbl.WriteCSV(&buf))
		return buf.String()
	}

	assert.Equal(t, render(), render())
}

func TestEnrich_WorkersMatchSequential(t *testing.T) {
	path := writeCSV(t, facilitiesCSV)
	refs := model.DefaultReferenceLocations()

	run := func(workers int) string {
		tbl, err := New(&funcClient{fn: deterministicDistance}, refs, path, fast(WithWorkers(workers))...).Enrich(context.Background())
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, tbl.WriteCSV(&buf))
		return buf.String()
	}

	sequential := run(1)
	assert.Equal(t, sequential, run(3))
	assert.Equal(t, sequential, run(50))
}

func TestEnrich_TransportErrorAborts(t *testing.T) {
	path := writeCSV(t, facilitiesCSV)
	transportErr := errors.New("dial tcp: connection refused")

	client := &mockDistanceClient{}
	client.On("RoadDistance", mock.Anything, mock.Anything, mock.Anything).Return(0.0, transportErr).Once()

	tbl, err := New(client, cityOnly, path, fast()...).Enrich(context.Background())
	require.Error(t, err)
	assert.Nil(t, tbl)
	assert.True(t, errors.Is(err, transportErr))
	assert.Contains(t, err.Error(), "city to row 1")
	client.AssertNumberOfCalls(t, "RoadDistance", 1)
}

func TestEnrichTable_ErrorLeavesTableUnchanged(t *testing.T) {
	tbl, err := facility.Read(strings.NewReader(facilitiesCSV))
	require.NoError(t, err)

	calls := 0
	client := &funcClient{fn: func(_, _ model.Coordinate) (float64, error) {
		calls++
		if calls == 3 {
			return 0, errors.New("connection reset")
		}
		return 10, nil
	}}

	err = New(client, cityOnly, "", fast()...).EnrichTable(context.Background(), tbl)
	require.Error(t, err)
	assert.Equal(t, 4, tbl.Width())
}

func TestEnrich_MissingSentinelBecomesEmptyCell(t *testing.T) {
	path := writeCSV(t, facilitiesCSV)
	client := &funcClient{fn: func(_, destination model.Coordinate) (float64, error) {
		if destination.Lat > 52 {
			return model.MissingDistance(), nil
		}
		return 100, nil
	}}

	tbl, err := New(client, cityOnly, path, fast()...).Enrich(context.Background())
	require.NoError(t, err)

	col := tbl.ColumnIndex("road_distance_city")
	require.GreaterOrEqual(t, col, 0)
	assert.Equal(t, "100", tbl.Row(0)[col])
	assert.Equal(t, "", tbl.Row(2)[col])
	assert.Equal(t, "100", tbl.Row(3)[col])
}

func TestEnrich_MissingCoordinateColumns(t *testing.T) {
	path := writeCSV(t, "code,name\nRDE,Royal Devon\n")
	client := &mockDistanceClient{}

	_, err := New(client, cityOnly, path, fast()...).Enrich(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, facility.ErrMissingColumn))
	client.AssertNotCalled(t, "RoadDistance", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnrich_MissingInputFile(t *testing.T) {
	_, err := New(&mockDistanceClient{}, cityOnly, filepath.Join(t.TempDir(), "missing.csv"), fast()...).Enrich(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load facilities")
}

func TestEnrich_EmptyTable(t *testing.T) {
	path := writeCSV(t, "latitude,longitude\n")
	client := &mockDistanceClient{}

	tbl, err := New(client, model.DefaultReferenceLocations(), path, fast()...).Enrich(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
	assert.Equal(t, 5, tbl.Width())
	client.AssertNotCalled(t, "RoadDistance", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnrich_ReplacesExistingDistanceColumn(t *testing.T) {
	path := writeCSV(t, "latitude,longitude,road_distance_city\n50,-3,stale\n")
	client := &funcClient{fn: func(_, _ model.Coordinate) (float64, error) { return 7, nil }}

	tbl, err := New(client, cityOnly, path, fast()...).Enrich(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"latitude", "longitude", "road_distance_city"}, tbl.Header())
	assert.Equal(t, "7", tbl.Row(0)[2])
}

func TestEnrich_ThrottleSpacesRequests(t *testing.T) {
	path := writeCSV(t, facilitiesCSV)
	interval := 25 * time.Millisecond

	var mu sync.Mutex
	var stamps []time.Time
	client := &funcClient{fn: func(_, _ model.Coordinate) (float64, error) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		return 1, nil
	}}

	_, err := New(client, cityOnly, path, WithInterval(interval), WithLogger(zap.NewNop())).Enrich(context.Background())
	require.NoError(t, err)

	require.Len(t, stamps, 4)
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		assert.GreaterOrEqual(t, gap, interval-5*time.Millisecond, "gap %d was %v", i, gap)
	}
}

func TestEnrich_RetriesTransientFailures(t *testing.T) {
	path := writeCSV(t, "latitude,longitude\n50,-3\n")

	calls := 0
	client := &funcClient{fn: func(_, _ model.Coordinate) (float64, error) {
		calls++
		if calls == 1 {
			return 0, resilience.NewTransientError(errors.New("service unavailable"), 503)
		}
		return 42.5, nil
	}}

	policy := resilience.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	tbl, err := New(client, cityOnly, path, fast(WithRetryPolicy(policy))...).Enrich(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "42.5", tbl.Row(0)[2])
}

func TestEnrich_NoRetryByDefault(t *testing.T) {
	path := writeCSV(t, "latitude,longitude\n50,-3\n")

	calls := 0
	client := &funcClient{fn: func(_, _ model.Coordinate) (float64, error) {
		calls++
		return 0, resilience.NewTransientError(errors.New("service unavailable"), 503)
	}}

	_, err := New(client, cityOnly, path, fast()...).Enrich(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestEnrich_ContextCancelled(t *testing.T) {
	path := writeCSV(t, facilitiesCSV)
	ctx, cancel := context.WithCancel(context.Background())

	client := &funcClient{fn: func(_, _ model.Coordinate) (float64, error) {
		cancel()
		return 1, nil
	}}

	_, err := New(client, cityOnly, path, WithInterval(time.Hour), WithLogger(zap.NewNop())).Enrich(ctx)
	require.Error(t, err)
	assert.Len(t, client.calls, 2, "only the first lookup should run")
}

func TestEnrich_ReportsProgress(t *testing.T) {
	path := writeCSV(t, facilitiesCSV)
	progress := &countingProgress{}

	_, err := New(&funcClient{fn: deterministicDistance}, model.DefaultReferenceLocations(), path,
		fast(WithProgress(progress), WithWorkers(2))...).Enrich(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), progress.n.Load())
}

func TestEnrich_LogsPerReferenceAndSummary(t *testing.T) {
	path := writeCSV(t, facilitiesCSV)
	core, logs := observer.New(zapcore.InfoLevel)

	client := &funcClient{fn: func(_, destination model.Coordinate) (float64, error) {
		if destination.Lat > 52 {
			return model.MissingDistance(), nil
		}
		return 1, nil
	}}

	_, err := New(client, model.DefaultReferenceLocations(), path, WithInterval(0), WithLogger(zap.New(core))).Enrich(context.Background())
	require.NoError(t, err)

	perRef := logs.FilterMessage("getting road distances").All()
	require.Len(t, perRef, 3)
	assert.Equal(t, "city", perRef[0].ContextMap()["reference"])
	assert.Equal(t, "warick", perRef[2].ContextMap()["reference"])

	summary := logs.FilterMessage("road distances complete").All()
	require.Len(t, summary, 1)
	assert.Equal(t, int64(3), summary[0].ContextMap()["missing"])
	assert.Equal(t, int64(12), summary[0].ContextMap()["lookups"])
}
