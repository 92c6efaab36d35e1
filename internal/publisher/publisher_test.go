package publisher

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/pulse.report/internal/ppg"
	"github.com/banshee-data/pulse.report/internal/testutil"
)

func startBufconn(t *testing.T, cfg Config) (*Publisher, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	p := NewPublisher(cfg)
	require.NoError(t, p.Serve(lis))
	t.Cleanup(p.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { cc.Close() })
	return p, cc
}

func TestResultStructRoundTrip(t *testing.T) {
	in := ppg.Result{
		Timestamp:      3100,
		FingerDetected: true,
		HeartRate:      72,
		RawRate:        74,
		SDNN:           31,
		RMSSD:          40,
		HREffective:    0.9,
		HRVEffective:   0.5,
		Intervals:      []ppg.Interval{800, 820, 810},
		HasVariability: true,
	}
	got := StructToResult(ResultToStruct(in))
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, ppg.Result{}, StructToResult(&structpb.Struct{}))
	assert.Equal(t, ppg.Result{}, StructToResult(nil))
}

func TestSubscribeReceivesResults(t *testing.T) {
	p, cc := startBufconn(t, DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	recv, err := Subscribe(ctx, cc)
	require.NoError(t, err)

	testutil.Eventually(t, 2*time.Second, func() bool { return p.Stats().ClientCount == 1 })

	p.OnResult(ppg.Result{Timestamp: 1000, FingerDetected: true, HeartRate: 61})
	p.OnResult(ppg.Result{Timestamp: 1100, FingerDetected: true, HeartRate: 62, Intervals: []ppg.Interval{950, 970}})

	first, err := recv()
	require.NoError(t, err)
	assert.Equal(t, 61, first.HeartRate)

	second, err := recv()
	require.NoError(t, err)
	assert.Equal(t, int64(1100), second.Timestamp)
	assert.Equal(t, []ppg.Interval{950, 970}, second.Intervals)

	stats := p.Stats()
	assert.Equal(t, uint64(2), stats.Published)
	assert.True(t, stats.Running)

	cancel()
	testutil.Eventually(t, 2*time.Second, func() bool { return p.Stats().ClientCount == 0 })
}

func TestStopEndsStreams(t *testing.T) {
	p, cc := startBufconn(t, DefaultConfig())

	recv, err := Subscribe(context.Background(), cc)
	require.NoError(t, err)
	testutil.Eventually(t, 2*time.Second, func() bool { return p.Stats().ClientCount == 1 })

	p.Stop()
	_, err = recv()
	assert.Error(t, err)
	assert.False(t, p.Stats().Running)

	// Results after stop are ignored.
	p.OnResult(ppg.Result{HeartRate: 60})
	assert.Equal(t, uint64(0), p.Stats().Published)
	p.Stop()
}

func TestMaxClients(t *testing.T) {
	p, cc := startBufconn(t, Config{MaxClients: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := Subscribe(ctx, cc)
	require.NoError(t, err)
	testutil.Eventually(t, 2*time.Second, func() bool { return p.Stats().ClientCount == 1 })

	recv, err := Subscribe(ctx, cc)
	require.NoError(t, err)
	_, err = recv()
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestDropWhenFull(t *testing.T) {
	p := NewPublisher(Config{ClientBuffer: 1})
	p.running.Store(true)
	c, err := p.addClient()
	require.NoError(t, err)

	p.OnResult(ppg.Result{HeartRate: 60})
	p.OnResult(ppg.Result{HeartRate: 61})
	p.OnResult(ppg.Result{HeartRate: 62})

	stats := p.Stats()
	assert.Equal(t, uint64(3), stats.Published)
	assert.Equal(t, uint64(2), stats.Dropped)
	assert.Equal(t, 60, StructToResult(<-c.resultCh).HeartRate, "oldest queued result kept")

	p.removeClient(c.id)
	p.removeClient(c.id)
	assert.Equal(t, int32(0), p.Stats().ClientCount)
}

func TestServeTwice(t *testing.T) {
	p, _ := startBufconn(t, DefaultConfig())
	assert.Error(t, p.Serve(bufconn.Listen(1024)))
}

func TestStartListensOnTCP(t *testing.T) {
	p := NewPublisher(Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, p.Start())
	defer p.Stop()
	assert.True(t, p.Stats().Running)

	bad := NewPublisher(Config{ListenAddr: "not-an-address"})
	assert.Error(t, bad.Start())
}

func TestPublisherIsListener(t *testing.T) {
	var _ ppg.ResultListener = NewPublisher(DefaultConfig())
	d := &ppg.Dispatcher{}
	require.NoError(t, d.Add(NewPublisher(DefaultConfig())))
}
