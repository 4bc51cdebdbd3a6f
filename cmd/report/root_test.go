package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/SghaierFiras/armada-analytics-hub-sub001/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type fakeOrders struct {
	docs []any
}

func (f *fakeOrders) Aggregate(context.Context, any, ...options.Lister[options.AggregateOptions]) (*mongo.Cursor, error) {
	return mongo.NewCursorFromDocuments(f.docs, nil, bson.NewRegistry())
}

type recorder struct {
	cfg    mongoConfig
	closed bool
}

func (r *recorder) connect(orders *fakeOrders) connectFunc {
	return func(_ context.Context, cfg mongoConfig) (report.Aggregator, func(), error) {
		r.cfg = cfg
		return orders, func() { r.closed = true }, nil
	}
}

func execute(t *testing.T, connect connectFunc, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"MONGO_URI", "MONGO_DATABASE", "MONGO_COLLECTION", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	root := newRootCmd(connect)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestMerchantsCommand(t *testing.T) {
	rec := &recorder{}
	orders := &fakeOrders{docs: []any{
		bson.D{{Key: "merchantId", Value: "m1"}, {Key: "merchantName", Value: "Acme Grill"}, {Key: "orders", Value: int32(3)}, {Key: "revenue", Value: 90.0}},
	}}

	out, err := execute(t, rec.connect(orders), "merchants", "--limit", "3", "--database", "analytics")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme Grill")
	assert.Equal(t, "analytics", rec.cfg.Database)
	assert.Equal(t, "orders", rec.cfg.Collection)
	assert.Equal(t, "mongodb://localhost:27017", rec.cfg.URI)
	assert.True(t, rec.closed)
}

func TestEnvironmentConfig(t *testing.T) {
	rec := &recorder{}
	for _, key := range []string{"MONGO_DATABASE", "MONGO_COLLECTION", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	t.Setenv("MONGO_URI", "mongodb://db.internal:27017")

	root := newRootCmd(rec.connect(&fakeOrders{}))
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"hourly"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "mongodb://db.internal:27017", rec.cfg.URI)
}

func TestHourlyCommand(t *testing.T) {
	rec := &recorder{}
	orders := &fakeOrders{docs: []any{
		bson.D{{Key: "hour", Value: int32(13)}, {Key: "orders", Value: int32(5)}, {Key: "revenue", Value: 50.0}},
	}}

	out, err := execute(t, rec.connect(orders), "hourly", "--tz", "Asia/Kuwait")
	require.NoError(t, err)
	assert.Contains(t, out, "13:00")
	assert.Contains(t, out, "afternoon")
}

func TestSeasonalityCommand(t *testing.T) {
	rec := &recorder{}
	orders := &fakeOrders{docs: []any{
		bson.D{{Key: "year", Value: int32(2026)}, {Key: "part", Value: int32(1)}, {Key: "orders", Value: int32(5)}, {Key: "revenue", Value: 50.0}},
	}}

	out, err := execute(t, rec.connect(orders), "seasonality", "--granularity", "quarterly")
	require.NoError(t, err)
	assert.Contains(t, out, "2026-Q1")

	_, err = execute(t, rec.connect(orders), "seasonality", "--granularity", "weekly")
	assert.Error(t, err)
}

func TestWindowFlags(t *testing.T) {
	rec := &recorder{}

	_, err := execute(t, rec.connect(&fakeOrders{}), "merchants", "--from", "2026-13-01")
	assert.ErrorContains(t, err, "--from")

	_, err = execute(t, rec.connect(&fakeOrders{}), "merchants", "--from", "2026-06-01", "--to", "2026-01-01")
	assert.ErrorContains(t, err, "before")

	_, err = execute(t, rec.connect(&fakeOrders{}), "merchants", "--from", "2026-01-01", "--to", "2026-06-01")
	assert.NoError(t, err)
}

func TestConnectFailure(t *testing.T) {
	failing := func(context.Context, mongoConfig) (report.Aggregator, func(), error) {
		return nil, nil, errors.New("no reachable servers")
	}
	_, err := execute(t, failing, "merchants")
	assert.ErrorContains(t, err, "no reachable servers")
}

func TestFailedReportClosesConnection(t *testing.T) {
	for _, key := range []string{"MONGO_URI", "MONGO_DATABASE", "MONGO_COLLECTION", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	tests := map[string][]string{
		"bad granularity": {"seasonality", "--granularity", "weekly"},
		"bad window":      {"merchants", "--from", "yesterday"},
		"bad zone":        {"hourly", "--tz", "Mars/Olympus"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			rec := &recorder{}
			root := newRootCmd(rec.connect(&fakeOrders{}))
			var out, logs bytes.Buffer
			root.SetOut(&out)
			root.SetErr(&logs)
			root.SetArgs(args)

			require.Error(t, root.Execute())
			assert.True(t, rec.closed, "connection is closed")
			assert.Contains(t, logs.String(), `"level":"ERROR"`)
			assert.Contains(t, logs.String(), args[0]+" report failed")
		})
	}
}
