// Command report prints the dashboard's order analytics from MongoDB.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/SghaierFiras/armada-analytics-hub-sub001/report"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	a := newApp(connectMongo)
	if err := a.command().Execute(); err != nil {
		if !a.logged {
			a.fail("report failed", err)
		}
		os.Exit(1)
	}
}

// connectMongo opens the orders collection and returns a func that
// disconnects the client.
func connectMongo(ctx context.Context, cfg mongoConfig) (report.Aggregator, func(), error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("pinging mongo: %w", err)
	}

	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Disconnect(ctx)
	}
	return client.Database(cfg.Database).Collection(cfg.Collection), closeFn, nil
}
