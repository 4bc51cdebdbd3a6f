// Package report runs the dashboard's order analytics as MongoDB
// aggregations.
package report

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Window bounds orders by creation time, [From, To). A zero bound is open.
type Window struct {
	From time.Time
	To   time.Time
}

type Granularity int

const (
	Monthly Granularity = iota
	Quarterly
)

func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "monthly", "month", "":
		return Monthly, nil
	case "quarterly", "quarter":
		return Quarterly, nil
	default:
		return 0, fmt.Errorf("unknown granularity %q (want monthly or quarterly)", s)
	}
}

type MerchantStat struct {
	MerchantID         string  `bson:"merchantId"`
	MerchantName       string  `bson:"merchantName"`
	Orders             int64   `bson:"orders"`
	Revenue            float64 `bson:"revenue"`
	AvgOrderValue      float64 `bson:"avgOrderValue"`
	AvgDeliveryMinutes float64 `bson:"avgDeliveryMinutes"`
}

type HourStat struct {
	Hour    int     `bson:"hour"`
	DayPart string  `bson:"-"`
	Orders  int64   `bson:"orders"`
	Revenue float64 `bson:"revenue"`
}

type PeriodStat struct {
	Year    int     `bson:"year"`
	Part    int     `bson:"part"` // month 1-12 or quarter 1-4
	Label   string  `bson:"-"`
	Orders  int64   `bson:"orders"`
	Revenue float64 `bson:"revenue"`
	// Growth is the revenue change against the previous period, in percent.
	// Nil for the first period and after a zero-revenue period.
	Growth *float64 `bson:"-"`
}

// Aggregator is the part of *mongo.Collection the runner needs.
type Aggregator interface {
	Aggregate(ctx context.Context, pipeline any, opts ...options.Lister[options.AggregateOptions]) (*mongo.Cursor, error)
}

type Runner struct {
	orders Aggregator
}

func NewRunner(orders Aggregator) *Runner {
	return &Runner{orders: orders}
}

func (r *Runner) MerchantPerformance(ctx context.Context, w Window, limit int) ([]MerchantStat, error) {
	var stats []MerchantStat
	if err := r.run(ctx, MerchantPerformancePipeline(w, limit), &stats); err != nil {
		return nil, fmt.Errorf("merchant performance: %w", err)
	}
	return stats, nil
}

// OrdersByHour returns all 24 hours, zero-filled, each with its day part.
func (r *Runner) OrdersByHour(ctx context.Context, w Window, tz string) ([]HourStat, error) {
	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("orders by hour: invalid timezone: %w", err)
		}
	}
	var rows []HourStat
	if err := r.run(ctx, OrdersByHourPipeline(w, tz), &rows); err != nil {
		return nil, fmt.Errorf("orders by hour: %w", err)
	}

	stats := make([]HourStat, 24)
	for h := range stats {
		stats[h] = HourStat{Hour: h}
	}
	for _, row := range rows {
		if row.Hour < 0 || row.Hour > 23 {
			continue
		}
		stats[row.Hour].Orders = row.Orders
		stats[row.Hour].Revenue = row.Revenue
	}
	for h := range stats {
		stats[h].DayPart = DayPart(h)
	}
	return stats, nil
}

func (r *Runner) Seasonality(ctx context.Context, w Window, g Granularity) ([]PeriodStat, error) {
	var rows []PeriodStat
	if err := r.run(ctx, SeasonalityPipeline(w, g), &rows); err != nil {
		return nil, fmt.Errorf("seasonality: %w", err)
	}
	stats := fillPeriods(rows, g)
	for i := range stats {
		stats[i].Label = periodLabel(stats[i], g)
		if i > 0 && stats[i-1].Revenue != 0 {
			growth := (stats[i].Revenue - stats[i-1].Revenue) / stats[i-1].Revenue * 100
			stats[i].Growth = &growth
		}
	}
	return stats, nil
}

// fillPeriods returns every period between the first and last row, with
// zero rows for periods that had no orders.
func fillPeriods(rows []PeriodStat, g Granularity) []PeriodStat {
	perYear := 12
	if g == Quarterly {
		perYear = 4
	}
	index := func(p PeriodStat) int { return p.Year*perYear + p.Part - 1 }

	byIndex := make(map[int]PeriodStat, len(rows))
	var first, last int
	for _, row := range rows {
		if row.Part < 1 || row.Part > perYear {
			continue
		}
		i := index(row)
		if len(byIndex) == 0 || i < first {
			first = i
		}
		if len(byIndex) == 0 || i > last {
			last = i
		}
		byIndex[i] = row
	}
	if len(byIndex) == 0 {
		return nil
	}

	stats := make([]PeriodStat, 0, last-first+1)
	for i := first; i <= last; i++ {
		row, ok := byIndex[i]
		if !ok {
			row = PeriodStat{Year: i / perYear, Part: i%perYear + 1}
		}
		stats = append(stats, row)
	}
	return stats
}

func (r *Runner) run(ctx context.Context, pipeline any, out any) error {
	cursor, err := r.orders.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	return cursor.All(ctx, out)
}

// DayPart names the part of the day an hour falls in.
func DayPart(hour int) string {
	switch {
	case hour < 6:
		return "night"
	case hour < 12:
		return "morning"
	case hour < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

func periodLabel(p PeriodStat, g Granularity) string {
	if g == Quarterly {
		return fmt.Sprintf("%d-Q%d", p.Year, p.Part)
	}
	return fmt.Sprintf("%d-%02d", p.Year, p.Part)
}
