package report

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Order document fields.
const (
	fieldStatus       = "status"
	fieldCreatedAt    = "createdAt"
	fieldDeliveredAt  = "deliveredAt"
	fieldTotal        = "total"
	fieldMerchantID   = "merchantId"
	fieldMerchantName = "merchantName"

	statusDelivered = "delivered"
)

func matchWindow(w Window, extra bson.D) bson.D {
	created := bson.D{}
	if !w.From.IsZero() {
		created = append(created, bson.E{Key: "$gte", Value: w.From})
	}
	if !w.To.IsZero() {
		created = append(created, bson.E{Key: "$lt", Value: w.To})
	}
	match := append(bson.D{}, extra...)
	if len(created) > 0 {
		match = append(match, bson.E{Key: fieldCreatedAt, Value: created})
	}
	return bson.D{{Key: "$match", Value: match}}
}

func deliveredOnly() bson.D {
	return bson.D{{Key: fieldStatus, Value: statusDelivered}}
}

// MerchantPerformancePipeline groups delivered orders by merchant, ranked
// by revenue.
func MerchantPerformancePipeline(w Window, limit int) bson.A {
	pipeline := bson.A{
		matchWindow(w, bson.D{{Key: fieldStatus, Value: statusDelivered}}),
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + fieldMerchantID},
			{Key: "merchantName", Value: bson.D{{Key: "$first", Value: "$" + fieldMerchantName}}},
			{Key: "orders", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "revenue", Value: bson.D{{Key: "$sum", Value: "$" + fieldTotal}}},
			{Key: "avgDeliveryMs", Value: bson.D{{Key: "$avg", Value: bson.D{
				{Key: "$subtract", Value: bson.A{"$" + fieldDeliveredAt, "$" + fieldCreatedAt}},
			}}}},
		}}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "merchantId", Value: "$_id"},
			{Key: "merchantName", Value: 1},
			{Key: "orders", Value: 1},
			{Key: "revenue", Value: 1},
			{Key: "avgOrderValue", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$gt", Value: bson.A{"$orders", 0}}},
				bson.D{{Key: "$divide", Value: bson.A{"$revenue", "$orders"}}},
				0,
			}}}},
			{Key: "avgDeliveryMinutes", Value: bson.D{{Key: "$ifNull", Value: bson.A{
				bson.D{{Key: "$divide", Value: bson.A{"$avgDeliveryMs", 60000}}},
				0,
			}}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "revenue", Value: -1}, {Key: "merchantId", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	return pipeline
}

// OrdersByHourPipeline counts delivered orders by hour of day in the given IANA zone.
func OrdersByHourPipeline(w Window, tz string) bson.A {
	if tz == "" {
		tz = "UTC"
	}
	return bson.A{
		matchWindow(w, deliveredOnly()),
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$hour", Value: bson.D{
				{Key: "date", Value: "$" + fieldCreatedAt},
				{Key: "timezone", Value: tz},
			}}}},
			{Key: "orders", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "revenue", Value: bson.D{{Key: "$sum", Value: "$" + fieldTotal}}},
		}}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "hour", Value: "$_id"},
			{Key: "orders", Value: 1},
			{Key: "revenue", Value: 1},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "hour", Value: 1}}}},
	}
}

// SeasonalityPipeline totals delivered orders per calendar month or quarter.
func SeasonalityPipeline(w Window, g Granularity) bson.A {
	part := bson.D{{Key: "$month", Value: "$" + fieldCreatedAt}}
	if g == Quarterly {
		part = bson.D{{Key: "$toInt", Value: bson.D{{Key: "$ceil", Value: bson.D{
			{Key: "$divide", Value: bson.A{bson.D{{Key: "$month", Value: "$" + fieldCreatedAt}}, 3}},
		}}}}}
	}
	return bson.A{
		matchWindow(w, deliveredOnly()),
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "year", Value: bson.D{{Key: "$year", Value: "$" + fieldCreatedAt}}},
				{Key: "part", Value: part},
			}},
			{Key: "orders", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "revenue", Value: bson.D{{Key: "$sum", Value: "$" + fieldTotal}}},
		}}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "year", Value: "$_id.year"},
			{Key: "part", Value: "$_id.part"},
			{Key: "orders", Value: 1},
			{Key: "revenue", Value: 1},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "year", Value: 1}, {Key: "part", Value: 1}}}},
	}
}
