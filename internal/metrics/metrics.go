package metrics

import (
	"context"
	"fmt"

	"contrib.go.opencensus.io/exporter/stackdriver"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	CounterCacheHit         = stats.Int64("cache_hits", "Number of cache hits", "1")
	CounterCacheMiss        = stats.Int64("cache_misses", "Number of cache misses", "1")
	CounterUpstreamRequests = stats.Int64("upstream_requests", "Number of release listing requests sent upstream", "1")
	CounterUpdateChecks     = stats.Int64("update_checks", "Number of update checks answered", "1")

	TagCacheKey = tag.MustNewKey("cache_key")
	TagStatus   = tag.MustNewKey("status")
	TagPlatform = tag.MustNewKey("platform")
	TagOutcome  = tag.MustNewKey("outcome")
)

var views = []*view.View{
	{
		Name:        "cache_hits",
		Measure:     CounterCacheHit,
		Description: "Number of cache hits",
		Aggregation: view.Count(),
	},
	{
		Name:        "cache_misses",
		Measure:     CounterCacheMiss,
		Description: "Number of cache misses",
		Aggregation: view.Count(),
	},
	{
		Name:        "upstream_requests",
		Measure:     CounterUpstreamRequests,
		Description: "Number of release listing requests sent upstream",
		TagKeys:     []tag.Key{TagStatus},
		Aggregation: view.Count(),
	},
	{
		Name:        "update_checks",
		Measure:     CounterUpdateChecks,
		Description: "Number of update checks answered",
		TagKeys:     []tag.Key{TagPlatform, TagOutcome},
		Aggregation: view.Count(),
	},
}

// Record increments m with the given tags attached. Tagging errors only
// drop the tags.
func Record(ctx context.Context, m *stats.Int64Measure, mutators ...tag.Mutator) {
	if tagged, err := tag.New(ctx, mutators...); err == nil {
		ctx = tagged
	}
	stats.Record(ctx, m.M(1))
}

func RegisterViews() error {
	return view.Register(views...)
}

func NewExporter(projectID, stage string) (*stackdriver.Exporter, error) {
	err := RegisterViews()
	if err != nil {
		return nil, err
	}
	exporter, err := stackdriver.NewExporter(stackdriver.Options{
		ProjectID:    projectID,
		MetricPrefix: fmt.Sprintf("update-relay/%s", stage),
	})
	if err != nil {
		return nil, err
	}
	err = exporter.StartMetricsExporter()
	if err != nil {
		return nil, err
	}
	return exporter, nil
}
