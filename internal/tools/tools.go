package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/fieldlab/sportsdesk/internal/arcgis"
	"github.com/fieldlab/sportsdesk/internal/dataset"
)

const (
	defaultRecordLimit = 20
	// maxRecordLimit is the hard ceiling for remote queries. Over-limit
	// requests are clamped, never rejected.
	maxRecordLimit = 100

	storesLayerLabel = "Retail Stores"
	eventsLayerLabel = "Sports Events Layer"
)

// Sources names the remote layers the tools query.
type Sources struct {
	StoresLayerURL string
	EventsLayerURL string
}

// NewRegistry builds the fixed six-tool registry over the remote feature
// layers and the local CSV datasets.
func NewRegistry(gis *arcgis.Client, loader *dataset.Loader, src Sources) *Registry {
	remoteQueryParams := []Param{
		{Name: "where_clause", Type: TypeString, Description: `SQL WHERE expression, e.g. "COUNTRY = 'US'" or "1=1" for all rows.`},
		{Name: "fields", Type: TypeString, Description: `Comma-separated field names to return, or "*" for all fields.`},
		{Name: "max_records", Type: TypeInteger, Description: "Maximum number of records to return (default 20, max 100)."},
	}

	return newRegistry(
		&Tool{
			Name:        "describe_retail_stores",
			Description: "Get the schema and metadata of the retail stores feature layer: field names, types, aliases, geometry type and record cap. Call this before querying stores to learn what fields exist.",
			Handler:     describeHandler(gis, src.StoresLayerURL, storesLayerLabel),
		},
		&Tool{
			Name:        "query_retail_stores",
			Description: "Query the retail stores feature layer with a SQL WHERE clause. Use describe_retail_stores first to see available fields.",
			Params:      remoteQueryParams,
			Handler:     queryHandler(gis, src.StoresLayerURL, storesLayerLabel, "No stores matched the query."),
		},
		&Tool{
			Name:        "describe_events_layer",
			Description: "Get the schema and metadata of the hosted sports events feature layer: field names, types, aliases, geometry type and record cap. Call this before querying the events layer.",
			Handler:     describeHandler(gis, src.EventsLayerURL, eventsLayerLabel),
		},
		&Tool{
			Name:        "query_events_layer",
			Description: "Query the hosted sports events feature layer with a SQL WHERE clause. Use describe_events_layer first to see available fields.",
			Params:      remoteQueryParams,
			Handler:     queryHandler(gis, src.EventsLayerURL, eventsLayerLabel, "No events matched the query."),
		},
		&Tool{
			Name:        "query_athletes",
			Description: "Search the local athletes dataset. Returns athlete name, sport, country, home city, coordinates (home_lat, home_lon), team/club and specialty.",
			Params: []Param{
				{Name: "filter_sport", Type: TypeString, Description: `Filter by sport name substring (e.g. "Soccer"). Empty = all sports.`},
				{Name: "filter_country", Type: TypeString, Description: `Filter by country name substring (e.g. "USA"). Empty = all countries.`},
				{Name: "max_results", Type: TypeInteger, Description: "Maximum athletes to return (default 20)."},
			},
			Handler: localQueryHandler(loader, dataset.Athletes, "athletes", localFilter{arg: "filter_sport", column: "sport"}, localFilter{arg: "filter_country", column: "country"}),
		},
		&Tool{
			Name:        "query_events_csv",
			Description: "Search the local sports events dataset. Returns event name, sport, dates, city, country, venue, coordinates (lat, lon) and region.",
			Params: []Param{
				{Name: "filter_sport", Type: TypeString, Description: `Filter by sport name substring (e.g. "Soccer", "Multi-Sport"). Empty = all sports.`},
				{Name: "filter_region", Type: TypeString, Description: `Filter by region substring (e.g. "Europe"). Empty = all regions.`},
				{Name: "max_results", Type: TypeInteger, Description: "Maximum events to return (default 20)."},
			},
			Handler: localQueryHandler(loader, dataset.Events, "events", localFilter{arg: "filter_sport", column: "sport"}, localFilter{arg: "filter_region", column: "region"}),
		},
	)
}

func describeHandler(gis *arcgis.Client, layerURL, label string) func(context.Context, Args) string {
	return func(ctx context.Context, _ Args) string {
		info, err := gis.Describe(ctx, layerURL)
		if err != nil {
			return errorJSON(err.Error())
		}
		return marshalJSON(map[string]any{
			"layer":            label,
			"name":             info.Name,
			"description":      info.Description,
			"geometry_type":    info.GeometryType,
			"object_id_field":  info.ObjectIDField,
			"fields":           info.Fields,
			"max_record_count": info.MaxRecordCount,
		})
	}
}

func queryHandler(gis *arcgis.Client, layerURL, label, noMatchMessage string) func(context.Context, Args) string {
	return func(ctx context.Context, args Args) string {
		where := args.String("where_clause", "1=1")
		fields := args.String("fields", "*")
		limit := args.Int("max_records", defaultRecordLimit)
		if limit <= 0 {
			limit = defaultRecordLimit
		}
		if limit > maxRecordLimit {
			limit = maxRecordLimit
		}

		records, err := gis.Query(ctx, layerURL, where, fields, limit)
		if err != nil {
			return errorJSONWithHint(err.Error(), "Check where_clause syntax.")
		}
		if len(records) == 0 {
			return marshalJSON(map[string]any{
				"count":    0,
				"features": []any{},
				"message":  noMatchMessage,
			})
		}
		return marshalJSON(map[string]any{
			"count":    len(records),
			"layer":    label,
			"features": records,
		})
	}
}

// localFilter pairs a tool argument with the dataset column it filters.
type localFilter struct {
	arg    string
	column string
}

func localQueryHandler(loader *dataset.Loader, name dataset.Name, itemsKey string, filters ...localFilter) func(context.Context, Args) string {
	source := string(name) + ".csv"
	return func(_ context.Context, args Args) string {
		records, err := loader.Records(name)
		if err != nil {
			return errorJSON(err.Error())
		}

		for _, f := range filters {
			needle := strings.ToLower(args.String(f.arg, ""))
			if needle == "" {
				continue
			}
			var kept []map[string]any
			for _, rec := range records {
				if cell, ok := rec[f.column].(string); ok && strings.Contains(strings.ToLower(cell), needle) {
					kept = append(kept, rec)
				}
			}
			records = kept
		}

		limit := args.Int("max_results", defaultRecordLimit)
		if limit <= 0 {
			limit = defaultRecordLimit
		}
		if len(records) > limit {
			records = records[:limit]
		}

		if len(records) == 0 {
			return marshalJSON(map[string]any{
				"count":   0,
				itemsKey:  []any{},
				"message": fmt.Sprintf("No %s matched the filters.", itemsKey),
			})
		}
		return marshalJSON(map[string]any{
			"count":  len(records),
			"source": source,
			itemsKey: records,
		})
	}
}
