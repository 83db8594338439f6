package patient

import (
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// eventsField holds the packed events of a chunked document.
const eventsField = "events"

func toRows(docs []bson.M) []Row {
	return lo.Map(docs, func(d bson.M, _ int) Row { return Row(d) })
}

// flattenChunks concatenates the events arrays of chunk documents in
// document order. Documents without an events array contribute nothing.
func flattenChunks(chunks []Row) []Row {
	return lo.FlatMap(chunks, func(chunk Row, _ int) []Row {
		return eventRows(chunk[eventsField])
	})
}

func eventRows(v any) []Row {
	var items []any
	switch events := v.(type) {
	case bson.A:
		items = events
	case []any:
		items = events
	case []Row:
		return events
	default:
		return nil
	}

	return lo.FilterMap(items, func(item any, _ int) (Row, bool) {
		switch e := item.(type) {
		case bson.M:
			return Row(e), true
		case map[string]any:
			return e, true
		case bson.D:
			row := make(Row, len(e))
			for _, el := range e {
				row[el.Key] = el.Value
			}
			return row, true
		}
		return nil, false
	})
}
