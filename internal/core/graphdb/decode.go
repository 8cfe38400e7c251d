package graphdb

import (
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/markdave123-py/contexta-graph/internal/models"
)

func recordValue(rec *neo4j.Record, key string) any {
	if rec == nil {
		return nil
	}
	v, _ := rec.Get(key)
	return v
}

func recordString(rec *neo4j.Record, key string) string { return asString(recordValue(rec, key)) }
func recordInt(rec *neo4j.Record, key string) int       { return asInt(recordValue(rec, key)) }
func recordFloat(rec *neo4j.Record, key string) float64 { return asFloat(recordValue(rec, key)) }

func recordMap(rec *neo4j.Record, key string) map[string]any {
	m, _ := recordValue(rec, key).(map[string]any)
	return m
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case int64:
		return int(t)
	case int:
		return t
	case float64:
		return int(t)
	}
	return 0
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int64:
		return float64(t)
	}
	return 0
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

func decodeDocument(m map[string]any) models.Document {
	return models.Document{
		UUID:        asString(m["uuid"]),
		Name:        asString(m["name"]),
		URL:         asString(m["url"]),
		Text:        asString(m["text"]),
		Note:        asString(m["note"]),
		ImageURL:    asString(m["imageurl"]),
		Publisher:   asString(m["publisher"]),
		AddedDate:   asString(m["addeddate"]),
		Thumbnail:   asString(m["thumbnail"]),
		WordCount:   asInt(m["wordcount"]),
		ProcessFlag: asBool(m["process"]),
	}
}

func documentInfo(m map[string]any) models.DocumentInfo {
	d := decodeDocument(m)
	return models.DocumentInfo{
		UUID:      d.UUID,
		Name:      d.Name,
		AddedDate: d.AddedDate,
		ImageURL:  d.ImageURL,
		Publisher: d.Publisher,
		Thumbnail: d.Thumbnail,
		URL:       d.URL,
		WordCount: d.WordCount,
	}
}

func decodeUser(m map[string]any) *models.User {
	return &models.User{
		UUID:         asString(m["uuid"]),
		Username:     asString(m["username"]),
		Email:        asString(m["email"]),
		Name:         asString(m["name"]),
		PasswordHash: asString(m["password"]),
		Disabled:     asBool(m["disabled"]),
		Admin:        asBool(m["admin"]),
		DateCreated:  asTime(m["datecreated"]),
	}
}

func nodeRefs(v any) []models.NodeRef {
	items, _ := v.([]any)
	out := make([]models.NodeRef, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok || asString(m["uuid"]) == "" {
			continue
		}
		out = append(out, models.NodeRef{
			UUID: asString(m["uuid"]),
			Name: asString(m["name"]),
			Text: asString(m["text"]),
		})
	}
	models.SortNodeRefs(out)
	return out
}

func childRefs(v any) []models.ChildRef {
	refs := nodeRefs(v)
	out := make([]models.ChildRef, len(refs))
	for i, r := range refs {
		out[i] = models.ChildRef{NodeRef: r}
	}
	return out
}

// decodeHierarchy turns the document/pages projection into the resolved
// hierarchy with pages ordered by their numeric suffix.
func decodeHierarchy(doc map[string]any, pages []any) *models.DocumentHierarchy {
	h := &models.DocumentHierarchy{
		Document: documentInfo(doc),
		Pages:    make([]models.PageHierarchy, 0, len(pages)),
	}
	for _, it := range pages {
		m, ok := it.(map[string]any)
		if !ok || asString(m["uuid"]) == "" {
			continue
		}
		h.Pages = append(h.Pages, models.PageHierarchy{
			UUID:      asString(m["uuid"]),
			Name:      asString(m["name"]),
			Summaries: nodeRefs(m["summaries"]),
			Questions: nodeRefs(m["questions"]),
			Children:  childRefs(m["children"]),
		})
	}
	models.SortPages(h.Pages)
	return h
}

func decodeMatches(recs []*neo4j.Record) []models.Match {
	out := make([]models.Match, 0, len(recs))
	for _, rec := range recs {
		id := recordString(rec, "uuid")
		if id == "" {
			continue
		}
		out = append(out, models.Match{
			UUID:  id,
			Text:  recordString(rec, "text"),
			Score: recordFloat(rec, "score"),
		})
	}
	return out
}
