package nlp

import (
	"fmt"
	"strings"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	"github.com/tidwall/gjson"
)

const (
	defaultConfidence = 0.5
	defaultQueryLimit = 20
)

// jsonObject pulls the first JSON object out of a model reply, tolerating
// markdown fences and surrounding prose.
func jsonObject(content string) (gjson.Result, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return gjson.Result{}, fmt.Errorf("%w: no json object in reply", contractx.ErrSchemaViolation)
	}
	s = s[start : end+1]
	if !gjson.Valid(s) {
		return gjson.Result{}, fmt.Errorf("%w: malformed json in reply", contractx.ErrSchemaViolation)
	}
	return gjson.Parse(s), nil
}

func parseIntent(r gjson.Result) (contractx.Intent, bool) {
	name := strings.ToLower(strings.TrimSpace(r.Get("intent").String()))
	known := IsIntent(name)
	if !known {
		name = contractx.IntentGeneralChat
	}
	confidence := defaultConfidence
	if c := r.Get("confidence"); c.Exists() {
		confidence = clamp(c.Float(), 0, 1)
	}
	return contractx.Intent{
		Name:       name,
		Confidence: confidence,
		Reasoning:  r.Get("reasoning").String(),
	}, known
}

// parseEntities keeps only entities whose type is in the taxonomy.
func parseEntities(r gjson.Result) (entities []contractx.Entity, dropped int) {
	entities = []contractx.Entity{}
	for _, e := range r.Get("entities").Array() {
		typ := strings.ToUpper(strings.TrimSpace(e.Get("type").String()))
		value := strings.TrimSpace(e.Get("value").String())
		if !IsEntityType(typ) || value == "" {
			dropped++
			continue
		}
		original := e.Get("original_text").String()
		if original == "" {
			original = value
		}
		entities = append(entities, contractx.Entity{Type: typ, Value: value, OriginalText: original})
	}
	return entities, dropped
}

func parseSentiment(r gjson.Result) contractx.Sentiment {
	s := neutralSentiment()
	s.Score = clamp(r.Get("score").Float(), -1, 1)
	switch c := strings.ToLower(r.Get("classification").String()); c {
	case "positive", "neutral", "negative":
		s.Classification = c
	}
	switch u := strings.ToLower(r.Get("urgency").String()); u {
	case "low", "medium", "high":
		s.Urgency = u
	}
	for _, e := range r.Get("emotions").Array() {
		if v := strings.TrimSpace(e.String()); v != "" {
			s.Emotions = append(s.Emotions, v)
		}
	}
	return s
}

// parseQuery returns nil when the reply marks the message as not a data query.
func parseQuery(r gjson.Result) *contractx.ParsedQuery {
	table := r.Get("table")
	if !table.Exists() || table.Type == gjson.Null || strings.TrimSpace(table.String()) == "" {
		return nil
	}
	q := &contractx.ParsedQuery{
		Table:      strings.ToLower(strings.TrimSpace(table.String())),
		Filters:    map[string]any{},
		SortBy:     r.Get("sort_by").String(),
		SortOrder:  "desc",
		Limit:      defaultQueryLimit,
		SearchText: r.Get("search_text").String(),
	}
	if f, ok := r.Get("filters").Value().(map[string]any); ok {
		q.Filters = f
	}
	if strings.EqualFold(r.Get("sort_order").String(), "asc") {
		q.SortOrder = "asc"
	}
	if l := r.Get("limit"); l.Exists() && l.Int() > 0 {
		q.Limit = int(l.Int())
	}
	return q
}

func neutralSentiment() contractx.Sentiment {
	return contractx.Sentiment{
		Score:          0,
		Classification: "neutral",
		Emotions:       []string{},
		Urgency:        "low",
	}
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
