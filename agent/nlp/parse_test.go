package nlp

import (
	"errors"
	"testing"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
)

func TestJSONObject(t *testing.T) {
	t.Parallel()

	cases := []string{
		`{"a": 1}`,
		"```json\n{\"a\": 1}\n```",
		"```\n{\"a\": 1}\n```",
		`Here you go: {"a": 1} hope that helps`,
	}
	for _, in := range cases {
		r, err := jsonObject(in)
		if err != nil {
			t.Fatalf("jsonObject(%q) error = %v", in, err)
		}
		if r.Get("a").Int() != 1 {
			t.Fatalf("jsonObject(%q) = %s", in, r.Raw)
		}
	}

	for _, in := range []string{"", "no braces", `{"a": }`} {
		if _, err := jsonObject(in); !errors.Is(err, contractx.ErrSchemaViolation) {
			t.Fatalf("jsonObject(%q) error = %v, want ErrSchemaViolation", in, err)
		}
	}
}

func TestParseIntentDefaultsConfidence(t *testing.T) {
	t.Parallel()

	r, _ := jsonObject(`{"intent": "TAX_OPTIMIZATION"}`)
	intent, known := parseIntent(r)
	if !known || intent.Name != "tax_optimization" || intent.Confidence != defaultConfidence {
		t.Fatalf("unexpected intent: %#v", intent)
	}

	r, _ = jsonObject(`{"intent": "client_lookup", "confidence": 3}`)
	if intent, _ := parseIntent(r); intent.Confidence != 1 {
		t.Fatalf("confidence not clamped: %v", intent.Confidence)
	}
}

func TestParseQueryDefaults(t *testing.T) {
	t.Parallel()

	r, _ := jsonObject(`{"table": "Order", "filters": {"status": "pending"}, "sort_order": "ASC", "limit": 0}`)
	q := parseQuery(r)
	if q == nil || q.Table != "order" || q.SortOrder != "asc" || q.Limit != defaultQueryLimit {
		t.Fatalf("unexpected query: %#v", q)
	}
	if q.Filters["status"] != "pending" {
		t.Fatalf("filters lost: %#v", q.Filters)
	}
}

func TestTaxonomySizes(t *testing.T) {
	t.Parallel()

	if len(Intents) != 14 || len(EntityTypes) != 9 {
		t.Fatalf("intents=%d entity types=%d", len(Intents), len(EntityTypes))
	}
	if !IsIntent(contractx.IntentGeneralChat) {
		t.Fatal("fallback intent must be part of the taxonomy")
	}
}
