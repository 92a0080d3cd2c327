package directory

import (
	"strings"
	"testing"
)

func TestBuildWhere_NoFilters(t *testing.T) {
	where, args := buildWhere(Filters{})

	if where != "is_published = TRUE" {
		t.Errorf("expected published-only clause, got %q", where)
	}
	if len(args) != 0 {
		t.Errorf("expected no args, got %d", len(args))
	}
}

func TestBuildWhere_SearchSpansFields(t *testing.T) {
	where, args := buildWhere(Filters{Search: "engineer"})

	// free search ORs across name, bio, background and working_on
	for _, col := range []string{"full_name", "bio", "background", "working_on"} {
		if !strings.Contains(where, col+" ILIKE $1") {
			t.Errorf("expected search clause on %s, got %q", col, where)
		}
	}
	if len(args) != 1 || args[0] != "%engineer%" {
		t.Errorf("expected single wildcard arg, got %v", args)
	}
}

func TestBuildWhere_BackgroundIsSubstringMatch(t *testing.T) {
	where, args := buildWhere(Filters{Background: "Design"})

	if !strings.Contains(where, "background ILIKE $1") {
		t.Errorf("expected background substring clause, got %q", where)
	}
	if strings.Contains(where, "full_name") {
		t.Errorf("background filter must not touch other fields, got %q", where)
	}
	if len(args) != 1 || args[0] != "%Design%" {
		t.Errorf("expected wildcard arg for background, got %v", args)
	}
}

func TestBuildWhere_LocationIsExactMatch(t *testing.T) {
	where, args := buildWhere(Filters{Country: "Brazil", City: "Recife"})

	if !strings.Contains(where, "country = $1") {
		t.Errorf("expected country equality, got %q", where)
	}
	if !strings.Contains(where, "city = $2") {
		t.Errorf("expected city equality, got %q", where)
	}
	if args[0] != "Brazil" || args[1] != "Recife" {
		t.Errorf("expected exact args without wildcards, got %v", args)
	}
}

func TestBuildWhere_FiltersCombineWithAND(t *testing.T) {
	where, args := buildWhere(Filters{Search: "go", Background: "Eng", Country: "Japan", City: "Tokyo"})

	if got := strings.Count(where, " AND "); got != 4 {
		t.Errorf("expected 4 AND joins (published + 4 filters), got %d in %q", got, where)
	}
	if len(args) != 4 {
		t.Errorf("expected 4 args, got %d", len(args))
	}
	if !strings.HasPrefix(where, "is_published = TRUE") {
		t.Errorf("published guard must always lead the clause, got %q", where)
	}
}

func TestOrderBy_Deterministic(t *testing.T) {
	display := NewEngine(nil, nil, "display")
	if got := display.orderBy(); got != "code_id ASC NULLS LAST, id ASC" {
		t.Errorf("display order = %q", got)
	}

	newest := NewEngine(nil, nil, "newest")
	if got := newest.orderBy(); got != "created_at DESC, id ASC" {
		t.Errorf("newest order = %q", got)
	}

	// unknown configuration falls back to display ordering
	fallback := NewEngine(nil, nil, "bogus")
	if got := fallback.orderBy(); got != "code_id ASC NULLS LAST, id ASC" {
		t.Errorf("fallback order = %q", got)
	}
}

func TestFacetField_Whitelist(t *testing.T) {
	for _, field := range []string{"background", "country", "city"} {
		if !FacetField(field) {
			t.Errorf("expected %s to be a facet field", field)
		}
	}
	for _, field := range []string{"slug", "full_name", "id; DROP TABLE profiles", ""} {
		if FacetField(field) {
			t.Errorf("expected %q to be rejected", field)
		}
	}
}
