package metrics

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"/", "/"},
		{"/metrics", "/metrics"},
		{"/api/health", "/api/health"},
		{"/api/admin/login", "/api/admin/login"},
		{"/api/events", "/api/events"},
		{"/api/events/7f3a", "/api/events/:event"},
		{"/api/events/7f3a/start", "/api/events/:event/start"},
		{"/api/events/7f3a/close", "/api/events/:event/close"},
		{"/api/beers/catalog", "/api/beers/catalog"},
		{"/api/beers/event/7f3a", "/api/beers/event/:event"},
		{"/api/beers/item/b1c2", "/api/beers/item/:item"},
		{"/api/beers/item/b1c2/active", "/api/beers/item/:item/active"},
		{"/api/customers", "/api/customers"},
		{"/api/customers/event/7f3a", "/api/customers/event/:event"},
		{"/api/transactions", "/api/transactions"},
		{"/api/transactions/event/7f3a", "/api/transactions/event/:event"},
		{"/api/tabs/open", "/api/tabs/open"},
		{"/api/tabs/9d8e/close", "/api/tabs/:tab/close"},
		{"/api/tabs/event/7f3a/balances", "/api/tabs/event/:event/balances"},
		{"/api/analytics/event/7f3a/beer/b1c2/stats", "/api/analytics/event/:event/beer/:item/stats"},
		{"/api/analytics/event/7f3a/beer/b1c2/price-history", "/api/analytics/event/:event/beer/:item/price-history"},
		{"/api/analytics/event/7f3a/changes", "/api/analytics/event/:event/changes"},
		{"/api/pricing/event/7f3a/mispricing", "/api/pricing/event/:event/mispricing"},
		{"/api/live/7f3a", "/api/live/:event"},
	}
	for _, tc := range cases {
		if got := canonicalPath(tc.raw); got != tc.want {
			t.Errorf("canonicalPath(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

// Route families must keep distinct labels; an id in one family must not fold
// the request into another family's label.
func TestCanonicalPathKeepsRouteFamiliesApart(t *testing.T) {
	seen := map[string]string{}
	for _, raw := range []string{
		"/api/events/7f3a",
		"/api/beers/event/7f3a",
		"/api/customers/event/7f3a",
		"/api/transactions/event/7f3a",
		"/api/pricing/event/7f3a/mispricing",
		"/api/live/7f3a",
	} {
		label := canonicalPath(raw)
		if label == "/api" {
			t.Fatalf("canonicalPath(%q) collapsed to /api", raw)
		}
		if prev, dup := seen[label]; dup {
			t.Fatalf("%q and %q share label %q", prev, raw, label)
		}
		seen[label] = raw
	}
}
