package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adshield/fraudguard/internal/cache"
	"github.com/adshield/fraudguard/internal/config"
	"github.com/adshield/fraudguard/internal/models"
)

func TestParseASN(t *testing.T) {
	asn := func(n int) *int { return &n }

	var tests = []struct {
		in   string
		want *int
	}{
		{"AS55836 Reliance Jio Infocomm Limited", asn(55836)},
		{"AS16509 Amazon.com, Inc.", asn(16509)},
		{"24560", asn(24560)},
		{"as13335", asn(13335)},
		{"  AS9829  ", asn(9829)},
		{"AS0", asn(0)},
		{"", nil},
		{"   ", nil},
		{"garbage", nil},
		{"AS-12", nil},
		{"ASN55836", nil},
	}

	for _, tc := range tests {
		got := ParseASN(tc.in)
		switch {
		case got == nil && tc.want != nil:
			t.Errorf("ParseASN(%q) = nil, want %d", tc.in, *tc.want)
		case got != nil && tc.want == nil:
			t.Errorf("ParseASN(%q) = %d, want nil", tc.in, *got)
		case got != nil && tc.want != nil && *got != *tc.want:
			t.Errorf("ParseASN(%q) = %d, want %d", tc.in, *got, *tc.want)
		}
	}
}

func TestValidIP(t *testing.T) {
	var tests = []struct {
		in   string
		want bool
	}{
		{"1.2.3.4", true},
		{"255.255.255.255", true},
		{"2001:db8::1", true},
		{"::1", true},
		{"1.2.3.256", false},
		{"1.2.3", false},
		{"not-an-ip", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := ValidIP(tc.in); got != tc.want {
			t.Errorf("ValidIP(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func newTestResolver(t *testing.T, upstream string) *Resolver {
	t.Helper()
	cfg := config.ReputationConfig{
		LookupURL:     upstream + "/json/{ip}",
		LookupTimeout: 2 * time.Second,
		CacheSize:     100,
		CacheTTL:      time.Minute,
	}
	return NewResolver(cfg, cache.New[models.IPReputation](cfg.CacheSize, cfg.CacheTTL))
}

func TestResolveClassifiesFacets(t *testing.T) {
	var tests = []struct {
		name    string
		body    string
		carrier bool
		dc      bool
		vpn     bool
		tor     bool
	}{
		{
			"carrier by asn",
			`{"status":"success","as":"AS55836 Reliance Jio","isp":"Jio","country":"India"}`,
			true, false, false, false,
		},
		{
			"datacenter by asn",
			`{"status":"success","as":"AS16509 Amazon.com, Inc.","org":"Amazon Technologies"}`,
			false, true, false, false,
		},
		{
			"datacenter by org keyword",
			`{"status":"success","as":"AS99999 Someone","org":"Fancy Hosting GmbH"}`,
			false, true, false, false,
		},
		{
			"vpn by org keyword",
			`{"status":"success","as":"AS9009 M247","org":"NordVPN"}`,
			false, false, true, false,
		},
		{
			"tor exit",
			`{"status":"success","org":"Tor Exit Node NL-3"}`,
			false, false, false, true,
		},
		{
			"residential isp, no facets",
			`{"status":"success","as":"AS7922 Comcast","isp":"Comcast Cable"}`,
			false, false, false, false,
		},
		{
			"org keyword falls back to isp",
			`{"status":"success","isp":"OVH SAS"}`,
			false, true, false, false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			r := newTestResolver(t, srv.URL)
			rep := r.Resolve(context.Background(), "9.9.9.9")

			if rep.IsMobileCarrier != tc.carrier {
				t.Errorf("IsMobileCarrier = %v, want %v", rep.IsMobileCarrier, tc.carrier)
			}
			if rep.IsDatacenter != tc.dc {
				t.Errorf("IsDatacenter = %v, want %v", rep.IsDatacenter, tc.dc)
			}
			if rep.IsVPN != tc.vpn {
				t.Errorf("IsVPN = %v, want %v", rep.IsVPN, tc.vpn)
			}
			if rep.IsTor != tc.tor {
				t.Errorf("IsTor = %v, want %v", rep.IsTor, tc.tor)
			}
			if rep.IsProxy {
				t.Error("IsProxy must stay false for this provider")
			}
		})
	}
}

func TestResolveInvalidIPReturnsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called for malformed IPs")
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL)
	for _, ip := range []string{"", "999.1.1.1", "bogus"} {
		rep := r.Resolve(context.Background(), ip)
		if rep.IsVPN || rep.IsDatacenter || rep.IsMobileCarrier || rep.IsTor || rep.IsProxy {
			t.Errorf("Resolve(%q) returned non-neutral facets: %+v", ip, rep)
		}
	}
}

func TestResolveUpstreamFailureDegradesToUnknown(t *testing.T) {
	var tests = []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http 500", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"unparsable body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>nope</html>"))
		}},
		{"provider-level failure", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"fail","message":"private range"}`))
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			r := newTestResolver(t, srv.URL)
			rep := r.Resolve(context.Background(), "8.8.4.4")
			if rep.IP != "8.8.4.4" {
				t.Errorf("IP = %q, want echo of input", rep.IP)
			}
			if rep.IsVPN || rep.IsDatacenter || rep.IsMobileCarrier || rep.IsTor {
				t.Errorf("degraded result must be neutral, got %+v", rep)
			}
			if rep.Org != "" || rep.Country != "" {
				t.Errorf("degraded result must have empty location fields, got %+v", rep)
			}
		})
	}
}

func TestResolveTimeoutDegradesToUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	cfg := config.ReputationConfig{
		LookupURL:     srv.URL + "/json/{ip}",
		LookupTimeout: 50 * time.Millisecond,
		CacheSize:     10,
		CacheTTL:      time.Minute,
	}
	r := NewResolver(cfg, cache.New[models.IPReputation](cfg.CacheSize, cfg.CacheTTL))

	start := time.Now()
	rep := r.Resolve(context.Background(), "8.8.8.8")
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Resolve took %v, expected timeout near 50ms", elapsed)
	}
	if rep.IsDatacenter || rep.IsVPN {
		t.Errorf("timed-out lookup must be neutral, got %+v", rep)
	}
}

func TestResolveCachesSecondCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"status":"success","as":"AS16509 Amazon","org":"Amazon AWS"}`))
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL)

	first := r.Resolve(context.Background(), "52.1.2.3")
	if first.Cached {
		t.Error("first resolve must not be marked cached")
	}
	second := r.Resolve(context.Background(), "52.1.2.3")
	if !second.Cached {
		t.Error("second resolve must be served from cache")
	}
	if !second.IsDatacenter {
		t.Error("cached result lost the datacenter facet")
	}
	if calls != 1 {
		t.Errorf("upstream called %d times, want 1", calls)
	}
}

func TestResolveFailuresAreNotCached(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"success","as":"AS16509 Amazon","org":"Amazon AWS"}`))
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL)

	if rep := r.Resolve(context.Background(), "52.9.9.9"); rep.IsDatacenter {
		t.Fatal("failed lookup should be neutral")
	}
	if rep := r.Resolve(context.Background(), "52.9.9.9"); !rep.IsDatacenter {
		t.Error("retry after failure should reach upstream and classify")
	}
	if calls != 2 {
		t.Errorf("upstream called %d times, want 2", calls)
	}
}

func TestResolveBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Provider echoes per-path behavior: .13 always fails.
		if r.URL.Path == "/json/10.0.0.13" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"status":"success","as":"AS21928 T-Mobile USA"}`))
	}))
	defer srv.Close()

	cfg := config.ReputationConfig{
		LookupURL:     srv.URL + "/json/{ip}",
		LookupTimeout: 2 * time.Second,
		CacheSize:     100,
		CacheTTL:      time.Minute,
		BatchSize:     2,
		BatchDelay:    time.Millisecond,
	}
	r := NewResolver(cfg, cache.New[models.IPReputation](cfg.CacheSize, cfg.CacheTTL))

	ips := []string{"10.0.0.11", "10.0.0.12", "10.0.0.13", "10.0.0.14", "10.0.0.15"}
	out := r.ResolveBatch(context.Background(), ips)

	if len(out) != len(ips) {
		t.Fatalf("got %d results, want %d", len(out), len(ips))
	}
	for _, ip := range ips {
		rep, ok := out[ip]
		if !ok {
			t.Fatalf("missing result for %s", ip)
		}
		wantCarrier := ip != "10.0.0.13"
		if rep.IsMobileCarrier != wantCarrier {
			t.Errorf("%s: IsMobileCarrier = %v, want %v", ip, rep.IsMobileCarrier, wantCarrier)
		}
	}
}

func TestResolverExtraASNsMerge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","as":"AS64512 Test Carrier"}`))
	}))
	defer srv.Close()

	cfg := config.ReputationConfig{
		LookupURL:        srv.URL + "/json/{ip}",
		LookupTimeout:    time.Second,
		CacheSize:        10,
		CacheTTL:         time.Minute,
		ExtraCarrierASNs: []int{64512},
	}
	r := NewResolver(cfg, cache.New[models.IPReputation](cfg.CacheSize, cfg.CacheTTL))

	rep := r.Resolve(context.Background(), "203.0.113.7")
	if !rep.IsMobileCarrier {
		t.Error("configured extra carrier ASN was not honored")
	}
}

type countingLookupMetrics struct {
	observed int
	failed   int
}

func (c *countingLookupMetrics) ObserveLookup(time.Duration) { c.observed++ }
func (c *countingLookupMetrics) LookupFailure()              { c.failed++ }

func TestResolveReportsLookupMetrics(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL)
	obs := &countingLookupMetrics{}
	r.SetMetrics(obs)

	// Failed lookup: one observation, one failure.
	r.Resolve(context.Background(), "100.64.0.1")
	if obs.observed != 1 || obs.failed != 1 {
		t.Fatalf("after failure: observed=%d failed=%d, want 1/1", obs.observed, obs.failed)
	}

	// Successful lookup: observation only.
	r.Resolve(context.Background(), "100.64.0.1")
	if obs.observed != 2 || obs.failed != 1 {
		t.Fatalf("after success: observed=%d failed=%d, want 2/1", obs.observed, obs.failed)
	}

	// Cache hit: no upstream attempt, nothing recorded.
	r.Resolve(context.Background(), "100.64.0.1")
	if obs.observed != 2 || obs.failed != 1 {
		t.Fatalf("after cache hit: observed=%d failed=%d, want 2/1", obs.observed, obs.failed)
	}

	// Malformed IP never reaches the lookup path.
	r.Resolve(context.Background(), "not-an-ip")
	if obs.observed != 2 {
		t.Fatalf("malformed IP was observed as a lookup attempt")
	}
}

func TestInvalidateIP(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL)
	r.Resolve(context.Background(), "198.51.100.4")
	if !r.InvalidateIP("198.51.100.4") {
		t.Fatal("expected cached entry to be invalidated")
	}
	r.Resolve(context.Background(), "198.51.100.4")
	if calls != 2 {
		t.Errorf("upstream called %d times after invalidation, want 2", calls)
	}
}
