package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adshield/fraudguard/internal/cache"
	"github.com/adshield/fraudguard/internal/config"
	"github.com/adshield/fraudguard/internal/models"
	"github.com/adshield/fraudguard/internal/util/logger"
)

// Mobile carrier ASNs treated as a strong trust signal. Real users on
// carrier NAT share IPs at huge scale, so blocking them is never worth it.
var carrierASNs = map[int]struct{}{
	55836: {}, // Reliance Jio (IN)
	45609: {}, // Bharti Airtel (IN)
	24560: {}, // Bharti Airtel broadband (IN)
	55644: {}, // Vodafone Idea (IN)
	9829:  {}, // BSNL (IN)
	21928: {}, // T-Mobile USA
	22394: {}, // Verizon Wireless
	20057: {}, // AT&T Mobility
	9808:  {}, // China Mobile
	4134:  {}, // Chinanet
	25135: {}, // Vodafone UK
	12430: {}, // Vodafone ES
	29975: {}, // Vodacom (ZA)
	16232: {}, // TIM (IT)
	27831: {}, // Colombia Movil
}

// Datacenter/hosting ASNs. Traffic from these is almost never a human on
// an ad impression.
var datacenterASNs = map[int]struct{}{
	16509:  {}, // Amazon AWS
	14618:  {}, // Amazon AES
	15169:  {}, // Google
	396982: {}, // Google Cloud
	8075:   {}, // Microsoft Azure
	14061:  {}, // DigitalOcean
	24940:  {}, // Hetzner
	16276:  {}, // OVH
	63949:  {}, // Linode/Akamai
	20473:  {}, // Vultr
	13335:  {}, // Cloudflare
	45102:  {}, // Alibaba Cloud
	31898:  {}, // Oracle Cloud
}

var datacenterOrgKeywords = []string{
	"amazon", "aws", "google cloud", "microsoft", "azure",
	"digitalocean", "hetzner", "ovh", "linode", "vultr", "alibaba",
	"oracle", "hosting", "datacenter", "data center", "server",
	"colo", "cloud",
}

var vpnOrgKeywords = []string{
	"nordvpn", "expressvpn", "surfshark", "protonvpn", "cyberghost",
	"private internet access", "mullvad", "ipvanish", "windscribe",
	"tunnelbear", "purevpn", "hidemyass", "m247", "vpn",
}

// LookupMetrics receives upstream lookup outcomes. The metrics package
// satisfies it; a nil observer disables instrumentation.
type LookupMetrics interface {
	ObserveLookup(d time.Duration)
	LookupFailure()
}

// Resolver produces IPReputation records, shielding the rate-limited
// upstream lookup behind the in-process cache. Resolve never returns an
// error: every failure mode degrades to a neutral "unknown" reputation.
type Resolver struct {
	cfg        config.ReputationConfig
	cache      *cache.Cache[models.IPReputation]
	httpClient *http.Client
	obs        LookupMetrics

	carrierASNs    map[int]struct{}
	datacenterASNs map[int]struct{}
}

// NewResolver builds a resolver over the given cache. Extra ASNs from
// config are merged into the built-in sets.
func NewResolver(cfg config.ReputationConfig, c *cache.Cache[models.IPReputation]) *Resolver {
	carriers := make(map[int]struct{}, len(carrierASNs)+len(cfg.ExtraCarrierASNs))
	for asn := range carrierASNs {
		carriers[asn] = struct{}{}
	}
	for _, asn := range cfg.ExtraCarrierASNs {
		carriers[asn] = struct{}{}
	}
	dcs := make(map[int]struct{}, len(datacenterASNs)+len(cfg.ExtraDatacenterASNs))
	for asn := range datacenterASNs {
		dcs[asn] = struct{}{}
	}
	for _, asn := range cfg.ExtraDatacenterASNs {
		dcs[asn] = struct{}{}
	}

	return &Resolver{
		cfg:   cfg,
		cache: c,
		httpClient: &http.Client{
			Timeout: cfg.LookupTimeout,
		},
		carrierASNs:    carriers,
		datacenterASNs: dcs,
	}
}

// unknownReputation is the neutral no-signal result used whenever the IP
// is malformed or the upstream lookup fails.
func unknownReputation(ip string) models.IPReputation {
	return models.IPReputation{IP: ip}
}

// Resolve returns the reputation for ip, from cache when possible. Lookup
// failures log and degrade to "unknown"; they never block classification.
func (r *Resolver) Resolve(ctx context.Context, ip string) models.IPReputation {
	ip = strings.TrimSpace(ip)
	if !ValidIP(ip) {
		return unknownReputation(ip)
	}

	if cached, ok := r.cache.Get(ip); ok {
		cached.Cached = true
		return cached
	}

	start := time.Now()
	rep, err := r.lookup(ctx, ip)
	if r.obs != nil {
		r.obs.ObserveLookup(time.Since(start))
	}
	if err != nil {
		if r.obs != nil {
			r.obs.LookupFailure()
		}
		logger.Warnf("reputation lookup failed for %s: %v", ip, err)
		return unknownReputation(ip)
	}

	r.cache.Set(ip, rep, r.cfg.CacheTTL)
	return rep
}

// SetMetrics attaches the lookup instrumentation sink.
func (r *Resolver) SetMetrics(obs LookupMetrics) {
	r.obs = obs
}

// ResolveBatch resolves many IPs with bounded fan-out and inter-batch
// pacing to respect upstream rate limits. Failures within a batch degrade
// individually; the rest of the batch proceeds.
func (r *Resolver) ResolveBatch(ctx context.Context, ips []string) map[string]models.IPReputation {
	out := make(map[string]models.IPReputation, len(ips))
	width := r.cfg.BatchSize
	if width <= 0 {
		width = 10
	}

	type resolved struct {
		ip  string
		rep models.IPReputation
	}

	for start := 0; start < len(ips); start += width {
		end := start + width
		if end > len(ips) {
			end = len(ips)
		}
		batch := ips[start:end]

		ch := make(chan resolved, len(batch))
		for _, ip := range batch {
			go func(ip string) {
				ch <- resolved{ip: ip, rep: r.Resolve(ctx, ip)}
			}(ip)
		}
		for range batch {
			res := <-ch
			out[res.ip] = res.rep
		}

		if end < len(ips) && r.cfg.BatchDelay > 0 {
			select {
			case <-time.After(r.cfg.BatchDelay):
			case <-ctx.Done():
				return out
			}
		}
	}
	return out
}

// lookupResponse matches the upstream provider's JSON body.
type lookupResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Country string `json:"country"`
	Region  string `json:"regionName"`
	City    string `json:"city"`
	ISP     string `json:"isp"`
	Org     string `json:"org"`
	AS      string `json:"as"`
	Query   string `json:"query"`
}

func (r *Resolver) lookup(ctx context.Context, ip string) (models.IPReputation, error) {
	if r.cfg.LookupURL == "" {
		return models.IPReputation{}, fmt.Errorf("no lookup URL configured")
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.LookupTimeout)
	defer cancel()

	endpoint := strings.ReplaceAll(r.cfg.LookupURL, "{ip}", url.QueryEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.IPReputation{}, err
	}
	req.Header.Set("Accept", "application/json")
	if r.cfg.LookupToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.LookupToken)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return models.IPReputation{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.IPReputation{}, fmt.Errorf("lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.IPReputation{}, err
	}

	var lr lookupResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return models.IPReputation{}, fmt.Errorf("parse lookup response: %w", err)
	}
	if lr.Status != "" && lr.Status != "success" {
		return models.IPReputation{}, fmt.Errorf("lookup failed: %s", lr.Message)
	}

	return r.classify(ip, lr), nil
}

// classify derives the reputation facets from the provider record.
func (r *Resolver) classify(ip string, lr lookupResponse) models.IPReputation {
	rep := models.IPReputation{
		IP:      ip,
		Org:     lr.Org,
		ISP:     lr.ISP,
		Country: lr.Country,
		Region:  lr.Region,
		City:    lr.City,
		ASN:     ParseASN(lr.AS),
	}

	org := strings.ToLower(lr.Org)
	if org == "" {
		org = strings.ToLower(lr.ISP)
	}

	if rep.ASN != nil {
		if _, ok := r.carrierASNs[*rep.ASN]; ok {
			rep.IsMobileCarrier = true
		}
		if _, ok := r.datacenterASNs[*rep.ASN]; ok {
			rep.IsDatacenter = true
		}
	}
	if !rep.IsDatacenter && containsAny(org, datacenterOrgKeywords) {
		rep.IsDatacenter = true
	}
	if containsAny(org, vpnOrgKeywords) {
		rep.IsVPN = true
	}
	if strings.Contains(org, "tor exit") || strings.Contains(org, "tor project") {
		rep.IsTor = true
	}
	// isProxy is not derivable from this provider and stays false.

	return rep
}

// ParseASN extracts the numeric ASN from a provider string of the form
// "AS55836 Reliance Jio" or a bare "24560". Returns nil when unparsable.
func ParseASN(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(strings.ToUpper(s), "AS")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// ValidIP reports whether s is a well-formed IPv4 or IPv6 address.
func ValidIP(s string) bool {
	return net.ParseIP(s) != nil
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// CacheStats exposes cache effectiveness for the admin API.
func (r *Resolver) CacheStats() cache.Stats {
	return r.cache.GetStats()
}

// CleanupCache sweeps expired reputation entries, returning the count.
func (r *Resolver) CleanupCache() int {
	return r.cache.Cleanup()
}

// InvalidateIP drops a cached reputation so the next check re-resolves.
func (r *Resolver) InvalidateIP(ip string) bool {
	return r.cache.Delete(ip)
}
