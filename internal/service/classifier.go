package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/adshield/fraudguard/internal/models"
	"github.com/adshield/fraudguard/internal/repository"
	"github.com/adshield/fraudguard/internal/util/logger"
)

// AuditPublisher is the minimal fire-and-forget sink the engine needs.
// The Kafka shipper in telemetry satisfies it.
type AuditPublisher interface {
	Publish(any)
}

// Browser identifiers with a documented history of ad-fraud traffic.
// Matching traffic takes a flat score penalty in the composite.
var highRiskBrowsers = []string{
	"uc browser", "ucbrowser", "opera mini", "puffin", "maxthon", "baidu",
}

// Component weights for the rule-10 composite score.
const (
	ipWeight       = 0.6
	deviceWeight   = 0.3
	behaviorWeight = 0.1

	highRiskBrowserPenalty = 10
)

// Engine runs the priority-ordered rule cascade over the three signal
// sources. Evaluation is strictly sequential and short-circuiting: the
// first matching rule determines the verdict and later rules contribute
// nothing, flags included.
type Engine struct {
	resolver  *Resolver
	overrides repository.OverrideRepository
	audit     repository.AuditRepository // may be nil
	shipper   AuditPublisher             // may be nil
}

func NewEngine(resolver *Resolver, overrides repository.OverrideRepository, audit repository.AuditRepository, shipper AuditPublisher) *Engine {
	return &Engine{
		resolver:  resolver,
		overrides: overrides,
		audit:     audit,
		shipper:   shipper,
	}
}

// evalState carries the immutable inputs plus the flags accumulated along
// the executed decision path. The reputation is resolved at most once.
type evalState struct {
	req   *models.CheckRequest
	ip    string
	rep   *models.IPReputation
	flags []string
}

func (st *evalState) flag(tag string) {
	st.flags = append(st.flags, tag)
}

// reputation resolves lazily so the upstream lookup is skipped entirely
// when an earlier rule already decided the verdict.
func (e *Engine) reputation(ctx context.Context, st *evalState) models.IPReputation {
	if st.rep == nil {
		rep := e.resolver.Resolve(ctx, st.ip)
		st.rep = &rep
	}
	return *st.rep
}

// Classify produces the verdict for one request. It never returns an
// error: any internal failure degrades to a WARN fail-open result, since
// blocking legitimate traffic costs more than admitting a fraudulent
// impression.
func (e *Engine) Classify(ctx context.Context, requestID string, req *models.CheckRequest) *models.FraudResult {
	start := time.Now()

	res := e.classifyGuarded(ctx, req)
	res.ProcessingTime = time.Since(start)
	if res.Flags == nil {
		res.Flags = []string{}
	}

	e.publishAudit(requestID, req, res)
	return res
}

func (e *Engine) classifyGuarded(ctx context.Context, req *models.CheckRequest) (res *models.FraudResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("classification panic: %v", r)
			res = failsafeResult()
		}
	}()
	return e.evaluate(ctx, req)
}

// failsafeResult is the WARN safe default for internal errors.
func failsafeResult() *models.FraudResult {
	return &models.FraudResult{
		Classification: models.ClassWarn,
		Score:          50,
		Reason:         "Classification error, defaulting to review",
		Flags:          []string{"classification_error"},
	}
}

func (e *Engine) evaluate(ctx context.Context, req *models.CheckRequest) *models.FraudResult {
	st := &evalState{req: req, ip: strings.TrimSpace(req.IP)}
	dev := req.Fingerprint.Device

	// 1-2: manual overrides outrank every automated signal.
	switch e.lookupOverride(ctx, st.ip) {
	case models.OverrideDeny:
		st.flag("denylisted")
		return verdict(models.ClassBad, 0, "IP is denylisted", st)
	case models.OverrideAllow:
		st.flag("allowlisted")
		return verdict(models.ClassGood, 100, "IP is allowlisted", st)
	}

	// 3-5: device-derived instant fails, no network needed.
	if dev.IsAutomated {
		st.flag("automation_detected")
		return verdict(models.ClassBad, 0, "Automation detected", st)
	}
	if dev.IsHeadless {
		st.flag("headless_browser")
		return verdict(models.ClassBad, 0, "Headless browser detected", st)
	}
	if dev.IsFakeMobile {
		st.flag("fake_mobile")
		return verdict(models.ClassBad, 0, "Fake mobile device detected", st)
	}

	// 6-9: IP reputation signals, one upstream lookup at most.
	rep := e.reputation(ctx, st)
	if rep.IsVPN {
		st.flag("vpn_detected")
		return verdict(models.ClassBad, 5, fmt.Sprintf("VPN detected (%s)", orgLabel(rep)), st)
	}
	if rep.IsTor {
		st.flag("tor_exit")
		return verdict(models.ClassBad, 0, "Tor exit node detected", st)
	}
	if rep.IsDatacenter {
		st.flag("datacenter_ip")
		return verdict(models.ClassBad, 10, fmt.Sprintf("Datacenter IP detected (%s)", orgLabel(rep)), st)
	}
	if rep.IsMobileCarrier {
		st.flag("carrier_ip")
		return verdict(models.ClassGood, 95, "Mobile carrier IP, trusted network", st)
	}

	// 10: behavioral scoring for everything that survived the cascade.
	return e.scoreBehavior(st, rep)
}

// scoreBehavior runs the Behavior Analyzer and blends the weighted
// composite. The composite is reported as the score, but the label comes
// from the unadjusted behavior tier alone: this stage deliberately never
// returns BAD, biasing ambiguous residential traffic toward review
// instead of a block.
func (e *Engine) scoreBehavior(st *evalState, rep models.IPReputation) *models.FraudResult {
	dev := st.req.Fingerprint.Device
	assessment := AnalyzeBehavior(dev.Type, st.req.Behavior)
	if assessment.Flag != "" {
		st.flag(assessment.Flag)
	}

	behaviorScore := assessment.Score
	if isHighRiskBrowser(dev.Browser) {
		st.flag("high_risk_browser")
		behaviorScore -= highRiskBrowserPenalty
		if behaviorScore < 0 {
			behaviorScore = 0
		}
	}

	composite := int(math.Round(
		ipWeight*float64(ipComponent(rep)) +
			deviceWeight*float64(deviceComponent(dev)) +
			behaviorWeight*float64(behaviorScore),
	))

	cls := models.ClassWarn
	if assessment.Score >= 80 {
		cls = models.ClassGood
	}

	return verdict(cls, composite, assessment.Reason, st)
}

// ipComponent maps reputation facets to a fixed trust value for the
// composite. Unclassified traffic is assumed residential.
func ipComponent(rep models.IPReputation) int {
	switch {
	case rep.IsMobileCarrier:
		return 95
	case rep.IsVPN, rep.IsTor:
		return 0
	case rep.IsDatacenter:
		return 10
	case rep.IsProxy:
		return 20
	default:
		return 80
	}
}

func deviceComponent(dev models.Device) int {
	if dev.IsFakeMobile || dev.IsAutomated {
		return 0
	}
	return 80
}

func isHighRiskBrowser(browser string) bool {
	b := strings.ToLower(browser)
	if b == "" {
		return false
	}
	for _, kw := range highRiskBrowsers {
		if strings.Contains(b, kw) {
			return true
		}
	}
	return false
}

func orgLabel(rep models.IPReputation) string {
	if rep.Org != "" {
		return rep.Org
	}
	if rep.ISP != "" {
		return rep.ISP
	}
	return "unknown org"
}

func verdict(cls models.Classification, score int, reason string, st *evalState) *models.FraudResult {
	return &models.FraudResult{
		Classification: cls,
		Score:          score,
		Reason:         reason,
		Flags:          st.flags,
	}
}

// lookupOverride absorbs repository errors into "no override": a failed
// list read must never change the verdict path beyond skipping rules 1-2.
func (e *Engine) lookupOverride(ctx context.Context, ip string) models.OverrideType {
	if e.overrides == nil || ip == "" {
		return models.OverrideNone
	}
	kind, err := e.overrides.LookupEntry(ctx, ip)
	if err != nil {
		logger.Warnf("override lookup failed for %s: %v", ip, err)
		return models.OverrideNone
	}
	return kind
}

// publishAudit emits exactly one audit record per invocation, async and
// fire-and-forget. Persistence failures are logged and swallowed.
func (e *Engine) publishAudit(requestID string, req *models.CheckRequest, res *models.FraudResult) {
	rec := models.CheckRecord{
		RequestID:      requestID,
		IP:             req.IP,
		DeviceType:     req.Fingerprint.Device.Type,
		Browser:        req.Fingerprint.Device.Browser,
		IsAutomated:    req.Fingerprint.Device.IsAutomated,
		IsHeadless:     req.Fingerprint.Device.IsHeadless,
		IsFakeMobile:   req.Fingerprint.Device.IsFakeMobile,
		MouseMoves:     req.Behavior.MouseMoves,
		TouchEvents:    req.Behavior.TouchEvents,
		Classification: res.Classification,
		Score:          res.Score,
		Reason:         res.Reason,
		Flags:          res.Flags,
		CreatedAt:      time.Now().UTC(),
	}

	if e.shipper != nil {
		e.shipper.Publish(rec)
	}
	if e.audit != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.audit.RecordCheck(ctx, rec); err != nil {
				logger.Errorf("audit write failed for %s: %v", requestID, err)
			}
		}()
	}
}
