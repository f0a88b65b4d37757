package telemetry

import (
	"context"
	"expvar"
	"strings"
	"sync"
	"time"

	"github.com/ideaforge-io/ideaforge/internal/common"
)

var (
	initOnce sync.Once

	gatewayRequests *expvar.Int
	gatewayRetries  *expvar.Int
	gatewayFailures *expvar.Map

	parseFallbacks *expvar.Map

	ideasGenerated *expvar.Int
	ideasRefined   *expvar.Int

	sessionsStarted   *expvar.Int
	sessionsFinalized *expvar.Int
	sessionsSwept     *expvar.Int

	flushTotal     *expvar.Int
	flushConflicts *expvar.Int
	flushFallbacks *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		gatewayRequests = expvar.NewInt("ideaforge_gateway_requests_total")
		gatewayRetries = expvar.NewInt("ideaforge_gateway_retries_total")
		gatewayFailures = expvar.NewMap("ideaforge_gateway_failures_total")

		parseFallbacks = expvar.NewMap("ideaforge_parse_fallbacks_total")

		ideasGenerated = expvar.NewInt("ideaforge_ideas_generated_total")
		ideasRefined = expvar.NewInt("ideaforge_ideas_refined_total")

		sessionsStarted = expvar.NewInt("ideaforge_sessions_started_total")
		sessionsFinalized = expvar.NewInt("ideaforge_sessions_finalized_total")
		sessionsSwept = expvar.NewInt("ideaforge_sessions_swept_total")

		flushTotal = expvar.NewInt("ideaforge_flush_total")
		flushConflicts = expvar.NewInt("ideaforge_flush_conflicts_total")
		flushFallbacks = expvar.NewInt("ideaforge_flush_fallbacks_total")
	})
}

type spanKey struct{}

type span struct {
	name  string
	start time.Time
}

// StartSpan records a debug-level trace span. The returned func closes the
// span and logs its duration together with any extra attributes.
func StartSpan(ctx context.Context, name string) (context.Context, func(attrs ...interface{})) {
	ensureInit()
	sp := &span{name: name, start: time.Now()}
	ctx = context.WithValue(ctx, spanKey{}, sp)
	logger := common.Logger()
	logger.Debug("trace: start", "span", name)
	return ctx, func(attrs ...interface{}) {
		logger.Debug("trace: end", append([]interface{}{"span", name, "dur", time.Since(sp.start)}, attrs...)...)
	}
}

func RecordGatewayRequest(retries int) {
	ensureInit()
	gatewayRequests.Add(1)
	if retries > 0 {
		gatewayRetries.Add(int64(retries))
	}
}

func RecordGatewayFailure(kind string) {
	ensureInit()
	gatewayFailures.Add(normalizeKey(kind), 1)
}

func RecordParseFallback(operation string) {
	ensureInit()
	parseFallbacks.Add(normalizeKey(operation), 1)
}

func RecordIdeas(count int) {
	ensureInit()
	if count > 0 {
		ideasGenerated.Add(int64(count))
	}
}

func RecordRefinement() {
	ensureInit()
	ideasRefined.Add(1)
}

func RecordSessionStarted() {
	ensureInit()
	sessionsStarted.Add(1)
}

func RecordSessionFinalized(swept bool) {
	ensureInit()
	sessionsFinalized.Add(1)
	if swept {
		sessionsSwept.Add(1)
	}
}

func RecordFlush(conflicts int, usedFallback bool) {
	ensureInit()
	flushTotal.Add(1)
	if conflicts > 0 {
		flushConflicts.Add(int64(conflicts))
	}
	if usedFallback {
		flushFallbacks.Add(1)
	}
}

func normalizeKey(key string) string {
	trimmed := strings.TrimSpace(strings.ToLower(key))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
