package metrics

import (
	"strconv"

	"github.com/roomgate/roomgate/internal/observability"
)

// Domain metrics following Prometheus conventions
const (
	RateLimitDecisionsTotal = "ratelimit_decisions_total"
	RateLimitDegradedTotal  = "ratelimit_degraded_total"
	TokensMintedTotal       = "room_tokens_minted_total"
	ProviderCallsTotal      = "provider_calls_total"
	SyntheticReadsTotal     = "room_synthetic_reads_total"
	StatusWritesTotal       = "status_writes_total"

	ServerStartTime = "app_server_start_time_seconds"
)

// RecordRateLimitDecision counts an admission decision per category.
func RecordRateLimitDecision(category string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitDecisionsTotal,
			1,
			map[string]string{
				"category": category,
				"outcome":  outcome,
			},
		)
	}
}

// RecordRateLimitDegraded counts checks admitted without the counter store.
func RecordRateLimitDegraded(category string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitDegradedTotal,
			1,
			map[string]string{"category": category},
		)
	}
}

// RecordTokenMinted counts issued capability tokens.
func RecordTokenMinted(roomType string, canPublish bool) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			TokensMintedTotal,
			1,
			map[string]string{
				"room_type":   roomType,
				"can_publish": strconv.FormatBool(canPublish),
			},
		)
	}
}

// RecordProviderCall counts realtime provider RPCs by method and outcome.
func RecordProviderCall(method string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ProviderCallsTotal,
			1,
			map[string]string{
				"method": method,
				"status": status,
			},
		)
	}
}

// RecordSyntheticRead counts room reads answered with synthetic occupancy.
func RecordSyntheticRead(operation string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			SyntheticReadsTotal,
			1,
			map[string]string{"operation": operation},
		)
	}
}

// RecordStatusWrite counts flag writes by kind and resulting state.
func RecordStatusWrite(kind string, active bool) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			StatusWritesTotal,
			1,
			map[string]string{
				"kind":   kind,
				"active": strconv.FormatBool(active),
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}
