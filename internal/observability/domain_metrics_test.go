package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveAssistantRequestCountsByTypeAndStatus(t *testing.T) {
	before := testutil.ToFloat64(assistantRequestsTotal.WithLabelValues("database", "success"))
	ObserveAssistantRequest("database", "success", 120*time.Millisecond)
	after := testutil.ToFloat64(assistantRequestsTotal.WithLabelValues("database", "success"))
	if after-before != 1 {
		t.Fatalf("counter delta = %v, want 1", after-before)
	}
}

func TestIncrementSQLBlockedUsesReasonLabel(t *testing.T) {
	before := testutil.ToFloat64(sqlBlockedTotal.WithLabelValues("forbidden_keyword"))
	IncrementSQLBlocked("forbidden_keyword")
	IncrementSQLBlocked("forbidden_keyword")
	after := testutil.ToFloat64(sqlBlockedTotal.WithLabelValues("forbidden_keyword"))
	if after-before != 2 {
		t.Fatalf("counter delta = %v, want 2", after-before)
	}
}
