package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/air593-booking/internal/resilience"
)

func TestBreakerMetricsTransitions(t *testing.T) {
	resilience.BreakerState.Reset()
	resilience.BreakerTransitions.Reset()
	resilience.BreakerOpenedTotal.Reset()

	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Target:      "remote",
		MinRequests: 1,
		OpenFor:     20 * time.Millisecond,
	})
	ctx := context.Background()
	require.Equal(t, 0.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("remote")))

	done, err := breaker.Allow(ctx)
	require.NoError(t, err)
	done(false)
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("remote")))

	var probe func(bool)
	require.Eventually(t, func() bool {
		probe, err = breaker.Allow(ctx)
		return err == nil
	}, 200*time.Millisecond, 5*time.Millisecond)
	require.Equal(t, 2.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("remote")))

	probe(true)
	require.Equal(t, 0.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("remote")))

	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerOpenedTotal.WithLabelValues("remote")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("remote", "closed", "open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("remote", "open", "half-open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("remote", "half-open", "closed")))
}
