package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/impactrefresh/pkg/observability"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	ctx := context.Background()

	c.OnRunStart(ctx, "a1", 3, 7)
	c.OnJobStart(ctx, "crossref", "biblio")
	c.OnJobComplete(ctx, "crossref", "biblio", "completed", 50*time.Millisecond)
	c.OnJobComplete(ctx, "crossref", "biblio", "dropped", time.Millisecond)
	c.OnThrottle(ctx, "pubmed", 200*time.Millisecond)
	c.OnCacheHit(ctx, "crossref")
	c.OnCacheMiss(ctx, "crossref")
	c.OnCacheSet(ctx, "crossref", 512)
	c.OnResponse(ctx, "GET", "api.crossref.org", "/works", 200, time.Second)
	c.OnError(ctx, "GET", "api.crossref.org", "/works", context.DeadlineExceeded)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsStarted))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.jobsPlanned))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobOutcomes.WithLabelValues("crossref", "biblio", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobOutcomes.WithLabelValues("crossref", "biblio", "dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.throttles.WithLabelValues("pubmed")))
	assert.Equal(t, 512.0, testutil.ToFloat64(c.cacheBytes.WithLabelValues("crossref")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("api.crossref.org", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpErrors.WithLabelValues("api.crossref.org")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestInstall(t *testing.T) {
	defer observability.Reset()

	c := NewCollector(prometheus.NewRegistry())
	c.Install()

	assert.Same(t, c, observability.Jobs())
	assert.Same(t, c, observability.Cache())
	assert.Same(t, c, observability.HTTP())
}
