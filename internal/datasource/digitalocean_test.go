package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/digitalocean/godo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndrewDell/3AI/internal/domain"
)

// dropletServer serves a static droplet inventory in the DigitalOcean API
// shape and lets tests grow the fleet between polls.
func dropletServer(t *testing.T) (*DropletSource, *[]string) {
	t.Helper()

	statuses := []string{"active", "off"}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/droplets" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"droplets":[`)
		for i, st := range statuses {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"id":%d,"name":"node-%d","status":%q}`, i+1, i+1, st)
		}
		fmt.Fprint(w, `],"links":{},"meta":{"total":`, len(statuses), `}}`)
	}))
	t.Cleanup(ts.Close)

	client, err := godo.New(&http.Client{}, godo.SetBaseURL(ts.URL))
	require.NoError(t, err)
	return NewDropletSourceWithClient(client), &statuses
}

func TestDropletSourceSurvey(t *testing.T) {
	src, _ := dropletServer(t)

	sample, err := src.Survey(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 100.0, sample[domain.FieldSuccessRate])
	assert.Equal(t, 2.0, sample[domain.FieldWorkflowsActive])
	assert.Equal(t, 50.0, sample[domain.FieldResourceUtilization])
	assert.Equal(t, 50.0, sample[domain.FieldServiceHealth])
	// Survey never moves counters.
	assert.NotContains(t, sample, domain.FieldTasksExecuted)
}

func TestDropletSourceTaskCountsGrowth(t *testing.T) {
	src, statuses := dropletServer(t)
	ctx := context.Background()

	// First task poll primes the baseline without a delta.
	sample, err := src.Task(ctx)
	require.NoError(t, err)
	assert.NotContains(t, sample, domain.FieldTasksExecuted)

	*statuses = append(*statuses, "active", "active")

	sample, err = src.Task(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, sample[domain.FieldTasksExecuted])
	assert.Equal(t, 4.0, sample[domain.FieldWorkflowsActive])
	assert.InDelta(t, 75.0, sample[domain.FieldResourceUtilization], 1e-9)
}

func TestDropletSourceAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"id":"unauthorized","message":"Unable to authenticate you"}`)
	}))
	t.Cleanup(ts.Close)

	client, err := godo.New(&http.Client{}, godo.SetBaseURL(ts.URL))
	require.NoError(t, err)
	src := NewDropletSourceWithClient(client)

	_, err = src.Survey(context.Background())
	require.Error(t, err)

	var se *SourceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
}

func TestDropletSourceEmptyAccount(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"droplets":[],"links":{},"meta":{"total":0}}`)
	}))
	t.Cleanup(ts.Close)

	client, err := godo.New(&http.Client{}, godo.SetBaseURL(ts.URL))
	require.NoError(t, err)
	src := NewDropletSourceWithClient(client)

	sample, err := src.Task(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, sample[domain.FieldWorkflowsActive])
	assert.NotContains(t, sample, domain.FieldResourceUtilization)
}
