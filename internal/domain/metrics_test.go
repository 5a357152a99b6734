package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- EMA tests ---

func TestEMAWeights(t *testing.T) {
	// One fold from a known pair pins the 0.9/0.1 weights exactly.
	assert.InDelta(t, 90.0, EMA(100, 0), 1e-9)
	assert.InDelta(t, 10.0, EMA(0, 100), 1e-9)
	assert.InDelta(t, 55.0, EMA(55, 55), 1e-9)
}

func TestEMAStaysBounded(t *testing.T) {
	tests := []struct {
		name        string
		old, sample float64
	}{
		{"rising", 10, 90},
		{"falling", 90, 10},
		{"equal", 42, 42},
		{"from zero", 0, 100},
		{"to zero", 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EMA(tt.old, tt.sample)
			assert.GreaterOrEqual(t, got, min(tt.old, tt.sample))
			assert.LessOrEqual(t, got, max(tt.old, tt.sample))
		})
	}
}

// --- Apply discipline tests ---

func TestSalesApplyDisciplines(t *testing.T) {
	m := NewMetrics(DomainSales).(*SalesMetrics)
	require.Equal(t, StatusIdle, m.Status)
	require.Equal(t, 100.0, m.SuccessRate)

	m.Apply(Sample{
		FieldLeadsGenerated: 3,
		FieldDealsClosed:    1,
		FieldPipelineValue:  120000,
		FieldConversionRate: 30,
	})
	m.Apply(Sample{
		FieldLeadsGenerated: 2,
		FieldPipelineValue:  80000,
		FieldConversionRate: 30,
	})

	// Counters accumulate.
	assert.Equal(t, int64(5), m.LeadsGenerated)
	assert.Equal(t, int64(1), m.DealsClosed)
	// Snapshots overwrite.
	assert.Equal(t, 80000.0, m.PipelineValue)
	// Rates move by EMA from zero: 3.0 then 5.7.
	assert.InDelta(t, 5.7, m.ConversionRate, 1e-9)
}

func TestApplyIgnoresNegativeAndUnknownFields(t *testing.T) {
	m := NewMetrics(DomainSales).(*SalesMetrics)
	m.Apply(Sample{FieldDealsClosed: 4})

	m.Apply(Sample{
		FieldDealsClosed:   -2,
		FieldHealthScore:   90, // belongs to the success domain
		Field("mystery"):   1,
		FieldPipelineValue: 120000,
	})

	assert.Equal(t, int64(4), m.DealsClosed)
	assert.Equal(t, 120000.0, m.PipelineValue)
}

func TestBaseApplySharedFields(t *testing.T) {
	m := NewMetrics(DomainMarketing)
	m.Apply(Sample{FieldSuccessRate: 80, FieldResponseTime: 200})

	base := m.Base()
	assert.InDelta(t, 98.0, base.SuccessRate, 1e-9) // 100*0.9 + 80*0.1
	assert.InDelta(t, 20.0, base.AvgResponseTime, 1e-9)
}

func TestRecordFailureAndSuccess(t *testing.T) {
	m := NewMetrics(DomainOperations)
	base := m.Base()
	now := time.Now()

	base.RecordFailure(now)
	base.RecordFailure(now)
	assert.Equal(t, int64(2), base.ErrorCount)
	assert.Equal(t, 2, base.ConsecutiveFailures)
	assert.InDelta(t, 81.0, base.SuccessRate, 1e-9) // 100 → 90 → 81

	base.RecordSuccess(now)
	assert.Equal(t, 0, base.ConsecutiveFailures)
	// Error count is monotonic.
	assert.Equal(t, int64(2), base.ErrorCount)
}

// --- Factory and clone tests ---

func TestNewMetricsPerDomain(t *testing.T) {
	for _, d := range Domains() {
		m := NewMetrics(d)
		require.NotNil(t, m, "domain %s", d)
		assert.Equal(t, d, m.Domain())
		assert.Equal(t, StatusIdle, m.Base().Status)
	}
	assert.Nil(t, NewMetrics(Domain("astrology")))
}

func TestCloneIsIndependent(t *testing.T) {
	m := NewMetrics(DomainSales).(*SalesMetrics)
	m.Apply(Sample{FieldPipelineValue: 120000, FieldDealsClosed: 2})

	c := m.Clone().(*SalesMetrics)
	c.Apply(Sample{FieldPipelineValue: 1, FieldDealsClosed: 10})
	c.Base().Status = StatusError

	assert.Equal(t, 120000.0, m.PipelineValue)
	assert.Equal(t, int64(2), m.DealsClosed)
	assert.Equal(t, StatusIdle, m.Base().Status)
}

func TestMetricsJSONShape(t *testing.T) {
	m := NewMetrics(DomainSales).(*SalesMetrics)
	m.Apply(Sample{FieldPipelineValue: 120000})

	raw, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	// Embedded base fields flatten next to the domain fields.
	assert.Equal(t, "idle", decoded["status"])
	assert.Equal(t, 120000.0, decoded["pipelineValue"])
	assert.Contains(t, decoded, "successRate")
	assert.Contains(t, decoded, "consecutiveFailures")
}
