package domain

import "time"

// EMA weights for rate fields. Every rate fold is
// new = old*EMAOldWeight + sample*EMASampleWeight.
const (
	EMAOldWeight    = 0.9
	EMASampleWeight = 0.1
)

// EMA folds a sample into a running exponential moving average.
func EMA(old, sample float64) float64 {
	return old*EMAOldWeight + sample*EMASampleWeight
}

// Field names a single measurable quantity produced by a work step.
type Field string

// Fields shared by every domain.
const (
	FieldSuccessRate  Field = "successRate"
	FieldResponseTime Field = "responseTime"
)

// Sales fields.
const (
	FieldLeadsGenerated Field = "leadsGenerated"
	FieldLeadsQualified Field = "leadsQualified"
	FieldDealsClosed    Field = "dealsClosed"
	FieldPipelineValue  Field = "pipelineValue"
	FieldConversionRate Field = "conversionRate"
)

// Marketing fields.
const (
	FieldCampaignsActive  Field = "campaignsActive"
	FieldContentGenerated Field = "contentGenerated"
	FieldLeadsAttributed  Field = "leadsAttributed"
	FieldEngagementRate   Field = "engagementRate"
)

// Customer success fields.
const (
	FieldCustomersMonitored Field = "customersMonitored"
	FieldTicketsResolved    Field = "ticketsResolved"
	FieldUpsellsIdentified  Field = "upsellsIdentified"
	FieldHealthScore        Field = "healthScore"
	FieldChurnRate          Field = "churnRate"
)

// Executive fields.
const (
	FieldReportsGenerated  Field = "reportsGenerated"
	FieldMeetingsScheduled Field = "meetingsScheduled"
	FieldEmailsProcessed   Field = "emailsProcessed"
	FieldEmailsPending     Field = "emailsPending"
	FieldPendingApprovals  Field = "pendingApprovals"
)

// Operations fields.
const (
	FieldTasksExecuted       Field = "tasksExecuted"
	FieldIncidentsResolved   Field = "incidentsResolved"
	FieldWorkflowsActive     Field = "workflowsActive"
	FieldResourceUtilization Field = "resourceUtilization"
	FieldServiceHealth       Field = "serviceHealth"
)

// Sample is the output of one produce-activity step. Fields the target
// metrics type does not know are ignored.
type Sample map[Field]float64

// Metrics is the typed metrics document of one agent. Concrete types exist
// per domain; all embed BaseMetrics.
type Metrics interface {
	// Base exposes the common slice shared by every domain.
	Base() *BaseMetrics
	// Domain reports which business function these metrics describe.
	Domain() Domain
	// Apply folds one sample in: counters accumulate, rates move by EMA,
	// snapshots overwrite.
	Apply(s Sample)
	// Clone returns an independent deep copy.
	Clone() Metrics
}

// NewMetrics returns the initial metrics document for a domain, status idle.
// Unknown domains yield nil.
func NewMetrics(d Domain) Metrics {
	base := BaseMetrics{Status: StatusIdle, SuccessRate: 100}
	switch d {
	case DomainSales:
		return &SalesMetrics{BaseMetrics: base}
	case DomainMarketing:
		return &MarketingMetrics{BaseMetrics: base}
	case DomainSuccess:
		return &SuccessMetrics{BaseMetrics: base}
	case DomainExecutive:
		return &ExecutiveMetrics{BaseMetrics: base}
	case DomainOperations:
		return &OperationsMetrics{BaseMetrics: base}
	}
	return nil
}

// BaseMetrics is the common slice of every agent's metrics.
type BaseMetrics struct {
	Status              Status    `json:"status"`
	SuccessRate         float64   `json:"successRate"`
	AvgResponseTime     float64   `json:"avgResponseTime"`
	ErrorCount          int64     `json:"errorCount"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastActivity        time.Time `json:"lastActivity"`
}

func (b *BaseMetrics) apply(s Sample) {
	b.SuccessRate = rate(b.SuccessRate, s, FieldSuccessRate)
	b.AvgResponseTime = rate(b.AvgResponseTime, s, FieldResponseTime)
}

// RecordSuccess resets the failure streak after a successful work step.
func (b *BaseMetrics) RecordSuccess(now time.Time) {
	b.ConsecutiveFailures = 0
	b.LastActivity = now
}

// RecordFailure accounts for one failed work step and drags the success
// rate toward zero.
func (b *BaseMetrics) RecordFailure(now time.Time) {
	b.ErrorCount++
	b.ConsecutiveFailures++
	b.SuccessRate = EMA(b.SuccessRate, 0)
	b.LastActivity = now
}

// SalesMetrics tracks the sales pipeline agent.
type SalesMetrics struct {
	BaseMetrics
	LeadsGenerated int64   `json:"leadsGenerated"`
	LeadsQualified int64   `json:"leadsQualified"`
	DealsClosed    int64   `json:"dealsClosed"`
	PipelineValue  float64 `json:"pipelineValue"`
	ConversionRate float64 `json:"conversionRate"`
}

func (m *SalesMetrics) Base() *BaseMetrics { return &m.BaseMetrics }
func (m *SalesMetrics) Domain() Domain     { return DomainSales }
func (m *SalesMetrics) Clone() Metrics     { c := *m; return &c }

func (m *SalesMetrics) Apply(s Sample) {
	m.BaseMetrics.apply(s)
	m.LeadsGenerated = counter(m.LeadsGenerated, s, FieldLeadsGenerated)
	m.LeadsQualified = counter(m.LeadsQualified, s, FieldLeadsQualified)
	m.DealsClosed = counter(m.DealsClosed, s, FieldDealsClosed)
	m.PipelineValue = snapshot(m.PipelineValue, s, FieldPipelineValue)
	m.ConversionRate = rate(m.ConversionRate, s, FieldConversionRate)
}

// MarketingMetrics tracks the campaign automation agent.
type MarketingMetrics struct {
	BaseMetrics
	CampaignsActive  int64   `json:"campaignsActive"`
	ContentGenerated int64   `json:"contentGenerated"`
	LeadsAttributed  int64   `json:"leadsAttributed"`
	EngagementRate   float64 `json:"engagementRate"`
}

func (m *MarketingMetrics) Base() *BaseMetrics { return &m.BaseMetrics }
func (m *MarketingMetrics) Domain() Domain     { return DomainMarketing }
func (m *MarketingMetrics) Clone() Metrics     { c := *m; return &c }

func (m *MarketingMetrics) Apply(s Sample) {
	m.BaseMetrics.apply(s)
	m.CampaignsActive = snapshotCount(m.CampaignsActive, s, FieldCampaignsActive)
	m.ContentGenerated = counter(m.ContentGenerated, s, FieldContentGenerated)
	m.LeadsAttributed = counter(m.LeadsAttributed, s, FieldLeadsAttributed)
	m.EngagementRate = rate(m.EngagementRate, s, FieldEngagementRate)
}

// SuccessMetrics tracks the customer success agent.
type SuccessMetrics struct {
	BaseMetrics
	CustomersMonitored int64   `json:"customersMonitored"`
	TicketsResolved    int64   `json:"ticketsResolved"`
	UpsellsIdentified  int64   `json:"upsellsIdentified"`
	HealthScore        float64 `json:"healthScore"`
	ChurnRate          float64 `json:"churnRate"`
}

func (m *SuccessMetrics) Base() *BaseMetrics { return &m.BaseMetrics }
func (m *SuccessMetrics) Domain() Domain     { return DomainSuccess }
func (m *SuccessMetrics) Clone() Metrics     { c := *m; return &c }

func (m *SuccessMetrics) Apply(s Sample) {
	m.BaseMetrics.apply(s)
	m.CustomersMonitored = snapshotCount(m.CustomersMonitored, s, FieldCustomersMonitored)
	m.TicketsResolved = counter(m.TicketsResolved, s, FieldTicketsResolved)
	m.UpsellsIdentified = counter(m.UpsellsIdentified, s, FieldUpsellsIdentified)
	m.HealthScore = rate(m.HealthScore, s, FieldHealthScore)
	m.ChurnRate = rate(m.ChurnRate, s, FieldChurnRate)
}

// ExecutiveMetrics tracks the executive assistant agent.
type ExecutiveMetrics struct {
	BaseMetrics
	ReportsGenerated  int64 `json:"reportsGenerated"`
	MeetingsScheduled int64 `json:"meetingsScheduled"`
	EmailsProcessed   int64 `json:"emailsProcessed"`
	EmailsPending     int64 `json:"emailsPending"`
	PendingApprovals  int64 `json:"pendingApprovals"`
}

func (m *ExecutiveMetrics) Base() *BaseMetrics { return &m.BaseMetrics }
func (m *ExecutiveMetrics) Domain() Domain     { return DomainExecutive }
func (m *ExecutiveMetrics) Clone() Metrics     { c := *m; return &c }

func (m *ExecutiveMetrics) Apply(s Sample) {
	m.BaseMetrics.apply(s)
	m.ReportsGenerated = counter(m.ReportsGenerated, s, FieldReportsGenerated)
	m.MeetingsScheduled = counter(m.MeetingsScheduled, s, FieldMeetingsScheduled)
	m.EmailsProcessed = counter(m.EmailsProcessed, s, FieldEmailsProcessed)
	m.EmailsPending = snapshotCount(m.EmailsPending, s, FieldEmailsPending)
	m.PendingApprovals = snapshotCount(m.PendingApprovals, s, FieldPendingApprovals)
}

// OperationsMetrics tracks the operations automation agent.
type OperationsMetrics struct {
	BaseMetrics
	TasksExecuted       int64   `json:"tasksExecuted"`
	IncidentsResolved   int64   `json:"incidentsResolved"`
	WorkflowsActive     int64   `json:"workflowsActive"`
	ResourceUtilization float64 `json:"resourceUtilization"`
	ServiceHealth       float64 `json:"serviceHealth"`
}

func (m *OperationsMetrics) Base() *BaseMetrics { return &m.BaseMetrics }
func (m *OperationsMetrics) Domain() Domain     { return DomainOperations }
func (m *OperationsMetrics) Clone() Metrics     { c := *m; return &c }

func (m *OperationsMetrics) Apply(s Sample) {
	m.BaseMetrics.apply(s)
	m.TasksExecuted = counter(m.TasksExecuted, s, FieldTasksExecuted)
	m.IncidentsResolved = counter(m.IncidentsResolved, s, FieldIncidentsResolved)
	m.WorkflowsActive = snapshotCount(m.WorkflowsActive, s, FieldWorkflowsActive)
	m.ResourceUtilization = rate(m.ResourceUtilization, s, FieldResourceUtilization)
	m.ServiceHealth = rate(m.ServiceHealth, s, FieldServiceHealth)
}

// counter accumulates a non-negative delta. Missing or negative deltas leave
// the counter untouched.
func counter(cur int64, s Sample, f Field) int64 {
	v, ok := s[f]
	if !ok || v < 0 {
		return cur
	}
	return cur + int64(v)
}

// snapshot overwrites the current value when the field is present.
func snapshot(cur float64, s Sample, f Field) float64 {
	if v, ok := s[f]; ok {
		return v
	}
	return cur
}

// snapshotCount overwrites an integer gauge when the field is present.
func snapshotCount(cur int64, s Sample, f Field) int64 {
	if v, ok := s[f]; ok && v >= 0 {
		return int64(v)
	}
	return cur
}

// rate folds the field into an EMA when present.
func rate(cur float64, s Sample, f Field) float64 {
	if v, ok := s[f]; ok {
		return EMA(cur, v)
	}
	return cur
}
