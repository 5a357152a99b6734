package domain

// Status is the lifecycle state of an agent.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusActive Status = "active"
	StatusError  Status = "error"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusActive, StatusError:
		return true
	}
	return false
}

// Domain identifies the business function an agent automates.
type Domain string

const (
	DomainSales      Domain = "sales"
	DomainMarketing  Domain = "marketing"
	DomainSuccess    Domain = "success"
	DomainExecutive  Domain = "executive"
	DomainOperations Domain = "operations"
)

// Domains lists every known domain in display order.
func Domains() []Domain {
	return []Domain{DomainSales, DomainMarketing, DomainSuccess, DomainExecutive, DomainOperations}
}

// Valid reports whether d is a known domain.
func (d Domain) Valid() bool {
	switch d {
	case DomainSales, DomainMarketing, DomainSuccess, DomainExecutive, DomainOperations:
		return true
	}
	return false
}
