package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("project not found")

// Status is the lifecycle state of an infrastructure project. Upstream
// data sources are inconsistent about casing, so inputs are matched
// case-insensitively and stored in canonical casing.
type Status string

const (
	StatusCompleted     Status = "Completed"
	StatusOnGoing       Status = "On-Going"
	StatusNotYetStarted Status = "Not Yet Started"
	StatusSuspended     Status = "Suspended"
	StatusTerminated    Status = "Terminated"
)

var canonicalStatuses = []Status{
	StatusCompleted,
	StatusOnGoing,
	StatusNotYetStarted,
	StatusSuspended,
	StatusTerminated,
}

// ParseStatus matches s against the canonical set, ignoring case and
// surrounding whitespace. The second return is false when s matches
// nothing; callers must not default silently.
func ParseStatus(s string) (Status, bool) {
	trimmed := strings.TrimSpace(s)
	for _, c := range canonicalStatuses {
		if strings.EqualFold(trimmed, string(c)) {
			return c, true
		}
	}
	return "", false
}

// Statuses returns the canonical status set, in display order.
func Statuses() []Status {
	out := make([]Status, len(canonicalStatuses))
	copy(out, canonicalStatuses)
	return out
}

// Project is a validated, normalized infrastructure-project record.
// ContractID is the persistence key: storing a project with an existing
// ContractID overwrites the prior row (last write wins).
type Project struct {
	ContractID         string          `json:"contractId"`
	ContractName       string          `json:"contractName"`
	Contractors        []string        `json:"contractor"`
	ImplementingOffice string          `json:"implementingOffice"`
	ContractCost       decimal.Decimal `json:"contractCost"`
	EffectivityDate    string          `json:"contractEffectivityDate"`
	ExpiryDate         string          `json:"contractExpiryDate"`
	Status             Status          `json:"status"`
	Accomplishment     int             `json:"accomplishmentInPercentage"`
	Region             string          `json:"region"`
	Province           string          `json:"province"`
	Municipality       string          `json:"municipality"`
	Barangay           string          `json:"barangay"`
	UpdatedAt          time.Time       `json:"updated_at,omitempty"`
}

// ListFilter narrows project reads for the dashboard table.
type ListFilter struct {
	Region string
	Status Status
	Limit  int
	Offset int
}

// Summary aggregates the table for the dashboard charts.
type Summary struct {
	TotalProjects int             `json:"total_projects"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	ByStatus      map[Status]int  `json:"by_status"`
	ByRegion      map[string]int  `json:"by_region"`
}
