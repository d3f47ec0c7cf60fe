package entity

import (
	"fmt"
	"strings"

	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
)

// ServiceType identifies a paid feature
type ServiceType string

// Service types
const (
	ServiceNone              ServiceType = ""
	ServiceWebExtraction     ServiceType = "web_extraction"
	ServiceProfileExtraction ServiceType = "profile_extraction"
	ServicePostExtraction    ServiceType = "post_extraction"
	ServiceCommentExtraction ServiceType = "comment_extraction"
	ServiceAIAnalysis        ServiceType = "ai_analysis"
	ServiceAISummary         ServiceType = "ai_summary"
	ServiceExport            ServiceType = "export"
)

var knownServiceTypes = []ServiceType{
	ServiceWebExtraction,
	ServiceProfileExtraction,
	ServicePostExtraction,
	ServiceCommentExtraction,
	ServiceAIAnalysis,
	ServiceAISummary,
	ServiceExport,
}

// ServiceTypes returns every known service type
func ServiceTypes() []ServiceType {
	out := make([]ServiceType, len(knownServiceTypes))
	copy(out, knownServiceTypes)
	return out
}

// ParseServiceType converts a boundary string to a ServiceType, rejecting anything unknown
func ParseServiceType(s string) (ServiceType, error) {
	candidate := ServiceType(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range knownServiceTypes {
		if st == candidate {
			return st, nil
		}
	}
	return ServiceNone, fmt.Errorf("%w: %q", errs.ErrInvalidServiceType, s)
}

// IsValid reports whether the service type belongs to the known set
func (s ServiceType) IsValid() bool {
	for _, st := range knownServiceTypes {
		if st == s {
			return true
		}
	}
	return false
}
