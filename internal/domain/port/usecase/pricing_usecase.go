package usecase

import "github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"

// RequestShape describes the quantities a priced job will process
type RequestShape struct {
	Pages    int
	Posts    int
	Profiles int
	Comments int
	Items    int
	Model    string // AI model name, only used by AI-driven services
}

// CostCalculator turns a request shape into a credit amount
type CostCalculator interface {
	// ComputeCost returns the cost in hundredths of a credit, rounded up
	ComputeCost(serviceType entity.ServiceType, shape RequestShape) (int64, error)
}
