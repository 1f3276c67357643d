package entity

import (
	"github.com/shopspring/decimal"
)

// Request is the record assembled by the request-submission wizard.
// Conditional fields (Amount, Currency, DueDate) only apply to cost-bearing request types.
type Request struct {
	RequestType           string            `json:"requestType"`
	Title                 string            `json:"title"`
	Description           string            `json:"description"`
	Category              string            `json:"category"`
	TargetDepartment      string            `json:"targetDepartment"`
	BusinessJustification string            `json:"businessJustification"`
	Priority              string            `json:"priority"`
	Amount                *decimal.Decimal  `json:"amount,omitempty"`
	Currency              string            `json:"currency,omitempty"`
	DueDate               string            `json:"dueDate,omitempty"`
	RequesterInfo         RequesterInfo     `json:"requesterInfo"`
	DepartmentDetails     DepartmentDetails `json:"departmentDetails"`
	Documents             []Document        `json:"documents"`
	AdditionalNotes       string            `json:"additionalNotes"`
}

// RequesterInfo identifies the employee raising the request
type RequesterInfo struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	EmployeeID string `json:"employeeId"`
	Position   string `json:"position"`
	Department string `json:"department"`
	Phone      string `json:"phone"`
}

// DepartmentDetails routes the request to a manager of the target department
type DepartmentDetails struct {
	TargetDepartment string `json:"targetDepartment"`
	ManagerName      string `json:"managerName"`
	ManagerEmail     string `json:"managerEmail"`
}

// NewRequest returns the empty record a request flow starts from
func NewRequest() Request {
	return Request{
		Priority:  PriorityNormal,
		Documents: []Document{},
	}
}

// IsCostBearing reports whether the request type carries amount, currency and due date
func IsCostBearing(requestType string) bool {
	return costBearingTypes[requestType]
}
