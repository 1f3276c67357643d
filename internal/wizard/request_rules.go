package wizard

import (
	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
	"github.com/garyjia/backoffice-wizard/pkg/utils"
)

// Request record field paths
const (
	FieldRequestType           = "requestType"
	FieldTitle                 = "title"
	FieldDescription           = "description"
	FieldTargetDepartment      = "targetDepartment"
	FieldAmount                = "amount"
	FieldCurrency              = "currency"
	FieldDueDate               = "dueDate"
	FieldBusinessJustification = "businessJustification"
	FieldPriority              = "priority"
	FieldDocuments             = "documents"
	FieldManagerDepartment     = "departmentDetails.targetDepartment"
	FieldManagerEmail          = "departmentDetails.managerEmail"
	FieldManagerName           = "departmentDetails.managerName"
)

// Minimum lengths, in characters
const (
	MinDescriptionLength   = 20
	MinJustificationLength = 50
)

// costBearing reports whether the record's request type carries cost fields
func costBearing(r Record) bool {
	return entity.IsCostBearing(text(r.Get(FieldRequestType)))
}

// RequestRules builds the request-submission rule catalog. The documents
// section is advisory and has no rules.
func RequestRules(roster *entity.Roster) *RuleSet {
	return NewRuleSet().
		Section(SectionType,
			Required(FieldRequestType, "Request type is required"),
			OneOf(FieldRequestType, entity.RequestTypes, "Unknown request type"),
		).
		Section(SectionRequester,
			Required("requesterInfo.name", "Name is required"),
			Required("requesterInfo.employeeId", "Employee ID is required"),
			Required("requesterInfo.email", "Email is required"),
			Pattern("requesterInfo.email", utils.EmailPattern, "Please enter a valid email address"),
			Required("requesterInfo.position", "Position is required"),
			Required("requesterInfo.department", "Department is required"),
		).
		Section(SectionDetails,
			Required(FieldTitle, "Title is required"),
			Required(FieldDescription, "Description is required"),
			MinLength(FieldDescription, MinDescriptionLength, "Description must be at least 20 characters"),
			Required(FieldTargetDepartment, "Target department is required"),
			When(costBearing,
				Required(FieldAmount, "Amount is required"),
				PositiveDecimal(FieldAmount, "Amount must be a positive number"),
				Required(FieldCurrency, "Currency is required"),
				OneOf(FieldCurrency, entity.Currencies, "Unsupported currency"),
				Date(FieldDueDate, "Due date must be a valid date (YYYY-MM-DD)"),
			),
			InRoster(FieldManagerDepartment, FieldManagerEmail, roster,
				"Selected manager does not belong to the target department"),
		).
		Section(SectionJustification,
			Required(FieldBusinessJustification, "Business justification is required"),
			MinLength(FieldBusinessJustification, MinJustificationLength,
				"Business justification must be at least 50 characters"),
		).
		Section(SectionPriority,
			Required(FieldPriority, "Priority is required"),
			OneOf(FieldPriority, entity.Priorities, "Priority must be one of critical, high, normal, low"),
		)
}
