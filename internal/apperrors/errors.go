package apperrors

import "errors"

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrDealNotFound indicates that a deal with the given ID does not exist.
	ErrDealNotFound = errors.New("deal not found")

	// ErrTransactionNotFound indicates that a transaction with the given ID does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrFeeProfileNotFound indicates that no fee profile exists for the deal.
	ErrFeeProfileNotFound = errors.New("fee profile not found")

	// ErrFormulaTemplateNotFound indicates that a formula template does not exist.
	ErrFormulaTemplateNotFound = errors.New("formula template not found")

	// ErrNoFormulaAssigned indicates that a deal has no active formula assignment.
	ErrNoFormulaAssigned = errors.New("no formula assigned to deal")
)

// Business logic errors represent validation failures or constraint violations.
// These errors indicate that an operation cannot be completed due to business rules.
var (
	// ErrInvalidFormula indicates that a formula string failed syntactic validation.
	ErrInvalidFormula = errors.New("invalid formula")

	// ErrInvalidProfile indicates that a fee profile configuration failed validation.
	ErrInvalidProfile = errors.New("invalid fee profile configuration")

	// ErrInvalidUUID indicates that a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")

	// ErrInvalidDealID indicates that a deal ID is missing or not a positive integer.
	ErrInvalidDealID = errors.New("deal ID must be a positive integer")

	// ErrInvalidTransactionID indicates that a transaction ID is missing or not a positive integer.
	ErrInvalidTransactionID = errors.New("transaction ID must be a positive integer")

	// ErrEmptyID indicates that a required ID parameter is empty or missing.
	ErrEmptyID = errors.New("ID cannot be empty")

	// ErrInvalidCSVHeaders indicates that an uploaded CSV is missing required columns.
	ErrInvalidCSVHeaders = errors.New("invalid CSV headers")

	// ErrImportNotValid indicates that imported fees cannot be applied because
	// the staged rows failed validation.
	ErrImportNotValid = errors.New("import contains validation errors")
)

// Operation failure errors represent system-level failures when retrieving or
// processing data. These errors indicate that an operation failed, but not due
// to missing entities or validation issues.
var (
	// Fee operation errors
	ErrFailedToRetrieveProfile  = errors.New("failed to retrieve fee profile")
	ErrFailedToCalculateFees    = errors.New("failed to calculate fees")
	ErrFailedToImportFees       = errors.New("failed to import fees")
	ErrFailedToApplyFees        = errors.New("failed to apply imported fees")
	ErrFailedToRetrieveFees     = errors.New("failed to retrieve fee records")
	ErrFailedToCreateProfile    = errors.New("failed to create fee profile")

	// Formula operation errors
	ErrFailedToRetrieveTemplates = errors.New("failed to retrieve formula templates")
	ErrFailedToSaveTemplate      = errors.New("failed to save formula template")
	ErrFailedToRetrieveVariables = errors.New("failed to retrieve deal variables")
	ErrFailedToSaveVariables     = errors.New("failed to save deal variables")
	ErrFailedToAssignFormula     = errors.New("failed to assign formula to deal")
	ErrFailedToCalculate         = errors.New("failed to calculate deal economics")
	ErrFailedToRetrieveAudit     = errors.New("failed to retrieve calculation history")

	// Transaction operation errors
	ErrFailedToCreateTransaction   = errors.New("failed to create transaction")
	ErrFailedToRetrieveTransaction = errors.New("failed to retrieve transaction")

	// System operation errors
	ErrFailedToGetVersionInfo = errors.New("failed to get version information")
)
