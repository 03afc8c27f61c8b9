package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/equinoxcap/investor-portal-backend/internal/model"
)

// FormulaRepository provides data access methods for formula templates,
// deal variable values, formula assignments, and the calculation audit log.
type FormulaRepository struct {
	db *sql.DB
}

// NewFormulaRepository creates a new FormulaRepository with the provided database connection.
func NewFormulaRepository(db *sql.DB) *FormulaRepository {
	return &FormulaRepository{db: db}
}

const templateColumns = `
	id, code, name, description, nc_formula, investor_proceeds_formula,
	investor_proceeds_discount_formula, partner_proceeds_formula,
	partner_proceeds_discount_formula, has_dual_mgmt_fee, has_premium,
	has_structuring, has_other_fees, has_partner_tranche,
	mgmt_fee_split_year, is_active, created_at, updated_at
`

// ListTemplates retrieves formula templates sorted by code. Inactive
// templates are excluded unless includeInactive is set.
func (s *FormulaRepository) ListTemplates(includeInactive bool) ([]model.FormulaTemplate, error) {
	templateQuery := `
		SELECT ` + templateColumns + `
		FROM formula_template
	`
	if !includeInactive {
		templateQuery += `
		WHERE is_active = 1
		`
	}
	templateQuery += `
		ORDER BY code ASC
	`

	rows, err := s.db.Query(templateQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query formula_template table: %w", err)
	}
	defer rows.Close()

	templates := []model.FormulaTemplate{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating formula_template table: %w", err)
	}

	return templates, nil
}

// GetTemplate retrieves a single formula template by ID.
// Returns a zero-value FormulaTemplate if the template does not exist.
func (s *FormulaRepository) GetTemplate(templateID string) (model.FormulaTemplate, error) {
	templateQuery := `
		SELECT ` + templateColumns + `
		FROM formula_template
		WHERE id = ?
	`

	t, err := scanTemplate(s.db.QueryRow(templateQuery, templateID))
	if err == sql.ErrNoRows {
		return model.FormulaTemplate{}, nil
	}
	if err != nil {
		return t, err
	}
	return t, nil
}

// GetTemplateByCode retrieves a single formula template by its code.
// Returns a zero-value FormulaTemplate if the template does not exist.
func (s *FormulaRepository) GetTemplateByCode(code string) (model.FormulaTemplate, error) {
	templateQuery := `
		SELECT ` + templateColumns + `
		FROM formula_template
		WHERE code = ?
	`

	t, err := scanTemplate(s.db.QueryRow(templateQuery, code))
	if err == sql.ErrNoRows {
		return model.FormulaTemplate{}, nil
	}
	if err != nil {
		return t, err
	}
	return t, nil
}

// CreateTemplate inserts a formula template and returns it with its
// assigned ID and timestamps.
func (s *FormulaRepository) CreateTemplate(t model.FormulaTemplate) (model.FormulaTemplate, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	insertQuery := `
		INSERT INTO formula_template (` + templateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(insertQuery,
		t.ID,
		t.Code,
		t.Name,
		t.Description,
		t.NCFormula,
		t.InvestorProceedsFormula,
		t.InvestorProceedsDiscountFormula,
		t.PartnerProceedsFormula,
		t.PartnerProceedsDiscountFormula,
		t.HasDualMgmtFee,
		t.HasPremium,
		t.HasStructuring,
		t.HasOtherFees,
		t.HasPartnerTranche,
		t.MgmtFeeSplitYear,
		t.IsActive,
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return t, fmt.Errorf("failed to insert into formula_template table: %w", err)
	}

	return t, nil
}

// UpdateTemplate overwrites the mutable fields of a formula template.
func (s *FormulaRepository) UpdateTemplate(t model.FormulaTemplate) error {
	updateQuery := `
		UPDATE formula_template
		SET code = ?, name = ?, description = ?,
			nc_formula = ?, investor_proceeds_formula = ?,
			investor_proceeds_discount_formula = ?, partner_proceeds_formula = ?,
			partner_proceeds_discount_formula = ?, has_dual_mgmt_fee = ?,
			has_premium = ?, has_structuring = ?, has_other_fees = ?,
			has_partner_tranche = ?, mgmt_fee_split_year = ?, is_active = ?,
			updated_at = ?
		WHERE id = ?
	`

	_, err := s.db.Exec(updateQuery,
		t.Code,
		t.Name,
		t.Description,
		t.NCFormula,
		t.InvestorProceedsFormula,
		t.InvestorProceedsDiscountFormula,
		t.PartnerProceedsFormula,
		t.PartnerProceedsDiscountFormula,
		t.HasDualMgmtFee,
		t.HasPremium,
		t.HasStructuring,
		t.HasOtherFees,
		t.HasPartnerTranche,
		t.MgmtFeeSplitYear,
		t.IsActive,
		time.Now().UTC().Format(time.RFC3339),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update formula_template table: %w", err)
	}
	return nil
}

// DeactivateTemplate soft-deletes a template. Templates are never removed
// so historical audit rows keep a valid reference.
func (s *FormulaRepository) DeactivateTemplate(templateID string) error {
	updateQuery := `
		UPDATE formula_template
		SET is_active = 0, updated_at = ?
		WHERE id = ?
	`

	_, err := s.db.Exec(updateQuery, time.Now().UTC().Format(time.RFC3339), templateID)
	if err != nil {
		return fmt.Errorf("failed to update formula_template table: %w", err)
	}
	return nil
}

// GetDealVariables retrieves the variable values applicable to a deal and
// optional investor: deal-level rows (investor IS NULL) plus, when an
// investor is given, that investor's overrides. Rows are sorted so later
// effective dates come last; resolution takes the last value per code.
func (s *FormulaRepository) GetDealVariables(dealID int, investorID *int) ([]model.DealVariableValue, error) {
	variableQuery := `
		SELECT deal_id, investor_id, variable_code, value, effective_date, source
		FROM deal_variable_value
		WHERE deal_id = ? AND (investor_id IS NULL OR investor_id = ?)
		ORDER BY investor_id IS NULL DESC, effective_date ASC
	`

	rows, err := s.db.Query(variableQuery, dealID, investorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deal_variable_value table: %w", err)
	}
	defer rows.Close()

	values := []model.DealVariableValue{}
	for rows.Next() {
		var v model.DealVariableValue
		var invID sql.NullInt64
		var effectiveDateStr string

		err := rows.Scan(
			&v.DealID,
			&invID,
			&v.VariableCode,
			&v.Value,
			&effectiveDateStr,
			&v.Source,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deal_variable_value table results: %w", err)
		}

		if invID.Valid {
			id := int(invID.Int64)
			v.InvestorID = &id
		}
		v.EffectiveDate, err = ParseTime(effectiveDateStr)
		if err != nil || v.EffectiveDate.IsZero() {
			return nil, fmt.Errorf("failed to parse date: %w", err)
		}

		values = append(values, v)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deal_variable_value table: %w", err)
	}

	return values, nil
}

// UpsertVariable writes one variable value, replacing any existing row for
// the same (deal, investor, code, effective date). Deal-level rows carry a
// NULL investor_id, which the composite UNIQUE treats as always distinct,
// so the conflict target names the partial index matching the row's scope.
func (s *FormulaRepository) UpsertVariable(v model.DealVariableValue) error {
	upsertQuery := `
		INSERT INTO deal_variable_value (deal_id, investor_id, variable_code, value, effective_date, source)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(deal_id, investor_id, variable_code, effective_date) WHERE investor_id IS NOT NULL DO UPDATE SET
			value = excluded.value,
			source = excluded.source
	`
	if v.InvestorID == nil {
		upsertQuery = `
			INSERT INTO deal_variable_value (deal_id, investor_id, variable_code, value, effective_date, source)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(deal_id, variable_code, effective_date) WHERE investor_id IS NULL DO UPDATE SET
				value = excluded.value,
				source = excluded.source
		`
	}

	_, err := s.db.Exec(upsertQuery,
		v.DealID,
		v.InvestorID,
		v.VariableCode,
		v.Value,
		v.EffectiveDate.Format("2006-01-02"),
		v.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert into deal_variable_value table: %w", err)
	}
	return nil
}

// AssignFormula appends a new assignment row for a deal and deactivates the
// previous active row in the same transaction. History rows are never
// mutated beyond the is_active flip.
func (s *FormulaRepository) AssignFormula(a model.FormulaAssignment) (model.FormulaAssignment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.IsActive = true
	a.CreatedAt = time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return a, fmt.Errorf("failed to begin assignment transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`UPDATE deal_formula_assignment SET is_active = 0 WHERE deal_id = ? AND is_active = 1`, a.DealID)
	if err != nil {
		return a, fmt.Errorf("failed to deactivate prior assignment: %w", err)
	}

	insertQuery := `
		INSERT INTO deal_formula_assignment (id, deal_id, formula_template_id, effective_date, is_active, created_at)
		VALUES (?, ?, ?, ?, 1, ?)
	`

	_, err = tx.Exec(insertQuery,
		a.ID,
		a.DealID,
		a.FormulaTemplateID,
		a.EffectiveDate.Format("2006-01-02"),
		a.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return a, fmt.Errorf("failed to insert into deal_formula_assignment table: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return a, fmt.Errorf("failed to commit assignment: %w", err)
	}
	return a, nil
}

// GetActiveAssignment retrieves a deal's current formula assignment.
// The second return is false when the deal has no active assignment.
func (s *FormulaRepository) GetActiveAssignment(dealID int) (model.FormulaAssignment, bool, error) {
	assignmentQuery := `
		SELECT id, deal_id, formula_template_id, effective_date, is_active, created_at
		FROM deal_formula_assignment
		WHERE deal_id = ? AND is_active = 1
	`

	a, err := scanAssignment(s.db.QueryRow(assignmentQuery, dealID))
	if err == sql.ErrNoRows {
		return model.FormulaAssignment{}, false, nil
	}
	if err != nil {
		return a, false, err
	}
	return a, true, nil
}

// GetAssignmentHistory retrieves every assignment row for a deal, newest
// first.
func (s *FormulaRepository) GetAssignmentHistory(dealID int) ([]model.FormulaAssignment, error) {
	historyQuery := `
		SELECT id, deal_id, formula_template_id, effective_date, is_active, created_at
		FROM deal_formula_assignment
		WHERE deal_id = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(historyQuery, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deal_formula_assignment table: %w", err)
	}
	defer rows.Close()

	assignments := []model.FormulaAssignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deal_formula_assignment table: %w", err)
	}

	return assignments, nil
}

// InsertAudit appends one write-once calculation audit row.
func (s *FormulaRepository) InsertAudit(a model.CalculationAudit) (model.CalculationAudit, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CalculatedAt.IsZero() {
		a.CalculatedAt = time.Now().UTC()
	}

	snapshotBytes, err := json.Marshal(a.VariablesSnapshot)
	if err != nil {
		return a, fmt.Errorf("failed to encode variables snapshot: %w", err)
	}
	detailsBytes, err := json.Marshal(a.ResultDetails)
	if err != nil {
		return a, fmt.Errorf("failed to encode result details: %w", err)
	}

	insertQuery := `
		INSERT INTO calculation_audit_log (
			id, deal_id, investor_id, transaction_id, calculation_type,
			formula_template_id, formula_used, variables_snapshot, result,
			result_details, calculated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(insertQuery,
		a.ID,
		a.DealID,
		a.InvestorID,
		a.TransactionID,
		a.CalculationType,
		a.FormulaTemplateID,
		a.FormulaUsed,
		string(snapshotBytes),
		a.Result,
		string(detailsBytes),
		a.CalculatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return a, fmt.Errorf("failed to insert into calculation_audit_log table: %w", err)
	}

	return a, nil
}

// GetAuditHistory retrieves the most recent audit rows for a deal, newest
// first, capped at limit.
func (s *FormulaRepository) GetAuditHistory(dealID int, limit int) ([]model.CalculationAudit, error) {
	if limit <= 0 {
		limit = 50
	}

	auditQuery := `
		SELECT id, deal_id, investor_id, transaction_id, calculation_type,
			formula_template_id, formula_used, variables_snapshot, result,
			result_details, calculated_at
		FROM calculation_audit_log
		WHERE deal_id = ?
		ORDER BY calculated_at DESC
		LIMIT ?
	`

	rows, err := s.db.Query(auditQuery, dealID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query calculation_audit_log table: %w", err)
	}
	defer rows.Close()

	audits := []model.CalculationAudit{}
	for rows.Next() {
		var a model.CalculationAudit
		var invID, txID sql.NullInt64
		var snapshotStr, detailsStr, calculatedAtStr string

		err := rows.Scan(
			&a.ID,
			&a.DealID,
			&invID,
			&txID,
			&a.CalculationType,
			&a.FormulaTemplateID,
			&a.FormulaUsed,
			&snapshotStr,
			&a.Result,
			&detailsStr,
			&calculatedAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calculation_audit_log table results: %w", err)
		}

		if invID.Valid {
			id := int(invID.Int64)
			a.InvestorID = &id
		}
		if txID.Valid {
			id := int(txID.Int64)
			a.TransactionID = &id
		}
		if err := json.Unmarshal([]byte(snapshotStr), &a.VariablesSnapshot); err != nil {
			return nil, fmt.Errorf("failed to decode variables snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(detailsStr), &a.ResultDetails); err != nil {
			return nil, fmt.Errorf("failed to decode result details: %w", err)
		}
		a.CalculatedAt, err = ParseTime(calculatedAtStr)
		if err != nil || a.CalculatedAt.IsZero() {
			return nil, fmt.Errorf("failed to parse date: %w", err)
		}

		audits = append(audits, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating calculation_audit_log table: %w", err)
	}

	return audits, nil
}

func scanTemplate(row scanner) (model.FormulaTemplate, error) {
	var t model.FormulaTemplate
	var description, partnerFormula, partnerDiscountFormula sql.NullString
	var splitYear sql.NullInt64
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&t.ID,
		&t.Code,
		&t.Name,
		&description,
		&t.NCFormula,
		&t.InvestorProceedsFormula,
		&t.InvestorProceedsDiscountFormula,
		&partnerFormula,
		&partnerDiscountFormula,
		&t.HasDualMgmtFee,
		&t.HasPremium,
		&t.HasStructuring,
		&t.HasOtherFees,
		&t.HasPartnerTranche,
		&splitYear,
		&t.IsActive,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return t, err
	}
	if err != nil {
		return t, fmt.Errorf("failed to scan formula_template table results: %w", err)
	}

	t.Description = description.String
	t.PartnerProceedsFormula = partnerFormula.String
	t.PartnerProceedsDiscountFormula = partnerDiscountFormula.String
	if splitYear.Valid {
		year := int(splitYear.Int64)
		t.MgmtFeeSplitYear = &year
	}

	t.CreatedAt, err = ParseTime(createdAtStr)
	if err != nil || t.CreatedAt.IsZero() {
		return t, fmt.Errorf("failed to parse date: %w", err)
	}
	t.UpdatedAt, err = ParseTime(updatedAtStr)
	if err != nil || t.UpdatedAt.IsZero() {
		return t, fmt.Errorf("failed to parse date: %w", err)
	}

	return t, nil
}

func scanAssignment(row scanner) (model.FormulaAssignment, error) {
	var a model.FormulaAssignment
	var effectiveDateStr, createdAtStr string

	err := row.Scan(
		&a.ID,
		&a.DealID,
		&a.FormulaTemplateID,
		&effectiveDateStr,
		&a.IsActive,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return a, err
	}
	if err != nil {
		return a, fmt.Errorf("failed to scan deal_formula_assignment table results: %w", err)
	}

	a.EffectiveDate, err = ParseTime(effectiveDateStr)
	if err != nil || a.EffectiveDate.IsZero() {
		return a, fmt.Errorf("failed to parse date: %w", err)
	}
	a.CreatedAt, err = ParseTime(createdAtStr)
	if err != nil || a.CreatedAt.IsZero() {
		return a, fmt.Errorf("failed to parse date: %w", err)
	}

	return a, nil
}
