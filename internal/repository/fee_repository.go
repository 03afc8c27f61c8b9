package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/equinoxcap/investor-portal-backend/internal/model"
)

// FeeRepository provides data access methods for fee profiles, staged CSV
// imports, archived import files, and applied fee records.
type FeeRepository struct {
	db *sql.DB
}

// NewFeeRepository creates a new FeeRepository with the provided database connection.
func NewFeeRepository(db *sql.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// TransactionFeeUpdate carries the recomputed fee fields written back to a
// transaction when an import is applied.
type TransactionFeeUpdate struct {
	TransactionID         int
	ManagementFeePercent  float64
	PerformanceFeePercent float64
	StructuringFeePercent float64
	PremiumFeePercent     float64
	AdminFee              float64
}

// GetProfileForDeal retrieves the fee profile for a deal: a deal-specific
// profile wins over the deal-type default. The second return is false when
// neither exists.
func (s *FeeRepository) GetProfileForDeal(dealID int, dealType model.DealType) (model.FeeProfile, bool, error) {
	profileQuery := `
		SELECT id, name, kind, deal_type, config
		FROM fee_calculator_profile
		WHERE deal_id = ? OR (deal_id IS NULL AND deal_type = ?)
		ORDER BY deal_id IS NULL ASC
		LIMIT 1
	`

	var p model.FeeProfile
	var configStr string
	err := s.db.QueryRow(profileQuery, dealID, dealType).Scan(
		&p.ID,
		&p.Name,
		&p.Kind,
		&p.DealType,
		&configStr,
	)
	if err == sql.ErrNoRows {
		return model.FeeProfile{}, false, nil
	}
	if err != nil {
		return p, false, fmt.Errorf("failed to scan fee_calculator_profile table results: %w", err)
	}

	if err := json.Unmarshal([]byte(configStr), &p.Config); err != nil {
		return p, false, fmt.Errorf("failed to decode fee profile config: %w", err)
	}

	return p, true, nil
}

// CreateProfile inserts a fee profile. A nil dealID makes it the default
// profile for its deal type; otherwise it overrides for that one deal.
func (s *FeeRepository) CreateProfile(p model.FeeProfile, dealID *int) (model.FeeProfile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	configBytes, err := json.Marshal(p.Config)
	if err != nil {
		return p, fmt.Errorf("failed to encode fee profile config: %w", err)
	}

	insertQuery := `
		INSERT INTO fee_calculator_profile (id, deal_id, name, kind, deal_type, config, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(insertQuery,
		p.ID,
		dealID,
		p.Name,
		p.Kind,
		p.DealType,
		string(configBytes),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return p, fmt.Errorf("failed to insert into fee_calculator_profile table: %w", err)
	}

	return p, nil
}

// StageImport inserts validated CSV rows under one import ID, replacing any
// rows previously staged under that ID.
func (s *FeeRepository) StageImport(importID string, rows []model.CSVImportRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin staging transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM fee_legacy_import WHERE import_id = ?`, importID); err != nil {
		return fmt.Errorf("failed to clear staged import rows: %w", err)
	}

	insertQuery := `
		INSERT INTO fee_legacy_import (
			id, import_id, deal_id, transaction_id, component, basis,
			percent, amount, notes, source_file, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC().Format(time.RFC3339)
	for _, row := range rows {
		var basis any
		if row.Basis != "" {
			basis = string(row.Basis)
		}
		_, err := tx.Exec(insertQuery,
			uuid.NewString(),
			importID,
			row.DealID,
			row.TransactionID,
			row.Component,
			basis,
			row.Percent,
			row.Amount,
			row.Notes,
			row.SourceFile,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert into fee_legacy_import table: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit staged import: %w", err)
	}
	return nil
}

// GetStagedRows retrieves the rows staged under one import ID.
func (s *FeeRepository) GetStagedRows(importID string) ([]model.CSVImportRow, error) {
	stagedQuery := `
		SELECT deal_id, transaction_id, component, basis, percent, amount, notes, source_file
		FROM fee_legacy_import
		WHERE import_id = ?
		ORDER BY deal_id ASC, transaction_id ASC
	`

	rows, err := s.db.Query(stagedQuery, importID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fee_legacy_import table: %w", err)
	}
	defer rows.Close()

	staged := []model.CSVImportRow{}
	for rows.Next() {
		var r model.CSVImportRow
		var transactionID sql.NullInt64
		var basis, notes, sourceFile sql.NullString
		var percent, amount sql.NullFloat64

		err := rows.Scan(
			&r.DealID,
			&transactionID,
			&r.Component,
			&basis,
			&percent,
			&amount,
			&notes,
			&sourceFile,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fee_legacy_import table results: %w", err)
		}

		if transactionID.Valid {
			id := int(transactionID.Int64)
			r.TransactionID = &id
		}
		if basis.Valid {
			r.Basis = model.FeeBasis(basis.String)
		}
		if percent.Valid {
			r.Percent = &percent.Float64
		}
		if amount.Valid {
			r.Amount = &amount.Float64
		}
		r.Notes = notes.String
		r.SourceFile = sourceFile.String

		staged = append(staged, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fee_legacy_import table: %w", err)
	}

	return staged, nil
}

// SaveImportFile archives the raw uploaded file content (already encrypted
// by the caller) under the import ID.
func (s *FeeRepository) SaveImportFile(importID, filename string, content []byte) error {
	insertQuery := `
		INSERT INTO fee_import_file (id, filename, content, uploaded_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.Exec(insertQuery, importID, filename, content, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert into fee_import_file table: %w", err)
	}
	return nil
}

// GetImportFile retrieves an archived import file. Returns empty values if
// the file does not exist.
func (s *FeeRepository) GetImportFile(importID string) (string, []byte, error) {
	var filename string
	var content []byte
	err := s.db.QueryRow(`SELECT filename, content FROM fee_import_file WHERE id = ?`, importID).
		Scan(&filename, &content)
	if err == sql.ErrNoRows {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to scan fee_import_file table results: %w", err)
	}
	return filename, content, nil
}

// ApplyImport atomically persists the outcome of applying a staged import:
// fee application records are upserted per target, transaction fee fields
// are overwritten, and the staged rows are cleared. Either everything
// commits or nothing does.
func (s *FeeRepository) ApplyImport(importID string, records []model.FeeApplicationRecord, updates []TransactionFeeUpdate) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin apply transaction: %w", err)
	}
	defer tx.Rollback()

	// The conflict target must name the partial index that covers the row's
	// shape, so transaction-level and deal-level records take different paths.
	transactionUpsert := `
		INSERT INTO fee_application_record (
			id, transaction_id, deal_id, component, amount, percent, notes, applied, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_id, deal_id, component) WHERE transaction_id IS NOT NULL DO UPDATE SET
			amount = excluded.amount,
			percent = excluded.percent,
			notes = excluded.notes,
			applied = excluded.applied,
			updated_at = excluded.updated_at
	`

	dealUpsert := `
		INSERT INTO fee_application_record (
			id, transaction_id, deal_id, component, amount, percent, notes, applied, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(deal_id, component) WHERE transaction_id IS NULL DO UPDATE SET
			amount = excluded.amount,
			percent = excluded.percent,
			notes = excluded.notes,
			applied = excluded.applied,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		upsertQuery := transactionUpsert
		if r.TransactionID == nil {
			upsertQuery = dealUpsert
		}
		_, err := tx.Exec(upsertQuery,
			r.ID,
			r.TransactionID,
			r.DealID,
			r.Component,
			r.Amount,
			r.Percent,
			r.Notes,
			r.Applied,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert into fee_application_record table: %w", err)
		}
	}

	updateQuery := `
		UPDATE "transaction"
		SET management_fee_percent = ?,
			performance_fee_percent = ?,
			structuring_fee_percent = ?,
			premium_fee_percent = ?,
			admin_fee = ?
		WHERE id = ?
	`

	for _, u := range updates {
		_, err := tx.Exec(updateQuery,
			u.ManagementFeePercent,
			u.PerformanceFeePercent,
			u.StructuringFeePercent,
			u.PremiumFeePercent,
			u.AdminFee,
			u.TransactionID,
		)
		if err != nil {
			return fmt.Errorf("failed to update transaction table: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM fee_legacy_import WHERE import_id = ?`, importID); err != nil {
		return fmt.Errorf("failed to clear staged import rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit applied import: %w", err)
	}
	return nil
}

// GetApplicationRecords retrieves all applied fee records for a deal,
// sorted by transaction and component.
func (s *FeeRepository) GetApplicationRecords(dealID int) ([]model.FeeApplicationRecord, error) {
	recordQuery := `
		SELECT id, transaction_id, deal_id, component, amount, percent, notes, applied, created_at, updated_at
		FROM fee_application_record
		WHERE deal_id = ?
		ORDER BY transaction_id ASC, component ASC
	`

	rows, err := s.db.Query(recordQuery, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fee_application_record table: %w", err)
	}
	defer rows.Close()

	records := []model.FeeApplicationRecord{}
	for rows.Next() {
		var r model.FeeApplicationRecord
		var transactionID sql.NullInt64
		var notes sql.NullString
		var createdAtStr, updatedAtStr string

		err := rows.Scan(
			&r.ID,
			&transactionID,
			&r.DealID,
			&r.Component,
			&r.Amount,
			&r.Percent,
			&notes,
			&r.Applied,
			&createdAtStr,
			&updatedAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fee_application_record table results: %w", err)
		}

		if transactionID.Valid {
			id := int(transactionID.Int64)
			r.TransactionID = &id
		}
		r.Notes = notes.String
		r.CreatedAt, err = ParseTime(createdAtStr)
		if err != nil || r.CreatedAt.IsZero() {
			return nil, fmt.Errorf("failed to parse date: %w", err)
		}
		r.UpdatedAt, err = ParseTime(updatedAtStr)
		if err != nil || r.UpdatedAt.IsZero() {
			return nil, fmt.Errorf("failed to parse date: %w", err)
		}

		records = append(records, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fee_application_record table: %w", err)
	}

	return records, nil
}
