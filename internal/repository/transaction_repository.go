package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/equinoxcap/investor-portal-backend/internal/model"
)

// TransactionRepository provides data access methods for the transaction table.
// It handles creating investor subscriptions and retrieving them for fee
// calculation and recalculation.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository creates a new TransactionRepository with the provided database connection.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `
	id, deal_id, investor_id, date, units, unit_price, gross_capital,
	initial_net_capital, management_fee_percent, performance_fee_percent,
	structuring_fee_percent, premium_fee_percent, admin_fee, created_at
`

// GetTransaction retrieves a single transaction by ID.
// Returns a zero-value Transaction if the transaction does not exist.
func (s *TransactionRepository) GetTransaction(transactionID int) (model.Transaction, error) {
	transactionQuery := `
		SELECT ` + transactionColumns + `
		FROM "transaction"
		WHERE id = ?
	`

	row := s.db.QueryRow(transactionQuery, transactionID)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return model.Transaction{}, nil
	}
	if err != nil {
		return t, err
	}

	return t, nil
}

// GetTransactionsByDeal retrieves all transactions for a deal, sorted by
// date in ascending order.
func (s *TransactionRepository) GetTransactionsByDeal(dealID int) ([]model.Transaction, error) {
	transactionQuery := `
		SELECT ` + transactionColumns + `
		FROM "transaction"
		WHERE deal_id = ?
		ORDER BY date ASC
	`

	rows, err := s.db.Query(transactionQuery, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction table: %w", err)
	}
	defer rows.Close()

	transactions := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction table: %w", err)
	}

	return transactions, nil
}

// CreateTransaction inserts a new transaction and returns its assigned ID.
func (s *TransactionRepository) CreateTransaction(t model.Transaction) (int, error) {
	insertQuery := `
		INSERT INTO "transaction" (
			deal_id, investor_id, date, units, unit_price, gross_capital,
			initial_net_capital, management_fee_percent, performance_fee_percent,
			structuring_fee_percent, premium_fee_percent, admin_fee, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(insertQuery,
		t.DealID,
		t.InvestorID,
		t.Date.Format("2006-01-02"),
		t.Units,
		t.UnitPrice,
		t.GrossCapital,
		t.InitialNetCapital,
		t.ManagementFeePercent,
		t.PerformanceFeePercent,
		t.StructuringFeePercent,
		t.PremiumFeePercent,
		t.AdminFee,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into transaction table: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted transaction ID: %w", err)
	}
	return int(id), nil
}

// UpdateTransactionFees overwrites the persisted fee fields of a
// transaction after a recalculation.
func (s *TransactionRepository) UpdateTransactionFees(transactionID int, managementFeePercent, performanceFeePercent, structuringFeePercent, premiumFeePercent, adminFee float64) error {
	updateQuery := `
		UPDATE "transaction"
		SET management_fee_percent = ?,
			performance_fee_percent = ?,
			structuring_fee_percent = ?,
			premium_fee_percent = ?,
			admin_fee = ?
		WHERE id = ?
	`

	_, err := s.db.Exec(updateQuery,
		managementFeePercent,
		performanceFeePercent,
		structuringFeePercent,
		premiumFeePercent,
		adminFee,
		transactionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction table: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (model.Transaction, error) {
	var t model.Transaction
	var dateStr, createdAtStr string
	var initialNetCapital sql.NullFloat64

	err := row.Scan(
		&t.ID,
		&t.DealID,
		&t.InvestorID,
		&dateStr,
		&t.Units,
		&t.UnitPrice,
		&t.GrossCapital,
		&initialNetCapital,
		&t.ManagementFeePercent,
		&t.PerformanceFeePercent,
		&t.StructuringFeePercent,
		&t.PremiumFeePercent,
		&t.AdminFee,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return t, err
	}
	if err != nil {
		return t, fmt.Errorf("failed to scan transaction table results: %w", err)
	}

	t.Date, err = ParseTime(dateStr)
	if err != nil || t.Date.IsZero() {
		return t, fmt.Errorf("failed to parse date: %w", err)
	}

	t.CreatedAt, err = ParseTime(createdAtStr)
	if err != nil || t.CreatedAt.IsZero() {
		return t, fmt.Errorf("failed to parse date: %w", err)
	}

	// initial_net_capital is nullable
	if initialNetCapital.Valid {
		t.InitialNetCapital = &initialNetCapital.Float64
	}

	return t, nil
}
