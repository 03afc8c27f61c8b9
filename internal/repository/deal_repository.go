package repository

import (
	"database/sql"
	"fmt"

	"github.com/equinoxcap/investor-portal-backend/internal/model"
)

// DealRepository provides data access methods for the deal table.
type DealRepository struct {
	db *sql.DB
}

// NewDealRepository creates a new DealRepository with the provided database connection.
func NewDealRepository(db *sql.DB) *DealRepository {
	return &DealRepository{db: db}
}

// GetDeal retrieves a single deal by ID.
// Returns a zero-value Deal if the deal does not exist.
func (s *DealRepository) GetDeal(dealID int) (model.Deal, error) {
	dealQuery := `
		SELECT id, name, category, deal_type
		FROM deal
		WHERE id = ?
	`

	var d model.Deal
	err := s.db.QueryRow(dealQuery, dealID).Scan(
		&d.ID,
		&d.Name,
		&d.Category,
		&d.DealType,
	)
	if err == sql.ErrNoRows {
		return model.Deal{}, nil
	}
	if err != nil {
		return d, fmt.Errorf("failed to scan deal table results: %w", err)
	}

	return d, nil
}

// ListDealIDs returns the IDs of all deals, sorted ascending. Used by the
// nightly recalculation job to walk every deal.
func (s *DealRepository) ListDealIDs() ([]int, error) {
	rows, err := s.db.Query(`SELECT id FROM deal ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query deal table: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan deal table results: %w", err)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deal table: %w", err)
	}

	return ids, nil
}
