package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"doughline/internal/domain"
)

type FormulationFilters struct {
	OwnerID         string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) InsertFormulation(ctx context.Context, tx *sql.Tx, f domain.FormulationRecord) error {
	req, err := json.Marshal(f.Request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	res, err := json.Marshal(f.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = r.on(tx).ExecContext(ctx, `INSERT INTO formulations(id,owner_id,request_json,result_json,created_at) VALUES (?,?,?,?,?)`,
		f.ID, f.OwnerRef, string(req), string(res), f.CreatedAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFormulation(row rowScanner) (domain.FormulationRecord, error) {
	var f domain.FormulationRecord
	var req, res string
	if err := row.Scan(&f.ID, &f.OwnerRef, &req, &res, &f.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return f, ErrNotFound
		}
		return f, err
	}
	if err := json.Unmarshal([]byte(req), &f.Request); err != nil {
		return f, fmt.Errorf("decode formulation %s request: %w", f.ID, err)
	}
	if err := json.Unmarshal([]byte(res), &f.Result); err != nil {
		return f, fmt.Errorf("decode formulation %s result: %w", f.ID, err)
	}
	return f, nil
}

func (r Repo) GetFormulation(ctx context.Context, id string) (domain.FormulationRecord, error) {
	return scanFormulation(r.DB.QueryRowContext(ctx, `SELECT id,owner_id,request_json,result_json,created_at FROM formulations WHERE id=?`, id))
}

// ListFormulations returns newest first, paging with a (created_at, id) cursor.
func (r Repo) ListFormulations(ctx context.Context, f FormulationFilters) ([]domain.FormulationRecord, error) {
	var clauses []string
	var args []any
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id=?")
		args = append(args, f.OwnerID)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT id,owner_id,request_json,result_json,created_at FROM formulations ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.FormulationRecord
	for rows.Next() {
		rec, err := scanFormulation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
