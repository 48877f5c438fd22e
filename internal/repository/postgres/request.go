package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"

	"travelfund-backend/internal/domain"
	"travelfund-backend/internal/repository"
)

const requestColumns = `id, request_number, beneficiary_id, fund_id, requested_amount, approved_amount,
	description, payout_info, status, rejection_reason, review_comments, payment_reference,
	response_deadline, reviewed_by, submitted_at, updated_at`

type requestRepository struct {
	db *sql.DB
}

func NewRequestRepository(db *sql.DB) repository.RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *domain.ReimbursementRequest) error {
	payout, err := json.Marshal(req.PayoutInfo)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO reimbursement_requests (` + requestColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err = tx.ExecContext(ctx, query,
		req.ID, req.RequestNumber, req.BeneficiaryID, req.FundID, req.RequestedAmount, req.ApprovedAmount,
		req.Description, payout, req.Status, nullString(req.RejectionReason), nullString(req.ReviewComments), nullString(req.PaymentReference),
		req.ResponseDeadline, nullString(req.ReviewedBy), req.SubmittedAt, req.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for _, doc := range req.Documents {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO request_documents (id, request_id, file_name, file_url, size_bytes, uploaded_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			doc.ID, req.ID, doc.FileName, doc.FileURL, doc.SizeBytes, doc.UploadedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*domain.ReimbursementRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM reimbursement_requests WHERE id = $1`, id)
	req, err := scanRequest(row)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, request_id, file_name, file_url, size_bytes, uploaded_at FROM request_documents WHERE request_id = $1 ORDER BY uploaded_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var doc domain.RequestDocument
		if err := rows.Scan(&doc.ID, &doc.RequestID, &doc.FileName, &doc.FileURL, &doc.SizeBytes, &doc.UploadedAt); err != nil {
			return nil, err
		}
		req.Documents = append(req.Documents, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	req.Messages, err = r.ListMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Update writes the request back guarded by the status the caller read. The
// predicate makes the write a compare-and-swap: when another writer moved the
// request first, zero rows match and the stale write is discarded.
func (r *requestRepository) Update(ctx context.Context, req *domain.ReimbursementRequest, expected domain.RequestStatus) error {
	query := `UPDATE reimbursement_requests SET
		approved_amount = $2, status = $3, rejection_reason = $4, review_comments = $5,
		payment_reference = $6, reviewed_by = $7, updated_at = $8
	WHERE id = $1 AND status = $9`
	res, err := r.db.ExecContext(ctx, query,
		req.ID, req.ApprovedAmount, req.Status, nullString(req.RejectionReason), nullString(req.ReviewComments),
		nullString(req.PaymentReference), nullString(req.ReviewedBy), req.UpdatedAt, expected)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM reimbursement_requests WHERE id = $1)`, req.ID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrRequestNotFound
		}
		return domain.NewError(domain.CodeInvalidStateTransition,
			"request %s is no longer in %s", req.ID, expected)
	}
	return nil
}

func (r *requestRepository) ExistsByNumber(ctx context.Context, requestNumber string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM reimbursement_requests WHERE request_number = $1)`, requestNumber).Scan(&exists)
	return exists, err
}

func (r *requestRepository) CountByYear(ctx context.Context, year int) (int32, error) {
	var count int32
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM reimbursement_requests WHERE date_part('year', submitted_at) = $1`, year).Scan(&count)
	return count, err
}

func (r *requestRepository) ListByBeneficiary(ctx context.Context, beneficiaryID string, status string, page, pageSize int32) ([]domain.ReimbursementRequest, int32, error) {
	var count int32
	countQuery := `SELECT count(*) FROM reimbursement_requests WHERE beneficiary_id = $1 AND ($2 = '' OR status = $2)`
	if err := r.db.QueryRowContext(ctx, countQuery, beneficiaryID, status).Scan(&count); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + requestColumns + ` FROM reimbursement_requests
	          WHERE beneficiary_id = $1 AND ($2 = '' OR status = $2)
	          ORDER BY submitted_at DESC LIMIT $3 OFFSET $4`
	rows, err := r.db.QueryContext(ctx, query, beneficiaryID, status, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var reqs []domain.ReimbursementRequest
	for rows.Next() {
		req, err := scanRequestRow(rows)
		if err != nil {
			return nil, 0, err
		}
		reqs = append(reqs, *req)
	}
	return reqs, count, rows.Err()
}

func (r *requestRepository) AddMessage(ctx context.Context, msg *domain.RequestMessage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO request_messages (id, request_id, author_id, author_role, text, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.RequestID, msg.AuthorID, msg.AuthorRole, msg.Text, msg.CreatedAt)
	return err
}

func (r *requestRepository) ListMessages(ctx context.Context, requestID string) ([]domain.RequestMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, request_id, author_id, author_role, text, created_at FROM request_messages WHERE request_id = $1 ORDER BY created_at`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.RequestMessage
	for rows.Next() {
		var m domain.RequestMessage
		if err := rows.Scan(&m.ID, &m.RequestID, &m.AuthorID, &m.AuthorRole, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ApproveWithDebit runs the approval as one transaction. The fund row is
// locked with FOR UPDATE so the balance check and the debit cannot interleave
// with a concurrent approval; either every write commits or none does.
func (r *requestRepository) ApproveWithDebit(ctx context.Context, req *domain.ReimbursementRequest, approvedAmount decimal.Decimal, mv *domain.FundMovement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var balance decimal.Decimal
	err = tx.QueryRowContext(ctx, `SELECT balance FROM funds WHERE id = $1 FOR UPDATE`, req.FundID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrFundNotFound
		}
		return err
	}
	if balance.LessThan(approvedAmount) {
		return domain.ErrInsufficientBalance
	}

	newBalance := balance.Sub(approvedAmount)
	_, err = tx.ExecContext(ctx, `UPDATE funds SET balance = $2, updated_at = $3 WHERE id = $1`,
		req.FundID, newBalance, mv.Timestamp)
	if err != nil {
		return err
	}

	mv.BalanceBefore = balance
	mv.BalanceAfter = newBalance
	if err := insertMovement(ctx, tx, mv); err != nil {
		return err
	}

	// The status predicate re-verifies reviewability inside the transaction.
	// Without it two racing approvals of the same request would both pass the
	// service-level check and debit the fund twice.
	res, err := tx.ExecContext(ctx,
		`UPDATE reimbursement_requests SET approved_amount = $2, status = $3, review_comments = $4, reviewed_by = $5, updated_at = $6
		 WHERE id = $1 AND status IN ($7, $8)`,
		req.ID, approvedAmount, domain.RequestStatusApproved, nullString(req.ReviewComments), nullString(req.ReviewedBy), req.UpdatedAt,
		domain.RequestStatusPending, domain.RequestStatusInReview)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.NewError(domain.CodeInvalidStateTransition,
			"request %s is no longer reviewable", req.ID)
	}

	return tx.Commit()
}

func scanRequest(row *sql.Row) (*domain.ReimbursementRequest, error) {
	req, err := scanRequestRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRequestNotFound
	}
	return req, err
}

func scanRequestRow(row rowScanner) (*domain.ReimbursementRequest, error) {
	var req domain.ReimbursementRequest
	var payout []byte
	var rejection, comments, paymentRef, reviewedBy sql.NullString
	err := row.Scan(
		&req.ID, &req.RequestNumber, &req.BeneficiaryID, &req.FundID, &req.RequestedAmount, &req.ApprovedAmount,
		&req.Description, &payout, &req.Status, &rejection, &comments, &paymentRef,
		&req.ResponseDeadline, &reviewedBy, &req.SubmittedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payout, &req.PayoutInfo); err != nil {
		return nil, err
	}
	req.RejectionReason = rejection.String
	req.ReviewComments = comments.String
	req.PaymentReference = paymentRef.String
	req.ReviewedBy = reviewedBy.String
	return &req, nil
}
