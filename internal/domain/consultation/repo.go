package consultation

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// NextRevision returns one past the highest approval revision recorded
	// for the treatment record, starting at 1.
	NextRevision(ctx context.Context, recordID uuid.UUID) (int, error)
	// CreateApprovals inserts a batch of approvals sharing one revision.
	CreateApprovals(ctx context.Context, approvals []*ApprovedDiagnosis) error
	// GetApprovals returns the current (highest-revision) approval batch.
	GetApprovals(ctx context.Context, recordID uuid.UUID) ([]*ApprovedDiagnosis, error)
	// GetApprovalHistory returns every approval row ever recorded, newest
	// revision first.
	GetApprovalHistory(ctx context.Context, recordID uuid.UUID) ([]*ApprovedDiagnosis, error)
	CreateDecision(ctx context.Context, d *Decision) error
	// LatestDecision returns the most recent decision row, draft or not.
	LatestDecision(ctx context.Context, recordID uuid.UUID) (*Decision, error)
}
