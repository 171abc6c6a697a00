// Package workflow validates status transitions for portal records and
// reports the side effects each transition requires. It is pure: it never
// touches persistence and trusts its caller to have performed role checks.
package workflow

import (
	"fmt"

	"github.com/mnhs-portal/registrar-api/internal/models"
	appErrors "github.com/mnhs-portal/registrar-api/pkg/errors"
)

// Kind identifies which record family a transition applies to.
type Kind string

const (
	KindDocumentRequest Kind = "document_request"
	KindEnrollment      Kind = "enrollment"
	KindInquiry         Kind = "inquiry"
)

// Effect names a side effect the caller must apply with the status write.
type Effect string

const (
	// EffectNotifyApplicant asks the caller to dispatch a best-effort
	// email carrying the new status. Delivery failure must not revert
	// the status write.
	EffectNotifyApplicant Effect = "NOTIFY_APPLICANT"
	// EffectSetResolved asks the caller to backfill the resolution
	// timestamp and resolver identity if not already set.
	EffectSetResolved Effect = "SET_RESOLVED"
	// EffectArchive asks the caller to set the archival flag in the same
	// transaction as the status write.
	EffectArchive Effect = "ARCHIVE"
)

var statusSets = map[Kind][]string{
	KindDocumentRequest: {
		string(models.RequestStatusPending),
		string(models.RequestStatusApproved),
		string(models.RequestStatusRejected),
		string(models.RequestStatusCompleted),
	},
	KindEnrollment: {
		string(models.EnrollmentStatusPending),
		string(models.EnrollmentStatusApproved),
		string(models.EnrollmentStatusRejected),
	},
	KindInquiry: {
		string(models.InquiryStatusPending),
		string(models.InquiryStatusInProgress),
		string(models.InquiryStatusResolved),
		string(models.InquiryStatusClosed),
	},
}

// Result describes a validated transition.
type Result struct {
	Target  string
	Effects []Effect
	// NoOp marks a transition whose target equals the current status.
	// The write still happens; there is no idempotency guard, so the
	// caller's side effects fire again.
	NoOp bool
}

// Statuses returns the declared status set for a kind.
func Statuses(kind Kind) []string {
	set := statusSets[kind]
	out := make([]string, len(set))
	copy(out, set)
	return out
}

// Allowed reports whether status belongs to the kind's declared set.
func Allowed(kind Kind, status string) bool {
	for _, s := range statusSets[kind] {
		if s == status {
			return true
		}
	}
	return false
}

// Transition validates target against the kind's status set and returns
// the effects the caller must apply. No ordering is enforced between
// statuses: moving a COMPLETED request back to PENDING is allowed.
func Transition(kind Kind, current, target string) (Result, error) {
	set, ok := statusSets[kind]
	if !ok {
		return Result{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown record kind %q", kind))
	}
	if !Allowed(kind, target) {
		return Result{}, appErrors.Clone(appErrors.ErrInvalidStatus,
			fmt.Sprintf("status %q is not one of %v", target, set))
	}

	result := Result{Target: target, NoOp: current == target}

	switch kind {
	case KindEnrollment:
		if target == string(models.EnrollmentStatusApproved) || target == string(models.EnrollmentStatusRejected) {
			result.Effects = append(result.Effects, EffectNotifyApplicant)
		}
	case KindInquiry:
		if target == string(models.InquiryStatusResolved) || target == string(models.InquiryStatusClosed) {
			result.Effects = append(result.Effects, EffectSetResolved, EffectArchive)
		}
	}

	return result, nil
}
