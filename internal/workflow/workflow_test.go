package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnhs-portal/registrar-api/internal/models"
	appErrors "github.com/mnhs-portal/registrar-api/pkg/errors"
)

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	cases := []struct {
		kind   Kind
		target string
	}{
		{KindDocumentRequest, "ARCHIVED"},
		{KindDocumentRequest, "pending"},
		{KindEnrollment, "COMPLETED"},
		{KindInquiry, "ESCALATED"},
		{KindInquiry, ""},
	}
	for _, tc := range cases {
		_, err := Transition(tc.kind, string(models.RequestStatusPending), tc.target)
		require.Error(t, err, "kind %s target %q", tc.kind, tc.target)
		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrInvalidStatus.Code, appErr.Code)
	}
}

func TestTransitionRejectsUnknownKind(t *testing.T) {
	_, err := Transition(Kind("ticket"), "PENDING", "RESOLVED")
	require.Error(t, err)
}

func TestDocumentRequestTransitionsHaveNoEffects(t *testing.T) {
	for _, target := range Statuses(KindDocumentRequest) {
		result, err := Transition(KindDocumentRequest, string(models.RequestStatusPending), target)
		require.NoError(t, err)
		assert.Empty(t, result.Effects, "target %s", target)
	}
}

func TestEnrollmentDecisionNotifiesApplicant(t *testing.T) {
	for _, target := range []string{string(models.EnrollmentStatusApproved), string(models.EnrollmentStatusRejected)} {
		result, err := Transition(KindEnrollment, string(models.EnrollmentStatusPending), target)
		require.NoError(t, err)
		assert.Equal(t, []Effect{EffectNotifyApplicant}, result.Effects)
	}

	result, err := Transition(KindEnrollment, string(models.EnrollmentStatusApproved), string(models.EnrollmentStatusPending))
	require.NoError(t, err)
	assert.Empty(t, result.Effects)
}

func TestInquiryResolutionArchives(t *testing.T) {
	for _, target := range []string{string(models.InquiryStatusResolved), string(models.InquiryStatusClosed)} {
		result, err := Transition(KindInquiry, string(models.InquiryStatusPending), target)
		require.NoError(t, err)
		assert.Equal(t, []Effect{EffectSetResolved, EffectArchive}, result.Effects)
	}

	result, err := Transition(KindInquiry, string(models.InquiryStatusPending), string(models.InquiryStatusInProgress))
	require.NoError(t, err)
	assert.Empty(t, result.Effects)
}

// Backward transitions are currently permitted on purpose: there is no
// ordering between statuses. This test documents that behaviour so any
// future tightening shows up as a deliberate change.
func TestBackwardTransitionsAreAllowed(t *testing.T) {
	result, err := Transition(KindDocumentRequest, string(models.RequestStatusCompleted), string(models.RequestStatusPending))
	require.NoError(t, err)
	assert.Equal(t, string(models.RequestStatusPending), result.Target)

	result, err = Transition(KindInquiry, string(models.InquiryStatusResolved), string(models.InquiryStatusPending))
	require.NoError(t, err)
	assert.Empty(t, result.Effects)
}

func TestSameStatusIsNoOpButNotGuarded(t *testing.T) {
	result, err := Transition(KindEnrollment, string(models.EnrollmentStatusApproved), string(models.EnrollmentStatusApproved))
	require.NoError(t, err)
	assert.True(t, result.NoOp)
	// Effects fire again: duplicate transitions mean duplicate emails.
	assert.Equal(t, []Effect{EffectNotifyApplicant}, result.Effects)
}
