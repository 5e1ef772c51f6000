package domain_test

import (
	"testing"

	"github.com/popmap/popmap-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverrunStateMask(t *testing.T) {
	mask, err := domain.ParseOverrunStateMask("running, pending")
	require.NoError(t, err)
	assert.True(t, mask.Has(domain.OverrunStateRunning))
	assert.True(t, mask.Has(domain.OverrunStatePending))
	assert.False(t, mask.Has(domain.OverrunStateRetrying))
	assert.Equal(t, "running,pending", mask.String())
}

func TestParseOverrunStateMask_Empty(t *testing.T) {
	mask, err := domain.ParseOverrunStateMask("  ")
	require.NoError(t, err)
	assert.Equal(t, domain.OverrunStateMask(0), mask)
	assert.Empty(t, mask.String())
}

func TestParseOverrunStateMask_Invalid(t *testing.T) {
	_, err := domain.ParseOverrunStateMask("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid overrun state")
}

func TestOverrunStateMask_TextRoundTrip(t *testing.T) {
	mask := domain.OverrunStatePending | domain.OverrunStateRetrying
	text, err := mask.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "pending,retrying", string(text))

	var roundTrip domain.OverrunStateMask
	require.NoError(t, roundTrip.UnmarshalText(text))
	assert.Equal(t, mask, roundTrip)
}

func TestOverrunPolicy_UnmarshalText(t *testing.T) {
	cases := []struct {
		input string
		want  domain.OverrunPolicy
	}{
		{"skip", domain.OverrunPolicySkip},
		{"QUEUE", domain.OverrunPolicyQueue},
		{" reschedule ", domain.OverrunPolicyReschedule},
	}
	for _, tc := range cases {
		var policy domain.OverrunPolicy
		require.NoError(t, policy.UnmarshalText([]byte(tc.input)), "input %q", tc.input)
		assert.Equal(t, tc.want, policy)
	}

	var policy domain.OverrunPolicy
	err := policy.UnmarshalText([]byte("pile-up"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid overrun policy")
}
