package errors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProvider_ClassifiesAuthenticationStatus(t *testing.T) {
	for _, status := range []int{401, 403} {
		err := Provider(status, `{"error":"invalid api key"}`)
		require.Equal(t, KindAuthentication, err.Kind)
		require.Equal(t, status, err.Status)
		require.False(t, err.Recoverable())
	}
}

func TestProvider_ClassifiesModelNameIssueAsInvalidParameters(t *testing.T) {
	err := Provider(400, `{"error":{"message":"The model 'nonexistent-model' does not exist"}}`)
	require.Equal(t, KindInvalidParameters, err.Kind)
	require.Equal(t, 400, err.Status)
	require.False(t, err.Recoverable())
}

func TestProvider_OtherStatusesStayKindProvider(t *testing.T) {
	cases := []struct {
		status      int
		recoverable bool
	}{
		{400, false}, // a 400 with no model-name language in the body
		{408, true},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		err := Provider(tc.status, "rate limited")
		require.Equal(t, KindProvider, err.Kind)
		require.Equal(t, tc.recoverable, err.Recoverable())
	}
}

func TestKindOf_UnwrapsAgentError(t *testing.T) {
	err := Wrap(KindNetwork, "dial failed", New(KindInternal, "boom"))
	require.Equal(t, KindNetwork, KindOf(err))
}

func TestIsRecoverable(t *testing.T) {
	require.True(t, IsRecoverable(New(KindTimeout, "slow")))
	require.False(t, IsRecoverable(New(KindAuthentication, "bad key")))
	require.False(t, IsRecoverable(nil))
}
