package jwt

import (
	"encoding/json"
	"testing"
	"time"

	"school-ride/internal/domain/user"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidateRoundTrip(t *testing.T) {
	mgr := NewManager("unit-test-secret", time.Hour)

	token, issued, err := mgr.IssueUserToken("42", user.RoleParent)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, "42", issued.Subject)

	parsed, err := mgr.ParseAndValidate(token)
	require.NoError(t, err)
	require.Equal(t, user.RoleParent, parsed.Role)
	require.Equal(t, "42", parsed.Subject)
}

func TestIssueUserToken_RejectsUnknownRole(t *testing.T) {
	mgr := NewManager("unit-test-secret", time.Hour)

	_, _, err := mgr.IssueUserToken("42", user.Role("PASSENGER"))
	require.Error(t, err)
}

func TestParseAndValidate_WrongSecret(t *testing.T) {
	token, _, err := NewManager("secret-a", time.Hour).IssueUserToken("42", user.RoleDriver)
	require.NoError(t, err)

	_, err = NewManager("secret-b", time.Hour).ParseAndValidate(token)
	require.Error(t, err)
}

func TestParseAndValidate_ExpiredToken(t *testing.T) {
	token, _, err := NewManager("unit-test-secret", -time.Minute).IssueUserToken("42", user.RoleDriver)
	require.NoError(t, err)

	_, err = NewManager("unit-test-secret", time.Hour).ParseAndValidate(token)
	require.Error(t, err)
}

func TestParseAndValidate_RejectsUnsignedAlgorithm(t *testing.T) {
	claims := NewUserClaims("42", user.RoleAdmin, time.Hour)
	unsigned := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, claims)
	token, err := unsigned.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewManager("unit-test-secret", time.Hour).ParseAndValidate(token)
	require.Error(t, err)
}

func TestRoleAllowed(t *testing.T) {
	cl := &Claims{Role: user.RoleDriver}

	require.NoError(t, RoleAllowed(cl, user.RoleDriver, user.RoleAdmin))
	require.ErrorIs(t, RoleAllowed(cl, user.RoleParent), ErrRoleForbidden)
}

func TestValidateWSAuth(t *testing.T) {
	mgr := NewManager("unit-test-secret", time.Hour)
	token, _, err := mgr.IssueUserToken("42", user.RoleParent)
	require.NoError(t, err)

	frame := func(msgType, tokenField string) []byte {
		b, err := json.Marshal(ClientAuthMessage{Type: msgType, Token: tokenField})
		require.NoError(t, err)
		return b
	}

	t.Run("accepts a valid first frame", func(t *testing.T) {
		claims, err := ValidateWSAuth(frame("auth", "Bearer "+token), mgr, user.RoleParent, user.RoleDriver)
		require.NoError(t, err)
		require.Equal(t, "42", claims.Subject)
	})

	t.Run("rejects a non-auth frame", func(t *testing.T) {
		_, err := ValidateWSAuth(frame("location", "Bearer "+token), mgr, user.RoleParent)
		require.ErrorIs(t, err, ErrBadAuthMsg)
	})

	t.Run("rejects a bare token without Bearer", func(t *testing.T) {
		_, err := ValidateWSAuth(frame("auth", token), mgr, user.RoleParent)
		require.ErrorIs(t, err, ErrBadTokenWrap)
	})

	t.Run("rejects a role outside the allow list", func(t *testing.T) {
		_, err := ValidateWSAuth(frame("auth", "Bearer "+token), mgr, user.RoleAdmin)
		require.ErrorIs(t, err, ErrRoleForbidden)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := ValidateWSAuth([]byte("not json"), mgr, user.RoleParent)
		require.ErrorIs(t, err, ErrBadAuthMsg)
	})
}
