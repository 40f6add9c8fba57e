package user

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{
		"DRIVER":  RoleDriver,
		"parent":  RoleParent,
		" Admin ": RoleAdmin,
	} {
		got, err := ParseRole(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "PASSENGER", "root"} {
		_, err := ParseRole(in)
		require.Error(t, err, in)
	}
}
