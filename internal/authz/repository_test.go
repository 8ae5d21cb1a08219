package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeAdminDirectory struct {
	admins map[int64]bool
}

func (f *fakeAdminDirectory) IsAdministrator(_ context.Context, userID int64) (bool, error) {
	return f.admins[userID], nil
}

func TestPgOracleDelegatesAdminCheckToDirectory(t *testing.T) {
	oracle := NewPgOracle(&fakeAdminDirectory{admins: map[int64]bool{1: true}}, nil)

	ok, err := oracle.IsAdministrator(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = oracle.IsAdministrator(context.Background(), 2)
	require.NoError(t, err)
	require.False(t, ok)
}
