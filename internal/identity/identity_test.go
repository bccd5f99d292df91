package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, err := ParseRole("  Optometrist ")
	require.NoError(t, err)
	require.Equal(t, RoleOptometrist, role)

	_, err = ParseRole("receptionist")
	require.ErrorIs(t, err, ErrUnknownRole)

	_, err = ParseRole("")
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestSharesBranch(t *testing.T) {
	staff := Actor{ID: 1, Role: RoleStaff, BranchID: BranchPtr(3)}
	require.True(t, staff.SharesBranch(BranchPtr(3)))
	require.False(t, staff.SharesBranch(BranchPtr(5)))
	require.False(t, staff.SharesBranch(nil))

	unassigned := Actor{ID: 2, Role: RoleStaff}
	require.False(t, unassigned.SharesBranch(nil))
	require.False(t, unassigned.SharesBranch(BranchPtr(3)))
}

func TestActorContextRoundTrip(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	require.False(t, ok)

	ctx := WithActor(context.Background(), Actor{ID: 9, Role: RoleAdmin})
	actor, ok := ActorFromContext(ctx)
	require.True(t, ok)
	require.True(t, actor.IsAdmin())
	require.True(t, actor.Is(RoleStaff, RoleAdmin))
	require.False(t, actor.Is(RoleCustomer))
}
