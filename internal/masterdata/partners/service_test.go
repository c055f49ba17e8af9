package partners

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agape-erp/agape-erp/internal/masterdata/shared"
)

func TestValidateRequiresCodeAndName(t *testing.T) {
	svc := NewService(nil)

	err := svc.validate(Partner{Name: "Trgovina d.o.o."})
	require.ErrorIs(t, err, shared.ErrRequiredField)
	require.Contains(t, err.Error(), "partner code")

	err = svc.validate(Partner{Code: "P-001", Name: "   "})
	require.ErrorIs(t, err, shared.ErrRequiredField)
	require.Contains(t, err.Error(), "partner name")

	require.NoError(t, svc.validate(Partner{Code: "P-001", Name: "Trgovina d.o.o."}))
}

func TestIsActiveTreatsNullFlagAsActive(t *testing.T) {
	active := true
	inactive := false

	require.True(t, Partner{}.IsActive())
	require.True(t, Partner{Active: &active}.IsActive())
	require.False(t, Partner{Active: &inactive}.IsActive())
}

func TestSortOrderWhitelistsColumns(t *testing.T) {
	require.Equal(t, "name ASC", sortOrder("", ""))
	require.Equal(t, "name ASC", sortOrder("phone", "asc"))
	require.Equal(t, "code DESC", sortOrder("code", shared.SortDesc))
	require.Equal(t, "created_at ASC", sortOrder("created_at", shared.SortAsc))
}
