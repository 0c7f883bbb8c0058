package handler

import (
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/rbac-server/internal/password"
	"github.com/dtroode/rbac-server/internal/repository/memory"
	"github.com/dtroode/rbac-server/internal/service"
	"github.com/dtroode/rbac-server/internal/testutil"
)

func newServices(t *testing.T) (*service.Directory, *service.Resolver) {
	t.Helper()
	st := memory.New()
	stores := service.Stores{
		Permissions:   st.Permissions(),
		Roles:         st.Roles(),
		Users:         st.Users(),
		RefreshTokens: st.RefreshTokens(),
		Tx:            st,
	}
	lg := testutil.MakeNoopLogger()
	return service.NewDirectory(stores, password.NewBcrypt(bcrypt.MinCost), nil, lg),
		service.NewResolver(stores, nil, lg)
}
