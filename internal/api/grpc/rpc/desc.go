package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// Service names.
const (
	AuthService        = "rbac.Auth"
	PermissionsService = "rbac.Permissions"
	RolesService       = "rbac.Roles"
	UsersService       = "rbac.Users"
)

// FullMethod returns the "/service/method" name used by interceptors.
func FullMethod(service, method string) string {
	return "/" + service + "/" + method
}

type AuthServer interface {
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Refresh(context.Context, *RefreshRequest) (*TokenResponse, error)
	Logout(context.Context, *RefreshRequest) (*Empty, error)
	RequestPasswordReset(context.Context, *PasswordResetRequest) (*Empty, error)
	CompletePasswordReset(context.Context, *CompletePasswordResetRequest) (*Empty, error)
	ChangePassword(context.Context, *ChangePasswordRequest) (*Empty, error)
	Me(context.Context, *Empty) (*MeResponse, error)
}

type PermissionsServer interface {
	Create(context.Context, *CreatePermissionRequest) (*Permission, error)
	Update(context.Context, *UpdatePermissionRequest) (*Permission, error)
	Delete(context.Context, *IDRequest) (*Empty, error)
	Get(context.Context, *IDRequest) (*Permission, error)
	GetByKey(context.Context, *KeyRequest) (*Permission, error)
	GetByIDs(context.Context, *IDsRequest) (*PermissionList, error)
	List(context.Context, *ListPermissionsRequest) (*PermissionPage, error)
	ListByGroup(context.Context, *GroupRequest) (*PermissionList, error)
	ListSystem(context.Context, *Empty) (*PermissionList, error)
	Groups(context.Context, *Empty) (*GroupList, error)
}

type RolesServer interface {
	Create(context.Context, *CreateRoleRequest) (*Role, error)
	Update(context.Context, *UpdateRoleRequest) (*Role, error)
	AssignPermissions(context.Context, *AssignPermissionsRequest) (*Role, error)
	Delete(context.Context, *IDRequest) (*Empty, error)
	Get(context.Context, *IDRequest) (*Role, error)
	GetByName(context.Context, *NameRequest) (*Role, error)
	GetByIDs(context.Context, *IDsRequest) (*RoleList, error)
	List(context.Context, *ListRolesRequest) (*RolePage, error)
	ListByPermission(context.Context, *IDRequest) (*RoleList, error)
	ListByPermissionKey(context.Context, *KeyRequest) (*RoleList, error)
	ListSystem(context.Context, *Empty) (*RoleList, error)
	Permissions(context.Context, *IDRequest) (*PermissionList, error)
}

type UsersServer interface {
	Create(context.Context, *CreateUserRequest) (*User, error)
	Update(context.Context, *UpdateUserRequest) (*User, error)
	UpdateRoles(context.Context, *UpdateUserRolesRequest) (*User, error)
	SetStatus(context.Context, *SetUserStatusRequest) (*User, error)
	Delete(context.Context, *IDRequest) (*Empty, error)
	RecordLogin(context.Context, *IDRequest) (*Empty, error)
	Get(context.Context, *IDRequest) (*User, error)
	GetByEmail(context.Context, *EmailRequest) (*User, error)
	GetByUsername(context.Context, *UsernameRequest) (*User, error)
	GetByIDs(context.Context, *IDsRequest) (*UserList, error)
	List(context.Context, *ListUsersRequest) (*UserPage, error)
	Permissions(context.Context, *IDRequest) (*PermissionList, error)
	VerifyPermission(context.Context, *VerifyPermissionRequest) (*VerifyResponse, error)
	VerifyAllPermissions(context.Context, *VerifyPermissionsRequest) (*VerifyResponse, error)
	VerifyAnyPermission(context.Context, *VerifyPermissionsRequest) (*VerifyResponse, error)
	VerifyRole(context.Context, *VerifyRoleRequest) (*VerifyResponse, error)
	VerifyAllRoles(context.Context, *VerifyRolesRequest) (*VerifyResponse, error)
	VerifyAnyRole(context.Context, *VerifyRolesRequest) (*VerifyResponse, error)
}

type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

func unary[S, Req, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := FullMethod(service, method)
	var h methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(S), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
	return grpc.MethodDesc{MethodName: method, Handler: h}
}

var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthService,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(AuthService, "Login", AuthServer.Login),
		unary(AuthService, "Refresh", AuthServer.Refresh),
		unary(AuthService, "Logout", AuthServer.Logout),
		unary(AuthService, "RequestPasswordReset", AuthServer.RequestPasswordReset),
		unary(AuthService, "CompletePasswordReset", AuthServer.CompletePasswordReset),
		unary(AuthService, "ChangePassword", AuthServer.ChangePassword),
		unary(AuthService, "Me", AuthServer.Me),
	},
	Metadata: "rbac/auth",
}

var PermissionsServiceDesc = grpc.ServiceDesc{
	ServiceName: PermissionsService,
	HandlerType: (*PermissionsServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(PermissionsService, "Create", PermissionsServer.Create),
		unary(PermissionsService, "Update", PermissionsServer.Update),
		unary(PermissionsService, "Delete", PermissionsServer.Delete),
		unary(PermissionsService, "Get", PermissionsServer.Get),
		unary(PermissionsService, "GetByKey", PermissionsServer.GetByKey),
		unary(PermissionsService, "GetByIDs", PermissionsServer.GetByIDs),
		unary(PermissionsService, "List", PermissionsServer.List),
		unary(PermissionsService, "ListByGroup", PermissionsServer.ListByGroup),
		unary(PermissionsService, "ListSystem", PermissionsServer.ListSystem),
		unary(PermissionsService, "Groups", PermissionsServer.Groups),
	},
	Metadata: "rbac/permissions",
}

var RolesServiceDesc = grpc.ServiceDesc{
	ServiceName: RolesService,
	HandlerType: (*RolesServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(RolesService, "Create", RolesServer.Create),
		unary(RolesService, "Update", RolesServer.Update),
		unary(RolesService, "AssignPermissions", RolesServer.AssignPermissions),
		unary(RolesService, "Delete", RolesServer.Delete),
		unary(RolesService, "Get", RolesServer.Get),
		unary(RolesService, "GetByName", RolesServer.GetByName),
		unary(RolesService, "GetByIDs", RolesServer.GetByIDs),
		unary(RolesService, "List", RolesServer.List),
		unary(RolesService, "ListByPermission", RolesServer.ListByPermission),
		unary(RolesService, "ListByPermissionKey", RolesServer.ListByPermissionKey),
		unary(RolesService, "ListSystem", RolesServer.ListSystem),
		unary(RolesService, "Permissions", RolesServer.Permissions),
	},
	Metadata: "rbac/roles",
}

var UsersServiceDesc = grpc.ServiceDesc{
	ServiceName: UsersService,
	HandlerType: (*UsersServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(UsersService, "Create", UsersServer.Create),
		unary(UsersService, "Update", UsersServer.Update),
		unary(UsersService, "UpdateRoles", UsersServer.UpdateRoles),
		unary(UsersService, "SetStatus", UsersServer.SetStatus),
		unary(UsersService, "Delete", UsersServer.Delete),
		unary(UsersService, "RecordLogin", UsersServer.RecordLogin),
		unary(UsersService, "Get", UsersServer.Get),
		unary(UsersService, "GetByEmail", UsersServer.GetByEmail),
		unary(UsersService, "GetByUsername", UsersServer.GetByUsername),
		unary(UsersService, "GetByIDs", UsersServer.GetByIDs),
		unary(UsersService, "List", UsersServer.List),
		unary(UsersService, "Permissions", UsersServer.Permissions),
		unary(UsersService, "VerifyPermission", UsersServer.VerifyPermission),
		unary(UsersService, "VerifyAllPermissions", UsersServer.VerifyAllPermissions),
		unary(UsersService, "VerifyAnyPermission", UsersServer.VerifyAnyPermission),
		unary(UsersService, "VerifyRole", UsersServer.VerifyRole),
		unary(UsersService, "VerifyAllRoles", UsersServer.VerifyAllRoles),
		unary(UsersService, "VerifyAnyRole", UsersServer.VerifyAnyRole),
	},
	Metadata: "rbac/users",
}

// Invoke calls method on cc with the JSON codec and decodes the reply.
func Invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, service, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(service, method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
