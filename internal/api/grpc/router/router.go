package router

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/ratelimit"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/dtroode/rbac-server/internal/api/grpc/handler"
	"github.com/dtroode/rbac-server/internal/api/grpc/middleware"
	"github.com/dtroode/rbac-server/internal/api/grpc/rpc"
	"github.com/dtroode/rbac-server/internal/guard"
	"github.com/dtroode/rbac-server/internal/logger"
	"github.com/dtroode/rbac-server/internal/model"
	"github.com/dtroode/rbac-server/internal/service"
)

// Services are the use cases exposed over gRPC.
type Services struct {
	Credential *service.Credential
	Directory  *service.Directory
	Resolver   *service.Resolver
	Guard      *guard.Guard
}

// Router assembles the gRPC server: handlers, policies and interceptors.
type Router struct {
	services       Services
	contextManager model.ContextManager
	recorder       middleware.RPCRecorder
	limiter        ratelimit.Limiter
	logger         *logger.Logger
}

// New creates new gRPC Router instance. recorder may be nil; a nil limiter
// disables throttling.
func New(
	services Services,
	contextManager model.ContextManager,
	recorder middleware.RPCRecorder,
	limiter ratelimit.Limiter,
	logger *logger.Logger,
) *Router {
	return &Router{
		services:       services,
		contextManager: contextManager,
		recorder:       recorder,
		limiter:        limiter,
		logger:         logger,
	}
}

func authSkip(_ context.Context, c interceptors.CallMeta) bool {
	return !strings.HasPrefix(c.FullMethod(), "/grpc.health.v1.Health/")
}

// Register registers all gRPC services and middleware.
func (r *Router) Register() *grpc.Server {
	policies := Policies()
	logging := middleware.NewLogging(r.logger, r.recorder)
	authorize := middleware.NewAuthorize(r.services.Guard, policies, r.contextManager, r.logger)

	unary := []grpc.UnaryServerInterceptor{
		recovery.UnaryServerInterceptor(recovery.WithRecoveryHandlerContext(r.recover)),
		logging.HandleGRPC,
	}
	if r.limiter != nil {
		unary = append(unary, selector.UnaryServerInterceptor(
			ratelimit.UnaryServerInterceptor(r.limiter),
			selector.MatchFunc(func(_ context.Context, c interceptors.CallMeta) bool {
				return throttled(policies, c.FullMethod())
			}),
		))
	}
	unary = append(unary, selector.UnaryServerInterceptor(
		auth.UnaryServerInterceptor(authorize.AuthFunc),
		selector.MatchFunc(authSkip),
	))

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(unary...))

	r.registerAuthRoutes(s)
	r.registerDirectoryRoutes(s)
	healthpb.RegisterHealthServer(s, health.NewServer())

	return s
}

func (r *Router) recover(ctx context.Context, p any) error {
	method, _ := grpc.Method(ctx)
	r.logger.Error("gRPC handler panicked", "method", method, "panic", p)
	return status.Error(codes.Internal, "internal server error")
}

func (r *Router) registerAuthRoutes(server *grpc.Server) {
	authHandler := handler.NewAuth(r.services.Credential, r.services.Resolver, r.services.Directory, r.contextManager, r.logger)
	server.RegisterService(&rpc.AuthServiceDesc, authHandler)
}

func (r *Router) registerDirectoryRoutes(server *grpc.Server) {
	server.RegisterService(&rpc.PermissionsServiceDesc, handler.NewPermission(r.services.Directory, r.logger))
	server.RegisterService(&rpc.RolesServiceDesc, handler.NewRole(r.services.Directory, r.logger))
	server.RegisterService(&rpc.UsersServiceDesc, handler.NewUser(r.services.Directory, r.services.Resolver, r.logger))
}
