package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
)

// AdminTokenHeader is the header name for the admin authentication token.
const AdminTokenHeader = "X-Wall-Token"

var errBadToken = errors.New("missing or invalid admin token")

type adminAuthInterceptor struct {
	token    string
	openProc map[string]struct{}
}

// NewAdminAuthInterceptor creates an interceptor that requires the admin
// token on every procedure except the open ones.
func NewAdminAuthInterceptor(token string, open ...string) connect.Interceptor {
	i := &adminAuthInterceptor{token: token, openProc: make(map[string]struct{}, len(open))}
	for _, p := range open {
		i.openProc[p] = struct{}{}
	}
	return i
}

func (i *adminAuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if err := i.check(req.Spec().Procedure, req.Header().Get(AdminTokenHeader)); err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (i *adminAuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *adminAuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if err := i.check(conn.Spec().Procedure, conn.RequestHeader().Get(AdminTokenHeader)); err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

func (i *adminAuthInterceptor) check(procedure, token string) error {
	if _, ok := i.openProc[procedure]; ok {
		return nil
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(i.token)) != 1 {
		return connect.NewError(connect.CodeUnauthenticated, errBadToken)
	}
	return nil
}

type tokenInterceptor struct {
	token string
}

// NewTokenInterceptor creates a client interceptor that sends the admin token.
func NewTokenInterceptor(token string) connect.Interceptor {
	return &tokenInterceptor{token: token}
}

func (t *tokenInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if t.token != "" {
			req.Header().Set(AdminTokenHeader, t.token)
		}
		return next(ctx, req)
	}
}

func (t *tokenInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		if t.token != "" {
			conn.RequestHeader().Set(AdminTokenHeader, t.token)
		}
		return conn
	}
}

func (t *tokenInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
