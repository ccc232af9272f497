// Package auth gates rpc calls on the value of the "authorization" metadata.
//
// The gate is an interceptor; which services it guards is decided where they
// are registered, not here. Validation is a pluggable Validator. The built-in
// StaticToken is a fixed shared secret compared for exact equality, a
// placeholder rather than a real credential scheme; JWTValidator is the
// drop-in replacement when tokens must expire.
package auth

import (
	"context"
	"crypto/subtle"

	grpc_auth "github.com/grpc-ecosystem/go-grpc-middleware/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/util/metautils"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fixkme/calcsrv/errs"
	"github.com/fixkme/calcsrv/mlog"
)

const (
	MetadataKey  = "authorization"
	DefaultToken = "Bearer token"
)

type Validator interface {
	Validate(ctx context.Context, credential string) error
}

// StaticToken 和配置的值逐字节比较, "bearer token" 这种大小写不同的也算错
type StaticToken string

func (t StaticToken) Validate(_ context.Context, credential string) error {
	if subtle.ConstantTimeCompare([]byte(t), []byte(credential)) != 1 {
		return errs.Unauthenticated
	}
	return nil
}

func UnaryGate(v Validator) grpc.UnaryServerInterceptor {
	return grpc_auth.UnaryServerInterceptor(authFunc(v))
}

func StreamGate(v Validator) grpc.StreamServerInterceptor {
	return grpc_auth.StreamServerInterceptor(authFunc(v))
}

func authFunc(v Validator) grpc_auth.AuthFunc {
	return func(ctx context.Context) (context.Context, error) {
		credential := metautils.ExtractIncoming(ctx).Get(MetadataKey)
		if credential == "" {
			return nil, status.Error(codes.Unauthenticated, "authorization is not provided")
		}
		if err := v.Validate(ctx, credential); err != nil {
			mlog.Infof("auth rejected: %v", err)
			return nil, status.Error(codes.Unauthenticated, errs.Unauthenticated.Error())
		}
		return ctx, nil
	}
}
