package errs

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type CodeError interface {
	error
	Code() int32
	Print(extras ...string) CodeError
	Printf(format string, args ...any) CodeError
	Is(error) bool
	GRPCStatus() *status.Status
}

func CreateCodeError(code int32, desc string) CodeError {
	return &codeError{
		Errno: code, //  错误码数字
		Desc:  desc, //  错误描述字符串, 会原样返回给调用方
	}
}

func WrapError(err error) CodeError {
	var x *codeError
	if errors.As(err, &x) {
		return x
	}
	return CreateCodeError(ErrCode_Unknown, err.Error())
}

type codeError struct {
	Errno int32
	Desc  string
}

func (e *codeError) Code() int32 {
	return e.Errno
}

func (e *codeError) Error() string {
	return e.Desc
}

func (e *codeError) String() string {
	return fmt.Sprintf("errno: %d, desc: %s", e.Errno, e.Desc)
}

func (e *codeError) Print(extras ...string) CodeError {
	if len(extras) == 0 {
		return e
	}
	ns := len(e.Desc) + len(extras)
	for _, extra := range extras {
		ns += len(extra)
	}
	builder := strings.Builder{}
	builder.Grow(ns)
	builder.WriteString(e.Desc)
	for _, extra := range extras {
		builder.WriteByte(',')
		builder.WriteString(extra)
	}
	er := &codeError{
		Errno: e.Errno,
		Desc:  builder.String(),
	}
	return er
}

func (e *codeError) Printf(format string, args ...any) CodeError {
	if len(format) == 0 {
		return e
	}
	desc := fmt.Sprintf(e.Desc+","+format, args...)
	er := &codeError{
		Errno: e.Errno,
		Desc:  desc,
	}
	return er
}

func (e *codeError) Is(target error) bool {
	if x, ok := target.(*codeError); ok {
		return x.Errno == e.Errno
	}
	return false
}

// GRPCStatus 让 handler 直接返回 CodeError, grpc 会按错误码映射状态
func (e *codeError) GRPCStatus() *status.Status {
	return status.New(GRPCCode(e.Errno), e.Desc)
}

// GRPCCode 业务错误码 -> grpc 状态码
func GRPCCode(errno int32) codes.Code {
	switch errno {
	case ErrCode_OK:
		return codes.OK
	case ErrCode_Unmarshal, ErrCode_DivideByZero, ErrCode_InvalidOperation:
		return codes.InvalidArgument
	case ErrCode_Unauthenticated:
		return codes.Unauthenticated
	case ErrCode_Marshal:
		return codes.Internal
	default:
		return codes.Unknown
	}
}
