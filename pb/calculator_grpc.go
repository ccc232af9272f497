package pb

import (
	"context"

	"github.com/fixkme/calcsrv/errs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/dynamicpb"
)

const (
	Calculator_Add_FullMethodName      = "/calculator.Calculator/Add"
	Calculator_Subtract_FullMethodName = "/calculator.Calculator/Subtract"
	Calculator_Multiply_FullMethodName = "/calculator.Calculator/Multiply"
	Calculator_Divide_FullMethodName   = "/calculator.Calculator/Divide"

	Admin_GetRequestCount_FullMethodName = "/calculator.Admin/GetRequestCount"
)

type CalculatorServer interface {
	Add(context.Context, *CalculationRequest) (*CalculationResponse, error)
	Subtract(context.Context, *CalculationRequest) (*CalculationResponse, error)
	Multiply(context.Context, *CalculationRequest) (*CalculationResponse, error)
	Divide(context.Context, *CalculationRequest) (*CalculationResponse, error)
}

type AdminServer interface {
	GetRequestCount(context.Context, *GetCountRequest) (*CounterResponse, error)
}

// CalculatorServiceDesc 和 protoc-gen-go-grpc 生成的 Calculator_ServiceDesc 等价
func CalculatorServiceDesc() (*grpc.ServiceDesc, error) {
	s, err := Load()
	if err != nil {
		return nil, err
	}
	return &grpc.ServiceDesc{
		ServiceName: Calculator_ServiceName,
		HandlerType: (*CalculatorServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Add", Handler: unaryHandler(s, Calculator_Add_FullMethodName, CalculatorServer.Add)},
			{MethodName: "Subtract", Handler: unaryHandler(s, Calculator_Subtract_FullMethodName, CalculatorServer.Subtract)},
			{MethodName: "Multiply", Handler: unaryHandler(s, Calculator_Multiply_FullMethodName, CalculatorServer.Multiply)},
			{MethodName: "Divide", Handler: unaryHandler(s, Calculator_Divide_FullMethodName, CalculatorServer.Divide)},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: FileName,
	}, nil
}

func AdminServiceDesc() (*grpc.ServiceDesc, error) {
	s, err := Load()
	if err != nil {
		return nil, err
	}
	return &grpc.ServiceDesc{
		ServiceName: Admin_ServiceName,
		HandlerType: (*AdminServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "GetRequestCount", Handler: unaryHandler(s, Admin_GetRequestCount_FullMethodName, AdminServer.GetRequestCount)},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: FileName,
	}, nil
}

func unaryHandler[S any, Req, Rsp any, PReq interface {
	*Req
	wireMessage
}, PRsp interface {
	*Rsp
	wireMessage
}](s *Schema, fullMethod string, call func(S, context.Context, PReq) (PRsp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		m := dynamicpb.NewMessage(in.descriptor(s))
		if err := dec(m); err != nil {
			return nil, errs.Unmarshal.Printf("%s: %v", fullMethod, err)
		}
		in.load(m)

		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(S), ctx, req.(PReq))
		}
		var (
			out any
			err error
		)
		if interceptor == nil {
			out, err = handler(ctx, in)
		} else {
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}
			out, err = interceptor(ctx, in, info, handler)
		}
		if err != nil {
			return nil, err
		}
		rsp, ok := out.(wireMessage)
		if !ok {
			return nil, errs.Marshal.Printf("%s: unexpected response type %T", fullMethod, out)
		}
		return newDynamic(s, rsp), nil
	}
}

type CalculatorClient interface {
	Add(ctx context.Context, in *CalculationRequest, opts ...grpc.CallOption) (*CalculationResponse, error)
	Subtract(ctx context.Context, in *CalculationRequest, opts ...grpc.CallOption) (*CalculationResponse, error)
	Multiply(ctx context.Context, in *CalculationRequest, opts ...grpc.CallOption) (*CalculationResponse, error)
	Divide(ctx context.Context, in *CalculationRequest, opts ...grpc.CallOption) (*CalculationResponse, error)
}

type calculatorClient struct {
	cc grpc.ClientConnInterface
}

func NewCalculatorClient(cc grpc.ClientConnInterface) CalculatorClient {
	return &calculatorClient{cc}
}

func (c *calculatorClient) Add(ctx context.Context, in *CalculationRequest, opts ...grpc.CallOption) (*CalculationResponse, error) {
	out := new(CalculationResponse)
	if err := invoke(ctx, c.cc, Calculator_Add_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *calculatorClient) Subtract(ctx context.Context, in *CalculationRequest, opts ...grpc.CallOption) (*CalculationResponse, error) {
	out := new(CalculationResponse)
	if err := invoke(ctx, c.cc, Calculator_Subtract_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *calculatorClient) Multiply(ctx context.Context, in *CalculationRequest, opts ...grpc.CallOption) (*CalculationResponse, error) {
	out := new(CalculationResponse)
	if err := invoke(ctx, c.cc, Calculator_Multiply_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *calculatorClient) Divide(ctx context.Context, in *CalculationRequest, opts ...grpc.CallOption) (*CalculationResponse, error) {
	out := new(CalculationResponse)
	if err := invoke(ctx, c.cc, Calculator_Divide_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type AdminClient interface {
	GetRequestCount(ctx context.Context, in *GetCountRequest, opts ...grpc.CallOption) (*CounterResponse, error)
}

type adminClient struct {
	cc grpc.ClientConnInterface
}

func NewAdminClient(cc grpc.ClientConnInterface) AdminClient {
	return &adminClient{cc}
}

func (c *adminClient) GetRequestCount(ctx context.Context, in *GetCountRequest, opts ...grpc.CallOption) (*CounterResponse, error) {
	out := new(CounterResponse)
	if err := invoke(ctx, c.cc, Admin_GetRequestCount_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func invoke(ctx context.Context, cc grpc.ClientConnInterface, method string, in, out wireMessage, opts ...grpc.CallOption) error {
	s, err := Load()
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	rsp := dynamicpb.NewMessage(out.descriptor(s))
	if err := cc.Invoke(ctx, method, newDynamic(s, in), rsp, opts...); err != nil {
		return err
	}
	out.load(rsp)
	return nil
}
