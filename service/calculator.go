// Package service implements the Calculator and Admin rpc services.
package service

import (
	"context"

	"github.com/fixkme/calcsrv/calc"
	"github.com/fixkme/calcsrv/counter"
	"github.com/fixkme/calcsrv/mlog"
	"github.com/fixkme/calcsrv/pb"
)

type Calculator struct {
	counter *counter.Cell
}

var _ pb.CalculatorServer = (*Calculator)(nil)

func NewCalculator(cell *counter.Cell) *Calculator {
	return &Calculator{counter: cell}
}

func (s *Calculator) Add(ctx context.Context, in *pb.CalculationRequest) (*pb.CalculationResponse, error) {
	return s.process(ctx, "add", in)
}

func (s *Calculator) Subtract(ctx context.Context, in *pb.CalculationRequest) (*pb.CalculationResponse, error) {
	return s.process(ctx, "subtract", in)
}

func (s *Calculator) Multiply(ctx context.Context, in *pb.CalculationRequest) (*pb.CalculationResponse, error) {
	return s.process(ctx, "multiply", in)
}

func (s *Calculator) Divide(ctx context.Context, in *pb.CalculationRequest) (*pb.CalculationResponse, error) {
	return s.process(ctx, "divide", in)
}

// process 先计数再计算, 失败的调用也算一次请求, 计数不回滚
func (s *Calculator) process(_ context.Context, operation string, in *pb.CalculationRequest) (*pb.CalculationResponse, error) {
	n := s.counter.Inc()
	mlog.Debugf("Request count: %d", n)

	op, err := calc.ParseOp(operation)
	if err != nil {
		return nil, err
	}
	a, b := in.GetA(), in.GetB()
	result, err := calc.Evaluate(op, a, b)
	if err != nil {
		return nil, err
	}
	if calc.Overflows(op, a, b) {
		mlog.Warnf("calculator %s(%d, %d) overflowed int64, result wrapped to %d", op, a, b, result)
	}
	return &pb.CalculationResponse{Result: result}, nil
}
