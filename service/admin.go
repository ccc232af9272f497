package service

import (
	"context"

	"github.com/fixkme/calcsrv/counter"
	"github.com/fixkme/calcsrv/pb"
)

// Admin 只读计数器; 鉴权在注册时由拦截器完成, 这里不做
type Admin struct {
	counter *counter.Cell
}

var _ pb.AdminServer = (*Admin)(nil)

func NewAdmin(cell *counter.Cell) *Admin {
	return &Admin{counter: cell}
}

func (s *Admin) GetRequestCount(context.Context, *pb.GetCountRequest) (*pb.CounterResponse, error) {
	return &pb.CounterResponse{Count: s.counter.Load()}, nil
}
