package pb

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// wireMessage 由 pb 里的消息类型实现, 负责和 dynamicpb 之间的转换
type wireMessage interface {
	descriptor(s *Schema) protoreflect.MessageDescriptor
	store(m protoreflect.Message)
	load(m protoreflect.Message)
}

func newDynamic(s *Schema, x wireMessage) *dynamicpb.Message {
	m := dynamicpb.NewMessage(x.descriptor(s))
	x.store(m)
	return m
}

func field(m protoreflect.Message, name protoreflect.Name) protoreflect.FieldDescriptor {
	return m.Descriptor().Fields().ByName(name)
}

type CalculationRequest struct {
	A int64
	B int64
}

func (x *CalculationRequest) GetA() int64 {
	if x != nil {
		return x.A
	}
	return 0
}

func (x *CalculationRequest) GetB() int64 {
	if x != nil {
		return x.B
	}
	return 0
}

func (x *CalculationRequest) String() string {
	return fmt.Sprintf("a:%d b:%d", x.GetA(), x.GetB())
}

func (x *CalculationRequest) descriptor(s *Schema) protoreflect.MessageDescriptor {
	return s.calculationRequest
}

func (x *CalculationRequest) store(m protoreflect.Message) {
	m.Set(field(m, "a"), protoreflect.ValueOfInt64(x.GetA()))
	m.Set(field(m, "b"), protoreflect.ValueOfInt64(x.GetB()))
}

func (x *CalculationRequest) load(m protoreflect.Message) {
	x.A = m.Get(field(m, "a")).Int()
	x.B = m.Get(field(m, "b")).Int()
}

type CalculationResponse struct {
	Result int64
}

func (x *CalculationResponse) GetResult() int64 {
	if x != nil {
		return x.Result
	}
	return 0
}

func (x *CalculationResponse) String() string {
	return fmt.Sprintf("result:%d", x.GetResult())
}

func (x *CalculationResponse) descriptor(s *Schema) protoreflect.MessageDescriptor {
	return s.calculationResponse
}

func (x *CalculationResponse) store(m protoreflect.Message) {
	m.Set(field(m, "result"), protoreflect.ValueOfInt64(x.GetResult()))
}

func (x *CalculationResponse) load(m protoreflect.Message) {
	x.Result = m.Get(field(m, "result")).Int()
}

type GetCountRequest struct{}

func (x *GetCountRequest) String() string {
	return ""
}

func (x *GetCountRequest) descriptor(s *Schema) protoreflect.MessageDescriptor {
	return s.getCountRequest
}

func (x *GetCountRequest) store(protoreflect.Message) {}

func (x *GetCountRequest) load(protoreflect.Message) {}

type CounterResponse struct {
	Count uint64
}

func (x *CounterResponse) GetCount() uint64 {
	if x != nil {
		return x.Count
	}
	return 0
}

func (x *CounterResponse) String() string {
	return fmt.Sprintf("count:%d", x.GetCount())
}

func (x *CounterResponse) descriptor(s *Schema) protoreflect.MessageDescriptor {
	return s.counterResponse
}

func (x *CounterResponse) store(m protoreflect.Message) {
	m.Set(field(m, "count"), protoreflect.ValueOfUint64(x.GetCount()))
}

func (x *CounterResponse) load(m protoreflect.Message) {
	x.Count = m.Get(field(m, "count")).Uint()
}
