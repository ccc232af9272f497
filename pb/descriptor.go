// Package pb is the wire contract of the calculator services.
//
// The schema is kept as a binary FileDescriptorSet (calculator.pb, the
// `protoc --include_imports -o calculator.pb calculator.proto` output) and
// embedded in the binary. It is parsed and linked once; messages travel as dynamicpb
// messages built from those descriptors, so the encoding on the wire is plain
// protobuf and any gRPC client can talk to the server.
package pb

import (
	_ "embed"
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

//go:embed calculator.pb
var rawDescriptorSet []byte

const (
	FileName = "calculator.proto"
	Package  = "calculator"

	Calculator_ServiceName = "calculator.Calculator"
	Admin_ServiceName      = "calculator.Admin"
)

// Schema 解析后的描述, 只读
type Schema struct {
	Set   *descriptorpb.FileDescriptorSet
	Files *protoregistry.Files

	calculationRequest  protoreflect.MessageDescriptor
	calculationResponse protoreflect.MessageDescriptor
	getCountRequest     protoreflect.MessageDescriptor
	counterResponse     protoreflect.MessageDescriptor
}

var loadSchema = sync.OnceValues(func() (*Schema, error) {
	return ParseDescriptorSet(rawDescriptorSet)
})

// Load 返回内嵌的 schema, 只解析一次; 出错说明二进制本身有问题, 启动时直接失败
func Load() (*Schema, error) {
	return loadSchema()
}

func ParseDescriptorSet(raw []byte) (*Schema, error) {
	set := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(raw, set); err != nil {
		return nil, fmt.Errorf("pb: parse descriptor set: %w", err)
	}
	files, err := protodesc.NewFiles(set)
	if err != nil {
		return nil, fmt.Errorf("pb: link descriptor set: %w", err)
	}
	s := &Schema{Set: set, Files: files}

	msgs := []struct {
		name protoreflect.FullName
		dst  *protoreflect.MessageDescriptor
	}{
		{Package + ".CalculationRequest", &s.calculationRequest},
		{Package + ".CalculationResponse", &s.calculationResponse},
		{Package + ".GetCountRequest", &s.getCountRequest},
		{Package + ".CounterResponse", &s.counterResponse},
	}
	for _, m := range msgs {
		d, err := files.FindDescriptorByName(m.name)
		if err != nil {
			return nil, fmt.Errorf("pb: message %s: %w", m.name, err)
		}
		md, ok := d.(protoreflect.MessageDescriptor)
		if !ok {
			return nil, fmt.Errorf("pb: %s is not a message", m.name)
		}
		*m.dst = md
	}
	for _, name := range []protoreflect.FullName{Calculator_ServiceName, Admin_ServiceName} {
		if _, err := s.Service(name); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Schema) Service(name protoreflect.FullName) (protoreflect.ServiceDescriptor, error) {
	d, err := s.Files.FindDescriptorByName(name)
	if err != nil {
		return nil, fmt.Errorf("pb: service %s: %w", name, err)
	}
	sd, ok := d.(protoreflect.ServiceDescriptor)
	if !ok {
		return nil, fmt.Errorf("pb: %s is not a service", name)
	}
	return sd, nil
}

// Marshal 二进制形式的 FileDescriptorSet, 和 protoc -o 的输出一致
func (s *Schema) Marshal() ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(s.Set)
}
