package rpc

import (
	"google.golang.org/grpc/reflection"
	v1reflectiongrpc "google.golang.org/grpc/reflection/grpc_reflection_v1"
	v1alphareflectiongrpc "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// RegisterReflection 注册 reflection v1 和 v1alpha.
// 描述先从 files 里找, 找不到再查 protoregistry.GlobalFiles (反射协议自身的描述在那里)
func (s *Server) RegisterReflection(files *protoregistry.Files) {
	opts := reflection.ServerOptions{
		Services:           s.grpcServ,
		DescriptorResolver: Resolvers{files, protoregistry.GlobalFiles},
	}
	v1reflectiongrpc.RegisterServerReflectionServer(s, reflection.NewServerV1(opts))
	v1alphareflectiongrpc.RegisterServerReflectionServer(s, reflection.NewServer(opts))
}

// Resolvers 按顺序查找, 返回第一个命中的结果
type Resolvers []protodesc.Resolver

func (rs Resolvers) FindFileByPath(path string) (protoreflect.FileDescriptor, error) {
	for _, r := range rs {
		if r == nil {
			continue
		}
		if fd, err := r.FindFileByPath(path); err == nil {
			return fd, nil
		}
	}
	return nil, protoregistry.NotFound
}

func (rs Resolvers) FindDescriptorByName(name protoreflect.FullName) (protoreflect.Descriptor, error) {
	for _, r := range rs {
		if r == nil {
			continue
		}
		if d, err := r.FindDescriptorByName(name); err == nil {
			return d, nil
		}
	}
	return nil, protoregistry.NotFound
}
