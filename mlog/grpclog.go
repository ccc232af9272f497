package mlog

import (
	"fmt"

	"google.golang.org/grpc/grpclog"
)

// grpcLogger 把 grpc 内部日志转到 mlog, grpc 的 info 很啰嗦, 降到 debug
type grpcLogger struct {
	verbosity int
}

// GrpcLogger 用法: grpclog.SetLoggerV2(mlog.GrpcLogger(0))
func GrpcLogger(verbosity int) grpclog.LoggerV2 {
	return &grpcLogger{verbosity: verbosity}
}

func (g *grpcLogger) Info(args ...any)                 { Debug(append([]any{"grpc: "}, args...)...) }
func (g *grpcLogger) Infoln(args ...any)               { Debug("grpc: " + fmt.Sprintln(args...)) }
func (g *grpcLogger) Infof(format string, args ...any) { Debugf("grpc: "+format, args...) }
func (g *grpcLogger) Warning(args ...any)              { Warn(append([]any{"grpc: "}, args...)...) }
func (g *grpcLogger) Warningln(args ...any)            { Warn("grpc: " + fmt.Sprintln(args...)) }
func (g *grpcLogger) Warningf(format string, args ...any) {
	Warnf("grpc: "+format, args...)
}
func (g *grpcLogger) Error(args ...any)                 { Error(append([]any{"grpc: "}, args...)...) }
func (g *grpcLogger) Errorln(args ...any)               { Error("grpc: " + fmt.Sprintln(args...)) }
func (g *grpcLogger) Errorf(format string, args ...any) { Errorf("grpc: "+format, args...) }
func (g *grpcLogger) Fatal(args ...any)                 { Fatal(append([]any{"grpc: "}, args...)...) }
func (g *grpcLogger) Fatalln(args ...any)               { Fatal("grpc: " + fmt.Sprintln(args...)) }
func (g *grpcLogger) Fatalf(format string, args ...any) { Fatalf("grpc: "+format, args...) }

func (g *grpcLogger) V(l int) bool {
	return l <= g.verbosity
}
