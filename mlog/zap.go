package mlog

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type zapLogger struct {
	*zap.SugaredLogger
	level Level
}

func newZapLogger(logpath, logName string, level Level, stdOut bool) (*zapLogger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var syncers []zapcore.WriteSyncer
	if stdOut || logpath == "" {
		syncers = append(syncers, zapcore.Lock(os.Stdout))
	}
	if logpath != "" {
		if err := os.MkdirAll(logpath, 0755); err != nil {
			return nil, err
		}
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(logpath, genLogName(logName)),
			MaxSize:    defaultMaxSizeMB,
			MaxBackups: defaultMaxBackups,
			MaxAge:     defaultMaxAgeDays,
			LocalTime:  true,
		}))
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.NewMultiWriteSyncer(syncers...),
		zap.NewAtomicLevelAt(zapLevel(level)),
	)
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))
	return &zapLogger{SugaredLogger: z.Sugar(), level: level}, nil
}

// zap 没有 notice/trace, 分别并到 info/debug
func zapLevel(level Level) zapcore.Level {
	switch level {
	case FatalLevel:
		return zapcore.FatalLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case NoticeLevel, InfoLevel:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

func (l *zapLogger) IsLevelEnabled(level Level) bool {
	return l.level >= level
}

func (l *zapLogger) Trace(v ...any) {
	if l.IsLevelEnabled(TraceLevel) {
		l.SugaredLogger.Debug(v...)
	}
}

func (l *zapLogger) Tracef(format string, v ...any) {
	if l.IsLevelEnabled(TraceLevel) {
		l.SugaredLogger.Debugf(format, v...)
	}
}

func (l *zapLogger) Notice(v ...any) {
	l.SugaredLogger.Info(v...)
}

func (l *zapLogger) Noticef(format string, v ...any) {
	l.SugaredLogger.Infof(format, v...)
}
