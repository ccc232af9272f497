package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fixkme/calcsrv/framework/app"
	"github.com/fixkme/calcsrv/framework/config"
	"github.com/fixkme/calcsrv/framework/core"
	"github.com/fixkme/calcsrv/mlog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:          "calcsrv",
		Short:        "Calculator gRPC server with an admin request counter",
		Long:         "Serves calculator.Calculator, calculator.Admin and gRPC reflection on one port.\nEvery setting can be overridden with a CALC_ environment variable, e.g. CALC_RPC_LISTEN_ADDR.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configFile)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (json, yaml or toml)")
	return cmd
}

func serve(configFile string) error {
	conf, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	closeLog, err := setupLogger(conf)
	if err != nil {
		return err
	}
	defer closeLog()
	mlog.Infof("load config:\n%s", conf.YamlFormat())

	if err = core.InitRpcModule("rpc", conf); err != nil {
		mlog.Errorf("init rpc failed: %v", err)
		return err
	}
	if err = app.DefaultApp().Run(core.Rpc); err != nil {
		mlog.Errorf("app exit: %v", err)
		return err
	}
	return nil
}

// 返回的函数在退出前把日志刷完
func setupLogger(conf *config.AppConfig) (func(), error) {
	level, err := mlog.ParseLevel(conf.LogLevel)
	if err != nil {
		return nil, err
	}
	switch conf.LogBackend {
	case config.LogBackendFile:
		ctx, cancel := context.WithCancel(context.Background())
		wg := &sync.WaitGroup{}
		if err = mlog.UseDefaultLogger(ctx, wg, conf.LogPath, conf.LogName, level, conf.LogStdOut); err != nil {
			cancel()
			return nil, err
		}
		return func() {
			cancel()
			wg.Wait()
		}, nil
	case config.LogBackendZap:
		flush, err := mlog.UseZapLogger(conf.LogPath, conf.LogName, level, conf.LogStdOut)
		if err != nil {
			return nil, err
		}
		return func() { _ = flush() }, nil
	case config.LogBackendStd:
		if err = mlog.UseStdLogger(level); err != nil {
			return nil, err
		}
		return func() {}, nil
	}
	return nil, fmt.Errorf("unknown log backend %q", conf.LogBackend)
}
