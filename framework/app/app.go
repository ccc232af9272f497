package app

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/fixkme/calcsrv/mlog"
)

// 节点全局状态
const (
	AppStateNone = iota // 未开始或已停止
	AppStateInit        // 正在初始化中
	AppStateRun         // 正在运行中
	AppStateStop        // 正在停止中
)

// 单例
var defaultApp = New()

type Module interface {
	OnInit() error // 初始化
	Destroy()      // 销毁
	Run()          // 启动, 阻塞直到 Destroy
	Name() string  // 名字
}

// DefaultApp 默认单例
func DefaultApp() *App {
	return defaultApp
}

// App 中的 modules 在 Run 之后不能变更
type App struct {
	mods  []Module
	state int32
	sig   chan os.Signal
	fail  chan error
	wg    sync.WaitGroup
}

func New() *App {
	return &App{
		sig:  make(chan os.Signal, 1),
		fail: make(chan error, 1),
	}
}

func (app *App) setState(s int32) {
	atomic.StoreInt32(&app.state, s)
}

// GetState 获取状态
func (app *App) GetState() int32 {
	return atomic.LoadInt32(&app.state)
}

func (app *App) start(mods ...Module) error {
	// 单个app不能启动两次
	if app.GetState() != AppStateNone || len(app.mods) != 0 {
		return fmt.Errorf("app cannot start twice")
	}
	if len(mods) == 0 {
		return fmt.Errorf("app has no module")
	}
	mlog.Info("app starting up")
	app.setState(AppStateInit)
	// 模块初始化, 失败时销毁已经初始化的模块
	for i, m := range mods {
		if err := m.OnInit(); err != nil {
			for j := i - 1; j >= 0; j-- {
				destroy(mods[j])
			}
			app.setState(AppStateNone)
			return fmt.Errorf("module %s init error: %w", m.Name(), err)
		}
		app.mods = append(app.mods, m)
	}
	// 模块启动
	for _, m := range app.mods {
		app.wg.Add(1)
		go app.run(m)
	}
	app.setState(AppStateRun)
	mlog.Info("app started")
	return nil
}

func (app *App) stop() {
	if app.GetState() != AppStateRun {
		return
	}
	mlog.Info("app stop begin")
	app.setState(AppStateStop)
	// 先进后出
	for i := len(app.mods) - 1; i >= 0; i-- {
		m := app.mods[i]
		mlog.Infof("app stop module %s", m.Name())
		destroy(m)
	}
	app.wg.Wait()
	app.mods = nil
	app.setState(AppStateNone)
	mlog.Info("app stoped")
}

func (app *App) run(m Module) {
	defer app.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			mlog.Errorf("%s module run panic: %v\n%s", m.Name(), r, debug.Stack())
			app.Fail(fmt.Errorf("module %s: %v", m.Name(), r))
		}
	}()
	m.Run()
}

func destroy(m Module) {
	defer func() {
		if r := recover(); r != nil {
			mlog.Errorf("%s module destroy panic: %v\n%s", m.Name(), r, debug.Stack())
		}
	}()

	m.Destroy()
}

// Run 启动所有模块, 阻塞直到收到退出信号, Stop 或 Fail; 返回初始化错误或 Fail 的错误
func (app *App) Run(mods ...Module) error {
	if err := app.start(mods...); err != nil {
		return err
	}
	signal.Notify(app.sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(app.sig)

	var err error
	select {
	case sig := <-app.sig:
		mlog.Infof("server closing down (signal: %v)", sig)
	case err = <-app.fail:
		mlog.Errorf("server closing down (error: %v)", err)
	}
	app.stop()
	return err
}

func (app *App) Stop() {
	select {
	case app.sig <- syscall.SIGTERM:
	default:
	}
}

// Fail 模块运行出错, 只有第一个错误生效
func (app *App) Fail(err error) {
	select {
	case app.fail <- err:
	default:
	}
}
