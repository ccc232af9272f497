// Package counter holds the request counter shared by every rpc service of the process.
package counter

import "sync/atomic"

// Cell 进程内唯一的计数器, 由组合根创建后以指针传给各个服务
type Cell struct {
	n atomic.Uint64
}

func New() *Cell {
	return &Cell{}
}

// Load 读取当前值, 不会读到未提交的写
func (c *Cell) Load() uint64 {
	return c.n.Load()
}

// Inc 原子加一并返回新值
func (c *Cell) Inc() uint64 {
	return c.n.Add(1)
}
