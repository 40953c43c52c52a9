//go:build !windows

package clipboard

import "urlclip/internal/logger"

// New 非 windows 平台只提供占位实现：Open 直接返回 ErrUnsupported。
// 这不是跨平台抽象层，只保证纯逻辑包可以在任意平台编译和测试。
func New(log logger.Logger) Listener { return stubListener{} }

type stubListener struct{}

func (stubListener) Open(func()) error         { return ErrUnsupported }
func (stubListener) Pump() error               { return ErrUnsupported }
func (stubListener) PostQuit()                 {}
func (stubListener) ReadText() (string, error) { return "", ErrUnsupported }
func (stubListener) WriteText(string) error    { return ErrUnsupported }
func (stubListener) Close()                    {}
