//go:build windows

package clipboard

import (
	"fmt"
	"strings"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/google/uuid"
	"golang.org/x/sys/windows"

	"urlclip/internal/logger"
)

// classPrefix 消息窗口类名前缀，启动自清理按该前缀识别历史实例残留的窗口
const classPrefix = "URLClipWatcher"

const (
	wmClose           = 0x0010
	wmDestroy         = 0x0002
	wmQuit            = 0x0012
	wmClipboardUpdate = 0x031D

	cfUnicodeText = 13
	gmemMoveable  = 0x0002

	smtoAbortIfHung = 0x0002
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procRegisterClassExW              = user32.NewProc("RegisterClassExW")
	procUnregisterClassW              = user32.NewProc("UnregisterClassW")
	procCreateWindowExW               = user32.NewProc("CreateWindowExW")
	procDestroyWindow                 = user32.NewProc("DestroyWindow")
	procDefWindowProcW                = user32.NewProc("DefWindowProcW")
	procGetMessageW                   = user32.NewProc("GetMessageW")
	procTranslateMessage              = user32.NewProc("TranslateMessage")
	procDispatchMessageW              = user32.NewProc("DispatchMessageW")
	procPostMessageW                  = user32.NewProc("PostMessageW")
	procSendMessageTimeoutW           = user32.NewProc("SendMessageTimeoutW")
	procPostQuitMessage               = user32.NewProc("PostQuitMessage")
	procAddClipboardFormatListener    = user32.NewProc("AddClipboardFormatListener")
	procRemoveClipboardFormatListener = user32.NewProc("RemoveClipboardFormatListener")
	procOpenClipboard                 = user32.NewProc("OpenClipboard")
	procCloseClipboard                = user32.NewProc("CloseClipboard")
	procEmptyClipboard                = user32.NewProc("EmptyClipboard")
	procGetClipboardData              = user32.NewProc("GetClipboardData")
	procSetClipboardData              = user32.NewProc("SetClipboardData")
	procIsClipboardFormatAvailable    = user32.NewProc("IsClipboardFormatAvailable")
	procEnumWindows                   = user32.NewProc("EnumWindows")
	procGetClassNameW                 = user32.NewProc("GetClassNameW")

	procGetModuleHandleW = kernel32.NewProc("GetModuleHandleW")
	procGlobalAlloc      = kernel32.NewProc("GlobalAlloc")
	procGlobalFree       = kernel32.NewProc("GlobalFree")
	procGlobalLock       = kernel32.NewProc("GlobalLock")
	procGlobalUnlock     = kernel32.NewProc("GlobalUnlock")
)

type wndClassEx struct {
	cbSize        uint32
	style         uint32
	lpfnWndProc   uintptr
	cbClsExtra    int32
	cbWndExtra    int32
	hInstance     windows.Handle
	hIcon         windows.Handle
	hCursor       windows.Handle
	hbrBackground windows.Handle
	lpszMenuName  *uint16
	lpszClassName *uint16
	hIconSm       windows.Handle
}

type winMsg struct {
	hwnd    uintptr
	message uint32
	wparam  uintptr
	lparam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

type winListener struct {
	log       logger.Logger
	className string
	classAtom uint16
	hInstance windows.Handle
	onChange  func()

	// hwnd 在 PostQuit（watchdog goroutine）与消息循环线程之间共享
	hwnd atomic.Uintptr
}

// New 创建 win32 剪贴板监听器。类名带随机后缀，
// 以便多实例共存时仍能按前缀识别出同类窗口。
func New(log logger.Logger) Listener {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return &winListener{
		log:       log,
		className: fmt.Sprintf("%s_%s", classPrefix, suffix),
	}
}

func (l *winListener) Open(onChange func()) error {
	l.onChange = onChange
	l.cleanupStale()

	hInst, _, _ := procGetModuleHandleW.Call(0)
	l.hInstance = windows.Handle(hInst)

	clsName, err := windows.UTF16PtrFromString(l.className)
	if err != nil {
		return fmt.Errorf("class name: %w", err)
	}

	wc := wndClassEx{
		lpfnWndProc:   syscall.NewCallback(l.wndProc),
		hInstance:     l.hInstance,
		lpszClassName: clsName,
	}
	wc.cbSize = uint32(unsafe.Sizeof(wc))

	l.log.Debug("注册消息窗口类", "class", l.className)
	atom, _, errno := procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc)))
	if atom == 0 {
		return fmt.Errorf("RegisterClassEx: %w", errno)
	}
	l.classAtom = uint16(atom)

	hwnd, _, errno := procCreateWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(clsName)),
		uintptr(unsafe.Pointer(clsName)),
		0, 0, 0, 0, 0, 0, 0,
		uintptr(l.hInstance), 0,
	)
	if hwnd == 0 {
		l.unregisterClass()
		return fmt.Errorf("CreateWindowEx: %w", errno)
	}
	l.hwnd.Store(hwnd)

	ok, _, errno := procAddClipboardFormatListener.Call(hwnd)
	if ok == 0 {
		l.destroyWindow()
		return fmt.Errorf("AddClipboardFormatListener: %w", errno)
	}
	return nil
}

func (l *winListener) wndProc(hwnd, m, wparam, lparam uintptr) uintptr {
	switch uint32(m) {
	case wmClipboardUpdate:
		if l.onChange != nil {
			l.onChange()
		}
		return 0
	case wmDestroy:
		procRemoveClipboardFormatListener.Call(l.hwnd.Load())
		procPostQuitMessage.Call(0)
		return 0
	}
	r, _, _ := procDefWindowProcW.Call(hwnd, m, wparam, lparam)
	return r
}

func (l *winListener) Pump() error {
	var m winMsg
	for {
		r, _, errno := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		switch int32(r) {
		case -1:
			return fmt.Errorf("GetMessage: %w", errno)
		case 0:
			return nil // WM_QUIT
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
	}
}

func (l *winListener) PostQuit() {
	if hwnd := l.hwnd.Load(); hwnd != 0 {
		procPostMessageW.Call(hwnd, wmQuit, 0, 0)
	}
}

func (l *winListener) ReadText() (string, error) {
	avail, _, _ := procIsClipboardFormatAvailable.Call(cfUnicodeText)
	if avail == 0 {
		return "", ErrNoText
	}
	ok, _, errno := procOpenClipboard.Call(l.hwnd.Load())
	if ok == 0 {
		return "", fmt.Errorf("OpenClipboard: %w", errno)
	}
	defer procCloseClipboard.Call()

	h, _, _ := procGetClipboardData.Call(cfUnicodeText)
	if h == 0 {
		return "", ErrNoText
	}
	p, _, errno := procGlobalLock.Call(h)
	if p == 0 {
		return "", fmt.Errorf("GlobalLock: %w", errno)
	}
	defer procGlobalUnlock.Call(h)

	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(p))), nil
}

func (l *winListener) WriteText(text string) error {
	u16, err := windows.UTF16FromString(text)
	if err != nil {
		return fmt.Errorf("utf16 encode: %w", err)
	}
	size := uintptr(len(u16) * 2)

	h, _, errno := procGlobalAlloc.Call(gmemMoveable, size)
	if h == 0 {
		return fmt.Errorf("GlobalAlloc: %w", errno)
	}
	p, _, errno := procGlobalLock.Call(h)
	if p == 0 {
		procGlobalFree.Call(h)
		return fmt.Errorf("GlobalLock: %w", errno)
	}
	copy(unsafe.Slice((*uint16)(unsafe.Pointer(p)), len(u16)), u16)
	procGlobalUnlock.Call(h)

	ok, _, errno := procOpenClipboard.Call(l.hwnd.Load())
	if ok == 0 {
		procGlobalFree.Call(h)
		return fmt.Errorf("OpenClipboard: %w", errno)
	}
	defer procCloseClipboard.Call()

	procEmptyClipboard.Call()
	ok, _, errno = procSetClipboardData.Call(cfUnicodeText, h)
	if ok == 0 {
		// 设置失败时句柄所有权仍在本进程
		procGlobalFree.Call(h)
		return fmt.Errorf("SetClipboardData: %w", errno)
	}
	return nil
}

func (l *winListener) Close() {
	l.destroyWindow()
	l.log.Debug("剪贴板监听器已释放", "class", l.className)
}

func (l *winListener) destroyWindow() {
	if hwnd := l.hwnd.Swap(0); hwnd != 0 {
		procRemoveClipboardFormatListener.Call(hwnd)
		procDestroyWindow.Call(hwnd)
	}
	l.unregisterClass()
}

func (l *winListener) unregisterClass() {
	if l.classAtom != 0 {
		procUnregisterClassW.Call(uintptr(l.classAtom), uintptr(l.hInstance))
		l.classAtom = 0
	}
}

// cleanupStale 枚举顶层窗口，对所有同前缀的遗留窗口尽力投递 WM_CLOSE。
// 单个窗口处理失败只记录日志，不影响其余窗口和本次启动。
func (l *winListener) cleanupStale() {
	cb := syscall.NewCallback(func(hwnd, lparam uintptr) uintptr {
		var buf [256]uint16
		n, _, _ := procGetClassNameW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
		if n == 0 {
			return 1
		}
		name := windows.UTF16ToString(buf[:n])
		if strings.HasPrefix(name, classPrefix) && hwnd != l.hwnd.Load() {
			l.log.Debug("关闭遗留监听窗口", "hwnd", hwnd, "class", name)
			procSendMessageTimeoutW.Call(hwnd, wmClose, 0, 0, smtoAbortIfHung, 200, 0)
		}
		return 1
	})
	ok, _, errno := procEnumWindows.Call(cb, 0)
	if ok == 0 {
		l.log.Debug("枚举遗留窗口失败", "error", errno)
	}
}
