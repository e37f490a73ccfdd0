//go:build windows

package wallpaperlib

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"
	"go.uber.org/zap"
	"golang.org/x/sys/windows/registry"
)

type rect struct {
	left   int32
	top    int32
	right  int32
	bottom int32
}

// DesktopWallpaper does not extend IDispatch so this needs to be done manually
type IDesktopWallpaperVtbl struct {
	QueryInterface            uintptr
	AddRef                    uintptr
	Release                   uintptr
	SetWallpaper              uintptr
	GetWallpaper              uintptr
	GetMonitorDevicePathAt    uintptr
	GetMonitorDevicePathCount uintptr
	GetMonitorRECT            uintptr
	SetBackgroundColor        uintptr
	GetBackgroundColor        uintptr
	SetPosition               uintptr
	GetPosition               uintptr
	SetSlideshow              uintptr
	GetSlideshow              uintptr
	SetSlideshowOptions       uintptr
	GetSlideshowOptions       uintptr
	AdvanceSlideshow          uintptr
	GetStatus                 uintptr
	Enable                    uintptr
}

// Pulled from headers
const CLSID = "{C2CF3110-460E-4fc1-B9D0-8A1C0C9CC4BD}"
const IID = "{B92B56A9-8B55-4E14-9A89-0199BBB6F93B}"

// Monitor is counted but isn't attached to the computer
const S_FALSE = uintptr(2147500037)

const (
	SPI_SETDESKWALLPAPER  = uintptr(0x14)
	SPIF_UPDATEINIFILE    = uintptr(0x1)
	SPIF_SENDWININICHANGE = uintptr(0x2)
)

const desktopKey = `Control Panel\Desktop`

var sysProcAttr = &syscall.SysProcAttr{HideWindow: true}

var modole32 = syscall.NewLazyDLL("ole32.dll")
var coTaskMemFree = modole32.NewProc("CoTaskMemFree")

var moduser32 = syscall.NewLazyDLL("user32.dll")
var systemParametersInfo = moduser32.NewProc("SystemParametersInfoW")

// ListMonitors returns the rectangle of every attached monitor in virtual
// desktop coordinates.
func ListMonitors() ([]image.Rectangle, error) {
	var monitors []image.Rectangle

	err := ole.CoInitialize(0)
	if err != nil {
		return nil, err
	}
	defer ole.CoUninitialize()

	desktop, err := ole.CreateInstance(
		ole.NewGUID(CLSID),
		ole.NewGUID(IID))
	if err != nil {
		return nil, err
	}
	defer desktop.Release()

	vtable := (*IDesktopWallpaperVtbl)(unsafe.Pointer(desktop.RawVTable))

	var count uint32

	hr, _, err := syscall.Syscall(
		vtable.GetMonitorDevicePathCount,
		2,
		uintptr(unsafe.Pointer(desktop)),
		uintptr(unsafe.Pointer(&count)),
		0)
	if hr != 0 {
		return nil, fmt.Errorf(
			"Unexpected value from GetMonitorDevicePathCount %d %v", hr, err)
	}

	for i := uint32(0); i < count; i++ {
		var pathOut *[1 << 30]uint16

		hr, _, err = syscall.Syscall(
			vtable.GetMonitorDevicePathAt,
			3,
			uintptr(unsafe.Pointer(desktop)),
			uintptr(i),
			uintptr(unsafe.Pointer(&pathOut)))
		if hr != 0 {
			return nil, fmt.Errorf(
				"Unexpected value from GetMonitorDevicePathAt %d %v", hr, err)
		}

		m := rect{}
		rectHR, _, errno := syscall.Syscall(
			vtable.GetMonitorRECT,
			3,
			uintptr(unsafe.Pointer(desktop)),
			uintptr(unsafe.Pointer(pathOut)),
			uintptr(unsafe.Pointer(&m)))

		// Free memory allocated outside of Go's control before checking anything
		_, _, ferr := syscall.Syscall(
			coTaskMemFree.Addr(),
			1,
			uintptr(unsafe.Pointer(pathOut)),
			0,
			0)

		if (rectHR != 0 && rectHR != S_FALSE) || errno != 0 {
			return nil, fmt.Errorf(
				"Unexpected value from GetMonitorRECT %d %v", rectHR, errno)
		}
		if ferr != 0 {
			return nil, fmt.Errorf("Unexpected value from CoTaskMemFree %v", ferr)
		}

		if rectHR == S_FALSE {
			continue
		}

		monitors = append(monitors, image.Rect(
			int(m.left), int(m.top), int(m.right), int(m.bottom)))
	}

	return monitors, nil
}

// windowsHook tiles a single image from the origin of the virtual desktop.
type windowsHook struct{}

func (windowsHook) ApplyWallpaper(ctx context.Context, file string) error {
	k, err := registry.OpenKey(registry.CURRENT_USER, desktopKey, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()

	if err = k.SetStringValue("Wallpaper", file); err != nil {
		return err
	}
	// 0 with tiling anchors the image at the top left of the primary monitor
	if err = k.SetStringValue("WallpaperStyle", "0"); err != nil {
		return err
	}
	return k.SetStringValue("TileWallpaper", "1")
}

// Reload pushes the registry settings to the running desktop.
func (windowsHook) Reload(ctx context.Context) error {
	k, err := registry.OpenKey(registry.CURRENT_USER, desktopKey, registry.QUERY_VALUE)
	if err != nil {
		return err
	}
	wallpaper, _, err := k.GetStringValue("Wallpaper")
	k.Close()
	if err != nil {
		return err
	}

	p, err := syscall.UTF16PtrFromString(wallpaper)
	if err != nil {
		return err
	}
	ret, _, err := systemParametersInfo.Call(
		SPI_SETDESKWALLPAPER,
		0,
		uintptr(unsafe.Pointer(p)),
		SPIF_UPDATEINIFILE|SPIF_SENDWININICHANGE)
	if ret != 0 {
		return nil
	}

	// Older systems only reread the registry this way
	cmd := exec.CommandContext(ctx, "rundll32", "user32.dll,", "UpdatePerUserSystemParameters")
	cmd.SysProcAttr = sysProcAttr
	if rerr := cmd.Run(); rerr != nil {
		return fmt.Errorf("SystemParametersInfoW failed: %v, rundll32 failed: %w", err, rerr)
	}
	return nil
}

func DetectHook(log *zap.Logger) Hook {
	return windowsHook{}
}

const ATTACH_PARENT_PROCESS = uintptr(^uint32(0)) // (DWORD)-1

var modkernel32 = syscall.NewLazyDLL("kernel32.dll")
var procAttachConsole = modkernel32.NewProc("AttachConsole")

// Attempts to attach to the parent console if one exists so we can get stdout
// Note that it's impossible to properly redirect stdin
func AttachParentConsole() {
	r, _, _ :=
		syscall.Syscall(procAttachConsole.Addr(), 1, ATTACH_PARENT_PROCESS, 0, 0)

	if r == 0 {
		return
	}

	hout, err := syscall.GetStdHandle(syscall.STD_OUTPUT_HANDLE)
	if err != nil {
		return
	}
	herr, err := syscall.GetStdHandle(syscall.STD_ERROR_HANDLE)
	if err != nil {
		return
	}

	os.Stdout = os.NewFile(uintptr(hout), "/dev/stdout")
	os.Stderr = os.NewFile(uintptr(herr), "/dev/stderr")
}
