// Copyright 2023 Gustavo C. Viegas. All rights reserved.

//go:build windows

package d3d12

import (
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/gviegas/meshdraw/driver"
	"github.com/gviegas/meshdraw/internal/logger"
)

const driverName = "d3d12"

const (
	featureLevel12_1        = 0xc100
	gpuPreferenceHighPerf   = 2
	dxgiCreateFactoryDebug  = 1
	dxgiAdapterFlagSoftware = 2
	dxgiMWANoAltEnter       = 2
	dxgiErrorNotFound       = 0x887a0002

	featureOptions  = 0
	featureOptions7 = 32

	messageSeverityCorruption = 0
	messageSeverityError      = 1
	messageSeverityWarning    = 2

	cmdListTypeDirect = 0
)

func init() {
	driver.Register(&Driver{})
}

// Driver implements driver.Driver.
type Driver struct {
	gpu *GPU
}

// GPU implements driver.GPU and driver.Presenter.
type GPU struct {
	drv     *Driver
	factory uintptr // IDXGIFactory6
	adapter uintptr // IDXGIAdapter1
	dev     uintptr // ID3D12Device2
	q       *queue
	debug   bool
	name    string
	inc     [4]int
}

// adapterDesc1 matches DXGI_ADAPTER_DESC1.
type adapterDesc1 struct {
	Description           [128]uint16
	VendorID              uint32
	DeviceID              uint32
	SubSysID              uint32
	Revision              uint32
	DedicatedVideoMemory  uintptr
	DedicatedSystemMemory uintptr
	SharedSystemMemory    uintptr
	AdapterLUID           windows.LUID
	Flags                 uint32
}

// Open initializes the driver.
// It selects the first hardware adapter in order of
// performance preference that supports mesh shaders.
func (d *Driver) Open(cfg driver.Config) (gpu driver.GPU, err error) {
	if d.gpu != nil {
		return d.gpu, nil
	}
	if err = d3d12DLL.Load(); err != nil {
		return nil, errors.Wrap(driver.ErrNotInstalled, err.Error())
	}
	if err = dxgiDLL.Load(); err != nil {
		return nil, errors.Wrap(driver.ErrNotInstalled, err.Error())
	}
	g := &GPU{drv: d, debug: cfg.Debug}
	var flags uintptr
	if cfg.Debug {
		if err = g.enableDebugLayer(); err != nil {
			return nil, err
		}
		flags = dxgiCreateFactoryDebug
	}
	hr, _, _ := procCreateDXGIFactory2.Call(flags, uintptr(unsafe.Pointer(&iidIDXGIFactory6)), uintptr(unsafe.Pointer(&g.factory)))
	if err = check(hr, "CreateDXGIFactory2"); err != nil {
		return nil, err
	}
	if err = g.selectAdapter(); err != nil {
		goto fail
	}
	if cfg.Debug {
		if err = g.breakOnErrors(); err != nil {
			goto fail
		}
	}
	if err = g.checkFeatures(); err != nil {
		goto fail
	}
	for _, k := range [...]driver.DescKind{driver.DescCBVSRVUAV, driver.DescRTV, driver.DescDSV} {
		g.inc[k] = int(call(g.dev, deviceGetDescriptorHandleIncrement, uintptr(k)))
	}
	if g.q, err = newQueue(g); err != nil {
		goto fail
	}
	d.gpu = g
	logger.Logger().Info("device created", "driver", driverName, "adapter", g.name, "debug", cfg.Debug)
	return g, nil

fail:
	release(g.dev)
	release(g.adapter)
	release(g.factory)
	return nil, err
}

// getDebugInterface calls D3D12GetDebugInterface.
var getDebugInterface = func(iid *windows.GUID, out *uintptr) uintptr {
	hr, _, _ := procD3D12GetDebugInterface.Call(uintptr(unsafe.Pointer(iid)), uintptr(unsafe.Pointer(out)))
	return hr
}

// enableDebugLayer enables the debug layer.
// It must be called before the device is created.
func (g *GPU) enableDebugLayer() error {
	var dbg uintptr
	if err := check(getDebugInterface(&iidID3D12Debug, &dbg), "D3D12GetDebugInterface"); err != nil {
		return errors.Wrap(err, "d3d12: debug layer")
	}
	call(dbg, debugEnableDebugLayer)
	release(dbg)
	return nil
}

// breakOnErrors makes the debug layer break on corruption,
// error and warning messages.
func (g *GPU) breakOnErrors() error {
	iq, err := queryInterface(g.dev, &iidID3D12InfoQueue)
	if err != nil {
		return errors.Wrap(err, "d3d12: debug layer")
	}
	call(iq, infoQueueSetBreakOnSeverity, messageSeverityCorruption, 1)
	call(iq, infoQueueSetBreakOnSeverity, messageSeverityError, 1)
	call(iq, infoQueueSetBreakOnSeverity, messageSeverityWarning, 1)
	release(iq)
	return nil
}

func (g *GPU) selectAdapter() error {
	for i := 0; ; i++ {
		var adapter uintptr
		hr, _, _ := syscall.SyscallN(comVtblFn(g.factory, dxgiFactory6EnumAdapterByGpuPref), g.factory, uintptr(i), gpuPreferenceHighPerf, uintptr(unsafe.Pointer(&iidIDXGIAdapter1)), uintptr(unsafe.Pointer(&adapter)))
		if uint32(hr) == dxgiErrorNotFound {
			return driver.ErrNoDevice
		}
		if err := check(hr, "EnumAdapterByGpuPreference"); err != nil {
			return err
		}
		var desc adapterDesc1
		syscall.SyscallN(comVtblFn(adapter, dxgiAdapter1GetDesc1), adapter, uintptr(unsafe.Pointer(&desc)))
		name := windows.UTF16ToString(desc.Description[:])
		if desc.Flags&dxgiAdapterFlagSoftware != 0 {
			release(adapter)
			continue
		}
		var dev uintptr
		hr, _, _ = procD3D12CreateDevice.Call(adapter, featureLevel12_1, uintptr(unsafe.Pointer(&iidID3D12Device2)), uintptr(unsafe.Pointer(&dev)))
		if err := check(hr, "D3D12CreateDevice"); err != nil {
			logger.Logger().Debug("adapter skipped", "driver", driverName, "adapter", name, "err", err)
			release(adapter)
			continue
		}
		g.adapter = adapter
		g.dev = dev
		g.name = name
		return nil
	}
}

// checkFeatures fails if the device lacks mesh shaders or
// cannot place buffers and textures in the same heap.
func (g *GPU) checkFeatures() error {
	var opts [15]uint32
	hr, _, _ := syscall.SyscallN(comVtblFn(g.dev, deviceCheckFeatureSupport), g.dev, featureOptions, uintptr(unsafe.Pointer(&opts)), unsafe.Sizeof(opts))
	if err := check(hr, "CheckFeatureSupport"); err != nil {
		return err
	}
	if opts[14] < 2 {
		return errors.Wrap(driver.ErrNoDevice, "d3d12: resource heap tier 2 is required")
	}
	var opts7 [2]uint32
	hr, _, _ = syscall.SyscallN(comVtblFn(g.dev, deviceCheckFeatureSupport), g.dev, featureOptions7, uintptr(unsafe.Pointer(&opts7)), unsafe.Sizeof(opts7))
	if err := check(hr, "CheckFeatureSupport"); err != nil {
		return err
	}
	if opts7[0] == 0 {
		return errors.Wrap(driver.ErrNoDevice, "d3d12: mesh shaders are not supported")
	}
	return nil
}

// Name returns the driver name.
func (d *Driver) Name() string { return driverName }

// Close deinitializes the driver.
func (d *Driver) Close() {
	if d.gpu == nil {
		return
	}
	g := d.gpu
	g.q.destroy()
	release(g.dev)
	release(g.adapter)
	release(g.factory)
	d.gpu = nil
	logger.Logger().Debug("device destroyed", "driver", driverName)
}

// Driver returns the Driver that owns g.
func (g *GPU) Driver() driver.Driver { return g.drv }

// Queue returns g's command queue.
func (g *GPU) Queue() driver.Queue { return g.q }

// Limits returns the implementation limits.
func (g *GPU) Limits() driver.Limits {
	return driver.Limits{
		MaxDescHeap:      1_000_000,
		PlacementAlign:   65536,
		CBVAlign:         256,
		MaxRenderTargets: driver.MaxRenderTargets,
	}
}

// removed returns the reason of a device removal as an
// error, or nil.
func (g *GPU) removed() error {
	return check(call(g.dev, deviceGetDeviceRemovedReason), "GetDeviceRemovedReason")
}
