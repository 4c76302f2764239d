// Copyright 2023 Gustavo C. Viegas. All rights reserved.

//go:build windows

package d3d12

import (
	"syscall"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
	"github.com/gviegas/meshdraw/internal/logger"
)

// swapChainDesc1 matches DXGI_SWAP_CHAIN_DESC1.
type swapChainDesc1 struct {
	Width         uint32
	Height        uint32
	Format        uint32
	Stereo        int32
	SampleCount   uint32
	SampleQuality uint32
	BufferUsage   uint32
	BufferCount   uint32
	Scaling       uint32
	SwapEffect    uint32
	AlphaMode     uint32
	Flags         uint32
}

const (
	dxgiUsageRenderTargetOutput = 0x20
	dxgiSwapEffectFlipDiscard   = 4
)

// Swapchain implements driver.Swapchain.
type Swapchain struct {
	sc     uintptr // IDXGISwapChain3
	format driver.Format
	images []*Resource
}

// NewSwapchain creates a new swapchain for the window
// identified by s.Handle.
func (g *GPU) NewSwapchain(q driver.Queue, s driver.Surface, n int, f driver.Format) (driver.Swapchain, error) {
	x, ok := q.(*queue)
	if !ok || x.gpu != g {
		return nil, errors.New("d3d12: NewSwapchain: invalid queue")
	}
	hwnd := s.Handle()
	if hwnd == 0 {
		return nil, errors.Wrap(driver.ErrSurface, "d3d12: NewSwapchain: no window handle")
	}
	switch f {
	case driver.BGRA8un, driver.RGBA8un, driver.RGBA16f:
	default:
		return nil, errors.Errorf("d3d12: NewSwapchain: unsupported format %v", f)
	}
	desc := swapChainDesc1{
		Width:       uint32(s.Width()),
		Height:      uint32(s.Height()),
		Format:      uint32(f),
		SampleCount: 1,
		BufferUsage: dxgiUsageRenderTargetOutput,
		BufferCount: uint32(n),
		SwapEffect:  dxgiSwapEffectFlipDiscard,
	}
	var sc1 uintptr
	hr, _, _ := syscall.SyscallN(comVtblFn(g.factory, dxgiFactory2CreateSwapChainForHwnd), g.factory, x.q, hwnd, uintptr(unsafe.Pointer(&desc)), 0, 0, uintptr(unsafe.Pointer(&sc1)))
	if err := check(hr, "CreateSwapChainForHwnd"); err != nil {
		return nil, errors.Wrap(driver.ErrSurface, err.Error())
	}
	call(g.factory, dxgiFactoryMakeWindowAssociation, hwnd, dxgiMWANoAltEnter)
	sc, err := queryInterface(sc1, &iidIDXGISwapChain3)
	release(sc1)
	if err != nil {
		return nil, err
	}
	s3 := &Swapchain{sc: sc, format: f, images: make([]*Resource, n)}
	desc2 := driver.Texture2D(f, s.Width(), s.Height(), driver.UsageRenderTarget)
	for i := range s3.images {
		img := &Resource{desc: desc2, kind: driver.HeapDefault, swap: true}
		hr, _, _ := syscall.SyscallN(comVtblFn(sc, dxgiSwapChainGetBuffer), sc, uintptr(i), uintptr(unsafe.Pointer(&iidID3D12Resource)), uintptr(unsafe.Pointer(&img.res)))
		if err := check(hr, "GetBuffer"); err != nil {
			s3.Destroy()
			return nil, err
		}
		s3.images[i] = img
	}
	logger.Logger().Info("swapchain created", "driver", driverName, "images", n, "format", f.String())
	return s3, nil
}

// Images returns the swapchain images.
func (s *Swapchain) Images() []driver.Resource {
	imgs := make([]driver.Resource, len(s.images))
	for i, x := range s.images {
		imgs[i] = x
	}
	return imgs
}

// Current returns the index of the back buffer.
func (s *Swapchain) Current() int {
	return int(uint32(call(s.sc, dxgiSwapChain3GetCurrentBackBuffer)))
}

// Present presents the current image.
func (s *Swapchain) Present(vsync bool) error {
	return check(call(s.sc, dxgiSwapChainPresent, b2u(vsync), 0), "Present")
}

// Format returns the images' format.
func (s *Swapchain) Format() driver.Format { return s.format }

// Destroy destroys the swapchain.
func (s *Swapchain) Destroy() {
	if s == nil {
		return
	}
	for _, x := range s.images {
		if x != nil {
			release(x.res)
		}
	}
	release(s.sc)
	*s = Swapchain{}
}
