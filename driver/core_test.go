// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package driver_test

import (
	"testing"

	"github.com/gviegas/meshdraw/driver"
)

func TestGPUDriver(t *testing.T) {
	g, _ := drv.Open(driver.Config{})
	if gpu.Driver() != drv || gpu.Driver() != g.Driver() {
		t.Error("GPU.Driver: unexpected Driver value")
	}
}

func TestDescIncrement(t *testing.T) {
	for _, k := range [...]driver.DescKind{driver.DescCBVSRVUAV, driver.DescRTV, driver.DescDSV} {
		if n := gpu.DescIncrement(k); n <= 0 {
			t.Fatalf("GPU.DescIncrement(%v):\nhave %d\nwant > 0", k, n)
		}
	}
}

func TestFormatSize(t *testing.T) {
	for _, x := range [...]struct {
		f    driver.Format
		size int
	}{
		{driver.FmtUnknown, 0},
		{driver.BGRA8un, 4},
		{driver.RGBA8un, 4},
		{driver.D32f, 4},
		{driver.RGBA16f, 8},
		{driver.RGBA32f, 16},
	} {
		if n := x.f.Size(); n != x.size {
			t.Fatalf("%v.Size:\nhave %d\nwant %d", x.f, n, x.size)
		}
	}
}

func TestGenericRead(t *testing.T) {
	if driver.StateGenericRead&driver.StateCopySource == 0 {
		t.Fatal("StateGenericRead: missing StateCopySource")
	}
	if driver.StateGenericRead&driver.StateCopyDest != 0 {
		t.Fatal("StateGenericRead: unexpected StateCopyDest")
	}
}
