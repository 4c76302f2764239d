// Copyright 2023 Gustavo C. Viegas. All rights reserved.

//go:build windows

package d3d12

import (
	"strings"
	"testing"

	"golang.org/x/sys/windows"

	"github.com/gviegas/meshdraw/driver"
)

func TestDebugLayerMissing(t *testing.T) {
	prev := getDebugInterface
	defer func() { getDebugInterface = prev }()
	const eFail = 0x80004005
	getDebugInterface = func(*windows.GUID, *uintptr) uintptr { return eFail }

	g := &GPU{debug: true}
	err := g.enableDebugLayer()
	if err == nil {
		t.Fatal("GPU.enableDebugLayer:\nhave nil\nwant error")
	}
	for _, s := range [...]string{"d3d12: debug layer", "D3D12GetDebugInterface failed"} {
		if !strings.Contains(err.Error(), s) {
			t.Fatalf("GPU.enableDebugLayer:\nhave %v\nwant %q", err, s)
		}
	}

	// Open must fail rather than continue without the
	// debug layer.
	var d Driver
	if err := d3d12DLL.Load(); err != nil {
		t.Skip(err)
	}
	if gpu, err := d.Open(driver.Config{Debug: true}); err == nil {
		d.Close()
		t.Fatalf("Driver.Open:\nhave %v, nil\nwant error", gpu)
	}
}
