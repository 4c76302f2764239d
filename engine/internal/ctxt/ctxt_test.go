// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package ctxt

import (
	"errors"
	"runtime"
	"testing"

	"github.com/gviegas/meshdraw/driver"
)

func TestLoad(t *testing.T) {
	drv, gpu, err := Load("SOFT", driver.Config{})
	if err != nil {
		t.Fatalf("Load:\nhave %v\nwant nil", err)
	}
	defer drv.Close()
	if drv.Name() != "soft" {
		t.Fatalf("Driver.Name:\nhave %s\nwant soft", drv.Name())
	}
	if gpu == nil {
		t.Fatal("Load: unexpected nil driver.GPU")
	}
	if gpu.Driver() != drv {
		t.Fatalf("GPU.Driver:\nhave %v\nwant %v", gpu.Driver(), drv)
	}
	if u, err := drv.Open(driver.Config{}); u != gpu || err != nil {
		t.Fatalf("Driver.Open: ctxt mismatch\nhave %v, %v\nwant %v, nil", u, err, gpu)
	}
}

func TestLoadMissing(t *testing.T) {
	_, _, err := Load("no such driver", driver.Config{})
	if !errors.Is(err, ErrNoDriver) {
		t.Fatalf("Load:\nhave %v\nwant %v", err, ErrNoDriver)
	}
}

var errOpen = errors.New("device lacks mesh shaders")

// failing is a driver that cannot be opened.
type failing struct{}

func (failing) Open(driver.Config) (driver.GPU, error) { return nil, errOpen }
func (failing) Name() string                           { return "failing" }
func (failing) Close()                                 {}

func TestLoadNoFallback(t *testing.T) {
	driver.Register(failing{})

	_, _, err := Load("FAIL", driver.Config{})
	if !errors.Is(err, errOpen) {
		t.Fatalf("Load:\nhave %v\nwant %v", err, errOpen)
	}

	// The soft driver is only used when asked for.
	drv, _, err := Load("", driver.Config{})
	switch {
	case err == nil:
		defer drv.Close()
		if drv.Name() == "soft" {
			t.Fatal("Load: unexpected fallback to the soft driver")
		}
	case runtime.GOOS != "windows" && !errors.Is(err, errOpen):
		t.Fatalf("Load:\nhave %v\nwant %v", err, errOpen)
	}
}
