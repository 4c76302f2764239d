// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package wsi

import (
	"reflect"
	"testing"
)

func TestNewWindow(t *testing.T) {
	if _, err := NewWindow(0, 360, "Will fail"); err == nil {
		t.Fatal("NewWindow: 0x360\nhave nil\nwant error")
	}
	switch PlatformInUse() {
	case None:
		win, err := NewWindow(480, 360, "Will fail")
		if win != nil || err != errMissing {
			t.Fatalf("NewWindow: win, err\nhave %v, %v\nwant nil, %v", win, err, errMissing)
		}
		if n := len(Windows()); n != 0 {
			t.Fatalf("len(Windows())\nhave %v\nwant 0", n)
		}
	default:
		win, err := NewWindow(480, 360, "My window")
		if err != nil {
			t.Logf("NewWindow (error): %v", err)
			return
		}
		if n := len(Windows()); n != 1 {
			t.Fatalf("len(Windows())\nhave %v\nwant 1", n)
		}
		if w, h := win.Width(), win.Height(); w != 480 || h != 360 {
			t.Fatalf("Window size\nhave %dx%d\nwant 480x360", w, h)
		}
		win.Poll()
		win.Close()
		if n := len(Windows()); n != 0 {
			t.Fatalf("len(Windows())\nhave %v\nwant 0", n)
		}
	}
}

func TestHeadless(t *testing.T) {
	w := NewHeadless(64, 32, 2)
	if x := w.Width(); x != 64 {
		t.Fatalf("Headless.Width\nhave %d\nwant 64", x)
	}
	if x := w.Height(); x != 32 {
		t.Fatalf("Headless.Height\nhave %d\nwant 32", x)
	}
	if x := w.Handle(); x != 0 {
		t.Fatalf("Headless.Handle\nhave %d\nwant 0", x)
	}
	mv := Event{Kind: MouseMotion, DX: 1, DY: -2}
	w.Push(mv)
	if ev := w.Poll(); !reflect.DeepEqual(ev, []Event{mv}) {
		t.Fatalf("Headless.Poll\nhave %v\nwant %v", ev, []Event{mv})
	}
	if ev := w.Poll(); len(ev) != 0 {
		t.Fatalf("Headless.Poll\nhave %v\nwant []", ev)
	}
	want := []Event{{Kind: Quit}}
	if ev := w.Poll(); !reflect.DeepEqual(ev, want) {
		t.Fatalf("Headless.Poll\nhave %v\nwant %v", ev, want)
	}
	if n := w.Polls(); n != 3 {
		t.Fatalf("Headless.Polls\nhave %d\nwant 3", n)
	}

	w = NewHeadless(64, 32, 0)
	if ev := w.Poll(); len(ev) != 0 {
		t.Fatalf("Headless.Poll\nhave %v\nwant []", ev)
	}
	w.Close()
	if ev := w.Poll(); !reflect.DeepEqual(ev, want) {
		t.Fatalf("Headless.Poll: closed\nhave %v\nwant %v", ev, want)
	}
}

func TestEventKind(t *testing.T) {
	for k, s := range map[EventKind]string{Quit: "Quit", MouseMotion: "MouseMotion", -1: "[!] invalid EventKind value"} {
		if x := k.String(); x != s {
			t.Fatalf("EventKind.String\nhave %s\nwant %s", x, s)
		}
	}
}
