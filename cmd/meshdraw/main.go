// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Command meshdraw renders a meshlet scene in a window.
//
// Usage:
//
//	meshdraw [flags]
//
// Flags override the values read from the -config file.
// With -frames, a headless surface is used and the
// program exits after rendering that many frames.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/engine"
	"github.com/gviegas/meshdraw/engine/camera"
	"github.com/gviegas/meshdraw/wsi"
)

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintln(os.Stderr, "meshdraw:", err)
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("meshdraw", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgPath = fs.String("config", "", "TOML configuration `file`")
		drv     = fs.String("driver", "", "substring of the driver name")
		debug   = fs.Bool("debug", false, "enable driver validation and debug logging")
		width   = fs.Int("width", 0, "surface width")
		height  = fs.Int("height", 0, "surface height")
		shaders = fs.String("shaders", "", "shader binary `directory`")
		mesh    = fs.String("mesh", "", "glTF `file` to render")
		frames  = fs.Int("frames", 0, "render `n` frames on a headless surface and exit")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "driver":
			cfg.Driver = *drv
		case "debug":
			cfg.Debug = *debug
		case "width":
			cfg.Width = *width
		case "height":
			cfg.Height = *height
		case "shaders":
			cfg.ShaderDir = *shaders
		case "mesh":
			cfg.Mesh = *mesh
		}
	})

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	engine.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	var win wsi.Window
	if *frames > 0 {
		win = wsi.NewHeadless(cfg.Width, cfg.Height, *frames)
	} else if win, err = wsi.NewWindow(cfg.Width, cfg.Height, "meshdraw"); err != nil {
		return err
	}
	defer win.Close()

	e, err := engine.New(&cfg, win)
	if err != nil {
		return err
	}
	err = e.Run(win, camera.New(cfg.CameraPosition, cfg.CameraRotation))
	if cerr := e.Close(); err == nil {
		err = cerr
	}
	return err
}

func loadConfig(path string) (engine.Config, error) {
	if path == "" {
		return engine.DefaultConfig(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return engine.Config{}, errors.Wrap(err, "config")
	}
	defer f.Close()
	return engine.LoadConfig(f)
}
