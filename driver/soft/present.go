// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package soft

import (
	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
	"github.com/gviegas/meshdraw/internal/logger"
)

// Swapchain implements driver.Swapchain.
// Images live in memory that the swapchain owns.
type Swapchain struct {
	gpu    *GPU
	node   *node
	format driver.Format
	images []*Resource
	cur    int
	// Guarded by gpu.mu.
	presented int
}

// NewSwapchain creates a new swapchain.
// The surface handle is not used.
func (g *GPU) NewSwapchain(q driver.Queue, s driver.Surface, n int, f driver.Format) (driver.Swapchain, error) {
	if q != driver.Queue(g.q) {
		return nil, errors.New("soft: NewSwapchain: foreign queue")
	}
	w, h := s.Width(), s.Height()
	if w <= 0 || h <= 0 {
		return nil, errors.Wrapf(driver.ErrSurface, "soft: NewSwapchain: %dx%d surface", w, h)
	}
	if n < 2 || n > 16 {
		return nil, errors.Errorf("soft: NewSwapchain: invalid image count %d", n)
	}
	switch f {
	case driver.BGRA8un, driver.RGBA8un:
	default:
		return nil, errors.Errorf("soft: NewSwapchain: unsupported format %v", f)
	}
	desc := driver.Texture2D(f, w, h, driver.UsageRenderTarget)
	size, _ := g.ResourceSize(&desc)
	mem := &Memory{gpu: g, kind: driver.HeapDefault, buf: make([]byte, size*int64(n))}
	g.mu.Lock()
	defer g.mu.Unlock()
	sc := &Swapchain{
		gpu:    g,
		node:   g.track.add("Swapchain"),
		format: f,
		images: make([]*Resource, n),
	}
	for i := range sc.images {
		sc.images[i] = &Resource{
			gpu:   g,
			mem:   mem,
			off:   size * int64(i),
			size:  size,
			desc:  desc,
			state: driver.StatePresent,
		}
	}
	logger.Logger().Info("swapchain created", "driver", driverName, "images", n, "format", f.String())
	return sc, nil
}

// Images returns the swapchain images.
func (s *Swapchain) Images() []driver.Resource {
	imgs := make([]driver.Resource, len(s.images))
	for i, x := range s.images {
		imgs[i] = x
	}
	return imgs
}

// Current returns the index of the image to render next.
func (s *Swapchain) Current() int { return s.cur }

// Present presents the current image.
// It waits for submitted work to execute, so the image
// state that is checked is the final one.
func (s *Swapchain) Present(vsync bool) error {
	g := s.gpu
	g.q.idle()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lost != nil {
		return g.lost
	}
	if s.node.dead {
		return errors.New("soft: Present: swapchain destroyed")
	}
	if img := s.images[s.cur]; img.state != driver.StatePresent {
		return errors.Wrapf(driver.ErrState, "soft: Present: image %d is %v", s.cur, img.state)
	}
	s.cur = (s.cur + 1) % len(s.images)
	s.presented++
	g.stats.Presents++
	return nil
}

// Presented returns the number of successful presents.
func (s *Swapchain) Presented() int {
	s.gpu.mu.Lock()
	defer s.gpu.mu.Unlock()
	return s.presented
}

// Format returns the images' format.
func (s *Swapchain) Format() driver.Format { return s.format }

// Destroy destroys the swapchain and its images.
func (s *Swapchain) Destroy() {
	if s == nil || s.gpu == nil {
		return
	}
	g := s.gpu
	g.mu.Lock()
	defer g.mu.Unlock()
	g.track.remove(s.node)
	for _, x := range s.images {
		x.dead = true
	}
}
