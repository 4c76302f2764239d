// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package ctxt selects and opens the GPU driver used in
// the engine.
package ctxt

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
	"github.com/gviegas/meshdraw/internal/logger"
)

// ErrNoDriver means that no registered driver matched the
// requested name.
var ErrNoDriver = errors.New("ctxt: driver not found")

// reference is the name of the pure-Go driver. It is
// never selected unless requested by name.
const reference = "soft"

// Load opens the first driver whose name contains the
// name string. It is case insensitive.
// If name is the empty string, then every registered
// driver except the reference one is considered, in
// registration order.
// A driver that fails to open is fatal: its error is
// returned and no other driver is tried.
func Load(name string, cfg driver.Config) (driver.Driver, driver.GPU, error) {
	drivers := driver.Drivers()
	implicit := name == ""
	name = strings.ToLower(name)
	for i := range drivers {
		dn := drivers[i].Name()
		if implicit && dn == reference {
			continue
		}
		if !strings.Contains(strings.ToLower(dn), name) {
			continue
		}
		u, err := drivers[i].Open(cfg)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "ctxt: %s", dn)
		}
		logger.Logger().Info("driver selected", "driver", dn)
		return drivers[i], u, nil
	}
	return nil, nil, ErrNoDriver
}
