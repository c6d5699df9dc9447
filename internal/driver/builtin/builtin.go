// Package builtin lists the drivers compiled into gowmbus.
package builtin

import (
	"github.com/witoldo7/gowmbus/internal/driver"
	"github.com/witoldo7/gowmbus/internal/driver/amiplus"
	"github.com/witoldo7/gowmbus/internal/driver/hydrocalm4"
	"github.com/witoldo7/gowmbus/internal/driver/hydrodigit"
)

// Entries returns the bundled drivers in registration order.
func Entries() []driver.Entry {
	return []driver.Entry{
		amiplus.Entry(),
		hydrodigit.Entry(),
		hydrocalm4.Entry(),
	}
}

// NewRegistry returns a registry holding every bundled driver.
func NewRegistry() (*driver.Registry, error) {
	reg := driver.NewRegistry()
	if err := reg.RegisterAll(Entries()...); err != nil {
		return nil, err
	}
	return reg, nil
}
