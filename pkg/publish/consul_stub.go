//go:build !consul

package publish

import "errors"

// ConsulEnabled reports whether the binary was built with the consul tag.
func ConsulEnabled() bool { return false }

// NewConsulPublisher is unavailable without the consul build tag.
func NewConsulPublisher(addr, _, _, _ string) (Publisher, error) {
	return nil, errors.New("consul publisher requested (addr=" + addr + ") but consul build tag not enabled")
}
