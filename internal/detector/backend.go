package detector

import (
	"fmt"
	"strings"
)

// Backend names accepted by NewBackend.
const (
	BackendNone   = "none"
	BackendZXing  = "zxing"
	BackendQuirc  = "quirc"
	BackendLocate = "zxing-locate"
)

// NewBackend returns the named backend; "none" or "" returns nil, which a
// FastPath treats as unsupported.
func NewBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendNone:
		return nil, nil
	case BackendZXing:
		return &ZXingBackend{}, nil
	case BackendLocate:
		return &ZXingBackend{LocateOnly: true}, nil
	case BackendQuirc:
		return QuircBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown detector backend %q (want none, zxing, zxing-locate or quirc)", name)
	}
}
