//go:build !linux

package process

import (
	"github.com/go-logr/logr"

	"github.com/PrimeBuild-pc/threadpilot/pkg/affinity"
)

// ProcLister has no implementation on this platform.
type ProcLister struct {
	Root string
}

func (l ProcLister) List() ([]Process, error) {
	return nil, ErrUnsupported
}

// UnixController has no implementation on this platform.
type UnixController struct {
	Logger logr.Logger
}

func (c UnixController) SetAffinity(pid int, mask affinity.Mask) error {
	return ErrUnsupported
}

func (c UnixController) SetPriority(pid int, prio Priority) error {
	return ErrUnsupported
}
