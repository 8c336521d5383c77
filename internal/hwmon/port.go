package hwmon

import (
	"errors"
	"fmt"
	"time"

	"github.com/markusressel/nctfan/internal/util"
)

var ErrTimeout = errors.New("hardware access timed out")

// Port reads and writes single integer values of hardware attributes.
// Implementations must be safe for concurrent use.
type Port interface {
	ReadValue(path string) (int, error)
	WriteValue(path string, value int) error
}

// SysfsPort accesses hwmon attributes through the sysfs filesystem
type SysfsPort struct {
	timeout time.Duration
}

func NewSysfsPort(timeout time.Duration) *SysfsPort {
	return &SysfsPort{
		timeout: timeout,
	}
}

func (p *SysfsPort) ReadValue(path string) (int, error) {
	value := -1
	err := p.withTimeout(path, func() (err error) {
		value, err = util.ReadIntFromFile(path)
		return err
	})
	if err != nil {
		return -1, err
	}
	return value, nil
}

func (p *SysfsPort) WriteValue(path string, value int) error {
	return p.withTimeout(path, func() error {
		return util.WriteIntToFile(value, path)
	})
}

// withTimeout runs op and gives up waiting for it after the configured timeout.
// A stuck op keeps its goroutine, the caller is released.
func (p *SysfsPort) withTimeout(path string, op func() error) error {
	if p.timeout <= 0 {
		return op()
	}

	done := make(chan error, 1)
	go func() {
		done <- op()
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("%w: %s", ErrTimeout, path)
	}
}
