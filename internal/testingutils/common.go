package testingutils

import (
	"fmt"
	"os"
	"sync"

	"github.com/markusressel/nctfan/internal/hwmon"
)

// MockPort is an in-memory hwmon.Port.
// Reading a path that was never set fails with os.ErrNotExist.
type MockPort struct {
	mu        sync.Mutex
	values    map[string]int
	readErrs  map[string]error
	writeErrs map[string]error
	writes    []Write
	reads     map[string]int
	OnRead    func(path string)
	OnWrite   func(path string, value int)
	sequences map[string][]int
}

type Write struct {
	Path  string
	Value int
}

func NewMockPort() *MockPort {
	return &MockPort{
		values:    map[string]int{},
		readErrs:  map[string]error{},
		writeErrs: map[string]error{},
		reads:     map[string]int{},
		sequences: map[string][]int{},
	}
}

func (p *MockPort) Set(path string, value int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[path] = value
}

// Unset removes the value of path, reading it fails afterwards
func (p *MockPort) Unset(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.values, path)
}

// SetSequence makes consecutive reads of path return the given values, the last one repeating
func (p *MockPort) SetSequence(path string, values ...int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sequences[path] = values
}

func (p *MockPort) FailRead(path string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErrs[path] = err
}

func (p *MockPort) FailWrite(path string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErrs[path] = err
}

func (p *MockPort) Get(path string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	value, ok := p.values[path]
	return value, ok
}

// Writes returns all writes in the order they happened
func (p *MockPort) Writes() []Write {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Write{}, p.writes...)
}

// WritesTo returns the values written to path in order
func (p *MockPort) WritesTo(path string) []int {
	var result []int
	for _, w := range p.Writes() {
		if w.Path == path {
			result = append(result, w.Value)
		}
	}
	return result
}

func (p *MockPort) ReadCount(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads[path]
}

func (p *MockPort) ReadValue(path string) (int, error) {
	p.mu.Lock()
	p.reads[path]++
	hook := p.OnRead
	value, err := p.lookup(path)
	p.mu.Unlock()

	if hook != nil {
		hook(path)
	}
	return value, err
}

func (p *MockPort) lookup(path string) (int, error) {
	if err, ok := p.readErrs[path]; ok {
		return -1, err
	}
	if sequence, ok := p.sequences[path]; ok && len(sequence) > 0 {
		value := sequence[0]
		if len(sequence) > 1 {
			p.sequences[path] = sequence[1:]
		}
		return value, nil
	}
	value, ok := p.values[path]
	if !ok {
		return -1, fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	return value, nil
}

func (p *MockPort) WriteValue(path string, value int) error {
	p.mu.Lock()
	if err, ok := p.writeErrs[path]; ok {
		p.mu.Unlock()
		return err
	}
	p.values[path] = value
	p.writes = append(p.writes, Write{Path: path, Value: value})
	hook := p.OnWrite
	p.mu.Unlock()

	if hook != nil {
		hook(path, value)
	}
	return nil
}

var _ hwmon.Port = &MockPort{}
