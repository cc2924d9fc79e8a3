package orchestration

import "sync/atomic"

// FeatureFlag is a boolean switch read once per attempt
type FeatureFlag interface {
	Enabled() bool
}

// StaticFlag is a FeatureFlag fixed at construction
type StaticFlag bool

func (f StaticFlag) Enabled() bool { return bool(f) }

// MockModeFlag is the runtime-togglable "use mock data" switch
type MockModeFlag struct {
	enabled atomic.Bool
}

// NewMockModeFlag creates the switch with its initial value
func NewMockModeFlag(enabled bool) *MockModeFlag {
	f := &MockModeFlag{}
	f.enabled.Store(enabled)
	return f
}

func (f *MockModeFlag) Enabled() bool { return f.enabled.Load() }

// Set changes the switch; attempts already running keep the value they read
func (f *MockModeFlag) Set(enabled bool) { f.enabled.Store(enabled) }
