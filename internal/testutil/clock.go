package testutil

import "sync"

// StepClock is a logical clock for trace stores. The first Next returns 1,
// and Current tells how many steps were handed out.
type StepClock struct {
	mu   sync.Mutex
	step int64
}

// NewStepClock returns a clock at step 0.
func NewStepClock() *StepClock {
	return &StepClock{}
}

// Next advances the clock and returns the new step.
func (c *StepClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step++
	return c.step
}

// Current returns the last step handed out.
func (c *StepClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}
