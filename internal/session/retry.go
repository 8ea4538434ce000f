package session

// RetryPolicy is the bounded reconnection budget for one session. The
// budget is consumed by transport failures and is not refilled by later
// successful exchanges.
type RetryPolicy struct {
	max     int
	attempt int
}

// NewRetryPolicy creates a policy allowing max reconnect attempts.
func NewRetryPolicy(max int) *RetryPolicy {
	return &RetryPolicy{max: max}
}

// Next consumes one attempt. It returns false when the budget is exhausted,
// in which case no attempt was consumed.
func (p *RetryPolicy) Next() bool {
	if p.attempt >= p.max {
		return false
	}
	p.attempt++
	return true
}

// Attempt returns the number of attempts consumed so far.
func (p *RetryPolicy) Attempt() int {
	return p.attempt
}

// Remaining returns the attempts left in the budget.
func (p *RetryPolicy) Remaining() int {
	return p.max - p.attempt
}
