package reddit

import (
	"errors"
	"fmt"
)

// ErrNoPosts is returned by FetchAll when every configured source failed
// all of its strategies. There is nothing to analyze in that case.
var ErrNoPosts = errors.New("no posts fetched from any source")

// StrategyError reports the failure of a single fetch strategy for a
// single source. It is consumed inside the fallback chain and never
// surfaces to callers directly.
type StrategyError struct {
	Source   string
	Strategy string
	Err      error
}

// Error omits the source name: callers prefix it when aggregating, and
// per-source log lines already carry it.
func (e *StrategyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Strategy, e.Err)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}

func strategyErr(source, strategy string, err error) *StrategyError {
	return &StrategyError{Source: source, Strategy: strategy, Err: err}
}
