package calc

import "errors"

// ErrIncomplete is returned when a ticker lacks the inputs every statistic
// depends on (symbol, industry, price).
var ErrIncomplete = errors.New("incomplete financials")
