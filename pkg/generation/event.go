package generation

import (
	"github.com/shopspring/decimal"

	"turion-be/pkg/llm"
)

// Event is one item of a streamed turn. Exactly one field is set.
type Event struct {
	Text string
	Err  error
	Done *Turn
}

// Turn is the settled outcome of one generation.
type Turn struct {
	MessageId string
	Provider  string
	Content   string
	Usage     llm.Usage
	Cost      decimal.Decimal
}
