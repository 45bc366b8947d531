package nats

import (
	"github.com/halcyonwav/txcanon/service/solana"
)

// ResultEvent is the record handed off for one processed signature: the
// canonical transaction plus its classification tag. This is the boundary
// payload consumed by downstream renderers.
type ResultEvent struct {
	Signature      string                       `json:"signature"`
	Transaction    *solana.CanonicalTransaction `json:"transaction"`
	Classification solana.Classification        `json:"classification"`
}
