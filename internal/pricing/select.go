package pricing

// Field is one named candidate in a priority chain.
type Field[T any] struct {
	Name string
	Get  func(T) string
}

// Selection is the winner of a priority chain.
type Selection struct {
	Cents int64
	Field string
	Rank  int // index of the winning field in the chain
}

// SelectFirst walks fields in order and returns the first one whose value
// parses to a positive amount. Zero, negative and unparseable values fall
// through to the next field.
func SelectFirst[T any](src T, fields ...Field[T]) (Selection, bool) {
	for i, f := range fields {
		if cents, ok := ParseAmount(f.Get(src)); ok {
			return Selection{Cents: cents, Field: f.Name, Rank: i}, true
		}
	}
	return Selection{}, false
}

// Bucket is a low/mid/high/market price block.
type Bucket struct {
	Low    string
	Mid    string
	High   string
	Market string
}

// BucketChain is the fixed market → mid → low → high priority.
var BucketChain = []Field[Bucket]{
	{Name: "market", Get: func(b Bucket) string { return b.Market }},
	{Name: "mid", Get: func(b Bucket) string { return b.Mid }},
	{Name: "low", Get: func(b Bucket) string { return b.Low }},
	{Name: "high", Get: func(b Bucket) string { return b.High }},
}
