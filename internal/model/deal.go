package model

// Deal is the slice of a deal record the fee engine needs: its identity
// and category, from which the deal type is derived.
type Deal struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	DealType DealType `json:"dealType"`
}
