// Package pricing implements the dynamic price engine: the context projection
// over an event's active items and the weighted rebalancer that keeps the sum
// of all prices pinned to the sum of base prices while every price stays
// inside its [min,max] band.
package pricing

import "github.com/openbar/beerexchange/internal/app/domain/event"

// Context holds the aligned vectors the rebalancer operates on. Index i in
// every slice refers to the same item; the order is the stable load order
// (position, then id) so tie-breaks are deterministic.
type Context struct {
	IDs    []string
	Prices []float64
	Base   []float64
	Min    []float64
	Max    []float64
	// Fair is the redistribution weight vector. It aliases Base: an item's
	// fair price defines its share of the target sum.
	Fair []float64
	// TargetSum is the sum of base prices the rebalanced vector must hit.
	TargetSum float64
}

// BuildContext projects item rows into a Context. The rows must already be in
// stable order. Empty input yields empty vectors and a zero target.
func BuildContext(items []event.Item) Context {
	n := len(items)
	ctx := Context{
		IDs:    make([]string, n),
		Prices: make([]float64, n),
		Base:   make([]float64, n),
		Min:    make([]float64, n),
		Max:    make([]float64, n),
	}
	for i, it := range items {
		ctx.IDs[i] = it.ID
		ctx.Prices[i] = it.CurrentPrice
		ctx.Base[i] = it.BasePrice
		ctx.Min[i] = it.MinPrice
		ctx.Max[i] = it.MaxPrice
		ctx.TargetSum += it.BasePrice
	}
	ctx.Fair = ctx.Base
	return ctx
}

// IndexOf returns the position of the item id in the context, or -1.
func (c Context) IndexOf(id string) int {
	for i, candidate := range c.IDs {
		if candidate == id {
			return i
		}
	}
	return -1
}
