// Package cart holds the shopping cart of one browser context.
//
// The cart is an ordered list of line items with unique product ids. Every
// mutation is written through to storage as the full JSON list under a
// single key, and the cart is rehydrated from that key when a Store is
// created. Unreadable or malformed persisted data yields an empty cart; it
// is logged and never returned as an error.
//
// Totals are derived from the items on every call and computed with
// decimal arithmetic, so 2 x 4.99 is exactly 9.98.
//
// The cart is not keyed by user: logging out or switching accounts in the
// same browser context keeps the same cart.
package cart
