//go:build slotpooldebug

package slotpool

const poisonByDefault = true
