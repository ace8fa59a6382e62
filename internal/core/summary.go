package core

// TypeAmount is an amount aggregated by receipt type name.
type TypeAmount struct {
	Name   string
	Amount Money
}

// MonthOverview is a compact spending summary for a specific year+month.
type MonthOverview struct {
	Year   int
	Month  int // 1-12
	Total  Money
	ByType []TypeAmount
}
