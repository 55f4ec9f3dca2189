package types

import "sort"

// NormalizePoints sorts points by date and collapses duplicate dates, keeping
// the last row seen for each date.
func NormalizePoints(points []PricePoint) []PricePoint {
	byDate := make(map[int64]int, len(points))
	out := make([]PricePoint, 0, len(points))
	for _, p := range points {
		p.Date = CalendarDate(p.Date)
		key := p.Date.Unix()
		if i, ok := byDate[key]; ok {
			out[i] = p
			continue
		}
		byDate[key] = len(out)
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
