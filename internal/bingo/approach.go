package bingo

import "sort"

// Approaching lists players whose best line is missing exactly one or two
// numbers, closest first. Read-only; recomputed after every draw.
func (g *Game) Approaching() []Approach {
	g.mu.Lock()
	defer g.mu.Unlock()

	var approaching []Approach
	for _, p := range g.players {
		min := Size
		for _, pc := range p.Cards {
			if m := pc.MinMissing(); m < min {
				min = m
			}
		}
		if min == 1 || min == 2 {
			approaching = append(approaching, Approach{
				Phone:   p.Phone,
				Missing: min,
				Trial:   p.Trial,
			})
		}
	}

	sort.SliceStable(approaching, func(i, j int) bool {
		if approaching[i].Missing != approaching[j].Missing {
			return approaching[i].Missing < approaching[j].Missing
		}
		return approaching[i].Phone < approaching[j].Phone
	})
	return approaching
}
