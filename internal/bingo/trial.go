package bingo

// Engine-side support for per-session demo auto-play. The private draws
// only touch the trial player's own marks; the shared call history is
// never consulted or extended here.

// TrialValues returns every numeric value on a trial player's cards, in a
// shuffled order. Nil if the phone is unknown or not a trial player.
func (g *Game) TrialValues(phone string) []int {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.players[phone]
	if !ok || !p.Trial {
		return nil
	}

	seen := make(map[int]bool)
	var values []int
	for _, pc := range p.Cards {
		for _, v := range pc.Values() {
			if !seen[v] {
				seen[v] = true
				values = append(values, v)
			}
		}
	}
	g.rng.Shuffle(len(values), func(i, j int) {
		values[i], values[j] = values[j], values[i]
	})
	return values
}

// MarkTrial privately marks a number on a trial player's cards and checks
// for a demo win. Returns false when the phone is unknown, not trial, or
// no line completed. Once a real number has been called the mark is
// refused entirely: the check and the mutation share the lock, so a late
// scheduler tick can never smuggle demo residue into the real round.
func (g *Game) MarkTrial(phone string, number int) (Line, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.called) > 0 {
		return Line{}, false
	}

	p, ok := g.players[phone]
	if !ok || !p.Trial {
		return Line{}, false
	}

	for _, pc := range p.Cards {
		pc.MarkNumber(number)
	}
	for _, pc := range p.Cards {
		if line, won := pc.CheckWin(); won {
			return line, true
		}
	}
	return Line{}, false
}
