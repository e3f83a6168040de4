package boardgame

import (
	"cmp"
	"slices"
)

// Games is a set of games keyed by id that remembers insertion order.
type Games struct {
	ids  []string
	byId map[string]*Game
}

func NewGames(games ...Game) *Games {
	g := &Games{byId: make(map[string]*Game, len(games))}
	for _, game := range games {
		g.Add(game)
	}
	return g
}

// Add inserts a copy of game, an existing game with the same id is replaced in place
// without changing its position.
func (g *Games) Add(game Game) {
	if _, exists := g.byId[game.ID]; !exists {
		g.ids = append(g.ids, game.ID)
	}
	g.byId[game.ID] = &game
}

func (g *Games) Get(id string) (*Game, bool) {
	game, ok := g.byId[id]
	return game, ok
}

func (g *Games) Len() int {
	return len(g.ids)
}

// IDs returns the ids in insertion order.
func (g *Games) IDs() []string {
	return slices.Clone(g.ids)
}

// All returns the games in insertion order.
func (g *Games) All() []*Game {
	out := make([]*Game, len(g.ids))
	for i, id := range g.ids {
		out[i] = g.byId[id]
	}
	return out
}

// SortedByRank returns the games ordered by rank, unranked games last, ties broken
// by insertion order.
func (g *Games) SortedByRank() []*Game {
	out := g.All()
	slices.SortStableFunc(out, func(a, b *Game) int {
		return cmp.Compare(a.EffectiveRank(), b.EffectiveRank())
	})
	return out
}

// Snapshot returns copies of every game keyed by id.
func (g *Games) Snapshot() map[string]Game {
	out := make(map[string]Game, len(g.byId))
	for id, game := range g.byId {
		out[id] = *game
	}
	return out
}
