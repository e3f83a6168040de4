package boardgame

// Merge folds the owned collection into games. An owned game that is already
// present only has its Owned flag set, every other field keeps the crawled value.
// An owned game that is missing is inserted as is. Applying the same owned set
// twice changes nothing the second time.
func Merge(games *Games, owned []Game) *Games {
	for _, o := range owned {
		existing, ok := games.Get(o.ID)
		if ok {
			existing.Owned = true
			continue
		}
		o.Owned = true
		games.Add(o)
	}
	return games
}
