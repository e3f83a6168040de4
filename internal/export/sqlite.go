package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"bggstats/internal/boardgame"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// WriteSQLite creates a fresh database at `path` (replacing any existing file) and
// writes every game and recommendation in a single transaction.
func WriteSQLite(ctx context.Context, path string, games *boardgame.Games, recs boardgame.Recommendations) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, Schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	err = insertAll(ctx, tx, games, recs)
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertAll(ctx context.Context, tx *sql.Tx, games *boardgame.Games, recs boardgame.Recommendations) error {
	insertGame, err := tx.PrepareContext(ctx, `
		insert into games (id, position, title, type, average_rating, num_voters, owned, year, weight, weight_votes, bgg_rank)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertGame.Close()

	insertRec, err := tx.PrepareContext(ctx, `
		insert into recommendations (game_id, position, player_count, best_votes, recommended_votes, not_recommended_votes, vote_count, best_pct, recommended_pct, not_recommended_pct)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertRec.Close()

	for i, game := range games.All() {
		_, err = insertGame.ExecContext(
			ctx,
			game.ID,
			i,
			game.Title,
			game.Type.String(),
			game.AverageRating,
			game.NumVoters,
			game.Owned,
			nullable(game.Year),
			nullable(game.Weight),
			nullable(game.WeightVotes),
			nullableRank(game.Rank),
		)
		if err != nil {
			return fmt.Errorf("insert game %s: %w", game.ID, err)
		}

		for j, rec := range recs[game.ID] {
			_, err = insertRec.ExecContext(
				ctx,
				game.ID,
				j,
				rec.PlayerCount,
				rec.BestVotes,
				rec.RecommendedVotes,
				rec.NotRecommendedVotes,
				rec.VoteCount,
				rec.BestPct,
				rec.RecPct,
				rec.NotRecPct,
			)
			if err != nil {
				return fmt.Errorf("insert recommendation %s/%s: %w", game.ID, rec.PlayerCount, err)
			}
		}
	}
	return nil
}

func nullable[T int | float64](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableRank(r *boardgame.Rank) any {
	if r == nil || !r.Ranked() {
		return nil
	}
	return int(*r)
}
