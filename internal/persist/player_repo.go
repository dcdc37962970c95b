package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrBadCredentials = errors.New("bad credentials")
)

// PlayerRow is one player record.
type PlayerRow struct {
	ID              int64
	Username        string
	Email           string
	Crystals        int64
	Experience      int64
	Rank            int32
	DesertedBattles int64
	NeedGoodBattles int32
	RegisteredAt    time.Time
	LastLoginAt     *time.Time
}

// BattleResultRow is one battle's worth of per-player statistics deltas.
type BattleResultRow struct {
	Kills         int64
	Deaths        int64
	KillAssists   int64
	Score         int64
	BonusesTaken  int64
	FlagsTaken    int64
	FlagsReturned int64
}

// PlayerRepo persists player records and battle statistics.
type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

// NormalizeUsername canonicalizes a username for storage and comparison.
func NormalizeUsername(username string) string {
	return norm.NFC.String(strings.TrimSpace(username))
}

// Register creates a new player row with a bcrypt password digest and an
// empty statistics row.
func (r *PlayerRepo) Register(ctx context.Context, username, email, password string) (*PlayerRow, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return nil, fmt.Errorf("empty username")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := &PlayerRow{Username: username, Email: email, Crystals: 500, Rank: 1}
	err = tx.QueryRow(ctx,
		`INSERT INTO players (username, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, registered_at`,
		username, email, string(hash),
	).Scan(&row.ID, &row.RegisteredAt)
	if err != nil {
		return nil, fmt.Errorf("insert player: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO battle_statistics (player_id) VALUES ($1)`, row.ID); err != nil {
		return nil, fmt.Errorf("insert statistics: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return row, nil
}

// Authenticate checks a username/password pair and stamps last login.
func (r *PlayerRepo) Authenticate(ctx context.Context, username, password string) (*PlayerRow, error) {
	username = NormalizeUsername(username)

	var hash string
	row, err := r.load(ctx, username, &hash)
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrBadCredentials
	}

	if _, err := r.db.Pool.Exec(ctx,
		`UPDATE players SET last_login_at = now() WHERE id = $1`, row.ID); err != nil {
		return nil, fmt.Errorf("stamp login: %w", err)
	}
	return row, nil
}

// Load fetches one player row by username.
func (r *PlayerRepo) Load(ctx context.Context, username string) (*PlayerRow, error) {
	var discard string
	return r.load(ctx, NormalizeUsername(username), &discard)
}

func (r *PlayerRepo) load(ctx context.Context, username string, hash *string) (*PlayerRow, error) {
	row := &PlayerRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, crystals, experience, rank,
		        deserted_battles, need_good_battles, registered_at, last_login_at
		 FROM players WHERE username = $1`, username,
	).Scan(
		&row.ID, &row.Username, &row.Email, hash, &row.Crystals, &row.Experience,
		&row.Rank, &row.DesertedBattles, &row.NeedGoodBattles, &row.RegisteredAt,
		&row.LastLoginAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", username, err)
	}
	return row, nil
}

// UpdateDeserterStatus stores the desertion counters computed by the
// matchmaking handler when a player leaves a battle.
func (r *PlayerRepo) UpdateDeserterStatus(ctx context.Context, playerID int64, deserted int64, needGood int32) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE players SET deserted_battles = $2, need_good_battles = $3 WHERE id = $1`,
		playerID, deserted, needGood)
	if err != nil {
		return fmt.Errorf("update deserter status for %d: %w", playerID, err)
	}
	return nil
}

// RecordBattleResult folds one battle's results into the player's
// statistics row and grants the crystal reward, in one transaction.
func (r *PlayerRepo) RecordBattleResult(ctx context.Context, playerID int64, res BattleResultRow, reward int64) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO battle_statistics (player_id, battles_played, kills, deaths,
		        kill_assists, score, bonuses_taken, flags_taken, flags_returned)
		 VALUES ($1, 1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (player_id) DO UPDATE SET
		        battles_played = battle_statistics.battles_played + 1,
		        kills          = battle_statistics.kills + EXCLUDED.kills,
		        deaths         = battle_statistics.deaths + EXCLUDED.deaths,
		        kill_assists   = battle_statistics.kill_assists + EXCLUDED.kill_assists,
		        score          = battle_statistics.score + EXCLUDED.score,
		        bonuses_taken  = battle_statistics.bonuses_taken + EXCLUDED.bonuses_taken,
		        flags_taken    = battle_statistics.flags_taken + EXCLUDED.flags_taken,
		        flags_returned = battle_statistics.flags_returned + EXCLUDED.flags_returned`,
		playerID, res.Kills, res.Deaths, res.KillAssists, res.Score,
		res.BonusesTaken, res.FlagsTaken, res.FlagsReturned); err != nil {
		return fmt.Errorf("upsert statistics for %d: %w", playerID, err)
	}

	if reward > 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE players SET crystals = crystals + $2 WHERE id = $1`,
			playerID, reward); err != nil {
			return fmt.Errorf("grant reward for %d: %w", playerID, err)
		}
	}

	return tx.Commit(ctx)
}
