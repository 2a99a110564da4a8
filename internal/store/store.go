// Package store persists widget configuration and bot state in sqlite.
//
// Widget configs are stored as JSON blobs and merged shallowly on save so a
// partial update from the dashboard never wipes unrelated keys.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zexaal/stream-companion/internal/database"
)

type Store struct {
	db *database.DB
}

type storeModule struct{}

func (storeModule) Name() string { return "store" }

func (storeModule) Migrations() []database.Migration {
	return []database.Migration{
		{
			Version:     1,
			Description: "widget configs, last events, banned words",
			SQL: `
				CREATE TABLE IF NOT EXISTS widget_configs (
					widget TEXT PRIMARY KEY,
					config TEXT NOT NULL,
					updated_at INTEGER NOT NULL
				);
				CREATE TABLE IF NOT EXISTS last_events (
					event TEXT PRIMARY KEY,
					username TEXT NOT NULL,
					detail TEXT NOT NULL DEFAULT '',
					updated_at INTEGER NOT NULL
				);
				CREATE TABLE IF NOT EXISTS banned_words (
					word TEXT PRIMARY KEY
				);
			`,
		},
		{
			Version:     2,
			Description: "giveaway state and static commands",
			SQL: `
				CREATE TABLE IF NOT EXISTS giveaway_participants (
					username TEXT PRIMARY KEY,
					entered_at INTEGER NOT NULL
				);
				CREATE TABLE IF NOT EXISTS giveaway_state (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					active INTEGER NOT NULL DEFAULT 0
				);
				CREATE TABLE IF NOT EXISTS static_commands (
					command TEXT PRIMARY KEY,
					response TEXT NOT NULL
				);
			`,
		},
		{
			Version:     3,
			Description: "spotify oauth tokens",
			SQL: `
				CREATE TABLE IF NOT EXISTS oauth_tokens (
					provider TEXT PRIMARY KEY,
					access_token TEXT NOT NULL,
					refresh_token TEXT NOT NULL DEFAULT '',
					expires_at INTEGER NOT NULL
				);
			`,
		},
	}
}

func New(db *database.DB) (*Store, error) {
	if err := db.RegisterModule(storeModule{}); err != nil {
		return nil, fmt.Errorf("failed to register store module: %w", err)
	}
	return &Store{db: db}, nil
}

// GetWidgetConfig returns the stored config for a widget merged over the
// given defaults. Unknown widgets return the defaults unchanged.
func (s *Store) GetWidgetConfig(widget string, defaults map[string]any) (map[string]any, error) {
	merged := make(map[string]any, len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}

	var raw string
	err := s.db.QueryRow("SELECT config FROM widget_configs WHERE widget = ?", widget).Scan(&raw)
	if err == sql.ErrNoRows {
		return merged, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load widget config %s: %w", widget, err)
	}

	var stored map[string]any
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("failed to decode widget config %s: %w", widget, err)
	}
	for k, v := range stored {
		merged[k] = v
	}
	return merged, nil
}

// SaveWidgetConfig merges the given keys into the stored config. Keys absent
// from update are left untouched.
func (s *Store) SaveWidgetConfig(widget string, update map[string]any) (map[string]any, error) {
	current, err := s.GetWidgetConfig(widget, nil)
	if err != nil {
		return nil, err
	}
	if current == nil {
		current = make(map[string]any)
	}
	for k, v := range update {
		current[k] = v
	}

	data, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to encode widget config %s: %w", widget, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO widget_configs (widget, config, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(widget) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at
	`, widget, string(data), time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to save widget config %s: %w", widget, err)
	}
	return current, nil
}

type LastEvent struct {
	Event    string
	Username string
	Detail   string
}

func (s *Store) SetLastEvent(event, username, detail string) error {
	_, err := s.db.Exec(`
		INSERT INTO last_events (event, username, detail, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(event) DO UPDATE SET username = excluded.username,
			detail = excluded.detail, updated_at = excluded.updated_at
	`, event, username, detail, time.Now().Unix())
	return err
}

func (s *Store) GetLastEvents() ([]LastEvent, error) {
	rows, err := s.db.Query("SELECT event, username, detail FROM last_events ORDER BY event")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []LastEvent
	for rows.Next() {
		var e LastEvent
		if err := rows.Scan(&e.Event, &e.Username, &e.Detail); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) GetBannedWords() ([]string, error) {
	rows, err := s.db.Query("SELECT word FROM banned_words ORDER BY word")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	return words, rows.Err()
}

func (s *Store) AddBannedWord(word string) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO banned_words (word) VALUES (?)", word)
	return err
}

func (s *Store) RemoveBannedWord(word string) error {
	_, err := s.db.Exec("DELETE FROM banned_words WHERE word = ?", word)
	return err
}

func (s *Store) ClearBannedWords() error {
	_, err := s.db.Exec("DELETE FROM banned_words")
	return err
}

// AddGiveawayParticipant records an entry. Returns false if the user had
// already entered.
func (s *Store) AddGiveawayParticipant(username string) (bool, error) {
	res, err := s.db.Exec(
		"INSERT OR IGNORE INTO giveaway_participants (username, entered_at) VALUES (?, ?)",
		username, time.Now().Unix())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) GiveawayParticipants() ([]string, error) {
	rows, err := s.db.Query("SELECT username FROM giveaway_participants ORDER BY entered_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) ClearGiveaway() error {
	_, err := s.db.Exec("DELETE FROM giveaway_participants")
	return err
}

func (s *Store) SetGiveawayActive(active bool) error {
	v := 0
	if active {
		v = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO giveaway_state (id, active) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET active = excluded.active
	`, v)
	return err
}

func (s *Store) GiveawayActive() (bool, error) {
	var v int
	err := s.db.QueryRow("SELECT active FROM giveaway_state WHERE id = 1").Scan(&v)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == 1, nil
}

func (s *Store) StaticCommands() (map[string]string, error) {
	rows, err := s.db.Query("SELECT command, response FROM static_commands")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	commands := make(map[string]string)
	for rows.Next() {
		var cmd, resp string
		if err := rows.Scan(&cmd, &resp); err != nil {
			return nil, err
		}
		commands[cmd] = resp
	}
	return commands, rows.Err()
}

func (s *Store) SetStaticCommand(command, response string) error {
	_, err := s.db.Exec(`
		INSERT INTO static_commands (command, response) VALUES (?, ?)
		ON CONFLICT(command) DO UPDATE SET response = excluded.response
	`, command, response)
	return err
}

func (s *Store) DeleteStaticCommand(command string) error {
	_, err := s.db.Exec("DELETE FROM static_commands WHERE command = ?", command)
	return err
}

type OAuthToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

func (s *Store) GetOAuthToken(provider string) (*OAuthToken, error) {
	var t OAuthToken
	var expires int64
	err := s.db.QueryRow(
		"SELECT access_token, refresh_token, expires_at FROM oauth_tokens WHERE provider = ?",
		provider).Scan(&t.AccessToken, &t.RefreshToken, &expires)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.ExpiresAt = time.Unix(expires, 0)
	return &t, nil
}

func (s *Store) SaveOAuthToken(provider string, token OAuthToken) error {
	_, err := s.db.Exec(`
		INSERT INTO oauth_tokens (provider, access_token, refresh_token, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET access_token = excluded.access_token,
			refresh_token = excluded.refresh_token, expires_at = excluded.expires_at
	`, provider, token.AccessToken, token.RefreshToken, token.ExpiresAt.Unix())
	return err
}
