package phrasemem

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/ieee0824/translate-go/internal/logger"
	"github.com/ieee0824/translate-go/language"
)

const schema = `
CREATE TABLE IF NOT EXISTS vocabulary (
	id    INTEGER PRIMARY KEY,
	word  TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS alignments (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	domain      INTEGER NOT NULL,
	source      BLOB NOT NULL,
	source_len  INTEGER NOT NULL,
	payload     BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS alignments_source ON alignments(source);
`

// Store is a SQLite-backed phrase memory. Records are kept as msgpack
// payloads keyed by the packed source phrase; the word ids they use are
// persisted in the vocabulary table so they stay valid across runs.
type Store struct {
	db  *sql.DB
	log *log.Logger

	mu        sync.Mutex // serializes writers
	vocab     *language.Vocabulary
	persisted int // vocabulary ids below this are in the database
	maxLength int
}

// Open opens or creates the store at path and loads its vocabulary.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Store{db: db, log: logger.New("phrasemem"), vocab: language.NewVocabulary()}
	if err := s.loadVocabulary(); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.QueryRow("SELECT COALESCE(MAX(source_len), 0) FROM alignments").Scan(&s.maxLength); err != nil {
		db.Close()
		return nil, fmt.Errorf("max phrase length: %w", err)
	}
	s.log.Debug("opened store", "path", path, "vocabulary", s.vocab.Size(), "max_length", s.maxLength)
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Vocabulary returns the vocabulary of the stored records.
func (s *Store) Vocabulary() *language.Vocabulary { return s.vocab }

// MaxPhraseLength returns the length of the longest stored source phrase.
func (s *Store) MaxPhraseLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxLength
}

func (s *Store) loadVocabulary() error {
	rows, err := s.db.Query("SELECT id, word FROM vocabulary ORDER BY id")
	if err != nil {
		return fmt.Errorf("load vocabulary: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var word string
		if err := rows.Scan(&id, &word); err != nil {
			return fmt.Errorf("scan vocabulary: %w", err)
		}
		if got := s.vocab.Add(word); int64(got) != id {
			return fmt.Errorf("vocabulary: word %q stored as %d, loaded as %d", word, id, got)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load vocabulary: %w", err)
	}
	s.persisted = s.vocab.Size()
	return nil
}

// AddEntries stores entries in one transaction.
func (s *Store) AddEntries(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO alignments (domain, source, source_len, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	maxLength := s.maxLength
	for _, e := range entries {
		source, opt := e.Option(s.vocab)
		payload, err := msgpack.Marshal(&opt)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, opt.Domain, appendKey(nil, source), len(source), payload); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		maxLength = max(maxLength, len(source))
	}

	size := s.vocab.Size()
	for id := s.persisted; id < size; id++ {
		if _, err := tx.ExecContext(ctx, `INSERT INTO vocabulary (id, word) VALUES (?, ?)`,
			id, s.vocab.Word(language.WordID(id))); err != nil {
			return fmt.Errorf("insert vocabulary: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.persisted = size
	s.maxLength = maxLength
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alignments").Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// LoadIndex reads every record into a MemoryIndex sharing the store's
// vocabulary.
func (s *Store) LoadIndex(ctx context.Context) (*MemoryIndex, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT source, payload FROM alignments ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	defer rows.Close()

	idx := NewMemoryIndex(s.vocab)
	for rows.Next() {
		var source, payload []byte
		if err := rows.Scan(&source, &payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var opt TranslationOption
		if err := msgpack.Unmarshal(payload, &opt); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		idx.Add(decodeKey(source), opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	s.log.Info("loaded phrase memory", "records", idx.Len())
	return idx, nil
}

// GetAllTranslationOptions implements Engine with one indexed query per
// source span.
func (s *Store) GetAllTranslationOptions(ctx context.Context, sentence []language.WordID, domains language.Context, sampleLimit int) (Table, error) {
	maxLength := s.MaxPhraseLength()
	stmt, err := s.db.PrepareContext(ctx, "SELECT payload FROM alignments WHERE source = ? ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("prepare lookup: %w", err)
	}
	defer stmt.Close()

	table := make(Table)
	for start := range sentence {
		for end := start + 1; end <= len(sentence) && end-start <= maxLength; end++ {
			key := appendKey(nil, sentence[start:end])
			if _, seen := table[string(key)]; seen {
				continue
			}
			opts, err := s.query(ctx, stmt, key)
			if err != nil {
				return nil, err
			}
			if len(opts) > 0 {
				table[string(key)] = sample(opts, domains, sampleLimit)
			}
		}
	}
	return table, nil
}

func (s *Store) query(ctx context.Context, stmt *sql.Stmt, key []byte) ([]TranslationOption, error) {
	rows, err := stmt.QueryContext(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup: %w", err)
	}
	defer rows.Close()

	var opts []TranslationOption
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var opt TranslationOption
		if err := msgpack.Unmarshal(payload, &opt); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		opts = append(opts, opt)
	}
	return opts, rows.Err()
}
