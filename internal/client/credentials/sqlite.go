package credentials

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/docmark/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/docmark/internal/common"
	"github.com/dmitrijs2005/docmark/internal/cryptox"
	"github.com/dmitrijs2005/docmark/internal/dbx"
)

// codec transforms values on their way in and out of the metadata table.
type codec interface {
	encode(key string, v []byte) ([]byte, error)
	decode(key string, v []byte) ([]byte, error)
}

type plain struct{}

func (plain) encode(_ string, v []byte) ([]byte, error) { return v, nil }
func (plain) decode(_ string, v []byte) ([]byte, error) { return v, nil }

// sealed encrypts with AES-GCM, binding each value to its key name.
type sealed struct {
	key []byte
}

func (s sealed) encode(k string, v []byte) ([]byte, error) {
	return cryptox.Seal(s.key, v, []byte(k))
}

func (s sealed) decode(k string, v []byte) ([]byte, error) {
	out, err := cryptox.Open(s.key, v, []byte(k))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnreadable, k)
	}
	return out, nil
}

// SQLiteStore keeps credentials in the local metadata table.
type SQLiteStore struct {
	db    *sql.DB
	codec codec
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, codec: plain{}}
}

// NewSealedSQLiteStore is like NewSQLiteStore but encrypts values with a key
// derived from secret. The Argon2 salt is created on first use and kept in
// the same table.
func NewSealedSQLiteStore(ctx context.Context, db *sql.DB, secret string) (*SQLiteStore, error) {
	repo := metadata.NewSQLiteRepository(db)

	salt, ok, err := repo.Get(ctx, keySalt)
	if err != nil {
		return nil, err
	}
	if !ok || len(salt) != cryptox.SaltSize {
		salt = common.GenerateRandByteArray(cryptox.SaltSize)
		if err := repo.Set(ctx, keySalt, salt); err != nil {
			return nil, err
		}
	}

	pass := []byte(secret)
	key := cryptox.DeriveKey(pass, salt)
	common.WipeByteArray(pass)

	return &SQLiteStore{db: db, codec: sealed{key: key}}, nil
}

func (s *SQLiteStore) repo() *metadata.SQLiteRepository {
	return metadata.NewSQLiteRepository(s.db)
}

func (s *SQLiteStore) get(ctx context.Context, repo metadata.Repository, key string) ([]byte, error) {
	v, ok, err := repo.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	return s.codec.decode(key, v)
}

func (s *SQLiteStore) put(ctx context.Context, repo metadata.Repository, key string, v []byte) error {
	enc, err := s.codec.encode(key, v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return repo.Set(ctx, key, enc)
}

func (s *SQLiteStore) Token(ctx context.Context) (string, error) {
	v, err := s.get(ctx, s.repo(), KeyToken)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (s *SQLiteStore) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return s.ClearToken(ctx)
	}
	return s.put(ctx, s.repo(), KeyToken, []byte(token))
}

func (s *SQLiteStore) ClearToken(ctx context.Context) error {
	return s.repo().Delete(ctx, KeyToken)
}

func (s *SQLiteStore) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		token, err := s.get(ctx, repo, KeyToken)
		if err != nil {
			return err
		}
		user, err := s.get(ctx, repo, KeyUser)
		if err != nil {
			return err
		}
		snap = Snapshot{Token: string(token), User: user}
		return nil
	})
	return snap, err
}

func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := s.put(ctx, repo, KeyToken, []byte(snap.Token)); err != nil {
			return err
		}
		return s.put(ctx, repo, KeyUser, snap.User)
	})
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return metadata.NewSQLiteRepository(tx).Delete(ctx, KeyToken, KeyUser)
	})
}
