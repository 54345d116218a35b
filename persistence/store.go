// Package persistence stores fitted reduced order models under names in a
// single-file bbolt database. Models travel as gob payloads; a small JSON
// metadata record per model makes listings cheap.
package persistence

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"github.com/sciforge/gorom/pkg/errors"
	"github.com/sciforge/gorom/rom"
)

var (
	bucketModels = []byte("models")
	bucketMeta   = []byte("meta")
)

// ModelInfo describes a stored model.
type ModelInfo struct {
	Name    string    `json:"name"`
	Rank    int       `json:"rank"`
	SavedAt time.Time `json:"saved_at"`
}

// Store is a named model store backed by a bbolt file.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "persistence: opening store")
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketModels, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "persistence: initializing buckets")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save serializes a fitted model under the given name, replacing any
// previous model of that name.
func (s *Store) Save(name string, model *rom.ROM) error {
	if name == "" {
		return errors.NewValueError("persistence.Save", "model name must not be empty")
	}
	if model == nil || !model.IsFitted() {
		return errors.NewNotFittedError("ROM", "persistence.Save")
	}

	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(model); err != nil {
		return errors.Wrap(err, "persistence: encoding model")
	}
	meta, err := json.Marshal(ModelInfo{
		Name:    name,
		Rank:    model.Reduction().Rank(),
		SavedAt: time.Now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "persistence: encoding metadata")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketModels).Put([]byte(name), payload.Bytes()); err != nil {
			return errors.Wrap(err, "persistence: writing model")
		}
		return errors.Wrap(tx.Bucket(bucketMeta).Put([]byte(name), meta), "persistence: writing metadata")
	})
}

// Load restores the model stored under the given name. The caller must
// Rebind a database before scaled prediction.
func (s *Store) Load(name string) (*rom.ROM, error) {
	var payload []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketModels).Get([]byte(name))
		if data == nil {
			return errors.Newf("persistence: no model named %q", name)
		}
		payload = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	model := &rom.ROM{}
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(model); err != nil {
		return nil, errors.Wrap(err, "persistence: decoding model")
	}
	return model, nil
}

// Delete removes a stored model; deleting an absent name is not an error.
func (s *Store) Delete(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketModels).Delete([]byte(name)); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Delete([]byte(name))
	})
}

// List returns metadata for every stored model in key order.
func (s *Store) List() ([]ModelInfo, error) {
	var infos []ModelInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).ForEach(func(_, v []byte) error {
			var info ModelInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return err
			}
			infos = append(infos, info)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "persistence: listing models")
	}
	return infos, nil
}
