package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/go-go-golems/loom/pkg/conversation"
)

var (
	bucketConversations = []byte("conversations")
	bucketIndex         = []byte("chat_index")
)

// BoltStore keeps every conversation in a single bolt file, full documents in
// one bucket and ChatInfo summaries in another so listings stay cheap.
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "could not create store directory for %s", path)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "could not open conversation store %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketConversations); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketIndex)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "could not create store buckets")
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) List() ([]ChatInfo, error) {
	var infos []ChatInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIndex).ForEach(func(k, v []byte) error {
			var info ChatInfo
			if err := json.Unmarshal(v, &info); err != nil {
				// skip malformed entries instead of failing the whole listing
				return nil
			}
			infos = append(infos, info)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})
	return infos, nil
}

func (s *BoltStore) Get(id string) (*conversation.Conversation, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketConversations).Get([]byte(id))
		if v == nil {
			return errors.Wrapf(ErrConversationNotFound, "chat %s", id)
		}
		data = append(data, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var c conversation.Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(err, "could not decode conversation %s", id)
	}
	c.Migrate()
	return &c, nil
}

func (s *BoltStore) Put(c *conversation.Conversation) error {
	if c.ID == "" {
		return errors.New("conversation has no id")
	}

	data, err := json.Marshal(c)
	if err != nil {
		return errors.Wrapf(err, "could not encode conversation %s", c.ID)
	}
	info, err := json.Marshal(infoFor(c))
	if err != nil {
		return errors.Wrapf(err, "could not encode summary for %s", c.ID)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketConversations).Put([]byte(c.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketIndex).Put([]byte(c.ID), info)
	})
}

func (s *BoltStore) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketConversations).Get([]byte(id)) == nil {
			return errors.Wrapf(ErrConversationNotFound, "chat %s", id)
		}
		if err := tx.Bucket(bucketConversations).Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketIndex).Delete([]byte(id))
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
