// Package offsets хранит состояние tgadmin между запусками: offset getUpdates
// для каждого бота и уже встреченных отправителей
package offsets

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

var (
	// BoltDB bucket names
	bucketOffsets = []byte("offsets")
	bucketSenders = []byte("senders")
)

// Sender отправитель, встреченный в updates
type Sender struct {
	LastSeen   time.Time `json:"last_seen"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	TelegramID int64     `json:"telegram_id"`
}

// Store represents BoltDB state storage for tgadmin
type Store struct {
	db *bbolt.DB
}

// Open открывает или создает файл состояния
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	store := &Store{db: db}

	if err := store.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketOffsets, bucketSenders} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func int64Key(v int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(v))
	return key
}

// senderKey botID|telegramID, так Cursor.Seek по префиксу бота отдает его отправителей
func senderKey(botID, telegramID int64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], uint64(botID))
	binary.BigEndian.PutUint64(key[8:], uint64(telegramID))
	return key
}

// SaveOffset сохраняет offset следующего getUpdates для бота
func (s *Store) SaveOffset(ctx context.Context, botID int64, offset int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOffsets)
		if bucket == nil {
			return fmt.Errorf("offsets bucket not found")
		}

		if err := bucket.Put(int64Key(botID), int64Key(int64(offset))); err != nil {
			return fmt.Errorf("failed to save offset: %w", err)
		}
		return nil
	})
}

// GetOffset возвращает сохраненный offset. 0 если бот еще не опрашивался.
func (s *Store) GetOffset(ctx context.Context, botID int64) (int, error) {
	var offset int

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOffsets)
		if bucket == nil {
			return fmt.Errorf("offsets bucket not found")
		}

		value := bucket.Get(int64Key(botID))
		if value == nil {
			return nil
		}
		offset = int(int64(binary.BigEndian.Uint64(value)))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get offset: %w", err)
	}

	return offset, nil
}

// RememberSenders сохраняет отправителей и возвращает тех, кого раньше не было
func (s *Store) RememberSenders(ctx context.Context, botID int64, senders []Sender) ([]Sender, error) {
	var fresh []Sender

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSenders)
		if bucket == nil {
			return fmt.Errorf("senders bucket not found")
		}

		for _, sender := range senders {
			key := senderKey(botID, sender.TelegramID)
			if bucket.Get(key) == nil {
				fresh = append(fresh, sender)
			}

			data, err := json.Marshal(sender)
			if err != nil {
				return fmt.Errorf("failed to marshal sender: %w", err)
			}
			if err := bucket.Put(key, data); err != nil {
				return fmt.Errorf("failed to save sender: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return fresh, nil
}

// ListSenders возвращает всех известных отправителей бота по возрастанию telegram id
func (s *Store) ListSenders(ctx context.Context, botID int64) ([]Sender, error) {
	var senders []Sender
	prefix := int64Key(botID)

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSenders)
		if bucket == nil {
			return fmt.Errorf("senders bucket not found")
		}

		c := bucket.Cursor()
		for k, v := c.Seek(prefix); k != nil && len(k) == 16 && string(k[:8]) == string(prefix); k, v = c.Next() {
			var sender Sender
			if err := json.Unmarshal(v, &sender); err != nil {
				return fmt.Errorf("failed to unmarshal sender: %w", err)
			}
			senders = append(senders, sender)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// отрицательные id (группы) ломают порядок big-endian ключей
	sort.Slice(senders, func(i, j int) bool {
		return senders[i].TelegramID < senders[j].TelegramID
	})

	return senders, nil
}
