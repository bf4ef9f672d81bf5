package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v3"

	"constella/internal/fingerprint"
	"constella/internal/model"
	"constella/internal/store"
)

var (
	badgerMetaKey  = []byte("!constella!meta")
	badgerSongsKey = []byte("!constella!songs")
	badgerKeySpace = byte('k')
)

const postingBytes = 8 // songID uint32 + anchorTime uint32

// Badger persists snapshots in a badger key-value directory. Each fingerprint
// key maps to one value holding its postings back to back, 8 bytes apiece, in
// insertion order. The meta key carries schema version and parameters.
type Badger struct {
	db *badger.DB
}

// NewBadger opens (or creates) the key-value store at dir.
func NewBadger(dir string) (*Badger, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening badger db at %s: %w", dir, err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *Badger) Save(st *store.Store, catalog model.Catalog, cfg fingerprint.Config) error {
	if err := b.db.DropAll(); err != nil {
		return fmt.Errorf("clearing badger db: %w", err)
	}

	songs, err := json.Marshal(catalog)
	if err != nil {
		return fmt.Errorf("encoding catalog: %w", err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	meta := fmt.Sprintf("%d|%s", SchemaVersion, paramString(cfg))
	if err := wb.Set(badgerMetaKey, []byte(meta)); err != nil {
		return err
	}
	if err := wb.Set(badgerSongsKey, songs); err != nil {
		return err
	}

	err = st.Walk(func(k fingerprint.Key, postings []model.Posting) error {
		val := make([]byte, 0, len(postings)*postingBytes)
		var scratch [postingBytes]byte
		for _, p := range postings {
			binary.BigEndian.PutUint32(scratch[0:4], p.SongID)
			binary.BigEndian.PutUint32(scratch[4:8], p.AnchorTime)
			val = append(val, scratch[:]...)
		}
		return wb.Set(encodeBadgerKey(k), val)
	})
	if err != nil {
		return err
	}
	return wb.Flush()
}

func (b *Badger) Load(cfg fingerprint.Config) (*store.Store, model.Catalog, error) {
	st := store.New()
	var catalog model.Catalog

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerMetaKey)
		if err == badger.ErrKeyNotFound {
			// fresh store
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading meta: %w", err)
		}
		if err := item.Value(func(val []byte) error {
			return checkBadgerMeta(val, cfg)
		}); err != nil {
			return err
		}

		item, err = txn.Get(badgerSongsKey)
		if err != nil {
			return fmt.Errorf("reading catalog: %w", err)
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &catalog)
		}); err != nil {
			return fmt.Errorf("decoding catalog: %w", err)
		}
		for i, song := range catalog {
			if song.ID != uint32(i) {
				return fmt.Errorf("%w: song IDs are not dense (entry %d has ID %d)", ErrIncompatibleSnapshot, i, song.ID)
			}
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{badgerKeySpace}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			k, err := decodeBadgerKey(item.Key())
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				if len(val)%postingBytes != 0 {
					return fmt.Errorf("%w: malformed postings for key %v", ErrIncompatibleSnapshot, k)
				}
				for off := 0; off < len(val); off += postingBytes {
					st.Append(k, model.Posting{
						SongID:     binary.BigEndian.Uint32(val[off : off+4]),
						AnchorTime: binary.BigEndian.Uint32(val[off+4 : off+8]),
					})
				}
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return st, catalog, nil
}

func checkBadgerMeta(val []byte, cfg fingerprint.Config) error {
	parts := bytes.SplitN(val, []byte("|"), 2)
	if len(parts) != 2 {
		return fmt.Errorf("%w: malformed meta record", ErrIncompatibleSnapshot)
	}
	if string(parts[0]) != strconv.Itoa(SchemaVersion) {
		return fmt.Errorf("%w: schema version %s, want %d", ErrIncompatibleSnapshot, parts[0], SchemaVersion)
	}
	if string(parts[1]) != paramString(cfg) {
		return fmt.Errorf("%w: snapshot params %q, running %q", ErrIncompatibleSnapshot, parts[1], paramString(cfg))
	}
	return nil
}

func encodeBadgerKey(k fingerprint.Key) []byte {
	buf := make([]byte, 13)
	buf[0] = badgerKeySpace
	binary.BigEndian.PutUint32(buf[1:5], k.F1)
	binary.BigEndian.PutUint32(buf[5:9], k.F2)
	binary.BigEndian.PutUint32(buf[9:13], k.DT)
	return buf
}

func decodeBadgerKey(b []byte) (fingerprint.Key, error) {
	if len(b) != 13 || b[0] != badgerKeySpace {
		return fingerprint.Key{}, fmt.Errorf("%w: malformed fingerprint key %x", ErrIncompatibleSnapshot, b)
	}
	return fingerprint.Key{
		F1: binary.BigEndian.Uint32(b[1:5]),
		F2: binary.BigEndian.Uint32(b[5:9]),
		DT: binary.BigEndian.Uint32(b[9:13]),
	}, nil
}
