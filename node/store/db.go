package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"timechain.dev/core/ledger"
	"timechain.dev/core/registry"
	"timechain.dev/core/slashing"
)

var (
	bucketUTXO      = []byte("utxo_by_outpoint")
	bucketLocked    = []byte("locked_outpoints")
	bucketNonces    = []byte("nonce_by_address")
	bucketNodes     = []byte("masternode_by_id")
	bucketSlashLog  = []byte("slashing_records")
)

// DB is the bbolt-backed journal of ledger, registry, and slashing state
// (spec.md SPEC_FULL.md [DOMAIN] Third-party stack), grounded on the teacher's
// node/store/db.go bucket-per-concern layout.
type DB struct {
	networkDir string
	db         *bolt.DB
	manifest   *Manifest
}

// Open opens (and if absent, initializes) the bbolt journal for a network
// under datadir.
func Open(datadir, network string) (*DB, error) {
	if datadir == "" {
		return nil, fmt.Errorf("datadir required")
	}
	if network == "" {
		return nil, fmt.Errorf("network required")
	}

	networkDir := NetworkDir(datadir, network)
	if err := ensureDir(networkDir); err != nil {
		return nil, err
	}
	if err := ensureDir(filepath.Join(networkDir, "db")); err != nil {
		return nil, err
	}

	path := filepath.Join(networkDir, "db", "kv.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}

	d := &DB{networkDir: networkDir, db: bdb}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketUTXO, bucketLocked, bucketNonces, bucketNodes, bucketSlashLog} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	m, err := readManifest(networkDir)
	if err != nil {
		if os.IsNotExist(err) {
			d.manifest = &Manifest{SchemaVersion: SchemaVersionV1, Network: network}
			return d, nil
		}
		_ = bdb.Close()
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	d.manifest = m
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Manifest returns the last-committed day pointer.
func (d *DB) Manifest() *Manifest { return d.manifest }

// CommitDay advances the manifest to record dayNumber as the last day
// whose block has been durably applied (spec.md §4.5 Daily trigger).
func (d *DB) CommitDay(dayNumber uint64, previousBlockHashHex string, at time.Time) error {
	m := &Manifest{
		SchemaVersion:        SchemaVersionV1,
		Network:              d.manifest.Network,
		DayNumber:            dayNumber,
		PreviousBlockHashHex: previousBlockHashHex,
		LastCommittedAtUnix:  at.Unix(),
	}
	if err := writeManifestAtomic(d.networkDir, m); err != nil {
		return err
	}
	d.manifest = m
	return nil
}

// PutUTXO and DeleteUTXO mirror the ledger's UTXO set mutations so a
// restarted node can rebuild ledger.Ledger from disk (spec.md §4.1).
func (d *DB) PutUTXO(o ledger.Outpoint, e ledger.UtxoEntry) error {
	val, err := encodeUtxoEntry(e)
	if err != nil {
		return err
	}
	key := encodeOutpointKey(o)
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUTXO).Put(key, val)
	})
}

func (d *DB) DeleteUTXO(o ledger.Outpoint) error {
	key := encodeOutpointKey(o)
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUTXO).Delete(key)
	})
}

// LoadUTXOs replays the entire UTXO set into fn, used to rebuild an
// in-memory ledger.Ledger on startup.
func (d *DB) LoadUTXOs(fn func(ledger.Outpoint, ledger.UtxoEntry) error) error {
	return d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUTXO).ForEach(func(k, v []byte) error {
			o, err := decodeOutpointKey(k)
			if err != nil {
				return err
			}
			e, err := decodeUtxoEntry(v)
			if err != nil {
				return err
			}
			return fn(o, e)
		})
	})
}

// SetLocked journals the ledger's locked-collateral set: locked=true
// records o, locked=false removes it.
func (d *DB) SetLocked(o ledger.Outpoint, locked bool) error {
	key := encodeOutpointKey(o)
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocked)
		if locked {
			return b.Put(key, []byte{1})
		}
		return b.Delete(key)
	})
}

// PutNode and GetNode persist a masternode's registry record.
func (d *DB) PutNode(mn *registry.Masternode) error {
	val, err := encodeNode(mn)
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).Put(mn.ID[:], val)
	})
}

func (d *DB) GetNode(id registry.NodeID) (*registry.Masternode, bool, error) {
	var out *registry.Masternode
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketNodes).Get(id[:])
		if v == nil {
			return nil
		}
		mn, err := decodeNode(v)
		if err != nil {
			return err
		}
		out = mn
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// LoadNodes replays every persisted masternode into fn, to rebuild
// registry.Registry on startup.
func (d *DB) LoadNodes(fn func(*registry.Masternode) error) error {
	return d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(_, v []byte) error {
			mn, err := decodeNode(v)
			if err != nil {
				return err
			}
			return fn(mn)
		})
	})
}

// AppendSlashingRecord journals a slashing executor result, keyed by
// RecordID so replays are idempotent.
func (d *DB) AppendSlashingRecord(rec slashing.SlashingRecord) error {
	val, err := encodeSlashingRecord(rec)
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSlashLog).Put([]byte(rec.RecordID), val)
	})
}

func decodeOutpointKey(key []byte) (ledger.Outpoint, error) {
	if len(key) != 36 {
		return ledger.Outpoint{}, fmt.Errorf("malformed outpoint key: %d bytes", len(key))
	}
	var o ledger.Outpoint
	copy(o.TxHash[:], key[:32])
	o.Index = beUint32(key[32:36])
	return o, nil
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
