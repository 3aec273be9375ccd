package component

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v3"
	"github.com/golang/snappy"

	"github.com/bioimagetools/roimask/mask"
)

// planeStore holds one label plane per Z index between the labeling scan
// and the resolution pass.
type planeStore interface {
	put(z int32, plane []uint32) error
	get(z int32) ([]uint32, error)
	close()
}

// memStore keeps planes in memory, the normal case.
type memStore map[int32][]uint32

func (s memStore) put(z int32, plane []uint32) error {
	s[z] = plane
	return nil
}

func (s memStore) get(z int32) ([]uint32, error) {
	plane, found := s[z]
	if !found {
		return nil, fmt.Errorf("no label plane stored for slice %d", z)
	}
	return plane, nil
}

func (s memStore) close() {}

// diskStore spills snappy-compressed planes to a scratch BadgerDB so that
// volumes whose label planes exceed the memory budget can still be labeled.
// The store and its directory are removed on close.
type diskStore struct {
	dir string
	db  *badger.DB
}

func newDiskStore(scratch string) (*diskStore, error) {
	dir, err := os.MkdirTemp(scratch, "roimask-labels-")
	if err != nil {
		return nil, err
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return &diskStore{dir: dir, db: db}, nil
}

func planeKey(z int32) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(z))
	return key
}

func (s *diskStore) put(z int32, plane []uint32) error {
	raw := make([]byte, len(plane)*4)
	for i, l := range plane {
		binary.LittleEndian.PutUint32(raw[i*4:], l)
	}
	compressed := snappy.Encode(nil, raw)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(planeKey(z), compressed)
	})
}

func (s *diskStore) get(z int32) ([]uint32, error) {
	var plane []uint32
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(planeKey(z))
		if err != nil {
			return err
		}
		compressed, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		raw, err := snappy.Decode(nil, compressed)
		if err != nil {
			return err
		}
		plane = make([]uint32, len(raw)/4)
		for i := range plane {
			plane[i] = binary.LittleEndian.Uint32(raw[i*4:])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading label plane for slice %d: %v", z, err)
	}
	return plane, nil
}

func (s *diskStore) close() {
	if err := s.db.Close(); err != nil {
		mask.Warningf("closing label plane store: %v\n", err)
	}
	os.RemoveAll(s.dir)
}
