// Package testkit is a conformance suite every storage.Blockstore backend
// runs from its own tests.
package testkit

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/carpin/cidutil"
	"xdao.co/carpin/storage"
)

// NewStore constructs a fresh, empty Blockstore for a test.
// The returned store MUST be isolated from other tests.
type NewStore func(t *testing.T) storage.Blockstore

func sum(t *testing.T, codec uint64, data []byte) cid.Cid {
	t.Helper()
	id, err := cidutil.Sum(codec, data)
	if err != nil {
		t.Fatalf("Sum failed: %v", err)
	}
	return id
}

func RunBlockstoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		want := []byte("hello, block")
		id := sum(t, cid.Raw, want)

		if err := s.Put(id, want); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := s.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
		if err := cidutil.Verify(id, got); err != nil {
			t.Fatalf("Get returned bytes not matching requested CID: %v", err)
		}
	})

	t.Run("CodecsAndVersions", func(t *testing.T) {
		s := newStore(t)
		data := []byte{0x0a, 0x02, 0x08, 0x01}
		v0, err := cidutil.SumV0(data)
		if err != nil {
			t.Fatalf("SumV0 failed: %v", err)
		}
		v1 := sum(t, cid.DagProtobuf, data)
		for _, id := range []cid.Cid{v0, v1} {
			if err := s.Put(id, data); err != nil {
				t.Fatalf("Put(%s) failed: %v", id, err)
			}
			if !s.Has(id) {
				t.Fatalf("Has(%s) false after Put", id)
			}
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		s := newStore(t)
		b := []byte("same bytes")
		id := sum(t, cid.Raw, b)
		if err := s.Put(id, b); err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		if err := s.Put(id, b); err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
	})

	t.Run("PutRejectsMismatch", func(t *testing.T) {
		s := newStore(t)
		id := sum(t, cid.Raw, []byte("expected"))
		err := s.Put(id, []byte("something else"))
		if !errors.Is(err, storage.ErrCIDMismatch) {
			t.Fatalf("Put mismatched: got err=%v want ErrCIDMismatch", err)
		}
		if s.Has(id) {
			t.Fatalf("Has returned true after rejected Put")
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		s := newStore(t)
		b := []byte("missing")
		id := sum(t, cid.Raw, b)

		if s.Has(id) {
			t.Fatalf("Has returned true for missing CID")
		}
		if _, err := s.Get(id); !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}
		if err := s.Put(id, b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !s.Has(id) {
			t.Fatalf("Has returned false after Put")
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		s := newStore(t)
		var undef cid.Cid
		if s.Has(undef) {
			t.Fatalf("Has should be false for undefined CID")
		}
		if _, err := s.Get(undef); err == nil {
			t.Fatalf("Get should fail for undefined CID")
		}
		if err := s.Put(undef, []byte("x")); err == nil {
			t.Fatalf("Put should fail for undefined CID")
		}
	})
}
