package pinning

import (
	"errors"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-varint"

	"xdao.co/carpin/car"
	"xdao.co/carpin/cidutil"
)

func TestReplication_StringRoundTrip(t *testing.T) {
	for _, r := range []Replication{ReplicateSync, ReplicateBackground} {
		got, err := ParseReplication(r.String())
		if err != nil {
			t.Fatalf("ParseReplication(%q): %v", r, err)
		}
		if got != r {
			t.Fatalf("got %v want %v", got, r)
		}
	}
	if got, err := ParseReplication(""); err != nil || got != ReplicateSync {
		t.Fatalf("empty mode: got %v, %v", got, err)
	}
	if _, err := ParseReplication("eventually"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSummarizeArchive(t *testing.T) {
	var blocks []car.Block
	for _, s := range []string{"one", "three"} {
		id, err := cidutil.Sum(cid.Raw, []byte(s))
		if err != nil {
			t.Fatalf("Sum: %v", err)
		}
		blocks = append(blocks, car.Block{Cid: id, Bytes: []byte(s)})
	}
	enc, err := car.Encode([]cid.Cid{blocks[1].Cid}, blocks...)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s, err := SummarizeArchive(enc)
	if err != nil {
		t.Fatalf("SummarizeArchive: %v", err)
	}
	if !s.Root.Equals(blocks[1].Cid) || s.Bytes != 8 || len(s.Blocks) != 2 {
		t.Fatalf("unexpected summary: %+v", s)
	}

	if _, err := SummarizeArchive([]byte("nope")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got %v want ErrInvalidInput", err)
	}
	noRoots, _ := car.Encode(nil, blocks...)
	if _, err := SummarizeArchive(noRoots); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got %v want ErrInvalidInput", err)
	}
}

func TestSummarizeArchive_HugeDeclaredSection(t *testing.T) {
	id, err := cidutil.Sum(cid.Raw, []byte("x"))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	enc, err := car.Encode([]cid.Cid{id})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	enc = append(enc, varint.ToUvarint(1<<62)...)
	enc = append(enc, id.Bytes()...)
	enc = append(enc, 'x')

	_, err = SummarizeArchive(enc)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got %v want ErrInvalidInput", err)
	}
}
