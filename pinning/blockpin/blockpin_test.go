package blockpin

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/carpin/car"
	"xdao.co/carpin/cidutil"
	"xdao.co/carpin/pack"
	"xdao.co/carpin/pinning"
	"xdao.co/carpin/storage"
)

func TestAddCar(t *testing.T) {
	store := storage.NewMemStore()
	p := New(store, nil)

	res, err := pack.Blob(bytes.Repeat([]byte("x"), 100), pack.Options{ChunkSize: 16})
	if err != nil {
		t.Fatalf("Blob: %v", err)
	}
	out, err := p.AddCar(context.Background(), res.Car, pinning.AddOptions{Replication: pinning.ReplicateBackground})
	if err != nil {
		t.Fatalf("AddCar: %v", err)
	}
	if !out.Cid.Equals(res.Root) {
		t.Fatalf("cid: got %s want %s", out.Cid, res.Root)
	}
	if out.Bytes == 0 || out.Size != 0 {
		t.Fatalf("AddCar should report Bytes only: %+v", out)
	}
	if store.Len() != res.Blocks {
		t.Fatalf("stored %d blocks, want %d", store.Len(), res.Blocks)
	}
	mode, ok := p.Pinned(res.Root)
	if !ok || mode != pinning.ReplicateBackground {
		t.Fatalf("Pinned: got %v, %v", mode, ok)
	}
}

func TestAdd(t *testing.T) {
	p := New(storage.NewMemStore(), nil)
	data := []byte("a small file")
	out, err := p.Add(context.Background(), data, pinning.AddOptions{})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	want, err := cidutil.Sum(cid.Raw, data)
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if !out.Cid.Equals(want) || out.Size != uint64(len(data)) {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestAddCar_RejectsBadBlocks(t *testing.T) {
	p := New(storage.NewMemStore(), nil)
	id, err := cidutil.Sum(cid.Raw, []byte("claimed"))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	enc, err := car.Encode([]cid.Cid{id}, car.Block{Cid: id, Bytes: []byte("actual")})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := p.AddCar(context.Background(), enc, pinning.AddOptions{}); !errors.Is(err, pinning.ErrInvalidInput) {
		t.Fatalf("got %v want ErrInvalidInput", err)
	}
	if _, ok := p.Pinned(id); ok {
		t.Fatalf("root pinned despite failed import")
	}
}

func TestAddCar_NoStore(t *testing.T) {
	p := &Pinner{}
	if _, err := p.AddCar(context.Background(), nil, pinning.AddOptions{}); !errors.Is(err, pinning.ErrUnavailable) {
		t.Fatalf("got %v want ErrUnavailable", err)
	}
}

func TestAddCar_Canceled(t *testing.T) {
	p := New(storage.NewMemStore(), nil)
	res, err := pack.Blob([]byte("x"), pack.Options{})
	if err != nil {
		t.Fatalf("Blob: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.AddCar(ctx, res.Car, pinning.AddOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v want context.Canceled", err)
	}
}
