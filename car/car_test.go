package car

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-varint"

	"xdao.co/carpin/cidutil"
)

func rawBlock(t *testing.T, data string) Block {
	t.Helper()
	id, err := cidutil.Sum(cid.Raw, []byte(data))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	return Block{Cid: id, Bytes: []byte(data)}
}

func TestEncodeRead_RoundTrip(t *testing.T) {
	a := rawBlock(t, "alpha")
	b := rawBlock(t, "beta")

	enc, err := Encode([]cid.Cid{a.Cid}, a, b)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Read(enc)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got.Roots) != 1 || !got.Roots[0].Equals(a.Cid) {
		t.Fatalf("roots: got %v want [%s]", got.Roots, a.Cid)
	}
	if len(got.Blocks) != 2 {
		t.Fatalf("blocks: got %d want 2", len(got.Blocks))
	}
	for i, want := range []Block{a, b} {
		if !got.Blocks[i].Cid.Equals(want.Cid) || !bytes.Equal(got.Blocks[i].Bytes, want.Bytes) {
			t.Fatalf("block %d mismatch", i)
		}
	}
}

func TestRead_CIDv0Section(t *testing.T) {
	data := []byte{0x0a, 0x00}
	id, err := cidutil.SumV0(data)
	if err != nil {
		t.Fatalf("SumV0: %v", err)
	}
	enc, err := Encode([]cid.Cid{id}, Block{Cid: id, Bytes: data})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Read(enc)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Blocks[0].Cid.Version() != 0 || !bytes.Equal(got.Blocks[0].Bytes, data) {
		t.Fatalf("unexpected v0 block: %+v", got.Blocks[0])
	}
}

func TestRead_NoRootsIsNotAReaderError(t *testing.T) {
	enc, err := Encode(nil, rawBlock(t, "x"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Read(enc)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got.Roots) != 0 {
		t.Fatalf("expected no roots, got %v", got.Roots)
	}
}

func TestRead_MalformedHeader(t *testing.T) {
	cases := map[string][]byte{
		"empty":          nil,
		"zero length":    {0x00},
		"short header":   append(varint.ToUvarint(10), 0xa1),
		"not cbor map":   append(varint.ToUvarint(1), 0x01),
		"version 2":      append(varint.ToUvarint(10), []byte{0xa1, 0x67, 'v', 'e', 'r', 's', 'i', 'o', 'n', 0x02}...),
		"bad root bytes": headerWithRoot(t, []byte{0x01, 0x55}),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Read(in)
			if !errors.Is(err, ErrMalformedHeader) {
				t.Fatalf("got %v want ErrMalformedHeader", err)
			}
		})
	}
}

func headerWithRoot(t *testing.T, content []byte) []byte {
	t.Helper()
	b, err := cbor.Marshal(map[string]any{
		"version": 1,
		"roots":   []any{cbor.Tag{Number: 42, Content: content}},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return append(varint.ToUvarint(uint64(len(b))), b...)
}

func TestNext_SectionErrors(t *testing.T) {
	a := rawBlock(t, "alpha")
	valid, err := Encode([]cid.Cid{a.Cid}, a)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	t.Run("truncated", func(t *testing.T) {
		_, err := Read(valid[:len(valid)-2])
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("got %v want ErrTruncated", err)
		}
	})
	t.Run("zero length", func(t *testing.T) {
		_, err := Read(append(append([]byte{}, valid...), 0x00))
		if !errors.Is(err, ErrZeroLengthSection) {
			t.Fatalf("got %v want ErrZeroLengthSection", err)
		}
	})
	t.Run("garbage cid", func(t *testing.T) {
		in := append(append([]byte{}, valid...), 0x03, 0xff, 0xff, 0xff)
		_, err := Read(in)
		if !errors.Is(err, ErrInvalidSection) {
			t.Fatalf("got %v want ErrInvalidSection", err)
		}
	})
	t.Run("bytes do not match cid", func(t *testing.T) {
		other := rawBlock(t, "other")
		in, err := Encode([]cid.Cid{a.Cid}, Block{Cid: a.Cid, Bytes: other.Bytes})
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if _, err := Read(in); !errors.Is(err, ErrInvalidSection) {
			t.Fatalf("got %v want ErrInvalidSection", err)
		}
	})
}

// hugeSection appends a section that declares size bytes but carries only a
// CID and one payload byte.
func hugeSection(t *testing.T, size uint64) []byte {
	t.Helper()
	a := rawBlock(t, "alpha")
	head, err := Encode([]cid.Cid{a.Cid})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out := append(head, varint.ToUvarint(size)...)
	out = append(out, a.Cid.Bytes()...)
	return append(out, 'x')
}

func TestNext_HugeDeclaredSection(t *testing.T) {
	in := hugeSection(t, 1<<62)

	t.Run("no limit", func(t *testing.T) {
		_, err := Read(in)
		if !errors.Is(err, ErrSectionTooLarge) {
			t.Fatalf("got %v want ErrSectionTooLarge", err)
		}
	})
	t.Run("block limit", func(t *testing.T) {
		_, err := Read(in, MaxBlockSize(1<<20))
		var tooBig *BlockTooBigError
		if !errors.As(err, &tooBig) {
			t.Fatalf("got %v want *BlockTooBigError", err)
		}
		if tooBig.Size != 1<<62 || tooBig.Cid.Defined() {
			t.Fatalf("unexpected error fields: %+v", tooBig)
		}
	})
	t.Run("within bound but truncated", func(t *testing.T) {
		_, err := Read(hugeSection(t, 4096))
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("got %v want ErrTruncated", err)
		}
	})
}

func TestNext_MaxBlockSize(t *testing.T) {
	small := rawBlock(t, "ok")
	big := rawBlock(t, string(bytes.Repeat([]byte("z"), 64)))
	enc, err := Encode([]cid.Cid{small.Cid}, small, big)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	br, err := NewBlockReader(bytes.NewReader(enc), MaxBlockSize(32))
	if err != nil {
		t.Fatalf("NewBlockReader: %v", err)
	}
	if _, err := br.Next(); err != nil {
		t.Fatalf("Next(small): %v", err)
	}
	_, err = br.Next()
	var tooBig *BlockTooBigError
	if !errors.As(err, &tooBig) {
		t.Fatalf("got %v want *BlockTooBigError", err)
	}
	if tooBig.Size != 64 || tooBig.Limit != 32 || !tooBig.Cid.Equals(big.Cid) {
		t.Fatalf("unexpected error fields: %+v", tooBig)
	}
}

func TestNext_EOF(t *testing.T) {
	a := rawBlock(t, "alpha")
	enc, err := Encode([]cid.Cid{a.Cid})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	br, err := NewBlockReader(bytes.NewReader(enc))
	if err != nil {
		t.Fatalf("NewBlockReader: %v", err)
	}
	if _, err := br.Next(); err != io.EOF {
		t.Fatalf("got %v want io.EOF", err)
	}
}
