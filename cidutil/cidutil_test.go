package cidutil

import (
	"errors"
	"testing"

	"github.com/ipfs/go-cid"
)

func TestCIDv1RawSHA256_Stable(t *testing.T) {
	// Known value for the empty input under raw/sha2-256.
	const want = "bafkreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku"
	if got := CIDv1RawSHA256(nil); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
	if CIDv1RawSHA256([]byte("a")) == CIDv1RawSHA256([]byte("b")) {
		t.Fatalf("distinct inputs produced the same cid")
	}
}

func TestVerify(t *testing.T) {
	data := []byte("hello")
	for _, codec := range []uint64{cid.Raw, cid.DagProtobuf, cid.DagCBOR} {
		id, err := Sum(codec, data)
		if err != nil {
			t.Fatalf("Sum: %v", err)
		}
		if id.Type() != codec || id.Version() != 1 {
			t.Fatalf("unexpected prefix: %v", id.Prefix())
		}
		if err := Verify(id, data); err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if err := Verify(id, []byte("other")); !errors.Is(err, ErrMismatch) {
			t.Fatalf("got %v want ErrMismatch", err)
		}
	}
	if err := Verify(cid.Undef, data); !errors.Is(err, ErrUndef) {
		t.Fatalf("got %v want ErrUndef", err)
	}
}

func TestV1(t *testing.T) {
	data := []byte{0x0a, 0x00}
	v0, err := SumV0(data)
	if err != nil {
		t.Fatalf("SumV0: %v", err)
	}
	if err := Verify(v0, data); err != nil {
		t.Fatalf("Verify v0: %v", err)
	}
	v1 := V1(v0)
	if v1.Version() != 1 || v1.Type() != cid.DagProtobuf {
		t.Fatalf("unexpected v1 prefix: %v", v1.Prefix())
	}
	if v1.Hash().HexString() != v0.Hash().HexString() {
		t.Fatalf("multihash changed")
	}
	if !V1(v1).Equals(v1) {
		t.Fatalf("V1 should be idempotent")
	}
}
