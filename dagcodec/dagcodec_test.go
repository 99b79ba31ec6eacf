package dagcodec

import (
	"bytes"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"google.golang.org/protobuf/encoding/protowire"

	"xdao.co/carpin/cidutil"
)

func rawCID(t *testing.T, data string) cid.Cid {
	t.Helper()
	id, err := cidutil.Sum(cid.Raw, []byte(data))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	return id
}

func u64(v uint64) *uint64 { return &v }

// canonical encodes v with sorted map keys, as dag-cbor requires.
func canonical(t *testing.T, v any) []byte {
	t.Helper()
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		t.Fatalf("EncMode: %v", err)
	}
	b, err := em.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return b
}

func encodePB(t *testing.T, n *PBNode) []byte {
	t.Helper()
	b, err := EncodePB(n)
	if err != nil {
		t.Fatalf("EncodePB: %v", err)
	}
	return b
}

func cborLink(id cid.Cid) cbor.Tag {
	return cbor.Tag{Number: 42, Content: append([]byte{0x00}, id.Bytes()...)}
}
func str(s string) *string { return &s }

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	for _, code := range []uint64{cid.Raw, cid.DagProtobuf, cid.DagCBOR} {
		if _, ok := r.Lookup(code); !ok {
			t.Fatalf("missing decoder for 0x%x", code)
		}
	}
	if _, ok := r.Lookup(cid.DagJSON); ok {
		t.Fatalf("unexpected decoder for dag-json")
	}
	var nilReg *Registry
	if _, ok := nilReg.Lookup(cid.Raw); ok {
		t.Fatalf("nil registry should have no decoders")
	}
}

func TestRaw_NoLinks(t *testing.T) {
	n, err := Raw{}.Decode([]byte("anything"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(n.Links()) != 0 {
		t.Fatalf("raw node has links")
	}
}

func TestDagPB_RoundTrip(t *testing.T) {
	a := rawCID(t, "a")
	b := rawCID(t, "b")
	in := &PBNode{
		Data: []byte{0x08, 0x01},
		Links: []PBLink{
			{Hash: a, Name: str("a.txt"), Tsize: u64(100)},
			{Hash: b, Tsize: u64(200)},
		},
	}
	enc := encodePB(t, in)

	n, err := DagPB{}.Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	links := n.Links()
	if len(links) != 2 {
		t.Fatalf("links: got %d want 2", len(links))
	}
	if links[0].Name != "a.txt" || !links[0].Cid.Equals(a) || *links[0].Tsize != 100 {
		t.Fatalf("link 0 mismatch: %+v", links[0])
	}
	if links[1].Name != "" || !links[1].Cid.Equals(b) || *links[1].Tsize != 200 {
		t.Fatalf("link 1 mismatch: %+v", links[1])
	}

	pb, err := DecodePB(enc)
	if err != nil {
		t.Fatalf("DecodePB: %v", err)
	}
	if !bytes.Equal(pb.Data, in.Data) {
		t.Fatalf("data mismatch")
	}
	if !bytes.Equal(encodePB(t, pb), enc) {
		t.Fatalf("re-encoding is not stable")
	}
}

func TestDagPB_MissingTsize(t *testing.T) {
	enc := encodePB(t, &PBNode{Links: []PBLink{{Hash: rawCID(t, "x")}}})
	n, err := DagPB{}.Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n.Links()[0].Tsize != nil {
		t.Fatalf("expected nil Tsize")
	}
}

// pbField appends one length-delimited protobuf field.
func pbField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func TestDagPB_Rejects(t *testing.T) {
	hash := rawCID(t, "x").Bytes()
	link := encodePB(t, &PBNode{Links: []PBLink{{Hash: rawCID(t, "x")}}})
	data := encodePB(t, &PBNode{Data: []byte("d")})

	nameFirst := pbField(nil, 2, pbField(pbField(nil, 2, []byte("n")), 1, hash))
	twoHashes := pbField(nil, 2, pbField(pbField(nil, 1, hash), 1, hash))
	hashless := pbField(nil, 2, pbField(nil, 2, []byte("n")))

	cases := map[string][]byte{
		"truncated":         link[:len(link)-1],
		"unknown field":     pbField(nil, 5, []byte("?")),
		"links after data":  append(append([]byte{}, data...), link...),
		"duplicate data":    append(append([]byte{}, data...), data...),
		"link without hash": hashless,
		"name before hash":  nameFirst,
		"duplicate hash":    twoHashes,
		"varint node field": protowire.AppendVarint(protowire.AppendTag(nil, 1, protowire.VarintType), 1),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := (DagPB{}).Decode(in); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestDagCBOR_Links(t *testing.T) {
	a := rawCID(t, "a")
	b := rawCID(t, "b")
	enc := canonical(t, map[string]any{
		"name":  "nft",
		"image": cborLink(b),
		"properties": map[string]any{
			"files": []any{cborLink(a), "not a link"},
		},
	})

	n, err := DagCBOR{}.Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	links := n.Links()
	if len(links) != 2 {
		t.Fatalf("links: got %d want 2", len(links))
	}
	if links[0].Name != "image" || !links[0].Cid.Equals(b) {
		t.Fatalf("link 0 mismatch: %+v", links[0])
	}
	if links[1].Name != "properties/files/0" || !links[1].Cid.Equals(a) {
		t.Fatalf("link 1 mismatch: %+v", links[1])
	}
	if links[0].Tsize != nil {
		t.Fatalf("dag-cbor links carry no Tsize")
	}
}

func TestDagCBOR_Rejects(t *testing.T) {
	cases := map[string][]byte{
		"garbage":        {0xff, 0xff},
		"unknown tag":    {0xd8, 0x63, 0x41, 'x'},
		"bignum tag":     {0xc2, 0x42, 0x01, 0x00},
		"invalid link":   {0xd8, 0x2a, 0x42, 0x01, 0x02},
		"non-string key": canonical(t, map[int]string{1: "a"}),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := (DagCBOR{}).Decode(in); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRegistry_Decode(t *testing.T) {
	r := NewRegistry(Raw{})
	id := rawCID(t, "x")
	if _, err := r.Decode(id, []byte("x")); err != nil {
		t.Fatalf("Decode raw: %v", err)
	}
	pbID, err := cidutil.Sum(cid.DagProtobuf, encodePB(t, &PBNode{}))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if _, err := r.Decode(pbID, nil); err == nil {
		t.Fatalf("expected error for codec without decoder")
	}
}
