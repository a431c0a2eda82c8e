package codec

import (
	"bytes"
	"testing"

	"vbtree/pkg/common"
)

func TestSizesMatchEncoding(t *testing.T) {
	var buf bytes.Buffer

	if err := (Int64{}).Write(&buf, -42); err != nil {
		t.Fatalf("write int64: %v", err)
	}
	if buf.Len() != (Int64{}).Size(-42) {
		t.Fatalf("int64 size: got %d bytes, Size says %d", buf.Len(), (Int64{}).Size(-42))
	}

	for _, s := range []string{"", "a", string(make([]byte, 200))} {
		buf.Reset()
		if err := (String{}).Write(&buf, s); err != nil {
			t.Fatalf("write string: %v", err)
		}
		if buf.Len() != (String{}).Size(s) {
			t.Errorf("string len=%d: wrote %d bytes, Size says %d", len(s), buf.Len(), (String{}).Size(s))
		}
	}

	rec := common.Record{Key: 7, Value: []byte("payload")}
	buf.Reset()
	if err := (Record{}).Write(&buf, rec); err != nil {
		t.Fatalf("write record: %v", err)
	}
	if buf.Len() != (Record{}).Size(rec) {
		t.Fatalf("record: wrote %d bytes, Size says %d", buf.Len(), (Record{}).Size(rec))
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	data, err := Marshal[string](String{}, "hello")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal[string](String{}, data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}

	rec := common.Record{Key: 99, Value: []byte("v")}
	data, err = Marshal[common.Record](Record{}, rec)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	back, err := Unmarshal[common.Record](Record{}, data)
	if err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if back.Key != 99 || string(back.Value) != "v" {
		t.Fatalf("unexpected record: %v", back.String())
	}
}

func TestUvarintSize(t *testing.T) {
	tests := []struct {
		x    uint64
		want int
	}{
		{0, 1}, {127, 1}, {128, 2}, {16383, 2}, {16384, 3},
	}
	for _, tt := range tests {
		if got := UvarintSize(tt.x); got != tt.want {
			t.Errorf("UvarintSize(%d) = %d, want %d", tt.x, got, tt.want)
		}
	}
}
