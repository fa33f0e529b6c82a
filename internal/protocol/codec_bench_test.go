package protocol

import (
	"bytes"
	"testing"
)

func BenchmarkEncode(b *testing.B) {
	m := &StatusRes{Charging: true, Parking: true, Battery: 0.82}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Encode(m); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	frame, err := Encode(&EnrollReq{ID: "bob", Password: "digest", Username: "Bob", CarModel: "EV6"})
	if err != nil {
		b.Fatal(err)
	}
	r := bytes.NewReader(frame)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		r.Reset(frame)
		if _, err := Decode(r); err != nil {
			b.Fatal(err)
		}
	}
}
