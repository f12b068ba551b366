package id3v2

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
)

func TestUnsynchronize(t *testing.T) {
	tests := []struct {
		name       string
		in         []byte
		want       []byte
		changed    bool
		endPadding bool
	}{
		{
			name: "empty",
			in:   []byte{},
			want: []byte{},
		},
		{
			name: "no sync patterns",
			in:   []byte{0x01, 0x02, 0x7F},
			want: []byte{0x01, 0x02, 0x7F},
		},
		{
			name: "0xFF before safe byte",
			in:   []byte{0xFF, 0x01},
			want: []byte{0xFF, 0x01},
		},
		{
			name:    "false sync",
			in:      []byte{0xFF, 0xE0},
			want:    []byte{0xFF, 0x00, 0xE0},
			changed: true,
		},
		{
			name:    "protected zero",
			in:      []byte{0xFF, 0x00},
			want:    []byte{0xFF, 0x00, 0x00},
			changed: true,
		},
		{
			name:       "trailing 0xFF alone",
			in:         []byte{0xFF},
			want:       []byte{0xFF},
			endPadding: true,
		},
		{
			name:       "trailing 0xFF after a change gets padded",
			in:         []byte{0xFF, 0xFF},
			want:       []byte{0xFF, 0x00, 0xFF, 0x00},
			changed:    true,
			endPadding: true,
		},
		{
			name:       "mixed",
			in:         []byte{0x00, 0xFF, 0xE6, 0xFF},
			want:       []byte{0x00, 0xFF, 0x00, 0xE6, 0xFF, 0x00},
			changed:    true,
			endPadding: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, changed, endPadding := Unsynchronize(tt.in)
			if !bytes.Equal(out, tt.want) {
				t.Errorf("Unsynchronize() = % x, want % x", out, tt.want)
			}
			if changed != tt.changed || endPadding != tt.endPadding {
				t.Errorf("Unsynchronize() changed, endPadding = %v, %v, want %v, %v",
					changed, endPadding, tt.changed, tt.endPadding)
			}
		})
	}
}

func TestDeunsynchronize(t *testing.T) {
	tests := []struct {
		name    string
		in      []byte
		want    []byte
		wantErr error
	}{
		{
			name: "passthrough",
			in:   []byte{0x01, 0x02, 0x03},
			want: []byte{0x01, 0x02, 0x03},
		},
		{
			name: "drops stuffing byte",
			in:   []byte{0xFF, 0x00, 0x01},
			want: []byte{0xFF, 0x01},
		},
		{
			name: "drops one zero per 0xFF",
			in:   []byte{0xFF, 0x00, 0x00, 0x01},
			want: []byte{0xFF, 0x00, 0x01},
		},
		{
			name: "trailing 0xFF",
			in:   []byte{0x01, 0xFF},
			want: []byte{0x01, 0xFF},
		},
		{
			name:    "false sync is malformed",
			in:      []byte{0xFF, 0xE0},
			wantErr: ErrUnsyncPattern,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Deunsynchronize(tt.in)
			if errors.Cause(err) != tt.wantErr {
				t.Fatalf("Deunsynchronize() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && !bytes.Equal(out, tt.want) {
				t.Errorf("Deunsynchronize() = % x, want % x", out, tt.want)
			}
		})
	}
}

// Byte values weighted toward the interesting ones so random buffers
// actually contain sync patterns.
func fuzzByte(rng *rand.Rand) byte {
	switch rng.Intn(4) {
	case 0:
		return 0xFF
	case 1:
		return 0x00
	case 2:
		return byte(0xE0 + rng.Intn(0x20))
	default:
		return byte(rng.Intn(0xE0))
	}
}

func TestUnsyncRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		in := make([]byte, rng.Intn(64))
		for j := range in {
			in[j] = fuzzByte(rng)
		}

		out, _, _ := Unsynchronize(in)
		back, err := Deunsynchronize(out)
		if err != nil {
			t.Fatalf("Deunsynchronize(% x) error: %v (input % x)", out, err, in)
		}
		if !bytes.Equal(back, in) {
			t.Fatalf("round trip of % x: got % x via % x", in, back, out)
		}
	}
}

func TestUnsynchronizeStableWhenClean(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 500; i++ {
		in := make([]byte, rng.Intn(64))
		for j := range in {
			in[j] = fuzzByte(rng)
		}

		out, changed, endPadding := Unsynchronize(in)
		if changed || endPadding {
			continue
		}
		again, changed2, endPadding2 := Unsynchronize(out)
		if changed2 || endPadding2 || !bytes.Equal(again, out) {
			t.Fatalf("clean input % x mutated on second pass: % x", out, again)
		}
	}
}

func TestReadUnsynchronized(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		count     uint32
		want      []byte
		wantCount uint32
		wantErr   error
	}{
		{
			name:      "no stuffing",
			data:      []byte{0x01, 0x02, 0x03},
			count:     3,
			want:      []byte{0x01, 0x02, 0x03},
			wantCount: 3,
		},
		{
			name:      "skips stuffing and grows count",
			data:      []byte{0xFF, 0x00, 0x01, 0x02, 0x03},
			count:     4,
			want:      []byte{0xFF, 0x01, 0x02, 0x03},
			wantCount: 5,
		},
		{
			name:      "0xFF as final decoded byte is not probed",
			data:      []byte{0x01, 0xFF, 0x00},
			count:     2,
			want:      []byte{0x01, 0xFF},
			wantCount: 2,
		},
		{
			name:    "source exhausted",
			data:    []byte{0xFF},
			count:   2,
			wantErr: ErrUnexpectedEOF,
		},
		{
			name:    "false sync",
			data:    []byte{0xFF, 0xE0, 0x01},
			count:   3,
			wantErr: ErrUnsyncPattern,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newSource(bytes.NewReader(tt.data))
			count := tt.count
			out, err := readUnsynchronized(src, &count)
			if errors.Cause(err) != tt.wantErr {
				t.Fatalf("readUnsynchronized() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !bytes.Equal(out, tt.want) {
				t.Errorf("readUnsynchronized() = % x, want % x", out, tt.want)
			}
			if count != tt.wantCount {
				t.Errorf("count after read = %d, want %d", count, tt.wantCount)
			}
		})
	}
}
