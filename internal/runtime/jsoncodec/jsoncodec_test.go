package jsoncodec

import (
	"bytes"
	"testing"
)

func TestMarshalSortsMapKeys(t *testing.T) {
	payload := map[string]any{"zeta": 1, "alpha": 2, "mid": 3}

	first, err := Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := Marshal(payload)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("Marshal is not deterministic:\n%s\n%s", first, again)
		}
	}

	want := `{"alpha":2,"mid":3,"zeta":1}`
	if string(first) != want {
		t.Errorf("Marshal output = %s, want %s", first, want)
	}
}

func TestRoundTrip(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	data, err := Marshal(payload{Name: "render", Count: 3})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out payload
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.Name != "render" || out.Count != 3 {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var out map[string]string
	if err := Decode(&buf, &out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out["k"] != "v" {
		t.Errorf("Decode result = %v", out)
	}
}
