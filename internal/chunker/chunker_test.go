package chunker

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ziadkadry99/minutes/internal/corpus"
)

func doc(content string) corpus.RawDocument {
	return corpus.RawDocument{Topic: "開発", RelPath: "2024/sprint.docx", Content: content}
}

func TestNewRejectsBadOverlap(t *testing.T) {
	tests := []struct {
		size, overlap int
	}{
		{0, 0},
		{-1, 0},
		{10, 10},
		{10, 11},
		{10, -1},
	}
	for _, tt := range tests {
		if _, err := New(tt.size, tt.overlap); err == nil {
			t.Errorf("New(%d, %d) should fail", tt.size, tt.overlap)
		}
	}
	if _, err := New(10, 9); err != nil {
		t.Errorf("New(10, 9): %v", err)
	}
}

func TestSplitWindows(t *testing.T) {
	c, _ := New(10, 3)
	chunks := c.Split(doc("abcdefghijklmnopqrstuvwxyz"))

	want := []string{"abcdefghij", "hijklmnopq", "opqrstuvwx", "vwxyz"}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d: %+v", len(chunks), len(want), chunks)
	}
	for i, w := range want {
		if chunks[i].Text != w {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i].Text, w)
		}
		if chunks[i].Index != i {
			t.Errorf("chunk %d has index %d", i, chunks[i].Index)
		}
	}
	if chunks[1].ID != "開発/2024/sprint.docx#1" {
		t.Errorf("unexpected ID %q", chunks[1].ID)
	}
	if chunks[0].Topic != "開発" || chunks[0].SourcePath != "2024/sprint.docx" {
		t.Errorf("unexpected provenance: %+v", chunks[0])
	}
}

func TestSplitExactFitHasNoTrailingChunk(t *testing.T) {
	c, _ := New(10, 2)
	chunks := c.Split(doc(strings.Repeat("x", 18)))
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	short, _ := New(10, 2)
	if n := len(short.Split(doc("short"))); n != 1 {
		t.Errorf("short doc: expected 1 chunk, got %d", n)
	}
}

func TestSplitCountsRunes(t *testing.T) {
	c, _ := New(5, 1)
	text := "営業会議では新規リード獲得について議論した"
	for _, ch := range c.Split(doc(text)) {
		if !utf8.ValidString(ch.Text) {
			t.Fatalf("chunk %d is not valid UTF-8", ch.Index)
		}
		if n := utf8.RuneCountInString(ch.Text); n > 5 {
			t.Errorf("chunk %d has %d runes", ch.Index, n)
		}
	}
}

func TestSplitEmpty(t *testing.T) {
	c, _ := New(DefaultSize, DefaultOverlap)
	for _, s := range []string{"", "   ", "\n\t\n"} {
		if chunks := c.Split(doc(s)); len(chunks) != 0 {
			t.Errorf("Split(%q) returned %d chunks", s, len(chunks))
		}
	}
}

func TestReconstructionProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("abc 議事録、。\n営業開発xyz")

	for trial := 0; trial < 200; trial++ {
		size := 1 + rng.Intn(40)
		overlap := rng.Intn(size)
		n := 1 + rng.Intn(300)

		runes := make([]rune, n)
		for i := range runes {
			runes[i] = alphabet[rng.Intn(len(alphabet))]
		}
		text := "x" + string(runes) // never whitespace-only

		c, err := New(size, overlap)
		if err != nil {
			t.Fatal(err)
		}
		chunks := c.Split(doc(text))
		if got := Reconstruct(chunks, overlap); got != text {
			t.Fatalf("size=%d overlap=%d: reconstruction mismatch\n got %q\nwant %q", size, overlap, got, text)
		}
		for i, ch := range chunks[:len(chunks)-1] {
			if utf8.RuneCountInString(ch.Text) != size {
				t.Fatalf("non-final chunk %d has %d runes, want %d", i, utf8.RuneCountInString(ch.Text), size)
			}
		}
	}
}

func TestSplitAllPreservesOrder(t *testing.T) {
	c, _ := New(4, 1)
	docs := []corpus.RawDocument{
		{Topic: "Sales", RelPath: "a.txt", Content: "aaaaaaa"},
		{Topic: "Sales", RelPath: "b.txt", Content: "bbbbbbb"},
	}
	chunks := c.SplitAll(docs)
	seenB := false
	for _, ch := range chunks {
		if ch.SourcePath == "b.txt" {
			seenB = true
		}
		if ch.SourcePath == "a.txt" && seenB {
			t.Fatal("chunks of a.txt appear after b.txt")
		}
		if strings.Contains(ch.Text, "a") && strings.Contains(ch.Text, "b") {
			t.Fatalf("chunk %s crosses a document boundary: %q", ch.ID, ch.Text)
		}
	}
}
