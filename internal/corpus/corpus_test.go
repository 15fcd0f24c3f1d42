package corpus

import (
	"os"
	"path/filepath"
	"testing"
)

func testLayout(root string) Layout {
	return Layout{
		Root:           root,
		ProcessedDir:   "processed",
		RawDir:         "raw",
		IndexDir:       ".db",
		ReservedPrefix: ".",
	}
}

func TestTopics(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"Sales", "Dev", ".db", ".git", "営業"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "README.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	topics, err := testLayout(root).Topics()
	if err != nil {
		t.Fatalf("Topics: %v", err)
	}
	want := []string{"Dev", "Sales", "営業"}
	if len(topics) != len(want) {
		t.Fatalf("got %v, want %v", topics, want)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Errorf("topics[%d] = %q, want %q", i, topics[i], want[i])
		}
	}
}

func TestTopicsMissingRoot(t *testing.T) {
	l := testLayout(filepath.Join(t.TempDir(), "missing"))
	if _, err := l.Topics(); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestScaffold(t *testing.T) {
	root := t.TempDir()
	l := testLayout(root)
	if err := Scaffold(l, []string{"Sales", "Dev"}); err != nil {
		t.Fatalf("Scaffold: %v", err)
	}
	for _, d := range []string{".db", "Sales/raw", "Sales/processed", "Dev/raw", "Dev/processed"} {
		if fi, err := os.Stat(filepath.Join(root, d)); err != nil || !fi.IsDir() {
			t.Errorf("expected directory %s", d)
		}
	}

	topics, err := l.Topics()
	if err != nil {
		t.Fatal(err)
	}
	if len(topics) != 2 {
		t.Errorf("expected 2 topics after scaffold, got %v", topics)
	}
}

func TestScaffoldRejectsReservedTopic(t *testing.T) {
	if err := Scaffold(testLayout(t.TempDir()), []string{".hidden"}); err == nil {
		t.Error("expected error for reserved topic name")
	}
}

func TestPaths(t *testing.T) {
	l := testLayout("/notes")
	if got := l.ProcessedPath("Dev", "a.docx"); got != filepath.Join("/notes", "Dev", "processed", "a.docx") {
		t.Errorf("ProcessedPath = %s", got)
	}
	if got := l.TextCachePath("Dev", "2024/a.docx"); got != filepath.Join("/notes", ".db", "text", "Dev", "2024", "a.docx.txt") {
		t.Errorf("TextCachePath = %s", got)
	}
}
