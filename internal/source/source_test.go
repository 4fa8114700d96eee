package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFSSourceFetch(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "fechamento-a.txt"), "Data fechamento: 15/07/2025 09:00:00\n")
	write(t, filepath.Join(dir, "notes.md"), "ignored")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	docs, err := NewFSSource(dir, nil).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(docs))
	}

	doc := docs[0]
	if doc.Name != "fechamento-a.txt" || doc.Label != "fechamento-a" || doc.Ext != "txt" {
		t.Errorf("unexpected document: %+v", doc)
	}
	if doc.Text == "" || string(doc.Raw) != doc.Text {
		t.Error("text and raw must carry the file content")
	}
	if doc.ReceivedAt.IsZero() {
		t.Error("timestamp missing")
	}
}

const sampleEML = `From: caixa@acme.example
To: fechamentos@acme.example
Subject: Fechamento Filial Centro
Date: Tue, 15 Jul 2025 15:04:05 -0300

Data fechamento: 15/07/2025 14:30:00
Total vendas: R$ 100,00
`

const offTopicEML = `From: spam@example.com
Subject: Oferta imperdivel
Date: Tue, 15 Jul 2025 16:00:00 -0300

compre agora
`

func TestMailboxSubjectAndDateFilter(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a.eml"), sampleEML)
	write(t, filepath.Join(dir, "b.eml"), offTopicEML)
	write(t, filepath.Join(dir, "c.txt"), "not mail")

	src, err := NewMailbox(dir, `(?i)fechamento`, time.Time{}, time.Time{}, nil)
	if err != nil {
		t.Fatalf("NewMailbox: %v", err)
	}
	docs, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(docs))
	}

	doc := docs[0]
	if doc.Label != "Fechamento Filial Centro" {
		t.Errorf("label = %q", doc.Label)
	}
	want := time.Date(2025, 7, 15, 18, 4, 5, 0, time.UTC)
	if !doc.ReceivedAt.UTC().Equal(want) {
		t.Errorf("timestamp = %s, want %s", doc.ReceivedAt.UTC(), want)
	}

	// A window ending before the message excludes it.
	narrow, _ := NewMailbox(dir, `(?i)fechamento`, time.Time{},
		time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC), nil)
	docs, err = narrow.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("date window not applied, got %d documents", len(docs))
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
