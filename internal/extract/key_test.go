package extract

import (
	"testing"
	"time"

	"github.com/dpereira/closings-tracker/internal/entity"
)

func TestCompositeKeyDateForms(t *testing.T) {
	structured := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

	fromValue := CompositeKey(NormalizeDateValue(structured), entity.ShiftMorning, "Centro")

	fromBR, err := NormalizeDate("15/07/2025")
	if err != nil {
		t.Fatalf("NormalizeDate(BR): %v", err)
	}
	fromISO, err := NormalizeDate("2025-07-15")
	if err != nil {
		t.Fatalf("NormalizeDate(ISO): %v", err)
	}

	for _, d := range []string{fromBR, fromISO} {
		key := CompositeKey(d, entity.ShiftMorning, "Centro")
		if key != fromValue {
			t.Errorf("key mismatch: %q vs %q", key, fromValue)
		}
	}
	if fromValue != "2025-07-15|Morning|Centro" {
		t.Errorf("unexpected key %q", fromValue)
	}
}

func TestNormalizeDateRejectsGarbage(t *testing.T) {
	if _, err := NormalizeDate("15-07-2025"); err == nil {
		t.Fatal("expected error for unsupported date form")
	}
}

func TestItemIDCollidesOnWhitespace(t *testing.T) {
	ts := time.Date(2025, 7, 15, 9, 30, 0, 0, time.UTC)

	a := ItemID(ts, "Fechamento Filial Centro")
	b := ItemID(ts, "  Fechamento   Filial Centro  ")
	if a != b {
		t.Errorf("identifiers must collide: %q vs %q", a, b)
	}
	if a == ItemID(ts.Add(time.Second), "Fechamento Filial Centro") {
		t.Error("different timestamps must not collide")
	}
}

func TestItemIDLengthBound(t *testing.T) {
	ts := time.Date(2025, 7, 15, 9, 30, 0, 0, time.UTC)
	long := ItemID(ts, "fechamento de caixa da filial centro com um assunto extraordinariamente longo")
	if len(long) > len(ts.UTC().Format(idStamp))+1+idMaxLen {
		t.Errorf("identifier exceeds bound: %q (%d)", long, len(long))
	}
}

func TestArtifactName(t *testing.T) {
	rec := &entity.FinancialRecord{
		ClosureDate: "15/07/2025",
		Shift:       entity.ShiftEvening,
		Branch:      "Centro / Loja 2",
	}
	name, err := ArtifactName(rec, "txt")
	if err != nil {
		t.Fatalf("ArtifactName: %v", err)
	}
	if name != "Fechamento_2025-07-15_Evening_Centro-Loja-2.txt" {
		t.Errorf("unexpected artifact name %q", name)
	}
}
