package wizard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/yourusername/printdrop/internal/apperr"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestRegistryCreateGetDiscard(t *testing.T) {
	stash := newMemoryStash()
	reg := NewRegistry(Options{Inspector: &stubCounter{pages: map[string]int{"a.pdf": 1}}, Stash: stash}, time.Hour)

	w := reg.Create("ann@example.com")
	require.NotEmpty(t, w.ID())
	assert.Equal(t, "ann@example.com", w.Owner())
	assert.Equal(t, "bob@example.com", reg.Create("bob@example.com").Owner())
	_, err := w.AddFile(context.Background(), "a.pdf", []byte("x"))
	require.NoError(t, err)

	got, err := reg.Get(w.ID())
	require.NoError(t, err)
	assert.Same(t, w, got)

	assert.True(t, reg.Discard(w.ID()))
	assert.Zero(t, stash.count())
	assert.Contains(t, stash.released, w.ID())
	assert.False(t, reg.Discard(w.ID()))

	_, err = reg.Get(w.ID())
	requireCode(t, err, apperr.CodeWizardNotFound)

	_, err = w.GoNext()
	requireCode(t, err, apperr.CodeWizardClosed)
}

func TestRegistryExpiresIdleWizards(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
	reg := NewRegistry(Options{Inspector: &stubCounter{}, Now: clock.Now}, 30*time.Minute)

	idle := reg.Create("ann@example.com")
	clock.now = clock.now.Add(20 * time.Minute)
	active := reg.Create("ann@example.com")

	clock.now = clock.now.Add(15 * time.Minute)
	_, err := reg.Get(idle.ID())
	requireCode(t, err, apperr.CodeWizardNotFound)

	got, err := reg.Get(active.ID())
	require.NoError(t, err)
	_, err = got.GoBack()
	require.NoError(t, err)

	clock.now = clock.now.Add(29 * time.Minute)
	assert.Zero(t, reg.Sweep())
	clock.now = clock.now.Add(2 * time.Minute)
	assert.Equal(t, 1, reg.Sweep())
	assert.Zero(t, reg.Len())
}

func TestParseStep(t *testing.T) {
	cases := map[string]Step{
		"0":            StepUpload,
		"3":            StepPayment,
		"address":      StepAddress,
		"PrintOptions": StepPrintOptions,
	}
	for raw, want := range cases {
		got, err := ParseStep(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"4", "-1", "shipping", ""} {
		_, err := ParseStep(raw)
		assert.Error(t, err, raw)
	}
	assert.Equal(t, "step(7)", Step(7).String())
}

func TestSummaryIgnoresPrintOptions(t *testing.T) {
	files := []UploadedFile{{Name: "a.pdf", Pages: 300}, {Name: "b.pdf", Pages: 9}}
	plain := NewSummary(files, PrintOptions{Copies: "1"}, Address{}, language.English)
	fancy := NewSummary(files, PrintOptions{Copies: "10", PrintColor: "Color", PaperType: "Glossy"}, Address{}, language.English)

	assert.EqualValues(t, 1236, plain.TotalCost)
	assert.Equal(t, plain.TotalCost, fancy.TotalCost)
	assert.Equal(t, 309, plain.Pages)
	assert.Equal(t, 2, plain.Files)
	assert.Equal(t, "1,236", plain.Display)
}

func TestWizardSummary(t *testing.T) {
	w := newTestWizard(map[string]int{"a.pdf": 10, "b.pdf": 5}, nil)
	_, err := w.AddFile(context.Background(), "a.pdf", []byte("x"))
	require.NoError(t, err)
	_, err = w.AddFile(context.Background(), "b.pdf", []byte("x"))
	require.NoError(t, err)

	summary := w.Summary(language.English)
	assert.EqualValues(t, 60, summary.TotalCost)
	assert.Equal(t, 15, summary.Pages)
	assert.EqualValues(t, UnitPrice, summary.UnitPrice)
}
