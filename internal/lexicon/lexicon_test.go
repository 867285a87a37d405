package lexicon

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/cultural"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const miniLexicon = `
default-variant: alpha
variants:
  - name: Alpha
    region: north
    keywords: [Apple, "  apple ", banana]
  - name: beta
    region: south
    keywords: [cherry]
regions:
  - name: north
    keywords: [ice]
  - name: south
    keywords: [sand]
trade-contexts:
  - name: compliance
    keywords: [permit]
`

func TestDefaultLexicon(t *testing.T) {
	lex := Default()
	require.NotNil(t, lex)

	assert.Equal(t, cultural.VariantUbuntu, lex.DefaultVariant())
	assert.Equal(t, cultural.RegionWestAfrica, lex.DefaultRegion())
	assert.Equal(t, cultural.TradeCompliance, lex.DefaultTradeContext())
	assert.Len(t, lex.Variants(), 7)
	assert.Len(t, lex.Regions(), 7)
	assert.Equal(t, "embedded", lex.Source())

	names := make([]cultural.Variant, 0)
	for _, v := range lex.Variants() {
		names = append(names, v.Name)
		assert.True(t, lex.HasRegion(v.Region), "variant %s region %s", v.Name, v.Region)
		for _, rt := range []string{ResponseGreeting, ResponseProblemSolving, ResponseAdvice} {
			assert.NotEmpty(t, lex.Templates(v.Name, rt), "variant %s lacks %s templates", v.Name, rt)
		}
	}
	assert.Equal(t, []cultural.Variant{"ubuntu", "jugaad", "guanxi", "jeitinho", "wasta", "individualism", "collectivism"}, names)

	v, ok := lex.VariantFor(cultural.RegionEastAsia)
	require.True(t, ok)
	assert.Equal(t, cultural.VariantGuanxi, v)
	r, ok := lex.RegionOf(cultural.VariantJeitinho)
	require.True(t, ok)
	assert.Equal(t, cultural.RegionLatinAmerica, r)
}

func TestParseNormalizesKeywords(t *testing.T) {
	lex, err := Parse([]byte(miniLexicon))
	require.NoError(t, err)

	assert.Equal(t, []string{"apple", "banana"}, lex.VariantKeywords("alpha"))
	assert.Equal(t, cultural.TradeContext("compliance"), lex.DefaultTradeContext())
	assert.Nil(t, lex.VariantKeywords("gamma"))
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{"unknown region", func(s string) string { return strings.Replace(s, "region: south", "region: west", 1) }, "unknown region"},
		{"duplicate variant", func(s string) string { return strings.Replace(s, "name: beta", "name: alpha", 1) }, "duplicate variant"},
		{"unknown default", func(s string) string { return strings.Replace(s, "default-variant: alpha", "default-variant: omega", 1) }, "default variant"},
		{"no trade contexts", func(s string) string { return s[:strings.Index(s, "trade-contexts:")] }, "no trade contexts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.mutate(miniLexicon)))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidLexicon)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := Parse([]byte("variants: [oops"))
	assert.Error(t, err)
}

func TestMatches(t *testing.T) {
	folded := Normalize("  We need COMMUNITY approval and Village harmony ")
	assert.Equal(t, "we need community approval and village harmony", folded)

	keywords := Default().VariantKeywords(cultural.VariantUbuntu)
	assert.Equal(t, []string{"community", "village", "harmony"}, Matches(folded, keywords))
	assert.Equal(t, 3, Count(folded, keywords))
	assert.True(t, ContainsAny(folded, []string{"zzz", "harmony"}))
	assert.Empty(t, Matches("", keywords))
}

func TestCueFires(t *testing.T) {
	anyCue := Cue{Text: "x", Keywords: []string{"trust", "faith"}}
	all := Cue{Text: "y", Keywords: []string{"relationship", "long-term"}, RequireAll: true}

	assert.True(t, anyCue.Fires("we have faith"))
	assert.False(t, all.Fires("a relationship"))
	assert.True(t, all.Fires("a long-term relationship"))
	assert.False(t, Cue{}.Fires("anything"))
}

func TestStoreReloadKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(miniLexicon), 0o644))

	store, err := OpenStore(path)
	require.NoError(t, err)
	assert.True(t, store.Current().HasVariant("alpha"))

	require.NoError(t, os.WriteFile(path, []byte("variants: []"), 0o644))
	assert.Error(t, store.Reload())
	assert.True(t, store.Current().HasVariant("alpha"), "failed reload must keep the old lexicon")

	reloaded := make(chan *Lexicon, 1)
	store.OnReload(func(l *Lexicon) { reloaded <- l })
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(miniLexicon, "name: beta", "name: gamma", 1)), 0o644))
	require.NoError(t, store.Reload())
	assert.True(t, (<-reloaded).HasVariant("gamma"))
}

func TestStoreReloadOrKeepLogsFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(miniLexicon), 0o644))

	store, err := OpenStore(path)
	require.NoError(t, err)

	previous := log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
	t.Cleanup(func() { log.StandardLogger().ReplaceHooks(previous) })
	hook := logtest.NewGlobal()

	require.NoError(t, os.WriteFile(path, []byte("variants: [oops"), 0o644))
	store.reloadOrKeep("watcher overflow")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.ErrorLevel, entry.Level)
	assert.Contains(t, entry.Message, "after watcher overflow")
	assert.Contains(t, entry.Message, "failed to parse lexicon")
	assert.True(t, store.Current().HasVariant("alpha"))
}

func TestStoreWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(miniLexicon), 0o644))

	store, err := OpenStore(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(miniLexicon, "name: beta", "name: delta", 1)), 0o644))

	assert.Eventually(t, func() bool {
		return store.Current().HasVariant("delta")
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestOpenStoreEmbedded(t *testing.T) {
	store, err := OpenStore("")
	require.NoError(t, err)
	assert.Same(t, Default(), store.Current())
	assert.NoError(t, store.Watch(context.Background()))
	assert.NoError(t, store.Reload())
}
