package channel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "already canonical", input: "google_ads", want: "google_ads"},
		{name: "uppercase", input: "Facebook", want: "facebook"},
		{name: "spaces", input: "Google Ads", want: "google_ads"},
		{name: "hyphens", input: "google-ads", want: "google_ads"},
		{name: "mixed separators", input: "Email - Newsletter", want: "email_newsletter"},
		{name: "surrounding whitespace", input: "  tiktok  ", want: "tiktok"},
		{name: "empty", input: "", want: ""},
		{name: "whitespace only", input: "   ", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Canonical(tc.input))
		})
	}
}

func TestIsVirtual(t *testing.T) {
	require.True(t, IsVirtual(Start))
	require.True(t, IsVirtual(Conversion))
	require.True(t, IsVirtual(Null))
	require.False(t, IsVirtual("facebook"))
}

func TestResolver_AliasLookup(t *testing.T) {
	r := NewResolver([]AliasRule{
		{Name: "google", Canonical: "google_ads", Aliases: []string{"AdWords", "Google Ads"}},
	})

	require.Equal(t, "google_ads", r.Resolve("adwords"))
	require.Equal(t, "google_ads", r.Resolve("Google Ads"))
	require.Equal(t, "google_ads", r.Resolve("google ads"))
	// Unaliased names fall through to structural normalization.
	require.Equal(t, "facebook", r.Resolve("Facebook"))
	require.Equal(t, "", r.Resolve("  "))
}

func TestFileSystemAliasRepository_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "google.yaml"), []byte(`
name: "google"
canonical: "google_ads"
aliases:
  - "AdWords"
  - "Google Ads"
`), 0o644))

	repo, err := NewFileSystemAliasRepository(dir)
	require.NoError(t, err)
	require.Len(t, repo.GetRules(), 1)
}

func TestFileSystemAliasRepository_MissingDirIsEmpty(t *testing.T) {
	repo, err := NewFileSystemAliasRepository(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	require.Empty(t, repo.GetRules())
}

func TestFileSystemAliasRepository_RejectsInvalidRules(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty canonical", content: "name: \"x\"\ncanonical: \"\"\naliases: [\"a\"]\n"},
		{name: "virtual canonical", content: "name: \"x\"\ncanonical: \"(start)\"\naliases: [\"a\"]\n"},
		{name: "no aliases", content: "name: \"x\"\ncanonical: \"facebook\"\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "rule.yaml"), []byte(tc.content), 0o644))
			_, err := NewFileSystemAliasRepository(dir)
			require.Error(t, err)
		})
	}
}

func TestFileSystemAliasRepository_RejectsConflictingAliases(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(`
name: "a"
canonical: "google_ads"
aliases: ["adwords"]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(`
name: "b"
canonical: "bing_ads"
aliases: ["AdWords"]
`), 0o644))

	_, err := NewFileSystemAliasRepository(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "claimed by both")
}
