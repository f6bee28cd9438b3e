package mtemplatemd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/nemulo/nemulo/modules/mtesting"
)

func TestIncludeMarkdown(t *testing.T) {
	path := mtesting.WriteTempFile(t, []byte("**hello, world**"))
	defer os.Remove(path)

	ctx, container := Context(context.Background(), "")

	assert.Equal(t, `<p><strong>hello, world</strong></p>`,
		strings.TrimSpace(string(IncludeMarkdown(ctx, path))))

	// Included twice, recorded once.
	_ = IncludeMarkdown(ctx, path)
	assert.Equal(t, []string{path}, container.Dependencies)
}

func TestIncludeMarkdown_BaseDir(t *testing.T) {
	dir := t.TempDir()
	mtesting.WriteFile(t, dir, "about.md", "*about*")

	ctx, container := Context(context.Background(), dir)

	assert.Equal(t, `<p><em>about</em></p>`,
		strings.TrimSpace(string(IncludeMarkdown(ctx, "about.md"))))
	assert.Equal(t, []string{filepath.Join(dir, "about.md")}, container.Dependencies)
}

func TestIncludeMarkdown_NoContainer(t *testing.T) {
	path := mtesting.WriteTempFile(t, []byte("plain"))
	defer os.Remove(path)

	assert.Equal(t, `<p>plain</p>`,
		strings.TrimSpace(string(IncludeMarkdown(context.Background(), path))))

	assert.Panics(t, func() {
		IncludeMarkdown(context.Background(), path+".missing")
	})
}
