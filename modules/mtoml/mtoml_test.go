package mtoml

import (
	"os"
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/nemulo/nemulo/modules/mtesting"
)

type testConfig struct {
	DestPath     string `toml:"dest_path"`
	ArticleCount int    `toml:"article_count"`
}

func TestParseFile(t *testing.T) {
	path := mtesting.WriteTempFile(t, []byte("dest_path = \"out\"\narticle_count = 3\nextra = 1\n"))
	defer os.Remove(path)

	var conf testConfig
	assert.NoError(t, ParseFile(path, &conf))
	assert.Equal(t, testConfig{DestPath: "out", ArticleCount: 3}, conf)

	assert.Error(t, ParseFileStrict(path, &conf))
}

func TestParseFile_Map(t *testing.T) {
	path := mtesting.WriteTempFile(t, []byte("dest_path = \"out\"\n"))
	defer os.Remove(path)

	m := make(map[string]interface{})
	assert.NoError(t, ParseFile(path, &m))
	assert.Equal(t, map[string]interface{}{"dest_path": "out"}, m)
}

func TestParseFile_Errors(t *testing.T) {
	var conf testConfig
	assert.Error(t, ParseFile("does-not-exist.toml", &conf))

	path := mtesting.WriteTempFile(t, []byte("dest_path = \n"))
	defer os.Remove(path)
	assert.Error(t, ParseFile(path, &conf))
}
