package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMultiYAMLFromBytes(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []map[string]any
		wantErr bool
	}{
		{
			name:    "two documents",
			content: "---\nname: doc1\nvalue: 1\n---\nname: doc2\nvalue: 2",
			want:    []map[string]any{{"name": "doc1", "value": 1}, {"name": "doc2", "value": 2}},
		},
		{
			name:    "empty documents are skipped",
			content: "---\n---\nname: only\n---\n",
			want:    []map[string]any{{"name": "only"}},
		},
		{
			name:    "empty input",
			content: "",
			want:    []map[string]any{},
		},
		{
			name:    "invalid yaml",
			content: "name: [unclosed",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMultiYAMLFromBytes([]byte(tt.content))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPreprocessYAML(t *testing.T) {
	t.Setenv("PLANTITAS_TEST_PRICE", "4990")
	t.Setenv("PLANTITAS_TEST_NOTE", "a=b")

	got, err := PreprocessYAML([]byte("price: {{ .ENV.PLANTITAS_TEST_PRICE }}\nnote: {{ .ENV.PLANTITAS_TEST_NOTE }}"))
	require.NoError(t, err)
	assert.Equal(t, "price: 4990\nnote: a=b", string(got))

	got, err = PreprocessYAML([]byte("plain: yaml"))
	require.NoError(t, err)
	assert.Equal(t, "plain: yaml", string(got))

	_, err = PreprocessYAML([]byte("x: {{ .ENV.PLANTITAS_TEST_MISSING }}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing environment variable: PLANTITAS_TEST_MISSING")

	_, err = PreprocessYAML([]byte("x: {{ .ENV.X }"))
	assert.ErrorContains(t, err, "template error")
}

func TestPreprocessYAMLReadsDotEnv(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	require.NoError(t, os.WriteFile(".env", []byte("PLANTITAS_TEST_FROM_FILE=file\nPLANTITAS_TEST_BOTH=file\n"), 0o600))
	t.Setenv("PLANTITAS_TEST_BOTH", "env")
	t.Cleanup(func() { os.Unsetenv("PLANTITAS_TEST_FROM_FILE") })

	got, err := PreprocessYAML([]byte("{{ .ENV.PLANTITAS_TEST_FROM_FILE }} {{ .ENV.PLANTITAS_TEST_BOTH }}"))
	require.NoError(t, err)
	assert.Equal(t, "file env", string(got))
}

func TestParseManifest(t *testing.T) {
	docs, err := ParseMultiYAMLFromBytes([]byte(`
kind: Category
name: Macetas
---
kind: Product
sku: MAC-01
name: Maceta de barro
price: 4990
stock: 12
category: Macetas
image: maceta.png
---
kind: Product
id: P008
sku: ACC-TARJ
name: Tarjeta dedicatoria
price: 1290
category_id: 4
`))
	require.NoError(t, err)

	m, err := ParseManifest(docs)
	require.NoError(t, err)
	assert.Equal(t, []ManifestCategory{{Name: "Macetas"}}, m.Categories)
	require.Len(t, m.Products, 2)
	assert.Equal(t, ManifestProduct{SKU: "MAC-01", Name: "Maceta de barro", Price: 4990, Stock: 12, Category: "Macetas", Image: "maceta.png"}, m.Products[0])
	assert.Equal(t, "P008", m.Products[1].ID)
	assert.Equal(t, 4, m.Products[1].CategoryID)
}

func TestParseManifestRejects(t *testing.T) {
	tests := map[string]string{
		"unknown kind":       "kind: Order\nname: x",
		"missing kind":       "name: x",
		"negative price":     "kind: Product\nsku: A\nname: B\nprice: -1\ncategory_id: 1",
		"two categories":     "kind: Product\nsku: A\nname: B\nprice: 1\ncategory_id: 1\ncategory: Ramos",
		"no category":        "kind: Product\nsku: A\nname: B\nprice: 1",
		"unknown field":      "kind: Category\nname: Macetas\ncolor: red",
		"price is not a int": "kind: Product\nsku: A\nname: B\nprice: cheap\ncategory_id: 1",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			docs, err := ParseMultiYAMLFromBytes([]byte(content))
			require.NoError(t, err)
			_, err = ParseManifest(docs)
			assert.ErrorContains(t, err, "document 1")
		})
	}
}

func TestLoadManifest(t *testing.T) {
	t.Setenv("PLANTITAS_TEST_STOCK", "3")
	dir := t.TempDir()
	path := filepath.Join(dir, "catalogue.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kind: Product\nsku: A\nname: B\nprice: 10\nstock: {{ .ENV.PLANTITAS_TEST_STOCK }}\ncategory_id: 1\n"), 0o600))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, dir, m.Dir)
	require.Len(t, m.Products, 1)
	assert.Equal(t, 3, m.Products[0].Stock)

	_, err = LoadManifest(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
