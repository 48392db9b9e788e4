package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hybrid-rag/internal/domain"
)

func TestExtract_Text(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		fileType string
		want     string
	}{
		{name: "utf-8", content: []byte("  Héllo wörld \n"), fileType: ".txt", want: "Héllo wörld"},
		{name: "latin-1 fallback", content: []byte{'c', 'a', 'f', 0xe9}, fileType: ".txt", want: "café"},
		{name: "type without dot", content: []byte("plain"), fileType: "TXT", want: "plain"},
		{name: "empty", content: nil, fileType: ".txt", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(context.Background(), tt.content, tt.fileType)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := Extract(context.Background(), []byte("# title"), ".md")

	var fmtErr *domain.UnsupportedFormatError
	require.True(t, errors.As(err, &fmtErr))
	assert.Equal(t, ".md", fmtErr.FileType)
}

func TestExtract_InvalidPDF(t *testing.T) {
	_, err := Extract(context.Background(), []byte("not a pdf"), ".pdf")
	assert.Error(t, err)
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported(".txt"))
	assert.True(t, IsSupported("pdf"))
	assert.True(t, IsSupported(".PDF"))
	assert.False(t, IsSupported(".docx"))
	assert.False(t, IsSupported(""))
	assert.ElementsMatch(t, []string{".txt", ".pdf"}, SupportedFileTypes())
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "collapses whitespace", in: "a  b\n\n\tc", want: "a b c"},
		{name: "keeps punctuation", in: `Dr. Smith (PhD) said: "yes!" [1] {x}; a/b - c?`, want: `Dr. Smith (PhD) said: "yes!" [1] {x}; a/b - c?`},
		{name: "strips symbols", in: "price: $5 & 10% off @ store #1", want: "price: 5  10 off  store 1"},
		{name: "keeps non-ascii letters", in: "naïve café 東京", want: "naïve café 東京"},
		{name: "trims", in: "  padded  ", want: "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}
