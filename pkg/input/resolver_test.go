package input

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/comfyflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLResolver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cat.png" {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher()

	buf, err := URLResolver{URL: server.URL + "/cat.png", Fetcher: fetcher}.Buffer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), buf)

	_, err = URLResolver{URL: server.URL + "/missing.png", Fetcher: fetcher}.Buffer(context.Background())
	require.ErrorIs(t, err, ErrFetch)

	_, err = URLResolver{URL: "http://127.0.0.1:1/unreachable", Fetcher: fetcher}.Buffer(context.Background())
	require.ErrorIs(t, err, ErrFetch)

	_, err = URLResolver{Fetcher: fetcher}.Buffer(context.Background())
	require.ErrorIs(t, err, ErrFetch)
}

func TestBase64Resolver(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("png-bytes"))

	tests := []struct {
		name    string
		data    string
		want    []byte
		wantErr bool
	}{
		{name: "plain", data: encoded, want: []byte("png-bytes")},
		{name: "data url", data: "data:image/png;base64," + encoded, want: []byte("png-bytes")},
		{name: "surrounding whitespace", data: "  " + encoded + "\n", want: []byte("png-bytes")},
		{name: "malformed", data: "not base64!!", wantErr: true},
		{name: "data url without base64", data: "data:text/plain,hello", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := Base64Resolver{Data: tt.data}.Buffer(context.Background())
			if tt.wantErr {
				require.ErrorIs(t, err, ErrDecode)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, buf)
		})
	}
}

func TestBinaryResolver(t *testing.T) {
	attachments := map[string]models.BinaryData{
		"audio":  {Data: []byte("wav"), MimeType: "audio/wav"},
		"zframe": {Data: []byte("z"), MimeType: "image/png"},
		"frame":  {Data: []byte("f"), MimeType: "image/jpeg"},
	}

	t.Run("named property", func(t *testing.T) {
		buf, err := BinaryResolver{Property: "audio", Attachments: attachments}.Buffer(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []byte("wav"), buf)
	})

	t.Run("falls back to first image", func(t *testing.T) {
		name, data, err := BinaryResolver{Property: "data", Attachments: attachments}.Attachment()
		require.NoError(t, err)
		assert.Equal(t, "frame", name)
		assert.Equal(t, []byte("f"), data.Data)
	})

	t.Run("no candidate", func(t *testing.T) {
		_, err := BinaryResolver{
			Property:    "data",
			Attachments: map[string]models.BinaryData{"audio": attachments["audio"]},
		}.Buffer(context.Background())
		require.ErrorIs(t, err, ErrNotFound)

		_, err = BinaryResolver{Property: "data"}.Buffer(context.Background())
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestNewResolver(t *testing.T) {
	fetcher := NewHTTPFetcher()

	r, err := NewResolver(Source{Mode: ModeURL, Value: "http://x/a.png"}, nil, fetcher)
	require.NoError(t, err)
	assert.IsType(t, URLResolver{}, r)

	r, err = NewResolver(Source{Mode: ModeBase64, Value: "YQ=="}, nil, fetcher)
	require.NoError(t, err)
	assert.IsType(t, Base64Resolver{}, r)

	r, err = NewResolver(Source{}, nil, fetcher)
	require.NoError(t, err)
	assert.Equal(t, BinaryResolver{Property: "data"}, r)

	_, err = NewResolver(Source{Mode: "ftp"}, nil, fetcher)
	require.ErrorIs(t, err, ErrUnknownMode)
}
