package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesSource(t *testing.T) {
	src := BytesSource{Data: []byte("abc")}
	assert.Equal(t, "upload", src.Name())

	data, err := src.Bytes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	_, err = BytesSource{Data: []byte("abcdef"), MaxBytes: 3}.Bytes(context.Background())
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFileSourceReadsLazily(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poster.png")
	src := FileSource{Path: path}
	assert.Equal(t, "poster.png", src.Name())

	// the file does not exist yet; constructing the source must not touch disk
	require.NoError(t, os.WriteFile(path, []byte("pixels"), 0o644))

	data, err := src.Bytes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("pixels"), data)

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.png")}.Bytes(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestURLSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			_, _ = w.Write([]byte("image-bytes"))
		case "/big.png":
			_, _ = w.Write(make([]byte, 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	data, err := URLSource{URL: srv.URL + "/ok.png", Client: srv.Client()}.Bytes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)

	_, err = URLSource{URL: srv.URL + "/missing.png", Client: srv.Client()}.Bytes(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	_, err = URLSource{URL: srv.URL + "/big.png", Client: srv.Client(), MaxBytes: 16}.Bytes(context.Background())
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestURLSourceRefusesInternalAddresses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("internal server must not be reached")
	}))
	defer srv.Close()

	for _, target := range []string{
		srv.URL + "/shot.png",
		"http://127.0.0.1:1/shot.png",
		"http://169.254.169.254/latest/meta-data",
		"http://10.0.0.1/a.png",
		"http://[::1]:1/a.png",
	} {
		_, err := URLSource{URL: target, Timeout: time.Second}.Bytes(context.Background())
		assert.ErrorIs(t, err, ErrSourceUnavailable, target)
		assert.ErrorIs(t, err, ErrBlockedAddress, target)
	}
}

func TestCheckPublicAddress(t *testing.T) {
	assert.NoError(t, checkPublicAddress("tcp", "93.184.216.34:443", nil))
	assert.NoError(t, checkPublicAddress("tcp", "[2606:4700::1111]:443", nil))
	for _, addr := range []string{"127.0.0.1:80", "192.168.1.5:80", "172.16.0.1:80", "0.0.0.0:80", "[::ffff:127.0.0.1]:80", "[fe80::1]:80"} {
		assert.ErrorIs(t, checkPublicAddress("tcp", addr, nil), ErrBlockedAddress, addr)
	}
}

func TestValidateImageURL(t *testing.T) {
	assert.NoError(t, ValidateImageURL("https://example.com/a.jpg"))
	assert.Error(t, ValidateImageURL("ftp://example.com/a.jpg"))
	assert.Error(t, ValidateImageURL("/relative/a.jpg"))
	assert.Error(t, ValidateImageURL("http://"))
}
