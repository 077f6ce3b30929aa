package salesforce

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryWriter struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (w *memoryWriter) Save(_ context.Context, filename string, data []byte) (string, error) {
	if w.err != nil {
		return "", w.err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.files == nil {
		w.files = make(map[string][]byte)
	}
	w.files[filename] = data
	return "/referrals/" + filename, nil
}

func newTestClient(instanceURL, accessToken string) *Client {
	return NewClient(ClientConfig{
		Tokens: NewTokenStore(TokenStoreConfig{
			InstanceURL:  instanceURL,
			ClientID:     "client-1",
			AccessToken:  accessToken,
			RefreshToken: "refresh-1",
		}),
		APIVersion: "59.0",
	})
}

func newFilesServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/services/data/v59.0/sobjects/ContentVersion/068A", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"Id":"068A","Title":"Referral Packet (Jane)","FileExtension":"PDF","ContentSize":8}`))
	})
	mux.HandleFunc("/services/data/v59.0/sobjects/ContentVersion/068A/VersionData", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.4"))
	})
	mux.HandleFunc("/services/data/v59.0/sobjects/ContentVersion/068MISSING", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`[{"errorCode":"NOT_FOUND"}]`))
	})
	mux.HandleFunc("/services/data/v59.0/sobjects/ContentVersion/068NODATA", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Id":"068NODATA","Title":"x"}`))
	})
	mux.HandleFunc("/services/data/v59.0/sobjects/ContentVersion/068NODATA/VersionData", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/services/data/v59.0/query", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		switch {
		case strings.Contains(q, "ContentDocumentId = '069A'"):
			if !strings.Contains(q, "IsLatest = true") {
				t.Errorf("query missing IsLatest filter: %s", q)
			}
			_, _ = w.Write([]byte(`{"totalSize":1,"records":[{"Id":"068A"}]}`))
		default:
			_, _ = w.Write([]byte(`{"totalSize":0,"records":[]}`))
		}
	})
	mux.HandleFunc("/services/data/v59.0/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	return httptest.NewServer(mux)
}

func TestDownloadByVersionID(t *testing.T) {
	srv := newFilesServer(t)
	defer srv.Close()

	writer := &memoryWriter{}
	fetcher := NewDocumentFetcher(newTestClient(srv.URL, "token-1"), writer, nil)

	result, err := fetcher.DownloadByVersionID(context.Background(), "068A")
	require.NoError(t, err)
	assert.Equal(t, "/referrals/referral-packet--jane--068A.pdf", result.Path)
	assert.Equal(t, "068A", result.VersionID)
	assert.Equal(t, "Referral Packet (Jane)", result.Title)
	assert.Equal(t, 8, result.Size)
	assert.Equal(t, []byte("%PDF-1.4"), writer.files["referral-packet--jane--068A.pdf"])
}

func TestDownloadKeepsVersionIDCase(t *testing.T) {
	mux := http.NewServeMux()
	for _, id := range []string{"068Ab00000AbCdE", "068aB00000aBcDe"} {
		id := id
		mux.HandleFunc("/services/data/v59.0/sobjects/ContentVersion/"+id, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"Title":"Referral","FileExtension":"pdf"}`))
		})
		mux.HandleFunc("/services/data/v59.0/sobjects/ContentVersion/"+id+"/VersionData", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(id))
		})
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	writer := &memoryWriter{}
	fetcher := NewDocumentFetcher(newTestClient(srv.URL, "token-1"), writer, nil)

	first, err := fetcher.DownloadByVersionID(context.Background(), "068Ab00000AbCdE")
	require.NoError(t, err)
	second, err := fetcher.DownloadByVersionID(context.Background(), "068aB00000aBcDe")
	require.NoError(t, err)

	assert.Equal(t, "/referrals/referral-068Ab00000AbCdE.pdf", first.Path)
	assert.Equal(t, "/referrals/referral-068aB00000aBcDe.pdf", second.Path)
	require.Len(t, writer.files, 2)
	assert.Equal(t, []byte("068Ab00000AbCdE"), writer.files["referral-068Ab00000AbCdE.pdf"])
}

func TestDownloadRejectsIncompleteContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/services/data/v59.0/sobjects/ContentVersion/068BIG", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Title":"Big","FileExtension":"pdf"}`))
	})
	mux.HandleFunc("/services/data/v59.0/sobjects/ContentVersion/068BIG/VersionData", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	})
	mux.HandleFunc("/services/data/v59.0/sobjects/ContentVersion/068SHORT", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Title":"Short","FileExtension":"pdf","ContentSize":100}`))
	})
	mux.HandleFunc("/services/data/v59.0/sobjects/ContentVersion/068SHORT/VersionData", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	t.Run("over read limit", func(t *testing.T) {
		client := newTestClient(srv.URL, "token-1")
		client.maxBody = 32
		writer := &memoryWriter{}

		_, err := NewDocumentFetcher(client, writer, nil).DownloadByVersionID(context.Background(), "068BIG")
		var tooLarge *ResponseTooLargeError
		require.ErrorAs(t, err, &tooLarge)
		assert.Equal(t, int64(32), tooLarge.Limit)
		assert.Empty(t, writer.files)
	})

	t.Run("exactly at read limit", func(t *testing.T) {
		client := newTestClient(srv.URL, "token-1")
		client.maxBody = 64

		result, err := NewDocumentFetcher(client, &memoryWriter{}, nil).DownloadByVersionID(context.Background(), "068BIG")
		require.NoError(t, err)
		assert.Equal(t, 64, result.Size)
	})

	t.Run("shorter than metadata size", func(t *testing.T) {
		writer := &memoryWriter{}
		_, err := NewDocumentFetcher(newTestClient(srv.URL, "token-1"), writer, nil).DownloadByVersionID(context.Background(), "068SHORT")
		var mismatch *ContentSizeMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, int64(100), mismatch.Expected)
		assert.Equal(t, int64(4), mismatch.Received)
		assert.Empty(t, writer.files)
	})
}

func TestDownloadByVersionIDErrors(t *testing.T) {
	srv := newFilesServer(t)
	defer srv.Close()

	t.Run("metadata", func(t *testing.T) {
		fetcher := NewDocumentFetcher(newTestClient(srv.URL, "token-1"), &memoryWriter{}, nil)
		_, err := fetcher.DownloadByVersionID(context.Background(), "068MISSING")
		var metaErr *MetadataFetchError
		require.ErrorAs(t, err, &metaErr)
		assert.Equal(t, http.StatusNotFound, metaErr.StatusCode)
	})

	t.Run("content", func(t *testing.T) {
		fetcher := NewDocumentFetcher(newTestClient(srv.URL, "token-1"), &memoryWriter{}, nil)
		_, err := fetcher.DownloadByVersionID(context.Background(), "068NODATA")
		var contentErr *ContentFetchError
		require.ErrorAs(t, err, &contentErr)
		assert.Equal(t, http.StatusInternalServerError, contentErr.StatusCode)
	})

	t.Run("writer", func(t *testing.T) {
		fetcher := NewDocumentFetcher(newTestClient(srv.URL, "token-1"), &memoryWriter{err: errors.New("disk full")}, nil)
		_, err := fetcher.DownloadByVersionID(context.Background(), "068A")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("empty id", func(t *testing.T) {
		fetcher := NewDocumentFetcher(newTestClient(srv.URL, "token-1"), &memoryWriter{}, nil)
		_, err := fetcher.DownloadByVersionID(context.Background(), " ")
		require.Error(t, err)
	})
}

func TestDownloadRequiresCredentialsBeforeNetwork(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	fetcher := NewDocumentFetcher(newTestClient(srv.URL, ""), &memoryWriter{}, nil)

	_, err := fetcher.DownloadByVersionID(context.Background(), "068A")
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"SALESFORCE_ACCESS_TOKEN"}, cfgErr.Missing)

	_, err = fetcher.DownloadByDocumentID(context.Background(), "069A")
	require.ErrorAs(t, err, &cfgErr)

	noInstance := NewDocumentFetcher(newTestClient("", ""), &memoryWriter{}, nil)
	_, err = noInstance.DownloadByVersionID(context.Background(), "068A")
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"SALESFORCE_INSTANCE_URL", "SALESFORCE_ACCESS_TOKEN"}, cfgErr.Missing)

	assert.Zero(t, hits)
}

func TestDownloadByDocumentID(t *testing.T) {
	srv := newFilesServer(t)
	defer srv.Close()

	writer := &memoryWriter{}
	fetcher := NewDocumentFetcher(newTestClient(srv.URL, "token-1"), writer, nil)

	result, err := fetcher.DownloadByDocumentID(context.Background(), "069A")
	require.NoError(t, err)
	assert.Equal(t, "/referrals/referral-packet--jane--068A.pdf", result.Path)
	assert.Equal(t, "068A", result.VersionID)

	_, err = fetcher.DownloadByDocumentID(context.Background(), "069NONE")
	var notFound *NoVersionFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "069NONE", notFound.DocumentID)
}

func TestFetcherTestConnection(t *testing.T) {
	srv := newFilesServer(t)
	defer srv.Close()

	assert.True(t, NewDocumentFetcher(newTestClient(srv.URL, "token-1"), nil, nil).TestConnection(context.Background()))
	assert.False(t, NewDocumentFetcher(newTestClient(srv.URL, ""), nil, nil).TestConnection(context.Background()))
	assert.False(t, NewDocumentFetcher(newTestClient("http://127.0.0.1:1", "token-1"), nil, nil).TestConnection(context.Background()))
}

func TestSanitizeTitle(t *testing.T) {
	assert.Equal(t, "referral-packet--jane-", SanitizeTitle("Referral Packet (Jane)"))
	assert.Equal(t, "a_b-c", SanitizeTitle("A_B-C"))
	assert.Equal(t, "", SanitizeTitle(""))
}

func TestEscapeSOQL(t *testing.T) {
	assert.Equal(t, `O\'Brien`, escapeSOQL("O'Brien"))
	assert.Equal(t, `a\\b`, escapeSOQL(`a\b`))
}
