package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123:secret"

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupMockAPI создаёт mock-сервер Bot API.
func setupMockAPI(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := New(Config{
		BaseURL:   server.URL + "/",
		Token:     testToken,
		ChannelID: "@files",
		Timeout:   5 * time.Second,
		RateLimit: 1000,
		RateBurst: 10,
	}, testLogger())
	return server, client
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestSendDocument_Document(t *testing.T) {
	_, client := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot"+testToken+"/sendDocument", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "@files", r.FormValue("chat_id"))
		assert.Equal(t, "report.pdf", r.FormValue("caption"), "пустой caption заменяется именем файла")

		f, hdr, err := r.FormFile("document")
		require.NoError(t, err)
		defer f.Close()
		content, _ := io.ReadAll(f)
		assert.Equal(t, "report.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.4", string(content))

		writeJSON(w, http.StatusOK, `{"ok":true,"result":{"message_id":501,"document":{"file_id":"AgAD-report","mime_type":"application/pdf","thumbnail":{"file_id":"TH"}}}}`)
	})

	sent, err := client.SendDocument(context.Background(), "report.pdf", []byte("%PDF-1.4"), "")
	require.NoError(t, err)

	assert.Equal(t, int64(501), sent.MessageID)
	assert.Equal(t, "AgAD-report", sent.FileHandle)
	assert.Equal(t, "application/pdf", sent.MimeType)
	require.NotNil(t, sent.ThumbHandle)
	assert.Equal(t, "TH", *sent.ThumbHandle)
	assert.Contains(t, string(sent.Raw), `"message_id":501`)
}

func TestSendDocument_Variants(t *testing.T) {
	tests := []struct {
		name      string
		result    string
		wantFile  string
		wantThumb string
		wantMime  string
	}{
		{"video со старым полем thumb", `{"message_id":1,"video":{"file_id":"V","mime_type":"video/mp4","thumb":{"file_id":"VT"}}}`, "V", "VT", "video/mp4"},
		{"audio без миниатюры", `{"message_id":2,"audio":{"file_id":"A","mime_type":"audio/mpeg"}}`, "A", "", "audio/mpeg"},
		{"animation", `{"message_id":3,"animation":{"file_id":"G"}}`, "G", "", ""},
		{"photo: самый большой размер", `{"message_id":4,"photo":[{"file_id":"S","width":90,"height":90},{"file_id":"L","width":1280,"height":720},{"file_id":"M","width":320,"height":180}]}`, "L", "S", "image/jpeg"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, client := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, `{"ok":true,"result":`+tc.result+`}`)
			})

			sent, err := client.SendDocument(context.Background(), "f", []byte("x"), "c")
			require.NoError(t, err)
			assert.Equal(t, tc.wantFile, sent.FileHandle)
			assert.Equal(t, tc.wantMime, sent.MimeType)
			if tc.wantThumb == "" {
				assert.Nil(t, sent.ThumbHandle)
			} else {
				require.NotNil(t, sent.ThumbHandle)
				assert.Equal(t, tc.wantThumb, *sent.ThumbHandle)
			}
		})
	}
}

func TestSendDocument_NoFileHandle(t *testing.T) {
	_, client := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"ok":true,"result":{"message_id":9,"text":"hello"}}`)
	})

	sent, err := client.SendDocument(context.Background(), "f", []byte("x"), "")
	assert.ErrorIs(t, err, ErrNoFileHandle)
	require.NotNil(t, sent)
	assert.Equal(t, int64(9), sent.MessageID)
}

func TestSendDocument_APIError(t *testing.T) {
	_, client := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusRequestEntityTooLarge, `{"ok":false,"error_code":413,"description":"Request Entity Too Large"}`)
	})

	_, err := client.SendDocument(context.Background(), "f", []byte("x"), "")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 413, apiErr.Code)
	assert.Equal(t, "Request Entity Too Large", Describe(err))
}

func TestDeleteMessage(t *testing.T) {
	_, client := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ChatID    string `json:"chat_id"`
			MessageID int64  `json:"message_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "@files", body.ChatID)

		switch body.MessageID {
		case 1:
			writeJSON(w, http.StatusOK, `{"ok":true,"result":true}`)
		case 2:
			writeJSON(w, http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: message to delete not found"}`)
		default:
			writeJSON(w, http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: message can't be deleted"}`)
		}
	})

	ctx := context.Background()
	assert.NoError(t, client.DeleteMessage(ctx, 1))

	err := client.DeleteMessage(ctx, 2)
	require.Error(t, err)
	assert.True(t, IsMessageAbsent(err))

	err = client.DeleteMessage(ctx, 3)
	require.Error(t, err)
	assert.False(t, IsMessageAbsent(err))
	assert.Equal(t, "Bad Request: message can't be deleted", Describe(err))
}

func TestResolveFileURL(t *testing.T) {
	server, client := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "AgAD-report", body["file_id"], "file_id передаётся без пробелов")
		writeJSON(w, http.StatusOK, `{"ok":true,"result":{"file_id":"AgAD-report","file_path":"documents/file_1.pdf"}}`)
	})

	link, err := client.ResolveFileURL(context.Background(), "  AgAD-report ")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/file/bot"+testToken+"/documents/file_1.pdf", link)
}

func TestResolveFileURL_Blank(t *testing.T) {
	calls := 0
	_, client := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	_, err := client.ResolveFileURL(context.Background(), "   ")
	assert.Error(t, err)
	assert.Zero(t, calls, "пустой file_id не должен приводить к вызову API")
}

func TestTransportErrorHidesToken(t *testing.T) {
	client := New(Config{BaseURL: "http://127.0.0.1:1", Token: testToken, ChannelID: "@c", Timeout: time.Second}, testLogger())

	err := client.DeleteMessage(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, IsMessageAbsent(err))
	assert.NotContains(t, err.Error(), testToken)
}

func TestDownload(t *testing.T) {
	server, client := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, "hello")
	})

	resp, err := client.Download(context.Background(), server.URL+"/file/bot"+testToken+"/doc.txt")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "hello", string(data))

	_, err = client.Download(context.Background(), server.URL+"/missing")
	assert.Error(t, err)
}

func TestIsMessageAbsent(t *testing.T) {
	assert.True(t, IsMessageAbsent(&APIError{Description: "Bad Request: MESSAGE TO DELETE NOT FOUND"}))
	assert.True(t, IsMessageAbsent(fmt.Errorf("обёртка: %w", &APIError{Description: "message to delete not found"})))
	assert.False(t, IsMessageAbsent(errors.New("message to delete not found")), "транспортная ошибка не считается ответом API")
	assert.False(t, IsMessageAbsent(nil))
}
