package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"taskhub/internal/domain"
	"taskhub/internal/models"
	"taskhub/pkg/cloudinary"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploadCall struct {
	kind     string
	folder   string
	publicID string
	body     string
}

type fakeCloud struct {
	calls []uploadCall
	err   error
}

func (f *fakeCloud) upload(kind string, file io.Reader, folder, publicID string) (*cloudinary.UploadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, _ := io.ReadAll(file)
	f.calls = append(f.calls, uploadCall{kind: kind, folder: folder, publicID: publicID, body: string(raw)})
	return &cloudinary.UploadResult{URL: "https://cdn.example.com/" + publicID, ThumbnailURL: "https://cdn.example.com/thumb", PublicID: publicID}, nil
}

func (f *fakeCloud) UploadImage(_ context.Context, file io.Reader, folder, publicID string) (*cloudinary.UploadResult, error) {
	return f.upload("image", file, folder, publicID)
}

func (f *fakeCloud) UploadDocument(_ context.Context, file io.Reader, folder, publicID string) (*cloudinary.UploadResult, error) {
	return f.upload("document", file, folder, publicID)
}

func (f *fixture) upload(t *testing.T, userID uint, filename, mimeType, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		h.Set("Content-Type", mimeType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/chat", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+f.token(t, userID))
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

type uploadResponse struct {
	Kind string          `json:"kind"`
	File models.FileMeta `json:"file"`
}

func TestUploadChatMedia(t *testing.T) {
	cloud := &fakeCloud{}
	f := newFixture(t, cloud)

	rec := f.upload(t, f.alice, "cat.png", "image/png", "png-bytes")
	requireStatus(t, rec, http.StatusCreated)
	var img uploadResponse
	decodeBody(t, rec, &img)
	assert.Equal(t, domain.MessageKindImage, img.Kind)
	assert.Equal(t, "cat.png", img.File.Name)
	assert.Equal(t, "image/png", img.File.MimeType)
	assert.Equal(t, int64(len("png-bytes")), img.File.Size)

	rec = f.upload(t, f.alice, "notes.pdf", "application/pdf", "pdf-bytes")
	requireStatus(t, rec, http.StatusCreated)
	var doc uploadResponse
	decodeBody(t, rec, &doc)
	assert.Equal(t, domain.MessageKindDocument, doc.Kind)

	require.Len(t, cloud.calls, 2)
	assert.Equal(t, "image", cloud.calls[0].kind)
	assert.Equal(t, "document", cloud.calls[1].kind)
	assert.Equal(t, "taskhub/chat/1", cloud.calls[0].folder)
	assert.Equal(t, "png-bytes", cloud.calls[0].body)
	assert.NotEqual(t, cloud.calls[0].publicID, cloud.calls[1].publicID)
	assert.Equal(t, "https://cdn.example.com/"+cloud.calls[0].publicID, img.File.URL)

	// the returned metadata is accepted as-is by the send path
	_, err := f.messages.SendDirect(context.Background(), f.alice, sendFile(f.bob, img))
	assert.NoError(t, err)
}

func TestUploadChatMedia_Errors(t *testing.T) {
	f := newFixture(t, &fakeCloud{})
	assert.Equal(t, http.StatusBadRequest, f.upload(t, f.alice, "", "", "").Code)

	failing := newFixture(t, &fakeCloud{err: errors.New("cloud down")})
	assert.Equal(t, http.StatusBadGateway, failing.upload(t, failing.alice, "a.png", "image/png", "x").Code)

	disabled := newFixture(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, disabled.upload(t, disabled.alice, "a.png", "image/png", "x").Code)
}
