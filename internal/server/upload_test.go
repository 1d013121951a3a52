package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type formField struct {
	name, value string
	file        bool
}

func postForm(t *testing.T, url string, fields ...formField) (int, map[string]interface{}) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range fields {
		if f.file {
			w, err := mw.CreateFormFile(f.name, f.name+".bin")
			require.NoError(t, err)
			w.Write([]byte(f.value))
		} else {
			require.NoError(t, mw.WriteField(f.name, f.value))
		}
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestTestUpload(t *testing.T) {
	rec := &fakeRecorder{}
	_, ts := newTestServer(t, rec)

	status, body := postForm(t, ts.URL+"/test",
		formField{name: "patient_id", value: "7"},
		formField{name: "doctor_id", value: "3"},
		formField{name: "audio_file", value: "abcdef", file: true},
		formField{name: "video_file", value: "xyz", file: true},
	)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 6, body["audioBytes"])
	assert.EqualValues(t, 3, body["videoBytes"])

	audio, video, finalized := rec.sink.snapshot()
	assert.Equal(t, []string{"abcdef"}, audio)
	assert.Equal(t, []string{"xyz"}, video)
	assert.Zero(t, finalized)
}

func TestTestUploadMissingFile(t *testing.T) {
	rec := &fakeRecorder{}
	_, ts := newTestServer(t, rec)

	status, body := postForm(t, ts.URL+"/test", formField{name: "audio_file", value: "abcd", file: true})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "missing file video_file", body["error"])

	audio, _, _ := rec.sink.snapshot()
	assert.Empty(t, audio, "nothing is appended from a rejected upload")
}

func TestAudioUpload(t *testing.T) {
	rec := &fakeRecorder{}
	_, ts := newTestServer(t, rec)

	status, body := postForm(t, ts.URL+"/upload-audio", formField{name: "file", value: "\x01\x00\x02\x00", file: true})
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 4, body["audioBytes"])

	audio, _, _ := rec.sink.snapshot()
	assert.Equal(t, []string{"\x01\x00\x02\x00"}, audio)
}

func TestVideoUpload(t *testing.T) {
	rec := &fakeRecorder{}
	_, ts := newTestServer(t, rec)

	frames := "\x04\x00\x00\x00\xff\xd8\xff\xd9" + "\x02\x00\x00\x00ab"
	status, body := postForm(t, ts.URL+"/upload-video", formField{name: "file", value: frames, file: true})
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["frames"])
	assert.EqualValues(t, 6, body["videoBytes"])

	_, video, _ := rec.sink.snapshot()
	assert.Equal(t, []string{"\xff\xd8\xff\xd9", "ab"}, video)
}

func TestVideoUploadTruncated(t *testing.T) {
	rec := &fakeRecorder{}
	_, ts := newTestServer(t, rec)

	frames := "\x02\x00\x00\x00ab" + "\x09\x00\x00\x00abc"
	status, body := postForm(t, ts.URL+"/upload-video", formField{name: "file", value: frames, file: true})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "truncated frame")

	_, video, _ := rec.sink.snapshot()
	assert.Empty(t, video)
}

func TestUploadTooLarge(t *testing.T) {
	rec := &fakeRecorder{}
	_, ts := newTestServerOptions(t, rec, Options{MaxMessageSize: 512})

	status, _ := postForm(t, ts.URL+"/upload-audio", formField{name: "file", value: string(make([]byte, 4096)), file: true})
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)

	audio, _, _ := rec.sink.snapshot()
	assert.Empty(t, audio)
}

func TestUploadNotMultipart(t *testing.T) {
	_, ts := newTestServer(t, &fakeRecorder{})
	resp, err := http.Post(ts.URL+"/upload-audio", "application/octet-stream", bytes.NewReader([]byte("abcd")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
