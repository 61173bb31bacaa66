package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/franckalain/halalscan/internal/database"
	"github.com/franckalain/halalscan/internal/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	response map[string]any
	err      error
}

func (m *fakeModel) Load(ctx context.Context) error { return nil }

func (m *fakeModel) ProcessImage(ctx context.Context, imageData []byte) (map[string]any, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func cocoaBar() map[string]any {
	return map[string]any{
		"halalStatus":       "mushbooh",
		"halalLogoDetected": false,
		"productName":       "Cocoa Bar",
		"ingredients":       []any{"sugar, E471, cocoa, E120"},
		"eCodes":            []any{"E471", "E120"},
		"confidence":        0.8,
	}
}

func newTestServer(t *testing.T, model *fakeModel) (*Server, *httptest.Server) {
	t.Helper()
	db, err := database.NewBoltDB(filepath.Join(t.TempDir(), "scans.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := New(db, model, nil, false)
	ts := httptest.NewServer(s.Router(""))
	t.Cleanup(ts.Close)
	return s, ts
}

func doRequest(t *testing.T, method, url, user string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	if user != "" {
		req.Header.Set(userHeader, user)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, &fakeModel{})

	resp := doRequest(t, http.MethodGet, ts.URL+"/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Greater(t, body["ecode_count"], float64(0))
}

func TestAnnotateEndpoint(t *testing.T) {
	_, ts := newTestServer(t, &fakeModel{})

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/annotate", "",
		[]byte(`{"text":"sugar, E471, cocoa, E120","codes":["E471","E120"]}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Segments []struct {
			Text           string `json:"text"`
			Code           bool   `json:"code"`
			Classification string `json:"classification"`
		} `json:"segments"`
	}
	decodeBody(t, resp, &body)

	var joined strings.Builder
	var codes []string
	for _, seg := range body.Segments {
		joined.WriteString(seg.Text)
		if seg.Code {
			codes = append(codes, seg.Text+":"+seg.Classification)
		}
	}
	assert.Equal(t, "sugar, E471, cocoa, E120", joined.String())
	assert.Equal(t, []string{"E471:mushbooh", "E120:haram"}, codes)
}

func TestAnnotateEndpointBadBody(t *testing.T) {
	_, ts := newTestServer(t, &fakeModel{})

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/annotate", "", []byte(`{`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReportEndpoint(t *testing.T) {
	_, ts := newTestServer(t, &fakeModel{})

	raw, err := json.Marshal(cocoaBar())
	require.NoError(t, err)
	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/report", "", raw)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Result models.ScanResult `json:"result"`
		Report struct {
			HaramCodes int `json:"haramCodes"`
		} `json:"report"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, models.StatusMushbooh, body.Result.HalalStatus)
	assert.Equal(t, []string{"E471", "E120"}, body.Result.ECodes)
	assert.Equal(t, 1, body.Report.HaramCodes)

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/v1/report", "", []byte(`[1,2]`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func multipartImage(t *testing.T, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "product.jpg")
	require.NoError(t, err)
	_, err = part.Write(image)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestPredictEndpoint(t *testing.T) {
	_, ts := newTestServer(t, &fakeModel{response: cocoaBar()})

	body, contentType := multipartImage(t, []byte("jpeg bytes"))
	resp, err := http.Post(ts.URL+"/api/v1/predict", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Result models.ScanResult `json:"result"`
	}
	decodeBody(t, resp, &out)
	assert.Equal(t, "Cocoa Bar", out.Result.ProductName)
	assert.InDelta(t, 0.8, out.Result.Confidence, 1e-9)
}

func TestPredictEndpointErrors(t *testing.T) {
	_, ts := newTestServer(t, &fakeModel{err: errors.New("model unavailable")})

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/predict", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, contentType := multipartImage(t, []byte("jpeg bytes"))
	r, err := http.Post(ts.URL+"/api/v1/predict", contentType, body)
	require.NoError(t, err)
	defer r.Body.Close()
	assert.Equal(t, http.StatusBadGateway, r.StatusCode)
}

func TestScanHistoryEndpoints(t *testing.T) {
	_, ts := newTestServer(t, &fakeModel{})
	raw, err := json.Marshal(cocoaBar())
	require.NoError(t, err)

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/scans", "", raw)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/v1/scans?imageUri=file:///bar.jpg", "alice", raw)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var saved struct {
		Scan models.ScanRecord `json:"scan"`
	}
	decodeBody(t, resp, &saved)
	require.NotEmpty(t, saved.Scan.ID)
	assert.Equal(t, "alice", saved.Scan.UserID)
	assert.Equal(t, "file:///bar.jpg", saved.Scan.ImageURI)

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/v1/scans", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Items []models.ScanRecord `json:"items"`
	}
	decodeBody(t, resp, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, saved.Scan.ID, list.Items[0].ID)

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/v1/scans", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/v1/scans/"+saved.Scan.ID, "bob", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/v1/scans/"+saved.Scan.ID, "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Scan   models.ScanRecord `json:"scan"`
		Report struct {
			HaramCodes int `json:"haramCodes"`
		} `json:"report"`
	}
	decodeBody(t, resp, &got)
	assert.Equal(t, "Cocoa Bar", got.Scan.ProductName)
	assert.Equal(t, 1, got.Report.HaramCodes)

	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/v1/scans/"+saved.Scan.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/v1/scans/"+saved.Scan.ID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type wsMessage struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func dialWS(t *testing.T, ts *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if user != "" {
		url += "?user=" + user
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg any) wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.WriteJSON(msg))
	var reply wsMessage
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestWebSocketScanAndSave(t *testing.T) {
	_, ts := newTestServer(t, &fakeModel{response: cocoaBar()})
	conn := dialWS(t, ts, "alice")

	image := base64.StdEncoding.EncodeToString([]byte("jpeg bytes"))
	reply := roundTrip(t, conn, map[string]any{
		"type": "scan",
		"data": map[string]any{"image": image, "imageUri": "file:///bar.jpg"},
	})
	require.Equal(t, "scan_result", reply.Type, reply.Message)

	var scanned struct {
		ID     string            `json:"id"`
		Result models.ScanResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(reply.Data, &scanned))
	require.NotEmpty(t, scanned.ID)
	assert.Equal(t, "Cocoa Bar", scanned.Result.ProductName)

	reply = roundTrip(t, conn, map[string]any{"type": "save_scan", "data": map[string]any{"id": scanned.ID}})
	require.Equal(t, "scan_saved", reply.Type, reply.Message)
	var saved struct {
		Scan models.ScanRecord `json:"scan"`
	}
	require.NoError(t, json.Unmarshal(reply.Data, &saved))
	assert.Equal(t, "file:///bar.jpg", saved.Scan.ImageURI)

	// a pending result can only be saved once
	reply = roundTrip(t, conn, map[string]any{"type": "save_scan", "data": map[string]any{"id": scanned.ID}})
	assert.Equal(t, "error", reply.Type)

	reply = roundTrip(t, conn, map[string]any{"type": "get_history"})
	require.Equal(t, "history", reply.Type)
	var history struct {
		Items []models.ScanRecord `json:"items"`
	}
	require.NoError(t, json.Unmarshal(reply.Data, &history))
	require.Len(t, history.Items, 1)
	assert.Equal(t, saved.Scan.ID, history.Items[0].ID)

	reply = roundTrip(t, conn, map[string]any{"type": "delete_scan", "data": map[string]any{"id": saved.Scan.ID}})
	assert.Equal(t, "scan_deleted", reply.Type)

	reply = roundTrip(t, conn, map[string]any{"type": "delete_scan", "data": map[string]any{"id": saved.Scan.ID}})
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, "Scan not found", reply.Message)
}

func TestWebSocketSaveRequiresUser(t *testing.T) {
	_, ts := newTestServer(t, &fakeModel{})
	conn := dialWS(t, ts, "")

	reply := roundTrip(t, conn, map[string]any{"type": "save_scan", "data": map[string]any{"result": cocoaBar()}})
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, "User must be logged in to save scans", reply.Message)

	reply = roundTrip(t, conn, map[string]any{"type": "get_history"})
	assert.Equal(t, "history", reply.Type)
}

func TestWebSocketErrors(t *testing.T) {
	_, ts := newTestServer(t, &fakeModel{err: errors.New("model unavailable")})
	conn := dialWS(t, ts, "alice")

	tests := []struct {
		name string
		msg  any
		want string
	}{
		{"unknown type", map[string]any{"type": "dance"}, "Unknown message type"},
		{"missing type", map[string]any{"data": map[string]any{}}, "Invalid message format"},
		{"missing image", map[string]any{"type": "scan", "data": map[string]any{}}, "Invalid image data"},
		{"bad base64", map[string]any{"type": "scan", "data": map[string]any{"image": "%%%"}}, "Invalid image format"},
		{"model failure", map[string]any{"type": "scan", "data": map[string]any{"image": "aGVsbG8="}}, "Failed to process image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := roundTrip(t, conn, tt.msg)
			assert.Equal(t, "error", reply.Type)
			assert.Equal(t, tt.want, reply.Message)
		})
	}
}

func TestWebSocketAnnotate(t *testing.T) {
	_, ts := newTestServer(t, &fakeModel{})
	conn := dialWS(t, ts, "")

	reply := roundTrip(t, conn, map[string]any{
		"type": "annotate",
		"data": map[string]any{"text": "E120", "codes": []any{"E120"}},
	})
	require.Equal(t, "annotation", reply.Type)

	var body struct {
		Segments []map[string]any `json:"segments"`
	}
	require.NoError(t, json.Unmarshal(reply.Data, &body))
	require.NotEmpty(t, body.Segments)
	var found bool
	for _, seg := range body.Segments {
		if seg["code"] == true {
			found = true
			assert.Equal(t, "E120", seg["text"])
			assert.Equal(t, "haram", seg["classification"])
		}
	}
	assert.True(t, found)
}
