package v1_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/Project-OSmOSE/osmose-app-sub000/internal/api/v1"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datasetimport"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/importer"
)

const detectionCSV = "dataset,filename,annotator,is_box,start_datetime,end_datetime,min_frequency,max_frequency,annotation,confidence_indicator_label,confidence_indicator_level\n" +
	"gliderSPAmsDemo,,detector1,true,2024-01-01T00:00:30.000+00:00,2024-01-01T00:01:15.000+00:00,100,200,Buzz,confident,1\n"

func multipartUpload(t *testing.T, field, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, "detections.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestImportResultsMultipart(t *testing.T) {
	h := newHarness(t, 3)
	body, contentType := multipartUpload(t, "file", detectionCSV)

	req := httptest.NewRequest(http.MethodPost, v1.Prefix+h.phasePath("/import"), body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := h.send(req, h.f.Owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	out := decode[importer.Outcome](t, rec)
	assert.Equal(t, 1, out.Rows)
	assert.Equal(t, 2, out.Results, "the detection spans two files")
	assert.Equal(t, 2, out.Files)
}

func TestImportResultsFormAndRawBody(t *testing.T) {
	h := newHarness(t, 3)

	form := url.Values{"data": {detectionCSV}}
	req := httptest.NewRequest(http.MethodPost, v1.Prefix+h.phasePath("/import?force=true"), strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := h.send(req, h.f.Owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, v1.Prefix+h.phasePath("/import"), strings.NewReader(detectionCSV))
	req.Header.Set(echo.HeaderContentType, "text/csv")
	rec = h.send(req, h.f.Staff)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestImportResultsRejections(t *testing.T) {
	h := newHarness(t, 3)

	tests := []struct {
		name  string
		query string
		field string
	}{
		{"bad flag", "?force_datetime=maybe", "force_datetime"},
		{"bad detectors map", "?detectors_map=%7Bnope", "detectors_map"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, v1.Prefix+h.phasePath("/import")+tt.query, strings.NewReader(detectionCSV))
			rec := h.send(req, h.f.Owner)
			assert.True(t, fieldErrors(t, rec).Has(tt.field, errors.CodeInvalid))
		})
	}

	form := url.Values{"other": {"x"}}
	req := httptest.NewRequest(http.MethodPost, v1.Prefix+h.phasePath("/import"), strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	assert.True(t, fieldErrors(t, h.send(req, h.f.Owner)).Has("file", errors.CodeRequired))

	h.f.AddRange(t, h.f.Phase, h.f.Annotator, 0, 0)
	req = httptest.NewRequest(http.MethodPost, v1.Prefix+h.phasePath("/import"), strings.NewReader(detectionCSV))
	assert.Equal(t, http.StatusForbidden, h.send(req, h.f.Annotator).Code)
}

func TestDatasetEndpoints(t *testing.T) {
	fsys := fstest.MapFS{
		"datasets.csv": {Data: []byte("path,dataset,spectro_duration,dataset_sr,file_type\n" +
			"sea/2023,seaDemo,3600,48000,.flac\n")},
		"sea/2023/metadata.csv": {Data: []byte("sample_rate,sample_bits,channel_count,audio_file_dataset_duration\n" +
			"48000,24,2,3600\n")},
		"sea/2023/timestamp.csv": {Data: []byte("filename,timestamp\n" +
			"a.flac,2023-05-01T00:00:00Z\n" +
			"b.flac,2023-05-01T01:00:00Z\n")},
	}
	h := newHarness(t, 2, v1.WithDatasetFS(fsys))

	rec := h.do(http.MethodGet, "/datasets/available", h.f.Annotator, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodGet, "/datasets/available", h.f.Staff, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	available := decode[[]datasetimport.Candidate](t, rec)
	require.Len(t, available, 1)
	assert.Equal(t, "seaDemo", available[0].Name)

	req := httptest.NewRequest(http.MethodPost, v1.Prefix+"/datasets", nil)
	rec = h.send(req, h.f.Staff)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode[datasetimport.Outcome](t, rec)
	assert.Equal(t, []string{"seaDemo"}, out.Imported)
	assert.Equal(t, 2, out.Files)

	rec = h.do(http.MethodGet, "/datasets", h.f.Annotator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	datasets := decode[[]v1.DatasetResponse](t, rec)
	require.Len(t, datasets, 2)
	counts := map[string]int64{}
	for _, d := range datasets {
		counts[d.Name] = d.FilesCount
	}
	assert.Equal(t, map[string]int64{"gliderSPAmsDemo": 2, "seaDemo": 2}, counts)

	rec = h.do(http.MethodGet, "/datasets/"+strconv.FormatUint(uint64(h.f.Dataset.ID), 10)+"/files", h.f.Annotator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	files := decode[[]v1.FileResponse](t, rec)
	require.Len(t, files, 2)
	assert.Equal(t, 1, files[1].Index)

	rec = h.do(http.MethodGet, "/datasets/9999/files", h.f.Annotator, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
