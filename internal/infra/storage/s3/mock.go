package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewMockForTests returns a *Driver backed by an in-memory fake HTTP
// transport. Only the object operations used by the driver are implemented:
// Head, Get, Put and Delete.
func NewMockForTests() *Driver {
	rt := &mockRoundTripper{state: make(map[string][]byte)}
	cfg, _ := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
	return &Driver{client: client, bucket: "mock-bucket"}
}

type mockRoundTripper struct {
	mu    sync.Mutex
	state map[string][]byte
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	switch req.Method {
	case http.MethodHead:
		body, ok := m.state[key]
		if !ok {
			return notFoundResponse(req, false), nil
		}
		return &http.Response{StatusCode: http.StatusOK, Request: req, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{
			"Content-Length": {fmt.Sprintf("%d", len(body))},
			"Content-Type":   {"application/json"},
			"ETag":           {"\"etag\""},
		}}, nil
	case http.MethodGet:
		body, ok := m.state[key]
		if !ok {
			return notFoundResponse(req, true), nil
		}
		return &http.Response{StatusCode: http.StatusOK, Request: req, Body: io.NopCloser(bytes.NewReader(body)), Header: http.Header{
			"Content-Length": {fmt.Sprintf("%d", len(body))},
			"Content-Type":   {"application/json"},
			"ETag":           {"\"etag\""},
		}}, nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok { // handle aws-chunked encoding
			body = dec
		}
		m.state[key] = body
		return &http.Response{StatusCode: http.StatusOK, Request: req, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"ETag": {"\"etag\""}}}, nil
	case http.MethodDelete:
		delete(m.state, key)
		return &http.Response{StatusCode: http.StatusNoContent, Request: req, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
	return &http.Response{StatusCode: http.StatusNotImplemented, Request: req, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
}

func notFoundResponse(req *http.Request, withBody bool) *http.Response {
	var body io.ReadCloser = io.NopCloser(bytes.NewReader(nil))
	header := http.Header{}
	if withBody {
		xml := `<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`
		body = io.NopCloser(strings.NewReader(xml))
		header.Set("Content-Type", "application/xml")
	}
	return &http.Response{StatusCode: http.StatusNotFound, Request: req, Body: body, Header: header}
}

// decodeChunked decodes a minimal single-chunk aws-chunked style payload:
// <hex>\r\n<body>\r\n0\r\n...
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	var size int64
	if _, err := fmt.Sscanf(parts[0], "%x", &size); err != nil {
		return nil, false
	}
	if int64(len(parts[1])) != size || parts[2] != "0" {
		return nil, false
	}
	return []byte(parts[1]), true
}
