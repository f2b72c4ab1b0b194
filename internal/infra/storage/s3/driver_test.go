package s3

import (
	"context"
	"io"
	"net/http"
	"reflect"
	"strings"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/methodin/KeyValueStore/pkg/domain"
)

func TestDriverRoundTrip(t *testing.T) {
	d := NewMockForTests()
	ctx := context.Background()

	if err := d.Insert(ctx, "posts", 1, domain.Record{"title": "a", "views": float64(3)}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rec, found, err := d.Find(ctx, "posts", 1)
	if err != nil || !found {
		t.Fatalf("find: %v found=%v", err, found)
	}
	want := domain.Record{"title": "a", "views": float64(3)}
	if !reflect.DeepEqual(rec, want) {
		t.Fatalf("record = %v, want %v", rec, want)
	}

	// whole-object update replaces the stored document
	if err := d.Update(ctx, "posts", 1, domain.Record{"title": "b"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	rec, _, _ = d.Find(ctx, "posts", 1)
	if !reflect.DeepEqual(rec, domain.Record{"title": "b"}) {
		t.Fatalf("record = %v, want replaced document", rec)
	}

	if err := d.Delete(ctx, "posts", 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := d.Find(ctx, "posts", 1); found {
		t.Fatal("object should be gone")
	}
}

func TestDriverFindMissing(t *testing.T) {
	d := NewMockForTests()
	_, found, err := d.Find(context.Background(), "posts", 404)
	if err != nil {
		t.Fatalf("missing object must not error: %v", err)
	}
	if found {
		t.Fatal("expected not found")
	}
}

func TestDriverDuplicateInsert(t *testing.T) {
	d := NewMockForTests()
	ctx := context.Background()
	if err := d.Insert(ctx, "posts", 1, domain.Record{}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := d.Insert(ctx, "posts", 1, domain.Record{})
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected already-exists error, got %v", err)
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func newFailingDriver(rt roundTripperFunc) *Driver {
	cfg, _ := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
	return &Driver{client: client, bucket: "mock-bucket"}
}

func TestDriverInsertSurfacesExistenceCheckFailures(t *testing.T) {
	var puts int
	d := newFailingDriver(func(req *http.Request) (*http.Response, error) {
		if req.Method == http.MethodPut {
			puts++
		}
		xml := `<?xml version="1.0"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`
		return &http.Response{
			StatusCode: http.StatusForbidden,
			Request:    req,
			Body:       io.NopCloser(strings.NewReader(xml)),
			Header:     http.Header{"Content-Type": {"application/xml"}},
		}, nil
	})

	err := d.Insert(context.Background(), "posts", 1, domain.Record{"title": "a"})
	if err == nil || strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected the existence check failure to surface, got %v", err)
	}
	if puts != 0 {
		t.Fatalf("put must not run after a failed existence check, got %d", puts)
	}
}

func TestDriverUpdateMissing(t *testing.T) {
	d := NewMockForTests()
	err := d.Update(context.Background(), "posts", 404, domain.Record{"a": float64(1)})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestDriverCompositeKeysHashIntoObjectKeys(t *testing.T) {
	d := NewMockForTests()
	ctx := context.Background()
	if err := d.Insert(ctx, "votes", map[string]any{"poll": "p1", "voter": "v9"}, domain.Record{"choice": "yes"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rec, found, err := d.Find(ctx, "votes", map[string]any{"voter": "v9", "poll": "p1"})
	if err != nil || !found {
		t.Fatalf("find: %v found=%v", err, found)
	}
	if rec["choice"] != "yes" {
		t.Fatalf("choice = %v", rec["choice"])
	}
}

func TestObjectKeyShape(t *testing.T) {
	key := objectKey("posts", 1)
	if !strings.HasPrefix(key, "posts/") || !strings.HasSuffix(key, ".json") {
		t.Fatalf("object key = %q", key)
	}
	if key != objectKey("posts", 1) {
		t.Fatal("object keys must be deterministic")
	}
	if key == objectKey("posts", 2) {
		t.Fatal("distinct identifiers must map to distinct objects")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected bucket-required error")
	}
}

func TestDriverCapabilities(t *testing.T) {
	d := NewMockForTests()
	if !d.SupportsCompositePrimaryKeys() || d.SupportsPartialUpdates() {
		t.Fatal("s3 driver is composite-key capable and whole-record")
	}
}
