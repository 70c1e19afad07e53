package s3blob

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestNormaliseEndpoint(t *testing.T) {
	cases := []struct {
		in   string
		ssl  bool
		want string
	}{
		{"minio:9000", false, "http://minio:9000"},
		{"minio:9000", true, "https://minio:9000"},
		{"http://minio:9000", true, "http://minio:9000"},
	}
	for _, tc := range cases {
		if got := normaliseEndpoint(tc.in, tc.ssl); got != tc.want {
			t.Errorf("normaliseEndpoint(%q, %v) = %q, want %q", tc.in, tc.ssl, got, tc.want)
		}
	}
}

func TestNewValidates(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, ClientConfig{Region: "us-east-1"}); err == nil {
		t.Error("missing bucket accepted")
	}
	if _, err := New(ctx, ClientConfig{Bucket: "b"}); err == nil {
		t.Error("missing region accepted")
	}
	c, err := New(ctx, ClientConfig{Bucket: "b", Region: "us-east-1", Endpoint: "localhost:9000", ForcePathStyle: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if NewWriter(c).bucket != "b" {
		t.Error("writer bucket not set")
	}
}

func TestClientOptions(t *testing.T) {
	var o s3.Options
	clientOptions(ClientConfig{Endpoint: "r2.example.com", UseSSL: true, ForcePathStyle: true})(&o)
	if o.BaseEndpoint == nil || *o.BaseEndpoint != "https://r2.example.com" {
		t.Errorf("BaseEndpoint = %v", o.BaseEndpoint)
	}
	if !o.UsePathStyle {
		t.Error("path style not set")
	}

	o = s3.Options{}
	clientOptions(ClientConfig{})(&o)
	if o.BaseEndpoint != nil || o.UsePathStyle {
		t.Errorf("AWS defaults changed: %+v", o)
	}
}
