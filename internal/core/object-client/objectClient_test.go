package objectclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseObjectURL(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		bucket string
		key    string
		ok     bool
	}{
		{"s3 scheme", "s3://vault/users/1/a.pdf", "vault", "users/1/a.pdf", true},
		{"virtual hosted", "https://vault.s3.us-east-2.amazonaws.com/users/1/a.pdf", "vault", "users/1/a.pdf", true},
		{"missing key", "s3://vault", "", "", false},
		{"other https host", "https://example.com/a.pdf", "", "", false},
		{"local path", "/tmp/uploads/a.pdf", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key, ok := ParseObjectURL(tt.url)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestObjectURLRoundTrip(t *testing.T) {
	u := ObjectURL("vault", "/users/7/doc.pdf")
	assert.Equal(t, "s3://vault/users/7/doc.pdf", u)

	bucket, key, ok := ParseObjectURL(u)
	assert.True(t, ok)
	assert.Equal(t, "vault", bucket)
	assert.Equal(t, "users/7/doc.pdf", key)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "users/7/library/42/My_Notes.pdf", ObjectKey("7", "42", " My Notes.pdf "))
	assert.Equal(t, "users/7/library/42/passwd", ObjectKey("7", "42", "../../etc/passwd"))
}
