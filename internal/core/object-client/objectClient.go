package objectclient

import (
	"path"
	"strings"
)

const s3Scheme = "s3://"

// ObjectURL renders the canonical s3://bucket/key form of an object.
func ObjectURL(bucket, key string) string {
	return s3Scheme + bucket + "/" + strings.TrimPrefix(key, "/")
}

// ParseObjectURL extracts bucket and key from either s3://bucket/key or a
// virtual-hosted style URL such as
// https://my-bucket.s3.us-east-2.amazonaws.com/path/to/file.pdf.
// ok is false for anything else, including plain file paths.
func ParseObjectURL(u string) (bucket, key string, ok bool) {
	switch {
	case strings.HasPrefix(u, s3Scheme):
		bucket, key, _ = strings.Cut(strings.TrimPrefix(u, s3Scheme), "/")
	case strings.HasPrefix(u, "https://"):
		host, rest, _ := strings.Cut(strings.TrimPrefix(u, "https://"), "/")
		name, suffix, found := strings.Cut(host, ".s3.")
		if !found || !strings.HasSuffix(suffix, "amazonaws.com") {
			return "", "", false
		}
		bucket, key = name, rest
	default:
		return "", "", false
	}
	if bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// ObjectKey builds the storage key of an uploaded library file.
func ObjectKey(userID, libraryItemID, filename string) string {
	filename = strings.TrimSpace(filename)
	filename = strings.ReplaceAll(filename, " ", "_")
	return path.Join("users", userID, "library", libraryItemID, path.Base(filename))
}
