package store

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Compile-time interface check.
var _ putObjectAPI = (*fakeS3)(nil)

// fakeS3 records PutObject calls and can be told to fail.
type fakeS3 struct {
	keys   []string
	bodies [][]byte
	types  []string
	err    error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.keys = append(f.keys, *in.Key)
	f.bodies = append(f.bodies, body)
	ct := ""
	if in.ContentType != nil {
		ct = *in.ContentType
	}
	f.types = append(f.types, ct)
	return &s3.PutObjectOutput{}, nil
}

// TestDirPut verifies files land under their base name with no temp files left.
func TestDirPut(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	d := Dir{Path: dir}

	if err := d.Put(context.Background(), "../escape/earth_image_1.jpg", []byte("jpeg")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "earth_image_1.jpg"))
	if err != nil || string(got) != "jpeg" {
		t.Fatalf("ReadFile = %q, %v", got, err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("dir has %d entries, want 1", len(entries))
	}
}

// TestDirPutFailure verifies write failures are reported as artifact errors.
func TestDirPutFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	err := Dir{Path: filepath.Join(blocker, "sub")}.Put(context.Background(), "x.txt", []byte("x"))
	if !errors.Is(err, ErrArtifactIO) {
		t.Fatalf("err = %v, want ErrArtifactIO", err)
	}
}

// TestS3Put verifies key prefixing, body and content type.
func TestS3Put(t *testing.T) {
	fake := &fakeS3{}
	s := newS3(fake, "bucket", "downlink/2026")

	if err := s.Put(context.Background(), "earth_image_1.jpg", []byte{0xFF, 0xD8}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if fake.keys[0] != "downlink/2026/earth_image_1.jpg" {
		t.Errorf("key = %q", fake.keys[0])
	}
	if string(fake.bodies[0]) != "\xff\xd8" {
		t.Errorf("body = % x", fake.bodies[0])
	}
	if fake.types[0] != "image/jpeg" {
		t.Errorf("content type = %q", fake.types[0])
	}
}

// TestS3PutFailure verifies upload errors are wrapped as artifact errors.
func TestS3PutFailure(t *testing.T) {
	s := newS3(&fakeS3{err: errors.New("access denied")}, "bucket", "")
	if err := s.Put(context.Background(), "GS_Logs_1.txt", []byte("log")); !errors.Is(err, ErrArtifactIO) {
		t.Fatalf("err = %v, want ErrArtifactIO", err)
	}
}

// TestMultiJoinsErrors verifies every sink is attempted even after a failure.
func TestMultiJoinsErrors(t *testing.T) {
	mem := NewMemory()
	m := Multi{newS3(&fakeS3{err: errors.New("down")}, "b", ""), mem}

	err := m.Put(context.Background(), "a.txt", []byte("a"))
	if !errors.Is(err, ErrArtifactIO) {
		t.Fatalf("err = %v, want ErrArtifactIO", err)
	}
	if _, ok := mem.Get("a.txt"); !ok {
		t.Fatal("second sink skipped after first failed")
	}
	if names := mem.Names(); len(names) != 1 || names[0] != "a.txt" {
		t.Fatalf("Names = %v", names)
	}
}
