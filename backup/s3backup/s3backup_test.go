package s3backup

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ipfs/go-cid"

	"xdao.co/carpin/backup"
	"xdao.co/carpin/carstat"
	"xdao.co/carpin/cidutil"
)

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = in
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = b
	return &s3.PutObjectOutput{}, nil
}

func rootCID(t *testing.T) cid.Cid {
	t.Helper()
	id, err := cidutil.Sum(cid.Raw, []byte("root"))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	return id
}

func TestBackupCar(t *testing.T) {
	fake := &fakeS3{}
	b, err := New(fake, Config{Bucket: "carpin-backups", Region: "eu-west-1", KeyPrefix: "v1/"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	root := rootCID(t)
	car := []byte("archive")

	loc, err := b.BackupCar(context.Background(), "user", root, car, carstat.Complete)
	if err != nil {
		t.Fatalf("BackupCar: %v", err)
	}
	wantKey := "v1/complete/" + root.String() + ".car"
	if aws.ToString(fake.in.Key) != wantKey {
		t.Fatalf("key: got %s want %s", aws.ToString(fake.in.Key), wantKey)
	}
	if aws.ToString(fake.in.Bucket) != "carpin-backups" {
		t.Fatalf("bucket: %s", aws.ToString(fake.in.Bucket))
	}
	if string(fake.body) != "archive" {
		t.Fatalf("body mismatch")
	}
	if aws.ToString(fake.in.ContentType) != backup.ContentType {
		t.Fatalf("content type: %s", aws.ToString(fake.in.ContentType))
	}
	if fake.in.Metadata["structure"] != "Complete" || fake.in.Metadata["root"] != root.String() {
		t.Fatalf("metadata: %v", fake.in.Metadata)
	}
	sum, err := base64.StdEncoding.DecodeString(aws.ToString(fake.in.ChecksumSHA256))
	if err != nil || string(sum) != string(backup.Checksum(car)) {
		t.Fatalf("checksum mismatch")
	}
	if loc != "https://carpin-backups.s3.eu-west-1.amazonaws.com/"+wantKey {
		t.Fatalf("location: %s", loc)
	}
}

func TestBackupCar_PartialKey(t *testing.T) {
	fake := &fakeS3{}
	b, err := New(fake, Config{Bucket: "bkt", Endpoint: "http://minio:9000/"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	root := rootCID(t)
	loc, err := b.BackupCar(context.Background(), "u9", root, []byte("partial"), carstat.Partial)
	if err != nil {
		t.Fatalf("BackupCar: %v", err)
	}
	key := aws.ToString(fake.in.Key)
	if !strings.HasPrefix(key, "raw/"+root.String()+"/u9/") {
		t.Fatalf("key: %s", key)
	}
	if loc != "http://minio:9000/bkt/"+key {
		t.Fatalf("location: %s", loc)
	}
}

func TestBackupCar_Error(t *testing.T) {
	boom := errors.New("access denied")
	b, err := New(&fakeS3{err: boom}, Config{Bucket: "bkt"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := b.BackupCar(context.Background(), "u", rootCID(t), []byte("x"), carstat.Complete); !errors.Is(err, boom) {
		t.Fatalf("got %v want wrapped %v", err, boom)
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	if _, err := New(&fakeS3{}, Config{}); err == nil {
		t.Fatalf("expected error")
	}
}
