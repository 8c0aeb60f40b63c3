package receipt

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
		ctx     context.Context
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		ctx = context.Background()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Put", func() {
		It("creates nested directories for the key", func() {
			Expect(storage.Put(ctx, "receipts/alice/1_lunch.jpg", []byte("data"), "image/jpeg")).To(Succeed())
			Expect(filepath.Join(tmpDir, "receipts", "alice", "1_lunch.jpg")).To(BeAnExistingFile())
		})

		It("rejects keys that escape the base path", func() {
			Expect(storage.Put(ctx, "../outside.jpg", []byte("data"), "image/jpeg")).NotTo(Succeed())
			Expect(filepath.Join(filepath.Dir(tmpDir), "outside.jpg")).NotTo(BeAnExistingFile())
		})

		It("honors a cancelled context", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			Expect(storage.Put(cancelled, "receipts/alice/x.jpg", []byte("data"), "image/jpeg")).To(MatchError(context.Canceled))
		})
	})

	Describe("Get", func() {
		When("the file exists", func() {
			BeforeEach(func() {
				Expect(storage.Put(ctx, "receipts/alice/1_a.png", []byte("content"), "image/png")).To(Succeed())
			})

			It("returns the data", func() {
				data, err := storage.Get(ctx, "receipts/alice/1_a.png")
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(Equal("content"))
			})
		})

		When("the file does not exist", func() {
			It("returns ErrNotFound", func() {
				_, err := storage.Get(ctx, "receipts/alice/missing.png")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})

	Describe("Delete", func() {
		It("removes the file", func() {
			Expect(storage.Put(ctx, "receipts/alice/1_a.png", []byte("content"), "image/png")).To(Succeed())
			Expect(storage.Delete(ctx, "receipts/alice/1_a.png")).To(Succeed())
			Expect(filepath.Join(tmpDir, "receipts", "alice", "1_a.png")).NotTo(BeAnExistingFile())
		})

		It("returns ErrNotFound for a missing file", func() {
			Expect(storage.Delete(ctx, "receipts/alice/missing.png")).To(MatchError(ErrNotFound))
		})
	})
})

// mockS3 is a mock implementation of the S3 client
type mockS3 struct {
	objects   map[string][]byte
	types     map[string]string
	putErr    error
	deleteErr error
	presigned *s3.GetObjectInput
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(in.Key)] = data
	m.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	delete(m.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	m.presigned = in
	return &v4.PresignedHTTPRequest{URL: "https://bucket.example/" + aws.ToString(in.Key) + "?X-Amz-Signature=abc"}, nil
}

var _ = Describe("S3Storage", func() {
	var (
		client  *mockS3
		storage *S3Storage
		ctx     context.Context
	)

	BeforeEach(func() {
		client = newMockS3()
		storage = NewS3StorageWithClient("receipts-bucket", client, client)
		ctx = context.Background()
	})

	It("puts and gets objects with their content type", func() {
		Expect(storage.Put(ctx, "receipts/alice/1_a.png", []byte("png"), "image/png")).To(Succeed())
		Expect(client.types["receipts/alice/1_a.png"]).To(Equal("image/png"))

		data, err := storage.Get(ctx, "receipts/alice/1_a.png")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("png"))
	})

	It("maps NoSuchKey to ErrNotFound", func() {
		_, err := storage.Get(ctx, "receipts/alice/missing.png")
		Expect(err).To(MatchError(ErrNotFound))
	})

	It("wraps put failures", func() {
		client.putErr = errors.New("access denied")
		err := storage.Put(ctx, "receipts/alice/1_a.png", []byte("png"), "image/png")
		Expect(err).To(MatchError(ContainSubstring("access denied")))
	})

	It("presigns GET requests for the bucket", func() {
		url, expires, err := storage.PresignGet(ctx, "receipts/alice/1_a.png", 5*time.Minute)
		Expect(err).NotTo(HaveOccurred())
		Expect(url).To(HavePrefix("https://bucket.example/receipts/alice/1_a.png"))
		Expect(expires).To(BeTemporally("~", time.Now().Add(5*time.Minute), time.Second))
		Expect(aws.ToString(client.presigned.Bucket)).To(Equal("receipts-bucket"))
	})
})

var _ = Describe("storage keys", func() {
	It("places keys under the user's prefix", func() {
		key := storageKey("alice", "abc", "IMG 2024 (1).JPG")
		Expect(key).To(Equal("receipts/alice/abc_IMG-2024-1.jpg"))
		Expect(ownsKey("alice", key)).To(BeTrue())
		Expect(ownsKey("bob", key)).To(BeFalse())
	})

	It("rejects traversal and prefix tricks", func() {
		Expect(ownsKey("alice", "receipts/alice/../bob/x.jpg")).To(BeFalse())
		Expect(ownsKey("alice", "receipts/alice2/x.jpg")).To(BeFalse())
		Expect(ownsKey("", "receipts//x.jpg")).To(BeFalse())
	})

	DescribeTable("sanitizeFilename",
		func(in, want string) {
			Expect(sanitizeFilename(in)).To(Equal(want))
		},
		Entry("keeps a simple name", "receipt.pdf", "receipt.pdf"),
		Entry("drops directories", "../../etc/passwd", "passwd"),
		Entry("drops windows directories", `C:\Users\me\scan.png`, "scan.png"),
		Entry("falls back for empty names", "", "receipt"),
		Entry("truncates long names", "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyzabcdefghij.jpg", "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwx.jpg"),
	)

	DescribeTable("contentTypeFor",
		func(key, want string) {
			Expect(contentTypeFor(key)).To(Equal(want))
		},
		Entry("jpeg", "a/b.JPG", "image/jpeg"),
		Entry("pdf", "a/b.pdf", "application/pdf"),
		Entry("heic", "a/b.heic", "image/heic"),
		Entry("unknown", "a/b", "application/octet-stream"),
	)
})
