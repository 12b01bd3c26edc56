package s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legislens/internal/source"
)

type fakeGetObject struct {
	body        string
	contentType string
	length      *int64
	err         error
	gotInput    *s3.GetObjectInput
}

func (f *fakeGetObject) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gotInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(f.body)),
		ContentType:   aws.String(f.contentType),
		ContentLength: f.length,
	}, nil
}

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "contracts/msa.pdf", want: "contracts/msa.pdf"},
		{name: "simple prefix", prefix: "root", key: "contracts/msa.pdf", want: "root/contracts/msa.pdf"},
		{name: "prefix trailing slash", prefix: "root/", key: "contracts/msa.pdf", want: "root/contracts/msa.pdf"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/contracts/msa.pdf", want: "root/contracts/msa.pdf"},
		{name: "nested prefix", prefix: "root/sub", key: "contracts/msa.pdf", want: "root/sub/contracts/msa.pdf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, applyPrefix(tt.prefix, tt.key))
		})
	}
}

func TestFetchReadsObject(t *testing.T) {
	fake := &fakeGetObject{body: "Term: 12 months.", contentType: "text/plain"}
	src := newWithClient(fake, Options{Buckets: []string{"contracts"}, Prefix: "inbox/", MaxBytes: 1024})

	obj, err := src.Fetch(context.Background(), "", "lease.txt")
	require.NoError(t, err)
	assert.Equal(t, "contracts", obj.Bucket)
	assert.Equal(t, "inbox/lease.txt", obj.Key)
	assert.Equal(t, "text/plain", obj.ContentType)
	assert.Equal(t, "Term: 12 months.", string(obj.Data))
	assert.Equal(t, "contracts", aws.ToString(fake.gotInput.Bucket))
	assert.Equal(t, "inbox/lease.txt", aws.ToString(fake.gotInput.Key))
}

func TestFetchRejectsBucketsOutsideAllowList(t *testing.T) {
	fake := &fakeGetObject{body: "x"}
	src := newWithClient(fake, Options{Buckets: []string{"contracts"}})

	_, err := src.Fetch(context.Background(), "payroll", "a.txt")
	require.ErrorIs(t, err, source.ErrForbidden)
	assert.Nil(t, fake.gotInput)

	_, err = src.Fetch(context.Background(), "contracts", "../secrets.txt")
	require.ErrorIs(t, err, source.ErrForbidden)

	open := newWithClient(fake, Options{})
	_, err = open.Fetch(context.Background(), "", "a.txt")
	require.ErrorIs(t, err, source.ErrForbidden)
}

func TestFetchEnforcesSizeLimit(t *testing.T) {
	declared := newWithClient(&fakeGetObject{body: "0123456789", length: aws.Int64(10)}, Options{Buckets: []string{"b"}, MaxBytes: 4})
	_, err := declared.Fetch(context.Background(), "b", "big.pdf")
	require.ErrorIs(t, err, source.ErrTooLarge)

	undeclared := newWithClient(&fakeGetObject{body: "0123456789"}, Options{Buckets: []string{"b"}, MaxBytes: 4})
	_, err = undeclared.Fetch(context.Background(), "b", "big.pdf")
	require.ErrorIs(t, err, source.ErrTooLarge)
}

func TestFetchClassifiesErrors(t *testing.T) {
	statusErr := func(code int) error {
		return &awshttp.ResponseError{ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: code}},
			Err:      errors.New("api error"),
		}}
	}
	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "no such key", err: &s3types.NoSuchKey{}, want: source.ErrNotFound},
		{name: "404", err: statusErr(http.StatusNotFound), want: source.ErrNotFound},
		{name: "403", err: statusErr(http.StatusForbidden), want: source.ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := newWithClient(&fakeGetObject{err: tc.err}, Options{Buckets: []string{"b"}})
			_, err := src.Fetch(context.Background(), "b", "k.pdf")
			require.ErrorIs(t, err, tc.want)
		})
	}

	src := newWithClient(&fakeGetObject{err: errors.New("dial tcp: timeout")}, Options{Buckets: []string{"b"}})
	_, err := src.Fetch(context.Background(), "b", "k.pdf")
	require.Error(t, err)
	assert.False(t, errors.Is(err, source.ErrNotFound))
	assert.Contains(t, err.Error(), "bucket=b key=k.pdf")
}

func TestFetchCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake := &fakeGetObject{body: "x"}
	_, err := newWithClient(fake, Options{Buckets: []string{"b"}}).Fetch(ctx, "b", "k")
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, fake.gotInput)
}
