package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	out    *ssm.GetParametersOutput
	err    error
	lastIn *ssm.GetParametersInput
}

func (f *fakeAPI) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.lastIn = in
	return f.out, f.err
}

func TestGetParameters_HappyPath(t *testing.T) {
	api := &fakeAPI{out: &ssm.GetParametersOutput{
		Parameters: []types.Parameter{
			{Name: aws.String("/stt/backend_url"), Value: aws.String("https://api.example.com")},
			{Name: aws.String("/stt/broken"), Value: nil},
		},
		InvalidParameters: []string{"/stt/mic_source"},
	}}
	client, err := New(api)
	require.NoError(t, err)

	vals, err := client.GetParameters(context.Background(), "/stt/backend_url", " ", "/stt/mic_source")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"/stt/backend_url": "https://api.example.com"}, vals)
	require.Equal(t, []string{"/stt/backend_url", "/stt/mic_source"}, api.lastIn.Names)
	require.True(t, aws.ToBool(api.lastIn.WithDecryption))
}

func TestGetParameters_ApiError(t *testing.T) {
	client, err := New(&fakeAPI{err: errors.New("boom")})
	require.NoError(t, err)
	_, err = client.GetParameters(context.Background(), "/stt/backend_url")
	require.ErrorContains(t, err, "boom")
}

func TestGetParameters_NilOutput(t *testing.T) {
	client, err := New(&fakeAPI{})
	require.NoError(t, err)
	vals, err := client.GetParameters(context.Background(), "/stt/backend_url")
	require.NoError(t, err)
	require.Empty(t, vals)
}

func TestGetParameters_NoNames(t *testing.T) {
	client, err := New(&fakeAPI{})
	require.NoError(t, err)
	_, err = client.GetParameters(context.Background(), "", "  ")
	require.ErrorContains(t, err, "required")
}

func TestGetParameters_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameters(context.Background(), "p")
	require.ErrorContains(t, err, "not initialized")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.ErrorContains(t, err, "must not be nil")
}
