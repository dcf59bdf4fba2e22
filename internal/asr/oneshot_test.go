package asr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneShotProvider_FinalizeBeforeOpenErrors(t *testing.T) {
	p, err := newOneShotProvider(Config{Vendor: VendorOneShotHTTP, SampleRate: 16000})
	require.NoError(t, err)
	err = p.Finalize(context.Background())
	require.Error(t, err)
}

func TestOneShotProvider_PushFrameBuffersWithoutClient(t *testing.T) {
	provider, err := newOneShotProvider(Config{Vendor: VendorOneShotHTTP})
	require.NoError(t, err)
	osp := provider.(*oneShotProvider)
	osp.PushFrame([]byte{1, 2, 3})
	osp.PushFrame([]byte{4, 5})
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, osp.buf)
}

func TestLanguageOrDefault(t *testing.T) {
	assert.Equal(t, "cmn-Hans-CN", languageOrDefault(""))
	assert.Equal(t, "en-US", languageOrDefault("en-US"))
}

func TestOneShotProvider_CloseWithoutOpenIsSafe(t *testing.T) {
	provider, err := newOneShotProvider(Config{Vendor: VendorOneShotHTTP})
	require.NoError(t, err)
	require.NoError(t, provider.Close())
}
