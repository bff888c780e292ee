//go:build integration

package browser

import (
	"context"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteHandleCloseKeepsBrowser(t *testing.T) {
	l := launcher.New().Headless(true)
	u := l.MustLaunch()
	t.Cleanup(l.Kill)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	h, err := NewRemoteLauncher(u, Options{Width: 1024, Height: 768}).Launch(ctx)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	b := rod.New().ControlURL(u)
	require.NoError(t, b.Connect(), "the attached browser must outlive our handle")
	defer b.Close()
	_, err = b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	assert.NoError(t, err)
}
