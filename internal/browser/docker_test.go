package browser

import (
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerSpec(t *testing.T) {
	cfg, host := containerSpec("browserless/chrome:latest", Options{Width: 1366, Height: 900})

	assert.Equal(t, "browserless/chrome:latest", cfg.Image)
	assert.Equal(t, "railbook", cfg.Labels["managed-by"])
	assert.Contains(t, cfg.Env, `DEFAULT_LAUNCH_ARGS=["--window-size=1366,900","--disable-blink-features=AutomationControlled"]`)
	assert.Contains(t, cfg.ExposedPorts, nat.Port(devtoolsPort))

	assert.Empty(t, host.Mounts, "the image reads no host volume")
	bindings := host.PortBindings[devtoolsPort]
	require.Len(t, bindings, 1)
	assert.Equal(t, "127.0.0.1", bindings[0].HostIP)
}
