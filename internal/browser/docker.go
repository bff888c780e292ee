package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/go-rod/rod"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const devtoolsPort = "3000/tcp"

// DockerLauncher runs Chrome inside a browserless/chrome container.
type DockerLauncher struct {
	client *client.Client
	image  string
	opts   Options
	logger *zap.Logger
}

// NewDockerLauncher connects to the Docker daemon described by the
// environment.
func NewDockerLauncher(imageRef string, opts Options) (*DockerLauncher, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DockerLauncher{client: cli, image: imageRef, opts: opts, logger: logger}, nil
}

func (d *DockerLauncher) Mode() string { return "docker" }

func (d *DockerLauncher) Launch(ctx context.Context) (Handle, error) {
	if err := d.EnsureImage(ctx); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	containerConfig, hostConfig := containerSpec(d.image, d.opts)
	resp, err := d.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "railbook-"+id[:8])
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	cleanup := func() {
		_ = d.stop(context.Background(), resp.ID)
	}

	if err := d.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	inspect, err := d.client.ContainerInspect(ctx, resp.ID)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}
	bindings := inspect.NetworkSettings.Ports[devtoolsPort]
	if len(bindings) == 0 {
		cleanup()
		return nil, fmt.Errorf("container %s exposes no devtools port", resp.ID[:12])
	}
	port := bindings[0].HostPort

	if err := waitForBrowserReady(ctx, port); err != nil {
		cleanup()
		return nil, fmt.Errorf("browser failed to become ready: %w", err)
	}
	d.logger.Info("browser container ready", zap.String("container", resp.ID[:12]), zap.String("port", port))

	h, err := openHandle(ctx, fmt.Sprintf("ws://127.0.0.1:%s", port), d.opts, func(b *rod.Browser, _ *rod.Page) error {
		_ = b.Close()
		return d.stop(context.Background(), resp.ID)
	})
	if err != nil {
		// stopping twice is harmless when closeFn already ran
		cleanup()
		return nil, err
	}
	return h, nil
}

// containerSpec describes a single-session browserless container whose
// devtools port is published on loopback only. Nothing is mounted: the
// container's browser state dies with it.
func containerSpec(image string, opts Options) (*container.Config, *container.HostConfig) {
	containerConfig := &container.Config{
		Image: image,
		Labels: map[string]string{
			"managed-by": "railbook",
		},
		Env: []string{
			"CONNECTION_TIMEOUT=-1",
			"MAX_CONCURRENT_SESSIONS=1",
			"PREBOOT_CHROME=true",
			"KEEP_ALIVE=true",
			"EXIT_ON_HEALTH_FAILURE=false",
			fmt.Sprintf("DEFAULT_LAUNCH_ARGS=[\"--window-size=%d,%d\",\"--disable-blink-features=AutomationControlled\"]", opts.Width, opts.Height),
		},
		ExposedPorts: nat.PortSet{
			devtoolsPort: struct{}{},
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			devtoolsPort: []nat.PortBinding{
				{
					HostIP:   "127.0.0.1",
					HostPort: "0",
				},
			},
		},
	}

	return containerConfig, hostConfig
}

func (d *DockerLauncher) stop(ctx context.Context, containerID string) error {
	timeout := 10
	if err := d.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	if err := d.client.ContainerRemove(ctx, containerID, container.RemoveOptions{}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// EnsureImage pulls the browser image unless it is already present.
func (d *DockerLauncher) EnsureImage(ctx context.Context) error {
	images, err := d.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == d.image {
				return nil
			}
		}
	}

	d.logger.Info("pulling browser image", zap.String("image", d.image))
	reader, err := d.client.ImagePull(ctx, d.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

// Close releases the Docker client.
func (d *DockerLauncher) Close() error {
	return d.client.Close()
}

// waitForBrowserReady polls the /json/version endpoint until Chrome answers.
func waitForBrowserReady(ctx context.Context, port string) error {
	url := fmt.Sprintf("http://127.0.0.1:%s/json/version", port)
	maxRetries := 40

	for i := 0; i < maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	return fmt.Errorf("browser did not become ready after %d retries", maxRetries)
}
