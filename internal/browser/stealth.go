package browser

import (
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// visibilityJS keeps the portal believing it is focused and in front, so its
// timers keep running while the window sits off-screen.
const visibilityJS = `
Object.defineProperty(document, 'hidden', { get: () => false, configurable: true });
Object.defineProperty(document, 'visibilityState', { get: () => 'visible', configurable: true });
Object.defineProperty(document, 'webkitVisibilityState', { get: () => 'visible', configurable: true });
document.hasFocus = () => true;
const __block = ['visibilitychange', 'webkitvisibilitychange', 'blur'];
const __add = EventTarget.prototype.addEventListener;
EventTarget.prototype.addEventListener = function (type, listener, options) {
	if (__block.includes(type)) { return; }
	return __add.call(this, type, listener, options);
};
Object.defineProperty(navigator, 'webdriver', { get: () => undefined, configurable: true });
`

func applyStealth(page *rod.Page, opts Options) error {
	if _, err := page.EvalOnNewDocument(visibilityJS); err != nil {
		return fmt.Errorf("install visibility hooks: %w", err)
	}
	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	return nil
}
