package browser

import (
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// offscreenX places the window beyond any realistic monitor layout.
const offscreenX = -32000

func intPtr(v int) *int { return &v }

// hideWindow moves the window off-screen. Minimizing would let Chrome
// throttle the page.
func hideWindow(page *rod.Page, width, height int) error {
	if err := page.SetWindow(&proto.BrowserBounds{WindowState: proto.BrowserWindowStateNormal}); err != nil {
		return fmt.Errorf("restore window: %w", err)
	}
	if err := page.SetWindow(&proto.BrowserBounds{
		Left:   intPtr(offscreenX),
		Top:    intPtr(0),
		Width:  intPtr(width),
		Height: intPtr(height),
	}); err != nil {
		return fmt.Errorf("move window off-screen: %w", err)
	}
	return nil
}

func showWindow(page *rod.Page) error {
	if err := page.SetWindow(&proto.BrowserBounds{WindowState: proto.BrowserWindowStateNormal}); err != nil {
		return fmt.Errorf("restore window: %w", err)
	}
	if err := page.SetWindow(&proto.BrowserBounds{Left: intPtr(0), Top: intPtr(0)}); err != nil {
		return fmt.Errorf("move window on-screen: %w", err)
	}
	if err := page.SetWindow(&proto.BrowserBounds{WindowState: proto.BrowserWindowStateMaximized}); err != nil {
		return fmt.Errorf("maximize window: %w", err)
	}
	_, err := page.Eval(`() => window.focus()`)
	return err
}
