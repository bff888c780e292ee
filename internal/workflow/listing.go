package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

// ParseRendered lists the train cards present in a results page.
func ParseRendered(html string) ([]models.RenderedTrain, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "listing.parse", err)
	}
	seen := make(map[string]bool)
	trains := []models.RenderedTrain{}
	doc.Find("div[class*='" + CardClass + "'] p").Each(func(_ int, s *goquery.Selection) {
		label := strings.Join(strings.Fields(s.Text()), " ")
		number, ok := cardTrainNumber(label)
		if !ok || seen[number] {
			return
		}
		seen[number] = true
		trains = append(trains, models.RenderedTrain{Number: number, Label: label})
	})
	return trains, nil
}

// Listing reads the train cards the live page currently shows.
type Listing struct {
	runner Runner
	cards  string
	wait   time.Duration
}

func NewListing(runner Runner, settings Settings) *Listing {
	settings = settings.withDefaults()
	return &Listing{runner: runner, cards: settings.Selectors.TrainCards, wait: settings.Timings.OptionalWait}
}

// Rendered snapshots the page HTML and parses its cards.
func (l *Listing) Rendered(ctx context.Context) ([]models.RenderedTrain, error) {
	var html string
	err := l.runner.Exclusive(ctx, func(ctx context.Context, page *rod.Page) error {
		page = page.Context(ctx)
		// an empty listing is a valid answer, so a missing card only ends the wait
		if el, err := page.Timeout(l.wait).ElementX(l.cards); err == nil {
			el.CancelTimeout()
		}
		var err error
		html, err = page.HTML()
		if err != nil {
			return apperr.Wrap(apperr.SessionUnavailable, "listing", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ParseRendered(html)
}
