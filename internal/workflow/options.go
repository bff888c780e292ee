package workflow

import (
	"context"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/internal/config"
	"github.com/shehryarbajwa/railbook/internal/logging"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

// Options scrapes the quota, class and date availability grid a train's
// ticket panel offers.
type Options struct {
	runner  Runner
	booking *Booking
	sel     Selectors
	t       config.Timings
	logger  *zap.Logger
}

// NewOptions creates the scraper. It shares the train lookup steps with b.
func NewOptions(runner Runner, b *Booking, settings Settings) *Options {
	settings = settings.withDefaults()
	return &Options{
		runner:  runner,
		booking: b,
		sel:     settings.Selectors,
		t:       settings.Timings,
		logger:  logging.Component(settings.Logger, "options"),
	}
}

// Scrape opens the ticket panel for trainNumber and reads every date chip
// under every quota and class.
func (o *Options) Scrape(ctx context.Context, trainNumber string) (*models.BookingOptions, error) {
	if trainNumber == "" {
		return nil, apperr.New(apperr.Validation, "options", "train number is required")
	}
	out := &models.BookingOptions{
		TrainNumber: trainNumber,
		Quotas:      make(map[string]map[string][]models.DayOption),
	}
	err := o.runner.Exclusive(ctx, func(ctx context.Context, page *rod.Page) error {
		u := newUI(ctx, page, o.t, o.logger)
		label, err := o.booking.locateTrain(u, trainNumber)
		if err != nil {
			return err
		}
		if err := o.booking.openTicketPanel(u, label); err != nil {
			return err
		}
		return o.scrapePanel(u, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Options) scrapePanel(u *ui, out *models.BookingOptions) error {
	const step = "booking_options"
	quotas, err := u.all(step, "quota options", o.sel.QuotaOptions)
	if err != nil {
		return err
	}
	for qi := range quotas {
		// the panel re-renders after each click, so options are looked up again
		quotas, err = u.all(step, "quota options", o.sel.QuotaOptions)
		if err != nil || qi >= len(quotas) {
			return err
		}
		quota := text(quotas[qi])
		if err := u.click(step, "quota "+quota, quotas[qi]); err != nil {
			return err
		}
		if err := u.settle(o.t.Settle); err != nil {
			return err
		}

		classes, err := u.all(step, "class options", o.sel.ClassOptions)
		if err != nil {
			return err
		}
		byClass := make(map[string][]models.DayOption, len(classes))
		for ci := range classes {
			classes, err = u.all(step, "class options", o.sel.ClassOptions)
			if err != nil || ci >= len(classes) {
				return err
			}
			class := text(classes[ci])
			if err := u.click(step, "class "+class, classes[ci]); err != nil {
				return err
			}
			if err := u.settle(o.t.Settle); err != nil {
				return err
			}
			days, err := o.scrapeDays(u)
			if err != nil {
				return err
			}
			byClass[class] = days
		}
		out.Quotas[quota] = byClass
		o.logger.Debug("quota scraped", zap.String("quota", quota), zap.Int("classes", len(byClass)))
	}
	return nil
}

func (o *Options) scrapeDays(u *ui) ([]models.DayOption, error) {
	const step = "booking_options"
	chips, err := u.page.ElementsX(o.sel.DateChips)
	if err != nil {
		return nil, apperr.ElementMissing(step, "date options", err)
	}
	days := make([]models.DayOption, 0, len(chips))
	for i := range chips {
		chips, err = u.page.ElementsX(o.sel.DateChips)
		if err != nil || i >= len(chips) {
			break
		}
		chip := chips[i]
		day := models.DayOption{Date: chipDate(text(chip))}
		if status, err := chip.Timeout(o.t.OptionalWait).ElementX(o.sel.DateChipStatus); err == nil {
			day.Availability = text(status.CancelTimeout())
		}
		if err := u.click(step, "date "+day.Date, chip); err != nil {
			return nil, err
		}
		if err := u.settle(o.t.Settle / 2); err != nil {
			return nil, err
		}
		if price, ok := u.optional(o.sel.FarePrice); ok {
			day.Price = text(price)
		}
		days = append(days, day)
	}
	return days, nil
}
