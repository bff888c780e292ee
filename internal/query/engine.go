package query

import (
	"github.com/shehryarbajwa/railbook/pkg/models"
)

// Source supplies the cached train list.
type Source interface {
	Trains() ([]models.TrainRecord, error)
}

// Engine runs queries against a Source. Every method returns the source's
// CacheEmpty error when no search has been made.
type Engine struct {
	src Source
}

// NewEngine creates an engine reading from src.
func NewEngine(src Source) *Engine {
	return &Engine{src: src}
}

func (e *Engine) Available() ([]TrainView, error) {
	trains, err := e.src.Trains()
	if err != nil {
		return nil, err
	}
	return Available(trains), nil
}

func (e *Engine) Cheapest(class string) ([]ClassOption, error) {
	trains, err := e.src.Trains()
	if err != nil {
		return nil, err
	}
	return Cheapest(trains, class), nil
}

func (e *Engine) Fastest() ([]TrainView, error) {
	trains, err := e.src.Trains()
	if err != nil {
		return nil, err
	}
	return Fastest(trains), nil
}

func (e *Engine) ByClass(class string) ([]ClassOption, error) {
	trains, err := e.src.Trains()
	if err != nil {
		return nil, err
	}
	return ByClass(trains, class), nil
}

func (e *Engine) ByType(tag string) ([]TrainView, error) {
	trains, err := e.src.Trains()
	if err != nil {
		return nil, err
	}
	return ByType(trains, tag), nil
}

func (e *Engine) Filter(c Criteria) ([]TrainView, error) {
	trains, err := e.src.Trains()
	if err != nil {
		return nil, err
	}
	return Filter(trains, c)
}

func (e *Engine) Summary() (Summary, error) {
	trains, err := e.src.Trains()
	if err != nil {
		return Summary{}, err
	}
	return Summarize(trains), nil
}

func (e *Engine) TrainDetails(number string) (Details, error) {
	trains, err := e.src.Trains()
	if err != nil {
		return Details{}, err
	}
	return TrainDetails(trains, number)
}

func (e *Engine) ByTrainNumber(number string) (models.TrainRecord, error) {
	trains, err := e.src.Trains()
	if err != nil {
		return models.TrainRecord{}, err
	}
	return ByTrainNumber(trains, number)
}
