package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

func TestEmptyCache(t *testing.T) {
	c := New()
	_, err := c.Result()
	assert.True(t, apperr.Is(err, apperr.CacheEmpty))
	_, err = c.Trains()
	assert.True(t, apperr.Is(err, apperr.CacheEmpty))
	_, err = c.Credentials("")
	assert.True(t, apperr.Is(err, apperr.CacheEmpty))
}

func TestLatestSearchWins(t *testing.T) {
	c := New()
	c.SetResult(&models.TrainSearchResult{Trains: []models.TrainRecord{{TrainNumber: "1"}}})
	c.SetResult(&models.TrainSearchResult{Trains: []models.TrainRecord{{TrainNumber: "2"}, {TrainNumber: "3"}}})

	trains, err := c.Trains()
	require.NoError(t, err)
	assert.Len(t, trains, 2)
	assert.Equal(t, "2", trains[0].TrainNumber)
	assert.Equal(t, uint64(2), c.Generation())
}

func TestCredentialsByIdentity(t *testing.T) {
	c := New()
	c.SetCredentials("", models.CapturedCredentials{UserToken: "default-token"})
	c.SetCredentials("alice", models.CapturedCredentials{UserToken: "alice-token"})

	got, err := c.Credentials(DefaultIdentity)
	require.NoError(t, err)
	assert.Equal(t, "default-token", got.UserToken)

	got, err = c.Credentials("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice-token", got.UserToken)
}

func TestClear(t *testing.T) {
	c := New()
	c.SetResult(&models.TrainSearchResult{})
	c.SetCredentials("", models.CapturedCredentials{UserToken: "x"})
	c.Clear()

	_, err := c.Result()
	assert.True(t, apperr.Is(err, apperr.CacheEmpty))
	_, err = c.Credentials("")
	assert.True(t, apperr.Is(err, apperr.CacheEmpty))
}

func TestConcurrentReadersSeeWholeResults(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			trains := make([]models.TrainRecord, n)
			c.SetResult(&models.TrainSearchResult{Trains: trains})
		}(i + 1)
		go func() {
			defer wg.Done()
			if res, err := c.Result(); err == nil {
				assert.NotNil(t, res.Trains)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(8), c.Generation())
}
