package locator

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/benmeehan/locator-agent/pkg/location"
	"github.com/stretchr/testify/assert"
)

func TestLatch_SingleWinner(t *testing.T) {
	var latch Latch
	var winners atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if latch.TrySettle() {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.True(t, latch.Settled())
	assert.False(t, latch.TrySettle())
}

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("lookup: %w", &Error{Kind: ProviderError, Message: "GPS disabled"})

	assert.True(t, errors.Is(err, ErrProviderError))
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, "lookup: provider_error: GPS disabled", err.Error())
}

func TestOutcome_Kind(t *testing.T) {
	assert.Equal(t, ErrorKind(0), success(location.Fix{}).Kind())
	assert.Equal(t, Timeout, failure(Timeout, "").Kind())
	assert.Equal(t, "timeout", failure(Timeout, "").Err.Error())
}
