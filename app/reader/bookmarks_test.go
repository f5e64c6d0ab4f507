package reader

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookmarks_Toggle(t *testing.T) {
	b := NewBookmarks()

	assert.True(t, b.Toggle("x"))
	assert.True(t, b.Has("x"))

	assert.False(t, b.Toggle("x"))
	assert.False(t, b.Has("x"))
}

func TestBookmarks_AllSorted(t *testing.T) {
	b := NewBookmarks()
	for _, id := range []string{"c", "a", "b"} {
		b.Toggle(id)
	}

	assert.Equal(t, []string{"a", "b", "c"}, b.All())
}

func TestBookmarks_ConcurrentToggles(t *testing.T) {
	b := NewBookmarks()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("id-%d", i%10)
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Toggle(id)
			b.Has(id)
		}()
	}
	wg.Wait()

	// 10 ids toggled 10 times each: every one ends where it started
	assert.Empty(t, b.All())
}
