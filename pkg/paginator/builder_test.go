package paginator

import (
	"errors"
	"testing"

	"github.com/sipeed/picopager/pkg/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseBuilder() *Builder {
	return NewBuilder().SetClient(newFakeClient()).SetWaiter(bus.NewWaiter[bus.ReactionEvent]())
}

func TestBuild_Validation(t *testing.T) {
	tests := []struct {
		name  string
		b     *Builder
		field string
	}{
		{"zero items per page", baseBuilder().SetItemsPerPage(0), "items_per_page"},
		{"zero columns", baseBuilder().SetColumns(0), "columns"},
		{"too many columns", baseBuilder().SetColumns(4), "columns"},
		{"columns exceed items per page", baseBuilder().SetItemsPerPage(2).SetColumns(3), "columns"},
		{"negative timeout", baseBuilder().SetTimeout(-1), "timeout"},
		{"missing client", NewBuilder().SetWaiter(bus.NewWaiter[bus.ReactionEvent]()), "client"},
		{"missing waiter", NewBuilder().SetClient(newFakeClient()), "waiter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.b.Build()
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestBuild_Defaults(t *testing.T) {
	p, err := baseBuilder().Build()
	require.NoError(t, err)

	assert.Equal(t, DefaultItemsPerPage, p.itemsPerPage)
	assert.Equal(t, 1, p.columns)
	assert.True(t, p.showPageNumbers)
	assert.False(t, p.numberItems)
	assert.Equal(t, DefaultTimeout, p.Timeout())
	assert.True(t, p.Open())
	assert.Equal(t, 1, p.TotalPages())
}

func TestTotalPages(t *testing.T) {
	tests := []struct{ n, per, want int }{
		{0, 10, 1},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{9, 3, 3},
		{100, 1, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, totalPages(tt.n, tt.per), "n=%d per=%d", tt.n, tt.per)
	}
}

func TestBuild_CopiesItems(t *testing.T) {
	src := []string{"a", "b"}
	b := baseBuilder().SetItems(src...)
	p, err := b.Build()
	require.NoError(t, err)

	src[0] = "changed"
	b.AddItems("c")
	assert.Equal(t, []string{"a", "b"}, p.items)
}
