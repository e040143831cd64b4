package paginator

import (
	"time"

	"github.com/sipeed/picopager/pkg/bus"
	"github.com/sipeed/picopager/pkg/menu"
)

const (
	DefaultItemsPerPage = 12
	DefaultTimeout      = time.Minute

	// MaxColumns is the number of inline embed fields rendered side by side.
	MaxColumns = 3
)

// ColorFunc picks the accent color for a page as 0xRRGGBB; 0 leaves it unset.
type ColorFunc func(page, pages int) int

// TextFunc produces the plain-text body shown outside the embed.
type TextFunc func(page, pages int) string

type Builder struct {
	items           []string
	itemsPerPage    int
	columns         int
	showPageNumbers bool
	numberItems     bool
	color           ColorFunc
	text            TextFunc
	users           []string
	roles           []string
	timeout         time.Duration
	client          Client
	waiter          *bus.Waiter[bus.ReactionEvent]
	registry        *Registry
}

func NewBuilder() *Builder {
	return &Builder{
		itemsPerPage:    DefaultItemsPerPage,
		columns:         1,
		showPageNumbers: true,
		timeout:         DefaultTimeout,
	}
}

func (b *Builder) SetItems(items ...string) *Builder {
	b.items = append([]string(nil), items...)
	return b
}

func (b *Builder) AddItems(items ...string) *Builder {
	b.items = append(b.items, items...)
	return b
}

func (b *Builder) SetItemsPerPage(n int) *Builder {
	b.itemsPerPage = n
	return b
}

func (b *Builder) SetColumns(n int) *Builder {
	b.columns = n
	return b
}

func (b *Builder) ShowPageNumbers(show bool) *Builder {
	b.showPageNumbers = show
	return b
}

func (b *Builder) NumberItems(number bool) *Builder {
	b.numberItems = number
	return b
}

func (b *Builder) SetColor(fn ColorFunc) *Builder {
	b.color = fn
	return b
}

func (b *Builder) SetStaticColor(rgb int) *Builder {
	b.color = func(int, int) int { return rgb }
	return b
}

func (b *Builder) SetText(fn TextFunc) *Builder {
	b.text = fn
	return b
}

func (b *Builder) SetStaticText(text string) *Builder {
	b.text = func(int, int) string { return text }
	return b
}

func (b *Builder) SetUsers(ids ...string) *Builder {
	b.users = append([]string(nil), ids...)
	return b
}

func (b *Builder) AddUsers(ids ...string) *Builder {
	b.users = append(b.users, ids...)
	return b
}

func (b *Builder) SetRoles(ids ...string) *Builder {
	b.roles = append([]string(nil), ids...)
	return b
}

func (b *Builder) SetTimeout(d time.Duration) *Builder {
	b.timeout = d
	return b
}

func (b *Builder) SetClient(c Client) *Builder {
	b.client = c
	return b
}

func (b *Builder) SetWaiter(w *bus.Waiter[bus.ReactionEvent]) *Builder {
	b.waiter = w
	return b
}

// SetRegistry shares session bookkeeping between paginators so that one
// message never runs two sessions at once.
func (b *Builder) SetRegistry(r *Registry) *Builder {
	b.registry = r
	return b
}

func (b *Builder) Build() (*Paginator, error) {
	switch {
	case b.itemsPerPage < 1:
		return nil, &ConfigError{Field: "items_per_page", Reason: "must be at least 1"}
	case b.columns < 1 || b.columns > MaxColumns:
		return nil, &ConfigError{Field: "columns", Reason: "must be between 1 and 3"}
	case b.columns > b.itemsPerPage:
		return nil, &ConfigError{Field: "columns", Reason: "must not exceed items_per_page"}
	case b.timeout < 0:
		return nil, &ConfigError{Field: "timeout", Reason: "must not be negative"}
	case b.client == nil:
		return nil, &ConfigError{Field: "client", Reason: "must be set"}
	case b.waiter == nil:
		return nil, &ConfigError{Field: "waiter", Reason: "must be set"}
	}

	registry := b.registry
	if registry == nil {
		registry = NewRegistry()
	}
	color := b.color
	if color == nil {
		color = func(int, int) int { return 0 }
	}

	items := append([]string(nil), b.items...)
	return &Paginator{
		Menu:            menu.New(b.users, b.roles, b.timeout),
		client:          b.client,
		waiter:          b.waiter,
		registry:        registry,
		color:           color,
		text:            b.text,
		columns:         b.columns,
		itemsPerPage:    b.itemsPerPage,
		showPageNumbers: b.showPageNumbers,
		numberItems:     b.numberItems,
		items:           items,
		pages:           totalPages(len(items), b.itemsPerPage),
	}, nil
}

func totalPages(n, perPage int) int {
	pages := (n + perPage - 1) / perPage
	if pages < 1 {
		return 1
	}
	return pages
}
