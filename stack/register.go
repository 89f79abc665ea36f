package stack

import (
	"sync"

	"github.com/YaoZengzeng/sockbridge/types"
)

var (
	buildersMu     sync.RWMutex
	headerBuilders = make(map[types.AddressFamily]HeaderBuilderFactory)
)

// RegisterHeaderBuilder registers a new header builder factory for an address
// family so that stacks created afterwards can build headers for it. This
// function is intended to be called by init() functions of the protocols.
func RegisterHeaderBuilder(family types.AddressFamily, f HeaderBuilderFactory) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	headerBuilders[family] = f
}

func newHeaderBuilders() map[types.AddressFamily]HeaderBuilder {
	buildersMu.RLock()
	defer buildersMu.RUnlock()

	m := make(map[types.AddressFamily]HeaderBuilder, len(headerBuilders))
	for family, f := range headerBuilders {
		m[family] = f()
	}
	return m
}
