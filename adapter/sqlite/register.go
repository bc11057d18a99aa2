package sqlite

import (
	"fmt"

	"github.com/trickstertwo/xrelay"
)

const AdapterName = "sqlite"

func init() {
	if err := xrelay.RegisterSource(AdapterName, func(cfg map[string]any) (xrelay.Source, error) {
		return Open(ConfigFromMap(cfg))
	}); err != nil {
		panic(fmt.Errorf("xrelay: failed to register source %q: %w", AdapterName, err))
	}
}
