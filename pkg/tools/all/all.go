// Package all imports and initializes all built-in capabilities.
// Import this package to register every connector.
package all

import (
	// Import all connector packages to trigger their init() functions
	_ "github.com/odaihq/odai-server/pkg/tools/finance"
	_ "github.com/odaihq/odai-server/pkg/tools/mail"
	_ "github.com/odaihq/odai-server/pkg/tools/weather"
	_ "github.com/odaihq/odai-server/pkg/tools/websearch"
)
